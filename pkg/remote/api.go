package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iopps/iopps-sync/pkg/models"
)

// ListJobs returns active job postings, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	err := c.do(ctx, http.MethodGet, "/jobs", url.Values{"active": {"true"}}, nil, &jobs, true)
	return jobs, err
}

func (c *Client) GetJob(ctx context.Context, id string) (models.Job, error) {
	var job models.Job
	err := c.do(ctx, http.MethodGet, "/jobs/"+seg(id), nil, nil, &job, true)
	return job, err
}

// ListNotifications returns a user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var ns []models.Notification
	err := c.do(ctx, http.MethodGet, "/users/"+seg(userID)+"/notifications", limitQuery(limit), nil, &ns, true)
	return ns, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+seg(id)+"/read", nil, nil, nil, true)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+seg(userID)+"/notifications/read-all", nil, nil, nil, true)
}

// ListConversations returns a member's conversations by last activity.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var cs []models.Conversation
	err := c.do(ctx, http.MethodGet, "/users/"+seg(userID)+"/conversations", nil, nil, &cs, true)
	return cs, err
}

// ConversationMessages returns a thread in chronological order.
func (c *Client) ConversationMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var ms []models.Message
	err := c.do(ctx, http.MethodGet, "/conversations/"+seg(conversationID)+"/messages", limitQuery(limit), nil, &ms, true)
	return ms, err
}

type sendMessageRequest struct {
	SenderID   string            `json:"senderId"`
	SenderType models.SenderType `json:"senderType"`
	Content    string            `json:"content"`
}

// SendMessage posts a member message. It is never retried on another
// endpoint so a message is not delivered twice.
func (c *Client) SendMessage(ctx context.Context, conversationID, senderID, content string) (models.Message, error) {
	var m models.Message
	err := c.do(ctx, http.MethodPost, "/conversations/"+seg(conversationID)+"/messages", nil,
		sendMessageRequest{SenderID: senderID, SenderType: models.SenderMember, Content: content}, &m, false)
	return m, err
}

func (c *Client) ListSavedJobs(ctx context.Context, userID string) (models.SavedJobs, error) {
	var s models.SavedJobs
	err := c.do(ctx, http.MethodGet, "/users/"+seg(userID)+"/saved-jobs", nil, nil, &s, true)
	return s, err
}

func (c *Client) SaveJob(ctx context.Context, userID, jobID string) error {
	return c.do(ctx, http.MethodPut, "/users/"+seg(userID)+"/saved-jobs/"+seg(jobID), nil, nil, nil, true)
}

func (c *Client) UnsaveJob(ctx context.Context, userID, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+seg(userID)+"/saved-jobs/"+seg(jobID), nil, nil, nil, true)
}
