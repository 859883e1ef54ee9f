package models

import "time"

// Job is a job posting as listed on the jobs screen.
type Job struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	EmployerID   string    `json:"employerId"`
	EmployerName string    `json:"employerName"`
	Location     string    `json:"location,omitempty"`
	Remote       bool      `json:"remote,omitempty"`
	Salary       string    `json:"salary,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NotificationType classifies member notifications.
type NotificationType string

const (
	NotificationNewMessage        NotificationType = "new_message"
	NotificationJobAlert          NotificationType = "job_alert"
	NotificationEmployerApproved  NotificationType = "employer_approved"
	NotificationEmployerRejected  NotificationType = "employer_rejected"
	NotificationScholarshipStatus NotificationType = "scholarship_status"
	NotificationSystem            NotificationType = "system"
)

// Notification is a member notification.
type Notification struct {
	ID                    string           `json:"id"`
	UserID                string           `json:"userId"`
	Type                  NotificationType `json:"type"`
	Title                 string           `json:"title"`
	Message               string           `json:"message"`
	Read                  bool             `json:"read"`
	RelatedJobID          string           `json:"relatedJobId,omitempty"`
	RelatedConversationID string           `json:"relatedConversationId,omitempty"`
	CreatedAt             time.Time        `json:"createdAt"`
}

// Conversation is a message thread between a member and an employer.
type Conversation struct {
	ID            string    `json:"id"`
	MemberID      string    `json:"memberId"`
	EmployerID    string    `json:"employerId"`
	EmployerName  string    `json:"employerName"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	MemberUnread  int       `json:"memberUnread"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// SenderType identifies which side of a conversation sent a message.
type SenderType string

const (
	SenderMember   SenderType = "member"
	SenderEmployer SenderType = "employer"
)

// Message is a single message in a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	SenderType     SenderType `json:"senderType"`
	Content        string     `json:"content"`
	Read           bool       `json:"read"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// SavedJobs is the set of job IDs a member has bookmarked.
type SavedJobs struct {
	UserID string   `json:"userId"`
	JobIDs []string `json:"jobIds"`
}
