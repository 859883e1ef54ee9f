package screen

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/optimistic"
)

// ErrEmptyMessage is returned by Send when the draft is blank.
var ErrEmptyMessage = errors.New("message is empty")

// TempIDPrefix marks messages that have not been confirmed by the service.
const TempIDPrefix = "temp-"

// MessagesScreen lists a member's conversations.
type MessagesScreen struct {
	deps          *Deps
	userID        string
	status        statusBox
	conversations *optimistic.Cell[[]models.Conversation]
}

// NewMessagesScreen creates the conversation list for userID.
func NewMessagesScreen(d *Deps, userID string) *MessagesScreen {
	return &MessagesScreen{
		deps:          d,
		userID:        userID,
		conversations: optimistic.NewCell[[]models.Conversation](nil),
	}
}

func (s *MessagesScreen) Load(ctx context.Context, force bool) error {
	res, err := load(ctx, s.deps, cache.ConversationsKey(s.userID), cache.TTLShort, force, func(ctx context.Context) ([]models.Conversation, error) {
		return s.deps.Service.ListConversations(ctx, s.userID)
	})
	if err == nil {
		s.conversations.Store(res.Value)
	}
	return s.status.finish(s.deps.logger(), "messages", res.FromCache, err)
}

func (s *MessagesScreen) Conversations() []models.Conversation { return s.conversations.Load() }

// Unread sums the member's unread counts across conversations.
func (s *MessagesScreen) Unread() int {
	n := 0
	for _, c := range s.conversations.Load() {
		n += c.MemberUnread
	}
	return n
}

func (s *MessagesScreen) Status() Status { return s.status.get() }

// Thread is a rendered conversation plus the compose box.
type Thread struct {
	Messages []models.Message
	Draft    string
}

// ConversationScreen shows one conversation and sends member messages.
type ConversationScreen struct {
	deps           *Deps
	userID         string
	conversationID string
	status         statusBox
	thread         *optimistic.Cell[Thread]
	now            func() time.Time
}

// NewConversationScreen creates the thread view of one conversation.
func NewConversationScreen(d *Deps, userID, conversationID string) *ConversationScreen {
	return &ConversationScreen{
		deps:           d,
		userID:         userID,
		conversationID: conversationID,
		thread:         optimistic.NewCell(Thread{}),
		now:            time.Now,
	}
}

func (s *ConversationScreen) key() cache.Key { return cache.MessagesKey(s.conversationID) }

func (s *ConversationScreen) fetch(ctx context.Context) ([]models.Message, error) {
	return s.deps.Service.ConversationMessages(ctx, s.conversationID, messagesLimit)
}

func (s *ConversationScreen) Load(ctx context.Context, force bool) error {
	res, err := load(ctx, s.deps, s.key(), cache.TTLShort, force, s.fetch)
	if err == nil {
		s.thread.Update(func(t Thread) Thread {
			return Thread{Messages: res.Value, Draft: t.Draft}
		})
	}
	return s.status.finish(s.deps.logger(), "conversation", res.FromCache, err)
}

func (s *ConversationScreen) Thread() Thread { return s.thread.Load() }

func (s *ConversationScreen) Status() Status { return s.status.get() }

// SetDraft updates the compose box.
func (s *ConversationScreen) SetDraft(text string) {
	s.thread.Update(func(t Thread) Thread {
		t.Draft = text
		return t
	})
}

type sendResult struct {
	sent   models.Message
	thread []models.Message
}

// Send posts the draft. The message appears at once under a temporary id and
// the draft is cleared; on failure both the thread and the draft come back.
func (s *ConversationScreen) Send(ctx context.Context) error {
	content := strings.TrimSpace(s.thread.Load().Draft)
	if content == "" {
		return ErrEmptyMessage
	}
	tempID := TempIDPrefix + uuid.NewString()

	out, err := optimistic.Mutate(ctx, s.deps.Mutations, s.thread, optimistic.Mutation[Thread, sendResult]{
		Name: "send_message",
		Key:  s.key().String(),
		Apply: func(t Thread) Thread {
			msgs := slices.Clip(slices.Clone(t.Messages))
			msgs = append(msgs, models.Message{
				ID:             tempID,
				ConversationID: s.conversationID,
				SenderID:       s.userID,
				SenderType:     models.SenderMember,
				Content:        content,
				CreatedAt:      s.now(),
			})
			return Thread{Messages: msgs}
		},
		Commit: func(ctx context.Context) (sendResult, error) {
			sent, err := s.deps.Service.SendMessage(ctx, s.conversationID, s.userID, content)
			if err != nil {
				return sendResult{}, err
			}
			thread, err := s.fetch(ctx)
			if err != nil {
				// Delivered; fall back to the service's copy of the message.
				s.deps.logger().Warn("reload thread after send failed", "conversation", s.conversationID, "error", err)
				return sendResult{sent: sent}, nil
			}
			return sendResult{sent: sent, thread: thread}, nil
		},
		Reconcile: func(applied Thread, res sendResult) Thread {
			draft := s.thread.Load().Draft
			if res.thread != nil {
				return Thread{Messages: res.thread, Draft: draft}
			}
			msgs := slices.Clone(applied.Messages)
			for i := range msgs {
				if msgs[i].ID == tempID {
					msgs[i] = res.sent
				}
			}
			return Thread{Messages: msgs, Draft: draft}
		},
	})
	if err != nil {
		return err
	}
	cache.Set(ctx, s.deps.cache(), s.key(), out.State.Messages, cache.TTLShort)
	return nil
}
