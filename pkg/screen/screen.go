// Package screen holds the data-bearing state behind each app screen. Reads
// go through the read coordinator; writes are optimistic and roll back
// exactly when the service rejects them.
package screen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/optimistic"
	"github.com/iopps/iopps-sync/pkg/readthrough"
)

// Service is the subset of the document service the screens use.
// *remote.Client implements it.
type Service interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ConversationMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (models.Message, error)
	ListSavedJobs(ctx context.Context, userID string) (models.SavedJobs, error)
	SaveJob(ctx context.Context, userID, jobID string) error
	UnsaveJob(ctx context.Context, userID, jobID string) error
}

// Deps are shared by every screen.
type Deps struct {
	Service   Service
	Reads     *readthrough.Coordinator
	Mutations *optimistic.Runner
	// RefreshTimeout bounds pull-to-refresh. Zero means no bound.
	RefreshTimeout time.Duration
	Logger         *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) cache() *cache.Cache { return d.Reads.Cache() }

// Page sizes requested from the service.
const (
	notificationsLimit = 50
	messagesLimit      = 100
)

// Status describes what the screen currently shows besides its data.
type Status struct {
	Loaded    bool
	FromCache bool
	// Err is the error banner. It is only set while nothing has been rendered.
	Err error
}

type statusBox struct {
	mu sync.Mutex
	st Status
}

func (b *statusBox) get() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

// finish records the outcome of a load and returns the banner error, if any.
// A failed load over already rendered data keeps the data and shows nothing.
func (b *statusBox) finish(logger *slog.Logger, screen string, fromCache bool, err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		if b.st.Loaded {
			logger.Warn("load failed, keeping rendered data", "screen", screen, "error", err)
			return nil
		}
		b.st.Err = err
		return err
	}
	b.st = Status{Loaded: true, FromCache: fromCache}
	return nil
}

// load reads key through the coordinator, or fetches directly when force is
// set (pull-to-refresh).
func load[T any](ctx context.Context, d *Deps, key cache.Key, ttl time.Duration, force bool, fetch readthrough.Fetcher[T]) (readthrough.Result[T], error) {
	if !force {
		return readthrough.Read(ctx, d.Reads, key, fetch, ttl)
	}
	if d.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.RefreshTimeout)
		defer cancel()
	}
	v, err := readthrough.Refresh(ctx, d.Reads, key, fetch, ttl)
	return readthrough.Result[T]{Value: v}, err
}
