package screen_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/cache/memory"
	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/optimistic"
	"github.com/iopps/iopps-sync/pkg/readthrough"
	"github.com/iopps/iopps-sync/pkg/screen"
)

var errOffline = errors.New("offline")

type fakeService struct {
	mu            sync.Mutex
	jobs          []models.Job
	notifications []models.Notification
	conversations []models.Conversation
	messages      map[string][]models.Message
	saved         map[string][]string

	readErr  error
	writeErr error
	onSend   func()
	block    chan struct{}
	nextID   int
}

func newFakeService() *fakeService {
	return &fakeService{
		messages: map[string][]models.Message{},
		saved:    map[string][]string{},
	}
}

func (f *fakeService) read() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readErr
}

func (f *fakeService) write(ctx context.Context) error {
	f.mu.Lock()
	block, err := f.block, f.writeErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeService) ListJobs(context.Context) ([]models.Job, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.jobs), nil
}

func (f *fakeService) ListNotifications(_ context.Context, userID string, _ int) ([]models.Notification, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeService) MarkNotificationRead(ctx context.Context, id string) error {
	if err := f.write(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].Read = true
		}
	}
	return nil
}

func (f *fakeService) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if err := f.write(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if f.notifications[i].UserID == userID {
			f.notifications[i].Read = true
		}
	}
	return nil
}

func (f *fakeService) ListConversations(context.Context, string) ([]models.Conversation, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.conversations), nil
}

func (f *fakeService) ConversationMessages(_ context.Context, conversationID string, _ int) ([]models.Message, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages[conversationID]), nil
}

func (f *fakeService) SendMessage(ctx context.Context, conversationID, senderID, content string) (models.Message, error) {
	if f.onSend != nil {
		f.onSend()
	}
	if err := f.write(ctx); err != nil {
		return models.Message{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := models.Message{
		ID:             "srv-" + strings.Repeat("x", f.nextID),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderType:     models.SenderMember,
		Content:        content,
	}
	f.messages[conversationID] = append(f.messages[conversationID], m)
	return m, nil
}

func (f *fakeService) ListSavedJobs(_ context.Context, userID string) (models.SavedJobs, error) {
	if err := f.read(); err != nil {
		return models.SavedJobs{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.SavedJobs{UserID: userID, JobIDs: slices.Clone(f.saved[userID])}, nil
}

func (f *fakeService) SaveJob(ctx context.Context, userID, jobID string) error {
	if err := f.write(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[userID] = append(f.saved[userID], jobID)
	return nil
}

func (f *fakeService) UnsaveJob(ctx context.Context, userID, jobID string) error {
	if err := f.write(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[userID] = slices.DeleteFunc(f.saved[userID], func(id string) bool { return id == jobID })
	return nil
}

func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func newDeps(t *testing.T, svc screen.Service, opts ...optimistic.RunnerOption) *screen.Deps {
	t.Helper()
	c := cache.New(memory.New())
	reads := readthrough.New(c)
	t.Cleanup(func() {
		reads.Wait()
		_ = c.Close()
	})
	return &screen.Deps{
		Service:   svc,
		Reads:     reads,
		Mutations: optimistic.NewRunner(opts...),
	}
}

func TestJobsLoadServesCacheThenRefreshes(t *testing.T) {
	svc := newFakeService()
	svc.jobs = []models.Job{{ID: "1", Title: "Welder"}}
	d := newDeps(t, svc)
	s := screen.NewJobsScreen(d)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	assert.False(t, s.Status().FromCache)
	assert.Equal(t, svc.jobs, s.Jobs())

	svc.set(func(f *fakeService) { f.jobs = []models.Job{{ID: "2", Title: "Nurse"}} })

	require.NoError(t, s.Load(ctx, false))
	assert.True(t, s.Status().FromCache)
	assert.Equal(t, "1", s.Jobs()[0].ID)
	d.Reads.Wait()

	require.NoError(t, s.Load(ctx, false))
	assert.Equal(t, "2", s.Jobs()[0].ID)
}

func TestJobsForceRefresh(t *testing.T) {
	svc := newFakeService()
	svc.jobs = []models.Job{{ID: "1"}}
	d := newDeps(t, svc)
	s := screen.NewJobsScreen(d)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	svc.set(func(f *fakeService) { f.jobs = []models.Job{{ID: "9"}} })

	require.NoError(t, s.Load(ctx, true))
	assert.False(t, s.Status().FromCache)
	assert.Equal(t, "9", s.Jobs()[0].ID)

	cached, ok := cache.Get[[]models.Job](ctx, d.Reads.Cache(), cache.Jobs)
	require.True(t, ok)
	assert.Equal(t, "9", cached[0].ID)
}

func TestErrorBannerOnlyWhenNothingRendered(t *testing.T) {
	svc := newFakeService()
	svc.readErr = errOffline
	d := newDeps(t, svc)
	s := screen.NewJobsScreen(d)
	ctx := context.Background()

	err := s.Load(ctx, false)
	require.ErrorIs(t, err, errOffline)
	assert.ErrorIs(t, s.Status().Err, errOffline)
	assert.False(t, s.Status().Loaded)

	svc.set(func(f *fakeService) {
		f.readErr = nil
		f.jobs = []models.Job{{ID: "1"}}
	})
	require.NoError(t, s.Load(ctx, false))
	assert.NoError(t, s.Status().Err)

	svc.set(func(f *fakeService) { f.readErr = errOffline })
	require.NoError(t, s.Load(ctx, true), "rendered data suppresses the banner")
	assert.NoError(t, s.Status().Err)
	assert.Equal(t, "1", s.Jobs()[0].ID)
}

func sampleNotifications() []models.Notification {
	return []models.Notification{
		{ID: "n1", UserID: "u1", Type: models.NotificationNewMessage, Title: "Hi", Message: "New message"},
		{ID: "n2", UserID: "u1", Type: models.NotificationJobAlert, Title: "Job", Read: true, RelatedJobID: "j1"},
		{ID: "n3", UserID: "u1", Type: models.NotificationSystem, Title: "Welcome"},
	}
}

func TestMarkAllReadRollsBackExactly(t *testing.T) {
	svc := newFakeService()
	svc.notifications = sampleNotifications()
	d := newDeps(t, svc)
	s := screen.NewNotificationsScreen(d, "u1")
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	before := s.Notifications()
	require.Equal(t, 2, before.Unread)

	svc.set(func(f *fakeService) { f.writeErr = errOffline })
	err := s.MarkAllRead(ctx)
	require.ErrorIs(t, err, optimistic.ErrRolledBack)
	require.ErrorIs(t, err, errOffline)

	assert.Equal(t, before, s.Notifications())
	assert.Equal(t, sampleNotifications(), s.Notifications().Items)
}

func TestMarkReadUpdatesCounterAndCache(t *testing.T) {
	svc := newFakeService()
	svc.notifications = sampleNotifications()
	d := newDeps(t, svc)
	s := screen.NewNotificationsScreen(d, "u1")
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	require.NoError(t, s.MarkRead(ctx, "n1"))
	assert.Equal(t, 1, s.Notifications().Unread)

	require.NoError(t, s.MarkRead(ctx, "n1"), "already read is a no-op")
	assert.Equal(t, 1, s.Notifications().Unread)

	cached, ok := cache.Get[[]models.Notification](ctx, d.Reads.Cache(), cache.NotificationsKey("u1"))
	require.True(t, ok)
	assert.True(t, cached[0].Read)

	require.NoError(t, s.MarkAllRead(ctx))
	assert.Equal(t, 0, s.Notifications().Unread)
}

func TestMarkReadTimeoutRollsBack(t *testing.T) {
	svc := newFakeService()
	svc.notifications = sampleNotifications()
	svc.block = make(chan struct{})
	defer close(svc.block)

	d := newDeps(t, svc, optimistic.WithTimeout(20*time.Millisecond))
	s := screen.NewNotificationsScreen(d, "u1")
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	before := s.Notifications()

	err := s.MarkRead(ctx, "n3")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, before, s.Notifications())
}

func TestMessagesScreenUnread(t *testing.T) {
	svc := newFakeService()
	svc.conversations = []models.Conversation{
		{ID: "c1", MemberID: "u1", EmployerName: "Band Office", MemberUnread: 2},
		{ID: "c2", MemberID: "u1", EmployerName: "Health Centre", MemberUnread: 1},
	}
	s := screen.NewMessagesScreen(newDeps(t, svc), "u1")

	require.NoError(t, s.Load(context.Background(), false))
	assert.Len(t, s.Conversations(), 2)
	assert.Equal(t, 3, s.Unread())
}

func TestSendShowsTempMessageThenReconciles(t *testing.T) {
	svc := newFakeService()
	svc.messages["c1"] = []models.Message{{ID: "m1", ConversationID: "c1", SenderType: models.SenderEmployer, Content: "Hello"}}
	d := newDeps(t, svc)
	s := screen.NewConversationScreen(d, "u1", "c1")
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	s.SetDraft("  Thanks!  ")

	var during screen.Thread
	svc.onSend = func() { during = s.Thread() }

	require.NoError(t, s.Send(ctx))

	require.Len(t, during.Messages, 2)
	assert.True(t, strings.HasPrefix(during.Messages[1].ID, screen.TempIDPrefix))
	assert.Equal(t, "Thanks!", during.Messages[1].Content)
	assert.Empty(t, during.Draft)

	got := s.Thread()
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "srv-x", got.Messages[1].ID)
	assert.Empty(t, got.Draft)

	cached, ok := cache.Get[[]models.Message](ctx, d.Reads.Cache(), cache.MessagesKey("c1"))
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestSendFailureRestoresThreadAndDraft(t *testing.T) {
	svc := newFakeService()
	svc.messages["c1"] = []models.Message{{ID: "m1", ConversationID: "c1", Content: "Hello"}}
	svc.writeErr = errOffline
	d := newDeps(t, svc)
	s := screen.NewConversationScreen(d, "u1", "c1")
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	s.SetDraft("Are you hiring?")
	before := s.Thread()

	err := s.Send(ctx)
	var rb *optimistic.RollbackError
	require.ErrorAs(t, err, &rb)
	assert.True(t, rb.Retryable())
	assert.Equal(t, before, s.Thread())
}

func TestSendRejectsEmptyDraft(t *testing.T) {
	s := screen.NewConversationScreen(newDeps(t, newFakeService()), "u1", "c1")
	s.SetDraft("   ")
	assert.ErrorIs(t, s.Send(context.Background()), screen.ErrEmptyMessage)
}

func TestToggleSavedJob(t *testing.T) {
	svc := newFakeService()
	svc.saved["u1"] = []string{"j1"}
	d := newDeps(t, svc)
	s := screen.NewSavedJobsScreen(d, "u1")
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	require.Equal(t, 1, s.Saved().Count)

	require.NoError(t, s.Toggle(ctx, "j2"))
	assert.True(t, s.IsSaved("j2"))
	assert.Equal(t, 2, s.Saved().Count)

	require.NoError(t, s.Toggle(ctx, "j1"))
	assert.False(t, s.IsSaved("j1"))
	assert.Equal(t, screen.Saved{JobIDs: []string{"j2"}, Count: 1}, s.Saved())

	cached, ok := cache.Get[models.SavedJobs](ctx, d.Reads.Cache(), cache.SavedJobsKey("u1"))
	require.True(t, ok)
	assert.Equal(t, []string{"j2"}, cached.JobIDs)
}

func TestToggleSavedJobRollsBack(t *testing.T) {
	svc := newFakeService()
	svc.saved["u1"] = []string{"j1", "j2"}
	d := newDeps(t, svc)
	s := screen.NewSavedJobsScreen(d, "u1")
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	before := s.Saved()

	svc.set(func(f *fakeService) { f.writeErr = errOffline })
	require.Error(t, s.Toggle(ctx, "j1"))
	assert.Equal(t, before, s.Saved())
	require.Error(t, s.Toggle(ctx, "j3"))
	assert.Equal(t, before, s.Saved())
}
