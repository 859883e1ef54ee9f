package screen

import (
	"context"
	"slices"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/optimistic"
)

// Notifications is the rendered notification list with its unread badge.
type Notifications struct {
	Items  []models.Notification
	Unread int
}

func newNotifications(items []models.Notification) Notifications {
	n := Notifications{Items: items}
	for _, it := range items {
		if !it.Read {
			n.Unread++
		}
	}
	return n
}

// NotificationsScreen shows one user's notifications.
type NotificationsScreen struct {
	deps   *Deps
	userID string
	status statusBox
	state  *optimistic.Cell[Notifications]
}

// NewNotificationsScreen creates the notification feed for userID.
func NewNotificationsScreen(d *Deps, userID string) *NotificationsScreen {
	return &NotificationsScreen{
		deps:   d,
		userID: userID,
		state:  optimistic.NewCell(Notifications{}),
	}
}

func (s *NotificationsScreen) key() cache.Key { return cache.NotificationsKey(s.userID) }

func (s *NotificationsScreen) Load(ctx context.Context, force bool) error {
	res, err := load(ctx, s.deps, s.key(), cache.TTLShort, force, func(ctx context.Context) ([]models.Notification, error) {
		return s.deps.Service.ListNotifications(ctx, s.userID, notificationsLimit)
	})
	if err == nil {
		s.state.Store(newNotifications(res.Value))
	}
	return s.status.finish(s.deps.logger(), "notifications", res.FromCache, err)
}

func (s *NotificationsScreen) Notifications() Notifications { return s.state.Load() }

func (s *NotificationsScreen) Status() Status { return s.status.get() }

// MarkRead marks one notification read. Unknown or already read
// notifications are left alone.
func (s *NotificationsScreen) MarkRead(ctx context.Context, id string) error {
	cur := s.state.Load()
	i := slices.IndexFunc(cur.Items, func(n models.Notification) bool { return n.ID == id })
	if i < 0 || cur.Items[i].Read {
		return nil
	}

	out, err := optimistic.Mutate(ctx, s.deps.Mutations, s.state, optimistic.Mutation[Notifications, struct{}]{
		Name: "mark_notification_read",
		Key:  s.key().String(),
		Apply: func(n Notifications) Notifications {
			items := slices.Clone(n.Items)
			unread := n.Unread
			for j := range items {
				if items[j].ID == id && !items[j].Read {
					items[j].Read = true
					unread--
				}
			}
			return Notifications{Items: items, Unread: unread}
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.deps.Service.MarkNotificationRead(ctx, id)
		},
	})
	if err != nil {
		return err
	}
	cache.Set(ctx, s.deps.cache(), s.key(), out.State.Items, cache.TTLShort)
	return nil
}

// MarkAllRead marks every notification read.
func (s *NotificationsScreen) MarkAllRead(ctx context.Context) error {
	if s.state.Load().Unread == 0 {
		return nil
	}

	out, err := optimistic.Mutate(ctx, s.deps.Mutations, s.state, optimistic.Mutation[Notifications, struct{}]{
		Name: "mark_all_notifications_read",
		Key:  s.key().String(),
		Apply: func(n Notifications) Notifications {
			items := slices.Clone(n.Items)
			for j := range items {
				items[j].Read = true
			}
			return Notifications{Items: items}
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.deps.Service.MarkAllNotificationsRead(ctx, s.userID)
		},
	})
	if err != nil {
		return err
	}
	cache.Set(ctx, s.deps.cache(), s.key(), out.State.Items, cache.TTLShort)
	return nil
}
