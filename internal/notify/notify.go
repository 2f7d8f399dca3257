// Package notify delivers per-user notifications. Delivery is fire-and-forget:
// the notification is persisted, published on the recipient's topic and
// fanned out to live stream subscribers, and every failure is logged rather
// than returned.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/trackd/internal/events"
	"github.com/alfredjeanlab/trackd/internal/idgen"
	"github.com/alfredjeanlab/trackd/internal/model"
)

// Notifier sends a notification to one user.
type Notifier interface {
	Notify(ctx context.Context, userID string, n *model.Notification)
}

// Store persists notifications.
type Store interface {
	AddNotification(ctx context.Context, n *model.Notification) error
}

// Broadcaster fans a payload out to live subscribers of topic.
type Broadcaster interface {
	Broadcast(topic string, payload []byte)
}

// Service is the production Notifier.
type Service struct {
	store     Store
	publisher events.Publisher
	fanout    Broadcaster
}

// New returns a Service. fanout may be nil.
func New(s Store, p events.Publisher, fanout Broadcaster) *Service {
	return &Service{store: s, publisher: p, fanout: fanout}
}

// Notify fills in the id, recipient and timestamp of n and delivers it.
func (s *Service) Notify(ctx context.Context, userID string, n *model.Notification) {
	if userID == "" || n == nil {
		return
	}
	if n.ID == "" {
		id, err := idgen.GenerateWithPrefix(idgen.PrefixNotification)
		if err != nil {
			slog.Warn("failed to generate notification id", "user_id", userID, "error", err)
			return
		}
		n.ID = id
	}
	n.UserID = userID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	// A failed write still gets live delivery; the reader just won't find it later.
	if err := s.store.AddNotification(ctx, n); err != nil {
		slog.Warn("failed to persist notification", "user_id", userID, "kind", n.Kind, "error", err)
	}

	topic := events.NotificationTopic(userID)
	evt := events.NotificationCreated{Notification: n}
	if err := s.publisher.Publish(ctx, topic, evt); err != nil {
		slog.Warn("failed to publish notification", "user_id", userID, "error", err)
	}
	if s.fanout != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			slog.Warn("failed to marshal notification", "user_id", userID, "error", err)
			return
		}
		s.fanout.Broadcast(topic, payload)
	}
}

type queued struct {
	userID string
	n      *model.Notification
}

// Queue collects notifications so they can be delivered after the
// surrounding transaction commits. It is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []queued
}

// Notify records the notification for a later Flush.
func (q *Queue) Notify(_ context.Context, userID string, n *model.Notification) {
	q.mu.Lock()
	q.items = append(q.items, queued{userID: userID, n: n})
	q.mu.Unlock()
}

// Len returns the number of pending notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush delivers pending notifications in order and empties the queue.
func (q *Queue) Flush(ctx context.Context, to Notifier) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	if to == nil {
		return
	}
	for _, it := range items {
		to.Notify(ctx, it.userID, it.n)
	}
}

// Discard drops pending notifications, e.g. after a rollback.
func (q *Queue) Discard() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
