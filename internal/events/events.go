package events

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// Event topic constants
const (
	TopicTicketCreated = "trackd.ticket.created"
	TopicTicketUpdated = "trackd.ticket.updated"
	TopicTicketDeleted = "trackd.ticket.deleted"
	TopicLinkAdded     = "trackd.link.added"
	TopicLinkRemoved   = "trackd.link.removed"

	TopicCommentAdded   = "trackd.comment.added"
	TopicCommentUpdated = "trackd.comment.updated"
	TopicCommentDeleted = "trackd.comment.deleted"

	TopicProjectCreated = "trackd.project.created"
	TopicTeamCreated    = "trackd.team.created"
	TopicSprintCreated  = "trackd.sprint.created"
	TopicReleaseCreated = "trackd.release.created"
	TopicTagCreated     = "trackd.tag.created"

	// topicNotificationPrefix is followed by the recipient's user id.
	topicNotificationPrefix = "trackd.notification."

	// TopicAll matches every trackd subject.
	TopicAll = "trackd.>"
)

// NotificationTopic returns the per-user subject notifications are published on.
func NotificationTopic(userID string) string {
	return topicNotificationPrefix + userID
}

// NotificationRecipient reports whether topic is a notification subject and,
// if so, whose.
func NotificationRecipient(topic string) (string, bool) {
	uid, ok := strings.CutPrefix(topic, topicNotificationPrefix)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

// CollectionCreatedTopic returns the creation topic for a sprint, release or tag.
func CollectionCreatedTopic(kind model.CollectionKind) string {
	switch kind {
	case model.KindSprint:
		return TopicSprintCreated
	case model.KindRelease:
		return TopicReleaseCreated
	default:
		return TopicTagCreated
	}
}

// Event types

type TicketCreated struct {
	Ticket *model.Ticket `json:"ticket"`
}

type TicketUpdated struct {
	Ticket  *model.Ticket  `json:"ticket"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

type TicketDeleted struct {
	TicketID string `json:"ticket_id"`
}

type LinkAdded struct {
	TicketID        string         `json:"ticket_id"`
	RelatedTicketID string         `json:"related_ticket_id"`
	Relation        model.Relation `json:"relation"`
}

type LinkRemoved struct {
	TicketID        string `json:"ticket_id"`
	RelatedTicketID string `json:"related_ticket_id"`
}

type CommentAdded struct {
	Comment *model.Comment `json:"comment"`
}

type CommentUpdated struct {
	Comment *model.Comment `json:"comment"`
}

type CommentDeleted struct {
	CommentID string `json:"comment_id"`
	TicketID  string `json:"ticket_id"`
}

type NotificationCreated struct {
	Notification *model.Notification `json:"notification"`
}

type ProjectCreated struct {
	Project *model.Project `json:"project"`
}

type TeamCreated struct {
	Team *model.Team `json:"team"`
}

type CollectionCreated struct {
	Collection *model.Collection `json:"collection"`
}

// Publisher emits events. Implementations JSON-encode event.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives raw event payloads. Subscribe accepts NATS-style
// wildcards; the returned func unsubscribes and closes the channel.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// NoopPublisher discards every event. The server uses it when no NATS URL
// is configured.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
