package model

import "time"

// NotificationKind says why a user was notified.
type NotificationKind string

const (
	NotifyMention  NotificationKind = "mention"
	NotifyAssigned NotificationKind = "assigned"
)

// Notification is a message delivered to a single user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Actor     string           `json:"actor,omitempty"`
	TicketID  string           `json:"ticket_id,omitempty"`
	CommentID string           `json:"comment_id,omitempty"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
