// Package client provides a transport-agnostic interface for the trackd
// service, with HTTP/JSON and gRPC implementations used by the td CLI.
package client

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// ErrUnsupported is returned by transports that do not expose an operation.
var ErrUnsupported = errors.New("operation not supported by this transport")

// Client is the interface that all td commands use to talk to a trackd
// server. Every call acts as the user the client was created for.
type Client interface {
	// Tickets
	CreateTicket(ctx context.Context, scope model.Scope, req *CreateTicketRequest) (*model.Ticket, error)
	GetTicket(ctx context.Context, scope model.Scope, id string, render bool) (*model.Ticket, error)
	ListTickets(ctx context.Context, scope model.Scope, req *ListTicketsRequest) (*ListTicketsResponse, error)
	UpdateTicket(ctx context.Context, scope model.Scope, id string, req *UpdateTicketRequest) (*model.Ticket, error)
	DeleteTicket(ctx context.Context, scope model.Scope, id string) error

	// Links
	SetLinks(ctx context.Context, scope model.Scope, id string, links model.DesiredLinks) (*model.Ticket, error)

	// Comments
	AddComment(ctx context.Context, scope model.Scope, ticketID, content string) (*model.Comment, error)
	ListComments(ctx context.Context, scope model.Scope, ticketID string, render bool) ([]*model.Comment, error)

	// Events
	GetEvents(ctx context.Context, ticketID string) ([]*model.Event, error)

	// Notifications
	ListNotifications(ctx context.Context, unreadOnly bool) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateTicketRequest holds parameters for creating a ticket.
type CreateTicketRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	State       string             `json:"state,omitempty"`
	Type        string             `json:"type,omitempty"`
	Priority    int                `json:"priority"`
	Points      int                `json:"points,omitempty"`
	Assignee    string             `json:"assignee,omitempty"`
	Reporter    string             `json:"reporter,omitempty"`
	Sprints     []string           `json:"sprints,omitempty"`
	Releases    []string           `json:"releases,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Links       model.DesiredLinks `json:"links,omitempty"`
}

// ListTicketsRequest holds parameters for listing tickets.
type ListTicketsRequest struct {
	State    []string
	Type     []string
	Assignee string
	Sprint   string
	Release  string
	Tag      string
	Search   string
	Sort     string
	Deleted  bool
	Limit    int
	Offset   int
}

// ListTicketsResponse is the response from ListTickets.
type ListTicketsResponse struct {
	Tickets []*model.Ticket `json:"tickets"`
	Total   int             `json:"total"`
}

// UpdateTicketRequest holds optional parameters for updating a ticket.
// Nil pointer fields mean "don't change".
type UpdateTicketRequest struct {
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	State       *string             `json:"state,omitempty"`
	Type        *string             `json:"type,omitempty"`
	Priority    *int                `json:"priority,omitempty"`
	Points      *int                `json:"points,omitempty"`
	Assignee    *string             `json:"assignee,omitempty"`
	Reporter    *string             `json:"reporter,omitempty"`
	Sprints     *[]string           `json:"sprints,omitempty"`
	Releases    *[]string           `json:"releases,omitempty"`
	Tags        *[]string           `json:"tags,omitempty"`
	Links       *model.DesiredLinks `json:"links,omitempty"`
}
