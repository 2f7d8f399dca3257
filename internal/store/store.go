package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// ErrNotFound is returned (possibly wrapped) when a requested document does
// not exist or is outside the requested scope.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for tracker documents.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// Projects and teams
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)
	// NextDisplayID atomically advances the project's ticket counter and
	// returns the formatted display id for the new value.
	NextDisplayID(ctx context.Context, projectID string) (string, error)
	CreateTeam(ctx context.Context, team *model.Team) error
	GetTeam(ctx context.Context, id string) (*model.Team, error)
	ListTeams(ctx context.Context, projectID string) ([]*model.Team, error)

	// Sprints, releases and tags
	CreateCollection(ctx context.Context, c *model.Collection) error
	GetCollection(ctx context.Context, kind model.CollectionKind, id string) (*model.Collection, error)
	ListCollections(ctx context.Context, kind model.CollectionKind, scope model.Scope) ([]*model.Collection, error)
	// AddCollectionTicket and RemoveCollectionTicket are idempotent.
	AddCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error
	RemoveCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error

	// Tickets
	CreateTicket(ctx context.Context, ticket *model.Ticket) error
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	FindTicketByDisplayID(ctx context.Context, scope model.Scope, displayID string) (*model.Ticket, error)
	// FindTicketsByIDs returns the active tickets among ids within scope.
	// Missing ids are silently absent from the result.
	FindTicketsByIDs(ctx context.Context, scope model.Scope, ids []string) ([]*model.Ticket, error)
	ListTickets(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error) // returns tickets, total count, error
	UpdateTicket(ctx context.Context, ticket *model.Ticket) error
	UpdateTicketLinks(ctx context.Context, id string, scope model.Scope, links []model.Link) error
	CountTickets(ctx context.Context, scope model.Scope) (int, error)

	// Comments
	AddComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	UpdateComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, ticketID string) ([]*model.Comment, error)

	// Notifications
	AddNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, ticketID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
	// LockTickets row-locks the given tickets until the enclosing
	// transaction ends. Outside a transaction it is a no-op.
	LockTickets(ctx context.Context, ids []string) error

	// Lifecycle
	Close() error
}
