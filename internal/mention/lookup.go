package mention

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// Table is an in-memory Lookup over fixed users and tickets.
type Table struct {
	usersByName map[string]*model.User
	usersByID   map[string]*model.User
	byDisplayID map[string]*model.Ticket
	byID        map[string]*model.Ticket
}

// NewTable indexes users and tickets for lookup.
func NewTable(users []*model.User, tickets []*model.Ticket) *Table {
	t := &Table{
		usersByName: make(map[string]*model.User, len(users)),
		usersByID:   make(map[string]*model.User, len(users)),
		byDisplayID: make(map[string]*model.Ticket, len(tickets)),
		byID:        make(map[string]*model.Ticket, len(tickets)),
	}
	for _, u := range users {
		t.usersByName[u.Username] = u
		t.usersByID[u.ID] = u
	}
	for _, tk := range tickets {
		t.byDisplayID[tk.DisplayID] = tk
		t.byID[tk.ID] = tk
	}
	return t
}

func (t *Table) UserByUsername(_ context.Context, username string) (*model.User, error) {
	return get(t.usersByName, username)
}

func (t *Table) UserByID(_ context.Context, id string) (*model.User, error) {
	return get(t.usersByID, id)
}

func (t *Table) TicketByDisplayID(_ context.Context, displayID string) (*model.Ticket, error) {
	return get(t.byDisplayID, displayID)
}

func (t *Table) TicketByID(_ context.Context, id string) (*model.Ticket, error) {
	return get(t.byID, id)
}

func get[T any](m map[string]*T, k string) (*T, error) {
	v, ok := m[k]
	if !ok {
		return nil, fmt.Errorf("%q: %w", k, store.ErrNotFound)
	}
	return v, nil
}

// Finder is the subset of store.Store the store-backed lookup needs.
type Finder interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindTicketByDisplayID(ctx context.Context, scope model.Scope, displayID string) (*model.Ticket, error)
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
}

// ScopedLookup resolves tickets from a store, restricted to one project and
// team. Users are global.
type ScopedLookup struct {
	Finder Finder
	Scope  model.Scope
}

func (l ScopedLookup) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return l.Finder.FindUserByUsername(ctx, username)
}

func (l ScopedLookup) UserByID(ctx context.Context, id string) (*model.User, error) {
	return l.Finder.GetUser(ctx, id)
}

func (l ScopedLookup) TicketByDisplayID(ctx context.Context, displayID string) (*model.Ticket, error) {
	return l.Finder.FindTicketByDisplayID(ctx, l.Scope, displayID)
}

func (l ScopedLookup) TicketByID(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := l.Finder.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.ProjectID != l.Scope.ProjectID || (l.Scope.TeamID != "" && t.TeamID != l.Scope.TeamID) {
		return nil, fmt.Errorf("ticket %q outside scope: %w", id, store.ErrNotFound)
	}
	return t, nil
}
