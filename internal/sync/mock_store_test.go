package sync

import (
	"context"
	"sort"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// mockSource is an in-memory Source for export tests.
type mockSource struct {
	users       map[string]*model.User
	projects    map[string]*model.Project
	teams       map[string]*model.Team
	collections map[string]*model.Collection
	tickets     map[string]*model.Ticket
	comments    map[string][]*model.Comment

	// ticketFilter is the last filter ListTickets saw.
	ticketFilter model.TicketFilter

	// err, when set, fails ListUsers.
	err error
}

var _ Source = (*mockSource)(nil)

func newMockStore() *mockSource {
	return &mockSource{
		users:       make(map[string]*model.User),
		projects:    make(map[string]*model.Project),
		teams:       make(map[string]*model.Team),
		collections: make(map[string]*model.Collection),
		tickets:     make(map[string]*model.Ticket),
		comments:    make(map[string][]*model.Comment),
	}
}

func (m *mockSource) ListUsers(context.Context) ([]*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockSource) ListProjects(context.Context) ([]*model.Project, error) {
	var out []*model.Project
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockSource) ListTeams(_ context.Context, projectID string) ([]*model.Team, error) {
	var out []*model.Team
	for _, tm := range m.teams {
		if tm.ProjectID == projectID {
			out = append(out, tm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockSource) ListCollections(_ context.Context, kind model.CollectionKind, scope model.Scope) ([]*model.Collection, error) {
	var out []*model.Collection
	for _, c := range m.collections {
		if c.Kind == kind && c.ProjectID == scope.ProjectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockSource) ListTickets(_ context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error) {
	m.ticketFilter = filter
	var out []*model.Ticket
	for _, t := range m.tickets {
		if t.Status == model.StatusDeleted && !filter.Deleted {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockSource) ListComments(_ context.Context, ticketID string) ([]*model.Comment, error) {
	return m.comments[ticketID], nil
}
