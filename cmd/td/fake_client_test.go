package main

import (
	"context"
	"testing"

	"github.com/alfredjeanlab/trackd/internal/client"
	"github.com/alfredjeanlab/trackd/internal/model"
)

// fakeClient is an in-memory client.Client. Only the calls the command
// tests exercise carry behavior.
type fakeClient struct {
	tickets  map[string]*model.Ticket
	setLinks []model.DesiredLinks
	updates  []*client.UpdateTicketRequest
	notes    []*model.Notification
}

var _ client.Client = (*fakeClient)(nil)

// useFakeClient installs a fakeClient as the package client for one test.
func useFakeClient(t *testing.T, tickets ...*model.Ticket) *fakeClient {
	t.Helper()
	fc := &fakeClient{tickets: make(map[string]*model.Ticket)}
	for _, tk := range tickets {
		fc.tickets[tk.ID] = tk
	}
	prevClient, prevProject, prevTeam := trackdClient, project, team
	trackdClient, project, team = fc, "pr-1", "tm-1"
	t.Cleanup(func() { trackdClient, project, team = prevClient, prevProject, prevTeam })
	return fc
}

func (f *fakeClient) CreateTicket(_ context.Context, _ model.Scope, req *client.CreateTicketRequest) (*model.Ticket, error) {
	t := &model.Ticket{ID: "tk-new", DisplayID: "TD-9", Title: req.Title}
	f.tickets[t.ID] = t
	return t, nil
}

func (f *fakeClient) GetTicket(_ context.Context, _ model.Scope, id string, _ bool) (*model.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Message: "not found"}
	}
	return t, nil
}

func (f *fakeClient) ListTickets(context.Context, model.Scope, *client.ListTicketsRequest) (*client.ListTicketsResponse, error) {
	return &client.ListTicketsResponse{}, nil
}

func (f *fakeClient) UpdateTicket(_ context.Context, _ model.Scope, id string, req *client.UpdateTicketRequest) (*model.Ticket, error) {
	f.updates = append(f.updates, req)
	return f.tickets[id], nil
}

func (f *fakeClient) DeleteTicket(context.Context, model.Scope, string) error { return nil }

// SetLinks records the desired map and applies it one-sided.
func (f *fakeClient) SetLinks(_ context.Context, _ model.Scope, id string, links model.DesiredLinks) (*model.Ticket, error) {
	f.setLinks = append(f.setLinks, links)
	t := f.tickets[id]
	t.Links = nil
	for other, rel := range links {
		r, _ := model.ParseRelation(rel)
		t.Links = append(t.Links, model.Link{TicketID: other, Relation: r})
	}
	return t, nil
}

func (f *fakeClient) AddComment(_ context.Context, _ model.Scope, ticketID, content string) (*model.Comment, error) {
	return &model.Comment{ID: "cm-1", TicketID: ticketID, Content: content}, nil
}

func (f *fakeClient) ListComments(context.Context, model.Scope, string, bool) ([]*model.Comment, error) {
	return nil, nil
}

func (f *fakeClient) GetEvents(context.Context, string) ([]*model.Event, error) { return nil, nil }

func (f *fakeClient) ListNotifications(context.Context, bool) ([]*model.Notification, error) {
	return f.notes, nil
}

func (f *fakeClient) MarkNotificationRead(context.Context, string) error { return nil }

func (f *fakeClient) Health(context.Context) (string, error) { return "ok", nil }

func (f *fakeClient) Close() error { return nil }
