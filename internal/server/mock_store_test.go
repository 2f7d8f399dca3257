package server

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/alfredjeanlab/trackd/internal/idgen"
	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// mockStore is an in-memory store.Store. RunInTransaction snapshots the
// ticket and collection maps and restores them when fn fails. Inside a
// transaction LockTickets behaves like SELECT ... FOR UPDATE: a row locked by
// one transaction blocks every other until the first one ends.
type mockStore struct {
	mu sync.Mutex

	rows    map[string]int64 // ticket id -> owning transaction
	rowFree *sync.Cond
	txSeq   int64

	users         map[string]*model.User
	projects      map[string]*model.Project
	teams         map[string]*model.Team
	collections   map[string]*model.Collection
	tickets       map[string]*model.Ticket
	ticketOrder   []string
	comments      map[string]*model.Comment
	commentOrder  []string
	notifications []*model.Notification
	events        []*model.Event
	locked        []string

	// fail maps a method name to the error it returns.
	fail map[string]error
}

func newMockStore() *mockStore {
	m := &mockStore{
		rows:        make(map[string]int64),
		users:       make(map[string]*model.User),
		projects:    make(map[string]*model.Project),
		teams:       make(map[string]*model.Team),
		collections: make(map[string]*model.Collection),
		tickets:     make(map[string]*model.Ticket),
		comments:    make(map[string]*model.Comment),
		fail:        make(map[string]error),
	}
	m.rowFree = sync.NewCond(&m.mu)
	return m
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, store.ErrNotFound)
}

func (m *mockStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	c := *u
	return &c, nil
}

func (m *mockStore) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, notFound("user", username)
}

func (m *mockStore) ListUsers(_ context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *model.User) int {
		switch {
		case a.Username < b.Username:
			return -1
		case a.Username > b.Username:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *mockStore) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.projects[p.ID] = &c
	return nil
}

func (m *mockStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	c := *p
	return &c, nil
}

func (m *mockStore) ListProjects(_ context.Context) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Project
	for _, p := range m.projects {
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockStore) NextDisplayID(_ context.Context, projectID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return "", notFound("project", projectID)
	}
	p.TicketSeq++
	key := p.Key
	if key == "" {
		key = model.DefaultProjectKey
	}
	return idgen.DisplayID(key, p.TicketSeq), nil
}

func (m *mockStore) CreateTeam(_ context.Context, tm *model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *tm
	m.teams[tm.ID] = &c
	return nil
}

func (m *mockStore) GetTeam(_ context.Context, id string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tm, ok := m.teams[id]
	if !ok {
		return nil, notFound("team", id)
	}
	c := *tm
	return &c, nil
}

func (m *mockStore) ListTeams(_ context.Context, projectID string) ([]*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Team
	for _, tm := range m.teams {
		if tm.ProjectID == projectID {
			c := *tm
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockStore) CreateCollection(_ context.Context, c *model.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.collections[c.ID] = &cp
	return nil
}

func (m *mockStore) GetCollection(_ context.Context, kind model.CollectionKind, id string) (*model.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok || c.Kind != kind {
		return nil, notFound(kind.String(), id)
	}
	cp := *c
	cp.Tickets = slices.Clone(c.Tickets)
	return &cp, nil
}

func (m *mockStore) ListCollections(_ context.Context, kind model.CollectionKind, scope model.Scope) ([]*model.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Collection
	for _, c := range m.collections {
		if c.Kind == kind && c.ProjectID == scope.ProjectID && (scope.TeamID == "" || c.TeamID == scope.TeamID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) AddCollectionTicket(_ context.Context, kind model.CollectionKind, collectionID, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["AddCollectionTicket"]; err != nil {
		return err
	}
	c, ok := m.collections[collectionID]
	if !ok || c.Kind != kind {
		return notFound(kind.String(), collectionID)
	}
	if !slices.Contains(c.Tickets, ticketID) {
		c.Tickets = append(c.Tickets, ticketID)
	}
	return nil
}

func (m *mockStore) RemoveCollectionTicket(_ context.Context, kind model.CollectionKind, collectionID, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collectionID]
	if !ok || c.Kind != kind {
		return notFound(kind.String(), collectionID)
	}
	c.Tickets = slices.DeleteFunc(c.Tickets, func(id string) bool { return id == ticketID })
	return nil
}

func (m *mockStore) CreateTicket(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["CreateTicket"]; err != nil {
		return err
	}
	m.tickets[t.ID] = t.Clone()
	m.ticketOrder = append(m.ticketOrder, t.ID)
	return nil
}

func (m *mockStore) GetTicket(_ context.Context, id string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, notFound("ticket", id)
	}
	return t.Clone(), nil
}

func (m *mockStore) FindTicketByDisplayID(_ context.Context, scope model.Scope, displayID string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.DisplayID == displayID && t.Status == model.StatusActive && matches(t.Scope(), scope) {
			return t.Clone(), nil
		}
	}
	return nil, notFound("ticket", displayID)
}

func (m *mockStore) FindTicketsByIDs(_ context.Context, scope model.Scope, ids []string) ([]*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Ticket
	for _, id := range ids {
		if t, ok := m.tickets[id]; ok && t.Status == model.StatusActive && matches(t.Scope(), scope) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func matches(got, want model.Scope) bool {
	return got.ProjectID == want.ProjectID && (want.TeamID == "" || got.TeamID == want.TeamID)
}

func (m *mockStore) ListTickets(_ context.Context, f model.TicketFilter) ([]*model.Ticket, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Ticket
	for _, id := range m.ticketOrder {
		t := m.tickets[id]
		if t.ProjectID != f.ProjectID || (f.TeamID != "" && t.TeamID != f.TeamID) {
			continue
		}
		if t.Status != model.StatusActive && !f.Deleted {
			continue
		}
		if f.Assignee != "" && t.Assignee != f.Assignee {
			continue
		}
		if len(f.State) > 0 && !slices.Contains(f.State, t.State) {
			continue
		}
		if len(f.Type) > 0 && !slices.Contains(f.Type, t.Type) {
			continue
		}
		out = append(out, t.Clone())
	}
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *mockStore) UpdateTicket(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["UpdateTicket"]; err != nil {
		return err
	}
	if _, ok := m.tickets[t.ID]; !ok {
		return notFound("ticket", t.ID)
	}
	m.tickets[t.ID] = t.Clone()
	return nil
}

func (m *mockStore) UpdateTicketLinks(_ context.Context, id string, scope model.Scope, links []model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || !matches(t.Scope(), scope) {
		return notFound("ticket", id)
	}
	t.Links = slices.Clone(links)
	return nil
}

func (m *mockStore) CountTickets(_ context.Context, scope model.Scope) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickets {
		if t.Status == model.StatusActive && matches(t.Scope(), scope) {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) AddComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["AddComment"]; err != nil {
		return err
	}
	cp := *c
	m.comments[c.ID] = &cp
	m.commentOrder = append(m.commentOrder, c.ID)
	return nil
}

func (m *mockStore) GetComment(_ context.Context, id string) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, notFound("comment", id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) UpdateComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[c.ID]; !ok {
		return notFound("comment", c.ID)
	}
	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

func (m *mockStore) ListComments(_ context.Context, ticketID string) ([]*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Comment
	for _, id := range m.commentOrder {
		c := m.comments[id]
		if c.TicketID == ticketID && c.Status == model.StatusActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) AddNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *mockStore) ListNotifications(_ context.Context, userID string, unreadOnly bool) ([]*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) MarkNotificationRead(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return notFound("notification", id)
}

func (m *mockStore) RecordEvent(_ context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return nil
}

func (m *mockStore) GetEvents(_ context.Context, ticketID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

// mockTx is the store handed to a RunInTransaction callback.
type mockTx struct {
	*mockStore
	id int64
}

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	m.mu.Lock()
	m.txSeq++
	tx := &mockTx{mockStore: m, id: m.txSeq}
	tickets := make(map[string]*model.Ticket, len(m.tickets))
	for id, t := range m.tickets {
		tickets[id] = t.Clone()
	}
	order := slices.Clone(m.ticketOrder)
	collections := make(map[string]*model.Collection, len(m.collections))
	for id, c := range m.collections {
		cp := *c
		cp.Tickets = slices.Clone(c.Tickets)
		collections[id] = &cp
	}
	m.mu.Unlock()

	err := fn(tx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.tickets, m.ticketOrder, m.collections = tickets, order, collections
	}
	for id, owner := range m.rows {
		if owner == tx.id {
			delete(m.rows, id)
		}
	}
	m.rowFree.Broadcast()
	return err
}

// LockTickets outside a transaction only records the call.
func (m *mockStore) LockTickets(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, ids...)
	return nil
}

// LockTickets takes the rows in the given order, waiting while another
// transaction owns one.
func (tx *mockTx) LockTickets(_ context.Context, ids []string) error {
	m := tx.mockStore
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, ids...)
	for _, id := range ids {
		for m.rows[id] != 0 && m.rows[id] != tx.id {
			m.rowFree.Wait()
		}
		m.rows[id] = tx.id
	}
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

// ticket returns the stored ticket or panics; tests only ask for ids they made.
func (m *mockStore) ticket(id string) *model.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id].Clone()
}

func (m *mockStore) collection(id string) *model.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.collections[id]
	return &c
}

func (m *mockStore) notificationsFor(userID string) []*model.Notification {
	ns, _ := m.ListNotifications(context.Background(), userID, false)
	return ns
}
