package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/trackd/internal/events"
	"github.com/alfredjeanlab/trackd/internal/idgen"
	"github.com/alfredjeanlab/trackd/internal/linkgraph"
	"github.com/alfredjeanlab/trackd/internal/membership"
	"github.com/alfredjeanlab/trackd/internal/mention"
	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/notify"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// collectionKinds is the order membership stages run in.
var collectionKinds = []model.CollectionKind{model.KindSprint, model.KindRelease, model.KindTag}

// createTicketInput holds transport-agnostic parameters for creating a ticket.
type createTicketInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	State       string             `json:"state"`
	Type        string             `json:"type"`
	Priority    int                `json:"priority"`
	Points      int                `json:"points"`
	Assignee    string             `json:"assignee"`
	Reporter    string             `json:"reporter"`
	Sprints     []string           `json:"sprints"`
	Releases    []string           `json:"releases"`
	Tags        []string           `json:"tags"`
	Links       model.DesiredLinks `json:"links"`
}

// updateTicketInput holds transport-agnostic parameters for updating a ticket.
// Pointer fields indicate optionality: nil means "don't change".
type updateTicketInput struct {
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

func (in updateTicketInput) collection(kind model.CollectionKind) *[]string {
	switch kind {
	case model.KindSprint:
		return in.Sprints
	case model.KindRelease:
		return in.Releases
	default:
		return in.Tags
	}
}

// updatePass carries one ticket update through the pipeline:
// fields, sprints, releases, tags, links, then the single final write.
// Every stage runs inside the same store transaction.
type updatePass struct {
	tx      store.Store
	actor   string
	now     time.Time
	ticket  *model.Ticket // working copy; written once at the end
	changes map[string]any
	links   *linkgraph.Result
	queue   *notify.Queue
}

func newPass(tx store.Store, actor string, t *model.Ticket, queue *notify.Queue) *updatePass {
	return &updatePass{
		tx:      tx,
		actor:   actor,
		now:     time.Now().UTC(),
		ticket:  t.Clone(),
		changes: make(map[string]any),
		queue:   queue,
	}
}

// setState records a state transition in the audit history.
func (p *updatePass) setState(to model.State) {
	from := p.ticket.State
	if from == to {
		return
	}
	p.ticket.State = to
	p.ticket.StateHistory = append(p.ticket.StateHistory, model.HistoryEntry{
		Actor: p.actor, From: string(from), To: string(to), Timestamp: p.now,
	})
	p.changes["state"] = to
}

// setAssignee records an assignee change and notifies the new assignee.
func (p *updatePass) setAssignee(ctx context.Context, to string) {
	from := p.ticket.Assignee
	if from == to {
		return
	}
	p.ticket.Assignee = to
	p.ticket.AssigneeHistory = append(p.ticket.AssigneeHistory, model.HistoryEntry{
		Actor: p.actor, From: from, To: to, Timestamp: p.now,
	})
	p.changes["assignee"] = to
	p.notifyAssigned(ctx)
}

func (p *updatePass) notifyAssigned(ctx context.Context) {
	to := p.ticket.Assignee
	if to == model.NoAssignee || to == p.actor {
		return
	}
	p.queue.Notify(ctx, to, &model.Notification{
		Kind:     model.NotifyAssigned,
		Actor:    p.actor,
		TicketID: p.ticket.ID,
		Message:  "you were assigned " + p.ticket.DisplayID,
		Link:     mention.TicketPath(p.ticket),
	})
}

// setDescription stores the canonical form of raw.
func (p *updatePass) setDescription(ctx context.Context, raw string) {
	t := p.ticket
	t.Description = resolver(p.tx, t.Scope(), p.queue).Canonicalize(ctx, raw, p.actor, mention.Source{
		TicketID: t.ID,
		Label:    t.DisplayID,
		Link:     mention.TicketPath(t),
	})
	p.changes["description"] = t.Description
}

// reconcileMembership runs one membership stage. Newly joined collections
// must belong to the ticket's project.
func (p *updatePass) reconcileMembership(ctx context.Context, kind model.CollectionKind, desired []string) error {
	added, _ := membership.Diff(p.ticket.CollectionIDs(kind), desired)
	for _, id := range added {
		c, err := p.tx.GetCollection(ctx, kind, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && c.ProjectID != p.ticket.ProjectID) {
			return inputError(fmt.Sprintf("unknown %s %q", kind, id))
		}
		if err != nil {
			return err
		}
	}
	ids, err := membership.Reconcile(ctx, p.tx, kind, p.ticket.ID, p.ticket.CollectionIDs(kind), desired)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return inputError(fmt.Sprintf("unknown %s: %v", kind, err))
		}
		return err
	}
	p.ticket.SetCollectionIDs(kind, ids)
	p.changes[kind.Plural()] = ids
	return nil
}

// reconcileLinks runs the link stage. Related tickets are written by the
// maintainer; the edited ticket's links land in the final write. The caller
// holds the locks for linkgraph.LockKeys(p.ticket, desired).
func (p *updatePass) reconcileLinks(ctx context.Context, m *linkgraph.Maintainer, desired model.DesiredLinks) error {
	res, err := m.WithStore(p.tx).ReconcileLocked(ctx, p.ticket, desired)
	if err != nil {
		return fmt.Errorf("reconcile links: %w", err)
	}
	p.ticket.Links = res.Links
	p.links = res
	p.changes["links"] = res.Links
	return nil
}

// publishLinkEvents emits one event per edge the pass added or removed.
func (s *TrackerServer) publishLinkEvents(ctx context.Context, actor string, res *linkgraph.Result) {
	if res == nil {
		return
	}
	for _, e := range res.Added {
		s.recordAndPublish(ctx, events.TopicLinkAdded, e.From, actor, events.LinkAdded{
			TicketID: e.From, RelatedTicketID: e.To, Relation: e.Relation,
		})
	}
	for _, e := range res.Removed {
		s.recordAndPublish(ctx, events.TopicLinkRemoved, e.From, actor, events.LinkRemoved{
			TicketID: e.From, RelatedTicketID: e.To,
		})
	}
}

// createTicket validates input, allocates a display id, runs the same
// membership and link stages an update does, and writes the ticket once.
func (s *TrackerServer) createTicket(ctx context.Context, actor string, scope model.Scope, in createTicketInput) (*model.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, inputError("title is required")
	}
	if err := s.checkTeam(ctx, scope); err != nil {
		return nil, err
	}

	id, err := idgen.GenerateWithPrefix(idgen.PrefixTicket)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	now := time.Now().UTC()
	draft := &model.Ticket{
		ID:        id,
		ProjectID: scope.ProjectID,
		TeamID:    scope.TeamID,
		Title:     strings.TrimSpace(in.Title),
		State:     model.State(orDefault(in.State, string(model.StateNew))),
		Type:      model.TicketType(orDefault(in.Type, string(model.TypeTask))),
		Priority:  in.Priority,
		Points:    in.Points,
		Assignee:  orDefault(in.Assignee, model.NoAssignee),
		Reporter:  orDefault(in.Reporter, model.NoReporter),
		Status:    model.StatusActive,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := model.ValidateTicket(draft); err != nil {
		return nil, inputError("invalid ticket: " + err.Error())
	}

	var keys []string
	if len(in.Links) > 0 {
		keys = linkgraph.LockKeys(draft, in.Links)
	}
	queue := &notify.Queue{}
	var created *model.Ticket
	var linkRes *linkgraph.Result
	err = s.lockedTx(ctx, keys, func(tx store.Store) error {
		displayID, err := tx.NextDisplayID(ctx, scope.ProjectID)
		if err != nil {
			return fmt.Errorf("allocate display id: %w", err)
		}
		draft.DisplayID = displayID

		p := newPass(tx, actor, draft, queue)
		p.ticket.StateHistory = []model.HistoryEntry{{Actor: actor, To: string(p.ticket.State), Timestamp: now}}
		if in.Description != "" {
			p.setDescription(ctx, in.Description)
		}
		for _, kind := range collectionKinds {
			var desired []string
			switch kind {
			case model.KindSprint:
				desired = in.Sprints
			case model.KindRelease:
				desired = in.Releases
			default:
				desired = in.Tags
			}
			if len(desired) == 0 {
				continue
			}
			if err := p.reconcileMembership(ctx, kind, desired); err != nil {
				return err
			}
		}
		if len(in.Links) > 0 {
			if err := p.reconcileLinks(ctx, s.links, in.Links); err != nil {
				return err
			}
		}
		p.notifyAssigned(ctx)
		if err := tx.CreateTicket(ctx, p.ticket); err != nil {
			return fmt.Errorf("failed to create ticket: %w", err)
		}
		created, linkRes = p.ticket, p.links
		return nil
	})
	if err != nil {
		queue.Discard()
		return nil, err
	}
	queue.Flush(ctx, s.notifier)

	s.recordAndPublish(ctx, events.TopicTicketCreated, created.ID, actor, events.TicketCreated{Ticket: created})
	s.publishLinkEvents(ctx, actor, linkRes)
	return created, nil
}

// updateTicket applies a partial update through the pipeline. The ticket,
// and for a link change every ticket the link stage touches, is locked and
// re-read inside the transaction so concurrent updates serialize on it.
func (s *TrackerServer) updateTicket(ctx context.Context, actor string, scope model.Scope, id string, in updateTicketInput) (*model.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	queue := &notify.Queue{}
	var (
		updated *model.Ticket
		pass    *updatePass
	)
	err := s.withTicketLocked(ctx, scope, id, in.Links, func(tx store.Store, current *model.Ticket) error {
		p := newPass(tx, actor, current, queue)

		if in.Title != nil {
			p.ticket.Title = strings.TrimSpace(*in.Title)
			p.changes["title"] = p.ticket.Title
		}
		if in.Description != nil {
			p.setDescription(ctx, *in.Description)
		}
		if in.State != nil {
			p.setState(model.State(*in.State))
		}
		if in.Type != nil {
			p.ticket.Type = model.TicketType(*in.Type)
			p.changes["type"] = p.ticket.Type
		}
		if in.Priority != nil {
			p.ticket.Priority = *in.Priority
			p.changes["priority"] = p.ticket.Priority
		}
		if in.Points != nil {
			p.ticket.Points = *in.Points
			p.changes["points"] = p.ticket.Points
		}
		if in.Assignee != nil {
			p.setAssignee(ctx, orDefault(*in.Assignee, model.NoAssignee))
		}
		if in.Reporter != nil {
			p.ticket.Reporter = orDefault(*in.Reporter, model.NoReporter)
			p.changes["reporter"] = p.ticket.Reporter
		}
		if err := model.ValidateTicket(p.ticket); err != nil {
			return inputError("invalid ticket: " + err.Error())
		}

		for _, kind := range collectionKinds {
			if desired := in.collection(kind); desired != nil {
				if err := p.reconcileMembership(ctx, kind, *desired); err != nil {
					return err
				}
			}
		}
		if in.Links != nil {
			if err := p.reconcileLinks(ctx, s.links, *in.Links); err != nil {
				return err
			}
		}

		if err := tx.UpdateTicket(ctx, p.ticket); err != nil {
			return fmt.Errorf("failed to update ticket: %w", err)
		}
		updated, pass = p.ticket, p
		return nil
	})
	if err != nil {
		queue.Discard()
		return nil, err
	}
	queue.Flush(ctx, s.notifier)

	s.recordAndPublish(ctx, events.TopicTicketUpdated, updated.ID, actor, events.TicketUpdated{
		Ticket:  updated,
		Changes: pass.changes,
	})
	s.publishLinkEvents(ctx, actor, pass.links)
	return updated, nil
}

// setLinks replaces a ticket's links. It is the update pipeline with only
// the link stage.
func (s *TrackerServer) setLinks(ctx context.Context, actor string, scope model.Scope, id string, desired model.DesiredLinks) (*model.Ticket, error) {
	if desired == nil {
		desired = model.DesiredLinks{}
	}
	return s.updateTicket(ctx, actor, scope, id, updateTicketInput{Links: &desired})
}

// deleteTicket soft-deletes a ticket. Its links are removed from both sides
// so no active ticket points at it; memberships are kept for history.
func (s *TrackerServer) deleteTicket(ctx context.Context, actor string, scope model.Scope, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	var linkRes *linkgraph.Result
	none := model.DesiredLinks{}
	err := s.withTicketLocked(ctx, scope, id, &none, func(tx store.Store, current *model.Ticket) error {
		p := newPass(tx, actor, current, &notify.Queue{})
		if err := p.reconcileLinks(ctx, s.links, none); err != nil {
			return err
		}
		p.ticket.Status = model.StatusDeleted
		if err := tx.UpdateTicket(ctx, p.ticket); err != nil {
			return fmt.Errorf("failed to delete ticket: %w", err)
		}
		linkRes = p.links
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAndPublish(ctx, events.TopicTicketDeleted, id, actor, events.TicketDeleted{TicketID: id})
	s.publishLinkEvents(ctx, actor, linkRes)
	return nil
}

// maxLockAttempts bounds how often withTicketLocked retries after the
// ticket's links changed between computing the lock set and locking it.
const maxLockAttempts = 5

var errLockSetChanged = errors.New("ticket links changed while locking")

// lockedTx runs fn in a transaction that holds the in-process locks and the
// row locks for keys until it ends. Every ticket transaction takes all of
// its ticket locks here, before any other write, in one sorted pass.
func (s *TrackerServer) lockedTx(ctx context.Context, keys []string, fn func(tx store.Store) error) error {
	unlock := s.locks.Lock(keys...)
	defer unlock()
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if len(keys) > 0 {
			if err := tx.LockTickets(ctx, keys); err != nil {
				return fmt.Errorf("lock tickets: %w", err)
			}
		}
		return fn(tx)
	})
}

// withTicketLocked re-reads active ticket id under lockedTx and hands it to
// fn. With desired set, the lock set also covers the ticket's current link
// targets and the desired ids. The set comes from an unlocked read; when the
// locked row turns out to need more keys, the transaction is rolled back and
// retried with the larger set.
func (s *TrackerServer) withTicketLocked(ctx context.Context, scope model.Scope, id string, desired *model.DesiredLinks, fn func(tx store.Store, current *model.Ticket) error) error {
	keys := []string{id}
	if desired != nil {
		t, err := s.store.GetTicket(ctx, id)
		if err != nil {
			return err
		}
		keys = linkgraph.LockKeys(t, *desired)
	}

	for attempt := 1; ; attempt++ {
		var need []string
		err := s.lockedTx(ctx, keys, func(tx store.Store) error {
			current, err := tx.GetTicket(ctx, id)
			if err != nil {
				return err
			}
			if current.Status != model.StatusActive || !inScope(current.Scope(), scope) {
				return fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
			}
			if desired != nil {
				need = linkgraph.LockKeys(current, *desired)
				if !coversKeys(keys, need) {
					return errLockSetChanged
				}
			}
			return fn(tx, current)
		})
		if errors.Is(err, errLockSetChanged) && attempt < maxLockAttempts {
			keys = mergeKeys(keys, need)
			continue
		}
		return err
	}
}

// coversKeys reports whether sorted held contains every key in need.
func coversKeys(held, need []string) bool {
	for _, k := range need {
		if _, ok := slices.BinarySearch(held, k); !ok {
			return false
		}
	}
	return true
}

func mergeKeys(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}

// getTicket returns an active ticket in scope. With render set, the display
// form of the description is filled in.
func (s *TrackerServer) getTicket(ctx context.Context, scope model.Scope, id string, render bool) (*model.Ticket, error) {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusActive || !inScope(t.Scope(), scope) {
		return nil, fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
	}
	if render {
		t.DescriptionHTML = resolver(s.store, t.Scope(), nil).Render(ctx, t.Description, nil)
	}
	return t, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
