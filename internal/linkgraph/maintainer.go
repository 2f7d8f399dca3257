package linkgraph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// Store is the persistence the Maintainer needs.
type Store interface {
	FindTicketsByIDs(ctx context.Context, scope model.Scope, ids []string) ([]*model.Ticket, error)
	UpdateTicketLinks(ctx context.Context, id string, scope model.Scope, links []model.Link) error
}

// RowLocker is implemented by stores that can lock ticket rows for the rest
// of a transaction.
type RowLocker interface {
	LockTickets(ctx context.Context, ids []string) error
}

// Edge is one directed link that a reconcile pass added or removed on the
// edited ticket.
type Edge struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Relation model.Relation `json:"relation"`
}

// Result is the outcome of a reconcile pass.
type Result struct {
	// Links is the edited ticket's final link list. The caller writes it.
	Links   []model.Link
	Added   []Edge
	Removed []Edge
	// Updated lists related tickets whose links were persisted.
	Updated []string
}

// Maintainer reconciles a ticket's links against a desired set.
type Maintainer struct {
	store Store
	locks *Locks
}

// NewMaintainer creates a Maintainer. locks may be shared across
// maintainers; nil gets a private lock set.
func NewMaintainer(s Store, locks *Locks) *Maintainer {
	if locks == nil {
		locks = NewLocks()
	}
	return &Maintainer{store: s, locks: locks}
}

// WithStore returns a Maintainer that shares m's locks but reads and writes
// through s, typically a transaction-scoped store.
func (m *Maintainer) WithStore(s Store) *Maintainer {
	return &Maintainer{store: s, locks: m.locks}
}

// Reconcile brings the links between ticket and every ticket it currently
// links to or wants to link to in line with desired.
//
// Each related ticket that changes is written immediately via
// UpdateTicketLinks. The edited ticket is not written; its final links are
// returned in Result.Links and ticket itself is left unmodified.
//
// A desired entry with an invalid relation value is ignored and any existing
// edge to that ticket is left as is. The first store error aborts the pass;
// related tickets already written are not rolled back here.
func (m *Maintainer) Reconcile(ctx context.Context, ticket *model.Ticket, desired model.DesiredLinks) (*Result, error) {
	keys := LockKeys(ticket, desired)
	unlock := m.locks.Lock(keys...)
	defer unlock()

	if rl, ok := m.store.(RowLocker); ok {
		if err := rl.LockTickets(ctx, keys); err != nil {
			return nil, fmt.Errorf("lock tickets: %w", err)
		}
	}
	return m.ReconcileLocked(ctx, ticket, desired)
}

// ReconcileLocked is Reconcile for callers that already hold the in-process
// and row locks for LockKeys(ticket, desired), typically for the whole of a
// transaction that also writes ticket.
func (m *Maintainer) ReconcileLocked(ctx context.Context, ticket *model.Ticket, desired model.DesiredLinks) (*Result, error) {
	ids := relatedIDs(ticket, desired)

	var related []*model.Ticket
	if len(ids) > 0 {
		var err error
		related, err = m.store.FindTicketsByIDs(ctx, ticket.Scope(), ids)
		if err != nil {
			return nil, fmt.Errorf("find related tickets: %w", err)
		}
	}
	slices.SortFunc(related, func(a, b *model.Ticket) int { return strings.Compare(a.ID, b.ID) })

	edited := ticket.Clone()
	fetched := make(map[string]bool, len(related))
	res := &Result{}

	for _, t := range related {
		if t.ID == edited.ID {
			continue
		}
		fetched[t.ID] = true

		before, had := Relation(edited, t.ID)
		var changed bool
		raw, want := desired[t.ID]
		if !want {
			edited.Links, _ = drop(edited.Links, t.ID)
			t.Links, changed = drop(t.Links, edited.ID)
			if had {
				res.Removed = append(res.Removed, Edge{From: edited.ID, To: t.ID, Relation: before})
			}
		} else {
			r, ok := model.ParseRelation(raw)
			if !ok {
				continue
			}
			edited.Links, _ = upsert(edited.Links, t.ID, r)
			t.Links, changed = upsert(t.Links, edited.ID, r.Pair())
			if !had || before != r {
				if had {
					res.Removed = append(res.Removed, Edge{From: edited.ID, To: t.ID, Relation: before})
				}
				res.Added = append(res.Added, Edge{From: edited.ID, To: t.ID, Relation: r})
			}
		}

		if changed {
			if err := m.store.UpdateTicketLinks(ctx, t.ID, t.Scope(), t.Links); err != nil {
				return nil, fmt.Errorf("update links of %s: %w", t.ID, err)
			}
			res.Updated = append(res.Updated, t.ID)
		}
	}

	final := make([]model.Link, 0, len(edited.Links))
	for _, l := range edited.Links {
		if l.TicketID == edited.ID {
			continue
		}
		if _, want := desired[l.TicketID]; !want && !fetched[l.TicketID] {
			continue
		}
		final = append(final, l)
	}
	res.Links = final
	return res, nil
}

// LockKeys returns the sorted ids a reconcile of ticket against desired may
// read or write: the ticket, its current link targets and the desired ids.
func LockKeys(ticket *model.Ticket, desired model.DesiredLinks) []string {
	return sortedUnique(append(relatedIDs(ticket, desired), ticket.ID))
}

// relatedIDs returns the sorted union of ticket's current link targets and
// the desired ids, excluding the ticket itself.
func relatedIDs(ticket *model.Ticket, desired model.DesiredLinks) []string {
	ids := make([]string, 0, len(ticket.Links)+len(desired))
	for _, l := range ticket.Links {
		ids = append(ids, l.TicketID)
	}
	for id := range desired {
		ids = append(ids, id)
	}
	ids = sortedUnique(ids)
	return slices.DeleteFunc(ids, func(id string) bool { return id == ticket.ID })
}
