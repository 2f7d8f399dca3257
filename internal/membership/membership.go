// Package membership keeps sprint, release and tag membership consistent on
// both sides: a ticket lists its collections and each collection lists its
// tickets.
package membership

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// Store is the persistence membership reconciliation needs. Both calls must
// be idempotent and return store.ErrNotFound for an unknown collection.
type Store interface {
	AddCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error
	RemoveCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error
}

// Reconcile compares the ticket's current membership for kind with the
// desired ids, adds the ticket to new collections and removes it from
// dropped ones. It returns the desired list with duplicates and empty ids
// removed, in first-seen order, for the caller to store on the ticket.
func Reconcile(ctx context.Context, s Store, kind model.CollectionKind, ticketID string, current, desired []string) ([]string, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid collection kind %q", kind)
	}
	want := dedupe(desired)
	have := dedupe(current)

	wantSet := make(map[string]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
	}
	haveSet := make(map[string]struct{}, len(have))
	for _, id := range have {
		haveSet[id] = struct{}{}
	}

	// Remove memberships that are no longer desired.
	for _, id := range have {
		if _, ok := wantSet[id]; !ok {
			if err := s.RemoveCollectionTicket(ctx, kind, id, ticketID); err != nil {
				return nil, fmt.Errorf("remove ticket from %s %s: %w", kind, id, err)
			}
		}
	}
	// Add memberships that are new.
	for _, id := range want {
		if _, ok := haveSet[id]; !ok {
			if err := s.AddCollectionTicket(ctx, kind, id, ticketID); err != nil {
				return nil, fmt.Errorf("add ticket to %s %s: %w", kind, id, err)
			}
		}
	}
	return want, nil
}

// Diff returns the ids present in desired but not current, and in current
// but not desired.
func Diff(current, desired []string) (added, removed []string) {
	cur := make(map[string]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
	}
	des := make(map[string]struct{}, len(desired))
	for _, id := range dedupe(desired) {
		des[id] = struct{}{}
		if _, ok := cur[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range dedupe(current) {
		if _, ok := des[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
