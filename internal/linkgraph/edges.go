// Package linkgraph keeps ticket links symmetric: whenever ticket A links to
// B with relation R, B links back to A with R's pair.
package linkgraph

import (
	"errors"

	"github.com/alfredjeanlab/trackd/internal/model"
)

var (
	// ErrSelfLink is returned when a ticket is linked to itself.
	ErrSelfLink = errors.New("a ticket cannot link to itself")
	// ErrInvalidRelation is returned for relation values outside the closed set.
	ErrInvalidRelation = errors.New("invalid relation")
)

// SetLink ensures a carries exactly one entry for b with relation r, and b
// exactly one entry for a with r.Pair(). Existing entries are replaced.
func SetLink(a, b *model.Ticket, r model.Relation) error {
	if a.ID == b.ID {
		return ErrSelfLink
	}
	if !r.IsValid() {
		return ErrInvalidRelation
	}
	a.Links, _ = upsert(a.Links, b.ID, r)
	b.Links, _ = upsert(b.Links, a.ID, r.Pair())
	return nil
}

// RemoveLink drops every entry for b on a and every entry for a on b.
func RemoveLink(a, b *model.Ticket) {
	a.Links, _ = drop(a.Links, b.ID)
	b.Links, _ = drop(b.Links, a.ID)
}

// Relation returns the relation t holds toward id, if any.
func Relation(t *model.Ticket, id string) (model.Relation, bool) {
	for _, l := range t.Links {
		if l.TicketID == id {
			return l.Relation, true
		}
	}
	return 0, false
}

// upsert returns links with exactly one entry for id carrying r, placed where
// the first existing entry was (or appended), and whether anything changed.
func upsert(links []model.Link, id string, r model.Relation) ([]model.Link, bool) {
	out := make([]model.Link, 0, len(links)+1)
	placed, changed := false, false
	for _, l := range links {
		if l.TicketID != id {
			out = append(out, l)
			continue
		}
		if placed {
			changed = true
			continue
		}
		placed = true
		if l.Relation != r {
			changed = true
		}
		out = append(out, model.Link{TicketID: id, Relation: r})
	}
	if !placed {
		out = append(out, model.Link{TicketID: id, Relation: r})
		changed = true
	}
	return out, changed
}

// drop returns links without any entry for id, and whether anything was removed.
func drop(links []model.Link, id string) ([]model.Link, bool) {
	out := make([]model.Link, 0, len(links))
	for _, l := range links {
		if l.TicketID != id {
			out = append(out, l)
		}
	}
	return out, len(out) != len(links)
}
