package model

import "time"

// CollectionKind is the kind of ticket grouping: sprint, release or tag.
type CollectionKind string

const (
	KindSprint  CollectionKind = "sprint"
	KindRelease CollectionKind = "release"
	KindTag     CollectionKind = "tag"
)

// String returns the string representation of the kind.
func (k CollectionKind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a known value.
func (k CollectionKind) IsValid() bool {
	switch k {
	case KindSprint, KindRelease, KindTag:
		return true
	}
	return false
}

// Plural returns the URL segment for the kind ("sprints", "releases", "tags").
func (k CollectionKind) Plural() string {
	return string(k) + "s"
}

// ParseCollectionKind maps a plural URL segment back to its kind.
func ParseCollectionKind(plural string) (CollectionKind, bool) {
	for _, k := range []CollectionKind{KindSprint, KindRelease, KindTag} {
		if k.Plural() == plural {
			return k, true
		}
	}
	return "", false
}

// Collection is a sprint, release or tag. It holds the ids of its member
// tickets; each member ticket holds the collection id in the matching list.
type Collection struct {
	ID        string         `json:"id"`
	Kind      CollectionKind `json:"kind"`
	ProjectID string         `json:"project_id"`
	TeamID    string         `json:"team_id"`
	Name      string         `json:"name"`
	Tickets   []string       `json:"tickets"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`

	// Sprint-only.
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	// Release-only.
	Version    string     `json:"version,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// CollectionIDs returns the ticket's membership list for kind.
func (t *Ticket) CollectionIDs(kind CollectionKind) []string {
	switch kind {
	case KindSprint:
		return t.Sprints
	case KindRelease:
		return t.Releases
	case KindTag:
		return t.Tags
	}
	return nil
}

// SetCollectionIDs replaces the ticket's membership list for kind.
func (t *Ticket) SetCollectionIDs(kind CollectionKind, ids []string) {
	switch kind {
	case KindSprint:
		t.Sprints = ids
	case KindRelease:
		t.Releases = ids
	case KindTag:
		t.Tags = ids
	}
}
