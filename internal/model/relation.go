package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Relation is the integer-coded type of a ticket link. Values come in
// adjacent pairs: an even value is the forward direction and value+1 is its
// inverse.
type Relation int

const (
	RelationBlocks Relation = iota
	RelationBlockedBy
	RelationDuplicates
	RelationDuplicatedBy
	RelationRelatesTo
	RelationRelatedTo
	RelationParentOf
	RelationChildOf

	relationCount
)

var relationLabels = [relationCount]string{
	"blocks",
	"blocked by",
	"duplicates",
	"duplicated by",
	"relates to",
	"related to",
	"parent of",
	"child of",
}

// IsValid reports whether r is a member of the closed relation set.
func (r Relation) IsValid() bool {
	return r >= 0 && r < relationCount
}

// Pair returns the inverse relation: v+1 for even v, v-1 for odd v.
func (r Relation) Pair() Relation {
	if r%2 == 0 {
		return r + 1
	}
	return r - 1
}

// String returns the human label of the relation.
func (r Relation) String() string {
	if !r.IsValid() {
		return fmt.Sprintf("relation(%d)", int(r))
	}
	return relationLabels[r]
}

// Relations returns every valid relation value in order.
func Relations() []Relation {
	out := make([]Relation, 0, relationCount)
	for r := Relation(0); r < relationCount; r++ {
		out = append(out, r)
	}
	return out
}

// ParseRelation parses a raw relation value such as "0" or "3".
// It returns false when the value is not an integer or not a valid member.
func ParseRelation(s string) (Relation, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	r := Relation(n)
	if !r.IsValid() {
		return 0, false
	}
	return r, true
}

// Link is a directed edge from the owning ticket to TicketID.
type Link struct {
	TicketID string   `json:"ticket_id"`
	Relation Relation `json:"relation"`
}

// DesiredLinks maps a related ticket id to the raw relation value requested
// for it. Values stay raw so invalid entries can be skipped per entry rather
// than failing the whole request.
type DesiredLinks map[string]string

// UnmarshalJSON accepts both numeric and string relation values:
// {"tk-1": 0, "tk-2": "3"}.
func (d *DesiredLinks) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DesiredLinks, len(raw))
	for id, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '"' {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("links[%s]: %w", id, err)
			}
			out[id] = s
			continue
		}
		out[id] = string(v)
	}
	*d = out
	return nil
}
