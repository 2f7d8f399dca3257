package model

// TicketFilter holds criteria for querying tickets.
type TicketFilter struct {
	ProjectID string       `json:"project_id,omitempty"`
	TeamID    string       `json:"team_id,omitempty"`
	State     []State      `json:"state,omitempty"`
	Type      []TicketType `json:"type,omitempty"`
	Assignee  string       `json:"assignee,omitempty"`
	Sprint    string       `json:"sprint,omitempty"`
	Release   string       `json:"release,omitempty"`
	Tag       string       `json:"tag,omitempty"`
	Search    string       `json:"search,omitempty"`  // substring match on title/description
	Deleted   bool         `json:"deleted,omitempty"` // include soft-deleted tickets
	Sort      string       `json:"sort,omitempty"`    // e.g. "-priority", "created_at"; prefix "-" = descending
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
}
