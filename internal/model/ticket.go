package model

import "time"

// State is the workflow stage of a ticket.
type State string

const (
	StateNew        State = "new"
	StateReady      State = "ready"
	StateInProgress State = "in_progress"
	StateCodeReview State = "code_review"
	StateQA         State = "qa"
	StateDone       State = "done"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsValid checks whether the state is a known workflow stage.
func (s State) IsValid() bool {
	switch s {
	case StateNew, StateReady, StateInProgress, StateCodeReview, StateQA, StateDone:
		return true
	}
	return false
}

// TicketType categorizes a ticket.
type TicketType string

const (
	TypeFeature TicketType = "feature"
	TypeBug     TicketType = "bug"
	TypeTask    TicketType = "task"
	TypeStory   TicketType = "story"
)

// String returns the string representation of the ticket type.
func (t TicketType) String() string {
	return string(t)
}

// IsValid checks whether the ticket type is a known value.
func (t TicketType) IsValid() bool {
	switch t {
	case TypeFeature, TypeBug, TypeTask, TypeStory:
		return true
	}
	return false
}

// Status is the soft-delete marker shared by every stored document.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusDeleted
}

// Sentinels stored in place of a user id when nobody is assigned or reporting.
const (
	NoAssignee = "no-assignee"
	NoReporter = "no-reporter"
)

// HistoryEntry is one append-only audit record of a field transition.
type HistoryEntry struct {
	Actor     string    `json:"actor"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Scope identifies the project and team a ticket or comment belongs to.
type Scope struct {
	ProjectID string `json:"project_id"`
	TeamID    string `json:"team_id"`
}

// Ticket is the core work-item document. Membership lists and links are
// embedded in the document rather than kept in join tables.
type Ticket struct {
	ID          string     `json:"id"`
	DisplayID   string     `json:"display_id"`
	ProjectID   string     `json:"project_id"`
	TeamID      string     `json:"team_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	State       State      `json:"state"`
	Type        TicketType `json:"type"`
	Priority    int        `json:"priority"`
	Points      int        `json:"points"`
	Assignee    string     `json:"assignee"`
	Reporter    string     `json:"reporter"`

	Sprints  []string `json:"sprints"`
	Releases []string `json:"releases"`
	Tags     []string `json:"tags"`
	Links    []Link   `json:"links"`

	StateHistory    []HistoryEntry `json:"state_history"`
	AssigneeHistory []HistoryEntry `json:"assignee_history"`

	Status    Status    `json:"status"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// DescriptionHTML is the display form, filled only on render requests.
	DescriptionHTML string `json:"description_html,omitempty"`
}

// Scope returns the project/team scope of the ticket.
func (t *Ticket) Scope() Scope {
	return Scope{ProjectID: t.ProjectID, TeamID: t.TeamID}
}

// Clone returns a deep copy of the ticket, so callers can mutate the
// embedded slices without aliasing the original.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.Sprints = cloneStrings(t.Sprints)
	c.Releases = cloneStrings(t.Releases)
	c.Tags = cloneStrings(t.Tags)
	if t.Links != nil {
		c.Links = append([]Link(nil), t.Links...)
	}
	if t.StateHistory != nil {
		c.StateHistory = append([]HistoryEntry(nil), t.StateHistory...)
	}
	if t.AssigneeHistory != nil {
		c.AssigneeHistory = append([]HistoryEntry(nil), t.AssigneeHistory...)
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
