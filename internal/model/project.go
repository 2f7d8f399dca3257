package model

import "time"

// ProjectMode distinguishes course projects from open collaborator projects.
type ProjectMode string

const (
	ModeClass        ProjectMode = "class"
	ModeCollaborator ProjectMode = "collaborator"
)

// IsValid checks whether the mode is a known value.
func (m ProjectMode) IsValid() bool {
	return m == ModeClass || m == ModeCollaborator
}

// DefaultProjectKey is the display-id prefix used when a project sets none.
const DefaultProjectKey = "TICKET"

// Project is the top-level container for teams and tickets.
type Project struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Key       string      `json:"key"`
	Mode      ProjectMode `json:"mode"`
	TicketSeq int         `json:"ticket_seq"`
	Members   []string    `json:"members"`
	Status    Status      `json:"status"`
	CreatedBy string      `json:"created_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Team groups members of a project; tickets are scoped to a team.
type Team struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account that can be assigned, mentioned and notified.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
