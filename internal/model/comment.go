package model

import "time"

// Comment is a remark on a ticket. Content is stored in canonical form,
// with mentions as @<userId> and #<ticketId>.
type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	TeamID    string    `json:"team_id"`
	ProjectID string    `json:"project_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ContentHTML is the display form, filled only on render requests.
	ContentHTML string `json:"content_html,omitempty"`
}

// Scope returns the project/team scope of the comment.
func (c *Comment) Scope() Scope {
	return Scope{ProjectID: c.ProjectID, TeamID: c.TeamID}
}
