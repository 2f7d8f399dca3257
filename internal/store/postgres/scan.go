package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// ticketJSONB holds the raw JSONB list columns of a ticket row.
type ticketJSONB struct {
	sprints, releases, tags, links, stateHistory, assigneeHistory []byte
}

func (j *ticketJSONB) decode(t *model.Ticket) error {
	for _, c := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"sprints", j.sprints, &t.Sprints},
		{"releases", j.releases, &t.Releases},
		{"tags", j.tags, &t.Tags},
		{"links", j.links, &t.Links},
		{"state_history", j.stateHistory, &t.StateHistory},
		{"assignee_history", j.assigneeHistory, &t.AssigneeHistory},
	} {
		if err := decodeJSONB(c.raw, c.dst); err != nil {
			return fmt.Errorf("decode %s: %w", c.name, err)
		}
	}
	return nil
}

// scanTicket scans a single row into a model.Ticket.
// The row must contain columns in the order defined by ticketColumns.
func scanTicket(row scannable) (*model.Ticket, error) {
	t, _, err := scanTicketRow(row, false)
	return t, err
}

// scanTicketWithTotal scans a row that has a leading total_count column
// followed by the standard ticket columns. Used by queryListTickets with
// COUNT(*) OVER().
func scanTicketWithTotal(row scannable) (*model.Ticket, int, error) {
	return scanTicketRow(row, true)
}

func scanTicketRow(row scannable, withTotal bool) (*model.Ticket, int, error) {
	var (
		t           model.Ticket
		total       int
		description sql.NullString
		createdBy   sql.NullString
		j           ticketJSONB
	)
	dest := []any{
		&t.ID,
		&t.DisplayID,
		&t.ProjectID,
		&t.TeamID,
		&t.Title,
		&description,
		&t.State,
		&t.Type,
		&t.Priority,
		&t.Points,
		&t.Assignee,
		&t.Reporter,
		&j.sprints,
		&j.releases,
		&j.tags,
		&j.links,
		&j.stateHistory,
		&j.assigneeHistory,
		&t.Status,
		&createdBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
	if withTotal {
		dest = append([]any{&total}, dest...)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}
	t.Description = description.String
	t.CreatedBy = createdBy.String
	if err := j.decode(&t); err != nil {
		return nil, 0, err
	}
	return &t, total, nil
}

// scanTickets scans multiple rows into a slice of model.Ticket pointers.
func scanTickets(rows *sql.Rows) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanProject(row scannable) (*model.Project, error) {
	var (
		p         model.Project
		members   []byte
		createdBy sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Key, &p.Mode, &p.TicketSeq, &members, &p.Status, &createdBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedBy = createdBy.String
	if err := decodeJSONB(members, &p.Members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	return &p, nil
}

func scanTeam(row scannable) (*model.Team, error) {
	var (
		tm      model.Team
		members []byte
	)
	if err := row.Scan(&tm.ID, &tm.ProjectID, &tm.Name, &members, &tm.Status, &tm.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSONB(members, &tm.Members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	return &tm, nil
}

func scanCollection(row scannable) (*model.Collection, error) {
	var (
		c          model.Collection
		teamID     sql.NullString
		tickets    []byte
		startAt    sql.NullTime
		endAt      sql.NullTime
		version    sql.NullString
		releasedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.Kind,
		&c.ProjectID,
		&teamID,
		&c.Name,
		&tickets,
		&c.Status,
		&c.CreatedAt,
		&startAt,
		&endAt,
		&version,
		&releasedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TeamID = teamID.String
	c.Version = version.String
	c.StartAt = timePtr(startAt)
	c.EndAt = timePtr(endAt)
	c.ReleasedAt = timePtr(releasedAt)
	if err := decodeJSONB(tickets, &c.Tickets); err != nil {
		return nil, fmt.Errorf("decode tickets: %w", err)
	}
	return &c, nil
}

// scanComment scans a single row into a model.Comment.
func scanComment(row scannable) (*model.Comment, error) {
	var c model.Comment
	err := row.Scan(
		&c.ID,
		&c.TicketID,
		&c.TeamID,
		&c.ProjectID,
		&c.Author,
		&c.Content,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanNotification(row scannable) (*model.Notification, error) {
	var (
		n         model.Notification
		actor     sql.NullString
		ticketID  sql.NullString
		commentID sql.NullString
		link      sql.NullString
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &actor, &ticketID, &commentID, &n.Message, &link, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Actor = actor.String
	n.TicketID = ticketID.String
	n.CommentID = commentID.String
	n.Link = link.String
	return &n, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.TicketID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanAll scans every row with scan and closes rows.
func scanAll[T any](rows *sql.Rows, scan func(scannable) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a sql.NullTime back to a *time.Time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbList encodes a slice for a JSONB list column. A nil slice is stored
// as an empty array so jsonb operators never see NULL.
func jsonbList[T any](s []T) []byte {
	if len(s) == 0 {
		return []byte("[]")
	}
	b, err := json.Marshal(s)
	if err != nil {
		// Element types are plain structs and strings; Marshal cannot fail.
		panic(fmt.Sprintf("jsonbList: %v", err))
	}
	return b
}

// decodeJSONB decodes a JSONB column into dst. NULL and empty input leave
// dst untouched.
func decodeJSONB(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
