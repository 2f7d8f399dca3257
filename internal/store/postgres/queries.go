package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/trackd/internal/idgen"
	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// ticketColumns is the column list used for SELECT statements on the tickets table.
const ticketColumns = `id, display_id, project_id, team_id, title, description,
	state, type, priority, points, assignee, reporter,
	sprints, releases, tags, links, state_history, assignee_history,
	status, created_by, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notFound maps sql.ErrNoRows to store.ErrNotFound, keeping both in the chain.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	return err
}

// requireRow returns store.ErrNotFound when an UPDATE touched no rows.
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(sql.ErrNoRows)
	}
	return nil
}

func queryCreateTicket(ctx context.Context, db executor, t *model.Ticket) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tickets (
			id, display_id, project_id, team_id, title, description,
			state, type, priority, points, assignee, reporter,
			sprints, releases, tags, links, state_history, assignee_history,
			status, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22
		)`,
		t.ID,
		t.DisplayID,
		t.ProjectID,
		t.TeamID,
		t.Title,
		t.Description,
		string(t.State),
		string(t.Type),
		t.Priority,
		t.Points,
		t.Assignee,
		t.Reporter,
		jsonbList(t.Sprints),
		jsonbList(t.Releases),
		jsonbList(t.Tags),
		jsonbList(t.Links),
		jsonbList(t.StateHistory),
		jsonbList(t.AssigneeHistory),
		string(t.Status),
		nullString(t.CreatedBy),
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

func queryGetTicket(ctx context.Context, db executor, id string) (*model.Ticket, error) {
	row := db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	t, err := scanTicket(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func queryFindTicketByDisplayID(ctx context.Context, db executor, scope model.Scope, displayID string) (*model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets
		WHERE project_id = $1 AND display_id = $2 AND status = 'active'`
	args := []any{scope.ProjectID, displayID}
	if scope.TeamID != "" {
		q += ` AND team_id = $3`
		args = append(args, scope.TeamID)
	}
	t, err := scanTicket(db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func queryFindTicketsByIDs(ctx context.Context, db executor, scope model.Scope, ids []string) ([]*model.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE id = ANY($1) AND project_id = $2 AND team_id = $3 AND status = 'active'
		ORDER BY id`,
		pq.Array(ids), scope.ProjectID, scope.TeamID,
	)
	if err != nil {
		return nil, fmt.Errorf("find tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func queryListTickets(ctx context.Context, db executor, filter model.TicketFilter) ([]*model.Ticket, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg())
		args = append(args, filter.ProjectID)
	}
	if filter.TeamID != "" {
		whereClauses = append(whereClauses, "team_id = "+nextArg())
		args = append(args, filter.TeamID)
	}
	if !filter.Deleted {
		whereClauses = append(whereClauses, "status = 'active'")
	}

	if len(filter.State) > 0 {
		placeholders := make([]string, len(filter.State))
		for i, s := range filter.State {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "state IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.Type) > 0 {
		placeholders := make([]string, len(filter.Type))
		for i, t := range filter.Type {
			placeholders[i] = nextArg()
			args = append(args, string(t))
		}
		whereClauses = append(whereClauses, "type IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Assignee != "" {
		whereClauses = append(whereClauses, "assignee = "+nextArg())
		args = append(args, filter.Assignee)
	}

	// Membership filters use the jsonb key-exists operator on the embedded lists.
	for _, m := range []struct{ col, id string }{
		{"sprints", filter.Sprint},
		{"releases", filter.Release},
		{"tags", filter.Tag},
	} {
		if m.id != "" {
			whereClauses = append(whereClauses, m.col+" ? "+nextArg())
			args = append(args, m.id)
		}
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + ticketColumns + " FROM tickets" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	var total int
	for rows.Next() {
		t, n, err := scanTicketWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tickets: %w", err)
		}
		total = n
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan tickets: %w", err)
	}

	return tickets, total, nil
}

func queryUpdateTicket(ctx context.Context, db executor, t *model.Ticket) error {
	err := db.QueryRowContext(ctx, `
		UPDATE tickets SET
			title = $2,
			description = $3,
			state = $4,
			type = $5,
			priority = $6,
			points = $7,
			assignee = $8,
			reporter = $9,
			sprints = $10,
			releases = $11,
			tags = $12,
			links = $13,
			state_history = $14,
			assignee_history = $15,
			status = $16,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID,
		t.Title,
		t.Description,
		string(t.State),
		string(t.Type),
		t.Priority,
		t.Points,
		t.Assignee,
		t.Reporter,
		jsonbList(t.Sprints),
		jsonbList(t.Releases),
		jsonbList(t.Tags),
		jsonbList(t.Links),
		jsonbList(t.StateHistory),
		jsonbList(t.AssigneeHistory),
		string(t.Status),
	).Scan(&t.UpdatedAt)
	return notFound(err)
}

func queryUpdateTicketLinks(ctx context.Context, db executor, id string, scope model.Scope, links []model.Link) error {
	return requireRow(db.ExecContext(ctx, `
		UPDATE tickets SET links = $4, updated_at = NOW()
		WHERE id = $1 AND project_id = $2 AND team_id = $3`,
		id, scope.ProjectID, scope.TeamID, jsonbList(links),
	))
}

func queryCountTickets(ctx context.Context, db executor, scope model.Scope) (int, error) {
	q := `SELECT COUNT(*) FROM tickets WHERE project_id = $1 AND status = 'active'`
	args := []any{scope.ProjectID}
	if scope.TeamID != "" {
		q += ` AND team_id = $2`
		args = append(args, scope.TeamID)
	}
	var n int
	if err := db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

// queryLockTickets takes row locks on the given tickets in id order, so
// concurrent transactions acquire them in the same order.
func queryLockTickets(ctx context.Context, db executor, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM tickets WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("lock tickets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func queryNextDisplayID(ctx context.Context, db executor, projectID string) (string, error) {
	var (
		key string
		n   int
	)
	err := db.QueryRowContext(ctx, `
		UPDATE projects SET ticket_seq = ticket_seq + 1
		WHERE id = $1
		RETURNING key, ticket_seq`,
		projectID,
	).Scan(&key, &n)
	if err != nil {
		return "", notFound(err)
	}
	if key == "" {
		key = model.DefaultProjectKey
	}
	return idgen.DisplayID(key, n), nil
}

func parseSortClause(sort string) string {
	if sort == "" {
		return "created_at DESC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"priority": true, "created_at": true, "updated_at": true,
		"title": true, "state": true, "type": true, "points": true,
	}
	if !allowed[col] {
		return "created_at DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
