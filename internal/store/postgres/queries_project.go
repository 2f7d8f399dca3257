package postgres

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/trackd/internal/model"
)

const (
	userColumns       = `id, username, name, email, created_at`
	projectColumns    = `id, name, key, mode, ticket_seq, members, status, created_by, created_at`
	teamColumns       = `id, project_id, name, members, status, created_at`
	collectionColumns = `id, kind, project_id, team_id, name, tickets, status, created_at,
	start_at, end_at, version, released_at`
)

func queryCreateUser(ctx context.Context, db executor, u *model.User) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, username, name, email, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Name, u.Email, u.CreatedAt,
	)
	return err
}

func queryGetUser(ctx context.Context, db executor, id string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func queryFindUserByUsername(ctx context.Context, db executor, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func queryListUsers(ctx context.Context, db executor) ([]*model.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return scanAll(rows, scanUser)
}

func queryCreateProject(ctx context.Context, db executor, p *model.Project) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, key, mode, ticket_seq, members, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Key, string(p.Mode), p.TicketSeq, jsonbList(p.Members),
		string(p.Status), nullString(p.CreatedBy), p.CreatedAt,
	)
	return err
}

func queryGetProject(ctx context.Context, db executor, id string) (*model.Project, error) {
	p, err := scanProject(db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func queryListProjects(ctx context.Context, db executor) ([]*model.Project, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE status = 'active'
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return scanAll(rows, scanProject)
}

func queryCreateTeam(ctx context.Context, db executor, tm *model.Team) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO teams (id, project_id, name, members, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tm.ID, tm.ProjectID, tm.Name, jsonbList(tm.Members), string(tm.Status), tm.CreatedAt,
	)
	return err
}

func queryGetTeam(ctx context.Context, db executor, id string) (*model.Team, error) {
	tm, err := scanTeam(db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return tm, nil
}

func queryListTeams(ctx context.Context, db executor, projectID string) ([]*model.Team, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+teamColumns+` FROM teams
		WHERE project_id = $1 AND status = 'active'
		ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return scanAll(rows, scanTeam)
}

func queryCreateCollection(ctx context.Context, db executor, c *model.Collection) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO collections (
			id, kind, project_id, team_id, name, tickets, status, created_at,
			start_at, end_at, version, released_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID,
		string(c.Kind),
		c.ProjectID,
		nullString(c.TeamID),
		c.Name,
		jsonbList(c.Tickets),
		string(c.Status),
		c.CreatedAt,
		nullTimePtr(c.StartAt),
		nullTimePtr(c.EndAt),
		nullString(c.Version),
		nullTimePtr(c.ReleasedAt),
	)
	return err
}

func queryGetCollection(ctx context.Context, db executor, kind model.CollectionKind, id string) (*model.Collection, error) {
	c, err := scanCollection(db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+` FROM collections WHERE id = $1 AND kind = $2`,
		id, string(kind)))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func queryListCollections(ctx context.Context, db executor, kind model.CollectionKind, scope model.Scope) ([]*model.Collection, error) {
	q := `SELECT ` + collectionColumns + ` FROM collections
		WHERE kind = $1 AND project_id = $2 AND status = 'active'`
	args := []any{string(kind), scope.ProjectID}
	if scope.TeamID != "" {
		q += ` AND team_id = $3`
		args = append(args, scope.TeamID)
	}
	q += ` ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Plural(), err)
	}
	return scanAll(rows, scanCollection)
}

// queryAddCollectionTicket appends ticketID to the collection's ticket list
// unless it is already present. The row is always touched, so a missing
// collection is reported as not found.
func queryAddCollectionTicket(ctx context.Context, db executor, kind model.CollectionKind, collectionID, ticketID string) error {
	return requireRow(db.ExecContext(ctx, `
		UPDATE collections
		SET tickets = CASE WHEN tickets ? $3 THEN tickets ELSE tickets || to_jsonb($3::text) END
		WHERE id = $1 AND kind = $2`,
		collectionID, string(kind), ticketID,
	))
}

func queryRemoveCollectionTicket(ctx context.Context, db executor, kind model.CollectionKind, collectionID, ticketID string) error {
	return requireRow(db.ExecContext(ctx, `
		UPDATE collections
		SET tickets = tickets - $3::text
		WHERE id = $1 AND kind = $2`,
		collectionID, string(kind), ticketID,
	))
}
