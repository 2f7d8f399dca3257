package postgres

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/trackd/internal/model"
)

const (
	commentColumns      = `id, ticket_id, team_id, project_id, author, content, status, created_at, updated_at`
	notificationColumns = `id, user_id, kind, actor, ticket_id, comment_id, message, link, read, created_at`
)

func queryAddComment(ctx context.Context, db executor, c *model.Comment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO comments (id, ticket_id, team_id, project_id, author, content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.TicketID, c.TeamID, c.ProjectID, c.Author, c.Content,
		string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func queryGetComment(ctx context.Context, db executor, id string) (*model.Comment, error) {
	c, err := scanComment(db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func queryUpdateComment(ctx context.Context, db executor, c *model.Comment) error {
	err := db.QueryRowContext(ctx, `
		UPDATE comments SET content = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Content, string(c.Status),
	).Scan(&c.UpdatedAt)
	return notFound(err)
}

func queryListComments(ctx context.Context, db executor, ticketID string) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE ticket_id = $1 AND status = 'active'
		ORDER BY created_at ASC`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return scanAll(rows, scanComment)
}

func queryAddNotification(ctx context.Context, db executor, n *model.Notification) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, actor, ticket_id, comment_id, message, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, string(n.Kind), nullString(n.Actor), nullString(n.TicketID),
		nullString(n.CommentID), n.Message, nullString(n.Link), n.Read, n.CreatedAt,
	)
	return err
}

func queryListNotifications(ctx context.Context, db executor, userID string, unreadOnly bool) ([]*model.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		q += ` AND NOT read`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return scanAll(rows, scanNotification)
}

func queryMarkNotificationRead(ctx context.Context, db executor, userID, id string) error {
	return requireRow(db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, ticket_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.TicketID, nullString(e.Actor), []byte(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, ticketID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, ticket_id, actor, payload, created_at
		FROM events
		WHERE ticket_id = $1
		ORDER BY created_at ASC`,
		ticketID,
	)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanEvent)
}
