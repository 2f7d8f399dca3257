// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.db, user)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return queryGetUser(ctx, s.db, id)
}

func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return queryFindUserByUsername(ctx, s.db, username)
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	return queryListUsers(ctx, s.db)
}

func (s *PostgresStore) CreateProject(ctx context.Context, project *model.Project) error {
	return queryCreateProject(ctx, s.db, project)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.db, id)
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.db)
}

func (s *PostgresStore) NextDisplayID(ctx context.Context, projectID string) (string, error) {
	return queryNextDisplayID(ctx, s.db, projectID)
}

func (s *PostgresStore) CreateTeam(ctx context.Context, team *model.Team) error {
	return queryCreateTeam(ctx, s.db, team)
}

func (s *PostgresStore) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	return queryGetTeam(ctx, s.db, id)
}

func (s *PostgresStore) ListTeams(ctx context.Context, projectID string) ([]*model.Team, error) {
	return queryListTeams(ctx, s.db, projectID)
}

func (s *PostgresStore) CreateCollection(ctx context.Context, c *model.Collection) error {
	return queryCreateCollection(ctx, s.db, c)
}

func (s *PostgresStore) GetCollection(ctx context.Context, kind model.CollectionKind, id string) (*model.Collection, error) {
	return queryGetCollection(ctx, s.db, kind, id)
}

func (s *PostgresStore) ListCollections(ctx context.Context, kind model.CollectionKind, scope model.Scope) ([]*model.Collection, error) {
	return queryListCollections(ctx, s.db, kind, scope)
}

func (s *PostgresStore) AddCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error {
	return queryAddCollectionTicket(ctx, s.db, kind, collectionID, ticketID)
}

func (s *PostgresStore) RemoveCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error {
	return queryRemoveCollectionTicket(ctx, s.db, kind, collectionID, ticketID)
}

func (s *PostgresStore) CreateTicket(ctx context.Context, ticket *model.Ticket) error {
	return queryCreateTicket(ctx, s.db, ticket)
}

func (s *PostgresStore) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return queryGetTicket(ctx, s.db, id)
}

func (s *PostgresStore) FindTicketByDisplayID(ctx context.Context, scope model.Scope, displayID string) (*model.Ticket, error) {
	return queryFindTicketByDisplayID(ctx, s.db, scope, displayID)
}

func (s *PostgresStore) FindTicketsByIDs(ctx context.Context, scope model.Scope, ids []string) ([]*model.Ticket, error) {
	return queryFindTicketsByIDs(ctx, s.db, scope, ids)
}

func (s *PostgresStore) ListTickets(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error) {
	return queryListTickets(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateTicket(ctx context.Context, ticket *model.Ticket) error {
	return queryUpdateTicket(ctx, s.db, ticket)
}

func (s *PostgresStore) UpdateTicketLinks(ctx context.Context, id string, scope model.Scope, links []model.Link) error {
	return queryUpdateTicketLinks(ctx, s.db, id, scope, links)
}

func (s *PostgresStore) CountTickets(ctx context.Context, scope model.Scope) (int, error) {
	return queryCountTickets(ctx, s.db, scope)
}

func (s *PostgresStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.db, comment)
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	return queryGetComment(ctx, s.db, id)
}

func (s *PostgresStore) UpdateComment(ctx context.Context, comment *model.Comment) error {
	return queryUpdateComment(ctx, s.db, comment)
}

func (s *PostgresStore) ListComments(ctx context.Context, ticketID string) ([]*model.Comment, error) {
	return queryListComments(ctx, s.db, ticketID)
}

func (s *PostgresStore) AddNotification(ctx context.Context, n *model.Notification) error {
	return queryAddNotification(ctx, s.db, n)
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error) {
	return queryListNotifications(ctx, s.db, userID, unreadOnly)
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return queryMarkNotificationRead(ctx, s.db, userID, id)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, ticketID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, ticketID)
}

// LockTickets is a no-op outside a transaction.
func (s *PostgresStore) LockTickets(ctx context.Context, ids []string) error {
	return nil
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.tx, user)
}

func (s *txStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return queryGetUser(ctx, s.tx, id)
}

func (s *txStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return queryFindUserByUsername(ctx, s.tx, username)
}

func (s *txStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	return queryListUsers(ctx, s.tx)
}

func (s *txStore) CreateProject(ctx context.Context, project *model.Project) error {
	return queryCreateProject(ctx, s.tx, project)
}

func (s *txStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.tx, id)
}

func (s *txStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.tx)
}

func (s *txStore) NextDisplayID(ctx context.Context, projectID string) (string, error) {
	return queryNextDisplayID(ctx, s.tx, projectID)
}

func (s *txStore) CreateTeam(ctx context.Context, team *model.Team) error {
	return queryCreateTeam(ctx, s.tx, team)
}

func (s *txStore) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	return queryGetTeam(ctx, s.tx, id)
}

func (s *txStore) ListTeams(ctx context.Context, projectID string) ([]*model.Team, error) {
	return queryListTeams(ctx, s.tx, projectID)
}

func (s *txStore) CreateCollection(ctx context.Context, c *model.Collection) error {
	return queryCreateCollection(ctx, s.tx, c)
}

func (s *txStore) GetCollection(ctx context.Context, kind model.CollectionKind, id string) (*model.Collection, error) {
	return queryGetCollection(ctx, s.tx, kind, id)
}

func (s *txStore) ListCollections(ctx context.Context, kind model.CollectionKind, scope model.Scope) ([]*model.Collection, error) {
	return queryListCollections(ctx, s.tx, kind, scope)
}

func (s *txStore) AddCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error {
	return queryAddCollectionTicket(ctx, s.tx, kind, collectionID, ticketID)
}

func (s *txStore) RemoveCollectionTicket(ctx context.Context, kind model.CollectionKind, collectionID, ticketID string) error {
	return queryRemoveCollectionTicket(ctx, s.tx, kind, collectionID, ticketID)
}

func (s *txStore) CreateTicket(ctx context.Context, ticket *model.Ticket) error {
	return queryCreateTicket(ctx, s.tx, ticket)
}

func (s *txStore) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return queryGetTicket(ctx, s.tx, id)
}

func (s *txStore) FindTicketByDisplayID(ctx context.Context, scope model.Scope, displayID string) (*model.Ticket, error) {
	return queryFindTicketByDisplayID(ctx, s.tx, scope, displayID)
}

func (s *txStore) FindTicketsByIDs(ctx context.Context, scope model.Scope, ids []string) ([]*model.Ticket, error) {
	return queryFindTicketsByIDs(ctx, s.tx, scope, ids)
}

func (s *txStore) ListTickets(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error) {
	return queryListTickets(ctx, s.tx, filter)
}

func (s *txStore) UpdateTicket(ctx context.Context, ticket *model.Ticket) error {
	return queryUpdateTicket(ctx, s.tx, ticket)
}

func (s *txStore) UpdateTicketLinks(ctx context.Context, id string, scope model.Scope, links []model.Link) error {
	return queryUpdateTicketLinks(ctx, s.tx, id, scope, links)
}

func (s *txStore) CountTickets(ctx context.Context, scope model.Scope) (int, error) {
	return queryCountTickets(ctx, s.tx, scope)
}

func (s *txStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.tx, comment)
}

func (s *txStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	return queryGetComment(ctx, s.tx, id)
}

func (s *txStore) UpdateComment(ctx context.Context, comment *model.Comment) error {
	return queryUpdateComment(ctx, s.tx, comment)
}

func (s *txStore) ListComments(ctx context.Context, ticketID string) ([]*model.Comment, error) {
	return queryListComments(ctx, s.tx, ticketID)
}

func (s *txStore) AddNotification(ctx context.Context, n *model.Notification) error {
	return queryAddNotification(ctx, s.tx, n)
}

func (s *txStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error) {
	return queryListNotifications(ctx, s.tx, userID, unreadOnly)
}

func (s *txStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return queryMarkNotificationRead(ctx, s.tx, userID, id)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, ticketID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, ticketID)
}

// LockTickets takes SELECT ... FOR UPDATE row locks held until the
// transaction ends.
func (s *txStore) LockTickets(ctx context.Context, ids []string) error {
	return queryLockTickets(ctx, s.tx, ids)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
