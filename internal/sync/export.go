package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// Source is the read side of the store that an export needs.
// store.Store satisfies it.
type Source interface {
	ListUsers(ctx context.Context) ([]*model.User, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)
	ListTeams(ctx context.Context, projectID string) ([]*model.Team, error)
	ListCollections(ctx context.Context, kind model.CollectionKind, scope model.Scope) ([]*model.Collection, error)
	ListTickets(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error)
	ListComments(ctx context.Context, ticketID string) ([]*model.Comment, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	UserCount       int       `json:"user_count"`
	ProjectCount    int       `json:"project_count"`
	TeamCount       int       `json:"team_count"`
	CollectionCount int       `json:"collection_count"`
	TicketCount     int       `json:"ticket_count"`
	CommentCount    int       `json:"comment_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// snapshot is everything one export writes, in output order.
type snapshot struct {
	users       []*model.User
	projects    []*model.Project
	teams       []*model.Team
	collections []*model.Collection
	tickets     []*model.Ticket
	comments    []*model.Comment
}

// ExportJSONL writes users, projects, teams, collections, tickets and
// comments from s as JSONL to w. Soft-deleted tickets are included so a
// restore keeps display ids stable. Tickets are sorted by ID and each
// ticket's comments follow in creation order.
func ExportJSONL(ctx context.Context, s Source, w io.Writer) error {
	snap, err := collect(ctx, s)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		UserCount:       len(snap.users),
		ProjectCount:    len(snap.projects),
		TeamCount:       len(snap.teams),
		CollectionCount: len(snap.collections),
		TicketCount:     len(snap.tickets),
		CommentCount:    len(snap.comments),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, u := range snap.users {
		if err := enc.Encode(record{Type: "user", Data: u}); err != nil {
			return fmt.Errorf("encode user %s: %w", u.ID, err)
		}
	}
	for _, p := range snap.projects {
		if err := enc.Encode(record{Type: "project", Data: p}); err != nil {
			return fmt.Errorf("encode project %s: %w", p.ID, err)
		}
	}
	for _, tm := range snap.teams {
		if err := enc.Encode(record{Type: "team", Data: tm}); err != nil {
			return fmt.Errorf("encode team %s: %w", tm.ID, err)
		}
	}
	for _, c := range snap.collections {
		if err := enc.Encode(record{Type: string(c.Kind), Data: c}); err != nil {
			return fmt.Errorf("encode %s %s: %w", c.Kind, c.ID, err)
		}
	}
	for _, t := range snap.tickets {
		if err := enc.Encode(record{Type: "ticket", Data: t}); err != nil {
			return fmt.Errorf("encode ticket %s: %w", t.ID, err)
		}
	}
	for _, c := range snap.comments {
		if err := enc.Encode(record{Type: "comment", Data: c}); err != nil {
			return fmt.Errorf("encode comment %s: %w", c.ID, err)
		}
	}

	return nil
}

func collect(ctx context.Context, s Source) (*snapshot, error) {
	var snap snapshot
	var err error

	if snap.users, err = s.ListUsers(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Slice(snap.users, func(i, j int) bool { return snap.users[i].ID < snap.users[j].ID })

	if snap.projects, err = s.ListProjects(ctx); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	sort.Slice(snap.projects, func(i, j int) bool { return snap.projects[i].ID < snap.projects[j].ID })

	for _, p := range snap.projects {
		teams, err := s.ListTeams(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list teams for %s: %w", p.ID, err)
		}
		snap.teams = append(snap.teams, teams...)

		for _, kind := range []model.CollectionKind{model.KindSprint, model.KindRelease, model.KindTag} {
			cs, err := s.ListCollections(ctx, kind, model.Scope{ProjectID: p.ID})
			if err != nil {
				return nil, fmt.Errorf("list %s for %s: %w", kind.Plural(), p.ID, err)
			}
			snap.collections = append(snap.collections, cs...)
		}
	}

	// No project or team filter and no limit: every ticket.
	if snap.tickets, _, err = s.ListTickets(ctx, model.TicketFilter{Deleted: true, Sort: "created_at"}); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	sort.Slice(snap.tickets, func(i, j int) bool { return snap.tickets[i].ID < snap.tickets[j].ID })

	for _, t := range snap.tickets {
		comments, err := s.ListComments(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("list comments for %s: %w", t.ID, err)
		}
		snap.comments = append(snap.comments, comments...)
	}

	return &snap, nil
}
