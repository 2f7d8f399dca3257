package server

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alfredjeanlab/trackd/internal/events"
	"github.com/alfredjeanlab/trackd/internal/idgen"
	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// usernamePattern keeps usernames usable as single-word @mentions.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// projectKeyPattern keeps display ids of the form KEY-n parseable.
var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,15}$`)

type createUserInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func (s *TrackerServer) createUser(ctx context.Context, in createUserInput) (*model.User, error) {
	if !usernamePattern.MatchString(in.Username) {
		return nil, inputError("username must be 1-64 letters, digits, '_', '.' or '-'")
	}
	if _, err := s.store.FindUserByUsername(ctx, in.Username); err == nil {
		return nil, inputError(fmt.Sprintf("username %q is taken", in.Username))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	id, err := idgen.GenerateWithPrefix(idgen.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	u := &model.User{
		ID:        id,
		Username:  in.Username,
		Name:      in.Name,
		Email:     in.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

type createProjectInput struct {
	Name    string   `json:"name"`
	Key     string   `json:"key"`
	Mode    string   `json:"mode"`
	Members []string `json:"members"`
}

func (s *TrackerServer) createProject(ctx context.Context, actor string, in createProjectInput) (*model.Project, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, inputError("name is required")
	}
	key := strings.ToUpper(orDefault(in.Key, model.DefaultProjectKey))
	if !projectKeyPattern.MatchString(key) {
		return nil, inputError(fmt.Sprintf("invalid project key %q", in.Key))
	}
	mode := model.ProjectMode(orDefault(in.Mode, string(model.ModeClass)))
	if !mode.IsValid() {
		return nil, inputError(fmt.Sprintf("invalid project mode %q", in.Mode))
	}
	id, err := idgen.GenerateWithPrefix(idgen.PrefixProject)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	p := &model.Project{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		Key:       key,
		Mode:      mode,
		Members:   withMember(in.Members, actor),
		Status:    model.StatusActive,
		CreatedBy: actor,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	s.recordAndPublish(ctx, events.TopicProjectCreated, "", actor, events.ProjectCreated{Project: p})
	return p, nil
}

type createTeamInput struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (s *TrackerServer) createTeam(ctx context.Context, actor, projectID string, in createTeamInput) (*model.Team, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, inputError("name is required")
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	id, err := idgen.GenerateWithPrefix(idgen.PrefixTeam)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	tm := &model.Team{
		ID:        id,
		ProjectID: projectID,
		Name:      strings.TrimSpace(in.Name),
		Members:   withMember(in.Members, actor),
		Status:    model.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateTeam(ctx, tm); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	s.recordAndPublish(ctx, events.TopicTeamCreated, "", actor, events.TeamCreated{Team: tm})
	return tm, nil
}

type createCollectionInput struct {
	Name       string     `json:"name"`
	StartAt    *time.Time `json:"start_at,omitempty"`
	EndAt      *time.Time `json:"end_at,omitempty"`
	Version    string     `json:"version,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

var collectionPrefixes = map[model.CollectionKind]string{
	model.KindSprint:  idgen.PrefixSprint,
	model.KindRelease: idgen.PrefixRelease,
	model.KindTag:     idgen.PrefixTag,
}

func (s *TrackerServer) createCollection(ctx context.Context, actor string, scope model.Scope, kind model.CollectionKind, in createCollectionInput) (*model.Collection, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.checkTeam(ctx, scope); err != nil {
		return nil, err
	}
	id, err := idgen.GenerateWithPrefix(collectionPrefixes[kind])
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	c := &model.Collection{
		ID:         id,
		Kind:       kind,
		ProjectID:  scope.ProjectID,
		TeamID:     scope.TeamID,
		Name:       strings.TrimSpace(in.Name),
		Status:     model.StatusActive,
		CreatedAt:  time.Now().UTC(),
		StartAt:    in.StartAt,
		EndAt:      in.EndAt,
		Version:    in.Version,
		ReleasedAt: in.ReleasedAt,
	}
	if err := model.ValidateCollection(c); err != nil {
		return nil, inputError("invalid " + kind.String() + ": " + err.Error())
	}
	if err := s.store.CreateCollection(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	s.recordAndPublish(ctx, events.CollectionCreatedTopic(kind), "", actor, events.CollectionCreated{Collection: c})
	return c, nil
}

// checkTeam reports store.ErrNotFound unless the team exists in the project.
func (s *TrackerServer) checkTeam(ctx context.Context, scope model.Scope) error {
	team, err := s.store.GetTeam(ctx, scope.TeamID)
	if err != nil {
		return err
	}
	if team.ProjectID != scope.ProjectID || team.Status != model.StatusActive {
		return fmt.Errorf("team %s in project %s: %w", scope.TeamID, scope.ProjectID, store.ErrNotFound)
	}
	return nil
}

// withMember returns members with id appended if it is not already present.
func withMember(members []string, id string) []string {
	for _, m := range members {
		if m == id {
			return members
		}
	}
	return append(members, id)
}
