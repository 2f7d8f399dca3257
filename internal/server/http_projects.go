package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// handleCreateUser handles POST /v1/users.
func (s *TrackerServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in createUserInput
	if !decodeBody(w, r, &in) {
		return
	}
	u, err := s.createUser(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// handleListUsers handles GET /v1/users.
func (s *TrackerServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleGetUser handles GET /v1/users/{uid}.
func (s *TrackerServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeServiceError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleCreateProject handles POST /v1/projects.
func (s *TrackerServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in createProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.createProject(r.Context(), actor(r), in)
	if err != nil {
		writeServiceError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleListProjects handles GET /v1/projects.
func (s *TrackerServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleGetProject handles GET /v1/projects/{pid}.
func (s *TrackerServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeServiceError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCreateTeam handles POST /v1/projects/{pid}/teams.
func (s *TrackerServer) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var in createTeamInput
	if !decodeBody(w, r, &in) {
		return
	}
	tm, err := s.createTeam(r.Context(), actor(r), r.PathValue("pid"), in)
	if err != nil {
		writeServiceError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusCreated, tm)
}

// handleListTeams handles GET /v1/projects/{pid}/teams.
func (s *TrackerServer) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	if teams == nil {
		teams = []*model.Team{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// collectionKind parses the {kind} path segment, writing a 404 for anything
// other than sprints, releases or tags.
func collectionKind(w http.ResponseWriter, r *http.Request) (model.CollectionKind, bool) {
	kind, ok := model.ParseCollectionKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
	}
	return kind, ok
}

// handleCreateCollection handles POST /v1/projects/{pid}/teams/{tid}/{kind}.
func (s *TrackerServer) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	kind, ok := collectionKind(w, r)
	if !ok {
		return
	}
	var in createCollectionInput
	if !decodeBody(w, r, &in) {
		return
	}
	c, err := s.createCollection(r.Context(), actor(r), scopeOf(r), kind, in)
	if err != nil {
		writeServiceError(w, err, "team")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleListCollections handles GET /v1/projects/{pid}/teams/{tid}/{kind}.
func (s *TrackerServer) handleListCollections(w http.ResponseWriter, r *http.Request) {
	kind, ok := collectionKind(w, r)
	if !ok {
		return
	}
	cs, err := s.store.ListCollections(r.Context(), kind, scopeOf(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list "+kind.Plural())
		return
	}
	if cs == nil {
		cs = []*model.Collection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{kind.Plural(): cs})
}

// handleListNotifications handles GET /v1/notifications.
// ?unread=true restricts the result to unread notifications.
func (s *TrackerServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := s.listNotifications(r.Context(), actor(r), r.URL.Query().Get("unread") == "true")
	if err != nil {
		writeServiceError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": ns})
}

// handleMarkNotificationRead handles POST /v1/notifications/{nid}/read.
func (s *TrackerServer) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.markNotificationRead(r.Context(), actor(r), r.PathValue("nid")); err != nil {
		writeServiceError(w, err, "notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// presenceEntry is one row of the presence roster.
type presenceEntry struct {
	UserID       string  `json:"user_id"`
	LastAction   string  `json:"last_action,omitempty"`
	TicketID     string  `json:"ticket_id,omitempty"`
	IdleSecs     float64 `json:"idle_secs"`
	Idle         bool    `json:"idle,omitempty"`
	InProgressID string  `json:"in_progress_id,omitempty"`
	InProgress   string  `json:"in_progress,omitempty"`
}

// handlePresence handles GET /v1/projects/{pid}/presence.
// Returns users recently active in the project, each with the ticket they
// have in progress there, if any.
func (s *TrackerServer) handlePresence(w http.ResponseWriter, r *http.Request) {
	if s.Presence == nil {
		writeJSON(w, http.StatusOK, map[string]any{"users": []any{}})
		return
	}

	// Parse optional stale_threshold_secs query param (default: 30 min).
	staleThreshold := 30 * time.Minute
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			staleThreshold = time.Duration(secs) * time.Second
		}
	}

	projectID := r.PathValue("pid")
	entries := s.Presence.Roster(staleThreshold, projectID)
	users := make([]presenceEntry, 0, len(entries))
	for _, e := range entries {
		pe := presenceEntry{
			UserID:     e.UserID,
			LastAction: e.LastAction,
			TicketID:   e.TicketID,
			IdleSecs:   e.IdleSecs,
			Idle:       e.Idle,
		}
		tickets, _, err := s.store.ListTickets(r.Context(), model.TicketFilter{
			ProjectID: projectID,
			Assignee:  e.UserID,
			State:     []model.State{model.StateInProgress},
			Limit:     1,
		})
		if err == nil && len(tickets) > 0 {
			pe.InProgressID = tickets[0].DisplayID
			pe.InProgress = tickets[0].Title
		}
		users = append(users, pe)
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
