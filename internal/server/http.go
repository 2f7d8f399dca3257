package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// ActorHeader carries the id of the acting user. It stands in for a session
// layer in front of the API.
const ActorHeader = "X-Trackd-User"

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *TrackerServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, PresenceMiddleware(s.Presence, h))
	}
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	handle("POST /v1/users", s.handleCreateUser)
	handle("GET /v1/users", s.handleListUsers)
	handle("GET /v1/users/{uid}", s.handleGetUser)

	handle("POST /v1/projects", s.handleCreateProject)
	handle("GET /v1/projects", s.handleListProjects)
	handle("GET /v1/projects/{pid}", s.handleGetProject)
	handle("GET /v1/projects/{pid}/presence", s.handlePresence)
	handle("POST /v1/projects/{pid}/teams", s.handleCreateTeam)
	handle("GET /v1/projects/{pid}/teams", s.handleListTeams)
	handle("POST /v1/projects/{pid}/teams/{tid}/{kind}", s.handleCreateCollection)
	handle("GET /v1/projects/{pid}/teams/{tid}/{kind}", s.handleListCollections)

	handle("POST /v1/projects/{pid}/teams/{tid}/tickets", s.handleCreateTicket)
	handle("GET /v1/projects/{pid}/teams/{tid}/tickets", s.handleListTickets)
	handle("GET /v1/projects/{pid}/teams/{tid}/tickets/{id}", s.handleGetTicket)
	handle("PATCH /v1/projects/{pid}/teams/{tid}/tickets/{id}", s.handleUpdateTicket)
	handle("DELETE /v1/projects/{pid}/teams/{tid}/tickets/{id}", s.handleDeleteTicket)
	handle("PUT /v1/projects/{pid}/teams/{tid}/tickets/{id}/links", s.handleSetLinks)
	handle("POST /v1/projects/{pid}/teams/{tid}/tickets/{id}/comments", s.handleAddComment)
	handle("GET /v1/projects/{pid}/teams/{tid}/tickets/{id}/comments", s.handleListComments)
	handle("PATCH /v1/projects/{pid}/teams/{tid}/tickets/{id}/comments/{cid}", s.handleUpdateComment)
	handle("DELETE /v1/projects/{pid}/teams/{tid}/tickets/{id}/comments/{cid}", s.handleDeleteComment)
	handle("GET /v1/tickets/{id}/events", s.handleGetEvents)

	handle("GET /v1/notifications", s.handleListNotifications)
	handle("POST /v1/notifications/{nid}/read", s.handleMarkNotificationRead)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)

	return RecoveryMiddleware(LoggingMiddleware(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *TrackerServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actor returns the acting user of r.
func actor(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

// scopeOf returns the project/team scope named in r's path.
func scopeOf(r *http.Request) model.Scope {
	return model.Scope{ProjectID: r.PathValue("pid"), TeamID: r.PathValue("tid")}
}

// wantsRender reports whether the caller asked for display-form content.
func wantsRender(r *http.Request) bool {
	return r.URL.Query().Get("render") == "html"
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service error to a response: inputError is 400,
// forbiddenError is 403, store.ErrNotFound is 404, anything else is 500.
func writeServiceError(w http.ResponseWriter, err error, entity string) {
	var (
		ie inputError
		fe forbiddenError
	)
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.As(err, &fe):
		writeError(w, http.StatusForbidden, fe.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, entity+" not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
