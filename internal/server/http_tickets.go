package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// handleCreateTicket handles POST /v1/projects/{pid}/teams/{tid}/tickets.
func (s *TrackerServer) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var in createTicketInput
	if !decodeBody(w, r, &in) {
		return
	}
	t, err := s.createTicket(r.Context(), actor(r), scopeOf(r), in)
	if err != nil {
		writeServiceError(w, err, "team")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleListTickets handles GET /v1/projects/{pid}/teams/{tid}/tickets.
func (s *TrackerServer) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := scopeOf(r)
	filter := model.TicketFilter{
		ProjectID: scope.ProjectID,
		TeamID:    scope.TeamID,
		Assignee:  q.Get("assignee"),
		Sprint:    q.Get("sprint"),
		Release:   q.Get("release"),
		Tag:       q.Get("tag"),
		Search:    q.Get("search"),
		Sort:      q.Get("sort"),
		Deleted:   q.Get("deleted") == "true",
	}
	if v := q.Get("state"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.State = append(filter.State, model.State(st))
		}
	}
	if v := q.Get("type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			filter.Type = append(filter.Type, model.TicketType(t))
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	tickets, total, err := s.store.ListTickets(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}

	// Ensure tickets is never null in JSON output.
	if tickets == nil {
		tickets = []*model.Ticket{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tickets": tickets,
		"total":   total,
	})
}

// handleGetTicket handles GET /v1/projects/{pid}/teams/{tid}/tickets/{id}.
func (s *TrackerServer) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.getTicket(r.Context(), scopeOf(r), r.PathValue("id"), wantsRender(r))
	if err != nil {
		writeServiceError(w, err, "ticket")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTicket handles PATCH /v1/projects/{pid}/teams/{tid}/tickets/{id}.
func (s *TrackerServer) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	var in updateTicketInput
	if !decodeBody(w, r, &in) {
		return
	}
	t, err := s.updateTicket(r.Context(), actor(r), scopeOf(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err, "ticket")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTicket handles DELETE /v1/projects/{pid}/teams/{tid}/tickets/{id}.
func (s *TrackerServer) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteTicket(r.Context(), actor(r), scopeOf(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err, "ticket")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setLinksRequest is the body of PUT …/links: related ticket id to relation
// value. Ids left out lose their link.
type setLinksRequest struct {
	Links model.DesiredLinks `json:"links"`
}

// handleSetLinks handles PUT /v1/projects/{pid}/teams/{tid}/tickets/{id}/links.
func (s *TrackerServer) handleSetLinks(w http.ResponseWriter, r *http.Request) {
	var req setLinksRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.setLinks(r.Context(), actor(r), scopeOf(r), r.PathValue("id"), req.Links)
	if err != nil {
		writeServiceError(w, err, "ticket")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleGetEvents handles GET /v1/tickets/{id}/events.
func (s *TrackerServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("id")
	if ticketID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	evts, err := s.store.GetEvents(r.Context(), ticketID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}

	if evts == nil {
		evts = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
