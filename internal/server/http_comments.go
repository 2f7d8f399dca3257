package server

import (
	"net/http"
)

// commentRequest is the body of comment create and update calls.
type commentRequest struct {
	Content string `json:"content"`
}

// handleAddComment handles POST …/tickets/{id}/comments.
func (s *TrackerServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.addComment(r.Context(), actor(r), scopeOf(r), r.PathValue("id"), req.Content)
	if err != nil {
		writeServiceError(w, err, "ticket")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleListComments handles GET …/tickets/{id}/comments.
func (s *TrackerServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.listComments(r.Context(), scopeOf(r), r.PathValue("id"), wantsRender(r))
	if err != nil {
		writeServiceError(w, err, "ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// handleUpdateComment handles PATCH …/tickets/{id}/comments/{cid}.
func (s *TrackerServer) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.updateComment(r.Context(), actor(r), scopeOf(r), r.PathValue("id"), r.PathValue("cid"), req.Content)
	if err != nil {
		writeServiceError(w, err, "comment")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteComment handles DELETE …/tickets/{id}/comments/{cid}.
func (s *TrackerServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteComment(r.Context(), actor(r), scopeOf(r), r.PathValue("id"), r.PathValue("cid")); err != nil {
		writeServiceError(w, err, "comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
