package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/codecraft/internal/service"
)

// EngagementHandler serves stars and comments on snippets.
type EngagementHandler struct {
	engagement *service.EngagementService
	logger     *slog.Logger
}

func NewEngagementHandler(engagement *service.EngagementService, logger *slog.Logger) *EngagementHandler {
	return &EngagementHandler{engagement: engagement, logger: logger}
}

type addCommentRequest struct {
	Content string `json:"content"`
}

// StarStatus is the body of GET /api/snippets/{id}/stars. Starred is
// always false for anonymous callers.
type StarStatus struct {
	Starred bool `json:"starred"`
	Count   int  `json:"count"`
}

// HandleStarStatus reports the caller's star and the snippet's star count.
//
// HTTP: GET /api/snippets/{id}/stars
// Auth: Optional
func (h *EngagementHandler) HandleStarStatus(w http.ResponseWriter, r *http.Request) {
	snippetID := chi.URLParam(r, "id")

	starred, err := h.engagement.IsStarred(r.Context(), callerIdentity(r), snippetID)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := h.engagement.StarCount(r.Context(), snippetID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StarStatus{Starred: starred, Count: count})
}

// HandleToggleStar flips the caller's star on a snippet.
//
// HTTP: POST /api/snippets/{id}/stars
// Auth: Required
//
// RESPONSE: {"starred": true} after starring, {"starred": false} after unstarring.
func (h *EngagementHandler) HandleToggleStar(w http.ResponseWriter, r *http.Request) {
	starred, err := h.engagement.ToggleStar(r.Context(), callerIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"starred": starred})
}

// HandleListComments returns a snippet's comments, newest first.
//
// HTTP: GET /api/snippets/{id}/comments
func (h *EngagementHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.engagement.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandleAddComment posts a comment as the caller.
//
// HTTP: POST /api/snippets/{id}/comments
// REQUEST BODY: {"content": "nice one"}
// Auth: Required
func (h *EngagementHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid comment JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	comment, err := h.engagement.AddComment(r.Context(), callerIdentity(r), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// HandleDeleteComment removes one of the caller's own comments.
//
// HTTP: DELETE /api/comments/{id}
// Auth: Required, author only
func (h *EngagementHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.engagement.DeleteComment(r.Context(), callerIdentity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
