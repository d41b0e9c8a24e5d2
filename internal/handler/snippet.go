package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/codecraft/internal/service"
)

// SnippetHandler exposes the shared snippet library over HTTP.
//
// The handler is thin on purpose: it decodes the request, pulls the caller
// identity out of the context and hands both to the service. Ownership,
// validation and the delete cascade all live in service.SnippetService.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// createSnippetRequest is the expected JSON body for POST /api/snippets.
type createSnippetRequest struct {
	Title    string `json:"title"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

// HandleList returns a page of snippets, newest first.
//
// HTTP: GET /api/snippets?limit=20&offset=0
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippets, err := h.snippets.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns a single snippet.
//
// HTTP: GET /api/snippets/{id}
//
// chi.URLParam reads the {id} segment of the matched route pattern.
// For a request to GET /api/snippets/abc123, it returns "abc123".
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleCreate saves a new snippet owned by the caller.
//
// HTTP: POST /api/snippets
// REQUEST BODY: {"title": "hello", "language": "javascript", "code": "console.log(1)"}
// Auth: Required
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSnippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), callerIdentity(r), req.Title, req.Language, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	// 201 Created is the correct status for a successful POST that creates a resource.
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleDelete removes a snippet together with its comments and stars.
//
// HTTP: DELETE /api/snippets/{id}
// Auth: Required, owner only
//
// Returns 204 No Content on success. There is nothing to send back; the
// snippet no longer exists.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.snippets.Delete(r.Context(), callerIdentity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
