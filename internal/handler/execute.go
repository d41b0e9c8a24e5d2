package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/codecraft/internal/service"
)

// ExecuteHandler handles code execution: running code in the sandbox,
// recording runs the browser performed itself, and the history/stats reads
// derived from those records.
type ExecuteHandler struct {
	executions *service.ExecutionService
	logger     *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(executions *service.ExecutionService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		executions: executions,
		logger:     logger,
	}
}

// executeRequest is the body of POST /api/execute.
type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// recordRequest is the body of POST /api/executions.
//
// Output and Error are pointers: a missing field and an empty string are
// stored differently.
type recordRequest struct {
	Language string  `json:"language"`
	Code     string  `json:"code"`
	Output   *string `json:"output"`
	Error    *string `json:"error"`
}

// HandleExecute runs the caller's code in the sandbox and records the run.
//
// HTTP: POST /api/execute
// REQUEST BODY: {"language": "python", "code": "print('hi')"}
// Auth: Required
//
// A free user asking for a pro language gets 402 before the sandbox is
// contacted. A sandbox outage is 503 and nothing is recorded.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.executions.Run(r.Context(), callerIdentity(r), req.Language, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleRecord stores a run the client already performed.
//
// HTTP: POST /api/executions
// REQUEST BODY: {"language": "javascript", "code": "...", "output": "1\n"}
// Auth: Required
func (h *ExecuteHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution record body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	exec, err := h.executions.Record(r.Context(), callerIdentity(r), service.RecordInput{
		Language: req.Language,
		Code:     req.Code,
		Output:   req.Output,
		Error:    req.Error,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, exec)
}

// HandleList pages the caller's own execution history, newest first.
//
// HTTP: GET /api/me/executions?limit=20&offset=0
// Auth: Required
func (h *ExecuteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	execs, err := h.executions.List(r.Context(), callerIdentity(r), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, execs)
}

// HandleStats returns the derived statistics of any user. Profiles are
// public, so no auth is needed.
//
// HTTP: GET /api/users/{identity}/stats
func (h *ExecuteHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.executions.Stats(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
