package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/entitlement"
	"github.com/sakif/codecraft/internal/service"
)

// UserHandler serves the caller's own profile and the language catalogue
// the profile's tier is judged against.
type UserHandler struct {
	users      *service.UserService
	engagement *service.EngagementService
	languages  *config.Catalogue
	policy     entitlement.Policy
	logger     *slog.Logger
}

func NewUserHandler(
	users *service.UserService,
	engagement *service.EngagementService,
	languages *config.Catalogue,
	policy entitlement.Policy,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		users:      users,
		engagement: engagement,
		languages:  languages,
		policy:     policy,
		logger:     logger,
	}
}

// LanguageInfo is one entry of GET /api/languages.
type LanguageInfo struct {
	Tag     string `json:"tag"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Free    bool   `json:"free"`
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required
//
// A valid token for an identity that was never synced is 404
// user_not_found. The frontend retries after the identity webhook lands.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByIdentity(r.Context(), callerIdentity(r))
	if err != nil {
		h.logger.Debug("HandleMe: lookup failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleStarred lists the snippets the caller starred, in starring order.
//
// HTTP: GET /api/me/starred
// Auth: Required
func (h *UserHandler) HandleStarred(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.engagement.StarredSnippets(r.Context(), callerIdentity(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippets)
}

// HandleLanguages lists every runnable language and whether free users
// may run it.
//
// HTTP: GET /api/languages
func (h *UserHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	out := make([]LanguageInfo, 0, len(h.languages.Languages))
	for _, lang := range h.languages.Languages {
		out = append(out, LanguageInfo{
			Tag:     lang.Tag,
			Name:    lang.Name,
			Version: lang.Runtime.Version,
			Free:    h.policy.IsFree(lang.Tag),
		})
	}

	writeJSON(w, http.StatusOK, out)
}
