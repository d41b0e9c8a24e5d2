package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/entitlement"
	"github.com/sakif/codecraft/internal/events"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/handler"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository/sqlite"
	"github.com/sakif/codecraft/internal/service"
	"github.com/sakif/codecraft/internal/webhook"
)

const (
	testJWTSecret   = "handler-test-secret-at-least-32-bytes!"
	testClerkSecret = "whsec_aGFuZGxlci10ZXN0LXNpZ25pbmcta2V5"
	testLemonSecret = "lemon-handler-secret"
)

// MockExecutor stands in for the sandbox so handler tests never need
// Docker or network access.
type MockExecutor struct {
	CapturedReq executor.ExecutionRequest
	Calls       int
	ReturnRes   *executor.ExecutionResult
	ReturnErr   error
}

func (m *MockExecutor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	m.Calls++
	m.CapturedReq = req
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

// testAPI is the full handler stack over an in-memory database.
type testAPI struct {
	router  http.Handler
	tokens  *auth.TokenService
	users   *service.UserService
	sandbox *MockExecutor
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalogue, err := config.LoadCatalogue("")
	require.NoError(t, err)
	policy := entitlement.NewPolicy(catalogue.FreeTags()...)

	tokens, err := auth.NewTokenService(testJWTSecret)
	require.NoError(t, err)

	publisher := events.NewLogPublisher(logger)
	sandbox := &MockExecutor{}

	users := service.NewUserService(db, publisher, logger)
	snippets := service.NewSnippetService(db, db, publisher, logger)
	engagement := service.NewEngagementService(db, db, db, db, logger)
	executions := service.NewExecutionService(service.ExecutionDeps{
		Executions: db,
		Users:      db,
		Stars:      db,
		Snippets:   db,
		Policy:     policy,
		Languages:  catalogue,
		Sandbox:    sandbox,
	}, logger)
	ingestor := webhook.NewIngestor(webhook.Secrets{Clerk: testClerkSecret, LemonSqueezy: testLemonSecret}, users, users, logger)

	snippetHandler := handler.NewSnippetHandler(snippets, logger)
	engagementHandler := handler.NewEngagementHandler(engagement, logger)
	executeHandler := handler.NewExecuteHandler(executions, logger)
	userHandler := handler.NewUserHandler(users, engagement, catalogue, policy, logger)
	webhookHandler := handler.NewWebhookHandler(ingestor, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/languages", userHandler.HandleLanguages)
			r.Get("/snippets", snippetHandler.HandleList)
			r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
			r.Get("/snippets/{id}/comments", engagementHandler.HandleListComments)
			r.Get("/snippets/{id}/stars", engagementHandler.HandleStarStatus)
			r.Get("/users/{identity}/stats", executeHandler.HandleStats)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
			r.Post("/snippets/{id}/comments", engagementHandler.HandleAddComment)
			r.Delete("/comments/{id}", engagementHandler.HandleDeleteComment)
			r.Post("/snippets/{id}/stars", engagementHandler.HandleToggleStar)
			r.Get("/me", userHandler.HandleMe)
			r.Get("/me/starred", userHandler.HandleStarred)
			r.Get("/me/executions", executeHandler.HandleList)
			r.Post("/executions", executeHandler.HandleRecord)
			r.Post("/execute", executeHandler.HandleExecute)
		})
	})
	r.Post("/webhooks/clerk", webhookHandler.HandleClerk)
	r.Post("/webhooks/lemon-squeezy", webhookHandler.HandleLemonSqueezy)

	return &testAPI{router: r, tokens: tokens, users: users, sandbox: sandbox}
}

// signUp syncs a user and returns a bearer token for it.
func (a *testAPI) signUp(t *testing.T, identity, email, name string) string {
	t.Helper()
	_, err := a.users.EnsureUser(context.Background(), identity, email, name)
	require.NoError(t, err)
	token, err := a.tokens.Generate(identity)
	require.NoError(t, err)
	return token
}

func (a *testAPI) upgrade(t *testing.T, email string) {
	t.Helper()
	u, err := a.users.UpgradeToPro(context.Background(), email, "cust_1", "order_1")
	require.NoError(t, err)
	require.NotNil(t, u)
}

// do sends a request through the router. body may be nil, a string, or
// anything json.Marshal accepts.
func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func (a *testAPI) createSnippet(t *testing.T, token, title string) model.Snippet {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/snippets", token, map[string]string{
		"title":    title,
		"language": "javascript",
		"code":     "console.log(1)",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[model.Snippet](t, rr)
}
