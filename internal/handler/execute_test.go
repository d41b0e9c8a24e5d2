package handler_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/handler"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/service"
)

func TestExecuteHandler_HandleExecute(t *testing.T) {
	api := newTestAPI(t)
	free := api.signUp(t, "user_free", "free@example.com", "Free")
	pro := api.signUp(t, "user_pro", "pro@example.com", "Pro")
	api.upgrade(t, "pro@example.com")

	t.Run("valid execution", func(t *testing.T) {
		api.sandbox.ReturnRes = &executor.ExecutionResult{
			Stdout:   "Hello World\n",
			ExitCode: 0,
			Duration: 100 * time.Millisecond,
		}
		api.sandbox.ReturnErr = nil

		rr := api.do(t, http.MethodPost, "/api/execute", free, map[string]string{
			"language": "javascript",
			"code":     "console.log('Hello World')",
		})

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		res := decode[service.RunResult](t, rr)
		require.NotNil(t, res.Execution)
		require.NotNil(t, res.Execution.Output)
		assert.Equal(t, "Hello World\n", *res.Execution.Output)
		assert.Nil(t, res.Execution.Error)
		assert.Equal(t, "Hello World\n", res.Result.Stdout)

		assert.Equal(t, "console.log('Hello World')", api.sandbox.CapturedReq.Code)
	})

	t.Run("free user asks for a pro language", func(t *testing.T) {
		calls := api.sandbox.Calls

		rr := api.do(t, http.MethodPost, "/api/execute", free, map[string]string{
			"language": "python",
			"code":     "print(1)",
		})

		assert.Equal(t, http.StatusPaymentRequired, rr.Code)
		assert.Equal(t, "upgrade_required", decode[handler.ErrorResponse](t, rr).Error)
		assert.Equal(t, calls, api.sandbox.Calls, "the sandbox must not be contacted")
	})

	t.Run("pro user runs a pro language", func(t *testing.T) {
		api.sandbox.ReturnRes = &executor.ExecutionResult{Stdout: "1\n"}
		api.sandbox.ReturnErr = nil

		rr := api.do(t, http.MethodPost, "/api/execute", pro, map[string]string{
			"language": "python",
			"code":     "print(1)",
		})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "python", api.sandbox.CapturedReq.Language)
	})

	t.Run("sandbox down", func(t *testing.T) {
		api.sandbox.ReturnErr = apperror.Unavailable("sandbox", errors.New("connection refused"))

		rr := api.do(t, http.MethodPost, "/api/execute", free, map[string]string{
			"language": "javascript",
			"code":     "1",
		})

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decode[handler.ErrorResponse](t, rr)
		assert.Equal(t, "unavailable", body.Error)
		assert.NotContains(t, body.Message, "connection refused")
	})

	t.Run("unsupported language", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/execute", free, map[string]string{
			"language": "cobol",
			"code":     "1",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/execute", free, `{"invalid_json":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/execute", "", map[string]string{"language": "javascript", "code": "1"})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestExecuteHandler_RecordAndHistory(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp(t, "user_ada", "ada@example.com", "Ada")

	rr := api.do(t, http.MethodPost, "/api/executions", token, map[string]any{
		"language": "javascript",
		"code":     "throw 1",
		"error":    "Uncaught 1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[model.Execution](t, rr)
	assert.Nil(t, first.Output)
	require.NotNil(t, first.Error)
	assert.Equal(t, "Uncaught 1", *first.Error)

	rr = api.do(t, http.MethodPost, "/api/executions", token, map[string]any{
		"language": "javascript",
		"code":     "1",
		"output":   "",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	second := decode[model.Execution](t, rr)
	require.NotNil(t, second.Output, "an empty output is still an output")

	t.Run("pro language is refused for a free user", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/executions", token, map[string]any{"language": "rust", "code": "fn main(){}"})

		assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	})

	t.Run("history newest first", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/me/executions", token, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		list := decode[[]model.Execution](t, rr)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})
}

func TestExecuteHandler_HandleStats(t *testing.T) {
	api := newTestAPI(t)
	ada := api.signUp(t, "user_ada", "ada@example.com", "Ada")
	bob := api.signUp(t, "user_bob", "bob@example.com", "Bob")

	for range 2 {
		rr := api.do(t, http.MethodPost, "/api/executions", ada, map[string]any{"language": "javascript", "code": "1"})
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	s := api.createSnippet(t, bob, "bob's")
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/snippets/"+s.ID+"/stars", ada, nil).Code)

	t.Run("public stats", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/users/user_ada/stats", "", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		stats := decode[model.UserStats](t, rr)
		assert.Equal(t, 2, stats.TotalExecutions)
		assert.Equal(t, 2, stats.Last24Hours)
		assert.Equal(t, "javascript", stats.FavoriteLanguage)
		assert.Equal(t, 1, stats.TotalStarred)
		assert.Equal(t, "javascript", stats.MostStarredLanguage)
	})

	t.Run("identity without history", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/users/user_nobody/stats", "", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		stats := decode[model.UserStats](t, rr)
		assert.Zero(t, stats.TotalExecutions)
		assert.Equal(t, service.NoLanguage, stats.FavoriteLanguage)
		assert.Equal(t, service.NoLanguage, stats.MostStarredLanguage)
	})
}
