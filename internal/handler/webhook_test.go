package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codecraft/internal/handler"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/webhook"
)

const clerkUserCreated = `{
  "type": "user.created",
  "data": {
    "id": "user_hook",
    "first_name": "Grace",
    "last_name": "Hopper",
    "primary_email_address_id": "idn_1",
    "email_addresses": [{"id": "idn_1", "email_address": "grace@example.com"}]
  }
}`

const lemonOrderCreated = `{
  "meta": {"event_name": "order_created"},
  "data": {
    "id": "4242",
    "attributes": {"user_email": "grace@example.com", "customer_id": 77, "total": 3900}
  }
}`

func postClerk(t *testing.T, api *testAPI, body string, tamper func(http.Header)) *httptest.ResponseRecorder {
	t.Helper()
	now := time.Now()
	sig, err := webhook.SignClerk(testClerkSecret, "msg_test", now, []byte(body))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set(webhook.HeaderSvixID, "msg_test")
	req.Header.Set(webhook.HeaderSvixTimestamp, strconv.FormatInt(now.Unix(), 10))
	req.Header.Set(webhook.HeaderSvixSignature, sig)
	if tamper != nil {
		tamper(req.Header)
	}

	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	return rr
}

func postLemon(t *testing.T, api *testAPI, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/lemon-squeezy", strings.NewReader(body))
	req.Header.Set(webhook.HeaderLemonSignature, signature)

	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandler_SignUpThenPurchase(t *testing.T) {
	api := newTestAPI(t)

	rr := postClerk(t, api, clerkUserCreated, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "synced", decode[map[string]string](t, rr)["outcome"])

	// Redelivery is harmless.
	rr = postClerk(t, api, clerkUserCreated, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	token, err := api.tokens.Generate("user_hook")
	require.NoError(t, err)
	rust := map[string]string{"language": "rust", "code": "fn main() {}"}
	assert.Equal(t, http.StatusPaymentRequired, api.do(t, http.MethodPost, "/api/executions", token, rust).Code)

	rr = postLemon(t, api, lemonOrderCreated, webhook.SignLemonSqueezy(testLemonSecret, []byte(lemonOrderCreated)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "upgraded", decode[map[string]string](t, rr)["outcome"])

	assert.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/executions", token, rust).Code)
	me := api.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	u := decode[model.User](t, me)
	assert.Equal(t, "Grace Hopper", u.Name)
	assert.True(t, u.IsPro)
	assert.Equal(t, "4242", u.LemonSqueezyOrderID)
	assert.Equal(t, "77", u.LemonSqueezyCustomerID)
}

func TestWebhookHandler_Rejections(t *testing.T) {
	api := newTestAPI(t)

	t.Run("clerk signature from another key", func(t *testing.T) {
		rr := postClerk(t, api, clerkUserCreated, func(h http.Header) {
			h.Set(webhook.HeaderSvixSignature, "v1,bm90LWEtcmVhbC1zaWduYXR1cmU=")
		})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "invalid_signature", decode[handler.ErrorResponse](t, rr).Error)

		token, err := api.tokens.Generate("user_hook")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/me", token, nil).Code,
			"a rejected delivery must not create the user")
	})

	t.Run("lemon signature mismatch", func(t *testing.T) {
		rr := postLemon(t, api, lemonOrderCreated, webhook.SignLemonSqueezy("wrong-secret", []byte(lemonOrderCreated)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("lemon signature missing", func(t *testing.T) {
		rr := postLemon(t, api, lemonOrderCreated, "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("signed but malformed payload", func(t *testing.T) {
		body := `{"meta":`
		rr := postLemon(t, api, body, webhook.SignLemonSqueezy(testLemonSecret, []byte(body)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("order for an unknown buyer is acknowledged", func(t *testing.T) {
		rr := postLemon(t, api, lemonOrderCreated, webhook.SignLemonSqueezy(testLemonSecret, []byte(lemonOrderCreated)))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "dropped", decode[map[string]string](t, rr)["outcome"])
	})

	t.Run("body too large", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), 300<<10)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/lemon-squeezy", bytes.NewReader(big))
		rr := httptest.NewRecorder()
		api.router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
