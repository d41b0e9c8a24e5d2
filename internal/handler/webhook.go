package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/webhook"
)

// maxWebhookBytes caps provider deliveries. Both providers send a few KiB.
const maxWebhookBytes = 256 << 10

type webhookFunc func(ctx context.Context, headers http.Header, body []byte) (webhook.Outcome, error)

// WebhookHandler accepts signed deliveries from the identity and payment
// providers.
//
// RAW BODY:
// The signature covers the exact bytes the provider sent, so the body is
// read as-is and never decoded before verification.
//
// STATUS CODES:
//   - 200 for every verified delivery, including ignored event types and
//     orders that matched no user. A non-2xx makes the provider retry.
//   - 401 for a bad signature, 400 for a malformed payload.
//   - 500 when storing the effect failed; the provider's retry is wanted.
type WebhookHandler struct {
	ingestor *webhook.Ingestor
	logger   *slog.Logger
}

func NewWebhookHandler(ingestor *webhook.Ingestor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, logger: logger}
}

// HandleClerk receives identity-provider (Svix-signed) deliveries.
//
// HTTP: POST /webhooks/clerk
func (h *WebhookHandler) HandleClerk(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "clerk", h.ingestor.HandleIdentity)
}

// HandleLemonSqueezy receives payment-provider deliveries.
//
// HTTP: POST /webhooks/lemon-squeezy
func (h *WebhookHandler) HandleLemonSqueezy(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "lemon-squeezy", h.ingestor.HandlePayment)
}

func (h *WebhookHandler) serve(w http.ResponseWriter, r *http.Request, provider string, handle webhookFunc) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperror.ValidationFailed("body", "webhook body too large"))
			return
		}
		writeError(w, apperror.ValidationFailed("body", "could not read webhook body"))
		return
	}

	outcome, err := handle(r.Context(), r.Header, body)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("webhook processed",
		slog.String("provider", provider),
		slog.String("outcome", string(outcome)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
