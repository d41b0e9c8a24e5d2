package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/codecraft/internal/model"
)

// IdentitySink receives synced identities (service.UserService).
type IdentitySink interface {
	EnsureUser(ctx context.Context, identity, email, name string) (*model.User, error)
}

// PaymentSink receives completed orders (service.UserService). A nil user
// with a nil error means the order matched nobody and was dropped.
type PaymentSink interface {
	UpgradeToPro(ctx context.Context, email, customerID, orderID string) (*model.User, error)
}

// Outcome says what a delivery led to. Every outcome is acknowledged with
// 200; only verification and decoding failures are rejected.
type Outcome string

const (
	OutcomeSynced   Outcome = "synced"
	OutcomeUpgraded Outcome = "upgraded"
	OutcomeDropped  Outcome = "dropped"
	OutcomeIgnored  Outcome = "ignored"
)

// Secrets are the shared signing secrets of both providers.
type Secrets struct {
	Clerk        string
	LemonSqueezy string
}

// Ingestor verifies, decodes and dispatches webhook deliveries. Each
// accepted delivery results in at most one downstream call.
type Ingestor struct {
	secrets  Secrets
	identity IdentitySink
	payments PaymentSink
	logger   *slog.Logger
	now      func() time.Time
}

func NewIngestor(secrets Secrets, identity IdentitySink, payments PaymentSink, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		secrets:  secrets,
		identity: identity,
		payments: payments,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleIdentity processes one identity-provider delivery.
func (in *Ingestor) HandleIdentity(ctx context.Context, headers http.Header, body []byte) (Outcome, error) {
	if err := VerifyClerk(in.secrets.Clerk, headers, body, in.now()); err != nil {
		in.logger.Warn("rejected identity webhook",
			slog.String("svixId", headers.Get(HeaderSvixID)),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	event, err := DecodeClerk(body)
	if err != nil {
		return "", err
	}

	switch e := event.(type) {
	case UserCreated:
		if _, err := in.identity.EnsureUser(ctx, e.Identity, e.Email, e.Name); err != nil {
			return "", fmt.Errorf("webhook: syncing %s: %w", e.Identity, err)
		}
		return OutcomeSynced, nil
	default:
		in.logger.Info("ignoring identity webhook", slog.String("type", event.eventType()))
		return OutcomeIgnored, nil
	}
}

// HandlePayment processes one payment-provider delivery.
func (in *Ingestor) HandlePayment(ctx context.Context, headers http.Header, body []byte) (Outcome, error) {
	if err := VerifyLemonSqueezy(in.secrets.LemonSqueezy, headers.Get(HeaderLemonSignature), body); err != nil {
		in.logger.Warn("rejected payment webhook", slog.String("error", err.Error()))
		return "", err
	}

	event, err := DecodeLemonSqueezy(body)
	if err != nil {
		return "", err
	}

	switch e := event.(type) {
	case OrderCreated:
		user, err := in.payments.UpgradeToPro(ctx, e.CustomerEmail, e.CustomerID, e.OrderID)
		if err != nil {
			return "", fmt.Errorf("webhook: applying order %s: %w", e.OrderID, err)
		}
		if user == nil {
			return OutcomeDropped, nil
		}
		return OutcomeUpgraded, nil
	default:
		in.logger.Info("ignoring payment webhook", slog.String("type", event.eventType()))
		return OutcomeIgnored, nil
	}
}
