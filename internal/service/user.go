package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/events"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// UserService resolves caller identities to user records and applies
// entitlement upgrades coming from the payment provider.
type UserService struct {
	users  repository.UserRepository
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewUserService(users repository.UserRepository, publisher events.Publisher, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureUser returns the user for identity, creating it on first sight.
//
// IDEMPOTENT AND RACE-SAFE:
// The repository does an atomic "insert if absent" keyed on identity, so the
// identity webhook and a first sign-in may call this at the same moment and
// still end with exactly one row. An existing record is returned unchanged;
// email and name from later calls are ignored.
func (s *UserService) EnsureUser(ctx context.Context, identity, email, name string) (*model.User, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, apperror.ValidationFailed("identity", "identity is required")
	}

	user, err := s.users.InsertIfAbsent(ctx, &model.User{
		Identity: identity,
		Email:    strings.TrimSpace(email),
		Name:     strings.TrimSpace(name),
	})
	if err != nil {
		s.logger.Error("failed to sync user",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ensuring user %s: %w", identity, err)
	}

	s.logger.Info("user synced", slog.String("identity", identity))
	events.Emit(ctx, s.events, s.logger, events.New(events.UserSynced, identity, nil))

	return user, nil
}

// GetByIdentity returns apperror.ErrUserNotFound for identities that were
// never synced.
func (s *UserService) GetByIdentity(ctx context.Context, identity string) (*model.User, error) {
	if identity == "" {
		return nil, apperror.Unauthenticated()
	}
	return s.users.GetUserByIdentity(ctx, identity)
}

// UpgradeToPro marks the user who paid as pro.
//
// The buyer is matched by email. A payment for an email nobody has synced
// yet is dropped with a warning and (nil, nil) is returned: the provider
// must not retry a delivery that will never match.
func (s *UserService) UpgradeToPro(ctx context.Context, email, customerID, orderID string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "customer email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("dropping payment for unknown user",
				slog.String("email", email),
				slog.String("orderId", orderID),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("looking up buyer: %w", err)
	}

	up := model.ProUpgrade{
		Email:      email,
		CustomerID: customerID,
		OrderID:    orderID,
		At:         s.now().UTC(),
	}
	if err := s.users.UpgradeToPro(ctx, user.Identity, up); err != nil {
		s.logger.Error("failed to upgrade user",
			slog.String("identity", user.Identity),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("upgrading %s: %w", user.Identity, err)
	}

	user.IsPro = true
	user.ProSince = &up.At
	user.LemonSqueezyCustomerID = customerID
	user.LemonSqueezyOrderID = orderID

	s.logger.Info("user upgraded to pro",
		slog.String("identity", user.Identity),
		slog.String("orderId", orderID),
	)
	events.Emit(ctx, s.events, s.logger, events.New(events.UserUpgraded, user.Identity, map[string]string{
		"orderId":    orderID,
		"customerId": customerID,
	}))

	return user, nil
}
