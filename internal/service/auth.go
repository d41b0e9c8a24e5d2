package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/model"
)

// AuthService backs the optional GitHub sign-in used in local development,
// where the hosted identity provider (and its webhook) is not available.
//
//	AuthHandler (HTTP) → AuthService → UserService.EnsureUser
//	                   ↘ TokenService (JWT)
//
// A GitHub sign-in ends in the same EnsureUser call as the identity webhook,
// so the rest of the system cannot tell the two apart.
type AuthService struct {
	users  *UserService
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users *UserService, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the synced user and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginGitHub syncs the GitHub user and issues a token for its identity.
func (s *AuthService) LoginGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.EnsureUser(ctx, ghUser.Identity(), ghUser.Email, ghUser.DisplayName())
	if err != nil {
		return nil, fmt.Errorf("service/auth: syncing GitHub user %d: %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("identity", user.Identity),
		slog.String("login", ghUser.Login),
	)

	token, err := s.tokens.Generate(user.Identity)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.Identity, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}
