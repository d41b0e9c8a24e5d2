// Package service contains the business rules of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership and entitlement
//	Repository (Data layer)  → reads/writes the store
//
// Services accept primitives and the caller's identity, never *http.Request,
// so the same rules apply to HTTP handlers, webhooks and the CLI. They return
// apperror values; the handler decides which HTTP status each one maps to.
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, not *sqlite.DB. Tests pass
// in-memory fakes (see fakes_test.go); main wires the SQLite store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/events"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// Validation limits.
const (
	MaxSnippetTitleLength = 100
	MaxCodeLength         = 100000 // ~100KB of code
	MaxCommentLength      = 5000
	DefaultListLimit      = 20
	MaxListLimit          = 100
)

// SnippetService handles the snippet lifecycle.
type SnippetService struct {
	snippets repository.SnippetRepository
	users    repository.UserRepository
	events   events.Publisher
	logger   *slog.Logger
}

func NewSnippetService(
	snippets repository.SnippetRepository,
	users repository.UserRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) *SnippetService {
	return &SnippetService{
		snippets: snippets,
		users:    users,
		events:   publisher,
		logger:   logger,
	}
}

// Create validates and saves a new snippet owned by caller.
//
// The owner's display name is copied onto the snippet at write time and not
// kept in sync afterwards. A caller whose identity was never synced gets
// apperror.ErrUserNotFound.
func (s *SnippetService) Create(ctx context.Context, caller, title, language, code string) (*model.Snippet, error) {
	if caller == "" {
		return nil, apperror.Unauthenticated()
	}

	title = strings.TrimSpace(title)
	language = strings.ToLower(strings.TrimSpace(language))

	if title == "" {
		return nil, apperror.ValidationFailed("title", "snippet title is required")
	}
	if len(title) > MaxSnippetTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("snippet title must be %d characters or less", MaxSnippetTitleLength))
	}
	if language == "" {
		return nil, apperror.ValidationFailed("language", "language is required")
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	owner, err := s.users.GetUserByIdentity(ctx, caller)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		OwnerIdentity: caller,
		OwnerName:     owner.Name,
		Title:         title,
		Language:      language,
		Code:          code,
	}

	if err := s.snippets.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("owner", caller),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("owner", caller),
		slog.String("language", language),
	)

	return snippet, nil
}

// GetByID returns apperror.ErrNotFound if the snippet doesn't exist.
func (s *SnippetService) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	// NotFound is a normal outcome, not something to log.
	return s.snippets.GetByID(ctx, id)
}

// List returns snippets newest first. Anyone may read.
//
// Example: page 3 with 20 items → limit=20, offset=40
func (s *SnippetService) List(ctx context.Context, limit, offset int) ([]model.Snippet, error) {
	limit, offset = clampPage(limit, offset)

	snippets, err := s.snippets.List(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	return snippets, nil
}

// Delete removes the caller's snippet with its comments and stars.
//
//  1. NotFound if the snippet is gone (someone else may have deleted it).
//  2. Forbidden unless the caller owns it.
//  3. The repository deletes comments, stars and finally the snippet in one
//     transaction; a failure leaves all three untouched.
//  4. Only after that commit is the snippet.deleted event published.
func (s *SnippetService) Delete(ctx context.Context, caller, id string) error {
	if caller == "" {
		return apperror.Unauthenticated()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if snippet.OwnerIdentity != caller {
		return apperror.Forbidden("only the owner can delete this snippet")
	}

	if err := s.snippets.DeleteCascade(ctx, id); err != nil {
		s.logger.Error("failed to delete snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting snippet %s: %w", id, err)
	}

	s.logger.Info("snippet deleted", slog.String("id", id), slog.String("owner", caller))
	events.Emit(ctx, s.events, s.logger, events.New(events.SnippetDeleted, id, map[string]string{
		"owner": caller,
	}))

	return nil
}

// clampPage applies the default and maximum page sizes.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
