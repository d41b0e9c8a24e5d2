package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// EngagementService handles stars and comments on snippets.
type EngagementService struct {
	snippets repository.SnippetRepository
	comments repository.CommentRepository
	stars    repository.StarRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewEngagementService(
	snippets repository.SnippetRepository,
	comments repository.CommentRepository,
	stars repository.StarRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *EngagementService {
	return &EngagementService{
		snippets: snippets,
		comments: comments,
		stars:    stars,
		users:    users,
		logger:   logger,
	}
}

// ToggleStar flips the caller's star on a snippet and reports the new state.
//
// There is no separate star/unstar: the caller only says "flip it". The
// repository does the flip in one transaction against a UNIQUE(user, snippet)
// constraint, so a double click can never leave two rows behind.
func (s *EngagementService) ToggleStar(ctx context.Context, caller, snippetID string) (bool, error) {
	if caller == "" {
		return false, apperror.Unauthenticated()
	}
	if _, err := s.snippets.GetByID(ctx, snippetID); err != nil {
		return false, err
	}

	starred, err := s.stars.ToggleStar(ctx, caller, snippetID)
	if err != nil {
		s.logger.Error("failed to toggle star",
			slog.String("snippetId", snippetID),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("toggling star: %w", err)
	}

	s.logger.Info("star toggled",
		slog.String("snippetId", snippetID),
		slog.String("user", caller),
		slog.Bool("starred", starred),
	)
	return starred, nil
}

// IsStarred is false for anonymous callers.
func (s *EngagementService) IsStarred(ctx context.Context, caller, snippetID string) (bool, error) {
	if caller == "" {
		return false, nil
	}
	return s.stars.IsStarred(ctx, caller, snippetID)
}

func (s *EngagementService) StarCount(ctx context.Context, snippetID string) (int, error) {
	return s.stars.CountStars(ctx, snippetID)
}

// StarredSnippets lists the snippets the caller has starred, in the order
// they were starred.
func (s *EngagementService) StarredSnippets(ctx context.Context, caller string) ([]model.Snippet, error) {
	if caller == "" {
		return nil, apperror.Unauthenticated()
	}

	ids, err := s.stars.StarredSnippetIDs(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("listing starred snippet ids: %w", err)
	}
	return s.snippets.ListByIDs(ctx, ids)
}

// AddComment stores a comment under the caller's current display name.
func (s *EngagementService) AddComment(ctx context.Context, caller, snippetID, content string) (*model.Comment, error) {
	if caller == "" {
		return nil, apperror.Unauthenticated()
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment cannot be empty")
	}
	if len(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	author, err := s.users.GetUserByIdentity(ctx, caller)
	if err != nil {
		return nil, err
	}
	if _, err := s.snippets.GetByID(ctx, snippetID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		SnippetID:      snippetID,
		AuthorIdentity: caller,
		AuthorName:     author.Name,
		Content:        content,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		s.logger.Error("failed to add comment",
			slog.String("snippetId", snippetID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("adding comment: %w", err)
	}

	s.logger.Info("comment added",
		slog.String("id", comment.ID),
		slog.String("snippetId", snippetID),
	)
	return comment, nil
}

// DeleteComment removes a comment. Only its author may do so.
func (s *EngagementService) DeleteComment(ctx context.Context, caller, commentID string) error {
	if caller == "" {
		return apperror.Unauthenticated()
	}

	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorIdentity != caller {
		return apperror.Forbidden("only the author can delete this comment")
	}

	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("deleting comment %s: %w", commentID, err)
	}

	s.logger.Info("comment deleted", slog.String("id", commentID))
	return nil
}

// ListComments returns a snippet's comments newest first.
func (s *EngagementService) ListComments(ctx context.Context, snippetID string) ([]model.Comment, error) {
	if _, err := s.snippets.GetByID(ctx, snippetID); err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, snippetID)
}
