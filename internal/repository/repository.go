// Package repository declares the storage contracts the service layer
// depends on. internal/repository/sqlite is the only production
// implementation; service tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/codecraft/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// InsertIfAbsent stores user unless a row with the same identity exists.
	// Either way it returns the stored row. Safe under concurrent calls.
	InsertIfAbsent(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByIdentity(ctx context.Context, identity string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpgradeToPro(ctx context.Context, identity string, up model.ProUpgrade) error
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Snippet, error)
	// DeleteCascade removes the snippet's comments, its stars and then the
	// snippet itself in one transaction.
	DeleteCascade(ctx context.Context, id string) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, snippetID string) ([]model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type StarRepository interface {
	// ToggleStar flips the (user, snippet) pair atomically and reports the
	// resulting state.
	ToggleStar(ctx context.Context, userIdentity, snippetID string) (bool, error)
	IsStarred(ctx context.Context, userIdentity, snippetID string) (bool, error)
	CountStars(ctx context.Context, snippetID string) (int, error)
	// StarredSnippetIDs returns snippet IDs in the order the user starred them.
	StarredSnippetIDs(ctx context.Context, userIdentity string) ([]string, error)
}

type ExecutionRepository interface {
	CreateExecution(ctx context.Context, exec *model.Execution) error
	// ListExecutions pages newest first.
	ListExecutions(ctx context.Context, ownerIdentity string, opts ListOptions) ([]model.Execution, error)
	// AllExecutions returns every record for the owner in creation order.
	AllExecutions(ctx context.Context, ownerIdentity string) ([]model.Execution, error)
}
