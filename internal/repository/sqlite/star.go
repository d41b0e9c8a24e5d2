package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

var _ repository.StarRepository = (*DB)(nil)

// ToggleStar flips the star for (userIdentity, snippetID).
//
// TOGGLE WITHOUT A RACE:
// Both steps run in one transaction. First we try to DELETE the pair; if a
// row went away the snippet is now unstarred. Otherwise we INSERT, and the
// UNIQUE(user_identity, snippet_id) constraint turns a concurrent duplicate
// into a no-op (ON CONFLICT DO NOTHING). Two double-clicks therefore
// serialize into "star, unstar" and never produce two rows for the pair.
func (db *DB) ToggleStar(ctx context.Context, userIdentity, snippetID string) (bool, error) {
	var starred bool

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM stars WHERE user_identity = ? AND snippet_id = ?`,
			userIdentity, snippetID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: removing star: %w", err)
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if removed > 0 {
			starred = false
			return nil
		}

		star := model.Star{
			ID:           xid.New().String(),
			UserIdentity: userIdentity,
			SnippetID:    snippetID,
			CreatedAt:    time.Now().UTC(),
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stars (id, user_identity, snippet_id, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(user_identity, snippet_id) DO NOTHING`,
			star.ID, star.UserIdentity, star.SnippetID, star.CreatedAt,
		); err != nil {
			return fmt.Errorf("sqlite: adding star: %w", err)
		}
		starred = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return starred, nil
}

func (db *DB) IsStarred(ctx context.Context, userIdentity, snippetID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stars WHERE user_identity = ? AND snippet_id = ?`,
		userIdentity, snippetID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking star: %w", err)
	}
	return n > 0, nil
}

func (db *DB) CountStars(ctx context.Context, snippetID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stars WHERE snippet_id = ?`, snippetID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting stars of snippet %s: %w", snippetID, err)
	}
	return n, nil
}

func (db *DB) StarredSnippetIDs(ctx context.Context, userIdentity string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT snippet_id FROM stars
		 WHERE user_identity = ?
		 ORDER BY created_at ASC, rowid ASC`,
		userIdentity,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing stars of %s: %w", userIdentity, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning star row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating stars: %w", err)
	}
	return ids, nil
}
