package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X,
// long before anything tries to pass *DB where a SnippetRepository is expected.
var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, owner_identity, owner_name, title, language, code, created_at`

func scanSnippet(row rowScanner) (*model.Snippet, error) {
	var s model.Snippet
	if err := row.Scan(
		&s.ID,
		&s.OwnerIdentity,
		&s.OwnerName,
		&s.Title,
		&s.Language,
		&s.Code,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new snippet into the database.
//
// The ID (xid: 20 URL-safe chars, time-sortable) and CreatedAt are assigned
// here and written back into the caller's struct through the pointer.
//
// PARAMETERIZED QUERIES (the ? placeholders):
// NEVER build SQL strings with fmt.Sprintf or string concatenation;
// the driver escapes values passed as arguments.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	snippet.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (id, owner_identity, owner_name, title, language, code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.OwnerIdentity,
		snippet.OwnerName,
		snippet.Title,
		snippet.Language,
		snippet.Code,
		snippet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// GetByID retrieves a single snippet by its ID.
//
// sql.ErrNoRows is translated into the app's NotFound error so the handler
// knows to return 404. Any other error is a real database problem.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	snippet, err := scanSnippet(db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	return snippet, nil
}

// List retrieves snippets newest first with LIMIT/OFFSET pagination.
//
// rowid breaks ties between snippets created within the same clock tick so
// the order is stable across pages.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	// CRITICAL: always close rows when done, or the connection never
	// returns to the pool. With a pool of one, that hangs the server.
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// ListByIDs returns the snippets that still exist among ids, in the order
// the ids were given. Missing ids are skipped.
func (db *DB) ListByIDs(ctx context.Context, ids []string) ([]model.Snippet, error) {
	if len(ids) == 0 {
		return []model.Snippet{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Snippet, len(ids))
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		byID[s.ID] = *s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	snippets := make([]model.Snippet, 0, len(byID))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			snippets = append(snippets, s)
		}
	}
	return snippets, nil
}

// DeleteCascade removes a snippet together with everything that points at it.
//
// ORDER INSIDE THE TRANSACTION:
//  1. comments of the snippet
//  2. stars of the snippet
//  3. the snippet row itself, last
//
// All three statements share one transaction: if any of them fails the
// whole cascade rolls back and the snippet, its comments and its stars are
// exactly as they were. The foreign keys on comments/stars would also
// reject deleting the parent first.
func (db *DB) DeleteCascade(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE snippet_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting comments of snippet %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM stars WHERE snippet_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting stars of snippet %s: %w", id, err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("snippet", id)
		}
		return nil
	})
}

// clampPage applies the default (20) and maximum (100) page sizes.
func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
