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

var _ repository.ExecutionRepository = (*DB)(nil)

const executionColumns = `id, owner_identity, language, code, output, error, created_at`

func scanExecution(row rowScanner) (*model.Execution, error) {
	var (
		e           model.Execution
		output, msg sql.NullString
	)
	if err := row.Scan(&e.ID, &e.OwnerIdentity, &e.Language, &e.Code, &output, &msg, &e.CreatedAt); err != nil {
		return nil, err
	}
	if output.Valid {
		e.Output = &output.String
	}
	if msg.Valid {
		e.Error = &msg.String
	}
	return &e, nil
}

// CreateExecution appends an execution record. There is deliberately no
// update or delete for this table.
func (db *DB) CreateExecution(ctx context.Context, exec *model.Execution) error {
	exec.ID = xid.New().String()
	exec.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO executions (id, owner_identity, language, code, output, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exec.ID,
		exec.OwnerIdentity,
		exec.Language,
		exec.Code,
		nullString(exec.Output),
		nullString(exec.Error),
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating execution: %w", err)
	}
	return nil
}

func (db *DB) ListExecutions(ctx context.Context, ownerIdentity string, opts repository.ListOptions) ([]model.Execution, error) {
	limit, offset := clampPage(opts)
	return db.queryExecutions(ctx,
		`SELECT `+executionColumns+` FROM executions
		 WHERE owner_identity = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		ownerIdentity, limit, offset,
	)
}

func (db *DB) AllExecutions(ctx context.Context, ownerIdentity string) ([]model.Execution, error) {
	return db.queryExecutions(ctx,
		`SELECT `+executionColumns+` FROM executions
		 WHERE owner_identity = ?
		 ORDER BY created_at ASC, rowid ASC`,
		ownerIdentity,
	)
}

func (db *DB) queryExecutions(ctx context.Context, query string, args ...any) ([]model.Execution, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions: %w", err)
	}
	defer rows.Close()

	execs := []model.Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning execution row: %w", err)
		}
		execs = append(execs, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating executions: %w", err)
	}
	return execs, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
