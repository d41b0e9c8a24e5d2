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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, identity, email, name, is_pro, pro_since,
	lemon_squeezy_customer_id, lemon_squeezy_order_id, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		proSince sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.Identity,
		&u.Email,
		&u.Name,
		&u.IsPro,
		&proSince,
		&u.LemonSqueezyCustomerID,
		&u.LemonSqueezyOrderID,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	if proSince.Valid {
		t := proSince.Time
		u.ProSince = &t
	}
	return &u, nil
}

// InsertIfAbsent stores a new user unless the identity is already known.
//
// INSERT ... ON CONFLICT DO NOTHING:
// The UNIQUE constraint on identity is the arbiter. If the identity webhook
// and a first sign-in race each other, both statements run, exactly one row
// is inserted, and both callers read back that same row. No read-then-write
// window exists in application code.
//
// An existing row is returned unchanged; the profile is NOT refreshed.
func (db *DB) InsertIfAbsent(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, identity, email, name, is_pro, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)
		 ON CONFLICT(identity) DO NOTHING`,
		xid.New().String(),
		user.Identity,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.Name,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting user %s: %w", user.Identity, err)
	}

	return db.GetUserByIdentity(ctx, user.Identity)
}

// GetUserByIdentity returns apperror.ErrUserNotFound if the identity was never synced.
func (db *DB) GetUserByIdentity(ctx context.Context, identity string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity = ?`, identity,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFound(identity)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", identity, err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by (lower-cased) email. Emails are not
// unique in the schema; the oldest account wins.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?
		 ORDER BY created_at ASC, rowid ASC LIMIT 1`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user with email", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpgradeToPro flips the pro flag and stores the payment provider's IDs.
// Re-applying the same order is harmless: the row ends in the same state
// apart from pro_since.
func (db *DB) UpgradeToPro(ctx context.Context, identity string, up model.ProUpgrade) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET is_pro = 1, pro_since = ?, lemon_squeezy_customer_id = ?, lemon_squeezy_order_id = ?
		 WHERE identity = ?`,
		up.At.UTC(),
		up.CustomerID,
		up.OrderID,
		identity,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upgrading user %s: %w", identity, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.UserNotFound(identity)
	}
	return nil
}
