// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// It gives us the three things the domain rules lean on: UNIQUE constraints
// (users.identity, stars(user, snippet)), "INSERT ... ON CONFLICT DO NOTHING",
// and real transactions for the snippet cascade delete.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code: no C compiler needed, works everywhere Go works.
//
// ONE WRITER:
// SQLite allows a single writer at a time. The pool is capped at one open
// connection so transactions serialize in Go instead of failing with
// SQLITE_BUSY, and so ":memory:" databases are not silently split across
// several connections (each connection would get its own empty database).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// The sqlite package's init() registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/codecraft.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	// Ping verifies the connection actually works.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		// WAL lets readers proceed while a write is in progress.
		"PRAGMA journal_mode=WAL",
		// Foreign keys are OFF by default in SQLite; comments and stars
		// reference snippets, so deleting a parent before its children fails.
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent, so this runs on every start.
// The five tables mirror the five logical collections: users (unique
// identity), snippets (by owner), comments (by snippet), stars (unique
// owner+snippet) and executions (by owner).
func (db *DB) migrate() error {
	steps := []struct {
		name string
		ddl  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id                        TEXT PRIMARY KEY,
				identity                  TEXT NOT NULL UNIQUE,
				email                     TEXT NOT NULL DEFAULT '',
				name                      TEXT NOT NULL DEFAULT '',
				is_pro                    INTEGER NOT NULL DEFAULT 0,
				pro_since                 DATETIME,
				lemon_squeezy_customer_id TEXT NOT NULL DEFAULT '',
				lemon_squeezy_order_id    TEXT NOT NULL DEFAULT '',
				created_at                DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		`},
		{"snippets", `
			CREATE TABLE IF NOT EXISTS snippets (
				id             TEXT PRIMARY KEY,
				owner_identity TEXT NOT NULL,
				owner_name     TEXT NOT NULL DEFAULT '',
				title          TEXT NOT NULL,
				language       TEXT NOT NULL,
				code           TEXT NOT NULL DEFAULT '',
				created_at     DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_snippets_owner ON snippets(owner_identity);
			CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
		`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id              TEXT PRIMARY KEY,
				snippet_id      TEXT NOT NULL REFERENCES snippets(id),
				author_identity TEXT NOT NULL,
				author_name     TEXT NOT NULL DEFAULT '',
				content         TEXT NOT NULL,
				created_at      DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_snippet ON comments(snippet_id);
		`},
		{"stars", `
			CREATE TABLE IF NOT EXISTS stars (
				id            TEXT PRIMARY KEY,
				user_identity TEXT NOT NULL,
				snippet_id    TEXT NOT NULL REFERENCES snippets(id),
				created_at    DATETIME NOT NULL,
				UNIQUE (user_identity, snippet_id)
			);
			CREATE INDEX IF NOT EXISTS idx_stars_snippet ON stars(snippet_id);
		`},
		{"executions", `
			CREATE TABLE IF NOT EXISTS executions (
				id             TEXT PRIMARY KEY,
				owner_identity TEXT NOT NULL,
				language       TEXT NOT NULL,
				code           TEXT NOT NULL,
				output         TEXT,
				error          TEXT,
				created_at     DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_executions_owner ON executions(owner_identity);
		`},
	}

	for _, s := range steps {
		if _, err := db.conn.Exec(s.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", s.name, err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction. fn's error (or a failed commit)
// rolls everything back, so callers never observe a partial write.
//
// fn must only use tx: with a single pooled connection, touching db.conn
// from inside fn would block forever.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback() // no-op after a successful Commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
