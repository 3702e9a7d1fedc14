// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a
// single file. No separate database server to install, configure, or
// manage. Perfect for a single-server admin tool: the whole persisted
// state (users, tokens, sites) is one file next to the mirror directories.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a
// C compiler installed and cross-compilation becomes painful.
// modernc.org/sqlite is a pure Go translation of the SQLite C code — no C
// compiler needed, works everywhere Go works.
//
// SINGLE-WRITER DISCIPLINE:
// The vault's append-only token list and the site registry's
// upsert-by-key semantics both require that concurrent writers serialize.
// SQLite gives us that for free: writes take the database write lock, and
// WAL mode lets reads proceed concurrently while a write is in flight.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// `_ "modernc.org/sqlite"` is a side-effect only import. The package's
	// init() registers itself with database/sql as the driver named
	// "sqlite"; after this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// One *DB value implements all three repository interfaces (users, tokens,
// sites) — the server owns it, opens it once, and passes it by reference.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/docs.db" → file-based database (persistent)
//   - ":memory:"     → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces an immediate connection so a bad path or permissions
	// issue surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is happening —
	// important for a web server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite; tokens and sites
	// reference users, so turn them on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	// One connection, full stop. database/sql would otherwise open a
	// connection per concurrent caller, which breaks ":memory:" databases
	// (every sqlite connection to :memory: is its own empty database) and
	// lets writers race for the file lock. A single connection serializes
	// every statement, which is exactly the write discipline the vault and
	// the registry rely on.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer Close() next to
// the New() call so the WAL is flushed and the file lock released even on
// a panic.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent —
// safe to run on every startup against an existing database.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			provider     TEXT NOT NULL,
			provider_id  TEXT NOT NULL,
			username     TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url   TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (provider, provider_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Token history is append-only: no UPDATE or DELETE ever touches this
	// table. "Current token" = highest created_at (id breaks ties).
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tokens (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			provider   TEXT NOT NULL,
			ciphertext TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tokens_user_provider
			ON tokens(user_id, provider, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating tokens table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sites (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id),
			provider       TEXT NOT NULL,
			owner          TEXT NOT NULL,
			repo           TEXT NOT NULL,
			default_branch TEXT NOT NULL,
			local_path     TEXT NOT NULL,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, provider, owner, repo)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating sites table: %w", err)
	}

	return nil
}
