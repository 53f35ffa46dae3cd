// Package sqlite implements the store interfaces on an embedded SQLite
// database. SQLite is the durability boundary for crash recovery: every
// status transition is a committed transaction, so a job that was
// PROCESSING when the process died is still PROCESSING on disk and can
// be recovered to QUEUED on the next start.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store provides a SQLite-backed implementation of store.JobStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies
// pragmas and pending migrations. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY between the worker and the HTTP handlers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
		// FULL so committed transitions survive power loss, which the
		// orphan-recovery contract depends on.
		"PRAGMA synchronous=FULL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migrations and metrics callbacks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
