// Package sqlite implements the storage interfaces on an embedded SQLite
// database. The database connection is exclusively owned by the writer task;
// processors never touch it.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dmittakarin8/solflow/internal/storage/migrations"
)

// Open opens (or creates) the database at path, applies the tuned pragmas,
// and runs migrations. The returned handle is limited to a single underlying
// connection so that every statement sees the same session pragmas.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// applyPragmas configures the connection for a single high-throughput writer
// with concurrent readers.
//
//   - journal_mode = WAL: readers proceed during writer commits
//   - synchronous = NORMAL: fsync at checkpoints only
//   - temp_store = MEMORY: temp tables in RAM
//   - cache_size = -20000: 20MB page cache
//   - wal_autocheckpoint = 1000: checkpoint every ~4MB of WAL
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
		"PRAGMA cache_size = -20000;",
		"PRAGMA wal_autocheckpoint = 1000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return nil
}

// CheckpointTruncate shrinks the WAL file to prevent unbounded growth.
// Expensive; intended for maintenance windows, never for hot paths.
func CheckpointTruncate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("wal checkpoint truncate: %w", err)
	}
	return nil
}
