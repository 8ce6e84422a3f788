package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite opens the local SQLite database and creates the schemas for
// runs, the immutable event log and agent snapshots.
func InitSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

// schemas is portable between SQLite and PostgreSQL. Timestamps are stored
// as unix nanoseconds so both drivers scan them the same way.
var schemas = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed BIGINT NOT NULL,
		params TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		finished_at BIGINT,
		steps INTEGER NOT NULL DEFAULT 0,
		complete BOOLEAN NOT NULL DEFAULT FALSE,
		clean_percentage DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		seq BIGINT NOT NULL,
		ts BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		step INTEGER NOT NULL,
		payload TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_events_agent_id ON events(run_id, agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_step ON events(run_id, step)`,
	`CREATE TABLE IF NOT EXISTS agent_snapshots (
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		step INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		battery INTEGER NOT NULL,
		movements INTEGER NOT NULL,
		dead BOOLEAN NOT NULL DEFAULT FALSE,
		recorded_at BIGINT NOT NULL,
		PRIMARY KEY (run_id, agent_id, step)
	)`,
}

func createSchemas(ctx context.Context, db *sql.DB) error {
	for _, query := range schemas {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// NewSQLiteRepository returns the repository for a database opened with
// InitSQLite.
func NewSQLiteRepository(db *sql.DB) *SQLRepository {
	return newSQLRepository(db, dialectSQLite)
}
