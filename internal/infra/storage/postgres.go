package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

// PostgresOptions tunes the connection pool.
type PostgresOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// OpenPostgres connects through pgx and creates the schemas.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	if err := createSchemas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return db, nil
}

// NewPostgresRepository returns the repository for a database opened with
// OpenPostgres.
func NewPostgresRepository(db *sql.DB) *SQLRepository {
	return newSQLRepository(db, dialectPostgres)
}
