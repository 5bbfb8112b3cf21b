package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// The write path is one audit insert per request; a small pool is plenty.
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the two tables this service owns.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		// API key allow-list
		`CREATE TABLE IF NOT EXISTS api_keys (
			key TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by TEXT NOT NULL DEFAULT ''
		);`,

		// Relay audit log, append-only
		`CREATE TABLE IF NOT EXISTS relay_logs (
			id BIGSERIAL PRIMARY KEY,
			key_used TEXT NOT NULL,
			url TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ip TEXT NOT NULL DEFAULT ''
		);`,

		`CREATE INDEX IF NOT EXISTS idx_relay_logs_timestamp ON relay_logs (timestamp DESC);`,
	}

	for _, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w\nQuery: %s", err, migration)
		}
	}

	return nil
}

// SeedKey inserts the bootstrap API key. Safe to call on every startup:
// an existing row is left untouched.
func (db *DB) SeedKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO api_keys (key, created_at, created_by)
		VALUES ($1, NOW(), 'initial')
		ON CONFLICT (key) DO NOTHING
	`, key)
	if err != nil {
		return fmt.Errorf("failed to seed key: %w", err)
	}
	return nil
}
