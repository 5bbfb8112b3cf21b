package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/teamdevhq/media-relay/internal/models"
	"github.com/teamdevhq/media-relay/pkg/database"
)

// Store is the single persistence surface for the key allow-list and the
// audit log. Everything else in the service goes through it.
type Store interface {
	LookupKey(ctx context.Context, value string) (bool, error)
	CreateKey(ctx context.Context, value, createdBy string) error
	DeleteKey(ctx context.Context, value string) error
	ListKeys(ctx context.Context) ([]models.ApiKey, error)
	InsertLog(ctx context.Context, entry models.LogEntry) error
	ListRecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
}

// querier is the slice of pgxpool.Pool the store actually uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const keyCacheTTL = 5 * time.Minute

// DBStore implements Store on PostgreSQL, with an optional Redis existence
// cache in front of the key lookup. The cache holds nothing but a flat
// "this key exists" flag and is dropped whenever the row changes.
type DBStore struct {
	db      querier
	rdb     *redis.Client
	seedKey string
}

// New creates a store. rdb may be nil; lookups then always hit the database.
func New(db *database.DB, rdb *redis.Client, seedKey string) *DBStore {
	return &DBStore{db: db.Pool, rdb: rdb, seedKey: seedKey}
}

func cacheKey(value string) string {
	return "media_relay:key_exists:" + value
}

// LookupKey reports whether the key is on the allow-list.
func (s *DBStore) LookupKey(ctx context.Context, value string) (bool, error) {
	if s.rdb != nil {
		if hit, err := s.rdb.Get(ctx, cacheKey(value)).Result(); err == nil && hit == "1" {
			return true, nil
		}
	}

	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM api_keys WHERE key = $1`, value).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("key lookup failed: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKey(value), "1", keyCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to cache key existence")
		}
	}
	return true, nil
}

// CreateKey inserts a key. A duplicate value is absorbed silently.
func (s *DBStore) CreateKey(ctx context.Context, value, createdBy string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_keys (key, created_at, created_by)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (key) DO NOTHING
	`, value, createdBy)
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	return nil
}

// DeleteKey removes a key. The seed key is protected: deleting it is a no-op.
func (s *DBStore) DeleteKey(ctx context.Context, value string) error {
	if value == s.seedKey {
		log.Warn().Msg("Refusing to delete the seed key")
		return nil
	}

	_, err := s.db.Exec(ctx, `DELETE FROM api_keys WHERE key = $1`, value)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, cacheKey(value)).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to drop key cache entry")
		}
	}
	return nil
}

// ListKeys returns the allow-list, most recently created first.
func (s *DBStore) ListKeys(ctx context.Context) ([]models.ApiKey, error) {
	rows, err := s.db.Query(ctx, `
		SELECT key, created_at, created_by
		FROM api_keys
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []models.ApiKey
	for rows.Next() {
		var k models.ApiKey
		if err := rows.Scan(&k.Key, &k.CreatedAt, &k.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// InsertLog appends one audit record.
func (s *DBStore) InsertLog(ctx context.Context, entry models.LogEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO relay_logs (key_used, url, timestamp, ip)
		VALUES ($1, $2, $3, $4)
	`, entry.KeyUsed, entry.URL, entry.Timestamp, entry.IP)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// ListRecentLogs returns at most limit audit records, newest first.
func (s *DBStore) ListRecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, key_used, url, timestamp, ip
		FROM relay_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.KeyUsed, &e.URL, &e.Timestamp, &e.IP); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
