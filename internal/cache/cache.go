// Package cache provides the persistent TTL result cache backed by SQLite.
//
// Expiry is two-layered: Get treats a row whose expiry has passed as absent
// (lazy expiry, the correctness layer), while SweepExpired physically deletes
// stale rows as housekeeping. Write failures degrade to cache-miss behavior
// and are logged; they never propagate into a run.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/komyaka/wordstat/internal/models"
)

// Cache is a SQLite-backed phrase -> keyword payload store with per-entry TTL.
// database/sql pools connections, so concurrent workers get per-call
// isolation rather than a shared unguarded handle.
type Cache struct {
	db     *sql.DB
	logger *zap.Logger
}

// Stats describes the physical state of the cache.
type Stats struct {
	Rows         int64     `json:"rows"`
	OldestExpiry time.Time `json:"oldest_expiry,omitempty"`
	NewestExpiry time.Time `json:"newest_expiry,omitempty"`
}

// Open opens or creates the cache database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string, logger *zap.Logger) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{db: db, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_expires_at ON results(expires_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached payload for key. A row whose expiry is not in the
// future is logically absent even if still stored; storage errors are logged
// and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]models.KeywordRecord, bool) {
	var payload string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM results WHERE key = ?`, key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if expiresAt <= time.Now().UnixNano() {
		return nil, false
	}
	var records []models.KeywordRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		c.logger.Warn("cache payload corrupt, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return records, true
}

// Set upserts the payload for key with expiry now+ttl. A storage failure is
// logged and swallowed; the entry is simply not cached.
func (c *Cache) Set(ctx context.Context, key string, records []models.KeywordRecord, ttl time.Duration) {
	payload, err := json.Marshal(records)
	if err != nil {
		c.logger.Warn("cache payload marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	expiresAt := time.Now().Add(ttl).UnixNano()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO results (key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, string(payload), expiresAt,
	)
	if err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes one entry. Failures are logged and swallowed.
func (c *Cache) Delete(ctx context.Context, key string) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM results WHERE key = ?`, key); err != nil {
		c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes all entries. Failures are logged and swallowed.
func (c *Cache) Clear(ctx context.Context) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM results`); err != nil {
		c.logger.Warn("cache clear failed", zap.Error(err))
	}
}

// SweepExpired physically deletes rows whose expiry has passed and returns
// how many were removed. Correctness never depends on the sweep; Get already
// treats expired rows as absent.
func (c *Cache) SweepExpired(ctx context.Context) int64 {
	res, err := c.db.ExecContext(ctx, `DELETE FROM results WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		c.logger.Warn("cache sweep failed", zap.Error(err))
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	if n > 0 {
		c.logger.Info("cache sweep removed expired entries", zap.Int64("removed", n))
	}
	return n
}

// Stats returns the physical row count and the oldest and newest expiry
// timestamps. On error it returns zero stats.
func (c *Cache) Stats(ctx context.Context) Stats {
	var s Stats
	var oldest, newest sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(expires_at), MAX(expires_at) FROM results`,
	).Scan(&s.Rows, &oldest, &newest)
	if err != nil {
		c.logger.Warn("cache stats failed", zap.Error(err))
		return Stats{}
	}
	if oldest.Valid {
		s.OldestExpiry = time.Unix(0, oldest.Int64)
	}
	if newest.Valid {
		s.NewestExpiry = time.Unix(0, newest.Int64)
	}
	return s
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// RunSweeper sweeps once immediately, then every interval until ctx is done.
// Intended to run on its own goroutine in serve mode.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	c.SweepExpired(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SweepExpired(ctx)
		}
	}
}
