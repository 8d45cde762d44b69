package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/sqlitedb"
)

// Cache is a durable result cache backed by SQLite.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex // serializes writes
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_ns INTEGER NOT NULL
);
`

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache with the given database path and default TTL.
func New(dbPath string, ttl time.Duration, opts ...Option) (*Cache, error) {
	db, err := sqlitedb.Open(dbPath, createCacheTable)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	c := &Cache{db: db, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the entry for key. Expired entries are removed and reported as absent.
func (c *Cache) Get(ctx context.Context, key string) (models.CacheEntry, bool) {
	var payload []byte
	var createdAt, ttlNs int64

	err := c.db.QueryRowContext(ctx,
		`SELECT payload, created_at, ttl_ns FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&payload, &createdAt, &ttlNs)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.WithError(err).WithField("key", key).Warn("cache read failed")
		}
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	entry := models.CacheEntry{
		Key:       key,
		CreatedAt: time.Unix(0, createdAt).UTC(),
		TTL:       time.Duration(ttlNs),
	}
	if entry.Expired(c.now()) {
		c.evict(ctx, key, createdAt)
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	if err := json.Unmarshal(payload, &entry.Payload); err != nil {
		logger.WithError(err).WithField("key", key).Warn("dropping undecodable cache entry")
		c.evict(ctx, key, createdAt)
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	c.hits.Add(1)
	return entry, true
}

// evict deletes key only if it still holds the row that was read, so a
// concurrent rewrite is never lost.
func (c *Cache) evict(ctx context.Context, key string, createdAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_key = ? AND created_at = ?`, key, createdAt,
	); err != nil {
		logger.WithError(err).WithField("key", key).Warn("cache eviction failed")
	}
}

// Put stores payload under key, replacing any existing entry. A non-positive
// ttl selects the cache default.
func (c *Cache) Put(ctx context.Context, key string, payload models.Profile, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (cache_key, payload, created_at, ttl_ns) VALUES (?, ?, ?, ?)`,
		key, data, c.now().UnixNano(), int64(ttl),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res sql.Result
	var err error
	if expiredOnly {
		res, err = c.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE created_at + ttl_ns < ?`, c.now().UnixNano())
	} else {
		res, err = c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	}
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
