// Package redis implements the result cache on a shared Redis server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
)

const keyPrefix = "verdant:cache:"

// Cache stores entries as JSON strings with a native Redis expiry. The
// stored created_at is still checked on read so clocks can be injected.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// New wraps client as a result cache with the given default TTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, now: time.Now}
}

// Get returns the entry for key. Expired entries are deleted and reported as absent.
func (c *Cache) Get(ctx context.Context, key string) (models.CacheEntry, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WithError(err).WithField("key", key).Warn("redis cache read failed")
		}
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Expired(c.now()) {
		_ = c.client.Del(ctx, keyPrefix+key).Err()
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	c.hits.Add(1)
	return entry, true
}

// Put stores payload under key. A non-positive ttl selects the cache default.
func (c *Cache) Put(ctx context.Context, key string, payload models.Profile, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(models.CacheEntry{
		Key:       key,
		Payload:   payload,
		CreatedAt: c.now().UTC(),
		TTL:       ttl,
	})
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. Redis drops expired keys on its own, so
// expiredOnly only sweeps entries whose stored TTL has lapsed.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	var removed int64
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if expiredOnly {
			stale, err := c.stale(ctx, k)
			if err != nil {
				return removed, fmt.Errorf("cache clear: %w", err)
			}
			if !stale {
				continue
			}
		}
		n, err := c.client.Del(ctx, k).Result()
		if err != nil {
			return removed, fmt.Errorf("cache clear: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache clear: %w", err)
	}
	return removed, nil
}

// stale reports whether the stored entry at k has outlived its TTL or cannot
// be decoded. Keys Redis already dropped are not stale. Hit and miss counters
// are left alone.
func (c *Cache) stale(ctx context.Context, k string) (bool, error) {
	raw, err := c.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return true, nil
	}
	return entry.Expired(c.now()), nil
}

// Close releases the client connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
