// Package cache implements the cache-aside store for resolved short codes.
//
// The cache is an optimization, never a source of truth: every operation
// degrades to a miss (or a no-op) when Redis is unreachable, and the caller
// falls back to the durable record store. Entries carry a TTL that bounds
// staleness against out-of-band deletes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "url:"

// Cache holds destination URLs keyed by short code.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func key(shortCode string) string {
	return keyPrefix + shortCode
}

// GetURL returns the cached destination for the short code. The second
// return value is false on a miss or any store error; errors are logged here
// and never propagate.
func (c *Cache) GetURL(ctx context.Context, shortCode string) (string, bool) {
	dest, err := c.rdb.Get(ctx, key(shortCode)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache lookup failed, treating as miss",
				slog.String("short_code", shortCode), slog.Any("err", err))
		}
		return "", false
	}

	return dest, true
}

// SetURL populates the cache entry with the configured TTL. Failures are
// logged and swallowed.
func (c *Cache) SetURL(ctx context.Context, shortCode, destination string) {
	if err := c.rdb.Set(ctx, key(shortCode), destination, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to populate cache entry",
			slog.String("short_code", shortCode), slog.Any("err", err))
	}
}

// Delete removes the cache entry, used when the underlying record is deleted
// or detected expired. Failures are logged and swallowed: the TTL bounds how
// long a stale entry can outlive its record.
func (c *Cache) Delete(ctx context.Context, shortCode string) {
	if err := c.rdb.Del(ctx, key(shortCode)).Err(); err != nil {
		c.logger.Warn("failed to delete cache entry",
			slog.String("short_code", shortCode), slog.Any("err", err))
	}
}

// Ping reports whether the cache store is reachable. Used only for a startup
// log line; the cache works lazily either way.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache.Ping: %w", err)
	}
	return nil
}
