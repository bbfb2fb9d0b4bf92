package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/jobradar/internal/model"
)

// DefaultPrefix namespaces cache keys in a shared Redis.
const DefaultPrefix = "jobradar:"

// redisClient is the subset of the go-redis client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Ensure RedisCache implements model.QueryCache.
var _ model.QueryCache = (*RedisCache)(nil)

// RedisCache shares query results between processes, e.g. the CLI and a
// running scheduler. Expiry is left to Redis.
type RedisCache struct {
	client redisClient
	closer func() error
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache parses redisURL, verifies connectivity and returns a cache.
func NewRedisCache(ctx context.Context, redisURL, prefix string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	c := newRedisCache(client, prefix, ttl, logger)
	c.closer = client.Close
	return c, nil
}

func newRedisCache(client redisClient, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(q model.SearchQuery) string {
	return c.prefix + "query:" + Key(q)
}

// Lookup treats Redis errors as misses so a cache outage only costs a fetch.
func (c *RedisCache) Lookup(ctx context.Context, q model.SearchQuery) ([]model.JobRecord, bool) {
	key := c.key(q)
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis cache lookup failed", "key", key, "error", err)
		return nil, false
	}

	var records []model.JobRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		c.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return nil, false
	}
	c.logger.Debug("query cache hit", "key", key, "records", len(records))
	return records, true
}

func (c *RedisCache) Store(ctx context.Context, q model.SearchQuery, records []model.JobRecord) error {
	if records == nil {
		records = []model.JobRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(q), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
