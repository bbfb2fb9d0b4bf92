// Package cache keeps recent query results so repeated searches within the
// TTL are answered without fetching.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/amishk599/jobradar/internal/clock"
	"github.com/amishk599/jobradar/internal/model"
)

// DefaultTTL is used when a cache is created with a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Key returns a stable hash of the normalized query.
func Key(q model.SearchQuery) string {
	// A struct of strings, an int and a string slice always marshals.
	b, _ := json.Marshal(q.Normalized())
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Ensure MemoryCache implements model.QueryCache.
var _ model.QueryCache = (*MemoryCache)(nil)

type entry struct {
	records  []model.JobRecord
	storedAt time.Time
}

// MemoryCache is a process-local query cache. Expired entries are dropped on
// lookup.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Clock
	logger  *slog.Logger
}

// NewMemoryCache returns an empty cache with the given TTL.
func NewMemoryCache(ttl time.Duration, clk clock.Clock, logger *slog.Logger) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clk,
		logger:  logger,
	}
}

func (c *MemoryCache) Lookup(_ context.Context, q model.SearchQuery) ([]model.JobRecord, bool) {
	key := Key(q)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	c.logger.Debug("query cache hit", "key", key[:12], "records", len(e.records))
	return slices.Clone(e.records), true
}

func (c *MemoryCache) Store(_ context.Context, q model.SearchQuery, records []model.JobRecord) error {
	key := Key(q)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{records: slices.Clone(records), storedAt: c.clock.Now()}
	return nil
}

// Len returns the number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
