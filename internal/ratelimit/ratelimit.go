package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/jobradar/internal/clock"
)

// Rate configures one source's bucket: a token is added every Interval, up to
// Burst tokens.
type Rate struct {
	Interval time.Duration
	Burst    int
}

// DefaultBurst is used when a Rate leaves Burst unset.
const DefaultBurst = 3

type bucket struct {
	tokens float64
	last   time.Time
	rate   Rate
}

// refill adds the tokens accrued since the last refill. A clock that moved
// backwards adds nothing.
func (b *bucket) refill(now time.Time) {
	if !now.After(b.last) {
		return
	}
	elapsed := now.Sub(b.last)
	b.tokens += float64(elapsed) / float64(b.rate.Interval)
	if capacity := float64(b.rate.Burst); b.tokens > capacity {
		b.tokens = capacity
	}
	b.last = now
}

// SourceLimiter keeps one token bucket per source. Waiting on one source never
// blocks callers of another.
type SourceLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	defRate   Rate
	overrides map[string]Rate
	clock     clock.Clock
}

// NewSourceLimiter creates a limiter using def for every source without an
// entry in overrides.
func NewSourceLimiter(def Rate, overrides map[string]Rate, clk clock.Clock) *SourceLimiter {
	if clk == nil {
		clk = clock.Real{}
	}
	return &SourceLimiter{
		buckets:   make(map[string]*bucket),
		defRate:   def,
		overrides: overrides,
		clock:     clk,
	}
}

// RateFor returns the effective rate for source.
func (l *SourceLimiter) RateFor(source string) Rate {
	r, ok := l.overrides[source]
	if !ok {
		r = l.defRate
	}
	if r.Burst <= 0 {
		r.Burst = DefaultBurst
	}
	return r
}

// bucketLocked returns the bucket for source, creating a full one on first use.
// Caller must hold l.mu.
func (l *SourceLimiter) bucketLocked(source string, now time.Time) *bucket {
	b, ok := l.buckets[source]
	if !ok {
		r := l.RateFor(source)
		b = &bucket{tokens: float64(r.Burst), last: now, rate: r}
		l.buckets[source] = b
	}
	return b
}

// Wait blocks until a token for source is available and consumes it.
// Returns an error if the context is cancelled while waiting.
func (l *SourceLimiter) Wait(ctx context.Context, source string) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rate limiter wait for %s: %w", source, err)
		}

		l.mu.Lock()
		now := l.clock.Now()
		b := l.bucketLocked(source, now)
		if b.rate.Interval <= 0 {
			l.mu.Unlock()
			return nil
		}
		b.refill(now)
		if b.tokens >= 1 {
			b.tokens--
			l.mu.Unlock()
			return nil
		}
		// Time until the next whole token.
		remaining := time.Duration((1 - b.tokens) * float64(b.rate.Interval))
		l.mu.Unlock()

		if remaining <= 0 {
			remaining = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter wait for %s: %w", source, ctx.Err())
		case <-l.clock.After(remaining):
		}
	}
}

// Tokens reports the tokens currently available for source.
func (l *SourceLimiter) Tokens(source string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	b := l.bucketLocked(source, now)
	if b.rate.Interval > 0 {
		b.refill(now)
	}
	return b.tokens
}
