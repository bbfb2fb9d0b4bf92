package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobradar/internal/clock"
	"github.com/amishk599/jobradar/internal/model"
)

// Outcome is the result of a request made through an endpoint.
type Outcome int

const (
	Success Outcome = iota
	Failure
	// Abandoned releases the endpoint without judging it, e.g. on cancellation.
	Abandoned
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "abandoned"
	}
}

// Endpoint is a proxy bypass instance. Its state is owned by the Balancer;
// holders of an *Endpoint can only read its address.
type Endpoint struct {
	address string

	inFlight      int
	failures      int // consecutive failures
	trips         int // consecutive cooldowns, drives the exponential duration
	cooldownUntil time.Time
	lastUsed      time.Time
}

// Address returns the endpoint base URL.
func (e *Endpoint) Address() string { return e.address }

// EndpointStatus is a point-in-time copy of an endpoint's state.
type EndpointStatus struct {
	Address       string
	InFlight      int
	Failures      int
	CooldownUntil time.Time
	LastUsed      time.Time
}

// Options tune the balancer. Zero fields take the documented defaults.
type Options struct {
	FailureThreshold int           // default 3
	CooldownBase     time.Duration // default 30s
	CooldownMax      time.Duration // default 10m
	AcquireTimeout   time.Duration // default 30s
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 3
	}
	if o.CooldownBase <= 0 {
		o.CooldownBase = 30 * time.Second
	}
	if o.CooldownMax <= 0 {
		o.CooldownMax = 10 * time.Minute
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = 30 * time.Second
	}
	return o
}

// Balancer selects the least loaded endpoint that is not cooling down.
type Balancer struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	changed   chan struct{} // closed and replaced whenever a cooldown ends early
	opts      Options
	clock     clock.Clock
	logger    *slog.Logger
}

// NewBalancer creates a balancer over the given endpoint addresses.
func NewBalancer(addresses []string, opts Options, clk clock.Clock, logger *slog.Logger) (*Balancer, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: at least one proxy endpoint is required", model.ErrConfigInvalid)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	eps := make([]*Endpoint, 0, len(addresses))
	for _, a := range addresses {
		eps = append(eps, &Endpoint{address: a})
	}
	return &Balancer{
		endpoints: eps,
		changed:   make(chan struct{}),
		opts:      opts.withDefaults(),
		clock:     clk,
		logger:    logger,
	}, nil
}

// Acquire returns the endpoint to use for the next request of source. If every
// endpoint is cooling down it waits for the nearest expiry, giving up with
// model.ErrPoolExhausted after the acquire timeout.
func (b *Balancer) Acquire(ctx context.Context, source string) (*Endpoint, error) {
	deadline := b.clock.Now().Add(b.opts.AcquireTimeout)

	for {
		b.mu.Lock()
		now := b.clock.Now()
		if ep := b.pickLocked(now); ep != nil {
			ep.inFlight++
			ep.lastUsed = now
			b.mu.Unlock()
			b.logger.Debug("proxy acquired", "source", source, "endpoint", ep.address)
			return ep, nil
		}

		nearest := b.nearestExpiryLocked()
		changed := b.changed
		b.mu.Unlock()

		if !now.Before(deadline) {
			return nil, fmt.Errorf("acquire for %s: %w", source, model.ErrPoolExhausted)
		}
		wait := nearest.Sub(now)
		if remaining := deadline.Sub(now); wait > remaining {
			wait = remaining
		}

		b.logger.Debug("all proxies cooling down", "source", source, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire for %s: %w", source, ctx.Err())
		case <-changed:
		case <-b.clock.After(wait):
		}
	}
}

// pickLocked returns the available endpoint with the lowest in-flight count,
// preferring the one idle the longest on ties. Caller must hold b.mu.
func (b *Balancer) pickLocked(now time.Time) *Endpoint {
	var best *Endpoint
	for _, ep := range b.endpoints {
		if now.Before(ep.cooldownUntil) {
			continue
		}
		if best == nil ||
			ep.inFlight < best.inFlight ||
			(ep.inFlight == best.inFlight && ep.lastUsed.Before(best.lastUsed)) {
			best = ep
		}
	}
	return best
}

func (b *Balancer) nearestExpiryLocked() time.Time {
	var nearest time.Time
	for _, ep := range b.endpoints {
		if nearest.IsZero() || ep.cooldownUntil.Before(nearest) {
			nearest = ep.cooldownUntil
		}
	}
	return nearest
}

// Release returns ep to the pool and records the request outcome. A success
// clears the failure count and any cooldown; reaching the failure threshold
// starts a cooldown that doubles with every consecutive trip.
func (b *Balancer) Release(ep *Endpoint, outcome Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ep.inFlight > 0 {
		ep.inFlight--
	}

	now := b.clock.Now()
	switch outcome {
	case Success:
		wasCooling := now.Before(ep.cooldownUntil)
		ep.failures = 0
		ep.trips = 0
		ep.cooldownUntil = time.Time{}
		if wasCooling {
			b.broadcastLocked()
		}
	case Failure:
		ep.failures++
		if ep.failures >= b.opts.FailureThreshold {
			d := b.cooldownFor(ep.trips)
			ep.trips++
			ep.failures = 0
			ep.cooldownUntil = now.Add(d)
			b.logger.Warn("proxy endpoint cooling down",
				"endpoint", ep.address,
				"cooldown", d,
			)
		}
	}
}

// Hint extends ep's cooldown to at least d from now without touching its
// failure count. Used when a target signals rate limiting or blocking.
func (b *Balancer) Hint(ep *Endpoint, d time.Duration) {
	if d <= 0 {
		d = b.opts.CooldownBase
	}
	if d > b.opts.CooldownMax {
		d = b.opts.CooldownMax
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	until := b.clock.Now().Add(d)
	if until.After(ep.cooldownUntil) {
		ep.cooldownUntil = until
	}
}

func (b *Balancer) cooldownFor(trips int) time.Duration {
	d := b.opts.CooldownBase
	for i := 0; i < trips; i++ {
		d *= 2
		if d >= b.opts.CooldownMax {
			return b.opts.CooldownMax
		}
	}
	return d
}

func (b *Balancer) broadcastLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// Snapshot returns the current state of every endpoint.
func (b *Balancer) Snapshot() []EndpointStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]EndpointStatus, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		out = append(out, EndpointStatus{
			Address:       ep.address,
			InFlight:      ep.inFlight,
			Failures:      ep.failures,
			CooldownUntil: ep.cooldownUntil,
			LastUsed:      ep.lastUsed,
		})
	}
	return out
}
