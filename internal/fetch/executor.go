package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobradar/internal/clock"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/proxy"
)

// Limiter gates requests per source.
type Limiter interface {
	Wait(ctx context.Context, source string) error
}

// Pool hands out proxy endpoints.
type Pool interface {
	Acquire(ctx context.Context, source string) (*proxy.Endpoint, error)
	Release(ep *proxy.Endpoint, outcome proxy.Outcome)
	Hint(ep *proxy.Endpoint, d time.Duration)
}

// Options tune retries. Zero fields take the documented defaults.
type Options struct {
	Attempts       int           // total attempts per request, default 3
	BackoffBase    time.Duration // default 1s
	BackoffCap     time.Duration // default 8s
	RequestTimeout time.Duration // per attempt, default 60s
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 8 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	return o
}

// Executor issues adapter requests through the proxy pool under the source's
// rate limit, retrying transient failures with exponential backoff and jitter.
type Executor struct {
	limiter Limiter
	pool    Pool
	doer    proxy.Doer
	opts    Options
	clock   clock.Clock
	jitter  func() float64 // returns a value in [0, 1)
	logger  *slog.Logger
}

// NewExecutor wires an executor with all its dependencies.
func NewExecutor(limiter Limiter, pool Pool, doer proxy.Doer, opts Options, clk clock.Clock, logger *slog.Logger) *Executor {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Executor{
		limiter: limiter,
		pool:    pool,
		doer:    doer,
		opts:    opts.withDefaults(),
		clock:   clk,
		jitter:  rand.Float64,
		logger:  logger,
	}
}

// Fetch returns the response body for req. Errors wrap model.ErrPoolExhausted
// when no endpoint became available, the context error when the caller gave
// up, or a *model.FetchError once retries are exhausted or the failure is not
// transient.
func (e *Executor) Fetch(ctx context.Context, source string, req model.Request) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.Attempts; attempt++ {
		if attempt > 1 {
			delay := e.backoffDelay(attempt-1, lastErr)
			e.logger.Warn("retrying after transient error",
				"source", source,
				"attempt", attempt,
				"max_attempts", e.opts.Attempts,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-e.clock.After(delay):
			}
		}

		body, err := e.attempt(ctx, source, req)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, ctx.Err())
		}
		if errors.Is(err, model.ErrPoolExhausted) {
			return nil, err
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return nil, &model.FetchError{Source: source, Cause: lastErr}
}

// attempt makes one rate-limited request through one endpoint.
func (e *Executor) attempt(ctx context.Context, source string, req model.Request) ([]byte, error) {
	if err := e.limiter.Wait(ctx, source); err != nil {
		return nil, err
	}
	ep, err := e.pool.Acquire(ctx, source)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()

	resp, err := e.doer.Do(reqCtx, ep, req)
	if err == nil {
		e.pool.Release(ep, proxy.Success)
		return resp.Body, nil
	}

	if ctx.Err() != nil {
		e.pool.Release(ep, proxy.Abandoned)
		return nil, err
	}

	var httpErr *model.HTTPError
	switch {
	case errors.As(err, &httpErr) && httpErr.Blocked():
		e.pool.Release(ep, proxy.Failure)
		e.pool.Hint(ep, httpErr.RetryAfter)
		e.logger.Warn("target signalled blocking",
			"source", source,
			"endpoint", ep.Address(),
			"status", httpErr.StatusCode,
		)
	case errors.As(err, &httpErr):
		// The endpoint delivered the target's answer.
		e.pool.Release(ep, proxy.Success)
	default:
		e.pool.Release(ep, proxy.Failure)
	}
	return nil, err
}

// backoffDelay computes the delay before retry n (1-based) with ±30% jitter,
// capped at BackoffCap. A Retry-After from the target takes precedence.
func (e *Executor) backoffDelay(retry int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return min(httpErr.RetryAfter, e.opts.BackoffCap)
	}

	// Exponential: base * 2^(retry-1)
	delay := e.opts.BackoffBase
	for i := 1; i < retry && delay < e.opts.BackoffCap; i++ {
		delay *= 2
	}
	delay = min(delay, e.opts.BackoffCap)

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (e.jitter()*2-1)*jitter)

	return min(delay, e.opts.BackoffCap)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Caller cancellation is handled before we get here; a deadline here is the
	// per-attempt timeout, which is transient.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 Too Many Requests and 5xx are retryable; any other 4xx is not.
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Broken TLS will not fix itself on retry.
	var recordErr tls.RecordHeaderError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var certErr x509.CertificateInvalidError
	if errors.As(err, &recordErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &certErr) {
		return false
	}

	// Timeouts, resets, DNS and other network errors.
	return true
}
