package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/proxy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// instantClock fires every timer immediately and records the requested delays.
type instantClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *instantClock) Now() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

type countingLimiter struct{ calls int }

func (l *countingLimiter) Wait(ctx context.Context, _ string) error {
	l.calls++
	return ctx.Err()
}

// fakePool hands out one endpoint and records what happened to it.
type fakePool struct {
	ep       *proxy.Endpoint
	err      error
	outcomes []proxy.Outcome
	hints    []time.Duration
}

func (p *fakePool) Acquire(_ context.Context, _ string) (*proxy.Endpoint, error) {
	return p.ep, p.err
}

func (p *fakePool) Release(_ *proxy.Endpoint, o proxy.Outcome) { p.outcomes = append(p.outcomes, o) }

func (p *fakePool) Hint(_ *proxy.Endpoint, d time.Duration) { p.hints = append(p.hints, d) }

// scriptedDoer returns the scripted error for each call; nil means success.
type scriptedDoer struct {
	calls  int
	script []error
}

func (d *scriptedDoer) Do(_ context.Context, _ *proxy.Endpoint, _ model.Request) (*model.Response, error) {
	d.calls++
	if d.calls <= len(d.script) && d.script[d.calls-1] != nil {
		return nil, d.script[d.calls-1]
	}
	return &model.Response{StatusCode: 200, Body: []byte("ok")}, nil
}

func newTestExecutor(doer proxy.Doer, pool *fakePool, clk *instantClock) (*Executor, *countingLimiter) {
	if pool.ep == nil {
		pool.ep = &proxy.Endpoint{}
	}
	lim := &countingLimiter{}
	e := NewExecutor(lim, pool, doer, Options{}, clk, discardLogger())
	e.jitter = func() float64 { return 0.5 } // no jitter
	return e, lim
}

func TestFetch_SucceedsOnFirstAttempt(t *testing.T) {
	pool := &fakePool{}
	doer := &scriptedDoer{}
	e, lim := newTestExecutor(doer, pool, &instantClock{})

	body, err := e.Fetch(context.Background(), "indeed", model.Request{URL: "https://x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if doer.calls != 1 || lim.calls != 1 {
		t.Errorf("calls: doer=%d limiter=%d, want 1/1", doer.calls, lim.calls)
	}
	if len(pool.outcomes) != 1 || pool.outcomes[0] != proxy.Success {
		t.Errorf("outcomes = %v, want [success]", pool.outcomes)
	}
}

func TestFetch_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	pool := &fakePool{}
	doer := &scriptedDoer{script: []error{&model.HTTPError{StatusCode: 503}}}
	clk := &instantClock{}
	e, lim := newTestExecutor(doer, pool, clk)

	if _, err := e.Fetch(context.Background(), "xing", model.Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doer.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", doer.calls)
	}
	if lim.calls != 2 {
		t.Errorf("every attempt must take a token, limiter calls = %d", lim.calls)
	}
	if len(clk.delays) != 1 || clk.delays[0] != time.Second {
		t.Errorf("backoff delays = %v, want [1s]", clk.delays)
	}
}

func TestFetch_ExhaustsAttempts(t *testing.T) {
	netErr := errors.New("connection reset by peer")
	pool := &fakePool{}
	doer := &scriptedDoer{script: []error{netErr, netErr, netErr}}
	clk := &instantClock{}
	e, _ := newTestExecutor(doer, pool, clk)

	_, err := e.Fetch(context.Background(), "monster", model.Request{})
	if !errors.Is(err, model.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.Source != "monster" || !errors.Is(fe.Cause, netErr) {
		t.Errorf("fetch error = %+v", fe)
	}
	if doer.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", doer.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(clk.delays) != len(want) || clk.delays[0] != want[0] || clk.delays[1] != want[1] {
		t.Errorf("backoff delays = %v, want %v", clk.delays, want)
	}
	for _, o := range pool.outcomes {
		if o != proxy.Failure {
			t.Errorf("transport errors must count as endpoint failures, got %v", pool.outcomes)
		}
	}
}

func TestFetch_DoesNotRetryOn4xx(t *testing.T) {
	pool := &fakePool{}
	doer := &scriptedDoer{script: []error{&model.HTTPError{StatusCode: 404}}}
	e, _ := newTestExecutor(doer, pool, &instantClock{})

	_, err := e.Fetch(context.Background(), "stepstone", model.Request{})
	if !errors.Is(err, model.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if doer.calls != 1 {
		t.Errorf("expected 1 call for 404, got %d", doer.calls)
	}
	if pool.outcomes[0] != proxy.Success {
		t.Errorf("a 404 was delivered by the endpoint, outcome = %v", pool.outcomes[0])
	}
}

func TestFetch_429HintsCooldownAndRetries(t *testing.T) {
	pool := &fakePool{}
	doer := &scriptedDoer{script: []error{&model.HTTPError{StatusCode: 429, RetryAfter: 3 * time.Second}}}
	clk := &instantClock{}
	e, _ := newTestExecutor(doer, pool, clk)

	if _, err := e.Fetch(context.Background(), "linkedin", model.Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.hints) != 1 || pool.hints[0] != 3*time.Second {
		t.Errorf("hints = %v, want [3s]", pool.hints)
	}
	if pool.outcomes[0] != proxy.Failure {
		t.Errorf("first outcome = %v, want failure", pool.outcomes[0])
	}
	if clk.delays[0] != 3*time.Second {
		t.Errorf("retry delay = %v, want Retry-After 3s", clk.delays[0])
	}
}

func TestFetch_PoolExhaustedIsNotRetried(t *testing.T) {
	pool := &fakePool{err: fmt.Errorf("acquire: %w", model.ErrPoolExhausted)}
	doer := &scriptedDoer{}
	e, _ := newTestExecutor(doer, pool, &instantClock{})

	_, err := e.Fetch(context.Background(), "indeed", model.Request{})
	if !errors.Is(err, model.ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
	if doer.calls != 0 {
		t.Errorf("no request should be sent without an endpoint, got %d", doer.calls)
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	pool := &fakePool{}
	doer := &scriptedDoer{}
	e, _ := newTestExecutor(doer, pool, &instantClock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Fetch(ctx, "indeed", model.Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, model.ErrFetchFailed) {
		t.Error("cancellation must not be reported as a fetch failure")
	}
}

func TestBackoffDelay_CappedWithJitter(t *testing.T) {
	e := NewExecutor(nil, nil, nil, Options{}, &instantClock{}, discardLogger())

	for _, j := range []float64{0, 0.5, 0.999} {
		e.jitter = func() float64 { return j }
		for retry := 1; retry <= 6; retry++ {
			d := e.backoffDelay(retry, errors.New("boom"))
			if d > 8*time.Second {
				t.Errorf("retry %d jitter %.3f: delay %v exceeds cap", retry, j, d)
			}
			if d < 700*time.Millisecond {
				t.Errorf("retry %d jitter %.3f: delay %v below base minus jitter", retry, j, d)
			}
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &model.HTTPError{StatusCode: 429}, true},
		{"502", &model.HTTPError{StatusCode: 502}, true},
		{"403", &model.HTTPError{StatusCode: 403}, false},
		{"404", &model.HTTPError{StatusCode: 404}, false},
		{"network", errors.New("dial tcp: connection refused"), true},
		{"attempt timeout", fmt.Errorf("do: %w", context.DeadlineExceeded), true},
		{"cancelled", context.Canceled, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
