package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/clock"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// waitForTimer spins until the manual clock has n pending timers.
func waitForTimer(t *testing.T, clk *clock.Manual, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for clk.Waiters() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending timers", n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWait_BurstAdmittedImmediately(t *testing.T) {
	clk := clock.NewManual(epoch)
	limiter := NewSourceLimiter(Rate{Interval: 2 * time.Second, Burst: 3}, nil, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "indeed"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if got := limiter.Tokens("indeed"); got != 0 {
		t.Errorf("tokens = %v, want 0", got)
	}
}

func TestWait_BlocksUntilRefill(t *testing.T) {
	clk := clock.NewManual(epoch)
	limiter := NewSourceLimiter(Rate{Interval: 2 * time.Second, Burst: 3}, nil, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "indeed"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- limiter.Wait(ctx, "indeed") }()

	waitForTimer(t, clk, 1)
	select {
	case <-done:
		t.Fatal("fourth request admitted before a token was refilled")
	default:
	}

	clk.Advance(2 * time.Second)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait after refill: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after refill")
	}
}

func TestWait_NeverExceedsBurstInShortWindow(t *testing.T) {
	clk := clock.NewManual(epoch)
	limiter := NewSourceLimiter(Rate{Interval: time.Second, Burst: 3}, nil, clk)

	// Idle for a long time: the bucket saturates at the burst size.
	clk.Advance(time.Hour)
	if got := limiter.Tokens("xing"); got != 3 {
		t.Fatalf("tokens after idle = %v, want 3", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	admitted := 0
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "xing"); err == nil {
			admitted++
		}
	}
	cancel()
	if err := limiter.Wait(ctx, "xing"); err == nil {
		admitted++
	}
	if admitted != 3 {
		t.Errorf("admitted %d requests in a zero-length window, want 3", admitted)
	}
}

func TestWait_DifferentSources_NoCrossBlocking(t *testing.T) {
	clk := clock.NewManual(epoch)
	limiter := NewSourceLimiter(Rate{Interval: time.Minute, Burst: 1}, nil, clk)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "linkedin"); err != nil {
		t.Fatalf("linkedin wait: %v", err)
	}
	// linkedin is now empty; monster has its own bucket.
	if err := limiter.Wait(ctx, "monster"); err != nil {
		t.Fatalf("monster wait: %v", err)
	}
	if clk.Waiters() != 0 {
		t.Errorf("expected no pending timers, got %d", clk.Waiters())
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	clk := clock.NewManual(epoch)
	limiter := NewSourceLimiter(Rate{Interval: time.Minute, Burst: 1}, nil, clk)

	if err := limiter.Wait(context.Background(), "indeed"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- limiter.Wait(ctx, "indeed") }()
	waitForTimer(t, clk, 1)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error from cancelled context, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not observe cancellation")
	}
}

func TestRateFor_OverridesAndDefaultBurst(t *testing.T) {
	limiter := NewSourceLimiter(
		Rate{Interval: 1500 * time.Millisecond},
		map[string]Rate{"linkedin": {Interval: 5 * time.Second, Burst: 2}},
		clock.NewManual(epoch),
	)

	if got := limiter.RateFor("linkedin"); got.Interval != 5*time.Second || got.Burst != 2 {
		t.Errorf("linkedin rate = %+v", got)
	}
	if got := limiter.RateFor("xing"); got.Interval != 1500*time.Millisecond || got.Burst != DefaultBurst {
		t.Errorf("xing rate = %+v", got)
	}
}

func TestRefill_IsContinuous(t *testing.T) {
	clk := clock.NewManual(epoch)
	limiter := NewSourceLimiter(Rate{Interval: 2 * time.Second, Burst: 3}, nil, clk)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = limiter.Wait(ctx, "stepstone")
	}

	clk.Advance(time.Second)
	if got := limiter.Tokens("stepstone"); got != 0.5 {
		t.Errorf("tokens after half an interval = %v, want 0.5", got)
	}
}
