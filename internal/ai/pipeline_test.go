package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// funcScorer adapts a function to model.Scorer.
type funcScorer func(ctx context.Context, rec model.JobRecord) (model.ScoreBlock, error)

func (f funcScorer) Score(ctx context.Context, rec model.JobRecord, _ string) (model.ScoreBlock, error) {
	return f(ctx, rec)
}

func makeRecords(n int) []model.JobRecord {
	recs := make([]model.JobRecord, n)
	for i := range recs {
		recs[i] = model.JobRecord{Key: fmt.Sprintf("k%d", i), Title: fmt.Sprintf("Job %d", i)}
	}
	return recs
}

func TestPipeline_ScoresAllInOrder(t *testing.T) {
	scorer := funcScorer(func(_ context.Context, rec model.JobRecord) (model.ScoreBlock, error) {
		return model.ScoreBlock{Quality: 5, Insights: rec.Key}, nil
	})
	p := NewPipeline(scorer, "", 0, 0, discardLogger())

	in := makeRecords(7)
	out, disabled := p.Run(context.Background(), in)
	if disabled {
		t.Error("scoring should stay enabled")
	}
	if len(out) != 7 {
		t.Fatalf("expected 7 records, got %d", len(out))
	}
	for i, rec := range out {
		if rec.Key != in[i].Key {
			t.Errorf("order changed at %d: %q", i, rec.Key)
		}
		if rec.Score == nil || rec.Score.Insights != rec.Key {
			t.Errorf("record %d score = %+v", i, rec.Score)
		}
	}
	if in[0].Score != nil {
		t.Error("input records must not be modified")
	}
}

func TestPipeline_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	scorer := funcScorer(func(_ context.Context, _ model.JobRecord) (model.ScoreBlock, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return model.ScoreBlock{}, nil
	})
	p := NewPipeline(scorer, "", 3, time.Second, discardLogger())

	p.Run(context.Background(), makeRecords(12))
	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
}

func TestPipeline_TimeoutDisablesScoring(t *testing.T) {
	var calls atomic.Int32
	scorer := funcScorer(func(ctx context.Context, _ model.JobRecord) (model.ScoreBlock, error) {
		calls.Add(1)
		<-ctx.Done()
		return model.ScoreBlock{}, ctx.Err()
	})
	p := NewPipeline(scorer, "", 1, 20*time.Millisecond, discardLogger())

	out, disabled := p.Run(context.Background(), makeRecords(5))
	if !disabled {
		t.Error("expected scoring to be disabled after a timeout")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("oracle calls = %d, want 1", got)
	}
	if len(out) != 5 {
		t.Fatalf("records must pass through, got %d", len(out))
	}
	for _, rec := range out {
		if rec.Score != nil {
			t.Errorf("record %s should be unscored", rec.Key)
		}
	}
}

func TestPipeline_UnavailableDisablesScoring(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	scorer := funcScorer(func(_ context.Context, rec model.JobRecord) (model.ScoreBlock, error) {
		mu.Lock()
		seen = append(seen, rec.Key)
		mu.Unlock()
		if rec.Key == "k1" {
			return model.ScoreBlock{}, fmt.Errorf("llm complete: %w", model.ErrOracleUnavailable)
		}
		return model.ScoreBlock{Quality: 1}, nil
	})
	p := NewPipeline(scorer, "", 1, time.Second, discardLogger())

	out, disabled := p.Run(context.Background(), makeRecords(4))
	if !disabled {
		t.Error("expected scoring to be disabled")
	}
	if out[0].Score == nil {
		t.Error("record scored before the outage keeps its score")
	}
	if out[2].Score != nil || out[3].Score != nil {
		t.Error("records after the outage must be unscored")
	}
	if len(seen) != 2 {
		t.Errorf("oracle calls = %v, want 2", seen)
	}
}

func TestPipeline_PerRecordErrorKeepsScoringOn(t *testing.T) {
	scorer := funcScorer(func(_ context.Context, rec model.JobRecord) (model.ScoreBlock, error) {
		if rec.Key == "k0" {
			return model.ScoreBlock{}, errors.New("parse scores: unmarshal")
		}
		return model.ScoreBlock{Quality: 2}, nil
	})
	p := NewPipeline(scorer, "", 2, time.Second, discardLogger())

	out, disabled := p.Run(context.Background(), makeRecords(3))
	if disabled {
		t.Error("a malformed answer must not disable scoring")
	}
	if out[0].Score != nil || out[1].Score == nil || out[2].Score == nil {
		t.Errorf("unexpected scores: %+v %+v %+v", out[0].Score, out[1].Score, out[2].Score)
	}
}

func TestPipeline_CancelledContextLeavesRecordsUnscored(t *testing.T) {
	scorer := funcScorer(func(_ context.Context, _ model.JobRecord) (model.ScoreBlock, error) {
		return model.ScoreBlock{Quality: 3}, nil
	})
	p := NewPipeline(scorer, "", 1, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, _ := p.Run(ctx, makeRecords(3))
	if len(out) != 3 {
		t.Fatalf("records must pass through, got %d", len(out))
	}
	for _, rec := range out {
		if rec.Score != nil {
			t.Errorf("record %s should be unscored", rec.Key)
		}
	}
}

func TestPipeline_UnavailableCancelsInFlightCalls(t *testing.T) {
	started := make(chan struct{}, 2)
	scorer := funcScorer(func(ctx context.Context, rec model.JobRecord) (model.ScoreBlock, error) {
		if rec.Key == "k0" {
			// Fail only once the other two calls are in flight.
			<-started
			<-started
			return model.ScoreBlock{}, fmt.Errorf("llm complete: %w", model.ErrOracleUnavailable)
		}
		started <- struct{}{}
		<-ctx.Done()
		return model.ScoreBlock{}, ctx.Err()
	})
	p := NewPipeline(scorer, "", 3, 5*time.Second, discardLogger())

	start := time.Now()
	out, disabled := p.Run(context.Background(), makeRecords(3))
	elapsed := time.Since(start)

	if !disabled {
		t.Error("expected scoring to be disabled")
	}
	if elapsed > time.Second {
		t.Errorf("in-flight calls waited %v instead of being cancelled", elapsed)
	}
	for _, rec := range out {
		if rec.Score != nil {
			t.Errorf("record %s should be unscored", rec.Key)
		}
	}
}
