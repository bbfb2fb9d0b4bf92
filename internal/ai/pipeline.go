package ai

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/amishk599/jobradar/internal/model"
)

const (
	DefaultScoringConcurrency = 3
	DefaultScoringTimeout     = 30 * time.Second
)

// Pipeline scores records concurrently. It never retries: once the oracle
// looks unavailable, scoring is switched off for the remainder of the run and
// the rest of the records pass through unscored.
type Pipeline struct {
	scorer      model.Scorer
	profile     string
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewPipeline creates a scoring pipeline. Non-positive concurrency or timeout
// take the defaults.
func NewPipeline(scorer model.Scorer, profile string, concurrency int, timeout time.Duration, logger *slog.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = DefaultScoringConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultScoringTimeout
	}
	return &Pipeline{
		scorer:      scorer,
		profile:     profile,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

// Run returns a copy of records with Score set on every record that was scored
// successfully, in the original order. disabled reports whether scoring was
// switched off during the run.
func (p *Pipeline) Run(ctx context.Context, records []model.JobRecord) (out []model.JobRecord, disabled bool) {
	out = make([]model.JobRecord, len(records))
	copy(out, records)

	var (
		off  atomic.Bool
		once sync.Once
		wg   sync.WaitGroup
	)
	sem := semaphore.NewWeighted(int64(p.concurrency))

	// runCtx is cancelled as soon as scoring is switched off, which also
	// ends the calls still in flight.
	runCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	for i := range out {
		if off.Load() {
			break
		}
		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}
		if off.Load() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			recCtx, cancel := context.WithTimeout(runCtx, p.timeout)
			defer cancel()

			block, err := p.scorer.Score(recCtx, out[i], p.profile)
			if err == nil {
				out[i].Score = &block
				return
			}
			if runCtx.Err() != nil {
				// Caller gave up or scoring was switched off; leave it unscored.
				return
			}
			if errors.Is(err, model.ErrOracleUnavailable) || errors.Is(err, context.DeadlineExceeded) {
				off.Store(true)
				cancelAll()
				once.Do(func() {
					p.logger.Warn("scoring oracle unavailable, skipping scoring for the rest of the run",
						"key", out[i].Key,
						"error", err,
					)
				})
				return
			}
			p.logger.Debug("record left unscored", "key", out[i].Key, "error", err)
		}(i)
	}

	wg.Wait()
	return out, off.Load()
}
