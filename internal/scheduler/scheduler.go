// Package scheduler runs saved searches on cron schedules, persists what they
// find and notifies about records that were not stored before.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/orchestrator"
)

// Runner executes one search query.
type Runner interface {
	Run(ctx context.Context, q model.SearchQuery) (*orchestrator.Result, error)
}

// Search is a saved query with its cron spec. Filter, when set, narrows the
// results before they are stored.
type Search struct {
	Name   string
	Spec   string
	Query  model.SearchQuery
	Filter model.JobFilter
}

// pruner is implemented by stores that can drop old records.
type pruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler wraps robfig/cron and runs each saved search on its own spec.
type Scheduler struct {
	cron      *cron.Cron
	searches  []Search
	runner    Runner
	store     model.JobStore
	notifier  model.Notifier
	retention time.Duration
	logger    *slog.Logger

	locks map[string]*sync.Mutex // one per search, skips overlapping runs
	wg    sync.WaitGroup
}

// New creates a scheduler. A positive retention prunes records older than it
// after every run when the store supports it.
func New(searches []Search, runner Runner, store model.JobStore, notifier model.Notifier, retention time.Duration, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cronLogger{logger})),
		searches:  searches,
		runner:    runner,
		store:     store,
		notifier:  notifier,
		retention: retention,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex, len(searches)),
	}
	for _, search := range searches {
		s.locks[search.Name] = &sync.Mutex{}
	}
	return s
}

// Start registers every search and starts the cron loop. It also runs every
// search once right away so results do not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, search := range s.searches {
		if _, err := s.cron.AddFunc(search.Spec, func() { s.trigger(ctx, search) }); err != nil {
			return fmt.Errorf("schedule %q: %w", search.Name, err)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "searches", len(s.searches))

	for _, search := range s.searches {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.trigger(ctx, search)
		}()
	}
	return nil
}

// Stop stops scheduling and waits for running searches to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled. It returns nil
// on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	s.Stop()
	return nil
}

// trigger runs search unless a previous run of it is still in progress.
func (s *Scheduler) trigger(ctx context.Context, search Search) {
	lock := s.locks[search.Name]
	if !lock.TryLock() {
		s.logger.Warn("previous run still in progress, skipping", "search", search.Name)
		return
	}
	defer lock.Unlock()

	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunSearch(ctx, search); err != nil {
		s.logger.Error("saved search failed", "search", search.Name, "error", err)
	}
}

// RunSearch runs one cycle of search: query, filter, store, notify. It
// returns the records that were new.
func (s *Scheduler) RunSearch(ctx context.Context, search Search) ([]model.JobRecord, error) {
	res, err := s.runner.Run(ctx, search.Query)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", search.Name, err)
	}

	var matched []model.JobRecord
	for _, rec := range res.Records {
		if search.Filter == nil || search.Filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	inserted := 0
	if len(matched) > 0 {
		inserted, err = s.store.InsertMany(ctx, matched)
		if err != nil {
			return nil, fmt.Errorf("running %s: storing: %w", search.Name, err)
		}
	}

	var fresh []model.JobRecord
	if inserted > 0 {
		fresh = matched
		if err := s.notifier.Notify(fresh); err != nil {
			return fresh, fmt.Errorf("running %s: notifying: %w", search.Name, err)
		}
	}

	s.logger.Info("saved search complete",
		"search", search.Name,
		"run_id", res.RunID,
		"fetched", len(res.Records),
		"matched", len(matched),
		"new", inserted,
		"from_cache", res.FromCache,
		"partial", res.Partial,
	)

	s.prune(ctx)
	return fresh, nil
}

func (s *Scheduler) prune(ctx context.Context) {
	p, ok := s.store.(pruner)
	if !ok || s.retention <= 0 {
		return
	}
	n, err := p.Cleanup(ctx, s.retention)
	if err != nil {
		s.logger.Warn("pruning old records failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned old records", "removed", n, "retention", s.retention)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
