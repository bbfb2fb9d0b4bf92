// Package orchestrator runs a search query across job boards: it fans out
// page fetches under global and per-source bounds, normalizes and filters what
// comes back, deduplicates against the run and the store, and optionally
// scores the survivors.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/amishk599/jobradar/internal/clock"
	"github.com/amishk599/jobradar/internal/filter"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/normalize"
)

// Fetcher returns the body for a board request.
type Fetcher interface {
	Fetch(ctx context.Context, source string, req model.Request) ([]byte, error)
}

// Scoring annotates records. It returns the records in the same order and
// whether scoring was switched off along the way.
type Scoring interface {
	Run(ctx context.Context, records []model.JobRecord) ([]model.JobRecord, bool)
}

// Deps are the optional collaborators of an Orchestrator. Nil fields disable
// the corresponding step.
type Deps struct {
	Store   model.JobStore   // historical dedup lookup
	Cache   model.QueryCache // short-lived query results
	Scoring Scoring
	Filter  model.JobFilter // e.g. red flags, applied to every record
}

// Options bound a run. Zero fields take the defaults.
type Options struct {
	GlobalConcurrency    int           // page fetches in flight across sources, default 6
	PerSourceConcurrency int           // streams in flight per source, default 2
	MaxPages             int           // used when the query does not set one, default 3
	RunTimeout           time.Duration // default 5m
	LookupTimeout        time.Duration // store lookup after the run deadline, default 10s
	LookupBatch          int           // keys per Exists call, default 500
}

func (o Options) withDefaults() Options {
	if o.GlobalConcurrency <= 0 {
		o.GlobalConcurrency = 6
	}
	if o.PerSourceConcurrency <= 0 {
		o.PerSourceConcurrency = 2
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 5 * time.Minute
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 10 * time.Second
	}
	if o.LookupBatch <= 0 {
		o.LookupBatch = 500
	}
	return o
}

// Orchestrator runs queries. It is safe for concurrent use; each Run owns its
// own dedup set and summary.
type Orchestrator struct {
	adapters map[string]model.SiteAdapter
	order    []string // configured source order, drives output order
	fetcher  Fetcher
	deps     Deps
	opts     Options
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates an orchestrator over adapters, keeping their order.
func New(adapters []model.SiteAdapter, fetcher Fetcher, deps Deps, opts Options, clk clock.Clock, logger *slog.Logger) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: no sources enabled", model.ErrConfigInvalid)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	o := &Orchestrator{
		adapters: make(map[string]model.SiteAdapter, len(adapters)),
		fetcher:  fetcher,
		deps:     deps,
		opts:     opts.withDefaults(),
		clock:    clk,
		logger:   logger,
	}
	for _, a := range adapters {
		if _, dup := o.adapters[a.Name()]; dup {
			return nil, fmt.Errorf("%w: source %q configured twice", model.ErrConfigInvalid, a.Name())
		}
		o.adapters[a.Name()] = a
		o.order = append(o.order, a.Name())
	}
	return o, nil
}

// Sources returns the configured source names in order.
func (o *Orchestrator) Sources() []string {
	return append([]string(nil), o.order...)
}

// run is the mutable state of one Run call.
type run struct {
	id      string
	query   model.SearchQuery
	sources []string
	state   State
	summary *summaryBook
	logger  *slog.Logger
}

func (r *run) transition(s State) {
	r.logger.Debug("run state", "from", r.state, "to", s)
	r.state = s
}

// Run executes q. Only configuration problems are returned as errors (wrapping
// model.ErrConfigInvalid); source failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, q model.SearchQuery) (*Result, error) {
	start := o.clock.Now()
	r := &run{
		id:     uuid.NewString(),
		query:  q.Normalized(),
		state:  StatePending,
		logger: o.logger,
	}
	r.logger = o.logger.With("run_id", r.id)
	if r.query.MaxPages == 0 {
		r.query.MaxPages = o.opts.MaxPages
	}

	sources, err := o.selectSources(r.query)
	if err == nil {
		err = r.query.Validate()
	}
	if err != nil {
		r.transition(StateFailed)
		return &Result{RunID: r.id, Query: r.query, State: StateFailed, Summary: map[string]SourceSummary{}}, err
	}
	r.sources = sources
	r.summary = newSummaryBook(sources)

	if o.deps.Cache != nil {
		if recs, ok := o.deps.Cache.Lookup(ctx, r.query); ok {
			r.logger.Info("serving query from cache", "records", len(recs))
			r.transition(StateComplete)
			return &Result{
				RunID:     r.id,
				Query:     r.query,
				Records:   recs,
				Sources:   r.sources,
				Summary:   r.summary.snapshot(),
				State:     StateComplete,
				FromCache: true,
				Duration:  o.clock.Now().Sub(start),
			}, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()

	r.transition(StateFanningOut)
	pages := o.fanOut(runCtx, r)
	partial := runCtx.Err() != nil
	if partial {
		r.logger.Warn("run deadline reached, continuing with partial results", "error", runCtx.Err())
	}

	r.transition(StateDeduplicating)
	records := o.dedup(ctx, runCtx, r, pages)

	res := &Result{RunID: r.id, Query: r.query, Sources: r.sources, Partial: partial}
	if o.deps.Scoring != nil && len(records) > 0 {
		if runCtx.Err() == nil {
			r.transition(StateScoring)
			records, res.ScoringDisabled = o.deps.Scoring.Run(runCtx, records)
		} else {
			r.logger.Warn("skipping scoring after run deadline", "records", len(records))
		}
	}

	if o.deps.Cache != nil && !partial {
		if err := o.deps.Cache.Store(ctx, r.query, records); err != nil {
			r.logger.Warn("storing query result in cache failed", "error", err)
		}
	}

	r.transition(StateComplete)
	res.Records = records
	res.Summary = r.summary.snapshot()
	res.State = StateComplete
	res.Duration = o.clock.Now().Sub(start)

	for _, src := range r.sources {
		s := res.Summary[src]
		r.logger.Info("source finished",
			"source", src,
			"pages", s.PagesFetched,
			"listings", s.Listings,
			"filtered", s.Filtered,
			"duplicates", s.Duplicates,
			"kept", s.Kept,
			"fetch_errors", s.FetchErrors,
			"parse_errors", s.ParseErrors,
			"skipped", s.Skipped,
		)
	}
	r.logger.Info("run complete",
		"records", len(records),
		"partial", partial,
		"scoring_disabled", res.ScoringDisabled,
		"duration", res.Duration,
	)
	return res, nil
}

// selectSources returns the sources to query in configured order.
func (o *Orchestrator) selectSources(q model.SearchQuery) ([]string, error) {
	if len(q.Sources) == 0 {
		return o.Sources(), nil
	}
	wanted := make(map[string]bool, len(q.Sources))
	for _, s := range q.Sources {
		if _, ok := o.adapters[s]; !ok {
			return nil, fmt.Errorf("%w: source %q is not enabled", model.ErrConfigInvalid, s)
		}
		wanted[s] = true
	}
	var out []string
	for _, s := range o.order {
		if wanted[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

// stream is one (source, search term) pagination sequence.
type stream struct {
	source string
	term   string
	pages  [][]model.JobRecord
}

// fanOut runs every stream and returns their pages in source, term, page order.
func (o *Orchestrator) fanOut(ctx context.Context, r *run) []*stream {
	terms := r.query.Terms()
	global := semaphore.NewWeighted(int64(o.opts.GlobalConcurrency))
	perSource := make(map[string]*semaphore.Weighted, len(r.sources))

	var streams []*stream
	for _, src := range r.sources {
		perSource[src] = semaphore.NewWeighted(int64(o.opts.PerSourceConcurrency))
		for _, term := range terms {
			streams = append(streams, &stream{source: src, term: term})
		}
	}

	r.transition(StateCollecting)
	var g errgroup.Group
	for _, st := range streams {
		g.Go(func() error {
			if err := perSource[st.source].Acquire(ctx, 1); err != nil {
				return nil
			}
			defer perSource[st.source].Release(1)
			o.collect(ctx, r, st, global)
			return nil
		})
	}
	g.Wait()
	return streams
}

// collect fetches the pages of st sequentially. Fetch and parse failures skip
// the page; an exhausted proxy pool abandons the stream.
func (o *Orchestrator) collect(ctx context.Context, r *run, st *stream, global *semaphore.Weighted) {
	adapter := o.adapters[st.source]
	q := r.query
	q.Keywords = st.term
	logger := r.logger.With("source", st.source, "term", st.term)
	seen := make(map[string]bool)
	pass := o.localFilter(adapter, q)

	for page := 1; page <= q.MaxPages; page++ {
		if ctx.Err() != nil {
			return
		}
		req, err := adapter.BuildRequest(q, page)
		if err != nil {
			logger.Error("building request failed", "page", page, "error", err)
			r.summary.fail(st.source, err, func(s *SourceSummary) { s.Skipped++ })
			return
		}

		if err := global.Acquire(ctx, 1); err != nil {
			return
		}
		body, err := o.fetcher.Fetch(ctx, st.source, req)
		global.Release(1)

		if ctx.Err() != nil {
			// Results of in-flight fetches are discarded at the deadline.
			return
		}
		if err != nil {
			if errors.Is(err, model.ErrPoolExhausted) {
				logger.Warn("proxy pool exhausted, skipping source", "page", page, "error", err)
				r.summary.fail(st.source, err, func(s *SourceSummary) { s.Skipped++ })
				return
			}
			logger.Warn("fetch failed, skipping page", "page", page, "error", err)
			r.summary.fail(st.source, err, func(s *SourceSummary) { s.FetchErrors++ })
			continue
		}
		r.summary.update(st.source, func(s *SourceSummary) { s.PagesFetched++ })

		raws, err := adapter.ParseResponse(body)
		if err != nil {
			var pe *model.ParseError
			sample := ""
			if errors.As(err, &pe) {
				sample = pe.Sample
			}
			logger.Warn("parse failed, treating page as empty", "page", page, "error", err, "sample", sample)
			r.summary.fail(st.source, err, func(s *SourceSummary) { s.ParseErrors++ })
			continue
		}

		now := o.clock.Now()
		fresh := 0
		var kept []model.JobRecord
		filtered := 0
		for _, raw := range raws {
			rec := normalize.Record(raw, st.source, now)
			if !seen[rec.Key] {
				seen[rec.Key] = true
				fresh++
			}
			if !pass.Match(rec) {
				filtered++
				continue
			}
			kept = append(kept, rec)
		}
		st.pages = append(st.pages, kept)
		r.summary.update(st.source, func(s *SourceSummary) {
			s.Listings += len(raws)
			s.Filtered += filtered
		})
		logger.Debug("page collected", "page", page, "listings", len(raws), "kept", len(kept))

		if fresh == 0 {
			return
		}
	}
}

// localFilter combines the configured filter with the language and remote
// passes the board does not apply itself for q.
func (o *Orchestrator) localFilter(adapter model.SiteAdapter, q model.SearchQuery) filter.All {
	var pass filter.All
	if o.deps.Filter != nil {
		pass = append(pass, o.deps.Filter)
	}
	if q.Language != model.LanguageAny && !adapter.SupportsLanguageFilter(q.Language) {
		pass = append(pass, filter.LanguageFilter(q.Language))
	}
	if q.Remote() && !adapter.SupportsRemoteFilter() {
		pass = append(pass, filter.RemoteOnly{})
	}
	return pass
}

// dedup flattens the streams in order, drops in-run duplicates (first seen
// wins) and records the store already has.
func (o *Orchestrator) dedup(ctx, runCtx context.Context, r *run, streams []*stream) []model.JobRecord {
	d := normalize.NewDeduper()
	var candidates []model.JobRecord
	for _, st := range streams {
		for _, page := range st.pages {
			for _, rec := range page {
				if !d.Add(rec.Key) {
					r.summary.update(rec.Source, func(s *SourceSummary) { s.Duplicates++ })
					continue
				}
				candidates = append(candidates, rec)
			}
		}
	}

	existing := o.lookupExisting(ctx, runCtx, r, candidates)
	out := make([]model.JobRecord, 0, len(candidates))
	for _, rec := range candidates {
		if existing[rec.Key] {
			r.summary.update(rec.Source, func(s *SourceSummary) { s.Duplicates++ })
			continue
		}
		r.summary.update(rec.Source, func(s *SourceSummary) { s.Kept++ })
		out = append(out, rec)
	}
	return out
}

// lookupExisting asks the store which keys it already holds, in batches. After
// the run deadline the lookup gets its own short timeout so partial results
// are still deduplicated. A failing store is logged and ignored.
func (o *Orchestrator) lookupExisting(ctx, runCtx context.Context, r *run, recs []model.JobRecord) map[string]bool {
	existing := make(map[string]bool)
	if o.deps.Store == nil || len(recs) == 0 {
		return existing
	}

	lookupCtx := runCtx
	if runCtx.Err() != nil {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), o.opts.LookupTimeout)
		defer cancel()
	}

	for i := 0; i < len(recs); i += o.opts.LookupBatch {
		batch := recs[i:min(i+o.opts.LookupBatch, len(recs))]
		keys := make([]string, len(batch))
		for j, rec := range batch {
			keys[j] = rec.Key
		}
		found, err := o.deps.Store.Exists(lookupCtx, keys)
		if err != nil {
			r.logger.Warn("stored-record lookup failed, deduplicating within the run only", "error", err)
			return existing
		}
		for k, ok := range found {
			if ok {
				existing[k] = true
			}
		}
	}
	return existing
}
