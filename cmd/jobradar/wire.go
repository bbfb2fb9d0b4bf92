package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/amishk599/jobradar/internal/adapter"
	"github.com/amishk599/jobradar/internal/ai"
	"github.com/amishk599/jobradar/internal/cache"
	"github.com/amishk599/jobradar/internal/config"
	"github.com/amishk599/jobradar/internal/fetch"
	"github.com/amishk599/jobradar/internal/filter"
	"github.com/amishk599/jobradar/internal/orchestrator"
	"github.com/amishk599/jobradar/internal/proxy"
	"github.com/amishk599/jobradar/internal/ratelimit"
	"github.com/amishk599/jobradar/internal/store"
)

// engine is everything a search needs, built once per process.
type engine struct {
	orch    *orchestrator.Orchestrator
	store   store.Store
	pool    *proxy.Balancer
	closers []func() error
}

// Close releases the store and cache connections.
func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// buildEngine wires the proxy pool, rate limiter, executor, adapters, cache,
// store and scoring into an orchestrator. With dryRun nothing is persisted.
func buildEngine(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (*engine, error) {
	eng := &engine{}
	ok := false
	defer func() {
		if !ok {
			eng.Close()
		}
	}()

	// Attempts are bounded by the executor's per-request context.
	httpClient := &http.Client{}

	addresses := cfg.Proxies.Endpoints
	var doer proxy.Doer
	if len(addresses) == 0 {
		logger.Warn("no proxy endpoints configured, requesting boards directly")
		addresses = []string{proxy.DirectAddress}
		doer = proxy.NewDirectClient(httpClient)
	} else {
		doer = proxy.NewSolverClient(httpClient, cfg.Proxies.MaxTimeout)
	}
	pool, err := proxy.NewBalancer(addresses, proxy.Options{
		FailureThreshold: cfg.Proxies.FailureThreshold,
		CooldownBase:     cfg.Proxies.CooldownBase,
		CooldownMax:      cfg.Proxies.CooldownMax,
		AcquireTimeout:   cfg.Proxies.AcquireTimeout,
	}, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("proxy pool: %w", err)
	}
	eng.pool = pool

	limiter := ratelimit.NewSourceLimiter(ratelimit.Rate{}, sourceRates(cfg), nil)

	executor := fetch.NewExecutor(limiter, pool, doer, fetch.Options{
		Attempts:       cfg.Fetch.Attempts,
		BackoffBase:    cfg.Fetch.BackoffBase,
		BackoffCap:     cfg.Fetch.BackoffCap,
		RequestTimeout: cfg.Fetch.RequestTimeout,
	}, nil, logger)

	adapters, err := adapter.Registry(cfg.EnabledSources())
	if err != nil {
		return nil, err
	}

	deps := orchestrator.Deps{}

	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("query cache: %w", err)
		}
		eng.closers = append(eng.closers, rc.Close)
		deps.Cache = rc
	default:
		deps.Cache = cache.NewMemoryCache(cfg.Cache.TTL, nil, logger)
	}

	if dryRun {
		logger.Info("dry-run mode enabled, no jobs will be stored")
		eng.store = store.NewNopStore()
	} else {
		st, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		eng.store = st
	}
	eng.closers = append(eng.closers, eng.store.Close)
	deps.Store = eng.store

	if len(cfg.Filters.RedFlags) > 0 {
		deps.Filter = filter.NewRedFlagFilter(cfg.Filters.RedFlags)
	}

	if cfg.Scoring.Enabled {
		provider := ai.NewOllamaProvider(cfg.Scoring.Host, cfg.Scoring.Model, &http.Client{Timeout: cfg.Scoring.Timeout})
		scorer := ai.NewLLMScorer(provider, ai.JobScoringTemplate, logger)
		deps.Scoring = ai.NewPipeline(scorer, cfg.Scoring.Profile, cfg.Scoring.Concurrency, cfg.Scoring.Timeout, logger)
		logger.Info("scoring enabled", "model", cfg.Scoring.Model, "host", cfg.Scoring.Host)
	}

	orch, err := orchestrator.New(adapters, executor, deps, orchestrator.Options{
		GlobalConcurrency:    cfg.Orchestrator.GlobalConcurrency,
		PerSourceConcurrency: cfg.Orchestrator.PerSourceConcurrency,
		MaxPages:             cfg.Orchestrator.MaxPages,
		RunTimeout:           cfg.Orchestrator.RunTimeout,
	}, nil, logger)
	if err != nil {
		return nil, err
	}
	eng.orch = orch

	ok = true
	return eng, nil
}

// sourceRates turns the enabled sources into per-source limiter rates.
func sourceRates(cfg *config.Config) map[string]ratelimit.Rate {
	rates := make(map[string]ratelimit.Rate, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if !s.Enabled {
			continue
		}
		rates[s.Name] = ratelimit.Rate{Interval: s.RateInterval, Burst: s.Burst}
	}
	return rates
}
