package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/config"
	"github.com/amishk599/jobradar/internal/filter"
	"github.com/amishk599/jobradar/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the saved searches on their schedules",
	Long:  "Start the scheduler daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger := mustSetup()

	logger.Info("config loaded",
		"sources", len(cfg.EnabledSources()),
		"proxies", len(cfg.Proxies.Endpoints),
		"searches", len(cfg.Schedule),
		"storage", cfg.Storage.Driver,
		"scoring", cfg.Scoring.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, cfg, logger); err != nil {
		stop()
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

func start(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	searches := savedSearches(cfg)
	if len(searches) == 0 {
		return errors.New("no saved searches configured under schedule")
	}

	eng, err := buildEngine(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	sched := scheduler.New(searches, eng.orch, eng.store, n, cfg.Storage.Retention, logger)
	return sched.Run(ctx)
}

func savedSearches(cfg *config.Config) []scheduler.Search {
	searches := make([]scheduler.Search, 0, len(cfg.Schedule))
	for _, s := range cfg.Schedule {
		search := scheduler.Search{Name: s.Name, Spec: s.Cron, Query: s.Query}
		if len(s.Titles) > 0 || len(s.Location) > 0 {
			search.Filter = filter.NewTitleAndLocationFilter(s.Titles, s.Location)
		}
		searches = append(searches, search)
	}
	return searches
}
