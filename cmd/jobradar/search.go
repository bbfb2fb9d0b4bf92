package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/config"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/report"
)

type searchFlags struct {
	keywords string
	location string
	remote   bool
	lang     string
	pages    int
	sources  []string
	dryRun   bool
	jsonOut  bool
}

var searchOpts searchFlags

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search across the enabled boards",
	Long: "Runs a single query across the enabled job boards, prints the new postings " +
		"and a per-source summary, and stores them unless --dry-run is set.",
	Example: `  jobradar search --keywords "golang, backend" --location Berlin
  jobradar search -k "data engineer" --remote --lang en --sources indeed,xing`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&searchOpts.keywords, "keywords", "k", "", "comma separated search terms (required)")
	f.StringVarP(&searchOpts.location, "location", "l", "", "city to search in")
	f.BoolVar(&searchOpts.remote, "remote", false, "search remote jobs (overrides --location)")
	f.StringVar(&searchOpts.lang, "lang", "any", "posting language: any, en or de")
	f.IntVarP(&searchOpts.pages, "pages", "p", 0, "pages per source and term (default from config)")
	f.StringSliceVarP(&searchOpts.sources, "sources", "s", nil, "boards to query (default: all enabled)")
	f.BoolVar(&searchOpts.dryRun, "dry-run", false, "do not store results")
	f.BoolVar(&searchOpts.jsonOut, "json", false, "print the run result as JSON")
	_ = searchCmd.MarkFlagRequired("keywords")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger := mustSetup()

	q, err := searchOpts.query()
	if err != nil {
		logger.Error("invalid search", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := search(ctx, cmd.OutOrStdout(), cfg, q, searchOpts, logger); err != nil {
		stop()
		logger.Error("search failed", "error", err)
		os.Exit(1)
	}
	return nil
}

func (f searchFlags) query() (model.SearchQuery, error) {
	lang, err := model.ParseLanguageFilter(f.lang)
	if err != nil {
		return model.SearchQuery{}, err
	}
	q := model.SearchQuery{
		Keywords: f.keywords,
		Location: f.location,
		Language: lang,
		MaxPages: f.pages,
		Sources:  f.sources,
	}
	if f.remote {
		q.Location = model.RemoteLocation
	}
	return q, q.Validate()
}

func search(ctx context.Context, w io.Writer, cfg *config.Config, q model.SearchQuery, opts searchFlags, logger *slog.Logger) error {
	eng, err := buildEngine(ctx, cfg, opts.dryRun, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.orch.Run(ctx, q)
	if err != nil {
		return err
	}

	// Cached results were stored by the run that produced them.
	if !res.FromCache && len(res.Records) > 0 {
		inserted, err := eng.store.InsertMany(ctx, res.Records)
		if err != nil {
			logger.Error("failed to store records", "error", err)
		} else {
			logger.Debug("stored records", "inserted", inserted)
		}
	}

	for _, ep := range eng.pool.Snapshot() {
		logger.Debug("proxy endpoint",
			"address", ep.Address,
			"failures", ep.Failures,
			"cooldown_until", ep.CooldownUntil,
		)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if err := report.Records(w, res.Records); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return report.Summary(w, res)
}
