package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/ai"
	"github.com/amishk599/jobradar/internal/proxy"
	"github.com/amishk599/jobradar/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that proxies, storage and scoring are reachable",
	Long:  "Probes every configured bypass endpoint, opens the store and pings the scoring model, then exits.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger := mustSetup()
	w := cmd.OutOrStdout()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	failed := 0
	report := func(what string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %-40s %v\n", what, err)
			return
		}
		fmt.Fprintf(w, "ok    %s\n", what)
	}

	if len(cfg.Proxies.Endpoints) == 0 {
		fmt.Fprintln(w, "--    no proxy endpoints, boards are requested directly")
	}
	for _, addr := range cfg.Proxies.Endpoints {
		report("proxy "+addr, proxy.Probe(ctx, httpClient, addr))
	}

	st, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err == nil {
		err = st.Close()
	}
	report("storage "+cfg.Storage.Driver, err)

	if cfg.Scoring.Enabled {
		provider := ai.NewOllamaProvider(cfg.Scoring.Host, cfg.Scoring.Model, httpClient)
		report("scoring "+cfg.Scoring.Host, provider.Ping(ctx))
	}

	if failed > 0 {
		logger.Error("check failed", "failures", failed)
		os.Exit(1)
	}
	logger.Info("check complete")
	return nil
}
