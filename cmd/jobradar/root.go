package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/config"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/notifier"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobradar",
	Short: "Search German job boards from one place",
	Long: "jobradar queries several job boards through a pool of bypass proxies, " +
		"deduplicates and scores the postings, and alerts you to new ones.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvConfigPath+" env var or ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBRADAR_CONFIG env var > "./config.yaml".
// A missing default file yields the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	return config.LoadOrDefault(config.ResolvePath(path))
}

// setupLogger logs to stderr so that reports on stdout stay clean. --debug
// overrides the configured level.
func setupLogger(level slog.Level, dbg bool) *slog.Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	if dbg {
		lv.Set(slog.LevelDebug)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

// mustSetup loads the config and builds the logger, exiting on failure.
func mustSetup() (*config.Config, *slog.Logger) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		setupLogger(slog.LevelInfo, debug).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg, setupLogger(cfg.LogLevel, debug)
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}
