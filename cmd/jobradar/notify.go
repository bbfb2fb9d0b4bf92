package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/notifier"
	"github.com/amishk599/jobradar/internal/report"
)

var notifyWithScore bool

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a sample job record through the configured notifier",
	Long: "Sends one sample job record using the configured notifier and prints " +
		"the record that was sent. --with-score attaches a sample score.",
	RunE: runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().BoolVar(&notifyWithScore, "with-score", false, "attach a sample score to the record")
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, logger := mustSetup()

	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	rec := notifier.SampleRecord(time.Now(), notifyWithScore)

	if err := notifier.SendTestMessage(n, rec); err != nil {
		logger.Error("test notification failed", "type", cfg.Notification.Type, "error", err)
		os.Exit(1)
	}
	logger.Info("test notification sent", "type", cfg.Notification.Type, "key", rec.Key)
	return report.Records(cmd.OutOrStdout(), []model.JobRecord{rec})
}
