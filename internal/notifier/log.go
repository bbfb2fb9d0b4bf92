package notifier

import (
	"log/slog"

	"github.com/amishk599/jobradar/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes new job records to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each record via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each record. It never fails.
func (n *LogNotifier) Notify(records []model.JobRecord) error {
	for _, r := range records {
		args := []any{
			"source", r.Source,
			"company", r.Company,
			"title", r.Title,
			"location", r.Location,
			"remote", r.Remote,
			"url", r.URL,
		}
		if r.PostedAt != nil {
			args = append(args, "posted_at", r.PostedAt.Format("2006-01-02"))
		}
		if r.SalaryText != "" {
			args = append(args, "salary", r.SalaryText)
		}
		if r.Score != nil {
			args = append(args, "quality", r.Score.Quality, "relevance", r.Score.Relevance)
		}
		n.logger.Info("new job", args...)
	}
	return nil
}
