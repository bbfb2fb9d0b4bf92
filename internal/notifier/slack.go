package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends job alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	pause      time.Duration // between messages, Slack allows about one per second
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each record to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		pause:      500 * time.Millisecond,
		logger:     logger,
	}
}

// Notify sends each record as a separate Slack message using Block Kit.
// Returns an error only if ALL messages fail. Individual failures are logged.
func (s *SlackNotifier) Notify(records []model.JobRecord) error {
	if len(records) == 0 {
		return nil
	}

	failures := 0
	for i, r := range records {
		if i > 0 && s.pause > 0 {
			time.Sleep(s.pause)
		}

		if err := s.sendMessage(r); err != nil {
			s.logger.Error("slack notification failed", "company", r.Company, "title", r.Title, "error", err)
			failures++
		}
	}

	sent := len(records) - failures
	if failures == len(records) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "sent", sent, "failed", failures)
	return nil
}

func (s *SlackNotifier) sendMessage(r model.JobRecord) error {
	body, err := json.Marshal(buildPayload(r))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(body)
	if err != nil {
		return err
	}
	retried := false
	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		time.Sleep(retryAfter)
		retried = true
		if status, _, err = s.post(body); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Debug("slack message sent", "company", r.Company, "title", r.Title, "retried", retried)
	return nil
}

// post sends one payload and reports the status and any Retry-After delay.
func (s *SlackNotifier) post(body []byte) (int, time.Duration, error) {
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

// SampleRecord returns the record sent by SendTestMessage. withScore attaches
// a sample score so the score section of a notification can be checked too.
func SampleRecord(now time.Time, withScore bool) model.JobRecord {
	rec := model.JobRecord{
		Key:        "test-001",
		Title:      "Test notification",
		Company:    "jobradar",
		Location:   "Berlin",
		Remote:     true,
		SalaryText: "60.000 € - 75.000 €",
		Source:     "test",
		URL:        "https://github.com/amishk599/jobradar",
		ScrapedAt:  now,
		PostedAt:   &now,
		Language:   model.LanguageEnglish,
	}
	if withScore {
		rec.Score = &model.ScoreBlock{Quality: 8, Relevance: 7, Insights: "sample score"}
	}
	return rec
}

// SendTestMessage sends rec alone to verify the integration works.
func SendTestMessage(n model.Notifier, rec model.JobRecord) error {
	return n.Notify([]model.JobRecord{rec})
}

var berlin = loadBerlin()

func loadBerlin() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.UTC
	}
	return loc
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildPayload(r model.JobRecord) slackPayload {
	postedText := "Just detected"
	if r.PostedAt != nil {
		postedText = r.PostedAt.In(berlin).Format("Mon, 02 Jan 2006")
	} else if r.PostedText != "" {
		postedText = r.PostedText
	}

	location := r.Location
	if r.Remote && !strings.Contains(strings.ToLower(location), "remote") {
		location += " (remote)"
	}
	salary := r.SalaryText
	if salary == "" {
		salary = "n/a"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: r.Title + " at " + r.Company},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Company:*\n" + r.Company},
				{Type: "mrkdwn", Text: "*Location:*\n" + location},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Posted:*\n" + postedText},
				{Type: "mrkdwn", Text: "*Source:*\n" + capitalize(r.Source)},
				{Type: "mrkdwn", Text: "*Salary:*\n" + salary},
			},
		},
	}

	if r.Score != nil {
		text := fmt.Sprintf("*Quality:* %.1f/10   *Relevance:* %.1f/10", r.Score.Quality, r.Score.Relevance)
		if len(r.Score.RedFlags) > 0 {
			text += "\n*Red flags:* " + strings.Join(r.Score.RedFlags, ", ")
		}
		if r.Score.Insights != "" {
			text += "\n" + r.Score.Insights
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: text},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "View posting"},
					URL:   r.URL,
					Style: "primary",
				},
			},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
