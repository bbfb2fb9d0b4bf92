package notifier

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }

func sampleRecord(title, company string) model.JobRecord {
	return model.JobRecord{
		Key:        "url:https://example.com/apply",
		Company:    company,
		Title:      title,
		Location:   "Berlin",
		URL:        "https://example.com/apply",
		PostedAt:   timePtr(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)),
		Source:     "stepstone",
		SalaryText: "60.000 - 75.000 €",
	}
}

func newTestSlack(url string, client *http.Client) *SlackNotifier {
	n := NewSlackNotifier(url, client, discardLogger())
	n.pause = 0
	return n
}

func TestSlackNotifier_EmptyRecords(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv.URL, srv.Client())

	if err := n.Notify(nil); err != nil {
		t.Errorf("Notify(nil) = %v, want nil", err)
	}
	if err := n.Notify([]model.JobRecord{}); err != nil {
		t.Errorf("Notify([]) = %v, want nil", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackNotifier_SingleRecord(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv.URL, srv.Client())
	if err := n.Notify([]model.JobRecord{sampleRecord("Backend Engineer", "Acme GmbH")}); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if got := payload.Blocks[0].Text.Text; got != "Backend Engineer at Acme GmbH" {
		t.Errorf("header text = %q, want title at company", got)
	}
	if got := payload.Blocks[1].Fields[0].Text; got != "*Company:*\nAcme GmbH" {
		t.Errorf("company field = %q", got)
	}
	if got := payload.Blocks[2].Fields[1].Text; got != "*Source:*\nStepstone" {
		t.Errorf("source field = %q", got)
	}
	if got := payload.Blocks[2].Fields[2].Text; got != "*Salary:*\n60.000 - 75.000 €" {
		t.Errorf("salary field = %q", got)
	}
	if got := payload.Blocks[3].Elements[0].URL; got != "https://example.com/apply" {
		t.Errorf("action URL = %q", got)
	}
}

func TestSlackNotifier_MultipleRecords(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv.URL, srv.Client())
	records := []model.JobRecord{
		sampleRecord("Engineer 1", "A"),
		sampleRecord("Engineer 2", "B"),
		sampleRecord("Engineer 3", "C"),
	}

	if err := n.Notify(records); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}
	if c := calls.Load(); c != 3 {
		t.Errorf("expected 3 HTTP calls, got %d", c)
	}
}

func TestSlackNotifier_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := newTestSlack(srv.URL, srv.Client())
	records := []model.JobRecord{
		sampleRecord("A", "X"),
		sampleRecord("B", "Y"),
		sampleRecord("C", "Z"),
	}

	if err := n.Notify(records); err == nil {
		t.Error("expected error when all messages fail, got nil")
	}
}

func TestSlackNotifier_PartialFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	n := newTestSlack(srv.URL, srv.Client())
	records := []model.JobRecord{
		sampleRecord("Fails", "A"),
		sampleRecord("Succeeds", "B"),
	}

	if err := n.Notify(records); err != nil {
		t.Errorf("expected nil (partial success), got %v", err)
	}
}

func TestSlackNotifier_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	n := newTestSlack(srv.URL, srv.Client())
	if err := n.Notify([]model.JobRecord{sampleRecord("Rate Limited Job", "Test")}); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestBuildPayload_Layout(t *testing.T) {
	rec := model.JobRecord{
		Company:  "TestCo",
		Title:    "SRE",
		Location: "Hamburg",
		Remote:   true,
		URL:      "https://example.com/sre",
		Source:   "xing",
		// PostedAt is nil, should display "Just detected"
	}

	payload := buildPayload(rec)
	if len(payload.Blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(payload.Blocks))
	}

	if payload.Blocks[0].Type != "header" {
		t.Errorf("block[0] type = %q, want header", payload.Blocks[0].Type)
	}
	if got := payload.Blocks[1].Fields[1].Text; got != "*Location:*\nHamburg (remote)" {
		t.Errorf("location field = %q", got)
	}
	if got := payload.Blocks[2].Fields[0].Text; got != "*Posted:*\nJust detected" {
		t.Errorf("posted field = %q, want 'Just detected' for nil PostedAt", got)
	}
	if got := payload.Blocks[2].Fields[2].Text; got != "*Salary:*\nn/a" {
		t.Errorf("salary field = %q", got)
	}
	if payload.Blocks[3].Type != "actions" || payload.Blocks[3].Elements[0].Style != "primary" {
		t.Errorf("block[3] = %+v, want a primary button", payload.Blocks[3])
	}
	if payload.Blocks[4].Type != "divider" {
		t.Errorf("block[4] type = %q, want divider", payload.Blocks[4].Type)
	}
}

func TestBuildPayload_WithScore(t *testing.T) {
	rec := sampleRecord("Go Developer", "Acme")
	rec.Score = &model.ScoreBlock{Quality: 7.5, Relevance: 9, RedFlags: []string{"on-call"}, Insights: "Strong Go focus."}

	payload := buildPayload(rec)
	if len(payload.Blocks) != 6 {
		t.Fatalf("expected 6 blocks with a score section, got %d", len(payload.Blocks))
	}
	text := payload.Blocks[3].Text.Text
	for _, want := range []string{"*Quality:* 7.5/10", "*Relevance:* 9.0/10", "on-call", "Strong Go focus."} {
		if !strings.Contains(text, want) {
			t.Errorf("score section %q missing %q", text, want)
		}
	}
}

func TestSendTestMessage_SampleRecord(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := SampleRecord(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), true)
	if err := SendTestMessage(newTestSlack(srv.URL, srv.Client()), rec); err != nil {
		t.Fatalf("SendTestMessage() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Blocks) != 6 {
		t.Fatalf("expected header, details, score, button and divider blocks, got %d", len(payload.Blocks))
	}
	if !strings.Contains(payload.Blocks[0].Text.Text, "Test notification") {
		t.Errorf("header = %q", payload.Blocks[0].Text.Text)
	}

	if plain := SampleRecord(time.Now(), false); plain.Score != nil {
		t.Error("sample record without --with-score must be unscored")
	}
}
