package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/orchestrator"
)

func TestRecords_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Records(&buf, nil); err != nil {
		t.Fatalf("Records: %v", err)
	}
	if !strings.Contains(buf.String(), "No new jobs found.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRecords_Table(t *testing.T) {
	posted := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	recs := []model.JobRecord{
		{
			Title:      "Senior Backend Engineer (Go) für unsere Plattform im Bereich Zahlungsverkehr",
			Company:    "Acme GmbH",
			Location:   "München",
			Source:     "stepstone",
			URL:        "https://www.stepstone.de/job/1",
			PostedAt:   &posted,
			SalaryText: "70.000 €",
			Score:      &model.ScoreBlock{Quality: 8, Relevance: 9},
		},
		{Title: "Go Developer", Company: "Beta", Location: "Hamburg", Remote: true, Source: "xing", PostedText: "vor 3 Tagen"},
	}

	var buf bytes.Buffer
	if err := Records(&buf, recs); err != nil {
		t.Fatalf("Records: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, 2 rows and 1 url line, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "#") || !strings.Contains(lines[0], "TITLE") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"…", "2026-03-09", "8/9", "https://www.stepstone.de/job/1", "Hamburg (remote)", "vor 3 Tagen"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// The company column starts at the same cell on every row.
	col := 3 + 2 + titleWidth + 2
	for _, l := range []string{lines[1], lines[3]} {
		if got := runewidth.StringWidth(l); got < col {
			t.Fatalf("row too short: %q", l)
		}
	}
	if !strings.HasPrefix(runewidth.TruncateLeft(lines[1], col, ""), "Acme GmbH") {
		t.Errorf("company column misaligned in %q", lines[1])
	}
	if !strings.HasPrefix(runewidth.TruncateLeft(lines[3], col, ""), "Beta") {
		t.Errorf("company column misaligned in %q", lines[3])
	}
}

func TestSummary(t *testing.T) {
	res := &orchestrator.Result{
		RunID:   "6f1c",
		Records: []model.JobRecord{{Title: "a"}},
		Sources: []string{"indeed", "linkedin"},
		Summary: map[string]orchestrator.SourceSummary{
			"indeed":   {PagesFetched: 3, Listings: 45, Filtered: 5, Duplicates: 10, Kept: 30},
			"linkedin": {PagesFetched: 1, ParseErrors: 1, LastError: "parse linkedin: no result cards"},
		},
		Partial:         true,
		ScoringDisabled: true,
		Duration:        1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	if err := Summary(&buf, res); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "indeed") > strings.Index(out, "linkedin") {
		t.Errorf("sources out of order:\n%s", out)
	}
	for _, want := range []string{"SOURCE", "45", "last error: parse linkedin", "1 jobs", "run 6f1c", "1.5s", "partial", "scoring disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("non-terminal writers must get plain text")
	}
}

func TestRow_PadsAndTruncatesByCellWidth(t *testing.T) {
	got := row([]int{4, 3}, "日本語テキスト", "ab")
	if w := runewidth.StringWidth(got); w != 4+2+2 {
		t.Errorf("width = %d for %q", w, got)
	}
	if !strings.HasSuffix(got, "ab") {
		t.Errorf("trailing padding must be trimmed: %q", got)
	}
}
