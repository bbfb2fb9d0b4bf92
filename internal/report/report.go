// Package report renders search results and run summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/orchestrator"
)

// Column widths in terminal cells. Wider values are truncated with an ellipsis.
const (
	titleWidth    = 44
	companyWidth  = 24
	locationWidth = 20
	sourceWidth   = 15
	postedWidth   = 10
	salaryWidth   = 20
	scoreWidth    = 7
)

// styles are bound to one writer so colour output follows that writer's
// capabilities (plain text when it is not a terminal).
type styles struct {
	header  lipgloss.Style
	dim     lipgloss.Style
	warn    lipgloss.Style
	good    lipgloss.Style
	caption lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("245")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		good:    r.NewStyle().Foreground(lipgloss.Color("42")),
		caption: r.NewStyle().Bold(true),
	}
}

// Records writes one table row per record.
func Records(w io.Writer, records []model.JobRecord) error {
	st := newStyles(w)
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, st.dim.Render("No new jobs found."))
		return err
	}

	widths := []int{3, titleWidth, companyWidth, locationWidth, sourceWidth, postedWidth, salaryWidth, scoreWidth}
	var b strings.Builder
	b.WriteString(st.header.Render(row(widths, "#", "TITLE", "COMPANY", "LOCATION", "SOURCE", "POSTED", "SALARY", "SCORE")))
	b.WriteString("\n")

	for i, r := range records {
		location := r.Location
		if r.Remote && !strings.Contains(strings.ToLower(location), "remote") {
			location = strings.TrimSpace(location + " (remote)")
		}
		b.WriteString(row(widths,
			fmt.Sprint(i+1),
			r.Title,
			r.Company,
			location,
			r.Source,
			posted(r),
			r.SalaryText,
			score(r.Score),
		))
		b.WriteString("\n")
		if r.URL != "" {
			b.WriteString(st.dim.Render(strings.Repeat(" ", widths[0]+2) + r.URL))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Summary writes the per-source counters of res and a status line.
func Summary(w io.Writer, res *orchestrator.Result) error {
	st := newStyles(w)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(st.caption.Render("Sources"))
	b.WriteString("\n")

	widths := []int{sourceWidth, 6, 9, 9, 6, 5, 7, 7, 8}
	b.WriteString(st.header.Render(row(widths, "SOURCE", "PAGES", "LISTINGS", "FILTERED", "DUPES", "KEPT", "FETCH!", "PARSE!", "SKIPPED")))
	b.WriteString("\n")

	for _, src := range res.Sources {
		s := res.Summary[src]
		line := row(widths,
			src,
			fmt.Sprint(s.PagesFetched),
			fmt.Sprint(s.Listings),
			fmt.Sprint(s.Filtered),
			fmt.Sprint(s.Duplicates),
			fmt.Sprint(s.Kept),
			fmt.Sprint(s.FetchErrors),
			fmt.Sprint(s.ParseErrors),
			fmt.Sprint(s.Skipped),
		)
		if s.FetchErrors+s.ParseErrors+s.Skipped > 0 {
			line = st.warn.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
		if s.LastError != "" {
			b.WriteString(st.dim.Render("  last error: " + runewidth.Truncate(s.LastError, 100, "…")))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(status(st, res))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func status(st styles, res *orchestrator.Result) string {
	parts := []string{
		fmt.Sprintf("%d jobs", len(res.Records)),
		"run " + res.RunID,
		res.Duration.Round(time.Millisecond).String(),
	}
	var notes []string
	if res.FromCache {
		notes = append(notes, "served from cache")
	}
	if res.Partial {
		notes = append(notes, "partial: run deadline reached")
	}
	if res.ScoringDisabled {
		notes = append(notes, "scoring disabled: oracle unavailable")
	}
	line := strings.Join(parts, " · ")
	if len(notes) == 0 {
		return st.good.Render(line)
	}
	return st.good.Render(line) + "  " + st.warn.Render(strings.Join(notes, ", "))
}

// row pads or truncates every cell to its width and joins them with two spaces.
func row(widths []int, cells ...string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.Join(strings.Fields(c), " ")
		out[i] = runewidth.FillRight(runewidth.Truncate(c, widths[i], "…"), widths[i])
	}
	return strings.TrimRight(strings.Join(out, "  "), " ")
}

func posted(r model.JobRecord) string {
	if r.PostedAt != nil {
		return r.PostedAt.Format("2006-01-02")
	}
	return r.PostedText
}

func score(s *model.ScoreBlock) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f/%.0f", s.Quality, s.Relevance)
}
