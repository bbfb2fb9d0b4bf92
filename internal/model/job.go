package model

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// RemoteLocation is the location sentinel that asks for remote jobs.
const RemoteLocation = "remote"

// Language is the detected language of a posting.
type Language string

const (
	LanguageUnknown Language = "unknown"
	LanguageEnglish Language = "en"
	LanguageGerman  Language = "de"
)

// LanguageFilter restricts a query to postings in one language.
type LanguageFilter string

const (
	LanguageAny    LanguageFilter = "any"
	LanguageOnlyEN LanguageFilter = "en"
	LanguageOnlyDE LanguageFilter = "de"
)

// ParseLanguageFilter maps user input ("", "any", "en", "english", "de", "german") to a filter.
func ParseLanguageFilter(s string) (LanguageFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return LanguageAny, nil
	case "en", "english":
		return LanguageOnlyEN, nil
	case "de", "german":
		return LanguageOnlyDE, nil
	}
	return "", fmt.Errorf("%w: unknown language filter %q", ErrConfigInvalid, s)
}

// Accepts reports whether a record in lang passes the filter. Unknown always passes.
func (f LanguageFilter) Accepts(lang Language) bool {
	if f == LanguageAny || f == "" || lang == LanguageUnknown || lang == "" {
		return true
	}
	return string(f) == string(lang)
}

// SearchQuery describes one search across sources. Treat it as a value; the
// orchestrator and cache never modify it.
type SearchQuery struct {
	Keywords string         `json:"keywords"`
	Location string         `json:"location"` // city name or RemoteLocation
	Language LanguageFilter `json:"language"`
	MaxPages int            `json:"max_pages"`
	Sources  []string       `json:"sources,omitempty"` // empty means every configured source
}

// Remote reports whether the query targets remote jobs.
func (q SearchQuery) Remote() bool {
	return strings.EqualFold(strings.TrimSpace(q.Location), RemoteLocation)
}

// Normalized returns a copy with collapsed whitespace, a defaulted language
// filter, and lowercased, sorted, de-duplicated source names.
func (q SearchQuery) Normalized() SearchQuery {
	out := SearchQuery{
		Keywords: strings.Join(strings.Fields(q.Keywords), " "),
		Location: strings.Join(strings.Fields(q.Location), " "),
		Language: q.Language,
		MaxPages: q.MaxPages,
	}
	if out.Language == "" {
		out.Language = LanguageAny
	}
	if q.Remote() {
		out.Location = RemoteLocation
	}
	if len(q.Sources) > 0 {
		srcs := make([]string, 0, len(q.Sources))
		for _, s := range q.Sources {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				srcs = append(srcs, s)
			}
		}
		slices.Sort(srcs)
		out.Sources = slices.Compact(srcs)
	}
	return out
}

// Terms splits comma separated keywords into individual search terms.
func (q SearchQuery) Terms() []string {
	var terms []string
	for _, t := range strings.Split(q.Keywords, ",") {
		t = strings.Join(strings.Fields(t), " ")
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// Validate rejects queries that cannot be run.
func (q SearchQuery) Validate() error {
	if len(q.Terms()) == 0 {
		return fmt.Errorf("%w: keywords are required", ErrConfigInvalid)
	}
	if q.MaxPages < 0 {
		return fmt.Errorf("%w: max pages must not be negative, got %d", ErrConfigInvalid, q.MaxPages)
	}
	switch q.Language {
	case "", LanguageAny, LanguageOnlyEN, LanguageOnlyDE:
	default:
		return fmt.Errorf("%w: unknown language filter %q", ErrConfigInvalid, q.Language)
	}
	return nil
}

// RawListing holds source-specific fields as parsed, before normalization.
type RawListing struct {
	Title       string
	Company     string
	Location    string
	Salary      string
	Posted      string
	Description string
	URL         string
}

// Salary is a best-effort parse of a salary text.
type Salary struct {
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Period   string  `json:"period,omitempty"` // "year", "month", "hour"
}

// ScoreBlock is the AI-derived annotation of a record.
type ScoreBlock struct {
	Quality   float64  `json:"quality"`
	Relevance float64  `json:"relevance"`
	RedFlags  []string `json:"red_flags,omitempty"`
	Insights  string   `json:"insights,omitempty"`
}

// JobRecord is the canonical, normalized job posting.
type JobRecord struct {
	Key         string      `json:"key"` // identity key used for dedup
	Title       string      `json:"title"`
	Company     string      `json:"company"`
	Location    string      `json:"location"`
	Remote      bool        `json:"remote"`
	SalaryText  string      `json:"salary_text,omitempty"`
	Salary      *Salary     `json:"salary,omitempty"`
	Source      string      `json:"source"`
	URL         string      `json:"url,omitempty"`
	ScrapedAt   time.Time   `json:"scraped_at"`
	PostedAt    *time.Time  `json:"posted_at,omitempty"`
	PostedText  string      `json:"posted_text,omitempty"`
	Description string      `json:"description,omitempty"`
	Language    Language    `json:"language"`
	Score       *ScoreBlock `json:"score,omitempty"`
}

// Request describes an HTTP request built by a site adapter.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the result of a request executed through a proxy endpoint.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// SiteAdapter translates a query into one job board's request format and
// parses that board's responses.
type SiteAdapter interface {
	Name() string
	// BuildRequest returns the request for the given 1-based page.
	BuildRequest(q SearchQuery, page int) (Request, error)
	ParseResponse(body []byte) ([]RawListing, error)
	SupportsRemoteFilter() bool
	// SupportsLanguageFilter reports whether the board itself restricts
	// results to f. Records from boards that do not are filtered locally.
	SupportsLanguageFilter(f LanguageFilter) bool
}

// JobStore is the storage collaborator. Both methods must be idempotent.
type JobStore interface {
	Exists(ctx context.Context, keys []string) (map[string]bool, error)
	InsertMany(ctx context.Context, records []JobRecord) (int, error)
}

// QueryCache caches the result set of a query for a short window.
type QueryCache interface {
	Lookup(ctx context.Context, q SearchQuery) ([]JobRecord, bool)
	Store(ctx context.Context, q SearchQuery, records []JobRecord) error
}

// Scorer annotates a record with scores from the scoring oracle.
type Scorer interface {
	Score(ctx context.Context, rec JobRecord, profile string) (ScoreBlock, error)
}

// Notifier sends notifications for newly stored records.
type Notifier interface {
	Notify(records []JobRecord) error
}

// JobFilter decides whether a record should be kept.
type JobFilter interface {
	Match(rec JobRecord) bool
}
