package orchestrator

import (
	"sync"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

// State is the lifecycle stage of one run.
type State int

const (
	StatePending State = iota
	StateFanningOut
	StateCollecting
	StateDeduplicating
	StateScoring
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFanningOut:
		return "fanning-out"
	case StateCollecting:
		return "collecting"
	case StateDeduplicating:
		return "deduplicating"
	case StateScoring:
		return "scoring"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// SourceSummary reports what happened for one source during a run.
type SourceSummary struct {
	PagesFetched int    `json:"pages_fetched"`
	Listings     int    `json:"listings"`   // parsed, before filtering and dedup
	Filtered     int    `json:"filtered"`   // dropped by red-flag, language or remote filters
	Duplicates   int    `json:"duplicates"` // seen earlier in the run or already stored
	Kept         int    `json:"kept"`
	FetchErrors  int    `json:"fetch_errors"`
	ParseErrors  int    `json:"parse_errors"`
	Skipped      int    `json:"skipped"` // streams abandoned, e.g. proxy pool exhausted
	LastError    string `json:"last_error,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	RunID           string                   `json:"run_id"`
	Query           model.SearchQuery        `json:"query"`
	Records         []model.JobRecord        `json:"records"`
	Sources         []string                 `json:"sources"` // queried sources in configured order
	Summary         map[string]SourceSummary `json:"summary"`
	State           State                    `json:"-"`
	FromCache       bool                     `json:"from_cache"`
	Partial         bool                     `json:"partial"` // run deadline hit before all pages were fetched
	ScoringDisabled bool                     `json:"scoring_disabled"`
	Duration        time.Duration            `json:"duration"`
}

// summaryBook collects per-source counters from concurrent streams.
type summaryBook struct {
	mu sync.Mutex
	m  map[string]*SourceSummary
}

func newSummaryBook(sources []string) *summaryBook {
	b := &summaryBook{m: make(map[string]*SourceSummary, len(sources))}
	for _, s := range sources {
		b.m[s] = &SourceSummary{}
	}
	return b
}

// update applies fn to the summary of source under the lock.
func (b *summaryBook) update(source string, fn func(s *SourceSummary)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.m[source]
	if !ok {
		s = &SourceSummary{}
		b.m[source] = s
	}
	fn(s)
}

func (b *summaryBook) fail(source string, err error, fn func(s *SourceSummary)) {
	b.update(source, func(s *SourceSummary) {
		fn(s)
		s.LastError = err.Error()
	})
}

func (b *summaryBook) snapshot() map[string]SourceSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]SourceSummary, len(b.m))
	for k, v := range b.m {
		out[k] = *v
	}
	return out
}
