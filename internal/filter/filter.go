package filter

import (
	"strings"

	"github.com/amishk599/jobradar/internal/model"
)

// Ensure the filters implement model.JobFilter.
var (
	_ model.JobFilter = (*TitleAndLocationFilter)(nil)
	_ model.JobFilter = (*RedFlagFilter)(nil)
	_ model.JobFilter = LanguageFilter("")
	_ model.JobFilter = RemoteOnly{}
	_ model.JobFilter = All(nil)
)

// TitleAndLocationFilter matches jobs whose title contains any of the title
// keywords and whose location contains any of the location keywords.
// Matching is case-insensitive. Empty keyword lists are treated as "match all".
// Saved searches use it to narrow broad board queries.
type TitleAndLocationFilter struct {
	titleKeywords []string
	locations     []string
}

// NewTitleAndLocationFilter returns a filter that requires both a title keyword
// match and a location keyword match (case-insensitive substring).
func NewTitleAndLocationFilter(titleKeywords []string, locations []string) *TitleAndLocationFilter {
	return &TitleAndLocationFilter{
		titleKeywords: lowerAll(titleKeywords),
		locations:     lowerAll(locations),
	}
}

// Match returns true if the job's title contains any title keyword and the
// job's location contains any location keyword. Remote jobs satisfy a
// "remote" location keyword even if their location text says otherwise.
func (f *TitleAndLocationFilter) Match(rec model.JobRecord) bool {
	if len(f.titleKeywords) > 0 && !containsAny(strings.ToLower(rec.Title), f.titleKeywords) {
		return false
	}
	if len(f.locations) > 0 {
		loc := strings.ToLower(rec.Location)
		if rec.Remote {
			loc += " " + model.RemoteLocation
		}
		if !containsAny(loc, f.locations) {
			return false
		}
	}
	return true
}

// RedFlagFilter rejects jobs mentioning any configured red-flag term in the
// title, company or description.
type RedFlagFilter struct {
	terms []string
}

// NewRedFlagFilter returns a filter for the given terms. Blank terms are ignored.
func NewRedFlagFilter(terms []string) *RedFlagFilter {
	return &RedFlagFilter{terms: lowerAll(terms)}
}

// Match returns false when a red flag is present.
func (f *RedFlagFilter) Match(rec model.JobRecord) bool {
	if len(f.terms) == 0 {
		return true
	}
	combined := strings.ToLower(rec.Title + " " + rec.Company + " " + rec.Description)
	return !containsAny(combined, f.terms)
}

// LanguageFilter keeps jobs in the wanted language. Jobs whose language could
// not be detected are kept.
type LanguageFilter model.LanguageFilter

func (f LanguageFilter) Match(rec model.JobRecord) bool {
	return model.LanguageFilter(f).Accepts(rec.Language)
}

// RemoteOnly keeps remote jobs.
type RemoteOnly struct{}

func (RemoteOnly) Match(rec model.JobRecord) bool { return rec.Remote }

// All matches when every filter matches. An empty All matches everything.
type All []model.JobFilter

func (a All) Match(rec model.JobRecord) bool {
	for _, f := range a {
		if !f.Match(rec) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
