package adapter

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/amishk599/jobradar/internal/model"
)

const stepStoneBaseURL = "https://www.stepstone.de"

// Ensure StepStoneAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*StepStoneAdapter)(nil)

// StepStoneAdapter searches stepstone.de. Keywords go into the path as a slug.
type StepStoneAdapter struct {
	schema cardSchema
}

// NewStepStoneAdapter creates an adapter for StepStone.
func NewStepStoneAdapter() *StepStoneAdapter {
	return &StepStoneAdapter{schema: cardSchema{
		source:       "stepstone",
		base:         stepStoneBaseURL,
		card:         "article[data-testid=job-item], article[data-at=job-item]",
		title:        "[data-testid=job-item-title], [data-at=job-item-title], h2",
		company:      "[data-at=job-item-company-name], [data-testid=job-item-company-name]",
		location:     "[data-at=job-item-location], [data-testid=job-item-location]",
		salary:       "[data-at=job-item-salary-info]",
		posted:       "time",
		description:  "[data-at=jobcard-content]",
		link:         "a[data-testid=job-item-title], a[data-at=job-item-title], h2 a",
		emptyMarkers: []string{"[data-testid=no-results]", "[data-at=no-results]"},
		emptyTexts:   []string{"keine passenden Jobs", "Leider keine Treffer"},
	}}
}

func (a *StepStoneAdapter) Name() string               { return a.schema.source }
func (a *StepStoneAdapter) SupportsRemoteFilter() bool { return true }

// SupportsLanguageFilter is true for English only: fdl=en is the one language facet.
func (a *StepStoneAdapter) SupportsLanguageFilter(f model.LanguageFilter) bool {
	return f == model.LanguageOnlyEN
}

// BuildRequest encodes q as /jobs/<slug>, sorted by publication date.
func (a *StepStoneAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	slug := slugify(q.Keywords)
	if slug == "" {
		return model.Request{}, fmt.Errorf("%w: keywords produce an empty stepstone slug", model.ErrConfigInvalid)
	}
	params := url.Values{}
	params.Set("sort", "2")
	params.Set("action", "sort_publish")
	params.Set("radius", "30")
	if q.Remote() {
		params.Set("location", "germany")
		params.Set("wfh", "1")
	} else {
		params.Set("location", q.Location)
	}
	if q.Language == model.LanguageOnlyEN {
		params.Set("fdl", "en")
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return getRequest(stepStoneBaseURL+"/jobs/"+url.PathEscape(slug), params), nil
}

func (a *StepStoneAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	return parseCards(body, a.schema)
}
