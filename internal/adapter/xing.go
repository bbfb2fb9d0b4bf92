package adapter

import (
	"net/url"
	"strconv"

	"github.com/amishk599/jobradar/internal/model"
)

const xingBaseURL = "https://www.xing.com"

// Ensure XingAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*XingAdapter)(nil)

// XingAdapter searches xing.com job listings.
type XingAdapter struct {
	schema cardSchema
}

// NewXingAdapter creates an adapter for XING.
func NewXingAdapter() *XingAdapter {
	return &XingAdapter{schema: cardSchema{
		source:       "xing",
		base:         xingBaseURL,
		card:         "article[data-testid=job-search-result], [data-testid=job-listing-item]",
		title:        "h2, h3, [data-testid=job-teaser-list-title]",
		company:      "[data-testid=job-teaser-card-company], p[class*=company]",
		location:     "[data-testid=job-teaser-card-location], p[class*=location]",
		salary:       "[data-testid=salary-info]",
		posted:       "time, [data-testid=job-teaser-card-date]",
		link:         "a[href*='/jobs/'], a",
		emptyMarkers: []string{"[data-testid=jobs-search-no-results]"},
		emptyTexts:   []string{"keine passenden Jobs", "no matching jobs"},
	}}
}

func (a *XingAdapter) Name() string                                     { return a.schema.source }
func (a *XingAdapter) SupportsRemoteFilter() bool                       { return true }
func (a *XingAdapter) SupportsLanguageFilter(model.LanguageFilter) bool { return false }

func (a *XingAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	params := url.Values{}
	params.Set("keywords", q.Keywords)
	params.Set("page", strconv.Itoa(page))
	if q.Remote() {
		params.Set("remote", "true")
	} else if q.Location != "" {
		params.Set("location", q.Location)
	}
	return getRequest(xingBaseURL+"/jobs/search", params), nil
}

func (a *XingAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	return parseCards(body, a.schema)
}
