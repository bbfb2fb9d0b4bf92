package adapter

import (
	"bytes"
	"net/url"
	"strconv"

	"github.com/amishk599/jobradar/internal/model"
)

const (
	linkedInBaseURL   = "https://www.linkedin.com"
	linkedInGermanyID = "101282230"
)

// Ensure LinkedInAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*LinkedInAdapter)(nil)

// LinkedInAdapter uses the public guest search endpoint, which returns bare
// HTML fragments of 25 cards per page.
type LinkedInAdapter struct {
	schema cardSchema
}

// NewLinkedInAdapter creates an adapter for LinkedIn guest job search.
func NewLinkedInAdapter() *LinkedInAdapter {
	return &LinkedInAdapter{schema: cardSchema{
		source:   "linkedin",
		base:     linkedInBaseURL,
		card:     "div.base-card, div.job-search-card",
		title:    "h3.base-search-card__title",
		company:  "h4.base-search-card__subtitle",
		location: "span.job-search-card__location",
		salary:   "span.job-search-card__salary-info",
		posted:   "time",
		link:     "a.base-card__full-link",
	}}
}

func (a *LinkedInAdapter) Name() string                                     { return a.schema.source }
func (a *LinkedInAdapter) SupportsRemoteFilter() bool                       { return true }
func (a *LinkedInAdapter) SupportsLanguageFilter(model.LanguageFilter) bool { return false }

// BuildRequest encodes q for the guest search API, newest first, last 7 days.
func (a *LinkedInAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	params := url.Values{}
	params.Set("keywords", q.Keywords)
	params.Set("f_TPR", "r604800")
	params.Set("sortBy", "DD")
	params.Set("start", strconv.Itoa((page-1)*25))
	if q.Remote() {
		params.Set("location", "Germany")
		params.Set("geoId", linkedInGermanyID)
		params.Set("f_WT", "2")
	} else {
		params.Set("location", q.Location)
		params.Set("distance", "25")
	}
	return getRequest(linkedInBaseURL+"/jobs-guest/jobs/api/seeMoreJobPostings/search", params), nil
}

// ParseResponse treats an empty fragment as the end of the result list.
func (a *LinkedInAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return parseCards(body, a.schema)
}
