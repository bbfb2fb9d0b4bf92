package adapter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/amishk599/jobradar/internal/model"
)

const stellenanzeigenBaseURL = "https://www.stellenanzeigen.de"

// stellenanzeigenLocations maps city names to the board's location ids. Cities
// not listed are sent as free text.
var stellenanzeigenLocations = map[string]string{
	"berlin":     "M-DE-12803",
	"hamburg":    "M-DE-12601",
	"munich":     "M-DE-09000",
	"münchen":    "M-DE-09000",
	"dusseldorf": "M-DE-12804",
	"düsseldorf": "M-DE-12804",
	"cologne":    "M-DE-10000",
	"köln":       "M-DE-10000",
	"frankfurt":  "M-DE-08000",
	"stuttgart":  "M-DE-07000",
	"dortmund":   "M-DE-12805",
	"bremen":     "M-DE-04000",
	"hannover":   "M-DE-03000",
	"remote":     "X-HO-100",
}

// Ensure StellenanzeigenAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*StellenanzeigenAdapter)(nil)

// StellenanzeigenAdapter searches stellenanzeigen.de.
type StellenanzeigenAdapter struct {
	schema cardSchema
}

// NewStellenanzeigenAdapter creates an adapter for stellenanzeigen.de.
func NewStellenanzeigenAdapter() *StellenanzeigenAdapter {
	return &StellenanzeigenAdapter{schema: cardSchema{
		source:       "stellenanzeigen",
		base:         stellenanzeigenBaseURL,
		card:         "article.job-item, div.job-result, [data-testid=job-card], article[class*=job]",
		title:        "h2, h3, .job-title",
		company:      ".company, .job-company, [data-testid=company-name]",
		location:     ".location, .job-location, [data-testid=job-location]",
		salary:       ".salary",
		posted:       "time, .date",
		description:  ".teaser, .job-description",
		link:         "a[href*='/job/'], a",
		emptyMarkers: []string{".no-results", "[data-testid=no-results]"},
		emptyTexts:   []string{"keine Stellenanzeigen gefunden", "keine Treffer"},
	}}
}

func (a *StellenanzeigenAdapter) Name() string                                     { return a.schema.source }
func (a *StellenanzeigenAdapter) SupportsRemoteFilter() bool                       { return true }
func (a *StellenanzeigenAdapter) SupportsLanguageFilter(model.LanguageFilter) bool { return false }

func (a *StellenanzeigenAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	params := url.Values{}
	params.Set("fulltext", q.Keywords)
	if q.Remote() {
		params.Set("homeoffice", "true")
		params.Set("locationIds", stellenanzeigenLocations["remote"])
	} else if id, ok := stellenanzeigenLocations[strings.ToLower(q.Location)]; ok {
		params.Set("locationIds", id)
	} else if q.Location != "" {
		params.Set("locationName", q.Location)
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return getRequest(stellenanzeigenBaseURL+"/suche/", params), nil
}

func (a *StellenanzeigenAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	return parseCards(body, a.schema)
}
