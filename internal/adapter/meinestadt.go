package adapter

import (
	"net/url"
	"strconv"

	"github.com/amishk599/jobradar/internal/model"
)

const meineStadtBaseURL = "https://jobs.meinestadt.de"

// Ensure MeineStadtAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*MeineStadtAdapter)(nil)

// MeineStadtAdapter searches jobs.meinestadt.de. The board has no remote
// filter, so remote queries search nationwide and rely on local detection.
type MeineStadtAdapter struct {
	schema cardSchema
}

// NewMeineStadtAdapter creates an adapter for meinestadt.de.
func NewMeineStadtAdapter() *MeineStadtAdapter {
	return &MeineStadtAdapter{schema: cardSchema{
		source:       "meinestadt",
		base:         meineStadtBaseURL,
		card:         "article.m-resultListEntry, li[class*=resultList], div[class*=job-item]",
		title:        "h2, h3, .m-resultListEntry__title",
		company:      ".m-resultListEntry__company, [class*=company]",
		location:     ".m-resultListEntry__location, [class*=location]",
		salary:       "[class*=salary]",
		posted:       "time, [class*=date]",
		description:  "[class*=teaser], [class*=description]",
		link:         "a[href*='/jobs/'], a",
		emptyMarkers: []string{".m-noResults", "[class*=noResults]"},
		emptyTexts:   []string{"keine passenden Stellenangebote", "keine Ergebnisse"},
	}}
}

func (a *MeineStadtAdapter) Name() string                                     { return a.schema.source }
func (a *MeineStadtAdapter) SupportsRemoteFilter() bool                       { return false }
func (a *MeineStadtAdapter) SupportsLanguageFilter(model.LanguageFilter) bool { return false }

func (a *MeineStadtAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	params := url.Values{}
	params.Set("was", q.Keywords)
	params.Set("seite", strconv.Itoa(page))
	if q.Remote() {
		params.Set("wo", "Deutschland")
	} else if q.Location != "" {
		params.Set("wo", q.Location)
	}
	return getRequest(meineStadtBaseURL+"/jobs", params), nil
}

func (a *MeineStadtAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	return parseCards(body, a.schema)
}
