package adapter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobradar/internal/model"
)

const jobRapidoBaseURL = "https://de.jobrapido.com"

// Ensure JobRapidoAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*JobRapidoAdapter)(nil)

// JobRapidoAdapter searches de.jobrapido.com, an aggregator whose links point
// to redirect pages; unresolved template links are dropped.
type JobRapidoAdapter struct {
	schema cardSchema
}

// NewJobRapidoAdapter creates an adapter for Jobrapido.
func NewJobRapidoAdapter() *JobRapidoAdapter {
	return &JobRapidoAdapter{schema: cardSchema{
		source:      "jobrapido",
		base:        jobRapidoBaseURL,
		card:        "div.result-item, [data-advert], div[class*=job-item]",
		title:       ".result-item__title, h2, h3",
		company:     ".result-item__company, [class*=company]",
		location:    ".result-item__location, [class*=location]",
		salary:      ".result-item__salary, [class*=salary]",
		posted:      ".result-item__date, time",
		description: ".result-item__description, [class*=description]",
		linkFunc: func(card *goquery.Selection) string {
			href, _ := card.Find("a.result-item__link, a").First().Attr("href")
			if strings.Contains(href, "[[") {
				return ""
			}
			return href
		},
		emptyMarkers: []string{".no-results", "[class*=noResults]"},
		emptyTexts:   []string{"keine Ergebnisse", "keine Jobs gefunden"},
	}}
}

func (a *JobRapidoAdapter) Name() string                                     { return a.schema.source }
func (a *JobRapidoAdapter) SupportsRemoteFilter() bool                       { return false }
func (a *JobRapidoAdapter) SupportsLanguageFilter(model.LanguageFilter) bool { return false }

func (a *JobRapidoAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	params := url.Values{}
	params.Set("q", q.Keywords)
	params.Set("p", strconv.Itoa(page))
	if q.Remote() {
		params.Set("q", q.Keywords+" remote")
	} else if q.Location != "" {
		params.Set("l", q.Location)
	}
	return getRequest(jobRapidoBaseURL+"/", params), nil
}

func (a *JobRapidoAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	return parseCards(body, a.schema)
}
