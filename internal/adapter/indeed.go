package adapter

import (
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobradar/internal/model"
)

const indeedBaseURL = "https://de.indeed.com"

// Ensure IndeedAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*IndeedAdapter)(nil)

// IndeedAdapter searches de.indeed.com. Pages are offset by 10 results.
type IndeedAdapter struct {
	schema cardSchema
}

// NewIndeedAdapter creates an adapter for Indeed Germany.
func NewIndeedAdapter() *IndeedAdapter {
	return &IndeedAdapter{schema: cardSchema{
		source:      "indeed",
		base:        indeedBaseURL,
		card:        "div[data-jk], .job_seen_beacon, [data-testid=job-card]",
		title:       "h2 a span, h2 a, .jobTitle, h2",
		company:     "[data-testid=company-name], .companyName",
		location:    "[data-testid=text-location], [data-testid=job-location], .companyLocation",
		salary:      ".salary-snippet-container, .salary-snippet, .salaryText",
		posted:      ".date, [data-testid=myJobsStateDate]",
		description: ".job-snippet, [data-testid=jobsnippet_footer]",
		linkFunc: func(card *goquery.Selection) string {
			if jk, ok := card.Attr("data-jk"); ok && jk != "" {
				return indeedBaseURL + "/viewjob?jk=" + url.QueryEscape(jk)
			}
			href, _ := card.Find("h2 a[href], a[data-jk][href]").First().Attr("href")
			return href
		},
		emptyMarkers: []string{".jobsearch-NoResult-messageContainer", "[data-testid=no-results]"},
		emptyTexts:   []string{"keine Jobs gefunden", "did not match any jobs"},
	}}
}

func (a *IndeedAdapter) Name() string               { return a.schema.source }
func (a *IndeedAdapter) SupportsRemoteFilter() bool { return true }

// SupportsLanguageFilter is true for English only; Indeed has no German-only switch.
func (a *IndeedAdapter) SupportsLanguageFilter(f model.LanguageFilter) bool {
	return f == model.LanguageOnlyEN
}

// BuildRequest encodes q for Indeed's /jobs search, newest first, last 7 days.
func (a *IndeedAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	params := url.Values{}
	params.Set("q", q.Keywords)
	params.Set("sort", "date")
	params.Set("fromage", "7")
	params.Set("radius", "35")
	params.Set("start", strconv.Itoa((page-1)*10))
	if q.Remote() {
		params.Set("l", "Deutschland")
		params.Set("sc", "0kf:attr(DSQF7);")
	} else {
		params.Set("l", q.Location)
	}
	if q.Language == model.LanguageOnlyEN {
		params.Set("lang", "en")
	}
	return getRequest(indeedBaseURL+"/jobs", params), nil
}

func (a *IndeedAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	return parseCards(body, a.schema)
}
