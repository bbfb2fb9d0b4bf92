package adapter

import (
	"net/url"
	"strconv"

	"github.com/amishk599/jobradar/internal/model"
)

const monsterBaseURL = "https://www.monster.de"

// Ensure MonsterAdapter implements model.SiteAdapter.
var _ model.SiteAdapter = (*MonsterAdapter)(nil)

// MonsterAdapter searches monster.de.
type MonsterAdapter struct {
	schema cardSchema
}

// NewMonsterAdapter creates an adapter for Monster Germany.
func NewMonsterAdapter() *MonsterAdapter {
	return &MonsterAdapter{schema: cardSchema{
		source:       "monster",
		base:         monsterBaseURL,
		card:         "[data-testid=svx-job-card], article[data-testid=JobCard], div[class*=JobCardComponent]",
		title:        "[data-testid=jobTitle], h2, h3",
		company:      "[data-testid=company], [class*=JobCardCompany]",
		location:     "[data-testid=jobDetailLocation], [class*=JobCardLocation]",
		salary:       "[data-testid=salary], [class*=Salary]",
		posted:       "[data-testid=jobDetailDateRecency], time",
		description:  "[data-testid=jobDescription], [class*=Description]",
		link:         "a[data-testid=jobTitle], a[class*=JobCardTitleLink], a",
		emptyMarkers: []string{"[data-testid=noResultsPage]"},
		emptyTexts:   []string{"keine Jobs gefunden", "no jobs found"},
	}}
}

func (a *MonsterAdapter) Name() string                                     { return a.schema.source }
func (a *MonsterAdapter) SupportsRemoteFilter() bool                       { return true }
func (a *MonsterAdapter) SupportsLanguageFilter(model.LanguageFilter) bool { return false }

func (a *MonsterAdapter) BuildRequest(q model.SearchQuery, page int) (model.Request, error) {
	params := url.Values{}
	params.Set("q", q.Keywords)
	params.Set("page", strconv.Itoa(page))
	if q.Remote() {
		params.Set("where", "Homeoffice")
	} else {
		params.Set("where", q.Location)
	}
	return getRequest(monsterBaseURL+"/jobs/search", params), nil
}

func (a *MonsterAdapter) ParseResponse(body []byte) ([]model.RawListing, error) {
	return parseCards(body, a.schema)
}
