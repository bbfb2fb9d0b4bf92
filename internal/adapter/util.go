package adapter

import (
	"bytes"
	"errors"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobradar/internal/model"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// extractText converts an HTML or HTML-encoded string to plain text.
// It unescapes HTML entities, strips all tags, then collapses whitespace.
// Some boards double-encode snippets, so node text can still carry markup.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, "")
	return strings.Join(strings.Fields(plain), " ")
}

// cardSchema describes where a board puts the fields of one search result.
// Selectors may be comma separated groups; the first match wins.
type cardSchema struct {
	source string
	base   string // used to resolve relative links

	card        string
	title       string
	company     string
	location    string
	salary      string
	posted      string
	description string
	link        string // element whose href is the posting URL

	// linkFunc overrides link when the URL must be built from attributes.
	linkFunc func(card *goquery.Selection) string

	// emptyMarkers are selectors present on a valid page with no results.
	emptyMarkers []string
	// emptyTexts are phrases shown on a valid page with no results.
	emptyTexts []string
}

var errNoResultContainer = errors.New("no result cards and no empty-results marker")

// parseCards extracts listings from body according to s. A page without cards
// is only accepted as empty when it carries one of the schema's empty markers;
// anything else is reported as a parse failure so schema drift is visible.
func parseCards(body []byte, s cardSchema) ([]model.RawListing, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, model.NewParseError(s.source, body, errors.New("empty body"))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, model.NewParseError(s.source, body, err)
	}

	cards := doc.Find(s.card)
	if cards.Length() == 0 {
		if isEmptyResultPage(doc, s) {
			return nil, nil
		}
		return nil, model.NewParseError(s.source, body, errNoResultContainer)
	}

	var listings []model.RawListing
	cards.Each(func(_ int, card *goquery.Selection) {
		l := model.RawListing{
			Title:       firstText(card, s.title),
			Company:     firstText(card, s.company),
			Location:    firstText(card, s.location),
			Salary:      firstText(card, s.salary),
			Posted:      firstText(card, s.posted),
			Description: firstText(card, s.description),
		}
		href := ""
		if s.linkFunc != nil {
			href = s.linkFunc(card)
		} else if s.link != "" {
			href, _ = card.Find(s.link).First().Attr("href")
			if href == "" {
				href, _ = card.Attr("href")
			}
		}
		l.URL = resolveURL(s.base, href)

		if l.Title == "" {
			return
		}
		listings = append(listings, l)
	})

	if len(listings) == 0 {
		return nil, model.NewParseError(s.source, body, errors.New("result cards without titles"))
	}
	return listings, nil
}

func isEmptyResultPage(doc *goquery.Document, s cardSchema) bool {
	for _, sel := range s.emptyMarkers {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	text := strings.ToLower(doc.Text())
	for _, phrase := range s.emptyTexts {
		if strings.Contains(text, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// firstText returns the collapsed text of the first element matching sel.
func firstText(card *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	return extractText(card.Find(sel).First().Text())
}

// resolveURL makes href absolute against base. Unparseable links are dropped.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

var slugRegex = regexp.MustCompile(`[^a-z0-9äöüß]+`)

// slugify turns "Backend Developer" into "backend-developer".
func slugify(s string) string {
	s = slugRegex.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
