package adapter

import (
	"net/http"
	"net/url"

	"github.com/amishk599/jobradar/internal/model"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// browserHeaders returns the headers sent with every board request. Boards
// behind bot protection reject requests that do not look like a browser.
func browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "de-DE,de;q=0.9,en;q=0.8",
	}
}

// getRequest builds a GET request for base with the given query parameters.
func getRequest(base string, params url.Values) model.Request {
	u := base
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return model.Request{
		Method:  http.MethodGet,
		URL:     u,
		Headers: browserHeaders(),
	}
}
