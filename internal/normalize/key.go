package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams are query parameters that vary per impression but do not
// identify a posting. Keys are compared lowercased; utm_* is matched by prefix.
var trackingParams = map[string]bool{
	"refid":      true,
	"trackingid": true,
	"trk":        true,
	"position":   true,
	"pagenum":    true,
}

// IdentityKey derives the dedup key of a posting. Postings with a usable URL
// are keyed by the canonical URL; the rest by a hash of their descriptive
// fields, so the same listing on two aggregators only collapses if the URL
// matches.
func IdentityKey(source, title, company, location, rawURL string) string {
	if u, ok := CanonicalURL(rawURL); ok {
		return "url:" + u
	}
	parts := []string{source, title, company, location}
	for i, p := range parts {
		parts[i] = strings.ToLower(collapse(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "sha:" + hex.EncodeToString(sum[:])
}

// CanonicalURL lowercases scheme and host, drops the fragment and tracking
// parameters, sorts the remaining parameters and strips a trailing slash.
// Only absolute http(s) URLs are accepted.
func CanonicalURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode() // Encode sorts by key
	u.ForceQuery = false

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
