package normalize

import (
	"regexp"
	"strings"
)

var qualifierRegex = regexp.MustCompile(`\s*\([^)]*\)`)

// cityNames maps German spellings to the names used across the index.
var cityNames = map[string]string{
	"münchen":           "Munich",
	"muenchen":          "Munich",
	"köln":              "Cologne",
	"koeln":             "Cologne",
	"nürnberg":          "Nuremberg",
	"nuernberg":         "Nuremberg",
	"düsseldorf":        "Dusseldorf",
	"duesseldorf":       "Dusseldorf",
	"frankfurt am main": "Frankfurt",
	"frankfurt a.m.":    "Frankfurt",
	"frankfurt (main)":  "Frankfurt",
	"hannover":          "Hanover",
}

var remoteMarkers = []string{
	"remote",
	"homeoffice",
	"home office",
	"home-office",
	"100% remote",
	"mobiles arbeiten",
	"work from home",
}

// Location returns the cleaned location text and whether it marks the
// posting as remote.
func Location(raw string) (string, bool) {
	remote := IsRemote(raw)

	s := collapse(raw)
	if city, ok := cityNames[strings.ToLower(s)]; ok {
		return city, remote
	}
	s = qualifierRegex.ReplaceAllString(s, "")

	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if city, ok := cityNames[strings.ToLower(p)]; ok {
			p = city
		}
		out = append(out, p)
	}
	s = strings.Join(out, ", ")

	if s == "" && remote {
		s = "Remote"
	}
	return s, remote
}

// IsRemote reports whether text contains a remote-work marker.
func IsRemote(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range remoteMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
