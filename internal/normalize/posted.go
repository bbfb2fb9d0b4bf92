package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	articleRegex  = regexp.MustCompile(`\b(a|an|one|einem|einer|eine|einen)\b`)
	hoursAgoRegex = regexp.MustCompile(`(\d+)\s*(stunden|stunde|std|hours|hour|hrs|h)\b`)
	daysAgoRegex  = regexp.MustCompile(`(\d+)\+?\s*(tagen|tage|tag|days|day|d)\b`)
	weeksAgoRegex = regexp.MustCompile(`(\d+)\+?\s*(wochen|woche|weeks|week)\b`)
	monthsRegex   = regexp.MustCompile(`(\d+)\+?\s*(monaten|monate|monat|months|month)\b`)
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
}

// ParsePosted converts a posting-date text such as "vor 3 Tagen", "2 days
// ago", "heute" or "2026-03-01" into a timestamp relative to now. Relative
// day values are truncated to midnight UTC. It returns nil when the text is
// not understood.
func ParsePosted(text string, now time.Time) *time.Time {
	s := collapse(text)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	s = strings.ToLower(s)

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysBack := func(n int) *time.Time {
		t := today.AddDate(0, 0, -n)
		return &t
	}

	switch {
	case containsAny(s, "gestern", "yesterday"):
		return daysBack(1)
	case containsAny(s, "heute", "today", "just posted", "gerade", "soeben"):
		return daysBack(0)
	}

	s = articleRegex.ReplaceAllString(s, "1")
	if n, ok := leadingNumber(hoursAgoRegex, s); ok {
		t := now.Add(-time.Duration(n) * time.Hour)
		return &t
	}
	if n, ok := leadingNumber(daysAgoRegex, s); ok {
		return daysBack(n)
	}
	if n, ok := leadingNumber(weeksAgoRegex, s); ok {
		return daysBack(n * 7)
	}
	if n, ok := leadingNumber(monthsRegex, s); ok {
		return daysBack(n * 30)
	}
	return nil
}

func leadingNumber(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
