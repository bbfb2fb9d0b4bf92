package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amishk599/jobradar/internal/model"
)

// amountRegex matches "50.000", "55,000", "12,50", "60k" and "60 K".
var amountRegex = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d{1,2})?)(\s?[kK]\b)?`)

var thousandsRegex = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)

// ParseSalary extracts a range, currency and period from a salary text. It
// returns nil when no amount is found.
func ParseSalary(text string) *model.Salary {
	matches := amountRegex.FindAllStringSubmatch(text, 2)
	if len(matches) == 0 {
		return nil
	}

	var amounts []float64
	var kilo []bool
	for _, m := range matches {
		v, ok := parseAmount(m[1])
		if !ok {
			continue
		}
		amounts = append(amounts, v)
		kilo = append(kilo, m[2] != "")
	}
	if len(amounts) == 0 {
		return nil
	}

	// "60-80k" applies the suffix to both ends.
	anyKilo := false
	for _, k := range kilo {
		anyKilo = anyKilo || k
	}
	for i := range amounts {
		if kilo[i] || (anyKilo && amounts[i] < 1000) {
			amounts[i] *= 1000
		}
	}

	s := &model.Salary{Min: amounts[0], Max: amounts[0]}
	if len(amounts) > 1 {
		s.Max = amounts[1]
		if s.Max < s.Min {
			s.Min, s.Max = s.Max, s.Min
		}
	}
	s.Currency = currency(text)
	s.Period = period(text)
	return s
}

func parseAmount(s string) (float64, bool) {
	if thousandsRegex.MatchString(s) {
		s = strings.NewReplacer(".", "", ",", "").Replace(s)
	} else {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func currency(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "€"), strings.Contains(lower, "eur"):
		return "EUR"
	case strings.Contains(lower, "$"), strings.Contains(lower, "usd"):
		return "USD"
	case strings.Contains(lower, "£"), strings.Contains(lower, "gbp"):
		return "GBP"
	case strings.Contains(lower, "chf"):
		return "CHF"
	}
	return ""
}

func period(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "stunde", "std", "hour", "/h", "hourly"):
		return "hour"
	case containsAny(lower, "monat", "month", "mtl"):
		return "month"
	case containsAny(lower, "jahr", "year", "p.a.", "annual", "jährlich", "yearly"):
		return "year"
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
