package normalize

import (
	"strings"

	"github.com/amishk599/jobradar/internal/model"
)

type indicator struct {
	text   string
	weight int
}

var germanIndicators = []indicator{
	{"(m/w/d)", 20},
	{"(w/m/d)", 20},
	{"(m/f/d)", 10},
	{"gmbh", 15},
	{"entwickler", 10},
	{"wir suchen", 8},
	{"aufgaben", 6},
	{"kenntnisse", 6},
	{" und ", 3},
	{" der ", 3},
	{" die ", 3},
	{" mit ", 3},
}

var englishIndicators = []indicator{
	{"developer", 10},
	{"we are looking", 8},
	{"responsibilities", 6},
	{"requirements", 6},
	{"experience", 4},
	{" and ", 3},
	{" the ", 3},
	{" with ", 3},
}

// languageMargin is how far ahead one language must score to win outright.
const languageMargin = 5

// DetectLanguage guesses the language of a posting from its title and
// description. It returns model.LanguageUnknown when the evidence is weak.
func DetectLanguage(title, description string) model.Language {
	text := " " + strings.ToLower(collapse(title+" "+description)) + " "
	if strings.TrimSpace(text) == "" {
		return model.LanguageUnknown
	}

	de := score(text, germanIndicators)
	en := score(text, englishIndicators)
	switch {
	case de >= en+languageMargin:
		return model.LanguageGerman
	case en >= de+languageMargin:
		return model.LanguageEnglish
	}

	switch {
	case strings.Contains(text, "english speaking"), strings.Contains(text, "english-speaking"),
		strings.Contains(text, "working language is english"):
		return model.LanguageEnglish
	case strings.Contains(text, "deutschkenntnisse"), strings.Contains(text, "fließend deutsch"):
		return model.LanguageGerman
	}
	return model.LanguageUnknown
}

func score(text string, indicators []indicator) int {
	total := 0
	for _, ind := range indicators {
		if strings.Contains(text, ind.text) {
			total += ind.weight
		}
	}
	return total
}
