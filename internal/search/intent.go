package search

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Intent is what a query is after.
type Intent string

const (
	IntentJournal        Intent = "journal"
	IntentAskStarbound   Intent = "askStarbound"
	IntentHealthForecast Intent = "healthForecast"
	IntentUnknown        Intent = "unknown"
)

// ParseIntent accepts intent names in any case, with or without separators
// ("ask_starbound", "health-forecast"). Empty input is IntentUnknown.
func ParseIntent(s string) (Intent, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	switch b.String() {
	case "", "unknown", "all":
		return IntentUnknown, nil
	case "journal":
		return IntentJournal, nil
	case "askstarbound", "ask":
		return IntentAskStarbound, nil
	case "healthforecast", "forecast":
		return IntentHealthForecast, nil
	}
	return "", fmt.Errorf("invalid intent %q (valid: journal, askStarbound, healthForecast, unknown)", s)
}

// IntentClassifier detects the intent of a query.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, query string) (Intent, error)
}

// HeuristicClassifier is the keyword based IntentClassifier.
type HeuristicClassifier struct{}

func (HeuristicClassifier) ClassifyIntent(_ context.Context, query string) (Intent, error) {
	return ClassifyIntent(query), nil
}

var forecastTerms = []string{
	"forecast", "forecasts", "trend", "trends", "predict", "prediction", "outlook",
	"next week", "next month", "projection", "likely", "going to",
}

var questionWords = map[string]bool{
	"how": true, "what": true, "why": true, "should": true, "can": true, "could": true,
	"would": true, "is": true, "are": true, "do": true, "does": true, "when": true,
	"which": true, "who": true, "whats": true, "hows": true,
}

var askTerms = []string{"ask starbound", "advice", "help me", "tips", "suggest"}

var journalTerms = []string{
	"journal", "journals", "entry", "entries", "wrote", "write", "written", "felt",
	"diary", "logged", "note", "notes", "reflection",
}

// ClassifyIntent is a keyword heuristic. Forecast vocabulary wins over
// question form, which wins over journal vocabulary.
func ClassifyIntent(query string) Intent {
	padded, words := queryWords(query)
	if len(words) == 0 {
		return IntentUnknown
	}
	if containsAny(padded, forecastTerms) {
		return IntentHealthForecast
	}
	if strings.HasSuffix(strings.TrimSpace(query), "?") || questionWords[words[0]] || containsAny(padded, askTerms) {
		return IntentAskStarbound
	}
	if containsAny(padded, journalTerms) {
		return IntentJournal
	}
	return IntentUnknown
}

// queryWords lowercases q, drops apostrophes and splits on anything that is
// not a letter or digit.
func queryWords(q string) (string, []string) {
	q = strings.ReplaceAll(strings.ToLower(q), "'", "")
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(words, " ") + " ", words
}

func containsAny(padded string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(padded, " "+t+" ") {
			return true
		}
	}
	return false
}
