// Package sentiment provides the rule-based sentiment detector and keyword
// extractor used on raw journal text.
package sentiment

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Sentiment is the polarity of a piece of text.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three polarities.
func (s Sentiment) Valid() bool {
	return s == Positive || s == Negative || s == Neutral
}

// Polar reports whether s is positive or negative.
func (s Sentiment) Polar() bool {
	return s == Positive || s == Negative
}

// Parse maps a string onto a Sentiment, defaulting to Neutral.
func Parse(s string) Sentiment {
	v := Sentiment(strings.ToLower(strings.TrimSpace(s)))
	if v.Valid() {
		return v
	}
	return Neutral
}

var positiveWords = []string{
	"happy", "good", "great", "amazing", "wonderful", "excited", "grateful",
	"thankful", "love", "joy", "calm", "peaceful", "proud", "accomplished",
	"energized", "relaxed", "content", "hopeful", "motivated", "better",
	"fantastic", "awesome", "glad", "refreshed", "productive",
}

var negativeWords = []string{
	"sad", "bad", "terrible", "awful", "angry", "frustrated", "stressed",
	"anxious", "worried", "tired", "exhausted", "lonely", "depressed",
	"overwhelmed", "guilty", "upset", "hurt", "sick", "worse", "nervous",
	"irritated", "drained", "hopeless", "miserable", "annoyed",
}

var (
	positivePattern = wordListPattern(positiveWords)
	negativePattern = wordListPattern(negativeWords)
)

func wordListPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Counts returns the number of positive and negative word hits in text.
func Counts(text string) (positive, negative int) {
	return len(positivePattern.FindAllStringIndex(text, -1)), len(negativePattern.FindAllStringIndex(text, -1))
}

// DetectSentiment returns whichever polarity has strictly more word hits,
// Neutral on a tie (including no hits at all).
func DetectSentiment(text string) Sentiment {
	pos, neg := Counts(text)
	switch {
	case pos > neg:
		return Positive
	case neg > pos:
		return Negative
	}
	return Neutral
}

// MaxKeywords caps ExtractKeywords output.
const MaxKeywords = 3

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "had": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "day": true, "get": true,
	"has": true, "him": true, "his": true, "how": true, "its": true, "may": true,
	"new": true, "now": true, "old": true, "see": true, "two": true, "way": true,
	"who": true, "did": true, "yes": true, "let": true, "put": true, "say": true,
	"she": true, "too": true, "use": true, "that": true, "this": true, "with": true,
	"have": true, "from": true, "they": true, "been": true, "were": true,
	"what": true, "when": true, "your": true, "said": true, "each": true,
	"which": true, "their": true, "will": true, "about": true, "would": true,
	"there": true, "could": true, "other": true, "into": true, "just": true,
	"very": true, "really": true, "today": true, "feel": true, "feeling": true,
	"some": true, "then": true, "than": true, "also": true, "much": true,
	"like": true, "myself": true, "because": true,
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// tokens lowercases text, strips punctuation and drops short and stop
// words, preserving order.
func tokens(text string) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), "")
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) <= 2 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// KeywordStrategy picks keywords from raw text.
type KeywordStrategy interface {
	Keywords(text string) []string
}

// FirstN keeps the first N surviving tokens in their original order. It is
// not frequency ranked.
type FirstN struct{ N int }

func (f FirstN) Keywords(text string) []string {
	n := f.N
	if n <= 0 {
		n = MaxKeywords
	}
	toks := tokens(text)
	if len(toks) > n {
		toks = toks[:n]
	}
	return toks
}

// ByFrequency keeps the N most frequent distinct tokens, ties broken by
// first occurrence.
type ByFrequency struct{ N int }

func (f ByFrequency) Keywords(text string) []string {
	n := f.N
	if n <= 0 {
		n = MaxKeywords
	}
	counts := map[string]int{}
	first := map[string]int{}
	var distinct []string
	for i, tok := range tokens(text) {
		if _, seen := counts[tok]; !seen {
			first[tok] = i
			distinct = append(distinct, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(distinct, func(i, j int) bool {
		a, b := distinct[i], distinct[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return first[a] < first[b]
	})
	if len(distinct) > n {
		distinct = distinct[:n]
	}
	return distinct
}

// ExtractKeywords returns up to three keywords: the first tokens longer
// than two characters that are not stop words.
func ExtractKeywords(text string) []string {
	return FirstN{N: MaxKeywords}.Keywords(text)
}
