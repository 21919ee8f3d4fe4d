package classify

import (
	"regexp"
	"strings"
)

// MaxAITags caps the number of generated AI tags.
const MaxAITags = 5

// DefaultAITags is emitted when no family rule fires.
var DefaultAITags = []string{"daily_life", "personal_reflection", "mood_check"}

// ContentRule fires its Tag when at least MinHits distinct keywords appear
// in the text as whole words.
type ContentRule struct {
	Family   string
	Tag      string
	Keywords []string
	MinHits  int // default 1
}

// DefaultContentRules are the emotion, activity and context families, in
// the order they are scanned.
var DefaultContentRules = []ContentRule{
	// emotion
	{Family: "emotion", Tag: "positive", Keywords: []string{"happy", "great", "good", "grateful", "joy", "joyful", "excited", "calm", "proud", "wonderful"}},
	{Family: "emotion", Tag: "negative", Keywords: []string{"sad", "guilty", "bad", "upset", "angry", "frustrated", "lonely", "down", "awful", "ashamed"}},
	{Family: "emotion", Tag: "anxiety", Keywords: []string{"anxious", "anxiety", "worried", "worry", "nervous", "panic", "stress", "stressed", "overwhelmed"}},
	{Family: "emotion", Tag: "fatigue", Keywords: []string{"tired", "exhausted", "fatigue", "fatigued", "drained", "sleepy", "burnt out", "burned out"}},

	// activity
	{Family: "activity", Tag: "work", Keywords: []string{"work", "worked", "working", "job", "meeting", "meetings", "deadline", "office", "project", "boss"}},
	{Family: "activity", Tag: "social", Keywords: []string{"friend", "friends", "family", "partner", "party", "social", "called", "chat", "dinner with"}},
	{Family: "activity", Tag: "physical_activity", Keywords: []string{"exercise", "exercised", "exercising", "workout", "gym", "run", "ran", "running", "walk", "walked", "walking", "yoga", "stretch", "stretched", "stretching", "swim", "swimming", "bike", "cycling", "sport"}},
	{Family: "activity", Tag: "nutrition", Keywords: []string{"eat", "ate", "eating", "food", "snack", "snacks", "snacking", "meal", "meals", "breakfast", "lunch", "dinner", "diet", "cook", "cooked", "cooking", "sugar", "vegetables", "junk food"}},
	{Family: "activity", Tag: "sleep", Keywords: []string{"sleep", "slept", "sleeping", "nap", "napped", "bed", "bedtime", "insomnia", "rest", "rested"}},

	// context
	{Family: "context", Tag: "home", Keywords: []string{"home", "house", "couch", "kitchen", "chores", "apartment"}},
	{Family: "context", Tag: "outdoor", Keywords: []string{"outside", "outdoor", "outdoors", "park", "nature", "sunshine", "beach", "hike", "hiking", "garden"}},
}

// keywordPattern pairs a cleaned keyword with its whole-word matcher.
type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

type compiledRule struct {
	ContentRule
	patterns []keywordPattern
}

func compileRules(rules []ContentRule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{ContentRule: r}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			cr.patterns = append(cr.patterns, keywordPattern{
				keyword: kw,
				re:      regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
			})
		}
		out = append(out, cr)
	}
	return out
}

// aiTagMatch is one generated tag with the keywords that triggered it.
type aiTagMatch struct {
	Tag     string
	Matched []string
}

// generateAITags scans text against the rules in order and returns at most
// limit tags. When nothing fires the default tags are returned with no
// matched keywords.
func generateAITags(text string, rules []compiledRule, limit int) []aiTagMatch {
	if limit <= 0 {
		limit = MaxAITags
	}
	lower := strings.ToLower(text)

	var out []aiTagMatch
	for _, rule := range rules {
		if len(out) >= limit {
			break
		}
		minHits := rule.MinHits
		if minHits <= 0 {
			minHits = 1
		}
		var matched []string
		for _, p := range rule.patterns {
			if p.re.MatchString(lower) {
				matched = append(matched, p.keyword)
			}
		}
		if len(matched) >= minHits {
			out = append(out, aiTagMatch{Tag: rule.Tag, Matched: matched})
		}
	}

	if len(out) == 0 {
		for _, t := range DefaultAITags {
			out = append(out, aiTagMatch{Tag: t})
		}
	}
	return out
}
