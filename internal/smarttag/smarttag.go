// Package smarttag is the rule-based smart tagger. It scans journal text for
// vocabulary aliases and keyword clusters and emits classify.SmartTag
// detections with a hit-based confidence.
package smarttag

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/hurttlocker/starbound/internal/classify"
	"github.com/hurttlocker/starbound/internal/sentiment"
	"github.com/hurttlocker/starbound/internal/tags"
)

// MaxTags caps the detections returned for one text.
const MaxTags = 5

// ContentRule maps keyword hits in text to a canonical tag.
// MinHits is the minimum number of distinct keywords that must appear
// for the rule to fire.
type ContentRule struct {
	Keywords []string // lowercase words or phrases
	MinHits  int      // default: 1
	Tag      string   // canonical key assigned when matched
}

// DefaultContentRules are keyword clusters that are too loose to be aliases
// on their own. Each needs two distinct hits.
var DefaultContentRules = []ContentRule{
	{
		Keywords: []string{"deadline", "pressure", "overwhelmed", "stressed", "too much",
			"behind", "overworked", "burnout", "rushing"},
		MinHits: 2,
		Tag:     "stress",
	},
	{
		Keywords: []string{"rent", "bills", "debt", "money", "paycheck", "budget",
			"overdraft", "loan", "savings"},
		MinHits: 2,
		Tag:     "financial",
	},
	{
		Keywords: []string{"couldn't sleep", "woke up", "restless", "tossing",
			"3am", "awake all night", "nightmare"},
		MinHits: 2,
		Tag:     "sleep_issues",
	},
	{
		Keywords: []string{"friends", "family", "called", "dinner with", "party",
			"catch up", "hung out", "visited"},
		MinHits: 2,
		Tag:     "social",
	},
	{
		Keywords: []string{"breath", "breathing", "gratitude", "grateful", "present",
			"meditated", "quiet", "calm"},
		MinHits: 2,
		Tag:     "mindfulness",
	},
}

// Tagger detects smart tags. It is safe for concurrent use.
type Tagger struct {
	registry *tags.Registry
	rules    []ContentRule
	now      func() time.Time
}

// New builds a Tagger whose alias rules come from every choice and chance
// tag in registry, followed by extra.
func New(registry *tags.Registry, extra []ContentRule) *Tagger {
	t := &Tagger{registry: registry, now: time.Now}
	for _, ct := range registry.Tags() {
		if ct.Category != tags.CategoryChoice && ct.Category != tags.CategoryChance {
			continue
		}
		kws := []string{phrase(ct.Key)}
		for _, a := range ct.Aliases {
			kws = append(kws, phrase(a))
		}
		t.rules = append(t.rules, ContentRule{Keywords: kws, MinHits: 1, Tag: ct.Key})
	}
	t.rules = append(t.rules, extra...)
	return t
}

// Default is New with DefaultContentRules.
func Default(registry *tags.Registry) *Tagger {
	return New(registry, DefaultContentRules)
}

// Tag scans text and returns detections ordered by confidence, highest
// first. Blank text yields no tags.
func (t *Tagger) Tag(ctx context.Context, text string) ([]classify.SmartTag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	padded := pad(text)
	if strings.TrimSpace(padded) == "" {
		return nil, nil
	}

	type hit struct {
		keywords []string
	}
	hits := map[string]*hit{}
	var order []string
	for _, rule := range t.rules {
		minHits := rule.MinHits
		if minHits <= 0 {
			minHits = 1
		}
		var matched []string
		for _, kw := range rule.Keywords {
			if kw = phrase(kw); kw != "" && strings.Contains(padded, " "+kw+" ") {
				matched = append(matched, kw)
			}
		}
		if len(matched) < minHits {
			continue
		}
		key, ok := t.registry.Resolve(rule.Tag)
		if !ok {
			continue
		}
		h, seen := hits[key]
		if !seen {
			h = &hit{}
			hits[key] = h
			order = append(order, key)
		}
		h.keywords = appendUnique(h.keywords, matched...)
	}
	if len(order) == 0 {
		return nil, nil
	}

	mood := sentiment.DetectSentiment(text)
	created := t.now().UTC()
	out := make([]classify.SmartTag, 0, len(order))
	for _, key := range order {
		ct := t.registry.Lookup(key)
		st := classify.SmartTag{
			CanonicalKey: key,
			DisplayName:  ct.DisplayName,
			Category:     ct.Category,
			Confidence:   confidence(len(hits[key].keywords)),
			Keywords:     hits[key].keywords,
			IsPositive:   mood == sentiment.Positive && ct.Category != tags.CategoryChance,
			IsNegative:   mood == sentiment.Negative || ct.Category == tags.CategoryChance,
			CreatedAt:    created,
		}
		out = append(out, st)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].CanonicalKey < out[j].CanonicalKey
	})
	if len(out) > MaxTags {
		out = out[:MaxTags]
	}
	return out, nil
}

// confidence grows with distinct keyword hits: 0.65, 0.8, then 0.95.
func confidence(hits int) float64 {
	c := 0.5 + 0.15*float64(hits)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// phrase lowercases s and turns underscores and hyphens into spaces.
func phrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// pad lowercases text, maps everything except letters, digits and
// apostrophes to spaces, and surrounds the result with single spaces so
// whole-word matching is a substring check.
func pad(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	if !lastSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
