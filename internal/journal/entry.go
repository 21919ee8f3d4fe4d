// Package journal holds journal entries, near-duplicate reconciliation and
// the submission service that classifies and persists new entries.
package journal

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/starbound/internal/classify"
	"github.com/hurttlocker/starbound/internal/tags"
)

// Entry is one free-form journal entry. OriginalText is never rewritten.
type Entry struct {
	ID                string                          `json:"id"`
	OriginalText      string                          `json:"original_text"`
	Timestamp         time.Time                       `json:"timestamp"`
	Classifications   []classify.ClassificationResult `json:"classifications"`
	AverageConfidence float64                         `json:"average_confidence"`
	IsProcessed       bool                            `json:"is_processed"`
	Metadata          Metadata                        `json:"metadata"`
}

// Metadata is the known entry metadata. Keys written by other producers
// survive a JSON round trip through Extras.
type Metadata struct {
	SmartTagsCount *int
	Source         string
	Outcome        classify.State
	FallbackReason string
	Extras         map[string]any
}

var metadataKeys = map[string]bool{
	"smart_tags_count": true,
	"source":           true,
	"outcome":          true,
	"fallback_reason":  true,
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extras)+4)
	for k, v := range m.Extras {
		if !metadataKeys[k] {
			out[k] = v
		}
	}
	if m.SmartTagsCount != nil {
		out["smart_tags_count"] = *m.SmartTagsCount
	}
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.Outcome != "" {
		out["outcome"] = m.Outcome
	}
	if m.FallbackReason != "" {
		out["fallback_reason"] = m.FallbackReason
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		switch k {
		case "smart_tags_count":
			// Non-integer counts are kept as extras and ignored by Richness.
			var n int
			if err := json.Unmarshal(v, &n); err == nil {
				m.SmartTagsCount = &n
				continue
			}
		case "source":
			if err := json.Unmarshal(v, &m.Source); err == nil {
				continue
			}
		case "outcome":
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				m.Outcome = classify.State(s)
				continue
			}
		case "fallback_reason":
			if err := json.Unmarshal(v, &m.FallbackReason); err == nil {
				continue
			}
		}
		var anyV any
		if err := json.Unmarshal(v, &anyV); err != nil {
			return err
		}
		if m.Extras == nil {
			m.Extras = map[string]any{}
		}
		m.Extras[k] = anyV
	}
	return nil
}

// IntPtr is a convenience for building Metadata literals.
func IntPtr(n int) *int { return &n }

// Terms returns the union of themes and keywords over all classifications.
func (e Entry) Terms() []string {
	set := classify.NewStringSet()
	for _, c := range e.Classifications {
		set = set.Union(c.Themes).Union(c.Keywords)
	}
	return set.Sorted()
}

// CanonicalTags resolves the entry's themes and keywords against the
// vocabulary. An entry that resolves to nothing gets the fallback tag.
func CanonicalTags(reg *tags.Registry, e Entry) []tags.CanonicalTag {
	return reg.ResolveAll(e.Terms()...)
}

// CanonicalKeys is CanonicalTags reduced to sorted keys.
func CanonicalKeys(reg *tags.Registry, e Entry) []string {
	resolved := CanonicalTags(reg, e)
	keys := make([]string, 0, len(resolved))
	for _, t := range resolved {
		keys = append(keys, t.Key)
	}
	sort.Strings(keys)
	return keys
}

// normalizedText is the comparison key for duplicate detection.
func normalizedText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
