// Package classify turns raw journal text, optionally accompanied by smart
// tag detections, into structured ClassificationResult records.
//
// Classification never fails from the caller's point of view: when smart tag
// fusion or AI tag generation breaks, or no classifier is ready, the engine
// returns a Fallback outcome carrying a basic reflection classification.
package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hurttlocker/starbound/internal/sentiment"
	"github.com/hurttlocker/starbound/internal/tags"
)

// StringSet is an order-irrelevant set of strings. It marshals as a sorted
// JSON array.
type StringSet map[string]struct{}

// NewStringSet builds a set from values, skipping empty strings.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	s.Add(values...)
	return s
}

func (s StringSet) Add(values ...string) {
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s StringSet) Len() int { return len(s) }

// Union returns a new set holding the members of s and other.
func (s StringSet) Union(other StringSet) StringSet {
	out := make(StringSet, len(s)+len(other))
	for v := range s {
		out[v] = struct{}{}
	}
	for v := range other {
		out[v] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(b []byte) error {
	var values []string
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// Source records which path produced a classification.
type Source string

const (
	SourceSmartTags  Source = "smart_tags"
	SourceClassifier Source = "classifier"
	SourceFallback   Source = "fallback"
)

// ResultMetadata is the known metadata of a classification plus an escape
// hatch for fields written by other producers.
type ResultMetadata struct {
	Source     Source         `json:"source,omitempty"`
	PrimaryTag string         `json:"primary_tag,omitempty"`
	TagCount   int            `json:"tag_count,omitempty"`
	AITags     []string       `json:"ai_tags,omitempty"`
	Extras     map[string]any `json:"extras,omitempty"`
}

// ClassificationResult is an immutable interpretation of one journal entry.
type ClassificationResult struct {
	HabitKey      string              `json:"habit_key"`
	HabitValue    string              `json:"habit_value"`
	CategoryTitle string              `json:"category_title"`
	CategoryType  tags.Category       `json:"category_type"`
	Confidence    float64             `json:"confidence"`
	Reasoning     string              `json:"reasoning"`
	ExtractedText string              `json:"extracted_text"`
	Sentiment     sentiment.Sentiment `json:"sentiment"`
	Themes        StringSet           `json:"themes"`
	Keywords      StringSet           `json:"keywords"`
	Metadata      ResultMetadata      `json:"metadata"`
}

// SmartTag is one detection produced by the smart tagging collaborator.
type SmartTag struct {
	CanonicalKey string        `json:"canonical_key"`
	DisplayName  string        `json:"display_name"`
	Category     tags.Category `json:"category"`
	Confidence   float64       `json:"confidence"`
	Keywords     []string      `json:"keywords,omitempty"`
	IsPositive   bool          `json:"is_positive,omitempty"`
	IsNegative   bool          `json:"is_negative,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// SmartJournalEntry groups the smart tags detected on one piece of text.
type SmartJournalEntry struct {
	OriginalText      string     `json:"original_text"`
	Timestamp         time.Time  `json:"timestamp"`
	SmartTags         []SmartTag `json:"smart_tags"`
	AverageConfidence float64    `json:"average_confidence"`
}

// NewSmartJournalEntry computes the average confidence of the tags.
func NewSmartJournalEntry(text string, ts time.Time, smartTags []SmartTag) SmartJournalEntry {
	e := SmartJournalEntry{OriginalText: text, Timestamp: ts, SmartTags: smartTags}
	if len(smartTags) > 0 {
		var sum float64
		for _, t := range smartTags {
			sum += Clamp(t.Confidence)
		}
		e.AverageConfidence = sum / float64(len(smartTags))
	}
	return e
}

// State is the classification lifecycle of a single entry.
type State string

const (
	StateSubmitted              State = "submitted"
	StateClassifying            State = "classifying"
	StateClassified             State = "classified"
	StateClassifiedWithFallback State = "classified_with_fallback"
)

// Kind discriminates Outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindFallback
)

func (k Kind) String() string {
	if k == KindFallback {
		return "fallback"
	}
	return "success"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "success":
		*k = KindSuccess
	case "fallback":
		*k = KindFallback
	default:
		return fmt.Errorf("unknown outcome kind %q", b)
	}
	return nil
}

// Outcome is either Success(results) or Fallback(results, reason). A
// fallback still carries usable results.
type Outcome struct {
	Kind    Kind                   `json:"kind"`
	Results []ClassificationResult `json:"results"`
	Reason  string                 `json:"reason,omitempty"`
}

func success(results []ClassificationResult) Outcome {
	return Outcome{Kind: KindSuccess, Results: results}
}

func fallback(results []ClassificationResult, reason string) Outcome {
	return Outcome{Kind: KindFallback, Results: results, Reason: reason}
}

// IsFallback reports whether the engine degraded.
func (o Outcome) IsFallback() bool { return o.Kind == KindFallback }

// State is the terminal lifecycle state the outcome represents.
func (o Outcome) State() State {
	if o.Kind == KindFallback {
		return StateClassifiedWithFallback
	}
	return StateClassified
}

// AverageConfidence is the mean confidence over results, 0 when empty.
func (o Outcome) AverageConfidence() float64 {
	return AverageConfidence(o.Results)
}

// AverageConfidence is the mean confidence over results, 0 when empty.
func AverageConfidence(results []ClassificationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += Clamp(r.Confidence)
	}
	return sum / float64(len(results))
}

// Clamp bounds v to [0,1]; NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
