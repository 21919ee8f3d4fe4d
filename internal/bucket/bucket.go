// Package bucket normalizes free-text duration and energy descriptors into
// the fixed buckets used for filtering nudges and habits.
//
// Every function here is total: unparseable input maps to a default bucket
// instead of an error.
package bucket

import (
	"regexp"
	"strconv"
	"strings"
)

// TimeBucket is a discretized duration.
type TimeBucket string

const (
	UnderOneMinute TimeBucket = "<1 min"
	OneToTwo       TimeBucket = "1-2 mins"
	TwoToFive      TimeBucket = "2-5 mins"
	FiveToTen      TimeBucket = "5-10 mins"
	TenPlus        TimeBucket = "10+ mins"
)

// TimeBuckets lists the buckets from shortest to longest.
var TimeBuckets = []TimeBucket{UnderOneMinute, OneToTwo, TwoToFive, FiveToTen, TenPlus}

// DefaultTimeBucket is returned when nothing in the text is recognisable.
const DefaultTimeBucket = OneToTwo

// MaxMinutes is the inclusive upper bound of the bucket. TenPlus is unbounded
// and reports -1.
func (b TimeBucket) MaxMinutes() float64 {
	switch b {
	case UnderOneMinute:
		return 1
	case OneToTwo:
		return 2
	case TwoToFive:
		return 5
	case FiveToTen:
		return 10
	}
	return -1
}

// Index is the position of b in TimeBuckets, or -1.
func (b TimeBucket) Index() int {
	for i, tb := range TimeBuckets {
		if tb == b {
			return i
		}
	}
	return -1
}

const unitPattern = `(minutes?|mins?|seconds?|secs?|hours?|hrs?)\b`

var (
	plusPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*\+\s*` + unitPattern)
	rangePattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(\d+(?:\.\d+)?)\s*` + unitPattern)
	singlePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*` + unitPattern)
)

type keywordRule struct {
	words  []string
	bucket TimeBucket
}

var timeKeywordRules = []keywordRule{
	{words: []string{"breath", "sip", "drink", "moment"}, bucket: UnderOneMinute},
	{words: []string{"stretch", "walk", "write"}, bucket: TwoToFive},
	{words: []string{"meditat", "plan", "cook"}, bucket: FiveToTen},
}

// BucketizeTime maps a duration description such as "15 minutes",
// "2-3 mins", "90 seconds" or "take a short walk" onto a TimeBucket.
func BucketizeTime(text string) TimeBucket {
	trimmed := strings.TrimSpace(text)
	for _, b := range TimeBuckets {
		if trimmed == string(b) {
			return b
		}
	}

	if m := plusPattern.FindStringSubmatch(trimmed); m != nil {
		if minutes, ok := toMinutes(m[1], m[2]); ok {
			return FromMinutes(minutes)
		}
	}
	if m := rangePattern.FindStringSubmatch(trimmed); m != nil {
		if minutes, ok := toMinutes(m[2], m[3]); ok {
			return FromMinutes(minutes)
		}
	}
	if m := singlePattern.FindStringSubmatch(trimmed); m != nil {
		if minutes, ok := toMinutes(m[1], m[2]); ok {
			return FromMinutes(minutes)
		}
	}

	lower := strings.ToLower(trimmed)
	for _, rule := range timeKeywordRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.bucket
			}
		}
	}
	return DefaultTimeBucket
}

// FromMinutes maps a duration in minutes onto its bucket.
func FromMinutes(minutes float64) TimeBucket {
	switch {
	case minutes <= 1:
		return UnderOneMinute
	case minutes <= 2:
		return OneToTwo
	case minutes <= 5:
		return TwoToFive
	case minutes <= 10:
		return FiveToTen
	default:
		return TenPlus
	}
}

func toMinutes(number, unit string) (float64, bool) {
	n, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	u := strings.ToLower(unit)
	switch {
	case strings.HasPrefix(u, "sec"):
		return n / 60, true
	case strings.HasPrefix(u, "h"):
		return n * 60, true
	default:
		return n, true
	}
}

// EnergyLevel is a discretized energy requirement.
type EnergyLevel string

const (
	EnergyVeryLow EnergyLevel = "very low"
	EnergyLow     EnergyLevel = "low"
	EnergyMedium  EnergyLevel = "medium"
	EnergyHigh    EnergyLevel = "high"
)

// EnergyLevels lists levels from lowest to highest.
var EnergyLevels = []EnergyLevel{EnergyVeryLow, EnergyLow, EnergyMedium, EnergyHigh}

// DefaultEnergy is returned for empty or unrecognised text.
const DefaultEnergy = EnergyLow

// Rank orders energy levels; unknown levels rank as DefaultEnergy.
func (e EnergyLevel) Rank() int {
	for i, l := range EnergyLevels {
		if l == e {
			return i
		}
	}
	return DefaultEnergy.Rank()
}

// NormalizeEnergy maps text such as "SUPER high intensity" onto an
// EnergyLevel. Substring checks run in a fixed order, so "very high" is
// very low.
func NormalizeEnergy(text string) EnergyLevel {
	trimmed := strings.TrimSpace(text)
	for _, l := range EnergyLevels {
		if trimmed == string(l) {
			return l
		}
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "very"), strings.Contains(lower, "minimal"):
		return EnergyVeryLow
	case strings.Contains(lower, "high"), strings.Contains(lower, "intense"):
		return EnergyHigh
	case strings.Contains(lower, "medium"), strings.Contains(lower, "moderate"):
		return EnergyMedium
	case strings.Contains(lower, "low"):
		return EnergyLow
	}
	return DefaultEnergy
}
