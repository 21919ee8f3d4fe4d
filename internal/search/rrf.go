package search

import (
	"math"
	"sort"
)

const defaultRRFK = 60

// RRFConfig holds parameters for Reciprocal Rank Fusion of result buckets.
type RRFConfig struct {
	K               int
	PreferredWeight float64 // weight of the intent's preferred bucket
	Weight          float64 // weight of every other bucket
}

// DefaultRRFConfig returns the default RRF configuration.
func DefaultRRFConfig() RRFConfig {
	return RRFConfig{
		K:               defaultRRFK,
		PreferredWeight: 1.5,
		Weight:          1.0,
	}
}

// preferredType maps an intent onto the result type its tab shows.
func preferredType(intent Intent) ResultType {
	switch intent {
	case IntentJournal:
		return TypeJournalEntry
	case IntentAskStarbound:
		return TypeConversation
	case IntentHealthForecast:
		return TypeForecast
	}
	return ""
}

// FuseBuckets merges ranked buckets into one list using Reciprocal Rank
// Fusion. Each bucket must already be ranked. A result seen in several
// buckets sums its contributions. Results in the preferred bucket are
// weighted by cfg.PreferredWeight.
func FuseBuckets(buckets [][]Result, preferred ResultType, cfg RRFConfig) []Result {
	return fuseBucketsWithLimit(buckets, preferred, 0, cfg)
}

func fuseBucketsWithLimit(buckets [][]Result, preferred ResultType, limit int, cfg RRFConfig) []Result {
	cfg = normalizeRRFConfig(cfg)

	type fusedEntry struct {
		result Result
		score  float64
	}

	fusedMap := make(map[string]*fusedEntry)
	order := make([]string, 0)

	for _, bucket := range buckets {
		for i, r := range bucket {
			weight := cfg.Weight
			if preferred != "" && r.Type == preferred {
				weight = cfg.PreferredWeight
			}
			contribution := weight / float64(cfg.K+i+1)

			key := string(r.Type) + "\x00" + r.ID
			if entry, exists := fusedMap[key]; exists {
				entry.score += contribution
				if entry.result.Snippet == "" {
					entry.result.Snippet = r.Snippet
				}
				continue
			}
			fusedMap[key] = &fusedEntry{result: r, score: contribution}
			order = append(order, key)
		}
	}

	merged := make([]Result, 0, len(fusedMap))
	for _, key := range order {
		entry := fusedMap[key]
		entry.result.Score = entry.score
		entry.result.MatchType = "rrf"
		merged = append(merged, entry.result)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		delta := merged[i].Score - merged[j].Score
		if math.Abs(delta) <= 1e-12 {
			return lessByRecency(merged[i], merged[j])
		}
		return delta > 0
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return merged
}

func normalizeRRFConfig(cfg RRFConfig) RRFConfig {
	if cfg.K <= 0 {
		cfg.K = defaultRRFK
	}
	if cfg.Weight == 0 {
		cfg.Weight = 1.0
	}
	if cfg.PreferredWeight == 0 {
		cfg.PreferredWeight = cfg.Weight
	}
	return cfg
}

// rankBucket orders results by score, then recency, then id.
func rankBucket(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return lessByRecency(results[i], results[j])
	})
}

func lessByRecency(a, b Result) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.ID < b.ID
}
