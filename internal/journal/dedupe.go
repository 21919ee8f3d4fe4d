package journal

import (
	"sort"
	"strings"
	"time"
)

const (
	// DuplicateWindow is the maximum timestamp distance between duplicates.
	DuplicateWindow = 2 * time.Minute
	// MaxDedupedEntries caps Dedupe output.
	MaxDedupedEntries = 20
)

// Richness scores how much derived information an entry carries. Dedupe
// keeps the richer of two duplicates.
func Richness(e Entry) int {
	score := 0
	for _, c := range e.Classifications {
		if !strings.EqualFold(strings.TrimSpace(c.CategoryTitle), "general") {
			score += 4
		}
		score += 2 * c.Themes.Len()
		score += c.Keywords.Len()
		if c.Sentiment.Polar() {
			score++
		}
	}
	if e.Metadata.SmartTagsCount != nil {
		score += *e.Metadata.SmartTagsCount
	}
	return score
}

// IsDuplicate reports whether a and b have the same lowercase trimmed text
// and were written less than DuplicateWindow apart.
func IsDuplicate(a, b Entry) bool {
	if normalizedText(a.OriginalText) != normalizedText(b.OriginalText) {
		return false
	}
	d := a.Timestamp.Sub(b.Timestamp)
	if d < 0 {
		d = -d
	}
	return d < DuplicateWindow
}

// Dedupe collapses near-duplicate entries, keeping the richer entry of each
// conflict (ties favour the newer one), and returns at most
// MaxDedupedEntries entries, newest first. Dedupe(Dedupe(xs)) == Dedupe(xs).
func Dedupe(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}

	scan := make([]Entry, len(entries))
	copy(scan, entries)
	sort.SliceStable(scan, func(i, j int) bool {
		return scan[i].Timestamp.Before(scan[j].Timestamp)
	})

	// Entries are scanned oldest first, so the newest kept entry for a text
	// is the only one an incoming entry can collide with.
	kept := make([]Entry, 0, len(scan))
	lastByText := map[string]int{}
	for _, incoming := range scan {
		key := normalizedText(incoming.OriginalText)
		idx, ok := lastByText[key]
		if ok && IsDuplicate(kept[idx], incoming) {
			if Richness(incoming) >= Richness(kept[idx]) {
				kept[idx] = incoming
			}
			continue
		}
		lastByText[key] = len(kept)
		kept = append(kept, incoming)
	}

	sortByRecency(kept)
	if len(kept) > MaxDedupedEntries {
		kept = kept[:MaxDedupedEntries]
	}
	return kept
}

// sortByRecency orders newest first, then by ID for a stable result.
func sortByRecency(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})
}
