package habits

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/starbound/internal/classify"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/tags"
)

var base = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func themed(i int, themes ...string) journal.Entry {
	return journal.Entry{
		ID:           fmt.Sprintf("e%02d", i),
		OriginalText: fmt.Sprintf("entry %d", i),
		Timestamp:    base.Add(time.Duration(i) * time.Hour),
		Classifications: []classify.ClassificationResult{{
			Themes: classify.NewStringSet(themes...),
		}},
	}
}

// history builds n entries, the first `hits` of them (the most recent ones)
// mentioning tag.
func history(n, hits int, tag string) []journal.Entry {
	var out []journal.Entry
	for i := 0; i < n; i++ {
		if i >= n-hits {
			out = append(out, themed(i, tag))
		} else {
			out = append(out, themed(i, "personal_reflection"))
		}
	}
	return out
}

func newDetector() *Detector {
	return NewDetector(tags.MustDefault(), NewMemoryState(), Config{})
}

func TestDetect_TwoOfTenDoesNotTrigger(t *testing.T) {
	d := newDetector()
	_, ok, err := d.Detect(context.Background(), history(10, 2, "walking"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetect_ThreeOfTenTriggersOnce(t *testing.T) {
	d := newDetector()
	ctx := context.Background()
	entries := history(10, 3, "walking")

	s, ok, err := d.Detect(ctx, entries)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "movement", s.Tag)
	assert.Equal(t, 3, s.Occurrences)
	assert.Contains(t, s.FormattedName, "Movement")
	assert.Equal(t, "daily", s.SuggestedFrequency)

	again, ok, err := d.Detect(ctx, append(entries, themed(20, "movement")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s, again, "pending suggestion is returned unchanged")
}

func TestDetect_OnlyFirstQualifyingTagSurfaces(t *testing.T) {
	d := newDetector()
	ctx := context.Background()
	var entries []journal.Entry
	for i := 0; i < 4; i++ {
		entries = append(entries, themed(i, "hydration", "sleep"))
	}
	entries = append(entries, themed(4, "sleep"))

	assert.Equal(t, []string{"sleep", "hydration"}, d.RepeatedTags(entries))

	s, ok, err := d.Detect(ctx, entries)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sleep", s.Tag)

	require.NoError(t, d.Dismiss(ctx, "sleep"))

	next, ok, err := d.Detect(ctx, entries)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hydration", next.Tag)

	require.NoError(t, d.Accept(ctx, "Hydration"))
	_, ok, err = d.Detect(ctx, entries)
	require.NoError(t, err)
	assert.False(t, ok, "accepted and dismissed tags are never suggested again")
}

func TestDetect_WindowIsConfigurable(t *testing.T) {
	ctx := context.Background()
	entries := append(history(3, 3, "water"), history(10, 0, "")...)
	for i := range entries[3:] {
		entries[3+i].Timestamp = base.Add(time.Duration(100+i) * time.Hour)
	}

	_, ok, err := newDetector().Detect(ctx, entries)
	require.NoError(t, err)
	assert.False(t, ok, "old hits fall outside the default window")

	wide := NewDetector(tags.MustDefault(), nil, Config{Window: 13})
	s, ok, err := wide.Detect(ctx, entries)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hydration", s.Tag)
}

func TestCounts_SkipOutcomeTags(t *testing.T) {
	d := newDetector()
	counts := d.Counts([]journal.Entry{themed(0, "personal_reflection", "nonsense"), themed(1, "snacks", "food")})
	assert.Equal(t, map[string]int{"nutrition": 1}, counts)
}

func TestResolve_RequiresPending(t *testing.T) {
	d := newDetector()
	err := d.Dismiss(context.Background(), "sleep")
	assert.True(t, errors.Is(err, ErrNoPendingSuggestion))

	_, ok, err := d.Detect(context.Background(), history(5, 3, "sleep"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.ErrorIs(t, d.Accept(context.Background(), "hydration"), ErrNoPendingSuggestion)
}

func TestGenericTemplate(t *testing.T) {
	d := NewDetector(tags.MustDefault(), nil, Config{Templates: TemplateMap{}})
	s, ok, err := d.Detect(context.Background(), history(3, 3, "stress"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "stress", s.Tag)
	assert.Contains(t, s.Description, "Stress")
}

func day(s string, habits map[string]string) DailyEntry {
	return DailyEntry{Date: s, Habits: habits}
}

func TestStreaks(t *testing.T) {
	now := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		entries []DailyEntry
		want    StreakSummary
	}{
		{"empty", nil, StreakSummary{}},
		{
			name:    "current run through today",
			entries: []DailyEntry{day("2026-06-08", nil), day("2026-06-09", nil), day("2026-06-10", nil)},
			want:    StreakSummary{Current: 3, Longest: 3, TotalEntries: 3},
		},
		{
			name:    "run ending yesterday still counts",
			entries: []DailyEntry{day("2026-06-08", nil), day("2026-06-09", nil)},
			want:    StreakSummary{Current: 2, Longest: 2, TotalEntries: 2},
		},
		{
			name: "broken run",
			entries: []DailyEntry{
				day("2026-06-01", nil), day("2026-06-02", nil), day("2026-06-03", nil), day("2026-06-04", nil),
				day("2026-06-07", nil),
			},
			want: StreakSummary{Current: 0, Longest: 4, TotalEntries: 5},
		},
		{
			name:    "duplicates and garbage dates",
			entries: []DailyEntry{day("2026-06-10", nil), day("2026-06-10", nil), day("not a date", nil)},
			want:    StreakSummary{Current: 1, Longest: 1, TotalEntries: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streaks(tt.entries, now))
		})
	}
}

func TestTrendsAndForecasts(t *testing.T) {
	var entries []DailyEntry
	for i := 1; i <= 9; i++ {
		h := map[string]string{"hydration": "yes"}
		if i%2 == 0 {
			h["movement"] = "walk"
		}
		if i == 9 {
			h["sleep"] = ""
		}
		entries = append(entries, day(fmt.Sprintf("2026-06-%02d", i), h))
	}

	trend := Trends(entries)
	assert.Equal(t, 9, trend.EntriesCount)
	assert.Equal(t, 1.0, trend.CompletionRate7d)
	assert.Equal(t, map[string]int{"hydration": 7, "movement": 3}, trend.HabitFrequency)

	short := Trends(entries[:3])
	assert.Equal(t, 0.43, short.CompletionRate7d)

	fc := Forecasts(trend)
	require.Len(t, fc, 2)
	assert.Equal(t, "hydration", fc[0].Habit)
	assert.Equal(t, 1.0, fc[0].Likelihood)
	assert.Equal(t, "Hydration likely to continue", fc[0].Title)
	assert.Equal(t, "Movement holding steady", fc[1].Title)
	assert.Contains(t, fc[1].Summary, "3 of the last 7")
}
