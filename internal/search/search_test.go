package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/starbound/internal/classify"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/nudge"
	"github.com/hurttlocker/starbound/internal/store"
	"github.com/hurttlocker/starbound/internal/tags"
)

func staticSource(kind ResultType, results ...Result) SourceFunc {
	return SourceFunc{Kind: kind, Fn: func(context.Context, string, int) ([]Result, error) {
		return append([]Result(nil), results...), nil
	}}
}

func TestSelectDefaultView(t *testing.T) {
	r1 := Result{Type: TypeConversation, ID: "r1"}
	j1 := Result{Type: TypeJournalEntry, ID: "j1"}
	f1 := Result{Type: TypeForecast, ID: "f1"}

	cases := []struct {
		name string
		in   Results
		want Tab
	}{
		{
			name: "journal intent with empty journal falls through to conversations",
			in:   Results{DetectedIntent: IntentJournal, Conversations: []Result{r1}},
			want: TabConversations,
		},
		{
			name: "nothing anywhere",
			in:   Results{DetectedIntent: IntentHealthForecast},
			want: TabAll,
		},
		{
			name: "preferred tab has results",
			in:   Results{DetectedIntent: IntentHealthForecast, Forecasts: []Result{f1}, All: []Result{f1, j1}, Journal: []Result{j1}},
			want: TabForecasts,
		},
		{
			name: "unknown intent opens all",
			in:   Results{DetectedIntent: IntentUnknown, All: []Result{j1}, Journal: []Result{j1}},
			want: TabAll,
		},
		{
			name: "ask intent with only journal",
			in:   Results{DetectedIntent: IntentAskStarbound, Journal: []Result{j1}},
			want: TabJournal,
		},
		{
			name: "habits alone have no tab",
			in:   Results{DetectedIntent: IntentJournal, Habits: []Result{{Type: TypeHabitEntry, ID: "h"}}},
			want: TabAll,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SelectDefaultView(tc.in))
		})
	}
}

func TestEngine_BucketsRanksAndFuses(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	e := NewEngine([]Source{
		staticSource(TypeJournalEntry,
			Result{ID: "j-low", Score: 1, Timestamp: now},
			Result{ID: "j-high", Score: 5, Timestamp: now.Add(-time.Hour)},
		),
		staticSource(TypeConversation, Result{ID: "c1", Score: 2, Timestamp: now}),
		staticSource(TypeRecommendation, Result{ID: "n1", Score: 1}),
	})

	got, err := e.Search(context.Background(), "journal walk", Options{})
	require.NoError(t, err)

	assert.Equal(t, IntentJournal, got.DetectedIntent)
	assert.Equal(t, []string{"j-high", "j-low"}, ids(got.Journal))
	assert.Equal(t, TypeJournalEntry, got.Journal[0].Type, "missing type is filled from the source")
	assert.Len(t, got.Conversations, 1)
	assert.Len(t, got.Recommendations, 1)
	assert.Equal(t, 4, got.TotalResults)
	require.Len(t, got.All, 4)
	assert.Equal(t, "j-high", got.All[0].ID, "preferred bucket leads")
	assert.Equal(t, TabJournal, SelectDefaultView(got))
}

func TestEngine_IntentOverride(t *testing.T) {
	e := NewEngine([]Source{staticSource(TypeForecast, Result{ID: "f1"})})
	got, err := e.Search(context.Background(), "journal", Options{Intent: IntentHealthForecast})
	require.NoError(t, err)
	assert.Equal(t, IntentHealthForecast, got.DetectedIntent)
	assert.Equal(t, TabForecasts, SelectDefaultView(got))
}

func TestEngine_FailingSourceIsSkipped(t *testing.T) {
	e := NewEngine([]Source{
		SourceFunc{Kind: TypeJournalEntry, Fn: func(context.Context, string, int) ([]Result, error) {
			return nil, errors.New("disk on fire")
		}},
		staticSource(TypeConversation, Result{ID: "c1"}),
	})
	got, err := e.Search(context.Background(), "journal sleep", Options{})
	require.NoError(t, err)
	assert.Empty(t, got.Journal)
	assert.Equal(t, []string{"c1"}, ids(got.Conversations))
	assert.Equal(t, TabConversations, SelectDefaultView(got))
}

func TestEngine_ClassifierErrorMeansUnknown(t *testing.T) {
	e := NewEngine(nil, WithClassifier(failingClassifier{}))
	got, err := e.Search(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, got.DetectedIntent)
	assert.Equal(t, TabAll, SelectDefaultView(got))
}

func TestEngine_CancelledContext(t *testing.T) {
	e := NewEngine([]Source{SourceFunc{Kind: TypeJournalEntry, Fn: func(ctx context.Context, _ string, _ int) ([]Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Search(ctx, "walk", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_LimitCapsEachBucket(t *testing.T) {
	var rs []Result
	for _, id := range []string{"a", "b", "c", "d"} {
		rs = append(rs, Result{ID: id})
	}
	e := NewEngine([]Source{staticSource(TypeJournalEntry, rs...), staticSource(TypeConversation, rs...)})
	got, err := e.Search(context.Background(), "walk", Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got.Journal, 2)
	assert.Len(t, got.Conversations, 2)
	assert.Len(t, got.All, 2)
	assert.Equal(t, 4, got.TotalResults)
}

func TestEngine_EmptyQuery(t *testing.T) {
	var calls atomic.Int32
	e := NewEngine([]Source{SourceFunc{Kind: TypeJournalEntry, Fn: func(context.Context, string, int) ([]Result, error) {
		calls.Add(1)
		return nil, nil
	}}})
	got, err := e.Search(context.Background(), "  ", Options{})
	require.NoError(t, err)
	assert.Zero(t, got.TotalResults)
	assert.Zero(t, calls.Load())
	assert.Equal(t, TabAll, SelectDefaultView(got))
}

func TestEngine_CacheAndInvalidate(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc{Kind: TypeJournalEntry, Fn: func(context.Context, string, int) ([]Result, error) {
		calls.Add(1)
		return []Result{{ID: "j1"}}, nil
	}}
	e := NewEngine([]Source{src}, WithCache(10, time.Minute))
	ctx := context.Background()

	_, err := e.Search(ctx, "Walk", Options{})
	require.NoError(t, err)
	_, err = e.Search(ctx, " walk ", Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load(), "normalized query hits the cache")

	_, err = e.Search(ctx, "walk", Options{Intent: IntentJournal})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "intent override is part of the key")

	e.Invalidate()
	_, err = e.Search(ctx, "walk", Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestResultCache_EvictsOldestAndExpires(t *testing.T) {
	c := newResultCache(2, time.Minute)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.put("a", Results{TotalResults: 1})
	c.put("b", Results{TotalResults: 2})
	c.put("c", Results{TotalResults: 3})
	_, ok := c.get("a")
	assert.False(t, ok)
	got, ok := c.get("c")
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalResults)

	now = now.Add(2 * time.Minute)
	_, ok = c.get("b")
	assert.False(t, ok)
}

func TestResultCache_ExpiredKeysLeaveOrder(t *testing.T) {
	c := newResultCache(10, time.Minute)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		c.put("q", Results{TotalResults: i})
		now = now.Add(2 * time.Minute)
		_, ok := c.get("q")
		require.False(t, ok)
	}
	entries, order := c.size()
	assert.Zero(t, entries)
	assert.Zero(t, order)

	// a re-put key must not cost a live neighbour its slot
	c = newResultCache(2, time.Minute)
	c.now = func() time.Time { return now }
	c.put("a", Results{TotalResults: 1})
	c.put("b", Results{TotalResults: 2})
	c.put("a", Results{TotalResults: 3})
	c.put("c", Results{TotalResults: 4})
	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalResults)
	_, ok = c.get("b")
	assert.False(t, ok)
	entries, order = c.size()
	assert.Equal(t, 2, entries)
	assert.Equal(t, 2, order)
}

func TestStoreEngine_EndToEnd(t *testing.T) {
	st, err := store.Open(store.Config{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()
	reg := tags.MustDefault()

	svc := journal.NewService(classify.NewEngine(reg), st)
	_, _, err = svc.Submit(ctx, "Slept badly and skipped breakfast")
	require.NoError(t, err)
	_, err = st.AddConversation(ctx, store.Conversation{UserID: "u1", Question: "Why do I sleep badly?", Answer: "Screens late at night can keep you up."})
	require.NoError(t, err)
	_, err = st.SetHabit(ctx, "2026-03-14", "sleep", "7h")
	require.NoError(t, err)

	e := NewStoreEngine(st, reg, nudge.DefaultCatalog(reg))

	got, err := e.Search(ctx, "sleep", Options{})
	require.NoError(t, err)
	assert.Len(t, got.Journal, 1)
	assert.Len(t, got.Conversations, 1)
	assert.Len(t, got.Habits, 1)
	assert.Len(t, got.Forecasts, 1)
	assert.NotEmpty(t, got.Recommendations)
	for _, r := range got.Recommendations {
		assert.Equal(t, "sleep", r.Metadata["theme"])
	}

	got, err = e.Search(ctx, "how do I sleep better?", Options{})
	require.NoError(t, err)
	assert.Equal(t, IntentAskStarbound, got.DetectedIntent)
	assert.Equal(t, TabConversations, SelectDefaultView(got))
}
