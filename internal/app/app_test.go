package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/starbound/internal/habits"
	"github.com/hurttlocker/starbound/internal/ingest"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/nudge"
	"github.com/hurttlocker/starbound/internal/search"
	"github.com/hurttlocker/starbound/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(Options{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_BadVocabulary(t *testing.T) {
	_, err := New(Options{DBPath: ":memory:", VocabularyPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading vocabulary")
}

func TestAddEntry(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	res, err := a.AddEntry(ctx, "Slept badly and feel exhausted")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Entry.ID)
	assert.Equal(t, journal.SourceJournal, res.Entry.Metadata.Source)
	assert.NotEmpty(t, res.Outcome.Results)
	assert.Nil(t, res.Suggestion)

	_, err = a.AddEntry(ctx, "   ")
	assert.ErrorIs(t, err, journal.ErrEmptyText)
}

func TestHabitSuggestionLifecycle(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, ok, err := a.HabitSuggestion(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	var last AddResult
	for _, text := range []string{
		"Went for a walk before work",
		"Evening walk with the dog",
		"Long walk by the river after dinner",
	} {
		last, err = a.AddEntry(ctx, text)
		require.NoError(t, err)
	}
	require.NotNil(t, last.Suggestion)

	sg, ok, err := a.HabitSuggestion(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, last.Suggestion.Tag, sg.Tag)

	require.NoError(t, a.ResolveHabit(ctx, sg.Tag, false))
	assert.ErrorIs(t, a.ResolveHabit(ctx, sg.Tag, true), habits.ErrNoPendingSuggestion)
}

func TestDedupe_KeepsFirstOfDuplicates(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	for _, text := range []string{"Went for a walk at lunch", "went for a walk at lunch ", "Drank more water today"} {
		_, err := a.AddEntry(ctx, text)
		require.NoError(t, err)
	}

	rep, err := a.Dedupe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Scanned)
	assert.Len(t, rep.Kept, 2)

	stats, err := a.Store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Entries)
}

func TestImport(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-03-14.md"),
		[]byte("# Saturday\n\n- Walked to the park\n- Read before bed\n\n12:30\n"), 0o600))

	res, err := a.Import(ctx, dir, ingest.ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.EntriesNew)
	assert.Equal(t, 1, res.EntriesNoise)

	stats, err := a.Store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)

	res, err = a.Import(ctx, dir, ingest.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.EntriesNew)
	assert.Empty(t, res.Errors)

	entries, err := a.Store.RecentEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, e := range entries {
		assert.Equal(t, ingest.SourceImport, e.Metadata.Source)
		assert.False(t, e.Timestamp.Before(day))
	}
	assert.Equal(t, "Read before bed", entries[0].OriginalText)
}

type brokenState struct{}

func (brokenState) Pending(context.Context) (habits.Suggestion, bool, error) {
	return habits.Suggestion{}, false, errors.New("state unavailable")
}
func (brokenState) SetPending(context.Context, habits.Suggestion) error { return nil }
func (brokenState) Resolve(context.Context, string, habits.Status) error { return nil }
func (brokenState) Seen(context.Context, string) (bool, error) { return false, nil }

func TestAddEntry_DetectionFailureKeepsSavedEntry(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	a.Detector = habits.NewDetector(a.Registry, brokenState{}, habits.Config{})

	res, err := a.AddEntry(ctx, "Went for a walk at lunch")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Entry.ID)
	assert.Nil(t, res.Suggestion)

	got, err := a.Entry(ctx, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Went for a walk at lunch", got.OriginalText)

	_, _, err = a.HabitSuggestion(ctx)
	assert.Error(t, err)
}

func TestSearchCacheInvalidatedByWrites(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	got, err := a.Search.Search(ctx, "sleep", search.Options{Intent: search.IntentJournal})
	require.NoError(t, err)
	assert.Empty(t, got.Journal)
	assert.Empty(t, got.Conversations)

	res, err := a.AddEntry(ctx, "Could not sleep again")
	require.NoError(t, err)
	got, err = a.Search.Search(ctx, "sleep", search.Options{Intent: search.IntentJournal})
	require.NoError(t, err)
	assert.Len(t, got.Journal, 1)

	_, err = a.RecordConversation(ctx, "", "How can I sleep better?", "Keep a regular bedtime.")
	require.NoError(t, err)
	got, err = a.Search.Search(ctx, "sleep", search.Options{Intent: search.IntentJournal})
	require.NoError(t, err)
	assert.Len(t, got.Conversations, 1)

	require.NoError(t, a.DeleteEntry(ctx, res.Entry.ID))
	got, err = a.Search.Search(ctx, "sleep", search.Options{Intent: search.IntentJournal})
	require.NoError(t, err)
	assert.Empty(t, got.Journal)

	assert.ErrorIs(t, a.DeleteEntry(ctx, res.Entry.ID), store.ErrNotFound)
	_, err = a.Entry(ctx, res.Entry.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConversations(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.RecordConversation(ctx, "", "  ", "")
	assert.ErrorIs(t, err, store.ErrEmptyQuestion)

	c, err := a.RecordConversation(ctx, " ", "What is bulk billing?", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserID, c.UserID)
	_, err = a.RecordConversation(ctx, "sam", "How do I access telehealth?", "Ask your GP.")
	require.NoError(t, err)

	history, err := a.Conversations(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "What is bulk billing?", history[0].Question)

	history, err = a.Conversations(ctx, "sam", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Ask your GP.", history[0].Answer)
}

func TestBankingAndHabitStatus(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.BankNudge(ctx, 999)
	assert.ErrorIs(t, err, nudge.ErrUnknownNudge)

	banked, err := a.BankNudge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, banked.Nudge.ID)
	require.NoError(t, a.UnbankNudge(ctx, 1))
	assert.ErrorIs(t, a.UnbankNudge(ctx, 1), store.ErrNotFound)

	_, err = a.CheckIn(ctx, "2026-03-14", "sleep", "7h")
	require.NoError(t, err)
	_, err = a.CheckIn(ctx, "14/03/2026", "sleep", "7h")
	assert.Error(t, err)

	_, _, err = a.HabitStatus(ctx, "movement")
	assert.ErrorIs(t, err, store.ErrNotFound)

	for _, text := range []string{
		"Went for a walk before work",
		"Evening walk with the dog",
		"Long walk by the river after dinner",
	} {
		_, err = a.AddEntry(ctx, text)
		require.NoError(t, err)
	}
	sg, ok, err := a.HabitSuggestion(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	tag, status, err := a.HabitStatus(ctx, sg.Tag)
	require.NoError(t, err)
	assert.Equal(t, sg.Tag, tag)
	assert.Equal(t, habits.StatusSuggested, status)

	require.NoError(t, a.ResolveHabit(ctx, sg.Tag, true))
	_, status, err = a.HabitStatus(ctx, sg.Tag)
	require.NoError(t, err)
	assert.Equal(t, habits.StatusAccepted, status)

	require.NoError(t, a.Vacuum(ctx))
}
