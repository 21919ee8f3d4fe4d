package classify

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/starbound/internal/sentiment"
	"github.com/hurttlocker/starbound/internal/tags"
)

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(tags.MustDefault(), opts...)
}

func TestClassify_EmptyTextShortCircuits(t *testing.T) {
	e := newTestEngine()
	for _, text := range []string{"", "   ", "\n\t"} {
		out := e.Classify(context.Background(), text, nil)
		assert.Equal(t, KindSuccess, out.Kind)
		assert.Empty(t, out.Results)
	}
}

func TestClassify_GuiltyAboutSnacking(t *testing.T) {
	e := newTestEngine()
	out := e.Classify(context.Background(), "I barely did any exercise today, feeling guilty about snacking.", nil)

	require.True(t, out.IsFallback())
	assert.Equal(t, ReasonNoSmartTags, out.Reason)
	assert.Equal(t, StateClassifiedWithFallback, out.State())
	require.Len(t, out.Results, 1)

	r := out.Results[0]
	assert.Equal(t, BasicHabitKey, r.HabitKey)
	assert.Equal(t, BasicCategoryTitle, r.CategoryTitle)
	assert.Equal(t, BasicConfidence, r.Confidence)
	assert.Equal(t, sentiment.Negative, r.Sentiment)
	assert.True(t, r.Themes.Has("personal_reflection"))
	assert.True(t, r.Themes.Has("daily_check_in"))
	assert.True(t, r.Themes.Has("negative"))
	assert.True(t, r.Themes.Has("physical_activity"))
	assert.True(t, r.Themes.Has("nutrition"))
	assert.Contains(t, r.Reasoning, "AI tags:")
	assert.Equal(t, []string{"negative", "physical_activity", "nutrition"}, r.Metadata.AITags)

	resolved := e.ResolvedThemes(r)
	assert.Contains(t, resolved, "movement")
	assert.Contains(t, resolved, "nutrition")
}

func TestClassify_NoRuleFiresUsesDefaultAITags(t *testing.T) {
	e := newTestEngine()
	out := e.Classify(context.Background(), "Wrote three lines before midnight.", nil)
	require.Len(t, out.Results, 1)

	r := out.Results[0]
	for _, tag := range DefaultAITags {
		assert.True(t, r.Themes.Has(tag), "missing default tag %s", tag)
	}
	assert.Equal(t, sentiment.Neutral, r.Sentiment)
}

func TestClassify_AITagsCapped(t *testing.T) {
	e := newTestEngine()
	text := "happy but guilty and anxious, tired after work, friends came, went to the gym, ate lunch, slept, stayed home, walked in the park"
	out := e.Classify(context.Background(), text, nil)
	require.Len(t, out.Results, 1)
	assert.Len(t, out.Results[0].Metadata.AITags, MaxAITags)
}

func TestClassify_SmartTagFusion(t *testing.T) {
	e := newTestEngine()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	smart := []SmartTag{
		{CanonicalKey: "nutrition", DisplayName: "Nutrition", Category: tags.CategoryChoice, Confidence: 0.7, Keywords: []string{"Snacking"}, IsNegative: true, CreatedAt: base},
		{CanonicalKey: "physical_activity", DisplayName: "Physical Activity", Category: tags.CategoryChoice, Confidence: 0.9, Keywords: []string{"exercise"}, CreatedAt: base},
	}

	out := e.Classify(context.Background(), "I barely did any exercise today, feeling guilty about snacking.", smart)
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, StateClassified, out.State())
	require.Len(t, out.Results, 1)

	r := out.Results[0]
	assert.Equal(t, "physical_activity", r.HabitKey)
	assert.Equal(t, "Physical Activity", r.CategoryTitle)
	assert.Equal(t, tags.CategoryChoice, r.CategoryType)
	assert.InDelta(t, 0.9, r.Confidence, 1e-9)
	assert.Equal(t, sentiment.Negative, r.Sentiment)
	assert.Equal(t, []string{"nutrition", "physical activity"}, r.Themes.Sorted())
	assert.Equal(t, []string{"exercise", "snacking"}, r.Keywords.Sorted())
	assert.Contains(t, r.Reasoning, "physical_activity")
	assert.Contains(t, r.Reasoning, "2 tag(s)")
	assert.Equal(t, 2, r.Metadata.TagCount)
	assert.Empty(t, r.Metadata.AITags, "domain themes present, no enhancement")
}

func TestClassify_PrimaryTieGoesToLatest(t *testing.T) {
	e := newTestEngine()
	early := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	smart := []SmartTag{
		{CanonicalKey: "sleep", Category: tags.CategoryChoice, Confidence: 0.8, CreatedAt: early.Add(time.Minute)},
		{CanonicalKey: "hydration", Category: tags.CategoryChoice, Confidence: 0.8, CreatedAt: early},
	}
	out := e.Classify(context.Background(), "water and bed", smart)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "sleep", out.Results[0].HabitKey)
	assert.Equal(t, "Sleep", out.Results[0].CategoryTitle, "display name falls back to registry")
}

func TestClassify_PositiveWinsOverNegative(t *testing.T) {
	e := newTestEngine()
	smart := []SmartTag{
		{CanonicalKey: "mood", Confidence: 0.5, IsNegative: true},
		{CanonicalKey: "social", Confidence: 0.4, IsPositive: true},
	}
	out := e.Classify(context.Background(), "mixed day", smart)
	require.Len(t, out.Results, 1)
	assert.Equal(t, sentiment.Positive, out.Results[0].Sentiment)
}

func TestClassify_FusionKeywordsFallBackToExtraction(t *testing.T) {
	e := newTestEngine()
	smart := []SmartTag{{CanonicalKey: "hydration", Category: tags.CategoryChoice, Confidence: 0.6}}
	out := e.Classify(context.Background(), "Drank plenty of water this morning", smart)
	require.Len(t, out.Results, 1)
	assert.Equal(t, []string{"drank", "plenty", "water"}, out.Results[0].Keywords.Sorted())
}

func TestClassify_ConfidenceClamped(t *testing.T) {
	e := newTestEngine()
	for _, c := range []float64{-3, 1.7, math.NaN()} {
		smart := []SmartTag{{CanonicalKey: "sleep", Category: tags.CategoryChoice, Confidence: c}}
		out := e.Classify(context.Background(), "slept", smart)
		require.Len(t, out.Results, 1)
		got := out.Results[0].Confidence
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestClassify_FusionFailureFallsBack(t *testing.T) {
	e := newTestEngine()
	out := e.Classify(context.Background(), "had a great nap", []SmartTag{{CanonicalKey: "  ", Confidence: 0.9}})
	require.True(t, out.IsFallback())
	assert.True(t, strings.HasPrefix(out.Reason, ReasonFusionFailed))
	require.Len(t, out.Results, 1)
	assert.Equal(t, BasicHabitKey, out.Results[0].HabitKey)
	assert.Equal(t, sentiment.Positive, out.Results[0].Sentiment)
}

func TestClassify_NotReady(t *testing.T) {
	e := newTestEngine(WithReadiness(ReadinessFunc(func() bool { return false })))
	smart := []SmartTag{{CanonicalKey: "sleep", Confidence: 0.9}}
	out := e.Classify(context.Background(), "slept well", smart)
	require.True(t, out.IsFallback())
	assert.Equal(t, ReasonNotReady, out.Reason)
	assert.Equal(t, BasicHabitKey, out.Results[0].HabitKey)
}

func TestClassify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := newTestEngine().Classify(ctx, "slept well", []SmartTag{{CanonicalKey: "sleep", Confidence: 0.9}})
	require.True(t, out.IsFallback())
	require.Len(t, out.Results, 1)
}

type panickyStrategy struct{}

func (panickyStrategy) Keywords(string) []string { panic("boom") }

func TestClassify_PanicRecovered(t *testing.T) {
	e := newTestEngine(WithKeywordStrategy(panickyStrategy{}))

	var out Outcome
	require.NotPanics(t, func() {
		out = e.Classify(context.Background(), "anything at all", nil)
	})
	require.True(t, out.IsFallback())
	assert.True(t, strings.HasPrefix(out.Reason, ReasonPanicRecovery))
	require.Len(t, out.Results, 1)
	assert.Equal(t, []string{"anything"}, out.Results[0].Keywords.Sorted())
}

func TestClassify_AITagPanicKeepsBasic(t *testing.T) {
	e := newTestEngine()
	// A pattern without a compiled matcher panics on the first scan.
	e.rules = []compiledRule{{
		ContentRule: ContentRule{Tag: "broken"},
		patterns:    []keywordPattern{{keyword: "a"}},
	}}

	out := e.Classify(context.Background(), "a b", nil)
	require.Len(t, out.Results, 1)
	r := out.Results[0]
	assert.Equal(t, BasicHabitKey, r.HabitKey)
	assert.Empty(t, r.Metadata.AITags)
	assert.NotContains(t, r.Reasoning, "AI tags")
}

func TestClassify_LongAndUnicodeInput(t *testing.T) {
	e := newTestEngine()
	long := strings.Repeat("Ich fühle mich ruhig und dankbar 🌿 ", 2000)
	out := e.Classify(context.Background(), long, nil)
	require.Len(t, out.Results, 1)
	assert.LessOrEqual(t, out.Results[0].Keywords.Len(), sentiment.MaxKeywords+MaxAITags*4)
}

func TestCustomContentRules(t *testing.T) {
	e := newTestEngine(WithContentRules([]ContentRule{
		{Family: "activity", Tag: "hydration", Keywords: []string{"water", "tea"}, MinHits: 2},
	}))

	one := e.Classify(context.Background(), "just water", nil).Results[0]
	assert.False(t, one.Themes.Has("hydration"))

	two := e.Classify(context.Background(), "water then tea", nil).Results[0]
	assert.True(t, two.Themes.Has("hydration"))
	assert.True(t, two.Keywords.Has("tea"))
}

func TestCustomContentRules_BlankKeywordsSkipped(t *testing.T) {
	e := newTestEngine(WithContentRules([]ContentRule{
		{Family: "activity", Tag: "hydration", Keywords: []string{"", "  ", " Tea "}},
	}))

	r := e.Classify(context.Background(), "a cup of tea", nil).Results[0]
	require.True(t, r.Themes.Has("hydration"))
	assert.True(t, r.Keywords.Has("tea"))
	assert.False(t, r.Keywords.Has(""))

	rules := compileRules([]ContentRule{{Tag: "hydration", Keywords: []string{"", "tea"}}})
	require.Len(t, rules[0].patterns, 1)
	assert.Equal(t, "tea", rules[0].patterns[0].keyword)
}

func TestStringSetJSON(t *testing.T) {
	s := NewStringSet("b", "a", "", "b")
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var back StringSet
	require.NoError(t, json.Unmarshal([]byte(`["z","y","z"]`), &back))
	assert.Equal(t, []string{"y", "z"}, back.Sorted())
}

func TestAverageConfidence(t *testing.T) {
	assert.Equal(t, 0.0, AverageConfidence(nil))
	got := AverageConfidence([]ClassificationResult{{Confidence: 0.4}, {Confidence: 0.8}})
	assert.InDelta(t, 0.6, got, 1e-9)

	entry := NewSmartJournalEntry("x", time.Now(), []SmartTag{{Confidence: 1}, {Confidence: 0.5}})
	assert.InDelta(t, 0.75, entry.AverageConfidence, 1e-9)
}
