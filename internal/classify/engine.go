package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hurttlocker/starbound/internal/sentiment"
	"github.com/hurttlocker/starbound/internal/tags"
)

// Basic classification constants.
const (
	BasicHabitKey      = "reflection"
	BasicHabitValue    = "journaled"
	BasicCategoryTitle = "Personal Reflection"
	BasicConfidence    = 0.6
)

// Fallback reasons.
const (
	ReasonNoSmartTags   = "no smart tags"
	ReasonNotReady      = "classifier not ready"
	ReasonFusionFailed  = "smart tag fusion failed"
	ReasonAITagsFailed  = "ai tag generation failed"
	ReasonPanicRecovery = "recovered from panic"
)

// Readiness reports whether the classification backend can be used.
type Readiness interface {
	Ready() bool
}

// ReadinessFunc adapts a function to Readiness.
type ReadinessFunc func() bool

func (f ReadinessFunc) Ready() bool { return f() }

// Engine classifies journal text. It is safe for concurrent use.
type Engine struct {
	registry  *tags.Registry
	logger    *zap.Logger
	ready     Readiness
	keywords  sentiment.KeywordStrategy
	rules     []compiledRule
	maxAITags int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithReadiness sets the readiness check.
func WithReadiness(r Readiness) Option {
	return func(e *Engine) { e.ready = r }
}

// WithKeywordStrategy replaces the default first-three keyword extractor.
func WithKeywordStrategy(s sentiment.KeywordStrategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.keywords = s
		}
	}
}

// WithContentRules replaces the AI tag keyword families.
func WithContentRules(rules []ContentRule) Option {
	return func(e *Engine) { e.rules = compileRules(rules) }
}

// WithMaxAITags caps AI tag generation.
func WithMaxAITags(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAITags = n
		}
	}
}

// NewEngine builds an engine resolving themes against registry.
func NewEngine(registry *tags.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		logger:    zap.NewNop(),
		keywords:  sentiment.FirstN{N: sentiment.MaxKeywords},
		rules:     compileRules(DefaultContentRules),
		maxAITags: MaxAITags,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify interprets raw journal text. It never returns an error: every
// failure degrades to a Fallback outcome holding the basic classification.
func (e *Engine) Classify(ctx context.Context, raw string, smartTags []SmartTag) (out Outcome) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return success(nil)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("classification panicked, using basic classification",
				zap.Any("panic", r), zap.Int("text_len", len(text)))
			res := e.basicWithKeywords(text, sentiment.ExtractKeywords(text))
			out = fallback([]ClassificationResult{res}, fmt.Sprintf("%s: %v", ReasonPanicRecovery, r))
		}
	}()

	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return e.degrade(text, fmt.Sprintf("context: %v", err))
		}
	}

	if e.ready != nil && !e.ready.Ready() {
		return e.degrade(text, ReasonNotReady)
	}
	if len(smartTags) == 0 {
		return e.degrade(text, ReasonNoSmartTags)
	}

	fused, err := e.fuse(text, smartTags)
	if err != nil {
		e.logger.Warn("smart tag fusion failed", zap.Error(err), zap.Int("tags", len(smartTags)))
		return e.degrade(text, fmt.Sprintf("%s: %v", ReasonFusionFailed, err))
	}
	return success([]ClassificationResult{e.enhance(fused)})
}

// degrade builds the basic classification, enhanced with AI tags when that
// succeeds, and wraps it as a Fallback outcome.
func (e *Engine) degrade(text, reason string) Outcome {
	e.logger.Debug("using basic classification", zap.String("reason", reason))
	return fallback([]ClassificationResult{e.enhance(e.basic(text))}, reason)
}

// basic is the classification used whenever nothing better is available.
func (e *Engine) basic(text string) ClassificationResult {
	return e.basicWithKeywords(text, e.keywords.Keywords(text))
}

func (e *Engine) basicWithKeywords(text string, keywords []string) ClassificationResult {
	sent := sentiment.DetectSentiment(text)
	return ClassificationResult{
		HabitKey:      BasicHabitKey,
		HabitValue:    BasicHabitValue,
		CategoryTitle: BasicCategoryTitle,
		CategoryType:  tags.CategoryOutcome,
		Confidence:    BasicConfidence,
		Reasoning:     "Basic classification of a personal reflection",
		ExtractedText: text,
		Sentiment:     sent,
		Themes:        NewStringSet("personal_reflection", "daily_check_in", string(sent)),
		Keywords:      NewStringSet(keywords...),
		Metadata:      ResultMetadata{Source: SourceFallback},
	}
}

var errNoCanonicalKey = errors.New("smart tag without canonical key")

// fuse folds all smart tags into one result led by the primary tag.
func (e *Engine) fuse(text string, smartTags []SmartTag) (ClassificationResult, error) {
	for i, t := range smartTags {
		if strings.TrimSpace(t.CanonicalKey) == "" {
			return ClassificationResult{}, fmt.Errorf("tag %d: %w", i, errNoCanonicalKey)
		}
	}

	primary := smartTags[0]
	for _, t := range smartTags[1:] {
		if t.Confidence > primary.Confidence ||
			(t.Confidence == primary.Confidence && t.CreatedAt.After(primary.CreatedAt)) {
			primary = t
		}
	}

	themes := NewStringSet()
	keywords := NewStringSet()
	var anyPositive, anyNegative bool
	for _, t := range smartTags {
		themes.Add(strings.ReplaceAll(strings.TrimSpace(t.CanonicalKey), "_", " "))
		for _, kw := range t.Keywords {
			keywords.Add(strings.ToLower(strings.TrimSpace(kw)))
		}
		anyPositive = anyPositive || t.IsPositive
		anyNegative = anyNegative || t.IsNegative
	}
	if keywords.Len() == 0 {
		keywords.Add(e.keywords.Keywords(text)...)
	}

	sent := sentiment.Neutral
	switch {
	case anyPositive:
		sent = sentiment.Positive
	case anyNegative:
		sent = sentiment.Negative
	}

	category := primary.Category
	if !category.Valid() {
		category = e.registry.Lookup(e.resolveKey(primary.CanonicalKey)).Category
	}
	if !category.Valid() {
		category = tags.CategoryOutcome
	}

	title := strings.TrimSpace(primary.DisplayName)
	if title == "" {
		title = e.registry.DisplayName(e.resolveKey(primary.CanonicalKey))
	}

	return ClassificationResult{
		HabitKey:      primary.CanonicalKey,
		HabitValue:    "detected",
		CategoryTitle: title,
		CategoryType:  category,
		Confidence:    Clamp(primary.Confidence),
		Reasoning: fmt.Sprintf("Smart tag fusion: primary %q (%.2f) from %d tag(s)",
			primary.CanonicalKey, Clamp(primary.Confidence), len(smartTags)),
		ExtractedText: text,
		Sentiment:     sent,
		Themes:        themes,
		Keywords:      keywords,
		Metadata: ResultMetadata{
			Source:     SourceSmartTags,
			PrimaryTag: primary.CanonicalKey,
			TagCount:   len(smartTags),
		},
	}, nil
}

func (e *Engine) resolveKey(raw string) string {
	key, _ := e.registry.Resolve(raw)
	return key
}

// hasDomainTheme reports whether any theme resolves to a tag carrying a
// subdomain, i.e. something more specific than a generic outcome.
func (e *Engine) hasDomainTheme(themes StringSet) bool {
	for theme := range themes {
		key, ok := e.registry.Resolve(theme)
		if ok && e.registry.Subdomain(key) != "" {
			return true
		}
	}
	return false
}

// enhance adds AI tags to a result that has no domain specific theme. A
// failure while generating tags leaves the result untouched.
func (e *Engine) enhance(r ClassificationResult) (out ClassificationResult) {
	if e.hasDomainTheme(r.Themes) {
		return r
	}

	out = r
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn(ReasonAITagsFailed, zap.Any("panic", rec))
			out = r
		}
	}()

	matches := generateAITags(r.ExtractedText, e.rules, e.maxAITags)
	aiThemes := NewStringSet()
	aiKeywords := NewStringSet()
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		aiThemes.Add(m.Tag)
		aiKeywords.Add(m.Matched...)
		names = append(names, m.Tag)
	}

	out.Themes = r.Themes.Union(aiThemes)
	out.Keywords = r.Keywords.Union(aiKeywords)
	out.Reasoning = r.Reasoning + " | AI tags: " + strings.Join(names, ", ")
	out.Metadata.AITags = names
	return out
}

// ResolvedThemes maps a result's themes onto canonical tag keys, sorted and
// deduplicated. Unresolvable themes are dropped.
func (e *Engine) ResolvedThemes(r ClassificationResult) []string {
	seen := map[string]bool{}
	var out []string
	for theme := range r.Themes {
		if key, ok := e.registry.Resolve(theme); ok && !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Registry returns the vocabulary the engine resolves against.
func (e *Engine) Registry() *tags.Registry { return e.registry }
