package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the per-bucket result cap when Options.Limit is unset.
const DefaultLimit = 20

// Source searches one kind of content.
type Source interface {
	Type() ResultType
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Options configures a single query.
type Options struct {
	Limit  int    // per bucket; 0 means DefaultLimit
	Intent Intent // overrides classification when set and not IntentUnknown
}

// Engine aggregates results from every registered Source.
type Engine struct {
	sources    []Source
	classifier IntentClassifier
	rrf        RRFConfig
	cache      *resultCache
	logger     *zap.Logger
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClassifier swaps the intent classifier.
func WithClassifier(c IntentClassifier) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithRRF sets the fusion parameters for the All bucket.
func WithRRF(cfg RRFConfig) EngineOption {
	return func(e *Engine) { e.rrf = normalizeRRFConfig(cfg) }
}

// WithCache enables result caching. size <= 0 disables it.
func WithCache(size int, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if size <= 0 {
			e.cache = nil
			return
		}
		e.cache = newResultCache(size, ttl)
	}
}

// NewEngine creates an engine over sources. Nil sources are ignored.
func NewEngine(sources []Source, opts ...EngineOption) *Engine {
	e := &Engine{
		classifier: HeuristicClassifier{},
		rrf:        DefaultRRFConfig(),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, s := range sources {
		if s != nil {
			e.sources = append(e.sources, s)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invalidate drops cached answers. Call it after content changes.
func (e *Engine) Invalidate() {
	if e.cache != nil {
		e.cache.reset()
	}
}

// Search classifies query, queries every source concurrently and builds
// the bucketed Results. A failing source is logged and contributes
// nothing; Search only fails when ctx is done.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (Results, error) {
	start := e.now()
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	var key string
	if e.cache != nil {
		key = cacheKey(query, opts)
		if cached, ok := e.cache.get(key); ok {
			return cached, nil
		}
	}

	intent := opts.Intent
	if intent == "" || intent == IntentUnknown {
		detected, err := e.classifier.ClassifyIntent(ctx, query)
		if err != nil {
			e.logger.Warn("intent classification failed", zap.String("query", query), zap.Error(err))
			detected = IntentUnknown
		}
		intent = detected
	}

	out := Results{DetectedIntent: intent}
	if strings.TrimSpace(query) == "" {
		out.SearchTime = e.now().Sub(start)
		return out, nil
	}

	found := make([][]Result, len(e.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range e.sources {
		g.Go(func() error {
			res, err := src.Search(gctx, query, opts.Limit)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("search source failed",
					zap.String("type", string(src.Type())),
					zap.Error(err))
				return nil
			}
			found[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Results{}, fmt.Errorf("searching %q: %w", query, err)
	}

	for i, src := range e.sources {
		dst := out.bucket(src.Type())
		if dst == nil {
			e.logger.Warn("search source has unknown type", zap.String("type", string(src.Type())))
			continue
		}
		for _, r := range found[i] {
			if r.Type == "" {
				r.Type = src.Type()
			}
			*dst = append(*dst, r)
		}
	}

	buckets := [][]Result{}
	for _, t := range []ResultType{TypeJournalEntry, TypeConversation, TypeHabitEntry, TypeForecast, TypeRecommendation} {
		b := out.bucket(t)
		rankBucket(*b)
		if len(*b) > opts.Limit {
			*b = (*b)[:opts.Limit]
		}
		out.TotalResults += len(*b)
		buckets = append(buckets, *b)
	}
	out.All = fuseBucketsWithLimit(buckets, preferredType(intent), opts.Limit, e.rrf)
	out.SearchTime = e.now().Sub(start)

	e.logger.Debug("search complete",
		zap.String("query", query),
		zap.String("intent", string(intent)),
		zap.Int("total", out.TotalResults),
		zap.Duration("took", out.SearchTime))

	if e.cache != nil {
		e.cache.put(key, out)
	}
	return out, nil
}
