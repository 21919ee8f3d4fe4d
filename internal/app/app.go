// Package app assembles the Starbound components over one store so the
// CLI, HTTP API and MCP server share the same wiring.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/starbound/internal/bucket"
	"github.com/hurttlocker/starbound/internal/classify"
	"github.com/hurttlocker/starbound/internal/config"
	"github.com/hurttlocker/starbound/internal/habits"
	"github.com/hurttlocker/starbound/internal/ingest"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/nudge"
	"github.com/hurttlocker/starbound/internal/search"
	"github.com/hurttlocker/starbound/internal/smarttag"
	"github.com/hurttlocker/starbound/internal/store"
	"github.com/hurttlocker/starbound/internal/tags"
)

// Options configures New. Zero values fall back to defaults.
type Options struct {
	DBPath         string
	VocabularyPath string
	HabitWindow    int
	HabitThreshold int
	Logger         *zap.Logger
}

// FromConfig maps a resolved configuration onto Options.
func FromConfig(cfg config.ResolvedConfig, logger *zap.Logger) Options {
	return Options{
		DBPath:         cfg.DBPath.Value,
		VocabularyPath: cfg.VocabularyPath.Value,
		HabitWindow:    cfg.HabitWindow.Int(config.DefaultHabitWindow),
		HabitThreshold: cfg.HabitThreshold.Int(config.DefaultHabitThreshold),
		Logger:         logger,
	}
}

// App holds every wired component.
type App struct {
	Registry *tags.Registry
	Store    *store.Store
	Tagger   *smarttag.Tagger
	Engine   *classify.Engine
	Journal  *journal.Service
	Detector *habits.Detector
	Catalog  *nudge.Catalog
	Search   *search.Engine
	Logger   *zap.Logger

	// mu serializes submissions so detection sees every saved entry.
	mu sync.Mutex
}

// New opens the store and builds every component.
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg, err := loadRegistry(opts.VocabularyPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Config{DBPath: opts.DBPath, Logger: logger.Named("store")})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	catalog, err := nudge.NewCatalog(reg, nudge.DefaultNudges)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building nudge catalog: %w", err)
	}

	tagger := smarttag.Default(reg)
	engine := classify.NewEngine(reg, classify.WithLogger(logger.Named("classify")))
	searcher := search.NewStoreEngine(st, reg, catalog,
		search.WithCache(search.DefaultCacheSize, search.DefaultCacheTTL),
		search.WithLogger(logger.Named("search")))
	a := &App{
		Registry: reg,
		Store:    st,
		Tagger:   tagger,
		Engine:   engine,
		Journal: journal.NewService(engine, st,
			journal.WithSmartTagger(tagger),
			journal.WithLogger(logger.Named("journal"))),
		Detector: habits.NewDetector(reg, st, habits.Config{
			Window:    opts.HabitWindow,
			Threshold: opts.HabitThreshold,
			Logger:    logger.Named("habits"),
		}),
		Catalog: catalog,
		Search:  searcher,
		Logger:  logger,
	}
	return a, nil
}

func loadRegistry(path string) (*tags.Registry, error) {
	if strings.TrimSpace(path) == "" {
		return tags.Default()
	}
	reg, err := tags.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary %s: %w", path, err)
	}
	return reg, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// AddResult is the outcome of submitting one journal entry.
type AddResult struct {
	Entry      journal.Entry      `json:"entry"`
	Outcome    classify.Outcome   `json:"outcome"`
	Suggestion *habits.Suggestion `json:"habit_suggestion,omitempty"`
	Nudges     []nudge.Suggestion `json:"nudges,omitempty"`
}

// AddEntry classifies and saves text, then checks the recent window for a
// habit suggestion and proposes nudges for the entry's themes. A save
// failure is returned with the unsaved entry in the result.
func (a *App) AddEntry(ctx context.Context, text string) (AddResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, outcome, err := a.Journal.Submit(ctx, text)
	res := AddResult{Entry: entry, Outcome: outcome}
	if err != nil {
		return res, err
	}
	a.Search.Invalidate()

	res.Nudges = a.Catalog.Suggest(entry.Terms(), nudge.SuggestOptions{})

	// The entry is saved by now; a detection failure must not read as a
	// failed save, or a retrying caller would store it twice.
	sg, ok, err := a.detect(ctx)
	if err != nil {
		a.Logger.Warn("habit detection failed", zap.String("entry_id", entry.ID), zap.Error(err))
		return res, nil
	}
	if ok {
		res.Suggestion = &sg
	}
	return res, nil
}

func (a *App) detect(ctx context.Context) (habits.Suggestion, bool, error) {
	recent, err := a.Journal.Recent(ctx, a.Detector.Window())
	if err != nil {
		return habits.Suggestion{}, false, fmt.Errorf("loading recent entries: %w", err)
	}
	sg, ok, err := a.Detector.Detect(ctx, recent)
	if err != nil {
		return habits.Suggestion{}, false, fmt.Errorf("detecting habits: %w", err)
	}
	return sg, ok, nil
}

// Classify runs smart tagging and classification without saving.
func (a *App) Classify(ctx context.Context, text string) classify.Outcome {
	smartTags, err := a.Tagger.Tag(ctx, text)
	if err != nil {
		a.Logger.Warn("smart tagging failed", zap.Error(err))
		smartTags = nil
	}
	return a.Engine.Classify(ctx, text, smartTags)
}

// NudgeRequest selects nudges for free text or explicit themes.
type NudgeRequest struct {
	Text    string
	Themes  []string
	Limit   int
	MaxTime string // duration phrase, bucketized
	Energy  string // energy phrase, normalized
}

// SuggestNudges ranks nudges for the request. Text is classified first and
// its themes and keywords join the explicit themes.
func (a *App) SuggestNudges(ctx context.Context, req NudgeRequest) ([]nudge.Suggestion, error) {
	terms := append([]string(nil), req.Themes...)
	if strings.TrimSpace(req.Text) != "" {
		out := a.Classify(ctx, req.Text)
		for _, r := range out.Results {
			terms = append(terms, r.Themes.Sorted()...)
			terms = append(terms, r.Keywords.Sorted()...)
		}
	}

	opts := nudge.SuggestOptions{Limit: req.Limit}
	if strings.TrimSpace(req.MaxTime) != "" {
		opts.MaxTime = bucket.BucketizeTime(req.MaxTime)
	}
	if strings.TrimSpace(req.Energy) != "" {
		opts.Energy = bucket.NormalizeEnergy(req.Energy)
	}

	banked, err := a.Store.BankedNudges(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range banked {
		opts.Exclude = append(opts.Exclude, b.Nudge.ID)
	}
	return a.Catalog.Suggest(terms, opts), nil
}

// Streaks summarizes daily habit check-ins.
func (a *App) Streaks(ctx context.Context) (habits.StreakSummary, habits.TrendSummary, error) {
	days, err := a.Store.DailyEntries(ctx, "", "")
	if err != nil {
		return habits.StreakSummary{}, habits.TrendSummary{}, err
	}
	return habits.Streaks(days, time.Now()), habits.Trends(days), nil
}

// HabitSuggestion returns the pending habit suggestion, running detection
// over the recent window when nothing is pending.
func (a *App) HabitSuggestion(ctx context.Context) (habits.Suggestion, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detect(ctx)
}

// ResolveHabit accepts or dismisses the pending suggestion for tag.
func (a *App) ResolveHabit(ctx context.Context, tag string, accept bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if accept {
		return a.Detector.Accept(ctx, tag)
	}
	return a.Detector.Dismiss(ctx, tag)
}

// DedupeReport compares the stored entries with their deduplicated view.
type DedupeReport struct {
	Scanned int             `json:"scanned"`
	Kept    []journal.Entry `json:"kept"`
}

// Dedupe scans every stored entry. Nothing is deleted.
func (a *App) Dedupe(ctx context.Context) (DedupeReport, error) {
	all, err := a.Store.RecentEntries(ctx, 0)
	if err != nil {
		return DedupeReport{}, err
	}
	return DedupeReport{Scanned: len(all), Kept: journal.Dedupe(all)}, nil
}

// Import loads journal entries from a file or a directory of notes.
func (a *App) Import(ctx context.Context, path string, opts ingest.ImportOptions) (*ingest.ImportResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := ingest.NewEngine(a.Journal, a.Logger.Named("ingest")).ImportPath(ctx, path, opts)
	if res != nil && res.EntriesNew > 0 && !opts.DryRun {
		a.Search.Invalidate()
	}
	return res, err
}
