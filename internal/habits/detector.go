// Package habits turns repeated journal themes into habit suggestions and
// computes streaks, trends and forecasts over daily habit check-ins.
package habits

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/tags"
)

const (
	DefaultWindow    = 10
	DefaultThreshold = 3
)

// ErrNoPendingSuggestion is returned when accepting or dismissing a tag that
// is not the pending suggestion.
var ErrNoPendingSuggestion = errors.New("no pending habit suggestion for tag")

// Suggestion proposes tracking a recurring tag as a habit.
type Suggestion struct {
	Tag                string `json:"tag"`
	FormattedName      string `json:"formatted_name"`
	Description        string `json:"description"`
	SuggestedFrequency string `json:"suggested_frequency"`
	Occurrences        int    `json:"occurrences"`
}

// Status is the recorded state of a tag once it has been suggested.
type Status string

const (
	StatusSuggested Status = "suggested"
	StatusAccepted  Status = "accepted"
	StatusDismissed Status = "dismissed"
)

// StateStore remembers which tags were suggested and how each suggestion
// was resolved. At most one suggestion is pending at a time.
type StateStore interface {
	Pending(ctx context.Context) (Suggestion, bool, error)
	SetPending(ctx context.Context, s Suggestion) error
	Resolve(ctx context.Context, tag string, status Status) error
	Seen(ctx context.Context, tag string) (bool, error)
}

// Detector applies the repeat threshold policy over recent entries.
type Detector struct {
	registry  *tags.Registry
	state     StateStore
	templates TemplateSource
	window    int
	threshold int
	logger    *zap.Logger
}

// Config tunes a Detector. Zero values take the defaults.
type Config struct {
	Window    int
	Threshold int
	Templates TemplateSource
	Logger    *zap.Logger
}

func NewDetector(registry *tags.Registry, state StateStore, cfg Config) *Detector {
	d := &Detector{
		registry:  registry,
		state:     state,
		templates: cfg.Templates,
		window:    cfg.Window,
		threshold: cfg.Threshold,
		logger:    cfg.Logger,
	}
	if d.window <= 0 {
		d.window = DefaultWindow
	}
	if d.threshold <= 0 {
		d.threshold = DefaultThreshold
	}
	if d.templates == nil {
		d.templates = DefaultTemplates(registry)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.state == nil {
		d.state = NewMemoryState()
	}
	return d
}

// Window is the number of most recent entries counted.
func (d *Detector) Window() int { return d.window }

// Threshold is the occurrence count at which a tag qualifies.
func (d *Detector) Threshold() int { return d.threshold }

// Counts returns, per canonical tag, how many of the most recent Window
// entries mention it. Outcome tags such as "balanced" are not habits and
// are skipped.
func (d *Detector) Counts(entries []journal.Entry) map[string]int {
	recent := append([]journal.Entry(nil), entries...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > d.window {
		recent = recent[:d.window]
	}

	counts := map[string]int{}
	for _, e := range recent {
		for _, t := range journal.CanonicalTags(d.registry, e) {
			if t.Category == tags.CategoryOutcome || t.Key == tags.FallbackKey {
				continue
			}
			counts[t.Key]++
		}
	}
	return counts
}

// RepeatedTags lists tags at or above the threshold, most frequent first
// and then by key.
func (d *Detector) RepeatedTags(entries []journal.Entry) []string {
	counts := d.Counts(entries)
	var out []string
	for tag, n := range counts {
		if n >= d.threshold {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Detect returns the suggestion to surface, if any. A pending suggestion is
// returned unchanged until it is accepted or dismissed; otherwise the first
// repeated tag that was never suggested becomes the new pending suggestion.
func (d *Detector) Detect(ctx context.Context, entries []journal.Entry) (Suggestion, bool, error) {
	pending, ok, err := d.state.Pending(ctx)
	if err != nil {
		return Suggestion{}, false, fmt.Errorf("loading pending suggestion: %w", err)
	}
	if ok {
		return pending, true, nil
	}

	counts := d.Counts(entries)
	for _, tag := range d.RepeatedTags(entries) {
		seen, err := d.state.Seen(ctx, tag)
		if err != nil {
			return Suggestion{}, false, fmt.Errorf("checking suggestion state for %s: %w", tag, err)
		}
		if seen {
			continue
		}
		s := d.build(tag, counts[tag])
		if err := d.state.SetPending(ctx, s); err != nil {
			return Suggestion{}, false, fmt.Errorf("saving suggestion for %s: %w", tag, err)
		}
		d.logger.Info("habit suggestion raised", zap.String("tag", tag), zap.Int("occurrences", s.Occurrences))
		return s, true, nil
	}
	return Suggestion{}, false, nil
}

func (d *Detector) build(tag string, n int) Suggestion {
	tpl, ok := d.templates.Template(tag)
	if !ok {
		tpl = genericTemplate(d.registry, tag)
	}
	return Suggestion{
		Tag:                tag,
		FormattedName:      tpl.FormattedName,
		Description:        tpl.Description,
		SuggestedFrequency: tpl.SuggestedFrequency,
		Occurrences:        n,
	}
}

// Accept resolves the pending suggestion for tag as accepted.
func (d *Detector) Accept(ctx context.Context, tag string) error {
	return d.resolve(ctx, tag, StatusAccepted)
}

// Dismiss resolves the pending suggestion for tag as dismissed. The tag is
// never suggested again.
func (d *Detector) Dismiss(ctx context.Context, tag string) error {
	return d.resolve(ctx, tag, StatusDismissed)
}

func (d *Detector) resolve(ctx context.Context, tag string, status Status) error {
	tag = strings.TrimSpace(tag)
	if key, ok := d.registry.Resolve(tag); ok {
		tag = key
	}
	pending, ok, err := d.state.Pending(ctx)
	if err != nil {
		return fmt.Errorf("loading pending suggestion: %w", err)
	}
	if !ok || pending.Tag != tag {
		return fmt.Errorf("%w: %s", ErrNoPendingSuggestion, tag)
	}
	if err := d.state.Resolve(ctx, tag, status); err != nil {
		return fmt.Errorf("resolving suggestion %s: %w", tag, err)
	}
	d.logger.Info("habit suggestion resolved", zap.String("tag", tag), zap.String("status", string(status)))
	return nil
}
