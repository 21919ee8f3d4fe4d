package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/starbound/internal/classify"
)

// ErrEmptyText is returned by Submit for blank input. No entry is created.
var ErrEmptyText = errors.New("journal entry text is empty")

// PersistenceError reports a failed save. The entry it carries is complete
// and can be saved again by the caller.
type PersistenceError struct {
	Op    string
	Entry Entry
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Entry.ID == "" {
		return fmt.Sprintf("journal %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("journal %s entry %s: %v", e.Op, e.Entry.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Repository persists entries.
type Repository interface {
	SaveEntry(ctx context.Context, e Entry) error
	RecentEntries(ctx context.Context, limit int) ([]Entry, error)
}

// SmartTagger produces smart tags for raw text.
type SmartTagger interface {
	Tag(ctx context.Context, text string) ([]classify.SmartTag, error)
}

// SourceJournal marks entries written through Submit.
const SourceJournal = "journal"

// Service classifies and persists journal entries.
type Service struct {
	engine *classify.Engine
	repo   Repository
	tagger SmartTagger
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithSmartTagger(t SmartTagger) ServiceOption {
	return func(s *Service) { s.tagger = t }
}

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service. repo may be nil, in which case entries are
// classified but not saved.
func NewService(engine *classify.Engine, repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		engine: engine,
		repo:   repo,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit classifies text into a new entry and saves it. Classification
// always completes before the save. A save failure returns the entry along
// with a *PersistenceError.
func (s *Service) Submit(ctx context.Context, text string) (Entry, classify.Outcome, error) {
	return s.submit(ctx, text, s.now(), SourceJournal)
}

// SubmitAt is Submit for text written earlier, such as an imported note.
// source is recorded in the entry metadata.
func (s *Service) SubmitAt(ctx context.Context, text string, ts time.Time, source string) (Entry, classify.Outcome, error) {
	if ts.IsZero() {
		ts = s.now()
	}
	if source == "" {
		source = SourceJournal
	}
	return s.submit(ctx, text, ts, source)
}

func (s *Service) submit(ctx context.Context, text string, ts time.Time, source string) (Entry, classify.Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Entry{}, classify.Outcome{}, ErrEmptyText
	}

	id := s.newID()
	log := s.logger.With(zap.String("entry_id", id))
	log.Debug("entry state", zap.String("state", string(classify.StateSubmitted)))

	var smartTags []classify.SmartTag
	if s.tagger != nil {
		tagged, err := s.tagger.Tag(ctx, text)
		if err != nil {
			log.Warn("smart tagging failed, classifying without tags", zap.Error(err))
		} else {
			smartTags = tagged
		}
	}

	log.Debug("entry state", zap.String("state", string(classify.StateClassifying)))
	outcome := s.engine.Classify(ctx, text, smartTags)
	if outcome.IsFallback() {
		log.Info("classified with fallback", zap.String("reason", outcome.Reason))
	}
	log.Debug("entry state", zap.String("state", string(outcome.State())))

	entry := Entry{
		ID:                id,
		OriginalText:      text,
		Timestamp:         ts.UTC(),
		Classifications:   outcome.Results,
		AverageConfidence: outcome.AverageConfidence(),
		IsProcessed:       true,
		Metadata: Metadata{
			SmartTagsCount: IntPtr(len(smartTags)),
			Source:         source,
			Outcome:        outcome.State(),
			FallbackReason: outcome.Reason,
		},
	}

	if s.repo == nil {
		return entry, outcome, nil
	}
	if err := s.repo.SaveEntry(ctx, entry); err != nil {
		log.Warn("saving entry failed", zap.Error(err))
		return entry, outcome, &PersistenceError{Op: "save", Entry: entry, Err: err}
	}
	return entry, outcome, nil
}

// Recent loads up to limit entries and collapses near duplicates.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.repo == nil {
		return nil, nil
	}
	entries, err := s.repo.RecentEntries(ctx, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return Dedupe(entries), nil
}

// Engine exposes the classification engine used by the service.
func (s *Service) Engine() *classify.Engine { return s.engine }
