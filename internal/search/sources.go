package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/starbound/internal/habits"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/nudge"
	"github.com/hurttlocker/starbound/internal/store"
	"github.com/hurttlocker/starbound/internal/tags"
)

// SourceFunc adapts a function to Source.
type SourceFunc struct {
	Kind ResultType
	Fn   func(ctx context.Context, query string, limit int) ([]Result, error)
}

func (f SourceFunc) Type() ResultType { return f.Kind }

func (f SourceFunc) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return f.Fn(ctx, query, limit)
}

// JournalSource searches journal entries.
type JournalSource struct {
	Store    *store.Store
	Registry *tags.Registry
}

func (JournalSource) Type() ResultType { return TypeJournalEntry }

func (s JournalSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	matches, err := s.Store.SearchEntries(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, Result{
			Type:      TypeJournalEntry,
			ID:        m.Entry.ID,
			Title:     entryTitle(m.Entry),
			Snippet:   m.Snippet,
			Timestamp: m.Entry.Timestamp,
			Score:     m.Score,
			MatchType: "fts",
			Metadata: map[string]any{
				"tags":               journal.CanonicalKeys(s.Registry, m.Entry),
				"average_confidence": m.Entry.AverageConfidence,
			},
		})
	}
	return out, nil
}

func entryTitle(e journal.Entry) string {
	for _, c := range e.Classifications {
		if c.CategoryTitle != "" {
			return c.CategoryTitle
		}
	}
	return "Journal entry"
}

// ConversationSource searches Ask-Starbound history.
type ConversationSource struct {
	Store *store.Store
}

func (ConversationSource) Type() ResultType { return TypeConversation }

func (s ConversationSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	matches, err := s.Store.SearchConversations(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, Result{
			Type:      TypeConversation,
			ID:        m.Conversation.ID,
			Title:     m.Conversation.Question,
			Snippet:   m.Snippet,
			Timestamp: m.Conversation.CreatedAt,
			Score:     m.Score,
			MatchType: "fts",
			Metadata:  map[string]any{"user_id": m.Conversation.UserID},
		})
	}
	return out, nil
}

// HabitSource searches daily habit check-ins. Matches are scored by how
// many query words they contain.
type HabitSource struct {
	Store *store.Store
}

func (HabitSource) Type() ResultType { return TypeHabitEntry }

func (s HabitSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	hits, err := s.Store.SearchHabits(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{
			Type:      TypeHabitEntry,
			ID:        h.Date + "/" + h.Habit,
			Title:     fmt.Sprintf("%s on %s", h.Habit, h.Date),
			Snippet:   h.Value,
			Timestamp: h.UpdatedAt,
			Score:     wordHits(query, h.Habit+" "+h.Value),
			MatchType: "keyword",
		})
	}
	return out, nil
}

// ForecastSource computes habit forecasts from check-ins and returns those
// mentioning a query word.
type ForecastSource struct {
	Store *store.Store
}

func (ForecastSource) Type() ResultType { return TypeForecast }

func (s ForecastSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	days, err := s.Store.DailyEntries(ctx, "", "")
	if err != nil {
		return nil, err
	}
	forecasts := habits.Forecasts(habits.Trends(days))

	_, words := queryWords(query)
	broad := containsAny(" "+strings.Join(words, " ")+" ", forecastTerms)

	var out []Result
	for _, f := range forecasts {
		score := wordHits(query, f.Habit+" "+f.Title+" "+f.Summary)
		if score == 0 && !broad {
			continue
		}
		r := Result{
			Type:      TypeForecast,
			ID:        "forecast/" + f.Habit,
			Title:     f.Title,
			Snippet:   f.Summary,
			Score:     score + f.Likelihood,
			MatchType: "forecast",
			Metadata:  map[string]any{"likelihood": f.Likelihood},
		}
		if len(days) > 0 {
			// newest day first
			r.Timestamp = days[0].UpdatedAt
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// RecommendationSource suggests nudges for the themes in the query.
type RecommendationSource struct {
	Catalog *nudge.Catalog
}

func (RecommendationSource) Type() ResultType { return TypeRecommendation }

func (s RecommendationSource) Search(_ context.Context, query string, limit int) ([]Result, error) {
	_, words := queryWords(query)
	suggestions := s.Catalog.Suggest(words, nudge.SuggestOptions{Limit: limit})

	var out []Result
	for _, sg := range suggestions {
		if sg.Score == 0 {
			continue
		}
		out = append(out, Result{
			Type:      TypeRecommendation,
			ID:        fmt.Sprintf("nudge/%d", sg.Nudge.ID),
			Title:     sg.Nudge.Title,
			Snippet:   sg.Nudge.Description,
			Score:     float64(sg.Score),
			MatchType: "theme",
			Metadata: map[string]any{
				"theme":       sg.Nudge.Theme,
				"time_bucket": string(sg.Nudge.TimeBucket),
				"energy":      string(sg.Nudge.EnergyLevel),
			},
		})
	}
	return out, nil
}

// NewStoreEngine wires every built-in source over st and catalog.
func NewStoreEngine(st *store.Store, reg *tags.Registry, catalog *nudge.Catalog, opts ...EngineOption) *Engine {
	sources := []Source{
		JournalSource{Store: st, Registry: reg},
		ConversationSource{Store: st},
		HabitSource{Store: st},
		ForecastSource{Store: st},
	}
	if catalog != nil {
		sources = append(sources, RecommendationSource{Catalog: catalog})
	}
	return NewEngine(sources, opts...)
}

// wordHits counts query words found in text.
func wordHits(query, text string) float64 {
	_, words := queryWords(query)
	padded, _ := queryWords(text)
	n := 0
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") {
			n++
		}
	}
	return float64(n)
}
