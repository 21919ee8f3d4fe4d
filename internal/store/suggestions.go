package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hurttlocker/starbound/internal/habits"
)

var _ habits.StateStore = (*Store)(nil)

// Pending returns the suggestion still waiting on the user, if any.
func (s *Store) Pending(ctx context.Context) (habits.Suggestion, bool, error) {
	var sg habits.Suggestion
	err := s.db.QueryRowContext(ctx,
		`SELECT tag, formatted_name, description, suggested_frequency, occurrences
		 FROM suggestion_state WHERE status = ?
		 ORDER BY updated_at DESC LIMIT 1`,
		string(habits.StatusSuggested),
	).Scan(&sg.Tag, &sg.FormattedName, &sg.Description, &sg.SuggestedFrequency, &sg.Occurrences)
	if errors.Is(err, sql.ErrNoRows) {
		return habits.Suggestion{}, false, nil
	}
	if err != nil {
		return habits.Suggestion{}, false, fmt.Errorf("loading pending suggestion: %w", err)
	}
	return sg, true, nil
}

// SetPending records sg as the suggestion shown to the user.
func (s *Store) SetPending(ctx context.Context, sg habits.Suggestion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestion_state (tag, status, formatted_name, description, suggested_frequency, occurrences, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tag) DO UPDATE SET
		   status = excluded.status,
		   formatted_name = excluded.formatted_name,
		   description = excluded.description,
		   suggested_frequency = excluded.suggested_frequency,
		   occurrences = excluded.occurrences,
		   updated_at = excluded.updated_at`,
		sg.Tag, string(habits.StatusSuggested), sg.FormattedName, sg.Description,
		sg.SuggestedFrequency, sg.Occurrences, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("saving suggestion %s: %w", sg.Tag, err)
	}
	return nil
}

// Resolve stores the user's answer for tag.
func (s *Store) Resolve(ctx context.Context, tag string, status habits.Status) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestion_state (tag, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(tag) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		tag, string(status), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("resolving suggestion %s: %w", tag, err)
	}
	return nil
}

// Seen reports whether tag was ever suggested.
func (s *Store) Seen(ctx context.Context, tag string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suggestion_state WHERE tag = ?`, tag,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking suggestion %s: %w", tag, err)
	}
	return n > 0, nil
}

// SuggestionStatus returns the recorded status for tag, or ErrNotFound.
func (s *Store) SuggestionStatus(ctx context.Context, tag string) (habits.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM suggestion_state WHERE tag = ?`, tag,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("suggestion %s: %w", tag, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading suggestion %s: %w", tag, err)
	}
	return habits.Status(status), nil
}
