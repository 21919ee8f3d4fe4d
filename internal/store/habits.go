package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/starbound/internal/habits"
)

// HabitEntry is one habit value recorded for a day.
type HabitEntry struct {
	Date      string    `json:"date"` // habits.DateLayout
	Habit     string    `json:"habit"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetHabit records value for habit on date, replacing any earlier value
// for the same day.
func (s *Store) SetHabit(ctx context.Context, date, habit, value string) (HabitEntry, error) {
	if _, err := time.Parse(habits.DateLayout, date); err != nil {
		return HabitEntry{}, fmt.Errorf("invalid habit date %q: %w", date, err)
	}
	habit = strings.TrimSpace(habit)
	if habit == "" {
		return HabitEntry{}, fmt.Errorf("setting habit: empty habit name")
	}
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habit_entries (date, habit, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date, habit) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		date, habit, value, now, now,
	)
	if err != nil {
		return HabitEntry{}, fmt.Errorf("upserting habit %s on %s: %w", habit, date, err)
	}
	return s.habitEntry(ctx, date, habit)
}

func (s *Store) habitEntry(ctx context.Context, date, habit string) (HabitEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT date, habit, value, created_at, updated_at FROM habit_entries WHERE date = ? AND habit = ?`,
		date, habit)
	h, err := scanHabitEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return HabitEntry{}, fmt.Errorf("habit %s on %s: %w", habit, date, ErrNotFound)
	}
	return h, err
}

// DailyEntries groups check-ins by day, newest day first. An empty from
// or to leaves that end open.
func (s *Store) DailyEntries(ctx context.Context, from, to string) ([]habits.DailyEntry, error) {
	q := `SELECT date, habit, value, created_at, updated_at FROM habit_entries WHERE 1=1`
	var args []any
	if from != "" {
		q += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		q += ` AND date <= ?`
		args = append(args, to)
	}
	q += ` ORDER BY date DESC, habit ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing habit entries: %w", err)
	}
	defer rows.Close()

	var out []habits.DailyEntry
	for rows.Next() {
		h, err := scanHabitEntry(rows)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Date != h.Date {
			out = append(out, habits.DailyEntry{
				Date:      h.Date,
				Habits:    map[string]string{},
				CreatedAt: h.CreatedAt,
				UpdatedAt: h.UpdatedAt,
			})
		}
		day := &out[len(out)-1]
		day.Habits[h.Habit] = h.Value
		if h.CreatedAt.Before(day.CreatedAt) {
			day.CreatedAt = h.CreatedAt
		}
		if h.UpdatedAt.After(day.UpdatedAt) {
			day.UpdatedAt = h.UpdatedAt
		}
	}
	return out, rows.Err()
}

// SearchHabits returns check-ins whose habit name or value contains any
// word of query, newest first.
func (s *Store) SearchHabits(ctx context.Context, query string, limit int) ([]HabitEntry, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	clauses := make([]string, 0, len(words))
	args := make([]any, 0, 2*len(words)+1)
	for _, w := range words {
		clauses = append(clauses, `(LOWER(habit) LIKE ? OR LOWER(value) LIKE ?)`)
		pattern := "%" + w + "%"
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, habit, value, created_at, updated_at FROM habit_entries
		 WHERE `+strings.Join(clauses, " OR ")+`
		 ORDER BY date DESC, habit ASC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("searching habits: %w", err)
	}
	defer rows.Close()

	var out []HabitEntry
	for rows.Next() {
		h, err := scanHabitEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHabitEntry(row rowScanner) (HabitEntry, error) {
	var h HabitEntry
	var created, updated string
	if err := row.Scan(&h.Date, &h.Habit, &h.Value, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h, err
		}
		return h, fmt.Errorf("scanning habit entry: %w", err)
	}
	var err error
	if h.CreatedAt, err = parseTime(created); err != nil {
		return h, err
	}
	h.UpdatedAt, err = parseTime(updated)
	return h, err
}
