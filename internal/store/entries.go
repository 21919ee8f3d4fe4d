package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hurttlocker/starbound/internal/journal"
)

// EntryMatch is a journal entry found by full-text search.
type EntryMatch struct {
	Entry   journal.Entry
	Score   float64 // higher is better
	Snippet string
}

var _ journal.Repository = (*Store)(nil)

const entryColumns = `id, original_text, timestamp, classifications, average_confidence, is_processed, metadata`

// SaveEntry inserts e, or replaces the stored entry with the same ID.
func (s *Store) SaveEntry(ctx context.Context, e journal.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("saving entry: empty id")
	}
	classifications, err := json.Marshal(e.Classifications)
	if err != nil {
		return fmt.Errorf("encoding classifications: %w", err)
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`, terms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   original_text = excluded.original_text,
		   timestamp = excluded.timestamp,
		   classifications = excluded.classifications,
		   average_confidence = excluded.average_confidence,
		   is_processed = excluded.is_processed,
		   metadata = excluded.metadata,
		   terms = excluded.terms`,
		e.ID, e.OriginalText, formatTime(e.Timestamp), string(classifications),
		e.AverageConfidence, e.IsProcessed, string(metadata),
		strings.Join(e.Terms(), " "),
	)
	if err != nil {
		return fmt.Errorf("inserting entry %s: %w", e.ID, err)
	}
	return nil
}

// GetEntry returns the entry with id, or ErrNotFound.
func (s *Store) GetEntry(ctx context.Context, id string) (journal.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return e, err
}

// RecentEntries returns up to limit entries, newest first. limit <= 0
// returns every entry.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY timestamp DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntry removes the entry with id.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// SearchEntries runs a full-text query over entry text and classification
// terms. Results are ordered best first.
func (s *Store) SearchEntries(ctx context.Context, query string, limit int) ([]EntryMatch, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.original_text, e.timestamp, e.classifications, e.average_confidence,
		        e.is_processed, e.metadata,
		        bm25(entries_fts) AS score
		 FROM entries_fts
		 JOIN entries e ON entries_fts.rowid = e.rid
		 WHERE entries_fts MATCH ?
		 ORDER BY score, e.timestamp DESC
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("FTS search: %w", err)
	}
	defer rows.Close()

	var out []EntryMatch
	for rows.Next() {
		var m EntryMatch
		var bm25 float64
		e, err := scanEntry(rows, &bm25)
		if err != nil {
			return nil, err
		}
		m.Entry = e
		// bm25 is negative, lower is better
		m.Score = -bm25
		m.Snippet = snippet(e.OriginalText, 120)
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, extra ...any) (journal.Entry, error) {
	var (
		e               journal.Entry
		ts              string
		classifications string
		metadata        string
	)
	dest := append([]any{&e.ID, &e.OriginalText, &ts, &classifications,
		&e.AverageConfidence, &e.IsProcessed, &metadata}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scanning entry: %w", err)
	}

	var err error
	if e.Timestamp, err = parseTime(ts); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(classifications), &e.Classifications); err != nil {
		return e, fmt.Errorf("decoding classifications for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return e, fmt.Errorf("decoding metadata for %s: %w", e.ID, err)
	}
	return e, nil
}
