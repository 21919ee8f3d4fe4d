package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hurttlocker/starbound/internal/nudge"
)

// BankNudge saves n for later. Banking the same nudge twice keeps the
// first timestamp.
func (s *Store) BankNudge(ctx context.Context, n nudge.Nudge) (nudge.Banked, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nudge.Banked{}, fmt.Errorf("encoding nudge %d: %w", n.ID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO banked_nudges (nudge_id, nudge, banked_at) VALUES (?, ?, ?)`,
		n.ID, string(body), formatTime(s.now()),
	); err != nil {
		return nudge.Banked{}, fmt.Errorf("banking nudge %d: %w", n.ID, err)
	}

	var at string
	if err := s.db.QueryRowContext(ctx,
		`SELECT banked_at FROM banked_nudges WHERE nudge_id = ?`, n.ID,
	).Scan(&at); err != nil {
		return nudge.Banked{}, fmt.Errorf("reading banked nudge %d: %w", n.ID, err)
	}
	ts, err := parseTime(at)
	if err != nil {
		return nudge.Banked{}, err
	}
	return nudge.Banked{Nudge: n, BankedAt: ts}, nil
}

// BankedNudges lists saved nudges, most recently banked first.
func (s *Store) BankedNudges(ctx context.Context) ([]nudge.Banked, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT nudge, banked_at FROM banked_nudges ORDER BY banked_at DESC, nudge_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing banked nudges: %w", err)
	}
	defer rows.Close()

	var out []nudge.Banked
	for rows.Next() {
		var body, at string
		if err := rows.Scan(&body, &at); err != nil {
			return nil, fmt.Errorf("scanning banked nudge: %w", err)
		}
		var b nudge.Banked
		if err := json.Unmarshal([]byte(body), &b.Nudge); err != nil {
			return nil, fmt.Errorf("decoding banked nudge: %w", err)
		}
		if b.BankedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UnbankNudge removes a saved nudge.
func (s *Store) UnbankNudge(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM banked_nudges WHERE nudge_id = ?`, id)
	if err != nil {
		return fmt.Errorf("unbanking nudge %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("banked nudge %d: %w", id, ErrNotFound)
	}
	return nil
}
