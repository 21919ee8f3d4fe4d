// Package store provides the SQLite + FTS5 storage layer for Starbound.
//
// All wellbeing data lives in a single SQLite database file, including:
// - Journal entries with their classifications
// - Ask-Starbound conversations
// - Daily habit check-ins
// - Habit suggestion state and banked nudges
// - FTS5 full-text indexes over entries and conversations
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.starbound/starbound.db"

// MaxConversationsPerUser caps stored conversations per user; the oldest
// are pruned on insert.
const MaxConversationsPerUser = 200

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyQuestion rejects a conversation without a question.
	ErrEmptyQuestion = errors.New("empty question")
)

// Config holds configuration for Open.
type Config struct {
	DBPath string
	Logger *zap.Logger
}

// Stats holds row counts and the database size.
type Stats struct {
	Entries       int64 `json:"entries"`
	Conversations int64 `json:"conversations"`
	HabitEntries  int64 `json:"habit_entries"`
	BankedNudges  int64 `json:"banked_nudges"`
	DBSizeBytes   int64 `json:"db_size_bytes"`
}

// Store is the SQLite-backed persistence for every Starbound record.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
	now    func() time.Time
}

// Open creates or opens the database at cfg.DBPath and runs migrations.
// Pass ":memory:" for in-memory databases (testing).
func Open(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	cfg.DBPath = expandPath(cfg.DBPath)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	inMemory := cfg.DBPath == ":memory:"

	// Create parent directory for non-memory databases
	if !inMemory {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if inMemory {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:     db,
		dbPath: cfg.DBPath,
		logger: cfg.Logger,
		now:    time.Now,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// Vacuum runs VACUUM on the database. Manual only, never auto-vacuum.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns row counts for each table and the database file size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int64
	}{
		{"entries", &st.Entries},
		{"conversations", &st.Conversations},
		{"habit_entries", &st.HabitEntries},
		{"banked_nudges", &st.BankedNudges},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = fi.Size()
		}
	}
	return st, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// ftsQuery turns free text into an FTS5 MATCH expression that ORs every
// word as a quoted prefix term. It returns "" when nothing searchable is
// left.
func ftsQuery(q string) string {
	words := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r > 127)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " OR ")
}

// snippet shortens s to at most n runes on a word boundary.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
