package store

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const schemaVersion = "1"

// migrate creates all tables if they don't exist and seeds metadata.
func (s *Store) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
		s.logger.Debug("schema bootstrapped", zap.String("path", s.dbPath))
	}

	if err := s.migrateRecencyIndexes(); err != nil {
		return fmt.Errorf("migrating recency indexes: %w", err)
	}
	return nil
}

func (s *Store) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS entries (
			rid                INTEGER PRIMARY KEY AUTOINCREMENT,
			id                 TEXT UNIQUE NOT NULL,
			original_text      TEXT NOT NULL,
			terms              TEXT NOT NULL DEFAULT '',
			timestamp          TEXT NOT NULL,
			classifications    TEXT NOT NULL DEFAULT '[]',
			average_confidence REAL NOT NULL DEFAULT 0,
			is_processed       INTEGER NOT NULL DEFAULT 0,
			metadata           TEXT NOT NULL DEFAULT '{}'
		)`,

		// FTS5 full-text search index over text and classification terms
		`CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			original_text,
			terms,
			content=entries,
			content_rowid=rid,
			tokenize='porter unicode61'
		)`,

		`CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, original_text, terms)
			VALUES (new.rid, new.original_text, new.terms);
		END`,

		`CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, original_text, terms)
			VALUES('delete', old.rid, old.original_text, old.terms);
		END`,

		`CREATE TRIGGER IF NOT EXISTS entries_au AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, original_text, terms)
			VALUES('delete', old.rid, old.original_text, old.terms);
			INSERT INTO entries_fts(rowid, original_text, terms)
			VALUES (new.rid, new.original_text, new.terms);
		END`,

		`CREATE TABLE IF NOT EXISTS conversations (
			rid        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT UNIQUE NOT NULL,
			user_id    TEXT NOT NULL,
			question   TEXT NOT NULL,
			answer     TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS conversations_fts USING fts5(
			question,
			answer,
			content=conversations,
			content_rowid=rid,
			tokenize='porter unicode61'
		)`,

		`CREATE TRIGGER IF NOT EXISTS conversations_ai AFTER INSERT ON conversations BEGIN
			INSERT INTO conversations_fts(rowid, question, answer)
			VALUES (new.rid, new.question, new.answer);
		END`,

		`CREATE TRIGGER IF NOT EXISTS conversations_ad AFTER DELETE ON conversations BEGIN
			INSERT INTO conversations_fts(conversations_fts, rowid, question, answer)
			VALUES('delete', old.rid, old.question, old.answer);
		END`,

		`CREATE TABLE IF NOT EXISTS habit_entries (
			date       TEXT NOT NULL,
			habit      TEXT NOT NULL,
			value      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (date, habit)
		)`,

		`CREATE TABLE IF NOT EXISTS suggestion_state (
			tag                 TEXT PRIMARY KEY,
			status              TEXT NOT NULL,
			formatted_name      TEXT NOT NULL DEFAULT '',
			description         TEXT NOT NULL DEFAULT '',
			suggested_frequency TEXT NOT NULL DEFAULT '',
			occurrences         INTEGER NOT NULL DEFAULT 0,
			updated_at          TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS banked_nudges (
			nudge_id  INTEGER PRIMARY KEY,
			nudge     TEXT NOT NULL,
			banked_at TEXT NOT NULL
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w\nStatement: %s", err, truncate(stmt, 120))
		}
	}
	return tx.Commit()
}

func (s *Store) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	value, err := s.getMetaValue(key)
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

func (s *Store) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

// getMetaValue returns "" for a missing key.
func (s *Store) getMetaValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) seedMeta() error {
	defaults := map[string]string{
		"schema_version": schemaVersion,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range defaults {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v,
		)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

// migrateRecencyIndexes adds the indexes behind recent-entry and
// per-user conversation listing.
func (s *Store) migrateRecencyIndexes() error {
	done, err := s.isMetaFlagEnabled("recency_indexes_v1")
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_created ON conversations(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_habit_entries_habit ON habit_entries(habit, date)`,
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return s.setMetaFlag("recency_indexes_v1")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
