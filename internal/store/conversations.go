package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conversation is one Ask-Starbound question and its answer.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationMatch is a conversation found by full-text search.
type ConversationMatch struct {
	Conversation Conversation
	Score        float64
	Snippet      string
}

// AddConversation stores c, assigning an ID and timestamp when missing,
// then prunes the user's history down to MaxConversationsPerUser.
func (s *Store) AddConversation(ctx context.Context, c Conversation) (Conversation, error) {
	if strings.TrimSpace(c.Question) == "" {
		return Conversation{}, fmt.Errorf("adding conversation: %w", ErrEmptyQuestion)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Conversation{}, fmt.Errorf("beginning conversation insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, question, answer, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Question, c.Answer, formatTime(c.CreatedAt),
	); err != nil {
		return Conversation{}, fmt.Errorf("inserting conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations
		 WHERE user_id = ?
		   AND rid NOT IN (
		     SELECT rid FROM conversations WHERE user_id = ?
		     ORDER BY created_at DESC, rid DESC LIMIT ?
		   )`,
		c.UserID, c.UserID, MaxConversationsPerUser,
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("pruning conversations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Conversation{}, fmt.Errorf("committing conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("pruned conversations", zap.String("user", c.UserID), zap.Int64("removed", n))
	}
	return c, nil
}

// Conversations lists a user's conversations, newest first.
func (s *Store) Conversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = MaxConversationsPerUser
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, question, answer, created_at FROM conversations
		 WHERE user_id = ? ORDER BY created_at DESC, rid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchConversations runs a full-text query over questions and answers of
// every user.
func (s *Store) SearchConversations(ctx context.Context, query string, limit int) ([]ConversationMatch, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.question, c.answer, c.created_at,
		        bm25(conversations_fts) AS score
		 FROM conversations_fts
		 JOIN conversations c ON conversations_fts.rowid = c.rid
		 WHERE conversations_fts MATCH ?
		 ORDER BY score, c.created_at DESC
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("FTS conversation search: %w", err)
	}
	defer rows.Close()

	var out []ConversationMatch
	for rows.Next() {
		var bm25 float64
		c, err := scanConversation(rows, &bm25)
		if err != nil {
			return nil, err
		}
		out = append(out, ConversationMatch{
			Conversation: c,
			Score:        -bm25,
			Snippet:      snippet(c.Answer, 120),
		})
	}
	return out, rows.Err()
}

func scanConversation(row rowScanner, extra ...any) (Conversation, error) {
	var c Conversation
	var created string
	dest := append([]any{&c.ID, &c.UserID, &c.Question, &c.Answer, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return c, fmt.Errorf("scanning conversation: %w", err)
	}
	var err error
	c.CreatedAt, err = parseTime(created)
	return c, err
}
