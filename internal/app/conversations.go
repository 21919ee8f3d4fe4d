package app

import (
	"context"
	"strings"

	"github.com/hurttlocker/starbound/internal/store"
)

// DefaultUserID owns conversations recorded without a user.
const DefaultUserID = "local"

// SuggestedQuestions are starter prompts for Ask Starbound.
var SuggestedQuestions = []string{
	"What free health services are available near me?",
	"How can I access mental health support?",
	"What is the Medicare Safety Net?",
	"How do I get a health care plan from my GP?",
	"What telehealth options are available?",
	"How can I reduce out-of-pocket medical costs?",
	"What support is available for chronic conditions?",
	"How do I access bulk billing?",
}

// RecordConversation stores an Ask Starbound question with the answer the
// caller produced. The answer may be empty.
func (a *App) RecordConversation(ctx context.Context, userID, question, answer string) (store.Conversation, error) {
	c, err := a.Store.AddConversation(ctx, store.Conversation{
		UserID:   userOrDefault(userID),
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	})
	if err != nil {
		return store.Conversation{}, err
	}
	a.Search.Invalidate()
	return c, nil
}

// Conversations lists a user's history, newest first.
func (a *App) Conversations(ctx context.Context, userID string, limit int) ([]store.Conversation, error) {
	return a.Store.Conversations(ctx, userOrDefault(userID), limit)
}

func userOrDefault(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return DefaultUserID
}
