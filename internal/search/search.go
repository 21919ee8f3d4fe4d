// Package search classifies query intent, fans a query out across content
// sources and aggregates the answers into typed result buckets.
//
// Every source is searched concurrently. The All bucket interleaves the
// per-type buckets with reciprocal rank fusion, weighted toward the bucket
// the detected intent prefers. SelectDefaultView picks the tab a results
// page should open on.
package search

import (
	"time"
)

// ResultType identifies the content store a result came from.
type ResultType string

const (
	TypeJournalEntry   ResultType = "journalEntry"
	TypeConversation   ResultType = "conversation"
	TypeHabitEntry     ResultType = "habitEntry"
	TypeForecast       ResultType = "forecast"
	TypeRecommendation ResultType = "recommendation"
)

// Result is a single search hit.
type Result struct {
	Type      ResultType     `json:"type"`
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Snippet   string         `json:"snippet"`
	Timestamp time.Time      `json:"timestamp"`
	Score     float64        `json:"score"`
	MatchType string         `json:"match_type,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Results is the aggregated answer for one query.
type Results struct {
	Journal         []Result      `json:"journal"`
	Conversations   []Result      `json:"conversations"`
	Habits          []Result      `json:"habits"`
	Forecasts       []Result      `json:"forecasts"`
	Recommendations []Result      `json:"recommendations"`
	All             []Result      `json:"all"`
	DetectedIntent  Intent        `json:"detected_intent"`
	TotalResults    int           `json:"total_results"`
	SearchTime      time.Duration `json:"search_time"`
}

// bucket returns a pointer to the slice holding results of type t.
func (r *Results) bucket(t ResultType) *[]Result {
	switch t {
	case TypeJournalEntry:
		return &r.Journal
	case TypeConversation:
		return &r.Conversations
	case TypeHabitEntry:
		return &r.Habits
	case TypeForecast:
		return &r.Forecasts
	case TypeRecommendation:
		return &r.Recommendations
	}
	return nil
}

// Tab is a results page view.
type Tab string

const (
	TabAll           Tab = "all"
	TabJournal       Tab = "journal"
	TabConversations Tab = "conversations"
	TabForecasts     Tab = "forecasts"
)

// tabOrder is the fallback priority when the preferred tab is empty.
var tabOrder = []Tab{TabAll, TabJournal, TabConversations, TabForecasts}

// Tab returns the results shown under tab.
func (r Results) Tab(tab Tab) []Result {
	switch tab {
	case TabAll:
		return r.All
	case TabJournal:
		return r.Journal
	case TabConversations:
		return r.Conversations
	case TabForecasts:
		return r.Forecasts
	}
	return nil
}

// preferredTab maps an intent to the tab it favours, or "".
func preferredTab(intent Intent) Tab {
	switch intent {
	case IntentJournal:
		return TabJournal
	case IntentAskStarbound:
		return TabConversations
	case IntentHealthForecast:
		return TabForecasts
	}
	return ""
}

// SelectDefaultView picks the tab to open: the intent's preferred tab when
// it has results, else the first non-empty tab of All, Journal,
// Conversations, Forecasts. With no results at all it returns TabAll.
func SelectDefaultView(r Results) Tab {
	if pref := preferredTab(r.DetectedIntent); pref != "" && len(r.Tab(pref)) > 0 {
		return pref
	}
	for _, tab := range tabOrder {
		if len(r.Tab(tab)) > 0 {
			return tab
		}
	}
	return TabAll
}
