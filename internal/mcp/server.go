// Package mcp provides a Model Context Protocol server for Starbound.
//
// It exposes classification, journaling, search, nudges, Ask Starbound
// history and the tag and bucket helpers as MCP tools, and the recent
// journal as an MCP resource.
// The server speaks stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/starbound/internal/app"
	"github.com/hurttlocker/starbound/internal/bucket"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/search"
	"github.com/hurttlocker/starbound/internal/store"
	"github.com/hurttlocker/starbound/internal/tags"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	App     *app.App
	Version string // version string for MCP server info
}

// dbMu serializes tool calls that touch the database. mcp-go dispatches
// handlers concurrently and SQLite allows a single writer.
var dbMu sync.Mutex

const maxSearchLimit = 50

// NewServer creates a configured MCP server with all Starbound tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Starbound",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerClassifyTool(s, cfg.App)
	registerJournalAddTool(s, cfg.App)
	registerSearchTool(s, cfg.App)
	registerSuggestNudgesTool(s, cfg.App)
	registerResolveTagTool(s, cfg.App.Registry)
	registerBucketizeTool(s)
	registerAskTool(s, cfg.App)
	registerHistoryTool(s, cfg.App)

	registerRecentResource(s, cfg.App)

	return s
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
func ServeStdio(cfg ServerConfig) error {
	return server.ServeStdio(NewServer(cfg))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data))
}

// --- Tools ---

func registerClassifyTool(s *server.MCPServer, a *app.App) {
	tool := mcp.NewTool("starbound_classify",
		mcp.WithDescription("Classify free journal text into themes, keywords, sentiment and a canonical habit tag without saving it. Returns a success or fallback outcome."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Journal text to classify"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		return jsonResult(a.Classify(ctx, text)), nil
	})
}

func registerJournalAddTool(s *server.MCPServer, a *app.App) {
	tool := mcp.NewTool("starbound_journal_add",
		mcp.WithDescription("Classify and save a journal entry. Returns the saved entry, its classification outcome, matching nudges and any habit suggestion raised by repeated themes."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The journal entry text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		res, err := a.AddEntry(ctx, text)
		if err != nil {
			if errors.Is(err, journal.ErrEmptyText) {
				return mcp.NewToolResultError("text is empty"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("journal add error: %v", err)), nil
		}
		return jsonResult(res), nil
	})
}

type searchPayload struct {
	search.Results
	DefaultView search.Tab `json:"default_view"`
}

func registerSearchTool(s *server.MCPServer, a *app.App) {
	tool := mcp.NewTool("starbound_search",
		mcp.WithDescription("Search journal entries, past conversations, habit check-ins, forecasts and nudges. Results are bucketed by type, fused into an 'all' list, and the tab to open first is returned as default_view."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithString("intent",
			mcp.Description("Override the detected intent"),
			mcp.Enum("journal", "askStarbound", "healthForecast", "unknown"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results per bucket (default: 20, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		var opts search.Options
		if intentStr, err := req.RequireString("intent"); err == nil && intentStr != "" {
			intent, err := search.ParseIntent(intentStr)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid intent: %v", err)), nil
			}
			opts.Intent = intent
		}
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit := int(limitVal)
			if limit > maxSearchLimit {
				limit = maxSearchLimit
			}
			if limit > 0 {
				opts.Limit = limit
			}
		}

		results, err := a.Search.Search(ctx, query, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}
		return jsonResult(searchPayload{Results: results, DefaultView: search.SelectDefaultView(results)}), nil
	})
}

func registerSuggestNudgesTool(s *server.MCPServer, a *app.App) {
	tool := mcp.NewTool("starbound_suggest_nudges",
		mcp.WithDescription("Suggest small wellbeing nudges for journal text or explicit themes, optionally limited by available time and energy. Banked nudges are excluded."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Description("Free text to classify for themes"),
		),
		mcp.WithString("themes",
			mcp.Description("Comma-separated themes or tags (e.g. 'sleep, hydration')"),
		),
		mcp.WithString("max_time",
			mcp.Description("Available time, e.g. '5 minutes' or 'quick'"),
		),
		mcp.WithString("energy",
			mcp.Description("Available energy, e.g. 'low' or 'super high'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of nudges (default: 3)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		nr := app.NudgeRequest{
			Text:    optionalString(req, "text"),
			Themes:  splitList(optionalString(req, "themes")),
			MaxTime: optionalString(req, "max_time"),
			Energy:  optionalString(req, "energy"),
		}
		if nr.Text == "" && len(nr.Themes) == 0 {
			return mcp.NewToolResultError("text or themes is required"), nil
		}
		if limitVal, err := req.RequireFloat("limit"); err == nil && limitVal > 0 {
			nr.Limit = int(limitVal)
		}

		suggestions, err := a.SuggestNudges(ctx, nr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("nudge error: %v", err)), nil
		}
		return jsonResult(suggestions), nil
	})
}

type resolvedTag struct {
	Raw     string `json:"raw"`
	Matched bool   `json:"matched"`
	tags.CanonicalTag
}

func registerResolveTagTool(s *server.MCPServer, reg *tags.Registry) {
	tool := mcp.NewTool("starbound_resolve_tag",
		mcp.WithDescription("Resolve a raw tag, alias or display name to its canonical tag. Unknown input resolves to the fallback tag with matched=false."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("raw",
			mcp.Required(),
			mcp.Description("Raw tag text (e.g. 'Outside', 'h2o')"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("raw")
		if err != nil {
			return mcp.NewToolResultError("raw is required"), nil
		}
		_, ok := reg.Resolve(raw)
		return jsonResult(resolvedTag{Raw: raw, Matched: ok, CanonicalTag: reg.ResolveTag(raw)}), nil
	})
}

type bucketResult struct {
	Input  string             `json:"input"`
	Time   bucket.TimeBucket  `json:"time_bucket,omitempty"`
	Energy bucket.EnergyLevel `json:"energy_level,omitempty"`
}

func registerBucketizeTool(s *server.MCPServer) {
	tool := mcp.NewTool("starbound_bucketize",
		mcp.WithDescription("Map a duration phrase onto a time bucket or an energy phrase onto an energy level."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Phrase to bucketize, e.g. '2-3 minutes' or 'very low'"),
		),
		mcp.WithString("kind",
			mcp.Description("What to bucketize (default: time)"),
			mcp.Enum("time", "energy"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		out := bucketResult{Input: text}
		switch kind := optionalString(req, "kind"); kind {
		case "", "time":
			out.Time = bucket.BucketizeTime(text)
		case "energy":
			out.Energy = bucket.NormalizeEnergy(text)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid kind %q (valid: time, energy)", kind)), nil
		}
		return jsonResult(out), nil
	})
}

// --- Resources ---

const recentResourceLimit = 20

func registerRecentResource(s *server.MCPServer, a *app.App) {
	resource := mcp.NewResource(
		"starbound://recent",
		"Recent Journal",
		mcp.WithResourceDescription("The most recent journal entries with near-duplicates collapsed."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		entries, err := a.Journal.Recent(ctx, recentResourceLimit)
		if err != nil {
			return nil, fmt.Errorf("loading recent entries: %w", err)
		}
		if entries == nil {
			entries = []journal.Entry{}
		}

		payload := map[string]interface{}{
			"entries": entries,
			"count":   len(entries),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func registerAskTool(s *server.MCPServer, a *app.App) {
	tool := mcp.NewTool("starbound_ask",
		mcp.WithDescription("Record an Ask Starbound question with the answer you gave, so it appears in conversation history and in the conversations bucket of starbound_search."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The user's question"),
		),
		mcp.WithString("answer",
			mcp.Description("The answer given to the user"),
		),
		mcp.WithString("user_id",
			mcp.Description("Owner of the conversation (default: local)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError("question is required"), nil
		}
		c, err := a.RecordConversation(ctx, optionalString(req, "user_id"), question, optionalString(req, "answer"))
		if err != nil {
			if errors.Is(err, store.ErrEmptyQuestion) {
				return mcp.NewToolResultError("question is empty"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("ask error: %v", err)), nil
		}
		return jsonResult(c), nil
	})
}

func registerHistoryTool(s *server.MCPServer, a *app.App) {
	tool := mcp.NewTool("starbound_history",
		mcp.WithDescription("List a user's Ask Starbound questions and answers, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("user_id",
			mcp.Description("Owner of the conversations (default: local)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum conversations (default: 50, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 50
		if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
			limit = min(int(v), store.MaxConversationsPerUser)
		}
		history, err := a.Conversations(ctx, optionalString(req, "user_id"), limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history error: %v", err)), nil
		}
		if history == nil {
			history = []store.Conversation{}
		}
		return jsonResult(map[string]any{"conversations": history, "count": len(history)}), nil
	})
}

func optionalString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
