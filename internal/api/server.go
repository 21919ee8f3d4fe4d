// Package api serves Starbound over HTTP with a chi router.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hurttlocker/starbound/internal/app"
	"github.com/hurttlocker/starbound/internal/habits"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/nudge"
	"github.com/hurttlocker/starbound/internal/search"
	"github.com/hurttlocker/starbound/internal/store"
)

const (
	defaultListLimit    = 20
	maxListLimit        = 100
	defaultHistoryLimit = 50
	maxBodyBytes        = 64 << 10
)

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	App    *app.App
	Addr   string
	Logger *zap.Logger
}

type handler struct {
	app    *app.App
	logger *zap.Logger
}

// NewRouter wires every endpoint onto a chi router.
func NewRouter(a *app.App, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{app: a, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", h.health)

	r.Route("/entries", func(r chi.Router) {
		r.Post("/", h.addEntry)
		r.Get("/", h.listEntries)
		r.Get("/{id}", h.getEntry)
		r.Delete("/{id}", h.deleteEntry)
	})
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", h.addConversation)
		r.Get("/", h.conversations)
		r.Get("/suggestions", h.suggestedQuestions)
	})
	r.Get("/search", h.search)
	r.Get("/tags/{raw}", h.resolveTag)

	r.Route("/nudges", func(r chi.Router) {
		r.Get("/", h.nudges)
		r.Get("/banked", h.bankedNudges)
		r.Post("/{id}/bank", h.bankNudge)
		r.Delete("/{id}/bank", h.unbankNudge)
	})

	r.Route("/habits", func(r chi.Router) {
		r.Get("/suggestion", h.habitSuggestion)
		r.Post("/suggestion/{tag}/dismiss", h.resolveHabit(false))
		r.Post("/suggestion/{tag}/accept", h.resolveHabit(true))
		r.Get("/streaks", h.streaks)
		r.Post("/checkins", h.checkIn)
		r.Get("/status/{tag}", h.habitStatus)
	})

	return r
}

// Serve listens on cfg.Addr until ctx is cancelled, then shuts down.
func Serve(ctx context.Context, cfg ServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg.App, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"stats":  stats,
	})
}

type addEntryRequest struct {
	Text string `json:"text"`
}

func (h *handler) addEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.app.AddEntry(r.Context(), req.Text)
	if err != nil {
		var perr *journal.PersistenceError
		switch {
		case errors.Is(err, journal.ErrEmptyText):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		case errors.As(err, &perr):
			h.logger.Error("saving entry failed", zap.String("entry_id", perr.Entry.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":   err.Error(),
				"entry":   perr.Entry,
				"outcome": res.Outcome,
			})
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) listEntries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit, maxListLimit)

	var (
		entries []journal.Entry
		err     error
	)
	if r.URL.Query().Get("raw") == "true" {
		entries, err = h.app.Store.RecentEntries(r.Context(), limit)
	} else {
		entries, err = h.app.Journal.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q parameter required"})
		return
	}

	opts := search.Options{Limit: queryInt(r, "limit", search.DefaultLimit, maxListLimit)}
	if raw := r.URL.Query().Get("intent"); raw != "" {
		intent, err := search.ParseIntent(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		opts.Intent = intent
	}

	results, err := h.app.Search.Search(r.Context(), query, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":      results,
		"default_view": search.SelectDefaultView(results),
	})
}

func (h *handler) resolveTag(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "raw")
	_, ok := h.app.Registry.Resolve(raw)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"raw":     raw,
		"matched": ok,
		"tag":     h.app.Registry.ResolveTag(raw),
	})
}

func (h *handler) nudges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := app.NudgeRequest{
		Text:    q.Get("text"),
		Limit:   queryInt(r, "limit", 0, maxListLimit),
		MaxTime: q.Get("max_time"),
		Energy:  q.Get("energy"),
	}
	for _, th := range strings.Split(q.Get("themes"), ",") {
		if th = strings.TrimSpace(th); th != "" {
			req.Themes = append(req.Themes, th)
		}
	}

	suggestions, err := h.app.SuggestNudges(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nudges": suggestions,
		"total":  len(suggestions),
	})
}

func (h *handler) bankedNudges(w http.ResponseWriter, r *http.Request) {
	banked, err := h.app.Store.BankedNudges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"banked": banked,
		"total":  len(banked),
	})
}

func (h *handler) bankNudge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid nudge id"})
		return
	}
	banked, err := h.app.BankNudge(r.Context(), id)
	if err != nil {
		if errors.Is(err, nudge.ErrUnknownNudge) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, banked)
}

func (h *handler) unbankNudge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid nudge id"})
		return
	}
	if err := h.app.UnbankNudge(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "nudge is not banked"})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) habitSuggestion(w http.ResponseWriter, r *http.Request) {
	sg, ok, err := h.app.HabitSuggestion(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var out *habits.Suggestion
	if ok {
		out = &sg
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestion": out})
}

func (h *handler) resolveHabit(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		if err := h.app.ResolveHabit(r.Context(), tag, accept); err != nil {
			if errors.Is(err, habits.ErrNoPendingSuggestion) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		status := "dismissed"
		if accept {
			status = "accepted"
		}
		writeJSON(w, http.StatusOK, map[string]string{"tag": tag, "status": status})
	}
}

func (h *handler) streaks(w http.ResponseWriter, r *http.Request) {
	streaks, trends, err := h.app.Streaks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"streaks": streaks,
		"trends":  trends,
	})
}

func (h *handler) getEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.app.Entry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeLookupError(w, err, "entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type conversationRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (h *handler) addConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	c, err := h.app.RecordConversation(r.Context(), req.UserID, req.Question, req.Answer)
	if err != nil {
		if errors.Is(err, store.ErrEmptyQuestion) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) conversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultHistoryLimit, store.MaxConversationsPerUser)
	history, err := h.app.Conversations(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if history == nil {
		history = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": history,
		"total":         len(history),
	})
}

func (h *handler) suggestedQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": app.SuggestedQuestions})
}

type checkInRequest struct {
	Date  string `json:"date"`
	Habit string `json:"habit"`
	Value string `json:"value"`
}

func (h *handler) checkIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format(habits.DateLayout)
	}
	if req.Value == "" {
		req.Value = "done"
	}
	e, err := h.app.CheckIn(r.Context(), req.Date, req.Habit, req.Value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handler) habitStatus(w http.ResponseWriter, r *http.Request) {
	tag, status, err := h.app.HabitStatus(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		writeLookupError(w, err, "tag was never suggested")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tag": tag, "status": string(status)})
}

// writeLookupError maps store.ErrNotFound to 404 and anything else to 500.
func writeLookupError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound})
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func queryInt(r *http.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
