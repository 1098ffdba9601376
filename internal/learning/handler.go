package learning

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/pkg/handlers"
	"github.com/wardenhq/warden/pkg/routes"
)

// Handler provides HTTP endpoints for the learning subsystem.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "learning"),
	}
}

// Routes returns the route group definition for learning endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/learning",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/feedback", Handler: h.Feedback},
			{Method: "GET", Pattern: "/queue", Handler: h.Queue},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats},
			{Method: "GET", Pattern: "/patterns", Handler: h.Patterns},
			{Method: "GET", Pattern: "/examples", Handler: h.Examples},
			{Method: "GET", Pattern: "/entries", Handler: h.Entries},
		},
	}
}

// Feedback records a reviewer verdict, applies it to the classification
// result, and appends it to the permanent correction ledger.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var review Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	entry, err := h.sys.Record(r.Context(), review)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, entry)
}

// Queue lists classification results awaiting human review.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	items, err := h.sys.Queue(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if items == nil {
		items = []QueueItem{}
	}
	handlers.RespondJSON(w, http.StatusOK, items)
}

// Stats returns summary statistics about the learning system.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.Stats(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

// Patterns returns the full analysis derived from the correction ledger.
func (h *Handler) Patterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.sys.Patterns(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, patterns)
}

// Examples returns few-shot examples for the category query parameter,
// capped by the optional limit parameter (default 3).
func (h *Handler) Examples(w http.ResponseWriter, r *http.Request) {
	cat, err := category.Parse(r.URL.Query().Get("category"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	limit := 3
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFeedback)
			return
		}
		limit = parsed
	}

	examples, err := h.sys.FewShot(r.Context(), cat, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if examples == nil {
		examples = []Example{}
	}
	handlers.RespondJSON(w, http.StatusOK, examples)
}

// Entries returns the full correction ledger, oldest first.
func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sys.Entries(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if entries == nil {
		entries = []Entry{}
	}
	handlers.RespondJSON(w, http.StatusOK, entries)
}
