package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Handler exposes the engine's derived analytics over HTTP as JSON
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

// NewHandler creates the analytics HTTP handler
func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// RegisterHTTPHandlers registers the analytics endpoints on mux
func (h *Handler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /metrics/summary", h.handleSummary)
	mux.HandleFunc("GET /metrics/health-score", h.handleHealthScore)
	mux.HandleFunc("GET /metrics/alerts", h.handleAlerts)
	mux.HandleFunc("GET /metrics/trends", h.handleTrends)
	mux.HandleFunc("GET /metrics/export", h.handleExport)
	mux.HandleFunc("GET /metrics/queries", h.handleQueries)
}

func (h *Handler) handleSummary(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, h.engine.Summary())
}

func (h *Handler) handleHealthScore(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, h.engine.HealthScore())
}

func (h *Handler) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, h.engine.Alerts())
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	window := 5 * time.Minute
	if raw := r.URL.Query().Get("window_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			http.Error(w, "window_minutes must be a positive integer", http.StatusBadRequest)
			return
		}
		window = time.Duration(minutes) * time.Minute
	}
	h.writeJSON(w, h.engine.Trends(window))
}

func (h *Handler) handleExport(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, h.engine.Export())
}

func (h *Handler) handleQueries(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]any{
		"description": "Example Prometheus queries for monitoring this application",
		"queries":     QueryExamples(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode analytics response", "error", err)
	}
}
