package metric

import (
	"log/slog"
	"net/http"
)

// Handler serves the metrics exposition endpoint. A pre-expose hook lets the
// service force a fresh system sample before serializing, matching scrape-time
// semantics for gauges that are otherwise updated on the sampler cadence.
type Handler struct {
	exposer   *Exposer
	preExpose func()
	logger    *slog.Logger
}

// NewHandler creates the exposition HTTP handler. preExpose may be nil.
func NewHandler(exposer *Exposer, preExpose func(), logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		exposer:   exposer,
		preExpose: preExpose,
		logger:    logger,
	}
}

// ServeHTTP implements http.Handler for GET /metrics
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.preExpose != nil {
		h.preExpose()
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	if err := h.exposer.Write(w); err != nil {
		// Headers are already out; all we can do is log. A registry that
		// cannot gather at all is a program-logic bug, not a runtime state.
		h.logger.Error("metrics exposition failed", "error", err)
	}
}
