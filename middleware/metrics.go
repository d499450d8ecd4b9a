// Package middleware provides HTTP request instrumentation. Every inbound
// request is measured for latency, size, and outcome, and recorded into the
// metric registry. Metrics failures never affect the business response.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c360/pulse/metric"
)

// RouteNotFound is the endpoint label recorded for requests that matched no
// route template, keeping label cardinality bounded.
const RouteNotFound = "not_found"

// Metrics instruments an http.Handler with request metrics
type Metrics struct {
	core          *metric.Metrics
	logger        *slog.Logger
	slowThreshold float64
	exclude       map[string]struct{}
}

// Config controls instrumentation behavior
type Config struct {
	// SlowRequestThreshold in seconds; requests slower than this increment
	// the slow-request counter.
	SlowRequestThreshold float64
	// ExcludePaths are request paths that bypass metrics collection
	// entirely (the metrics endpoint itself by default).
	ExcludePaths []string
}

// New creates request instrumentation bound to the registry's core metrics
func New(registry *metric.Registry, cfg Config, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SlowRequestThreshold <= 0 {
		cfg.SlowRequestThreshold = 1.0
	}

	exclude := make(map[string]struct{}, len(cfg.ExcludePaths))
	for _, p := range cfg.ExcludePaths {
		exclude[p] = struct{}{}
	}

	return &Metrics{
		core:          registry.Core(),
		logger:        logger,
		slowThreshold: cfg.SlowRequestThreshold,
		exclude:       exclude,
	}
}

// statusRecorder captures the response status and body size as they are
// written downstream
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int64
	wroteHd bool
}

func (sr *statusRecorder) WriteHeader(status int) {
	if !sr.wroteHd {
		sr.status = status
		sr.wroteHd = true
	}
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHd {
		sr.status = http.StatusOK
		sr.wroteHd = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Wrap returns a handler that records metrics around next.
//
// The active-request gauge is incremented before dispatch and decremented in
// a deferred block, so the release runs on every exit path: normal return,
// handler panic, or client disconnect mid-write.
func (m *Metrics) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, skip := m.exclude[r.URL.Path]; skip {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		m.core.RecordRequestStart()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if v := recover(); v != nil {
				// A handler panic maps to 500 unless a more specific
				// status was already written.
				status := http.StatusInternalServerError
				if rec.wroteHd {
					status = rec.status
				}
				m.finish(r, status, rec.bytes, start)
				m.core.RecordRequestFinish()

				m.logger.Error("handler panic",
					"method", r.Method, "path", r.URL.Path, "panic", v)
				if !rec.wroteHd {
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
				return
			}

			m.finish(r, rec.status, rec.bytes, start)
			m.core.RecordRequestFinish()
		}()

		next.ServeHTTP(rec, r)
	})
}

// finish records all terminal metrics for a completed request
func (m *Metrics) finish(r *http.Request, status int, responseBytes int64, start time.Time) {
	duration := time.Since(start)
	endpoint := m.endpointLabel(r)
	statusCode := strconv.Itoa(status)

	m.core.RecordRequest(r.Method, endpoint, statusCode, duration)

	if r.ContentLength > 0 {
		m.core.RecordRequestSize(r.Method, endpoint, float64(r.ContentLength))
	}
	m.core.RecordResponseSize(r.Method, endpoint, statusCode, float64(responseBytes))

	switch {
	case status >= 500:
		m.core.RecordRequestError(r.Method, endpoint, metric.ErrorTypeServer)
	case status >= 400:
		m.core.RecordRequestError(r.Method, endpoint, metric.ErrorTypeClient)
	}

	if duration.Seconds() > m.slowThreshold {
		m.core.RecordSlowRequest(r.Method, endpoint)
		m.logger.Warn("slow request",
			"method", r.Method, "endpoint", endpoint,
			"duration", duration, "threshold_seconds", m.slowThreshold)
	}
}

// endpointLabel resolves the route template for labeling. ServeMux populates
// r.Pattern during dispatch, so by finish time the template (not the raw
// path) is available; unmatched requests get the not_found sentinel.
func (m *Metrics) endpointLabel(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return RouteNotFound
	}

	// Patterns may carry a method prefix ("GET /api/v1/data/{id}") and an
	// exact-match marker ("/api/v1/{$}").
	if _, route, found := strings.Cut(pattern, " "); found {
		pattern = route
	}
	pattern = strings.TrimSuffix(pattern, "{$}")

	return normalizeEndpoint(pattern)
}

// normalizeEndpoint replaces purely numeric path segments with {id}. Route
// templates already use placeholders; this is a cardinality backstop for
// patterns that embed literal IDs.
func normalizeEndpoint(path string) string {
	if !strings.ContainsAny(path, "0123456789") {
		return path
	}

	parts := strings.Split(path, "/")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		if isDigits(part) {
			parts[i] = "{id}"
			changed = true
		}
	}
	if !changed {
		return path
	}
	return strings.Join(parts, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
