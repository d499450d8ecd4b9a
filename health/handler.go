package health

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/pulse/config"
	"github.com/c360/pulse/errors"
	"github.com/c360/pulse/metric"
	"github.com/c360/pulse/sampler"
)

// minReadyUptime is how long the process must have been up before the
// readiness probe reports ready, so load balancers do not route to an
// instance still warming up.
const minReadyUptime = 5 * time.Second

// UptimeInfo reports process uptime in machine and human forms
type UptimeInfo struct {
	Seconds  float64 `json:"seconds"`
	Readable string  `json:"readable"`
}

// SystemInfo is the system slice of a detailed health report
type SystemInfo struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemPercent  float64 `json:"memory_percent"`
	MemoryRSSMB float64 `json:"memory_rss_mb"`
	Threads     int     `json:"threads"`
}

// HTTPInfo is the request-traffic slice of a detailed health report
type HTTPInfo struct {
	ActiveRequests float64 `json:"active_requests"`
	TotalRequests  float64 `json:"total_requests"`
	ErrorRequests  float64 `json:"error_requests"`
}

// DetailedReport is the full health report with system and traffic state
type DetailedReport struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Uptime    UptimeInfo `json:"uptime"`
	System    SystemInfo `json:"system"`
	HTTP      HTTPInfo   `json:"http"`
	Issues    []string   `json:"issues"`
	Version   string     `json:"version"`
}

// Handler serves the health and probe endpoints
type Handler struct {
	registry   *metric.Registry
	sampler    *sampler.Sampler
	checker    *Checker
	thresholds config.Thresholds
	version    string
	logger     *slog.Logger
}

// NewHandler creates the health handler and registers the standard readiness
// checks: system metrics collection, HTTP metric gathering, and minimum uptime
func NewHandler(registry *metric.Registry, smp *sampler.Sampler, thresholds config.Thresholds, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		registry:   registry,
		sampler:    smp,
		checker:    NewChecker(),
		thresholds: thresholds,
		version:    version,
		logger:     logger,
	}

	h.checker.Register("metrics_collection", h.checkMetricsCollection)
	h.checker.Register("http_metrics", h.checkHTTPMetrics)
	h.checker.Register("uptime", h.checkUptime)

	return h
}

// Checker exposes the readiness checker so callers can register extra checks
func (h *Handler) Checker() *Checker {
	return h.checker
}

// RegisterHTTPHandlers registers the health endpoints on mux
func (h *Handler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /health/detailed", h.handleDetailed)
	mux.HandleFunc("GET /health/live", h.handleLive)
	mux.HandleFunc("GET /health/ready", h.handleReady)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": h.registry.Uptime().Seconds(),
		"version":        h.version,
	})
}

func (h *Handler) handleDetailed(w http.ResponseWriter, _ *http.Request) {
	summary, sampled := h.sampler.LastSummary()
	if !sampled {
		summary = h.sampler.SampleOnce()
	}
	traffic := h.trafficInfo()
	uptime := h.registry.Uptime()

	cpu := NewHealthy("cpu", "ok")
	if summary.CPUPercent > h.thresholds.CPUPercent {
		cpu = NewDegraded("cpu", fmt.Sprintf("High CPU usage: %.1f%%", summary.CPUPercent))
	}

	// Memory pressure on top of a CPU breach escalates past degraded.
	memory := NewHealthy("memory", "ok")
	if summary.MemoryPercent > h.thresholds.MemoryPercent {
		msg := fmt.Sprintf("High memory usage: %.1f%%", summary.MemoryPercent)
		if cpu.IsHealthy() {
			memory = NewDegraded("memory", msg)
		} else {
			memory = NewUnhealthy("memory", msg)
		}
	}

	load := NewHealthy("load", "ok")
	if traffic.ActiveRequests > h.thresholds.ActiveRequests {
		load = NewDegraded("load",
			fmt.Sprintf("High number of active requests: %.0f", traffic.ActiveRequests))
	}

	overall := Aggregate("system", []Status{cpu, memory, load})

	issues := []string{}
	for _, sub := range overall.SubStatuses {
		if !sub.IsHealthy() {
			issues = append(issues, sub.Message)
		}
	}

	h.writeJSON(w, http.StatusOK, DetailedReport{
		Status:    reportLabel(overall),
		Timestamp: time.Now().UTC(),
		Uptime: UptimeInfo{
			Seconds:  uptime.Seconds(),
			Readable: uptime.Truncate(time.Second).String(),
		},
		System: SystemInfo{
			CPUPercent:  summary.CPUPercent,
			MemPercent:  summary.MemoryPercent,
			MemoryRSSMB: summary.MemoryRSS / 1024 / 1024,
			Threads:     summary.Threads,
		},
		HTTP:    traffic,
		Issues:  issues,
		Version: h.version,
	})
}

func (h *Handler) handleLive(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	results, ready := h.checker.Run()

	checks := make(map[string]string, len(results))
	for name, status := range results {
		checks[name] = status.Message
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

// reportLabel maps the three-state status model onto the detailed report's
// vocabulary: unhealthy reads critical, degraded reads warning
func reportLabel(s Status) string {
	switch {
	case s.IsUnhealthy():
		return "critical"
	case s.IsDegraded():
		return "warning"
	default:
		return "healthy"
	}
}

// trafficInfo reduces a registry snapshot to the traffic counters the
// detailed report embeds
func (h *Handler) trafficInfo() HTTPInfo {
	var info HTTPInfo

	families, err := h.registry.Snapshot()
	if err != nil {
		h.logger.Warn("health traffic snapshot failed", "error", err)
		return info
	}

	for _, mf := range families {
		switch mf.GetName() {
		case "http_requests_total":
			for _, m := range mf.Metric {
				info.TotalRequests += m.Counter.GetValue()
			}
		case "http_request_errors_total":
			for _, m := range mf.Metric {
				info.ErrorRequests += m.Counter.GetValue()
			}
		case "http_requests_active":
			for _, m := range mf.Metric {
				info.ActiveRequests = m.Gauge.GetValue()
			}
		}
	}
	return info
}

func (h *Handler) checkMetricsCollection() error {
	if _, ok := h.sampler.LastSummary(); !ok {
		return errors.WrapTransient(errors.ErrSamplingFailed,
			"health", "checkMetricsCollection", "no system sample collected yet")
	}
	return nil
}

func (h *Handler) checkHTTPMetrics() error {
	if _, err := h.registry.Snapshot(); err != nil {
		return errors.WrapTransient(err, "health", "checkHTTPMetrics", "metric gather failed")
	}
	return nil
}

func (h *Handler) checkUptime() error {
	if up := h.registry.Uptime(); up <= minReadyUptime {
		return errors.WrapTransient(errors.ErrNotStarted,
			"health", "checkUptime", fmt.Sprintf("uptime %.1fs below minimum", up.Seconds()))
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode health response", "error", err)
	}
}
