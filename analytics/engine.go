// Package analytics derives higher-level health signals from raw metric
// state: request rates, latency percentiles, error ratios, a composite
// health score, threshold alerts, and trend classification. The engine only
// ever reads registry snapshots; it never mutates metric state.
package analytics

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/c360/pulse/config"
	"github.com/c360/pulse/metric"
)

// Trend directions.
const (
	TrendImproving  = "improving"
	TrendDegrading  = "degrading"
	TrendStable     = "stable"
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
)

// Health status bands.
const (
	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusFair      = "fair"
	StatusPoor      = "poor"
	StatusCritical  = "critical"
)

// SummaryReport aggregates the current derived metrics
type SummaryReport struct {
	Timestamp            time.Time          `json:"timestamp"`
	UptimeSeconds        float64            `json:"uptime_seconds"`
	RequestRatePerSecond float64            `json:"request_rate_per_second"`
	ErrorRatePercent     float64            `json:"error_rate_percent"`
	ActiveRequests       float64            `json:"active_requests"`
	TotalRequests        float64            `json:"total_requests"`
	TotalErrors          float64            `json:"total_errors"`
	LatencyPercentiles   map[string]float64 `json:"latency_percentiles_seconds"`
	HealthScore          float64            `json:"health_score"`
	HealthStatus         string             `json:"health_status"`
}

// HealthReport is the composite health score with its component breakdown
type HealthReport struct {
	OverallScore    float64            `json:"overall_score"`
	Status          string             `json:"status"`
	ComponentScores map[string]float64 `json:"component_scores"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Alert is one breached or near-breached threshold
type Alert struct {
	MetricKey string  `json:"metric_key"`
	Severity  string  `json:"severity"`
	Value     float64 `json:"value"`
	Limit     float64 `json:"limit"`
	Message   string  `json:"message"`
}

// AlertReport lists current alert conditions against configured thresholds
type AlertReport struct {
	Active        []Alert            `json:"active"`
	Warnings      []Alert            `json:"warnings"`
	CurrentValues map[string]float64 `json:"current_values"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Trend classifies one tracked metric's direction over the window
type Trend struct {
	Metric        string  `json:"metric"`
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	ChangePercent float64 `json:"change_percent"`
	Direction     string  `json:"direction"`
}

// TrendReport is the trend classification for all tracked metrics
type TrendReport struct {
	WindowMinutes   float64   `json:"window_minutes"`
	Trends          []Trend   `json:"trends"`
	Recommendations []string  `json:"recommendations"`
	Timestamp       time.Time `json:"timestamp"`
}

// ExportReport is the comprehensive summary for external monitoring systems
type ExportReport struct {
	Timestamp         time.Time         `json:"timestamp"`
	UptimeSeconds     float64           `json:"uptime_seconds"`
	Summary           SummaryReport     `json:"summary"`
	HealthScore       HealthReport      `json:"health_score"`
	Alerts            AlertReport       `json:"alerts"`
	Trends            TrendReport       `json:"trends"`
	PrometheusQueries map[string]string `json:"prometheus_queries"`
}

// historyPoint is one retained analytics sample used for trend comparison
type historyPoint struct {
	at               time.Time
	requestRate      float64
	errorRatePercent float64
	p95              float64
}

// Engine computes derived analytics over registry snapshots
type Engine struct {
	registry *metric.Registry
	cfg      config.AnalyticsConfig
	rules    []config.AlertRule
	logger   *slog.Logger

	requests *RateWindow
	errs     *RateWindow

	mu      sync.Mutex
	history []historyPoint
}

// New creates an analytics engine reading from registry, with thresholds and
// weights taken from configuration rather than hardcoded constants
func New(registry *metric.Registry, cfg config.AnalyticsConfig, rules []config.AlertRule, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	// Publish the thresholds as gauges so dashboards can draw alert lines.
	core := registry.Core()
	core.CPUAlertThreshold.Set(cfg.Thresholds.CPUPercent)
	core.MemoryAlertThreshold.Set(cfg.Thresholds.MemoryPercent)

	return &Engine{
		registry: registry,
		cfg:      cfg,
		rules:    rules,
		logger:   logger,
		requests: NewRateWindow(cfg.RateWindow.Std()),
		errs:     NewRateWindow(cfg.RateWindow.Std()),
	}
}

// registryView is the subset of registry state the engine derives from
type registryView struct {
	totalRequests float64
	totalErrors   float64
	active        float64
	cpuPercent    float64
	memPercent    float64
	duration      Histogram
}

// view reads a fresh snapshot and reduces it to the tracked values
func (e *Engine) view() (registryView, error) {
	families, err := e.registry.Snapshot()
	if err != nil {
		return registryView{}, err
	}

	var v registryView
	for _, mf := range families {
		switch mf.GetName() {
		case "http_requests_total":
			for _, m := range mf.Metric {
				v.totalRequests += m.Counter.GetValue()
			}
		case "http_request_errors_total":
			for _, m := range mf.Metric {
				v.totalErrors += m.Counter.GetValue()
			}
		case "http_requests_active":
			for _, m := range mf.Metric {
				v.active = m.Gauge.GetValue()
			}
		case "app_cpu_usage_percent":
			for _, m := range mf.Metric {
				v.cpuPercent = m.Gauge.GetValue()
			}
		case "app_memory_usage_percent":
			for _, m := range mf.Metric {
				v.memPercent = m.Gauge.GetValue()
			}
		case "http_request_duration_seconds":
			for _, m := range mf.Metric {
				v.duration.Merge(histogramFromDTO(m.Histogram))
			}
		}
	}
	return v, nil
}

// Sample records one analytics observation: rate-window points for the
// request and error counters plus a history entry for trend comparison.
// Intended to run on the system sampler cadence.
func (e *Engine) Sample() {
	v, err := e.view()
	if err != nil {
		e.logger.Warn("analytics sample skipped", "error", err)
		return
	}

	now := time.Now()
	e.requests.Observe(now, v.totalRequests)
	e.errs.Observe(now, v.totalErrors)

	point := historyPoint{
		at:               now,
		requestRate:      e.requests.Rate(),
		errorRatePercent: e.errorRatePercent(v),
		p95:              finiteOrZero(v.duration.Quantile(0.95)),
	}

	e.mu.Lock()
	e.history = append(e.history, point)
	if depth := e.cfg.TrendHistoryDepth; depth > 0 && len(e.history) > depth {
		e.history = e.history[len(e.history)-depth:]
	}
	e.mu.Unlock()
}

// errorRatePercent prefers the windowed error/request rate ratio and falls
// back to the lifetime ratio before two window samples exist
func (e *Engine) errorRatePercent(v registryView) float64 {
	if reqRate := e.requests.Rate(); reqRate > 0 {
		return e.errs.Rate() / reqRate * 100
	}
	if v.totalRequests > 0 {
		return v.totalErrors / v.totalRequests * 100
	}
	return 0
}

// Summary returns the current derived metrics in one report
func (e *Engine) Summary() SummaryReport {
	v, err := e.view()
	if err != nil {
		e.logger.Error("summary snapshot failed", "error", err)
		return SummaryReport{Timestamp: time.Now()}
	}
	return e.summarize(v)
}

func (e *Engine) summarize(v registryView) SummaryReport {
	health := e.score(v)

	return SummaryReport{
		Timestamp:            time.Now(),
		UptimeSeconds:        e.registry.Uptime().Seconds(),
		RequestRatePerSecond: e.requests.Rate(),
		ErrorRatePercent:     e.errorRatePercent(v),
		ActiveRequests:       v.active,
		TotalRequests:        v.totalRequests,
		TotalErrors:          v.totalErrors,
		LatencyPercentiles: map[string]float64{
			"p50": finiteOrZero(v.duration.Quantile(0.50)),
			"p95": finiteOrZero(v.duration.Quantile(0.95)),
			"p99": finiteOrZero(v.duration.Quantile(0.99)),
		},
		HealthScore:  health.OverallScore,
		HealthStatus: health.Status,
	}
}

// HealthScore computes the composite 0-100 score
func (e *Engine) HealthScore() HealthReport {
	v, err := e.view()
	if err != nil {
		e.logger.Error("health score snapshot failed", "error", err)
		return HealthReport{Status: StatusCritical, Timestamp: time.Now()}
	}
	return e.score(v)
}

// score starts at 100 and subtracts weighted penalties for each signal above
// its threshold; penalties scale linearly with the excess and are capped at
// one full threshold's worth of excess per signal
func (e *Engine) score(v registryView) HealthReport {
	th := e.cfg.Thresholds
	w := e.cfg.Weights

	p95 := finiteOrZero(v.duration.Quantile(0.95))
	errPct := e.errorRatePercent(v)

	type signal struct {
		name      string
		value     float64
		threshold float64
		weight    float64
	}
	signals := []signal{
		{"cpu", v.cpuPercent, th.CPUPercent, w.CPU},
		{"memory", v.memPercent, th.MemoryPercent, w.Memory},
		{"error_rate", errPct, th.ErrorRatePercent, w.ErrorRate},
		{"latency", p95, th.LatencyP95, w.Latency},
		{"load", v.active, th.ActiveRequests, w.Load},
	}

	totalWeight := 0.0
	for _, s := range signals {
		totalWeight += s.weight
	}

	scores := make(map[string]float64, len(signals))
	overall := 100.0
	for _, s := range signals {
		excess := 0.0
		if s.threshold > 0 && s.value > s.threshold {
			excess = s.value/s.threshold - 1
			if excess > 1 {
				excess = 1
			}
		}
		scores[s.name] = round2(100 - excess*100)
		if totalWeight > 0 {
			overall -= s.weight / totalWeight * excess * 100
		}
	}

	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	return HealthReport{
		OverallScore:    round2(overall),
		Status:          statusForScore(overall),
		ComponentScores: scores,
		Timestamp:       time.Now(),
	}
}

func statusForScore(score float64) string {
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 75:
		return StatusGood
	case score >= 60:
		return StatusFair
	case score >= 40:
		return StatusPoor
	default:
		return StatusCritical
	}
}

// Alerts evaluates every configured threshold against the latest derived
// values and returns the breached subset plus an approaching-threshold
// warning band at 80% of each greater-than limit
func (e *Engine) Alerts() AlertReport {
	report := AlertReport{
		Active:    []Alert{},
		Warnings:  []Alert{},
		Timestamp: time.Now(),
	}

	v, err := e.view()
	if err != nil {
		e.logger.Error("alert snapshot failed", "error", err)
		return report
	}

	values := map[string]float64{
		"cpu_percent":               v.cpuPercent,
		"memory_percent":            v.memPercent,
		"error_rate_percent":        e.errorRatePercent(v),
		"active_requests":           v.active,
		"response_time_p95_seconds": finiteOrZero(v.duration.Quantile(0.95)),
		"request_rate_per_second":   e.requests.Rate(),
	}
	report.CurrentValues = values

	for _, rule := range e.rules {
		value, known := values[rule.MetricKey]
		if !known {
			e.logger.Warn("alert rule references unknown metric", "metric_key", rule.MetricKey)
			continue
		}

		switch rule.Comparator {
		case config.CompareGreater:
			if value > rule.Limit {
				report.Active = append(report.Active, breach(rule, value, "exceeds"))
			} else if value > rule.Limit*0.8 {
				warning := breach(rule, value, "approaching")
				warning.Severity = config.SeverityInfo
				report.Warnings = append(report.Warnings, warning)
			}
		case config.CompareLess:
			if value < rule.Limit {
				report.Active = append(report.Active, breach(rule, value, "below"))
			}
		}
	}

	return report
}

func breach(rule config.AlertRule, value float64, verb string) Alert {
	return Alert{
		MetricKey: rule.MetricKey,
		Severity:  rule.Severity,
		Value:     round2(value),
		Limit:     rule.Limit,
		Message: fmt.Sprintf("%s (%.1f) %s threshold (%.1f)",
			rule.MetricKey, value, verb, rule.Limit),
	}
}

// Trends compares current derived values against the history entry closest
// to the window boundary and classifies direction per metric with a dead
// band to avoid noise-driven flapping
func (e *Engine) Trends(window time.Duration) TrendReport {
	report := TrendReport{
		WindowMinutes: window.Minutes(),
		Timestamp:     time.Now(),
	}

	e.mu.Lock()
	current, previous, ok := e.bracketLocked(window)
	e.mu.Unlock()

	if !ok {
		report.Trends = []Trend{}
		report.Recommendations = []string{"Insufficient history for trend analysis"}
		return report
	}

	report.Trends = []Trend{
		e.classify("request_rate_per_second", current.requestRate, previous.requestRate, false),
		e.classify("error_rate_percent", current.errorRatePercent, previous.errorRatePercent, true),
		e.classify("response_time_p95_seconds", current.p95, previous.p95, true),
	}
	report.Recommendations = recommendations(current.requestRate, current.errorRatePercent)

	return report
}

// bracketLocked returns the newest history point and the retained point
// closest to window ago. Caller holds e.mu.
func (e *Engine) bracketLocked(window time.Duration) (current, previous historyPoint, ok bool) {
	if len(e.history) < 2 {
		return historyPoint{}, historyPoint{}, false
	}

	current = e.history[len(e.history)-1]
	cutoff := current.at.Add(-window)

	previous = e.history[0]
	for _, p := range e.history {
		if p.at.After(cutoff) {
			break
		}
		previous = p
	}
	return current, previous, true
}

// classify determines a trend direction. For lowerIsBetter metrics the
// directions read improving/degrading; throughput reads increasing/decreasing.
func (e *Engine) classify(name string, current, previous float64, lowerIsBetter bool) Trend {
	t := Trend{
		Metric:    name,
		Current:   round2(current),
		Previous:  round2(previous),
		Direction: TrendStable,
	}

	var changePct float64
	switch {
	case previous != 0:
		changePct = (current - previous) / math.Abs(previous) * 100
	case current != 0:
		changePct = math.Copysign(100, current-previous)
	}
	t.ChangePercent = round2(changePct)

	if math.Abs(changePct) <= e.cfg.TrendDeadBandPercent {
		return t
	}

	rising := changePct > 0
	if lowerIsBetter {
		if rising {
			t.Direction = TrendDegrading
		} else {
			t.Direction = TrendImproving
		}
	} else {
		if rising {
			t.Direction = TrendIncreasing
		} else {
			t.Direction = TrendDecreasing
		}
	}
	return t
}

func recommendations(requestRate, errorRatePercent float64) []string {
	var recs []string

	if requestRate > 100 {
		recs = append(recs,
			"Consider implementing request rate limiting",
			"Monitor for potential DDoS attacks")
	}
	if errorRatePercent > 5 {
		recs = append(recs,
			"Investigate high error rate - check application logs",
			"Consider implementing circuit breaker pattern")
	}
	if requestRate > 50 && errorRatePercent > 2 {
		recs = append(recs, "High traffic with elevated errors - scale horizontally")
	}
	if len(recs) == 0 {
		recs = append(recs, "System operating within normal parameters")
	}
	return recs
}

// Export assembles the comprehensive summary for external systems
func (e *Engine) Export() ExportReport {
	return ExportReport{
		Timestamp:         time.Now(),
		UptimeSeconds:     e.registry.Uptime().Seconds(),
		Summary:           e.Summary(),
		HealthScore:       e.HealthScore(),
		Alerts:            e.Alerts(),
		Trends:            e.Trends(5 * time.Minute),
		PrometheusQueries: QueryExamples(),
	}
}

// QueryExamples returns example PromQL queries against the exposed series,
// for operators wiring external dashboards
func QueryExamples() map[string]string {
	return map[string]string{
		"cpu_rate_5m":                "rate(app_cpu_seconds_total[5m])",
		"request_rate_5m":            "rate(http_requests_total[5m])",
		"error_rate_5m":              "rate(http_request_errors_total[5m]) / rate(http_requests_total[5m])",
		"p95_response_time":          "histogram_quantile(0.95, sum(rate(http_request_duration_seconds_bucket[5m])) by (le))",
		"p99_response_time":          "histogram_quantile(0.99, sum(rate(http_request_duration_seconds_bucket[5m])) by (le))",
		"memory_usage_mb":            "app_memory_resident_bytes / 1024 / 1024",
		"request_throughput_per_min": "rate(http_requests_total[1m]) * 60",
		"slow_requests_rate":         "rate(http_slow_requests_total[5m])",
		"status_code_distribution":   "sum(rate(http_requests_total[5m])) by (status_code)",
		"cpu_utilization_percent":    "rate(app_cpu_seconds_total[5m]) * 100",
		"active_requests":            "http_requests_active",
		"gc_collection_rate":         "rate(app_gc_collections_total[5m])",
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
