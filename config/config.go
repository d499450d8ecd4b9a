// Package config defines the application configuration for pulse and its
// loading and validation rules. Configuration is a small fixed JSON document;
// every tunable the analytics engine uses (thresholds, weights, windows) lives
// here so operators can adjust scoring without code changes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/c360/pulse/errors"
)

// Comparator values accepted by alert thresholds.
const (
	CompareGreater = ">"
	CompareLess    = "<"
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Duration is a time.Duration that unmarshals from JSON as a Go duration
// string ("30s", "5m") or as a bare number of seconds. Bare nanosecond
// values are never accepted; a numeric 300 always means five minutes.
type Duration time.Duration

// Std converts to the standard library representation
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON renders the duration in string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts duration strings or numeric seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Duration", "UnmarshalJSON",
				fmt.Sprintf("invalid duration %q", v))
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Duration", "UnmarshalJSON",
			fmt.Sprintf("duration must be a string or seconds, got %T", raw))
	}
	return nil
}

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `json:"app"`
	Server    ServerConfig    `json:"server"`
	Metrics   MetricsConfig   `json:"metrics"`
	Analytics AnalyticsConfig `json:"analytics"`
	Alerts    []AlertRule     `json:"alerts,omitempty"`
}

// AppConfig defines application identity
type AppConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// MetricsConfig defines metric collection behavior
type MetricsConfig struct {
	Path                 string  `json:"path"`
	CollectionInterval   int     `json:"collection_interval_seconds"`
	EnableSystemMetrics  bool    `json:"enable_system_metrics"`
	SlowRequestThreshold float64 `json:"slow_request_threshold_seconds"`
	// DurationBuckets are the upper bounds for the request duration histogram,
	// in seconds, ascending.
	DurationBuckets []float64 `json:"request_duration_buckets,omitempty"`
	// SizeBuckets are the upper bounds for request/response byte-size
	// histograms, ascending.
	SizeBuckets  []float64 `json:"size_buckets,omitempty"`
	ExcludePaths []string  `json:"exclude_paths,omitempty"`
}

// Thresholds are the levels above which a signal is considered unhealthy.
type Thresholds struct {
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryPercent    float64 `json:"memory_percent"`
	ErrorRatePercent float64 `json:"error_rate_percent"`
	LatencyP95       float64 `json:"response_time_p95_seconds"`
	ActiveRequests   float64 `json:"active_requests"`
}

// Weights control how much each breached signal subtracts from the composite
// health score. They are normalized at scoring time, so only ratios matter.
type Weights struct {
	CPU       float64 `json:"cpu"`
	Memory    float64 `json:"memory"`
	ErrorRate float64 `json:"error_rate"`
	Latency   float64 `json:"latency"`
	Load      float64 `json:"load"`
}

// AnalyticsConfig defines derived-analytics behavior
type AnalyticsConfig struct {
	Thresholds Thresholds `json:"thresholds"`
	Weights    Weights    `json:"weights"`
	// RateWindow bounds how far back counter samples are retained for
	// rate() computations.
	RateWindow Duration `json:"rate_window"`
	// TrendDeadBandPercent is the +/- band within which a metric is
	// classified as stable rather than improving or degrading.
	TrendDeadBandPercent float64 `json:"trend_dead_band_percent"`
	// TrendHistoryDepth is the number of analytics samples retained for
	// trend comparison.
	TrendHistoryDepth int `json:"trend_history_depth"`
}

// AlertRule is a static threshold evaluated by the analytics engine against
// the latest sampled or derived value for its metric key.
type AlertRule struct {
	MetricKey  string  `json:"metric_key"`
	Comparator string  `json:"comparator"`
	Limit      float64 `json:"limit"`
	Severity   string  `json:"severity"`
}

// DefaultConfig returns a configuration with production defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "pulse",
			Version: "1.0.0",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8000,
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Metrics: MetricsConfig{
			Path:                 "/metrics",
			CollectionInterval:   10,
			EnableSystemMetrics:  true,
			SlowRequestThreshold: 1.0,
			DurationBuckets: []float64{
				0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 25.0, 50.0, 100.0,
			},
			SizeBuckets: []float64{
				1, 10, 100, 1000, 10000, 100000, 1000000, 10000000,
			},
			ExcludePaths: []string{"/metrics"},
		},
		Analytics: AnalyticsConfig{
			Thresholds: Thresholds{
				CPUPercent:       80.0,
				MemoryPercent:    85.0,
				ErrorRatePercent: 5.0,
				LatencyP95:       2.0,
				ActiveRequests:   100,
			},
			Weights: Weights{
				CPU:       1.0,
				Memory:    1.0,
				ErrorRate: 2.0,
				Latency:   1.0,
				Load:      1.0,
			},
			RateWindow:           Duration(5 * time.Minute),
			TrendDeadBandPercent: 5.0,
			TrendHistoryDepth:    60,
		},
		Alerts: []AlertRule{
			{MetricKey: "cpu_percent", Comparator: CompareGreater, Limit: 80.0, Severity: SeverityWarning},
			{MetricKey: "cpu_percent", Comparator: CompareGreater, Limit: 95.0, Severity: SeverityCritical},
			{MetricKey: "memory_percent", Comparator: CompareGreater, Limit: 85.0, Severity: SeverityWarning},
			{MetricKey: "error_rate_percent", Comparator: CompareGreater, Limit: 5.0, Severity: SeverityCritical},
			{MetricKey: "active_requests", Comparator: CompareGreater, Limit: 100, Severity: SeverityWarning},
		},
	}
}

// Load reads configuration from a JSON file, layered over defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapFatal(errors.ErrConfigNotFound, "Config", "Load", path)
		}
		return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	if c.Metrics.CollectionInterval <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"collection_interval_seconds must be positive")
	}
	if c.Metrics.SlowRequestThreshold <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"slow_request_threshold_seconds must be positive")
	}
	if c.Metrics.Path == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"metrics path must not be empty")
	}
	if !sort.Float64sAreSorted(c.Metrics.DurationBuckets) {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"request_duration_buckets must be ascending")
	}
	if !sort.Float64sAreSorted(c.Metrics.SizeBuckets) {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"size_buckets must be ascending")
	}
	if c.Analytics.RateWindow <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"rate_window must be positive")
	}
	if c.Analytics.TrendDeadBandPercent < 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"trend_dead_band_percent must not be negative")
	}
	if c.Analytics.TrendHistoryDepth <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"trend_history_depth must be positive")
	}

	for _, th := range []struct {
		name  string
		value float64
	}{
		{"cpu_percent", c.Analytics.Thresholds.CPUPercent},
		{"memory_percent", c.Analytics.Thresholds.MemoryPercent},
		{"error_rate_percent", c.Analytics.Thresholds.ErrorRatePercent},
		{"response_time_p95_seconds", c.Analytics.Thresholds.LatencyP95},
		{"active_requests", c.Analytics.Thresholds.ActiveRequests},
	} {
		if th.value <= 0 {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("threshold %s must be positive", th.name))
		}
	}

	for i, rule := range c.Alerts {
		if rule.MetricKey == "" {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("alert rule %d has empty metric_key", i))
		}
		if rule.Comparator != CompareGreater && rule.Comparator != CompareLess {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("alert rule %s has invalid comparator %q", rule.MetricKey, rule.Comparator))
		}
		switch rule.Severity {
		case SeverityCritical, SeverityWarning, SeverityInfo:
		default:
			return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("alert rule %s has invalid severity %q", rule.MetricKey, rule.Severity))
		}
	}

	return nil
}

// CollectionPeriod returns the sampler interval as a duration
func (c *Config) CollectionPeriod() time.Duration {
	return time.Duration(c.Metrics.CollectionInterval) * time.Second
}
