package metric

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/c360/pulse/errors"
)

// Registrar defines the interface for registering additional metrics beyond
// the core set
type Registrar interface {
	RegisterCounter(name string, counter prometheus.Counter) error
	RegisterGauge(name string, gauge prometheus.Gauge) error
	RegisterHistogram(name string, histogram prometheus.Histogram) error
	RegisterCounterVec(name string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(name string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(name string, histogramVec *prometheus.HistogramVec) error
	Unregister(name string) bool
}

// Registry manages the registration and lifecycle of all metric series. It is
// constructed once at process start and passed by reference to every writer
// and reader; there is no ambient global registry.
//
// Per-series mutation happens inside client_golang collectors, which use
// per-series atomics. The registry mutex guards only the name map used for
// duplicate detection, never the hot increment path.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	metrics            *Metrics
	registered         map[string]prometheus.Collector
	logger             *slog.Logger
	startTime          time.Time
	mu                 sync.RWMutex
}

// NewRegistry creates a new metrics registry with all core metrics registered
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		metrics:            NewMetrics(opts),
		registered:         make(map[string]prometheus.Collector),
		logger:             logger,
		startTime:          time.Now(),
	}

	// Core metrics registration conflicts are programming errors, fail fast.
	r.prometheusRegistry.MustRegister(r.metrics.collectors()...)
	r.metrics.StartTimeSeconds.Set(float64(r.startTime.UnixNano()) / 1e9)

	return r
}

// SetAppInfo publishes static process identity as an info-style series
func (r *Registry) SetAppInfo(name, version string) {
	r.metrics.AppInfo.WithLabelValues(
		name, version, runtime.Version(), fmt.Sprintf("%d", os.Getpid()),
	).Set(1)
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Core returns the core application metrics
func (r *Registry) Core() *Metrics {
	return r.metrics
}

// StartTime returns when the registry was created, which doubles as the
// process start marker for uptime computations
func (r *Registry) StartTime() time.Time {
	return r.startTime
}

// Uptime returns the elapsed time since process start
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

// Snapshot returns a point-in-time view of every registered series. Each
// series is consistent with itself; the set is not globally atomic across
// series, which exposition and analytics tolerate.
func (r *Registry) Snapshot() ([]*dto.MetricFamily, error) {
	families, err := r.prometheusRegistry.Gather()
	if err != nil {
		return nil, errors.WrapTransient(err, "Registry", "Snapshot", "gather metric families")
	}
	return families, nil
}

// register adds a collector under a unique name. Registration of the exact
// same collector under the same name is idempotent; a name collision with a
// different collector is rejected.
func (r *Registry) register(name, op string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.registered[name]; exists {
		if existing == collector {
			return nil
		}
		return errors.WrapInvalid(errors.ErrDuplicateMetric, "Registry", op,
			fmt.Sprintf("metric %s already registered with a different collector", name))
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			if alreadyRegErr.ExistingCollector == collector {
				r.registered[name] = collector
				return nil
			}
			return errors.WrapInvalid(errors.ErrDuplicateMetric, "Registry", op,
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "Registry", op, "register collector with prometheus")
	}

	r.registered[name] = collector
	return nil
}

// RegisterCounter registers a counter metric
func (r *Registry) RegisterCounter(name string, counter prometheus.Counter) error {
	return r.register(name, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric
func (r *Registry) RegisterGauge(name string, gauge prometheus.Gauge) error {
	return r.register(name, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric
func (r *Registry) RegisterHistogram(name string, histogram prometheus.Histogram) error {
	return r.register(name, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a counter vector metric
func (r *Registry) RegisterCounterVec(name string, counterVec *prometheus.CounterVec) error {
	return r.register(name, "RegisterCounterVec", counterVec)
}

// RegisterGaugeVec registers a gauge vector metric
func (r *Registry) RegisterGaugeVec(name string, gaugeVec *prometheus.GaugeVec) error {
	return r.register(name, "RegisterGaugeVec", gaugeVec)
}

// RegisterHistogramVec registers a histogram vector metric
func (r *Registry) RegisterHistogramVec(name string, histogramVec *prometheus.HistogramVec) error {
	return r.register(name, "RegisterHistogramVec", histogramVec)
}

// Unregister removes a metric from the registry
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	collector, exists := r.registered[name]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registered, name)
	}

	return success
}

// AddCounter increments a counter by delta. A negative delta would panic
// inside client_golang; it is rejected here, logged, and dropped so the
// request path never crashes on a caller bug.
func (r *Registry) AddCounter(counter prometheus.Counter, delta float64) error {
	if delta < 0 {
		err := errors.WrapInvalid(errors.ErrInvalidDelta, "Registry", "AddCounter",
			fmt.Sprintf("delta %f", delta))
		r.logger.Warn("dropping negative counter increment", "delta", delta, "error", err)
		return err
	}
	counter.Add(delta)
	return nil
}

var _ Registrar = (*Registry)(nil)
