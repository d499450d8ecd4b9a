package metric

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pulse/errors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(DefaultOptions(), nil)
}

func TestNewRegistry(t *testing.T) {
	registry := newTestRegistry(t)

	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.Core())
	assert.False(t, registry.StartTime().IsZero())

	// Core metrics are registered up front
	families, err := registry.Snapshot()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["http_requests_active"])
	assert.True(t, names["app_start_time_seconds"])
}

func TestRegistry_RegisterCounter(t *testing.T) {
	registry := newTestRegistry(t)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	err := registry.RegisterCounter("test_counter", counter)
	require.NoError(t, err)

	counter.Inc()

	families, err := registry.Snapshot()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "test_counter" {
			found = true
			assert.Equal(t, 1.0, mf.Metric[0].Counter.GetValue())
		}
	}
	assert.True(t, found, "counter should appear in snapshot")
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	registry := newTestRegistry(t)

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "idempotent_gauge",
		Help: "A gauge",
	})

	require.NoError(t, registry.RegisterGauge("idempotent_gauge", gauge))

	// Registering the exact same collector again is a no-op
	require.NoError(t, registry.RegisterGauge("idempotent_gauge", gauge))
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	registry := newTestRegistry(t)

	first := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter",
		Help: "First",
	})
	second := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter",
		Help: "First",
	})

	require.NoError(t, registry.RegisterCounter("dup_counter", first))

	err := registry.RegisterCounter("dup_counter", second)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateMetric)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_RegisterVecKinds(t *testing.T) {
	registry := newTestRegistry(t)

	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vec_counter", Help: "v",
	}, []string{"label"})
	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vec_gauge", Help: "v",
	}, []string{"label"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "plain_histogram", Help: "v", Buckets: prometheus.DefBuckets,
	})
	histogramVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "vec_histogram", Help: "v", Buckets: prometheus.DefBuckets,
	}, []string{"label"})

	require.NoError(t, registry.RegisterCounterVec("vec_counter", counterVec))
	require.NoError(t, registry.RegisterGaugeVec("vec_gauge", gaugeVec))
	require.NoError(t, registry.RegisterHistogram("plain_histogram", histogram))
	require.NoError(t, registry.RegisterHistogramVec("vec_histogram", histogramVec))

	counterVec.WithLabelValues("a").Inc()
	gaugeVec.WithLabelValues("a").Set(3)
	histogram.Observe(0.2)
	histogramVec.WithLabelValues("a").Observe(0.2)

	families, err := registry.Snapshot()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(families), 4)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := newTestRegistry(t)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "removable_counter",
		Help: "c",
	})
	require.NoError(t, registry.RegisterCounter("removable_counter", counter))

	assert.True(t, registry.Unregister("removable_counter"))
	assert.False(t, registry.Unregister("removable_counter"))
	assert.False(t, registry.Unregister("never_registered"))
}

func TestRegistry_AddCounter(t *testing.T) {
	registry := newTestRegistry(t)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delta_counter",
		Help: "c",
	})
	require.NoError(t, registry.RegisterCounter("delta_counter", counter))

	require.NoError(t, registry.AddCounter(counter, 2.5))
	require.NoError(t, registry.AddCounter(counter, 0))
	assert.Equal(t, 2.5, testutil.ToFloat64(counter))
}

func TestRegistry_AddCounter_NegativeDeltaDropped(t *testing.T) {
	registry := newTestRegistry(t)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guarded_counter",
		Help: "c",
	})
	require.NoError(t, registry.RegisterCounter("guarded_counter", counter))
	require.NoError(t, registry.AddCounter(counter, 5))

	// The negative increment is rejected and must not change the value
	// or panic.
	err := registry.AddCounter(counter, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidDelta)
	assert.Equal(t, 5.0, testutil.ToFloat64(counter))
}

func TestRegistry_ConcurrentIncrements(t *testing.T) {
	registry := newTestRegistry(t)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stress_counter",
		Help: "c",
	})
	require.NoError(t, registry.RegisterCounter("stress_counter", counter))

	const goroutines = 100
	const perGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				counter.Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(goroutines*perGoroutine), testutil.ToFloat64(counter),
		"concurrent increments must not lose updates")
}

func TestHistogramBucketSemantics(t *testing.T) {
	registry := newTestRegistry(t)

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bucketed",
		Help:    "h",
		Buckets: []float64{10, 50, 100},
	})
	require.NoError(t, registry.RegisterHistogram("bucketed", histogram))

	histogram.Observe(30)

	families, err := registry.Snapshot()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "bucketed" {
			continue
		}
		h := mf.Metric[0].Histogram
		require.NotNil(t, h)

		assert.Equal(t, uint64(1), h.GetSampleCount())
		assert.Equal(t, 30.0, h.GetSampleSum())

		// Cumulative le semantics: every bucket with boundary >= 30 counts
		// the observation.
		byBound := make(map[float64]uint64)
		var prev uint64
		for _, b := range h.Bucket {
			byBound[b.GetUpperBound()] = b.GetCumulativeCount()
			assert.GreaterOrEqual(t, b.GetCumulativeCount(), prev,
				"bucket counts must be non-decreasing in boundary order")
			prev = b.GetCumulativeCount()
		}
		assert.Equal(t, uint64(0), byBound[10])
		assert.Equal(t, uint64(1), byBound[50])
		assert.Equal(t, uint64(1), byBound[100])
	}
}

func TestRecordHelpers(t *testing.T) {
	registry := newTestRegistry(t)
	core := registry.Core()

	core.RecordRequestStart()
	assert.Equal(t, 1.0, testutil.ToFloat64(core.HTTPRequestsActive))

	core.RecordRequest("GET", "/api/v1/data", "200", 250*time.Millisecond)
	core.RecordRequestSize("GET", "/api/v1/data", 128)
	core.RecordResponseSize("GET", "/api/v1/data", "200", 512)
	core.RecordRequestError("GET", "/api/v1/data", ErrorTypeClient)
	core.RecordSlowRequest("GET", "/api/v1/data")

	core.RecordRequestFinish()
	assert.Equal(t, 0.0, testutil.ToFloat64(core.HTTPRequestsActive))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/data", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestErrors.WithLabelValues("GET", "/api/v1/data", ErrorTypeClient)))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPSlowRequests.WithLabelValues("GET", "/api/v1/data")))
}

func TestRegistry_SetAppInfo(t *testing.T) {
	registry := newTestRegistry(t)
	registry.SetAppInfo("pulse", "1.0.0")

	families, err := registry.Snapshot()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "app_info" {
			found = true
			require.Len(t, mf.Metric, 1)
			assert.Equal(t, 1.0, mf.Metric[0].Gauge.GetValue())
		}
	}
	assert.True(t, found)
}
