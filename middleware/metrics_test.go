package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pulse/metric"
)

func newInstrumentedMux(t *testing.T, cfg Config) (*metric.Registry, *http.ServeMux, http.Handler) {
	t.Helper()

	registry := metric.NewRegistry(metric.DefaultOptions(), nil)
	mw := New(registry, cfg, nil)
	mux := http.NewServeMux()
	return registry, mux, mw.Wrap(mux)
}

func TestWrap_RecordsRequest(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{})
	mux.HandleFunc("GET /api/v1/data/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	core := registry.Core()
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/data/{id}", "200")),
		"endpoint label uses the route template, not the raw path")
	assert.Equal(t, 0.0, testutil.ToFloat64(core.HTTPRequestsActive))
}

func TestWrap_ExactMatchMarkerStripped(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{})
	mux.HandleFunc("GET /api/v1/{$}", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		registry.Core().HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/", "200")))
}

func TestWrap_NotFoundSentinel(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{})
	mux.HandleFunc("GET /known", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/no/such/route/12345", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	core := registry.Core()
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestsTotal.WithLabelValues("GET", RouteNotFound, "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestErrors.WithLabelValues("GET", RouteNotFound, metric.ErrorTypeClient)))
}

func TestWrap_ErrorClassification(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{})
	mux.HandleFunc("GET /client-error", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	mux.HandleFunc("GET /server-error", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	for _, path := range []string{"/client-error", "/server-error"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	core := registry.Core()
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestErrors.WithLabelValues("GET", "/client-error", metric.ErrorTypeClient)))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestErrors.WithLabelValues("GET", "/server-error", metric.ErrorTypeServer)))
}

func TestWrap_PanicRecordsServerError(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{})
	mux.HandleFunc("GET /panic", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, req)
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	core := registry.Core()
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestsTotal.WithLabelValues("GET", "/panic", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		core.HTTPRequestErrors.WithLabelValues("GET", "/panic", metric.ErrorTypeServer)))
	assert.Equal(t, 0.0, testutil.ToFloat64(core.HTTPRequestsActive),
		"active gauge must be released even when the handler panics")
}

func TestWrap_SlowRequest(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{SlowRequestThreshold: 0.01})
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	})

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		registry.Core().HTTPSlowRequests.WithLabelValues("GET", "/slow")))
}

func TestWrap_RequestAndResponseSizes(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{})
	mux.HandleFunc("POST /echo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	})

	body := strings.NewReader(`{"name":"item"}`)
	req := httptest.NewRequest(http.MethodPost, "/echo", body)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	families, err := registry.Snapshot()
	require.NoError(t, err)

	var reqCount, respCount uint64
	var respSum float64
	for _, mf := range families {
		switch mf.GetName() {
		case "http_request_size_bytes":
			reqCount = mf.Metric[0].Histogram.GetSampleCount()
		case "http_response_size_bytes":
			respCount = mf.Metric[0].Histogram.GetSampleCount()
			respSum = mf.Metric[0].Histogram.GetSampleSum()
		}
	}
	assert.Equal(t, uint64(1), reqCount)
	assert.Equal(t, uint64(1), respCount)
	assert.Equal(t, 10.0, respSum)
}

func TestWrap_ExcludedPath(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{ExcludePaths: []string{"/metrics"}})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	families, err := registry.Snapshot()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "http_requests_total" {
			assert.Empty(t, mf.Metric, "excluded paths record nothing")
		}
	}
}

func TestWrap_ActiveGaugeUnderConcurrency(t *testing.T) {
	registry, mux, handler := newInstrumentedMux(t, Config{})

	release := make(chan struct{})
	mux.HandleFunc("GET /hold", func(w http.ResponseWriter, r *http.Request) {
		<-release
	})

	const inflight = 25
	var wg sync.WaitGroup
	wg.Add(inflight)
	for i := 0; i < inflight; i++ {
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/hold", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}

	core := registry.Core()
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(core.HTTPRequestsActive) == float64(inflight)
	}, time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, 0.0, testutil.ToFloat64(core.HTTPRequestsActive),
		"active gauge returns to zero once all requests complete")
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/v1/data/{id}", "/api/v1/data/{id}"},
		{"/api/v1/data/123", "/api/v1/data/{id}"},
		{"/api/v1/data", "/api/v1/data"},
		{"/users/42/items/7", "/users/{id}/items/{id}"},
		{"/", "/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeEndpoint(tt.in), tt.in)
	}
}
