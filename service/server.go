// Package service wires the metric registry, system sampler, analytics
// engine, and HTTP surfaces into one runnable server with graceful
// start/stop semantics.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/c360/pulse/analytics"
	"github.com/c360/pulse/api"
	"github.com/c360/pulse/config"
	"github.com/c360/pulse/errors"
	"github.com/c360/pulse/health"
	"github.com/c360/pulse/metric"
	"github.com/c360/pulse/middleware"
	"github.com/c360/pulse/sampler"
)

// Server owns the full application: registry, sampler, analytics engine,
// and the HTTP listener serving every endpoint group.
type Server struct {
	cfg    config.Config
	logger *slog.Logger

	registry *metric.Registry
	sampler  *sampler.Sampler
	engine   *analytics.Engine
	store    *api.Store
	handler  http.Handler

	mu     sync.Mutex // protects server and cancel
	server *http.Server
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a fully wired but not yet started server
func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := metric.NewRegistry(metric.Options{
		DurationBuckets: cfg.Metrics.DurationBuckets,
		SizeBuckets:     cfg.Metrics.SizeBuckets,
	}, logger)
	registry.SetAppInfo(cfg.App.Name, cfg.App.Version)

	smp := sampler.New(registry, cfg.CollectionPeriod(), logger)
	engine := analytics.New(registry, cfg.Analytics, cfg.Alerts, logger)
	store := api.NewStore()

	// Each completed system sample also advances the analytics engine, so
	// rate windows and trend history accumulate without any scraper.
	smp.OnSample(func(sampler.Summary) {
		engine.Sample()
	})

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		sampler:  smp,
		engine:   engine,
		store:    store,
	}
	s.handler = s.buildHandler()
	return s
}

// Registry exposes the metric registry for callers that register extra
// collectors before Start
func (s *Server) Registry() *metric.Registry {
	return s.registry
}

// Handler returns the fully wired HTTP handler, instrumentation included
func (s *Server) Handler() http.Handler {
	return s.handler
}

// buildHandler assembles the route table and wraps it with the
// instrumentation middleware
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	api.NewHandler(s.store, s.cfg.App.Name, s.cfg.App.Version, s.logger).RegisterHTTPHandlers(mux)
	health.NewHandler(s.registry, s.sampler, s.cfg.Analytics.Thresholds,
		s.cfg.App.Version, s.logger).RegisterHTTPHandlers(mux)
	analytics.NewHandler(s.engine, s.logger).RegisterHTTPHandlers(mux)

	// Exposition forces a fresh system sample so scrape-driven setups see
	// current gauges even without the background sampler.
	exposer := metric.NewExposer(s.registry, s.logger)
	metricsPath := s.cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle("GET "+metricsPath, metric.NewHandler(exposer, func() {
		if s.cfg.Metrics.EnableSystemMetrics {
			s.sampler.SampleOnce()
		} else {
			s.engine.Sample()
		}
	}, s.logger))

	mux.HandleFunc("GET /{$}", s.handleRoot)

	return middleware.New(s.registry, middleware.Config{
		SlowRequestThreshold: s.cfg.Metrics.SlowRequestThreshold,
		ExcludePaths:         s.cfg.Metrics.ExcludePaths,
	}, s.logger).Wrap(mux)
}

// handleRoot serves a small service index pointing at the endpoint groups
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{
		"service": s.cfg.App.Name,
		"version": s.cfg.App.Version,
		"endpoints": map[string]string{
			"api":     "/api/v1/",
			"health":  "/health",
			"metrics": s.cfg.Metrics.Path,
			"summary": "/metrics/summary",
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode root response", "error", err)
	}
}

// Start begins background sampling and serves HTTP until Stop is called.
// It blocks; a graceful Stop yields a nil return.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start",
			"cannot start server that is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	addr := net.JoinHostPort(s.cfg.Server.Host, fmt.Sprintf("%d", s.cfg.Server.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	if s.cfg.Metrics.EnableSystemMetrics {
		go func() {
			defer close(s.done)
			s.sampler.Run(ctx)
		}()
	} else {
		// The analytics engine still needs periodic samples to feed its
		// rate windows and trend history.
		go func() {
			defer close(s.done)
			s.runAnalyticsLoop(ctx)
		}()
	}

	s.logger.Info("server listening", "addr", addr, "metrics_path", s.cfg.Metrics.Path)

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to serve on %s", addr))
	}
	return nil
}

// runAnalyticsLoop advances the analytics engine on the collection cadence
// when the system sampler is disabled
func (s *Server) runAnalyticsLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CollectionPeriod())
	defer ticker.Stop()

	s.engine.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Sample()
		}
	}
}

// Stop shuts the server down gracefully, bounded by the configured shutdown
// timeout, and stops the background sampler
func (s *Server) Stop() error {
	s.mu.Lock()
	server := s.server
	cancel := s.cancel
	done := s.done
	s.server = nil
	s.cancel = nil
	s.mu.Unlock()

	if server == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Stop",
			"cannot stop server that is not running")
	}

	if cancel != nil {
		cancel()
	}

	timeout := s.cfg.Server.ShutdownTimeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	err := server.Shutdown(ctx)
	if done != nil {
		<-done
	}
	if err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.logger.Info("server stopped")
	return nil
}
