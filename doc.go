// Package pulse provides an instrumented HTTP metrics service: request
// instrumentation, system resource sampling, Prometheus exposition, and
// derived analytics (health scoring, alerting, trend classification).
//
// # Architecture
//
// Pulse is organized as a pipeline from raw observation to derived signal:
//
//	┌─────────────────────────────────────┐
//	│          Middleware                 │  Labels every request with
//	│   (method, endpoint, status)        │  route-template endpoints
//	└─────────────────────────────────────┘
//	           ↓ records into
//	┌─────────────────────────────────────┐
//	│        Metric Registry              │  Counters, gauges, histograms
//	│   (wraps prometheus registry)       │  under one snapshot surface
//	└─────────────────────────────────────┘
//	           ↓ snapshots feed
//	┌─────────────────────────────────────┐
//	│        Analytics Engine             │  Rates, percentiles, health
//	│  (score, alerts, trends, export)    │  score, threshold alerts
//	└─────────────────────────────────────┘
//
// The system sampler runs beside the middleware, reading process CPU,
// memory, file-descriptor, and GC state into the registry on a fixed
// cadence so the exposition endpoint and the analytics engine see both
// traffic and resource signals.
//
// # Packages
//
//   - metric: registry, core collectors, text exposition
//   - sampler: procfs and runtime sampling
//   - middleware: HTTP request instrumentation
//   - analytics: derived metrics, health score, alerts, trends
//   - health: liveness/readiness probes and status aggregation
//   - api: demo data CRUD surface generating instrumented traffic
//   - service: wiring and server lifecycle
//   - config: configuration loading and validation
//   - errors: classified error handling
//
// The cmd/pulse binary assembles these into a single HTTP server.
package pulse
