// Package metric provides the Prometheus metrics registry for the hub.
//
// NewMetricsRegistry creates a dedicated prometheus.Registry with the Go and
// process collectors plus the hub's core Metrics: live alerts, alert
// transitions, notifications, per-stream frame counters, slow-consumer
// evictions, event bus throughput and NATS connectivity.
//
// Components take a *Metrics (usually registry.CoreMetrics()) and call its
// Record methods. A nil *Metrics is valid and records nothing, so tests and
// callers that run without metrics pass nil:
//
//	registry := metric.NewMetricsRegistry()
//	streams := stream.NewManager(stream.WithMetrics(registry.CoreMetrics()))
//	router.Handle("/metrics", registry.Handler())
//
// Component-specific collectors are registered with MetricsRegistry.Register,
// keyed by owner and name so duplicates are rejected before Prometheus sees
// them, and UnregisterOwner drops everything a component registered.
package metric
