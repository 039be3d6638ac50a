package metric

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/marinestreams/errors"
)

// MetricsRegistry owns the hub's prometheus.Registry. Besides the core
// Metrics it tracks collectors registered per owner, such as the ring
// buffer of one stream, so an owner can drop all of them when it goes away.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics

	mu     sync.Mutex
	owners map[string]map[string]prometheus.Collector
}

// NewMetricsRegistry creates a registry with the core metrics and the Go
// runtime and process collectors already registered.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		owners:             make(map[string]map[string]prometheus.Collector),
	}
	r.prometheusRegistry.MustRegister(r.Metrics.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the hub metrics. Safe on a nil registry, which returns nil
// metrics; every Record method on *Metrics tolerates a nil receiver.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	if r == nil {
		return nil
	}
	return r.Metrics
}

// Handler serves the registry in the Prometheus exposition format.
func (r *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{
		Registry:          r.prometheusRegistry,
		EnableOpenMetrics: true,
	})
}

// Register adds collector under owner and name. A name already taken by the
// same owner is rejected before Prometheus sees it; a descriptor clash with
// another owner comes back from Prometheus. Both are invalid errors.
func (r *MetricsRegistry) Register(owner, name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.owners[owner][name]; taken {
		return errors.WrapInvalid(
			fmt.Errorf("%s already registered by %s", name, owner),
			"MetricsRegistry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "MetricsRegistry", "Register", "prometheus conflict for "+name)
		}
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "register with prometheus")
	}

	if r.owners[owner] == nil {
		r.owners[owner] = make(map[string]prometheus.Collector)
	}
	r.owners[owner][name] = collector
	return nil
}

// Unregister removes one collector and reports whether it was registered.
func (r *MetricsRegistry) Unregister(owner, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	collector, ok := r.owners[owner][name]
	if !ok {
		return false
	}
	r.prometheusRegistry.Unregister(collector)
	delete(r.owners[owner], name)
	if len(r.owners[owner]) == 0 {
		delete(r.owners, owner)
	}
	return true
}

// UnregisterOwner removes everything owner registered and returns how many
// collectors were dropped.
func (r *MetricsRegistry) UnregisterOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.owners[owner]
	for _, collector := range owned {
		r.prometheusRegistry.Unregister(collector)
	}
	delete(r.owners, owner)
	return len(owned)
}
