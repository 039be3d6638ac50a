package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/marinestreams/metric"
)

// ringMetrics mirrors Statistics into Prometheus. All methods are nil-safe.
type ringMetrics struct {
	registry *metric.MetricsRegistry
	prefix   string

	writes prometheus.Counter
	drops  prometheus.Counter
	size   prometheus.Gauge
}

func newRingMetrics(registry *metric.MetricsRegistry, prefix string) (*ringMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &ringMetrics{
		registry: registry,
		prefix:   prefix,
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "marinestreams",
			Subsystem:   "ring",
			Name:        "writes_total",
			ConstLabels: labels,
			Help:        "Items pushed into the ring",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "marinestreams",
			Subsystem:   "ring",
			Name:        "drops_total",
			ConstLabels: labels,
			Help:        "Items shed by the overflow policy",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "marinestreams",
			Subsystem:   "ring",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Items currently held",
		}),
	}

	var done []string
	for name, c := range map[string]prometheus.Collector{"ring_writes": m.writes, "ring_drops": m.drops, "ring_size": m.size} {
		if err := registry.Register(prefix, name, c); err != nil {
			for _, n := range done {
				registry.Unregister(prefix, n)
			}
			return nil, err
		}
		done = append(done, name)
	}
	return m, nil
}

func (m *ringMetrics) recordWrite(size int) {
	if m == nil {
		return
	}
	m.writes.Inc()
	m.size.Set(float64(size))
}

func (m *ringMetrics) recordDrop() {
	if m == nil {
		return
	}
	m.drops.Inc()
}

func (m *ringMetrics) recordSize(size int) {
	if m == nil {
		return
	}
	m.size.Set(float64(size))
}

func (m *ringMetrics) unregister() {
	if m == nil {
		return
	}
	m.registry.UnregisterOwner(m.prefix)
}
