package health

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Monitor holds the latest status of each component, either pushed with Set
// or collected from probes by Check and Run.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	probes   map[string]Probe
	failures map[string]int
	started  time.Time
	logger   *slog.Logger
}

// NewMonitor creates an empty monitor. A nil logger uses slog.Default.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		statuses: make(map[string]Status),
		probes:   make(map[string]Probe),
		failures: make(map[string]int),
		started:  time.Now(),
		logger:   logger.With("component", "health"),
	}
}

// AddProbe registers a probe evaluated by Check and Run.
func (m *Monitor) AddProbe(name string, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = probe
}

// Set records the state of name.
func (m *Monitor) Set(name string, state State, message string) {
	m.record(New(name, state, message))
}

// Check evaluates every probe once. State changes are logged.
func (m *Monitor) Check(ctx context.Context) {
	m.mu.RLock()
	probes := maps.Clone(m.probes)
	m.mu.RUnlock()

	for name, probe := range probes {
		m.record(FromProbe(name, probe(ctx)))
	}
}

func (m *Monitor) record(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := status.Component
	prev, seen := m.statuses[name]

	if status.IsHealthy() {
		m.failures[name] = 0
	} else {
		m.failures[name]++
	}

	metrics := &Metrics{
		Uptime:     time.Since(m.started),
		Failures:   m.failures[name],
		LastChange: status.Timestamp,
	}
	if seen && prev.Status == status.Status && prev.Metrics != nil {
		metrics.LastChange = prev.Metrics.LastChange
	}
	if seen && prev.Status != status.Status {
		m.logger.Info("Health changed", "probe", name, "from", prev.Status, "to", status.Status, "message", status.Message)
	}

	m.statuses[name] = status.WithMetrics(metrics)
}

// Run checks the probes every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Get retrieves the latest status of name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	return status, ok
}

// Remove forgets name and its probe.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	delete(m.probes, name)
	delete(m.failures, name)
}

// Components returns the monitored names in sorted order.
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.statuses))
}

// AggregateHealth folds every component into one status for systemName,
// sub-statuses sorted by component.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subs := slices.Collect(maps.Values(m.statuses))
	m.mu.RUnlock()

	slices.SortFunc(subs, func(a, b Status) int { return strings.Compare(a.Component, b.Component) })
	return Aggregate(systemName, subs)
}
