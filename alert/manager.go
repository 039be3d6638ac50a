package alert

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/eventbus"
)

// ListParams filters List. The filters are not combined: Priority wins over
// Unack, and Top then keeps the last N matches in insertion order.
type ListParams struct {
	Priority *Priority
	// Unack is truthy when present and not "0".
	Unack *string
	Top   *int
}

// Manager owns the live alerts.
type Manager struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	order  []string

	bus    eventbus.Bus
	cfg    *settings
	logger *slog.Logger
}

// NewManager creates an empty registry. Alerts created through Raise and MOB
// inherit opts.
func NewManager(bus eventbus.Bus, opts ...Option) *Manager {
	cfg := newSettings(opts)
	return &Manager{
		alerts: make(map[string]*Alert),
		bus:    bus,
		cfg:    cfg,
		logger: cfg.logger.With("component", "alert.manager"),
	}
}

// Raise creates an alert at priority and registers it.
func (m *Manager) Raise(priority Priority, md *MetaData) (*Alert, error) {
	a, err := newAlert(m.bus, priority, md, m.cfg)
	if err != nil {
		return nil, err
	}
	m.Add(a)
	return a, nil
}

// MOB raises a man-overboard alert: emergency priority under notifications.mob.
func (m *Manager) MOB(md MetaData) (*Alert, error) {
	md.Path = "mob"
	return m.Raise(PriorityEmergency, &md)
}

// Add registers a and returns its id.
func (m *Manager) Add(a *Alert) string {
	m.mu.Lock()
	if _, exists := m.alerts[a.id]; !exists {
		m.order = append(m.order, a.id)
	}
	m.alerts[a.id] = a
	n := len(m.alerts)
	m.mu.Unlock()

	m.cfg.metrics.SetAlertsLive(n)
	m.logger.Debug("Alert added", "alert_id", a.id, "live", n)
	return a.id
}

// Get returns the alert with id.
func (m *Manager) Get(id string) (*Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	return a, ok
}

// Len returns the number of live alerts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

// snapshot returns the alerts in insertion order.
func (m *Manager) snapshot() []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Alert, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.alerts[id])
	}
	return out
}

// List returns id → snapshot for the alerts matching p.
func (m *Manager) List(p ListParams) map[string]Value {
	var matched []Value
	for _, a := range m.snapshot() {
		v := a.Value()
		switch {
		case p.Priority != nil:
			if v.Priority == *p.Priority {
				matched = append(matched, v)
			}
		case p.Unack != nil && *p.Unack != "0":
			if v.Priority.audible() && !v.Acknowledged {
				matched = append(matched, v)
			}
		default:
			matched = append(matched, v)
		}
	}

	if p.Top != nil && *p.Top > 0 && len(matched) > *p.Top {
		matched = matched[len(matched)-*p.Top:]
	}

	out := make(map[string]Value, len(matched))
	for _, v := range matched {
		out[v.ID] = v
	}
	return out
}

// Delete destroys and removes a normal alert. An abnormal alert is left in
// place and ErrAlertActive is returned; an unknown id is a no-op.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	a, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if !m.removeIfNormal(id, a) {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlertActive, "Manager", "Delete", "remove alert "+id)
	}
	n := len(m.alerts)
	m.mu.Unlock()

	m.cfg.metrics.SetAlertsLive(n)
	m.logger.Debug("Alert deleted", "alert_id", id, "live", n)
	return nil
}

// AckAll acknowledges every live alert.
func (m *Manager) AckAll() {
	for _, a := range m.snapshot() {
		a.Ack()
	}
}

// SilenceAll silences every alert that can be silenced and returns how many were.
func (m *Manager) SilenceAll() int {
	n := 0
	for _, a := range m.snapshot() {
		if a.Silence() {
			n++
		}
	}
	return n
}

// Clean removes every resolved alert and returns how many were removed.
func (m *Manager) Clean() int {
	removed := 0

	m.mu.Lock()
	for _, id := range slices.Clone(m.order) {
		if m.removeIfNormal(id, m.alerts[id]) {
			removed++
		}
	}
	n := len(m.alerts)
	m.mu.Unlock()

	m.cfg.metrics.SetAlertsLive(n)
	if removed > 0 {
		m.logger.Info("Cleaned resolved alerts", "removed", removed, "live", n)
	}
	return removed
}

// Close cancels every pending timer. The alerts stay readable.
func (m *Manager) Close() {
	for _, a := range m.snapshot() {
		a.Destroy()
	}
}

// removeIfNormal unregisters a and cancels its timers if it is back to
// normal. The alert's lock is held from the check to the removal, so a
// concurrent priority change either lands first and keeps the alert or
// applies to an alert that is already gone. Called with m.mu held.
func (m *Manager) removeIfNormal(id string, a *Alert) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.process != ProcessNormal {
		return false
	}
	m.removeLocked(id)
	a.clearPendingTimers()
	return true
}

func (m *Manager) removeLocked(id string) {
	delete(m.alerts, id)
	if i := slices.Index(m.order, id); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}
