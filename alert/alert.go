package alert

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/marinestreams/delta"
	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/eventbus"
)

// Value is a point-in-time snapshot of an alert.
type Value struct {
	ID           string     `json:"id"`
	Created      time.Time  `json:"created"`
	Resolved     *time.Time `json:"resolved,omitempty"`
	Priority     Priority   `json:"priority"`
	Process      Process    `json:"process"`
	AlarmState   AlarmState `json:"alarmState"`
	Acknowledged bool       `json:"acknowledged"`
	Silenced     bool       `json:"silenced"`
	MetaData     MetaData   `json:"metaData"`
}

// Alert is one alarm with its own lifecycle. Every mutator runs under the
// alert's lock and emits a notification delta before returning, so
// notifications for one alert are ordered by call order.
type Alert struct {
	mu sync.Mutex

	id           string
	created      time.Time
	resolved     *time.Time
	priority     Priority
	process      Process
	alarmState   AlarmState
	acknowledged bool
	silenced     bool
	metaData     MetaData

	silenceTimer    *time.Timer
	escalationTimer *time.Timer

	bus eventbus.Bus
	cfg *settings
	log *slog.Logger
}

// New creates an alert and raises it at priority. A nil md gets a generated
// message.
func New(bus eventbus.Bus, priority Priority, md *MetaData, opts ...Option) (*Alert, error) {
	return newAlert(bus, priority, md, newSettings(opts))
}

func newAlert(bus eventbus.Bus, priority Priority, md *MetaData, cfg *settings) (*Alert, error) {
	if !priority.Valid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidPriority, priority), "Alert", "New", "validate priority")
	}

	a := &Alert{
		id:         uuid.NewString(),
		created:    cfg.now(),
		process:    ProcessNormal,
		alarmState: AlarmInactive,
		bus:        bus,
		cfg:        cfg,
	}
	a.log = cfg.logger.With("component", "alert", "alert_id", a.id)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.raiseLocked(priority, md)
	return a, nil
}

// ID returns the immutable alert id.
func (a *Alert) ID() string { return a.id }

// Value returns a snapshot.
func (a *Alert) Value() Value {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := Value{
		ID:           a.id,
		Created:      a.created,
		Priority:     a.priority,
		Process:      a.process,
		AlarmState:   a.alarmState,
		Acknowledged: a.acknowledged,
		Silenced:     a.silenced,
		MetaData:     a.metaData.Clone(),
	}
	if a.resolved != nil {
		r := *a.resolved
		v.Resolved = &r
	}
	return v
}

// CanRemove reports whether the alert has returned to normal.
func (a *Alert) CanRemove() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.process == ProcessNormal
}

// Destroy cancels pending timers without emitting.
func (a *Alert) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearPendingTimers()
}

// Raise replaces the metadata and applies priority. Raising at the current
// priority keeps the alarm state but still ends a silence and notifies.
func (a *Alert) Raise(priority Priority, md *MetaData) error {
	if !priority.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidPriority, priority), "Alert", "Raise", "validate priority")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raiseLocked(priority, md)
	return nil
}

func (a *Alert) raiseLocked(priority Priority, md *MetaData) {
	a.clearPendingTimers()
	if md != nil {
		a.metaData = md.Clone()
	} else {
		a.metaData = MetaData{
			SourceRef: DefaultSourceRef,
			Message:   fmt.Sprintf("Alert created at %s", a.created.UTC().Format(time.RFC1123)),
		}
	}
	a.record("raise")
	if priority == a.priority {
		// cleared silence and new metadata still need announcing
		a.notify()
		a.startEscalation()
		return
	}
	a.updatePriorityLocked(priority)
}

// UpdatePriority moves the alert to an unacknowledged abnormal state at p.
// Setting the current priority again changes nothing.
func (a *Alert) UpdatePriority(p Priority) error {
	if !p.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidPriority, p), "Alert", "UpdatePriority", "validate priority")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updatePriorityLocked(p)
	return nil
}

func (a *Alert) updatePriorityLocked(p Priority) {
	if p == a.priority {
		return
	}
	a.clearPendingTimers()

	a.priority = p
	a.process = ProcessAbnormal
	a.resolved = nil
	a.silenced = false
	a.acknowledged = false
	a.alarmState = alarmStateFor(p)

	a.record("priority")
	a.notify()
	a.startEscalation()
}

// Resolve returns the alert to normal.
func (a *Alert) Resolve() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearPendingTimers()

	now := a.cfg.now()
	a.alarmState = AlarmInactive
	a.process = ProcessNormal
	a.resolved = &now

	a.record("resolve")
	a.notify()
}

// Ack acknowledges the alert. The alarm state becomes active even if it was
// inactive before.
func (a *Alert) Ack() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearPendingTimers()

	a.alarmState = AlarmActive
	a.acknowledged = true

	a.record("ack")
	a.notify()
}

// UnAck clears the acknowledgement.
func (a *Alert) UnAck() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearPendingTimers()

	a.alarmState = alarmStateFor(a.priority)
	a.acknowledged = false

	a.record("unack")
	a.notify()
	a.startEscalation()
}

// Silence mutes an abnormal alarm-priority alert for the silence duration.
// It reports false and changes nothing for any other alert.
func (a *Alert) Silence() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.priority != PriorityAlarm || a.process == ProcessNormal {
		return false
	}
	a.clearPendingTimers()

	a.silenced = true
	a.record("silence")
	a.notify()

	var t *time.Timer
	t = time.AfterFunc(a.cfg.silenceFor, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.silenceTimer != t {
			return
		}
		a.silenceTimer = nil
		a.silenced = false
		a.log.Info("Alert unsilenced", "name", a.metaData.Name)
		a.record("unsilence")
		a.notify()
	})
	a.silenceTimer = t

	a.log.Info("Alert silenced", "name", a.metaData.Name, "duration", a.cfg.silenceFor)
	return true
}

// SetProperties shallow-merges md into the metadata. An empty md is rejected
// with ErrEmptyProperties.
func (a *Alert) SetProperties(md MetaData) error {
	if md.IsZero() {
		return errors.WrapInvalid(errors.ErrEmptyProperties, "Alert", "SetProperties", "validate properties")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.metaData = a.metaData.Merge(md)
	a.record("properties")
	a.notify()
	return nil
}

// clearPendingTimers stops the silence and escalation timers. A cancelled
// silence also ends the silenced state.
func (a *Alert) clearPendingTimers() {
	if a.silenceTimer != nil {
		a.silenceTimer.Stop()
		a.silenceTimer = nil
		a.silenced = false
	}
	if a.escalationTimer != nil {
		a.escalationTimer.Stop()
		a.escalationTimer = nil
	}
}

func (a *Alert) startEscalation() {
	if a.cfg.escalateAfter <= 0 || a.priority != PriorityWarning {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(a.cfg.escalateAfter, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.escalationTimer != t {
			return
		}
		a.escalationTimer = nil
		if a.acknowledged || a.priority != PriorityWarning {
			return
		}
		a.log.Warn("Escalating unacknowledged alert", "from", PriorityWarning, "to", PriorityAlarm)
		a.record("escalate")
		a.updatePriorityLocked(PriorityAlarm)
	})
	a.escalationTimer = t
}

func alarmStateFor(p Priority) AlarmState {
	if p.audible() {
		return AlarmActive
	}
	return AlarmInactive
}

func (a *Alert) record(op string) {
	a.cfg.metrics.RecordAlertTransition(op)
}

// notification builds the notification value and its path.
func (a *Alert) notification() (string, delta.Notification) {
	var method []delta.Method
	switch {
	case a.alarmState == AlarmInactive:
		method = []delta.Method{}
	case a.silenced:
		method = []delta.Method{delta.MethodVisual}
	default:
		method = []delta.Method{delta.MethodVisual, delta.MethodSound}
	}

	state := string(a.priority)
	if a.alarmState == AlarmInactive {
		state = string(ProcessNormal)
	}

	meta := a.metaData.Map()
	delete(meta, keyMessage)
	delete(meta, keySourceRef)
	delete(meta, keyPath)
	meta["created"] = a.created.UTC().Format(delta.TimestampFormat)

	path := "notifications."
	if a.metaData.Path != "" {
		path += a.metaData.Path + "."
	}
	path += a.id

	return path, delta.Notification{
		ID:       a.id,
		Method:   method,
		State:    state,
		Message:  a.metaData.Message,
		MetaData: meta,
	}
}

// notify emits the current state. Called with a.mu held.
func (a *Alert) notify() {
	path, n := a.notification()
	a.cfg.metrics.RecordNotification(n.State)

	if a.bus == nil {
		return
	}
	source := a.metaData.SourceRef
	if source == "" {
		source = DefaultSourceRef
	}
	a.bus.HandleMessage(source, delta.Single(path, n))
}
