package health

import (
	"slices"
	"strings"
	"time"
)

// State is the coarse health of a component.
type State string

// Health states, from best to worst.
const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

func (s State) severity() int {
	switch s {
	case StateUnhealthy:
		return 2
	case StateDegraded:
		return 1
	default:
		return 0
	}
}

// Status represents the health state of a component or system
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      State     `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics describes how a probed component has behaved over time.
type Metrics struct {
	Uptime     time.Duration `json:"uptime"`
	Failures   int           `json:"consecutive_failures"`
	LastChange time.Time     `json:"last_change,omitempty"`
}

// New builds a status stamped with the current time.
func New(component string, state State, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy, NewDegraded and NewUnhealthy are shorthands for New.
func NewHealthy(component, message string) Status   { return New(component, StateHealthy, message) }
func NewDegraded(component, message string) Status  { return New(component, StateDegraded, message) }
func NewUnhealthy(component, message string) Status { return New(component, StateUnhealthy, message) }

func (s Status) IsHealthy() bool   { return s.Status == StateHealthy }
func (s Status) IsDegraded() bool  { return s.Status == StateDegraded }
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// Aggregate takes the worst state among subs and names the components in
// that state. No subs is healthy.
func Aggregate(component string, subs []Status) Status {
	worst := StateHealthy
	var culprits []string
	for _, sub := range subs {
		switch sev := sub.Status.severity(); {
		case sev > worst.severity():
			worst = sub.Status
			culprits = []string{sub.Component}
		case sev > 0 && sev == worst.severity():
			culprits = append(culprits, sub.Component)
		}
	}

	msg := "all components healthy"
	if worst != StateHealthy {
		msg = string(worst) + ": " + strings.Join(culprits, ", ")
	}

	status := New(component, worst, msg)
	status.SubStatuses = slices.Clone(subs)
	return status
}
