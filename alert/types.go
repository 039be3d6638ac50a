package alert

import (
	"fmt"

	"github.com/c360/marinestreams/errors"
)

// Priority is the alert severity tier, emergency being the highest.
type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityAlarm     Priority = "alarm"
	PriorityWarning   Priority = "warning"
	PriorityCaution   Priority = "caution"
)

// Valid reports whether p is one of the four priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityEmergency, PriorityAlarm, PriorityWarning, PriorityCaution:
		return true
	}
	return false
}

// audible priorities drive an active alarm state while unacknowledged.
func (p Priority) audible() bool {
	return p == PriorityEmergency || p == PriorityAlarm
}

// ParsePriority validates s.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidPriority, s), "alert", "ParsePriority", "validate priority")
	}
	return p, nil
}

// Process is the lifecycle phase of an alert.
type Process string

const (
	ProcessNormal   Process = "normal"
	ProcessAbnormal Process = "abnormal"
)

// AlarmState says whether an alert should currently be presented.
type AlarmState string

const (
	AlarmActive   AlarmState = "active"
	AlarmInactive AlarmState = "inactive"
)
