package health

import (
	"context"
	stderrors "errors"
)

// Probe reports the health of one component. A nil error means healthy.
type Probe func(ctx context.Context) error

// degradedError marks a probe failure that leaves the component usable.
type degradedError struct{ err error }

func (d degradedError) Error() string { return d.err.Error() }
func (d degradedError) Unwrap() error { return d.err }

// Degraded wraps err so FromProbe reports degraded rather than unhealthy.
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return degradedError{err: err}
}

// IsDegraded reports whether err was wrapped by Degraded.
func IsDegraded(err error) bool {
	var d degradedError
	return stderrors.As(err, &d)
}

// FromProbe converts the result of a probe into a Status. A nil err is
// healthy; a degraded err keeps the component degraded instead of unhealthy.
func FromProbe(name string, err error) Status {
	switch {
	case err == nil:
		return NewHealthy(name, "ok")
	case IsDegraded(err):
		return NewDegraded(name, sanitizeErrorMessage(err.Error()))
	default:
		return NewUnhealthy(name, sanitizeErrorMessage(err.Error()))
	}
}
