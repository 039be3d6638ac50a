package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorClass says how a caller should react to an error.
type ErrorClass int

const (
	// ErrorTransient may succeed if retried.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid is caused by the request or configuration and is never retried.
	ErrorInvalid
	// ErrorFatal stops the component that hit it.
	ErrorFatal
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	ErrShuttingDown = errors.New("component is shutting down")

	ErrNoConnection       = errors.New("no connection available")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrSlowConsumer       = errors.New("client cannot keep up with data rate")
	ErrCircuitOpen        = errors.New("circuit breaker open")

	ErrInvalidData     = errors.New("invalid data format")
	ErrInvalidPriority = errors.New("invalid alert priority")
	ErrAlertActive     = errors.New("alert is still in abnormal state")
	ErrEmptyProperties = errors.New("no properties have been provided")
	ErrNotFound        = errors.New("not found")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// sentinelClass classifies bare sentinels that reach a caller unwrapped.
var sentinelClass = []struct {
	err   error
	class ErrorClass
}{
	{ErrInvalidData, ErrorInvalid},
	{ErrInvalidPriority, ErrorInvalid},
	{ErrAlertActive, ErrorInvalid},
	{ErrEmptyProperties, ErrorInvalid},
	{ErrInvalidConfig, ErrorFatal},
	{ErrMissingConfig, ErrorFatal},
	{ErrConnectionTimeout, ErrorTransient},
	{ErrConnectionLost, ErrorTransient},
	{ErrNoConnection, ErrorTransient},
	{ErrCircuitOpen, ErrorTransient},
	{context.DeadlineExceeded, ErrorTransient},
	{context.Canceled, ErrorTransient},
}

// transientHints match errors from libraries that export no sentinel.
var transientHints = []string{"timeout", "connection", "temporary", "unavailable"}

// ClassifiedError carries an ErrorClass along with where the error happened.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// classify reports the class of err and whether anything decided it.
func classify(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	for _, s := range sentinelClass {
		if errors.Is(err, s.err) {
			return s.class, true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return ErrorTransient, true
		}
	}
	return ErrorTransient, false
}

// Classify returns the class of err. The outermost ClassifiedError wins,
// then known sentinels; anything else is treated as transient.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}
	class, _ := classify(err)
	return class
}

// IsTransient reports whether err is known to be temporary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	class, known := classify(err)
	return known && class == ErrorTransient
}

func IsInvalid(err error) bool {
	return err != nil && Classify(err) == ErrorInvalid
}

func IsFatal(err error) bool {
	return err != nil && Classify(err) == ErrorFatal
}

// HTTPStatus maps an error onto the status code the REST layer reports for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsInvalid(err):
		return http.StatusBadRequest
	case IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Wrap adds context in the form "component.method: action failed: err".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps err as retryable.
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps err as a caller mistake.
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// WrapFatal wraps err as unrecoverable.
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}
