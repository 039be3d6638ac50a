// Package errors provides standardized error handling for marinestreams components.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid (bad
// input, never retried) and Fatal (stop processing). The HTTP gateway turns the
// class into a status code with HTTPStatus, the NATS client uses it to decide
// whether a connect attempt is worth retrying.
//
// # Quick Start
//
// Return a sentinel for known conditions:
//
//	if !priority.Valid() {
//	    return errors.WrapInvalid(errors.ErrInvalidPriority, "Alert", "UpdatePriority",
//	        fmt.Sprintf("validate priority %q", priority))
//	}
//
// Wrap third-party errors with component context:
//
//	if err := conn.Publish(subject, data); err != nil {
//	    return errors.WrapTransient(err, "Forwarder", "HandleMessage", "publish delta")
//	}
//
// # Error Wrapping Pattern
//
// All wrapping follows "component.method: action failed: cause". Wrapped errors keep
// the cause in the chain, so errors.Is and errors.As continue to work:
//
//	err := errors.Wrap(io.EOF, "Manager", "Delete", "remove alert")
//	stderrors.Is(err, io.EOF) // true
//
// # Alert and Authorization Sentinels
//
// ErrInvalidPriority, ErrAlertActive and ErrEmptyProperties are classified Invalid
// and surface as 400 responses. ErrUnauthorized and ErrForbidden map to 401 and 403,
// ErrNotFound to 404. Not-found on mutating alert operations is deliberately not an
// error at all: those operations are silent no-ops.
package errors
