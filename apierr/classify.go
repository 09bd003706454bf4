package apierr

import (
	"context"
	"errors"
	"net/http"
)

var errDeadline = context.DeadlineExceeded

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsUnauthorized checks if the error is a rejected-session response
func IsUnauthorized(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindHTTP {
		return false
	}
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsTimeout checks if the error is a transport timeout
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Timeout()
	}
	return false
}

// IsTransient reports whether repeating the call could succeed: transport
// failures, 429 and 5xx responses. The client never retries on its own; this
// is for outer retry policies.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransport:
		return !errors.Is(e.Err, context.Canceled)
	case KindHTTP:
		return e.Status == http.StatusTooManyRequests || e.Status >= 500
	default:
		return false
	}
}
