// Package apierr defines the closed set of errors produced by the tracker
// client: configuration validation, authentication, transport, HTTP status and
// upstream (in-body) failures.
//
// Every error is an *Error tagged with a Kind. Callers classify with errors.Is
// against the package sentinels or with KindOf:
//
//	if errors.Is(err, apierr.ErrUpstream) {
//		// the tracker answered 200 with an error payload
//	}
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies which layer of the client produced an error.
type Kind int

const (
	// KindUnknown is never produced by this module; KindOf returns it for foreign errors.
	KindUnknown Kind = iota
	// KindConfigValidation means a required configuration key set is incomplete.
	KindConfigValidation
	// KindAuthentication means no login strategy applies or the tracker rejected a login.
	KindAuthentication
	// KindTransport means the exchange could not complete (no response).
	KindTransport
	// KindHTTP means a response arrived with a non-2xx status.
	KindHTTP
	// KindUpstream means a 2xx response carried an error payload.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindConfigValidation:
		return "config validation"
	case KindAuthentication:
		return "authentication"
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfigValidation = &Error{Kind: KindConfigValidation, Message: "configuration validation failed"}
	ErrAuthentication   = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrTransport        = &Error{Kind: KindTransport, Message: "transport failure"}
	ErrHTTP             = &Error{Kind: KindHTTP, Message: "unexpected http status"}
	ErrUpstream         = &Error{Kind: KindUpstream, Message: "upstream error"}
)

// Payload is the error body shape the tracker returns, even with a 200 status.
type Payload struct {
	Error  string `json:"error"`
	Code   int    `json:"code,omitempty"`
	Status string `json:"status,omitempty"`
}

// Error is the single error type of the client.
type Error struct {
	Kind Kind
	// Status is the HTTP status code, zero when no response was received.
	Status int
	// Payload is the decoded upstream body: a *Payload, a map, or raw text.
	Payload any
	Message string
	// Op names the operation that failed (endpoint or login strategy).
	Op string
	// Missing lists absent configuration keys for KindConfigValidation.
	Missing []string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(" error")
	if e.Op != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Op)
	}
	if e.Status != 0 {
		fmt.Fprintf(&sb, ": status %d", e.Status)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, " (%v)", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Timeout reports whether a transport error was caused by a deadline.
func (e *Error) Timeout() bool {
	if e.Kind != KindTransport || e.Err == nil {
		return false
	}
	var te interface{ Timeout() bool }
	if errors.As(e.Err, &te) && te.Timeout() {
		return true
	}
	return errors.Is(e.Err, errDeadline)
}

// UpstreamCode returns the upstream error code, if the payload carried one.
func (e *Error) UpstreamCode() int {
	if p, ok := e.Payload.(*Payload); ok {
		return p.Code
	}
	return 0
}

// ConfigValidation reports a set of missing configuration keys.
func ConfigValidation(missing ...string) *Error {
	return &Error{
		Kind:    KindConfigValidation,
		Message: "missing required configuration keys: " + strings.Join(missing, ", "),
		Missing: missing,
	}
}

// Authentication reports a login failure. status and payload may be zero.
func Authentication(op, message string, status int, payload any) *Error {
	return &Error{
		Kind:    KindAuthentication,
		Op:      op,
		Message: message,
		Status:  status,
		Payload: payload,
	}
}

// Transport wraps a failed network exchange.
func Transport(op string, err error) *Error {
	msg := "request failed"
	if errors.Is(err, errDeadline) {
		msg = "request timed out"
	}
	return &Error{
		Kind:    KindTransport,
		Op:      op,
		Message: msg,
		Err:     err,
	}
}

// HTTP reports a non-2xx response.
func HTTP(op string, status int, payload any) *Error {
	return &Error{
		Kind:    KindHTTP,
		Op:      op,
		Status:  status,
		Message: http.StatusText(status),
		Payload: payload,
	}
}

// Upstream reports an error payload found in a 2xx response.
func Upstream(op string, status int, payload *Payload) *Error {
	return &Error{
		Kind:    KindUpstream,
		Op:      op,
		Status:  status,
		Message: payload.Error,
		Payload: payload,
	}
}
