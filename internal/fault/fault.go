// Package fault defines the structured errors that cross the core boundary.
// Every error leaving the buses or the projection manager carries a Kind and
// an opaque message key; human-readable text is the transport layer's problem.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for the transport layer, which maps it to a
// protocol-specific status code.
type Kind string

const (
	KindAccessDenied        Kind = "access_denied"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindUnroutableCommand   Kind = "unroutable_command"
	KindUnroutableQuery     Kind = "unroutable_query"
	KindProjectionStalled   Kind = "projection_stalled"
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation"
	KindStorage             Kind = "storage"
)

// Error is a structured core error. MessageKey is an opaque identifier
// resolved by the localization layer; Details carries machine-readable
// context (tenant, aggregate, positions) for diagnostics.
type Error struct {
	Kind       Kind
	MessageKey string
	Details    map[string]string

	cause error
}

// New creates an error with the given kind and message key.
func New(kind Kind, messageKey string) *Error {
	return &Error{Kind: kind, MessageKey: messageKey}
}

// Wrap creates an error that records err as its cause.
func Wrap(kind Kind, messageKey string, err error) *Error {
	return &Error{Kind: kind, MessageKey: messageKey, cause: err}
}

// WithDetail attaches a key/value pair and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.MessageKey)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Kind, so callers can compare against
// fault.New(kind, "") sentinels without caring about message keys.
func (e *Error) Is(target error) bool {
	var fe *Error
	if !errors.As(target, &fe) {
		return false
	}
	return fe.Kind == e.Kind && (fe.MessageKey == "" || fe.MessageKey == e.MessageKey)
}

// KindOf returns the kind of err, or the empty string if err is not a fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
