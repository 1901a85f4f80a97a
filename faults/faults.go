// Package faults gives the pipeline one error taxonomy shared across the
// orchestrator, pusher, and classifier, replacing the source's distinct
// exception types with a single Kind enum and a Retryable/Fatal split
// (spec.md §7, §9 REDESIGN FLAGS — "Exceptions as control flow").
package faults

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy of spec.md §7, independent of representation.
type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidInput
	PermissionDenied
	Transient
	TreeClosed
	Conflict
	Timeout
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case PermissionDenied:
		return "permission_denied"
	case Transient:
		return "transient"
	case TreeClosed:
		return "tree_closed"
	case Conflict:
		return "conflict"
	case Timeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error wraps an underlying cause with a Kind for dispatch purposes.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error, wrapping err with fmt.Errorf("%w") style
// chaining so callers can still errors.Is/As through it.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted message instead of a wrapped error.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to Internal when err does
// not carry one.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Retryable reports whether err should trigger the pusher's escalation
// ladder or the classifier's bounded retry, replacing the source's
// RetryException-vs-FailException dispatch (spec.md §9).
func Retryable(err error) bool {
	switch KindOf(err) {
	case Transient, TreeClosed, Conflict:
		return true
	default:
		return false
	}
}

// Fatal is the complement of Retryable: true when the attempt must abort
// immediately rather than escalate.
func Fatal(err error) bool {
	return err != nil && !Retryable(err)
}
