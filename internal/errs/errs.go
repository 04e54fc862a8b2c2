// Package errs defines the error taxonomy surfaced by the Job Controller
// (spec §7): not_found, forbidden, conflict, invalid_state, invalid_input,
// upstream_failure, internal. The controller returns these errors and the
// HTTP handlers map a Kind to an HTTP status; the pipeline workers and the
// reaper do not use this package.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound        Kind = "not_found"
	Forbidden       Kind = "forbidden"
	Conflict        Kind = "conflict"
	InvalidState    Kind = "invalid_state"
	InvalidInput    Kind = "invalid_input"
	UpstreamFailure Kind = "upstream_failure"
	Internal        Kind = "internal"
)

type Error struct {
	Kind       Kind
	Message    string
	Dependency string // set for UpstreamFailure
	Err        error
}

func (e *Error) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Dependency)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Upstream(dependency string, err error) *Error {
	return &Error{Kind: UpstreamFailure, Dependency: dependency, Message: err.Error(), Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal for anything
// that isn't one of ours.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
