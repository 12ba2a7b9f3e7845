// Package simerr defines the error taxonomy raised across the simulation
// core: a small set of kinds, each wrapping the underlying detail error so
// callers can branch on kind with errors.Is/errors.As while still getting a
// wrapped chain for logging.
package simerr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Kinds are stable across releases;
// the wrapped detail error is not.
type Kind string

const (
	UnknownEntity      Kind = "unknown_entity"
	UnknownComponent   Kind = "unknown_component"
	UnknownMatch       Kind = "unknown_match"
	UnknownContainer   Kind = "unknown_container"
	InvalidValue       Kind = "invalid_value"
	PermissionDenied   Kind = "permission_denied"
	BadCommand         Kind = "bad_command"
	InvalidState       Kind = "invalid_state"
	CommandHandlerErr  Kind = "command_handler_error"
	RegistryError      Kind = "registry_error"
	Timeout            Kind = "timeout"
	Overflow           Kind = "overflow"
)

// Error is the concrete error type raised by every simulation package.
// Op names the failing operation (e.g. "pool.Set", "container.Start");
// Err is the wrapped detail, nil for kinds that carry no further detail.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, simerr.New(simerr.UnknownEntity, "", nil)) or, more
// commonly, use the Is* helpers below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error for kind, tagged with the failing operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted detail error.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, walking its Unwrap chain. Returns ""
// if err is nil or carries no *Error in its chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Is reports whether err's chain contains a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// NewInvalidState builds the InvalidState error for an illegal container
// transition, carrying both the current and attempted state in the message
// without leaking anything beyond those two values.
func NewInvalidState(op string, current, attempted any) *Error {
	return Newf(InvalidState, op, "invalid transition: %v -> %v", current, attempted)
}

// NewBadCommand builds the BadCommand error for a schema mismatch at
// enqueue time.
func NewBadCommand(op, reason string) *Error {
	return New(BadCommand, op, errors.New(reason))
}

// NewCommandHandlerError wraps a handler's domain error for the
// command-error log; it never aborts the tick that produced it.
func NewCommandHandlerError(op string, err error) *Error {
	return New(CommandHandlerErr, op, err)
}
