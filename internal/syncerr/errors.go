// Package syncerr defines the error taxonomy for the sync engine.
//
// Every failure surfaced by the engine is classified into one Kind, which
// determines how the orchestrator reacts: configuration, schema, and
// authentication errors are fatal before or during the run; transient I/O
// errors abort the run but leave the last committed checkpoint valid for a
// rerun; checkpoint corruption is recovered locally and never fatal.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for handling strategy.
type Kind string

const (
	// KindConfig marks invalid or missing configuration. Fatal before the
	// batch loop starts.
	KindConfig Kind = "config"

	// KindSchema marks a source/sink field mismatch or a missing table. Fatal.
	KindSchema Kind = "schema"

	// KindTransient marks a network or timeout failure on a source or sink
	// call. The checkpoint is unaffected; a rerun resumes safely. The engine
	// performs no retries itself.
	KindTransient Kind = "transient"

	// KindAuth marks an authentication or permission failure. Fatal.
	KindAuth Kind = "auth"

	// KindCheckpoint marks an unreadable checkpoint file. Recovered locally
	// by falling back to a fresh full sync.
	KindCheckpoint Kind = "checkpoint"
)

// Error is a classified sync error. It wraps an optional cause and
// participates in errors.Is/errors.As chains.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. Returns nil if err is nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Is reports whether err (or anything it wraps) is a sync error of the
// given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" if err carries no classification.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsFatal reports whether err should terminate the run without a usable
// resume point beyond the last committed checkpoint.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConfig, KindSchema, KindAuth:
		return true
	}
	return false
}
