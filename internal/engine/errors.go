// Package engine implements the timed exam session core: scheduling gate,
// session clock, answer ledger, test-case evaluation, and exactly-once
// submission.
package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures for callers that need to branch on
// the failure mode rather than the message.
type ErrorKind string

const (
	// KindRateLimited signals judge backpressure. Fail fast, do not retry
	// within the same call tree beyond the orchestrator's single backoff.
	KindRateLimited ErrorKind = "RATE_LIMITED"
	// KindTimeout means the judge never reached a terminal status.
	KindTimeout ErrorKind = "TIMEOUT"
	// KindNetwork means the judge or persistence collaborator was unreachable.
	KindNetwork ErrorKind = "NETWORK_ERROR"
	// KindValidation means required fields were missing before an operation.
	KindValidation ErrorKind = "VALIDATION_ERROR"
	// KindConflict means a conflicting operation is already in flight
	// (per-question execution lock, submission already running).
	KindConflict ErrorKind = "CONFLICT"
)

// Error carries an ErrorKind alongside a wrapped cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an engine error with a kind and message.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// WrapError builds an engine error wrapping a cause.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" if err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsTimeout reports whether err is a judge-timeout failure.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }
