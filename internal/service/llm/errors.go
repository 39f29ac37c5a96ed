package llm

import (
	"errors"
	"fmt"
)

// ErrKind classifies provider failures so callers can decide whether a
// retry makes sense and which HTTP status to surface.
type ErrKind int

const (
	ErrUnknown ErrKind = iota
	// ErrUnreachable means the provider endpoint could not be reached
	// or answered with a server-side failure. Retryable.
	ErrUnreachable
	// ErrBadResponse means the provider answered but the payload could
	// not be decoded or misses required fields. Retryable.
	ErrBadResponse
	// ErrMissingCredential means a required API key or token is absent.
	// Never retried; no network call is made.
	ErrMissingCredential
	// ErrEmptyInput means the caller supplied nothing to send.
	ErrEmptyInput
)

func (k ErrKind) String() string {
	switch k {
	case ErrUnreachable:
		return "unreachable"
	case ErrBadResponse:
		return "bad response"
	case ErrMissingCredential:
		return "missing credential"
	case ErrEmptyInput:
		return "empty input"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind     ErrKind
	Provider string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the classification of err, or ErrUnknown when err is
// not a provider error.
func KindOf(err error) ErrKind {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return ErrUnknown
}

// RetriesError reports that every attempt against a provider failed.
// It wraps the last attempt's error.
type RetriesError struct {
	Provider string
	Attempts int
	Cause    error
}

func (e *RetriesError) Error() string {
	return fmt.Sprintf("Failed to get response from %s after %d attempts", e.Provider, e.Attempts)
}

func (e *RetriesError) Unwrap() error {
	return e.Cause
}

// IsRetriesExhausted reports whether err is a RetriesError.
func IsRetriesExhausted(err error) bool {
	var retriesErr *RetriesError
	return errors.As(err, &retriesErr)
}
