// Package faults defines the error taxonomy shared by the pipeline,
// worker, and API layers. Every failure that reaches a job record or an
// HTTP response carries a machine-readable Kind plus a human message.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of where it happened.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindRateLimited         Kind = "rate_limited"
	KindNetworkFailure      Kind = "network_failure"
	KindDependencyMissing   Kind = "dependency_missing"
	KindProcessingFailure   Kind = "processing_failure"
	KindStorageFailure      Kind = "storage_failure"
)

// Error is a classified failure. Message is safe to show to callers;
// the wrapped cause is only exposed through the verbose detail channel.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and caller-facing message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindProcessingFailure when err
// carries no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindProcessingFailure
}

// Message returns the caller-facing message of err without the wrapped
// cause chain.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}

// Detail returns the full cause chain for the opt-in verbose channel.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
