// Package dispatch implements the batch dispatcher: it fans a delivered batch
// of queue messages out to a domain handler under a bounded-concurrency
// policy, gates every invocation through the circuit breaker, and collects
// per-message outcomes into the queue runtime's partial-failure response.
package dispatch

import (
	apperrors "github.com/allisson/eventflow/internal/errors"
)

// Status is the outcome of processing a single message.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Result is the per-message processing outcome. It is created once per
// message and never mutated afterwards.
type Result struct {
	Identifier string
	Status     Status
	Kind       apperrors.Kind
	Err        error
}

// Succeed creates a success result for the given message identifier.
func Succeed(identifier string) Result {
	return Result{Identifier: identifier, Status: StatusSuccess}
}

// Fail creates a failure result carrying the error and its kind.
func Fail(identifier string, err error) Result {
	return Result{
		Identifier: identifier,
		Status:     StatusFailure,
		Kind:       apperrors.KindOf(err),
		Err:        err,
	}
}
