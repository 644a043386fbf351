package models

import (
	"errors"
	"fmt"
)

// Failure taxonomy surfaced at the dispatcher and worker API boundary.
// Callers match with errors.Is; JobFailedError additionally carries the
// worker-captured error text and is matched with errors.As.
var (
	// ErrUnsupportedJobKind is returned for payload types outside the
	// closed variant set, or for envelopes whose discriminator names no
	// known kind.
	ErrUnsupportedJobKind = errors.New("unsupported job kind")

	// ErrMalformedEnvelope is returned when an envelope or payload fails
	// structural decoding (unknown fields, wrong types, inconsistent
	// positional lists).
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrMissingRequiredField is returned when a payload decodes
	// structurally but lacks a field the kind requires.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrBrokerUnavailable marks transient broker connectivity failures.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrJobTimeout is returned when a submission exceeded its wall-clock
	// timeout before a terminal notification arrived.
	ErrJobTimeout = errors.New("job timed out")

	// ErrJobCancelled is returned when the submitting context was
	// cancelled while waiting for completion.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrJobFailed is the errors.Is target for JobFailedError.
	ErrJobFailed = errors.New("job failed")
)

// JobFailedError reports a job the worker drove to the failed state.
// Reason is the worker-recorded error text, verbatim.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job failed: %s", e.Reason)
}

// Is makes errors.Is(err, ErrJobFailed) match wrapped JobFailedError values.
func (e *JobFailedError) Is(target error) bool {
	return target == ErrJobFailed
}
