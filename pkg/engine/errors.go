package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers. Everything else in the pipeline is
// absorbed into the decision: per-backend failures become UNKNOWN factors
// and total unavailability becomes a forced REVIEW_REQUIRED, never an error.
var (
	// ErrValidation marks a request rejected before any backend call.
	ErrValidation = errors.New("validation error")

	// ErrPolicy marks a routing policy problem: a malformed update or a
	// kind with no active policy.
	ErrPolicy = errors.New("policy error")
)

// ValidationError describes why an upload was rejected at admission.
type ValidationError struct {
	// Field names the offending input (e.g., "file").
	Field string

	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is implements error matching for errors.Is().
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PolicyError wraps a routing policy failure.
type PolicyError struct {
	// Cause is the underlying routing error.
	Cause error
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy error: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *PolicyError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *PolicyError) Is(target error) bool {
	return target == ErrPolicy
}
