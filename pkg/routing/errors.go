package routing

import (
	"errors"
	"fmt"
	"strings"

	"modex-hq/aegis/pkg/backend"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrNoPolicy is returned when no policy covers the requested kind.
	ErrNoPolicy = errors.New("no routing policy for backend kind")

	// ErrInvalidPolicy is returned when a candidate policy fails validation.
	ErrInvalidPolicy = errors.New("invalid routing policy")

	// ErrVersionNotInPolicy is returned when a promotion names a version
	// absent from the current policy.
	ErrVersionNotInPolicy = errors.New("version not present in routing policy")

	// ErrTrafficFloorViolated is returned when a promotion would drop a
	// version below its configured minimum traffic share.
	ErrTrafficFloorViolated = errors.New("promotion violates minimum traffic floor")
)

// NoPolicyError is returned when a selection is requested for a kind the
// current policy does not cover.
type NoPolicyError struct {
	// Kind is the backend kind with no policy.
	Kind backend.Kind
}

// Error implements the error interface.
func (e *NoPolicyError) Error() string {
	return fmt.Sprintf("no routing policy for backend kind %q", e.Kind)
}

// Is implements error matching for errors.Is().
func (e *NoPolicyError) Is(target error) bool {
	return target == ErrNoPolicy
}

// InvalidPolicyError is returned when a candidate policy fails validation.
// It carries every problem found so operators can fix them in one pass.
type InvalidPolicyError struct {
	// Problems lists every validation failure.
	Problems []string
}

// Error implements the error interface.
func (e *InvalidPolicyError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid routing policy: %s", e.Problems[0])
	}
	return fmt.Sprintf("invalid routing policy (%d problems): %s",
		len(e.Problems), strings.Join(e.Problems, "; "))
}

// Is implements error matching for errors.Is().
func (e *InvalidPolicyError) Is(target error) bool {
	return target == ErrInvalidPolicy
}
