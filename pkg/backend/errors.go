package backend

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for registry lookups.
var (
	// ErrUnknownKind is returned when a backend kind is not configured.
	ErrUnknownKind = errors.New("unknown backend kind")

	// ErrUnknownVersion is returned when a backend version is not
	// configured under its kind.
	ErrUnknownVersion = errors.New("unknown backend version")

	// ErrRegistryClosed is returned when the registry has been closed.
	ErrRegistryClosed = errors.New("backend registry is closed")
)

// BackendError represents a failure reported by a backend: a non-2xx status
// or a transport-level error.
type BackendError struct {
	// Kind is the backend kind that failed.
	Kind Kind

	// Version is the backend version that failed.
	Version string

	// StatusCode is the HTTP status code, or 0 for transport errors.
	StatusCode int

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message.
func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %s/%s returned status %d: %s", e.Kind, e.Version, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s/%s call failed: %s", e.Kind, e.Version, e.Message)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a backend call that exceeded its deadline.
type TimeoutError struct {
	// Kind is the backend kind that timed out.
	Kind Kind

	// Version is the backend version that timed out.
	Version string

	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

// Error returns a formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %s/%s timed out after %s", e.Kind, e.Version, e.Timeout)
}

// Is allows errors.Is matching against context.DeadlineExceeded semantics
// via another *TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// ParseError represents a backend response that could not be decoded.
type ParseError struct {
	// Kind is the backend kind whose response failed to parse.
	Kind Kind

	// Version is the backend version whose response failed to parse.
	Version string

	// Cause is the underlying decode error.
	Cause error
}

// Error returns a formatted error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("backend %s/%s returned an unparseable response: %v", e.Kind, e.Version, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
