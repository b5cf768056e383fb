package audit

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when no record matches a lookup.
var ErrRecordNotFound = errors.New("audit record not found")

// StorageError wraps a storage backend failure with the backend name and
// the operation that failed.
type StorageError struct {
	// Backend is the storage backend name (e.g., "sqlite").
	Backend string

	// Operation is the operation that failed (e.g., "store").
	Operation string

	// Cause is the underlying error.
	Cause error
}

// NewStorageError creates a storage error.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s: %s failed: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
