package persist

import "errors"

// Sentinel errors for persistence backends.
var (
	// ErrNotFound is returned by Load when no data is stored under the key.
	ErrNotFound = errors.New("persist: snapshot not found")

	// ErrBackend wraps failures of the underlying storage service.
	ErrBackend = errors.New("persist: backend operation failed")

	// ErrInvalidConfig is returned when a backend is constructed with missing settings.
	ErrInvalidConfig = errors.New("persist: invalid configuration")
)
