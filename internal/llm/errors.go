package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackend means the registry has no backends at all.
	ErrNoBackend = errors.New("no backend available")
	// ErrBackendNotFound means a named backend is not registered.
	ErrBackendNotFound = errors.New("backend not found")
)

// BackendError wraps an error with backend context.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
