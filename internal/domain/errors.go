package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInProgress rejects a second start while a resource kind
	// is already syncing.
	ErrSyncInProgress = errors.New("sync already in progress")

	ErrNotFound = errors.New("not found")
)

// ConnectivityError: the bridge was unreachable or the request timed
// out before a response arrived.
type ConnectivityError struct {
	Cause error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("bridge unreachable: %v", e.Cause)
}

func (e *ConnectivityError) Unwrap() error { return e.Cause }

// APIError: the bridge answered with a non-success status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bridge api: status %d", e.Status)
	}
	return fmt.Sprintf("bridge api: status %d: %s", e.Status, e.Body)
}

// MappingError: an external payload is missing or malforms a field the
// mapper requires. Raised per record; the engine skips the record and
// keeps going.
type MappingError struct {
	Kind   ResourceKind
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map %s: field %s: %s", e.Kind, e.Field, e.Reason)
}

// StoreWriteError: the document store rejected a batched write. The
// previously committed generation stays in place.
type StoreWriteError struct {
	Kind  ResourceKind
	Cause error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Kind, e.Cause)
}

func (e *StoreWriteError) Unwrap() error { return e.Cause }
