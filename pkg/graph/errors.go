package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every component. Test with errors.Is.
var (
	// ErrStoreUnavailable means the underlying graph store could not be reached.
	// It is transient; callers decide whether to retry.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrInvalidArgument means the request itself is malformed and must not be retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound means the addressed node does not exist.
	ErrNotFound = errors.New("not found")
)

// NotFound returns an error wrapping ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidArgument returns an error wrapping ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Unavailable wraps cause as ErrStoreUnavailable. Both remain matchable with errors.Is.
func Unavailable(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, msg, cause)
}

// Warning is a non-fatal, per-record problem collected during a build.
type Warning struct {
	// Record identifies the offending input, e.g. "sales.customers.customer_id".
	Record string `json:"record"`
	// Message describes what was skipped and why.
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Record == "" {
		return w.Message
	}
	return w.Record + ": " + w.Message
}
