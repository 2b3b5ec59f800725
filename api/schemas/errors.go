package schemas

import (
	"errors"
	"fmt"
)

// -- Error Taxonomy --
// ValidationError surfaces immediately with no retry. DriverError is retried
// up to the attempt budget. ProxyExhausted and NoDataRecovered are terminal
// conditions raised by the orchestrator itself. An unresolved challenge is a
// verdict outcome, not an error, and never appears here.

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DriverError wraps a failure from the underlying browser driver. Every
// driver failure is considered retryable unless it recurs on every attempt.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("browser driver %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// NewDriverError wraps err, preserving an existing DriverError unchanged.
func NewDriverError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{Op: op, Err: err}
}

var (
	// ErrProfileNotFound is returned when an explicitly requested profile id
	// does not exist. Absent an explicit id the store generates instead.
	ErrProfileNotFound = errors.New("fingerprint profile not found")

	// ErrProxyExhausted signals that the pool is empty or fully banned.
	// Sessions proceed without a proxy in that case; this is degraded, not fatal.
	ErrProxyExhausted = errors.New("proxy pool exhausted")

	// ErrNoDataRecovered is the terminal failure: every attempt ended without
	// any extractable content.
	ErrNoDataRecovered = errors.New("no data recovered after all attempts")
)
