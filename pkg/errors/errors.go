// Package errors defines the sentinel errors of the ingestion pipeline and
// an AppError wrapper carrying a human-readable message. Per-organization
// errors are folded into stage results at the task boundary; only the
// sentinels below ever cross component boundaries.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates missing or invalid required settings.
	// It is fatal and halts the run before any stage executes.
	ErrConfiguration = errors.New("configuration error")
	// ErrAccessDenied indicates a failed security-context validation.
	// Fatal for the run, but the run still terminates with a notification.
	ErrAccessDenied = errors.New("access denied")
	// ErrSourceUnavailable indicates a transport failure against the
	// external paper source. Recoverable at the stage level.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrProcessing indicates content extraction or chunking failure for
	// a single paper. Recoverable at the stage level.
	ErrProcessing = errors.New("processing failed")
	// ErrIndexUnavailable indicates the search index rejected an upsert.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrCapacityExceeded indicates a paper could not be assigned to any
	// organization. Recorded as a count, never raised across stages.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrOrganizationNotFound is returned by the organization repository.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrTimeout indicates a stage or task exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsFatal reports whether err must halt forward progress of the pipeline
// rather than being folded into a per-organization result.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAccessDenied)
}
