package coordinator

import (
	"errors"
	"fmt"

	"github.com/leaguevault/leaguevault/internal/dupcheck"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// ErrBusy is returned when a batch apply is already in flight. The
// coordinator is single-writer; callers queue or retry, they never
// interleave.
var ErrBusy = errors.New("a batch apply is already in flight")

// MergeErrorCode categorizes apply failures.
type MergeErrorCode string

const (
	// ErrCodeValidationFailed: the batch was rejected before any store
	// mutation — undeclared fields, missing keys, or high-severity
	// duplicate violations. Not retryable as-is; the input must change.
	ErrCodeValidationFailed MergeErrorCode = "VALIDATION_FAILED"

	// ErrCodeApplyFailed: a storage operation failed mid-apply and the
	// transaction was rolled back. Retryable once the cause (lock
	// contention, disk, constraint trip) clears.
	ErrCodeApplyFailed MergeErrorCode = "APPLY_FAILED"

	// ErrCodeIntegrityFailed: the post-apply store check found a
	// critical violation inside the uncommitted transaction. Rolled
	// back; not retryable — it means an executor or schema defect.
	ErrCodeIntegrityFailed MergeErrorCode = "INTEGRITY_FAILED"
)

// MergeError is the coordinator's failure type. Every non-nil error
// from Apply other than ErrBusy and registry.ConfigurationError is one
// of these, with structured fields for diagnostics.
type MergeError struct {
	// Code identifies the failure category.
	Code MergeErrorCode

	// Message is a human-readable description.
	Message string

	// BatchID identifies the affected batch.
	BatchID string

	// EntityType is the entity type being applied when the failure
	// occurred, when one is attributable.
	EntityType registry.EntityType

	// Violations carries the detector report for validation and
	// integrity failures.
	Violations []dupcheck.Violation

	// Retryable reports whether the same batch may succeed later
	// without changes.
	Retryable bool

	cause error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	if e.EntityType != "" {
		return fmt.Sprintf("%s: %s (batch=%s, entity=%s)", e.Code, e.Message, e.BatchID, e.EntityType)
	}
	return fmt.Sprintf("%s: %s (batch=%s)", e.Code, e.Message, e.BatchID)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *MergeError) Unwrap() error {
	return e.cause
}

// IsValidationError reports whether the error is a pre-apply batch
// rejection. Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var me *MergeError
	return errors.As(err, &me) && me.Code == ErrCodeValidationFailed
}

// IsApplyError reports whether the error is a retryable mid-apply
// storage failure.
func IsApplyError(err error) bool {
	var me *MergeError
	return errors.As(err, &me) && me.Code == ErrCodeApplyFailed
}

// IsIntegrityError reports whether the error is a post-apply critical
// violation.
func IsIntegrityError(err error) bool {
	var me *MergeError
	return errors.As(err, &me) && me.Code == ErrCodeIntegrityFailed
}

func newValidationError(batchID, msg string, report dupcheck.Report, cause error) *MergeError {
	return &MergeError{
		Code:       ErrCodeValidationFailed,
		Message:    msg,
		BatchID:    batchID,
		Violations: report.Violations,
		Retryable:  false,
		cause:      cause,
	}
}

func newApplyError(batchID string, et registry.EntityType, cause error) *MergeError {
	return &MergeError{
		Code:       ErrCodeApplyFailed,
		Message:    cause.Error(),
		BatchID:    batchID,
		EntityType: et,
		Retryable:  true,
		cause:      cause,
	}
}

func newIntegrityError(batchID string, report dupcheck.Report) *MergeError {
	return &MergeError{
		Code:       ErrCodeIntegrityFailed,
		Message:    "post-apply store check found critical violations",
		BatchID:    batchID,
		Violations: report.Violations,
		Retryable:  false,
	}
}
