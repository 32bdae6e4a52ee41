package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation marks input that failed shape or range checks.
	ErrValidation = errors.New("validation failed")
	// ErrStorage marks a failure of the key-value collaborator.
	ErrStorage = errors.New("storage failure")
	// ErrQuotaExceeded marks a metered operation refused by the plan limit.
	ErrQuotaExceeded = errors.New("usage quota exceeded")
	// ErrInconsistentState marks a daily summary that no longer matches its record.
	ErrInconsistentState = errors.New("inconsistent daily state")
)

// ValidationError names the offending field so callers can surface an actionable message.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError wraps an error returned by the persistence layer.
type StorageError struct {
	Op  string
	Key string
	Err error
}

// NewStorageError wraps err, returning nil when err is nil.
func NewStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// QuotaExceededError is the "upgrade or wait" signal returned before a metered call.
type QuotaExceededError struct {
	UserID   string
	Plan     PlanID
	Limit    int
	ResetsAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("user %s reached the %s plan limit of %d analyses; resets at %s",
		e.UserID, e.Plan, e.Limit, e.ResetsAt.Format(time.RFC3339))
}

// Is lets errors.Is match ErrQuotaExceeded.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// InconsistentStateError reports a summary that diverged from a fresh aggregation of its record.
type InconsistentStateError struct {
	Day      string
	Summary  Totals
	Computed Totals
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("summary for %s is stale: stored %d kcal, record totals %d kcal",
		e.Day, e.Summary.Calories, e.Computed.Calories)
}

// Is lets errors.Is match ErrInconsistentState.
func (e *InconsistentStateError) Is(target error) bool {
	return target == ErrInconsistentState
}
