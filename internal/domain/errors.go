package domain

import (
	"errors"
	"fmt"
)

// Reason is a machine-readable rejection code surfaced to API callers.
type Reason string

const (
	ReasonSameStation          Reason = "SAME_STATION"
	ReasonBadOrder             Reason = "BAD_ORDER"
	ReasonOutOfRange           Reason = "OUT_OF_RANGE"
	ReasonReferencedBySchedule Reason = "REFERENCED_BY_SCHEDULE"
	ReasonRequired             Reason = "REQUIRED"
	ReasonInvalidFormat        Reason = "INVALID_FORMAT"
)

var (
	// ErrNotFound is returned by repositories and services when an entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrConflict matches every *ConflictError via errors.Is.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate is returned by user repositories on a unique email violation.
	ErrDuplicate = errors.New("duplicate")
)

// ValidationError describes why a candidate schedule or station was rejected.
type ValidationError struct {
	Reason  Reason
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports ErrValidation so callers can match the whole class.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError is returned when an operation would break referential integrity.
type ConflictError struct {
	Reason  Reason
	Message string
	Count   int
}

func (e *ConflictError) Error() string { return e.Message }

// Is reports ErrConflict so callers can match the whole class.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Reject builds a *ValidationError.
func Reject(reason Reason, field, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Field: field, Message: fmt.Sprintf(format, args...)}
}
