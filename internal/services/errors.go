package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError signals a request that is well-formed but semantically
// invalid. Maps to 400 on the HTTP surface.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PermissionError signals an authenticated caller acting outside their role.
// Maps to 403.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Message)
}

func NewPermissionError(message string) *PermissionError {
	return &PermissionError{Message: message}
}

type TimeViolationReason string

const (
	TimeWindowNotOpen TimeViolationReason = "window_not_open"
	TimeWindowClosed  TimeViolationReason = "window_closed"
	TimeLimitExceeded TimeViolationReason = "time_limit_exceeded"
)

// TimeViolationError rejects a submit attempt outside the assignment's
// availability window or past the attempt deadline. Fatal to the whole call:
// nothing is graded or persisted.
type TimeViolationError struct {
	Reason   TimeViolationReason
	Deadline time.Time
}

func (e *TimeViolationError) Error() string {
	switch e.Reason {
	case TimeWindowNotOpen:
		return fmt.Sprintf("assignment not yet open, opens at %s", e.Deadline.Format(time.RFC3339))
	case TimeWindowClosed:
		return fmt.Sprintf("assignment window closed at %s", e.Deadline.Format(time.RFC3339))
	default:
		return fmt.Sprintf("time limit exceeded, deadline was %s", e.Deadline.Format(time.RFC3339))
	}
}

func NewTimeViolationError(reason TimeViolationReason, deadline time.Time) *TimeViolationError {
	return &TimeViolationError{Reason: reason, Deadline: deadline}
}

// DuplicatePartError rejects a resubmission of already-graded parts under the
// reject policy. Parts names the offending targets; stored results are left
// untouched.
type DuplicatePartError struct {
	Parts []string
}

func (e *DuplicatePartError) Error() string {
	return fmt.Sprintf("already submitted: %s", strings.Join(e.Parts, ", "))
}

func NewDuplicatePartError(parts []string) *DuplicatePartError {
	return &DuplicatePartError{Parts: parts}
}

// MalformedPayloadError signals that no submitted part survived decoding.
// Individually malformed parts are skipped with a warning instead.
type MalformedPayloadError struct {
	Message string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed submission payload: %s", e.Message)
}

func NewMalformedPayloadError(message string) *MalformedPayloadError {
	return &MalformedPayloadError{Message: message}
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
