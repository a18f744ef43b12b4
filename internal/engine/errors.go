package engine

import (
	"errors"
	"fmt"
	"time"
)

// RuntimeError represents an error detected by the sieve engine.
//
// Runtime errors include:
//   - Invalid limit: range bound rejected at construction
//   - Invalid delay: negative per-mark delay passed to Run
//   - Out of range: number outside [0, limit) passed to Check
//
// Cancellation is never a RuntimeError. A cancelled run returns
// OutcomePaused with its state retained.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidLimit indicates the range bound is negative or above MaxLimit.
	ErrCodeInvalidLimit RuntimeErrorCode = "INVALID_LIMIT"

	// ErrCodeInvalidDelay indicates a negative per-mark delay.
	ErrCodeInvalidDelay RuntimeErrorCode = "INVALID_DELAY"

	// ErrCodeOutOfRange indicates a number outside [0, limit).
	ErrCodeOutOfRange RuntimeErrorCode = "OUT_OF_RANGE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidLimitError returns true if the error is an invalid limit error.
// Uses errors.As to handle wrapped errors.
func IsInvalidLimitError(err error) bool {
	return hasCode(err, ErrCodeInvalidLimit)
}

// IsInvalidDelayError returns true if the error is an invalid delay error.
func IsInvalidDelayError(err error) bool {
	return hasCode(err, ErrCodeInvalidDelay)
}

// IsOutOfRangeError returns true if the error is an out of range error.
func IsOutOfRangeError(err error) bool {
	return hasCode(err, ErrCodeOutOfRange)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewInvalidLimitError creates a RuntimeError for a rejected range bound.
func NewInvalidLimitError(limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidLimit,
		Message: fmt.Sprintf("limit %d outside [0, %d]", limit, MaxLimit),
		Details: map[string]string{
			"limit":     fmt.Sprintf("%d", limit),
			"max_limit": fmt.Sprintf("%d", MaxLimit),
		},
	}
}

// NewInvalidDelayError creates a RuntimeError for a negative delay.
func NewInvalidDelayError(delay time.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidDelay,
		Message: fmt.Sprintf("delay %s is negative", delay),
		Details: map[string]string{
			"delay": delay.String(),
		},
	}
}

// NewOutOfRangeError creates a RuntimeError for a number outside the sieve.
func NewOutOfRangeError(number, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeOutOfRange,
		Message: fmt.Sprintf("%d outside [0, %d)", number, limit),
		Details: map[string]string{
			"number": fmt.Sprintf("%d", number),
			"limit":  fmt.Sprintf("%d", limit),
		},
	}
}
