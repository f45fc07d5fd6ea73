// Package errors provides the error type returned by engine operations.
// DataFrameError carries the failing operation and column so callers can
// report precise failures and match them with errors.Is.
package errors

import (
	"fmt"
)

// DataFrameError represents a failed DataFrame operation
type DataFrameError struct {
	Op      string // Operation name (e.g., "GroupBy", "Join", "ReadCSV")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *DataFrameError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, msg)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, msg)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *DataFrameError) Unwrap() error {
	return e.Cause
}

// Is matches another DataFrameError by operation, column and message. Empty
// fields in target act as wildcards, so ErrColumnNotFound matches any
// missing-column failure.
func (e *DataFrameError) Is(target error) bool {
	df, ok := target.(*DataFrameError)
	if !ok {
		return false
	}
	return (df.Op == "" || e.Op == df.Op) &&
		(df.Column == "" || e.Column == df.Column) &&
		(df.Message == "" || e.Message == df.Message)
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: msgColumnNotFound,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Message: message,
	}
}

// NewUnsupportedTypeError creates an error for unsupported data types
func NewUnsupportedTypeError(op, column, typeName string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

// NewValidationError creates an error for input validation failures
func NewValidationError(op, column, message string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewLengthMismatchError creates an error for columns of unequal length
func NewLengthMismatchError(op, column string, want, got int) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("%s: expected %d rows, got %d", msgMismatchedLength, want, got),
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

const (
	msgColumnNotFound   = "column does not exist"
	msgMismatchedLength = "arrays must have the same length"
)

// Sentinels for errors.Is matching.
var (
	// ErrColumnNotFound matches any missing-column failure.
	ErrColumnNotFound = &DataFrameError{Message: msgColumnNotFound}

	// ErrEmptyDataFrame indicates operations that need at least one row
	ErrEmptyDataFrame = &DataFrameError{
		Op:      "validation",
		Message: "operation not supported on empty DataFrame",
	}
)
