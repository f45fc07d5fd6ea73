// Package validation checks that a frame has the shape an operation expects
// before the operation touches its columns.
package validation

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rfm/internal/errors"
)

// Validator validates one condition.
type Validator interface {
	Validate() error
}

// ColumnProvider is implemented by frames exposing their columns.
type ColumnProvider interface {
	HasColumn(name string) bool
	ColumnType(name string) (arrow.DataType, bool)
}

// ColumnValidator validates column existence
type ColumnValidator struct {
	df      ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator requiring every column.
func NewColumnValidator(df ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{df: df, columns: columns, op: op}
}

// Validate checks if all columns exist
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if !v.df.HasColumn(column) {
			return errors.NewColumnNotFoundError(v.op, column)
		}
	}
	return nil
}

// TypeValidator validates that a column holds one of the supported Arrow
// types. A missing column is reported as not found.
type TypeValidator struct {
	df        ColumnProvider
	column    string
	supported []arrow.Type
	op        string
}

// NewTypeValidator creates a validator for the column's type.
func NewTypeValidator(df ColumnProvider, op, column string, supported ...arrow.Type) *TypeValidator {
	return &TypeValidator{df: df, column: column, supported: supported, op: op}
}

// Validate checks the column type against the supported types.
func (v *TypeValidator) Validate() error {
	dt, ok := v.df.ColumnType(v.column)
	if !ok {
		return errors.NewColumnNotFoundError(v.op, v.column)
	}
	for _, id := range v.supported {
		if dt.ID() == id {
			return nil
		}
	}
	return errors.NewUnsupportedTypeError(v.op, v.column, dt.String())
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{validators: validators}
}

// Add appends validators.
func (v *CompoundValidator) Add(validators ...Validator) *CompoundValidator {
	v.validators = append(v.validators, validators...)
	return v
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateColumns is a convenience function for column validation
func ValidateColumns(df ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(df, op, columns...).Validate()
}
