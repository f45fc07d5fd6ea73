package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	dferrors "github.com/paveg/rfm/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestDataFrameError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *dferrors.DataFrameError
		expected string
	}{
		{
			name:     "with column",
			err:      dferrors.NewColumnNotFoundError("Select", "CustomerID"),
			expected: "Select operation failed on column 'CustomerID': column does not exist",
		},
		{
			name:     "without column",
			err:      dferrors.NewInvalidInputError("Join", "join key must not be empty"),
			expected: "Join operation failed: join key must not be empty",
		},
		{
			name:     "with cause",
			err:      dferrors.NewInternalError("ReadCSV", fmt.Errorf("unexpected EOF")),
			expected: "ReadCSV operation failed: internal error occurred: unexpected EOF",
		},
		{
			name:     "length mismatch",
			err:      dferrors.NewLengthMismatchError("WithColumn", "recency", 4, 3),
			expected: "WithColumn operation failed on column 'recency': arrays must have the same length: expected 4 rows, got 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDataFrameError_Is(t *testing.T) {
	err := fmt.Errorf("computing frequency: %w", dferrors.NewColumnNotFoundError("GroupBy", "InvoiceNo"))

	assert.ErrorIs(t, err, dferrors.ErrColumnNotFound)
	assert.ErrorIs(t, err, dferrors.NewColumnNotFoundError("GroupBy", "InvoiceNo"))
	assert.NotErrorIs(t, err, dferrors.NewColumnNotFoundError("GroupBy", "Country"))
	assert.NotErrorIs(t, err, dferrors.ErrEmptyDataFrame)
}

func TestDataFrameError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := dferrors.NewInternalError("WriteParquet", cause)

	assert.ErrorIs(t, err, cause)

	var dfErr *dferrors.DataFrameError
	assert.ErrorAs(t, fmt.Errorf("export: %w", err), &dfErr)
	assert.Equal(t, "WriteParquet", dfErr.Op)
}
