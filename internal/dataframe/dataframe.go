// Package dataframe provides the columnar table the analysis runs on.
//
// A DataFrame is an ordered set of equally long, Arrow-backed columns. Every
// operation returns a new DataFrame; columns that pass through unchanged are
// shared by reference counting, so each DataFrame must be released on its own.
package dataframe

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	dferrors "github.com/paveg/rfm/internal/errors"
	"github.com/paveg/rfm/internal/series"
)

// DataFrame represents a table of data with typed columns
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries. The DataFrame takes
// ownership of the series.
func New(series ...ISeries) *DataFrame {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		if _, exists := columns[name]; !exists {
			order = append(order, name)
		}
		columns[name] = s
	}

	return &DataFrame{
		columns: columns,
		order:   order,
	}
}

// NewSafe is New with validation: names must be unique and all columns must
// have the same length.
func NewSafe(series ...ISeries) (*DataFrame, error) {
	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if seen[s.Name()] {
			return nil, dferrors.NewValidationError("New", s.Name(), "duplicate column name")
		}
		seen[s.Name()] = true
		if s.Len() != series[0].Len() {
			return nil, dferrors.NewLengthMismatchError("New", s.Name(), series[0].Len(), s.Len())
		}
	}
	return New(series...), nil
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	return append([]string{}, df.order...)
}

// Len returns the number of rows
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.order)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	s, exists := df.columns[name]
	return s, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// ColumnType returns the Arrow type of the named column.
func (df *DataFrame) ColumnType(name string) (arrow.DataType, bool) {
	s, exists := df.columns[name]
	if !exists {
		return nil, false
	}
	return s.DataType(), true
}

// Require returns a column-not-found error for the first missing name.
func (df *DataFrame) Require(op string, names ...string) error {
	for _, name := range names {
		if !df.HasColumn(name) {
			return dferrors.NewColumnNotFoundError(op, name)
		}
	}
	return nil
}

// Select returns a new DataFrame with only the specified columns. Unknown
// names are ignored.
func (df *DataFrame) Select(names ...string) *DataFrame {
	selected := make([]ISeries, 0, len(names))
	for _, name := range names {
		if s, exists := df.columns[name]; exists {
			s.Retain()
			selected = append(selected, s)
		}
	}
	return New(selected...)
}

// Drop returns a new DataFrame without the specified columns
func (df *DataFrame) Drop(names ...string) *DataFrame {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		dropSet[name] = true
	}

	kept := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		if !dropSet[name] {
			s := df.columns[name]
			s.Retain()
			kept = append(kept, s)
		}
	}
	return New(kept...)
}

// WithColumn returns a new DataFrame with s appended, or replacing the
// column of the same name in place. The new DataFrame takes ownership of s.
func (df *DataFrame) WithColumn(s ISeries) (*DataFrame, error) {
	if df.Width() > 0 && s.Len() != df.Len() {
		return nil, dferrors.NewLengthMismatchError("WithColumn", s.Name(), df.Len(), s.Len())
	}

	result := make([]ISeries, 0, len(df.order)+1)
	replaced := false
	for _, name := range df.order {
		if name == s.Name() {
			result = append(result, s)
			replaced = true
			continue
		}
		existing := df.columns[name]
		existing.Retain()
		result = append(result, existing)
	}
	if !replaced {
		result = append(result, s)
	}
	return New(result...), nil
}

// Take returns a new DataFrame holding the rows at indices, in that order.
// A negative index produces a row of nulls.
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	mem := memory.NewGoAllocator()
	taken := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		s, err := takeSeries(df.columns[name], indices, mem)
		if err != nil {
			releaseAll(taken)
			return nil, err
		}
		taken = append(taken, s)
	}
	return New(taken...), nil
}

// Filter returns the rows where mask is true.
func (df *DataFrame) Filter(mask []bool) (*DataFrame, error) {
	if len(mask) != df.Len() {
		return nil, dferrors.NewLengthMismatchError("Filter", "", df.Len(), len(mask))
	}
	indices := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			indices = append(indices, i)
		}
	}
	return df.Take(indices)
}

// Slice returns rows from start (inclusive) to end (exclusive), clamped to
// the frame bounds.
func (df *DataFrame) Slice(start, end int) (*DataFrame, error) {
	start = max(start, 0)
	end = min(end, df.Len())
	if start >= end {
		return df.Take(nil)
	}
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return df.Take(indices)
}

// Head returns the first n rows.
func (df *DataFrame) Head(n int) (*DataFrame, error) {
	return df.Slice(0, n)
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}
	for _, name := range df.order {
		parts = append(parts, fmt.Sprintf("  %s: %s", name, df.columns[name].DataType().String()))
	}
	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (df *DataFrame) Release() {
	for _, s := range df.columns {
		s.Release()
	}
}

func releaseAll(list []ISeries) {
	for _, s := range list {
		s.Release()
	}
}

// takeSeries gathers the values of s at indices into a new series.
func takeSeries(s ISeries, indices []int, mem memory.Allocator) (ISeries, error) {
	arr := s.Array()
	defer arr.Release()

	switch typed := arr.(type) {
	case *array.String:
		return takeTyped(s.Name(), indices, mem, typed.IsNull, typed.Value)
	case *array.Int64:
		return takeTyped(s.Name(), indices, mem, typed.IsNull, typed.Value)
	case *array.Float64:
		return takeTyped(s.Name(), indices, mem, typed.IsNull, typed.Value)
	case *array.Boolean:
		return takeTyped(s.Name(), indices, mem, typed.IsNull, typed.Value)
	case *array.Timestamp:
		return takeTyped(s.Name(), indices, mem, typed.IsNull, func(i int) time.Time {
			return typed.Value(i).ToTime(arrow.Microsecond)
		})
	default:
		return nil, dferrors.NewUnsupportedTypeError("Take", s.Name(), arr.DataType().String())
	}
}

func takeTyped[T any](
	name string, indices []int, mem memory.Allocator,
	isNull func(int) bool, value func(int) T,
) (ISeries, error) {
	values := make([]T, len(indices))
	valid := make([]bool, len(indices))
	for i, idx := range indices {
		if idx < 0 || isNull(idx) {
			continue
		}
		values[i] = value(idx)
		valid[i] = true
	}
	return series.NewNullable(name, values, valid, mem)
}
