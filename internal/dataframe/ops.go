package dataframe

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	dferrors "github.com/paveg/rfm/internal/errors"
	"github.com/paveg/rfm/internal/series"
)

// DropNulls returns the rows that have no null in any column.
func (df *DataFrame) DropNulls() (*DataFrame, error) {
	masks := forEachColumn(df, func(s ISeries) []bool {
		if s.NullCount() == 0 {
			return nil
		}
		valid := make([]bool, s.Len())
		for i := range valid {
			valid[i] = !s.IsNull(i)
		}
		return valid
	})

	keep := make([]bool, df.Len())
	for i := range keep {
		keep[i] = true
	}
	for _, valid := range masks {
		for i, ok := range valid {
			keep[i] = keep[i] && ok
		}
	}
	return df.Filter(keep)
}

// NonNullCounts returns the number of non-null values in every column.
func (df *DataFrame) NonNullCounts() map[string]int {
	counts := forEachColumn(df, func(s ISeries) int {
		return s.Len() - s.NullCount()
	})

	result := make(map[string]int, len(counts))
	for i, name := range df.order {
		result[name] = counts[i]
	}
	return result
}

// Distinct returns the first row of every distinct combination of cols. With
// no cols, all columns are compared.
func (df *DataFrame) Distinct(cols ...string) (*DataFrame, error) {
	if len(cols) == 0 {
		cols = df.order
	}
	if err := df.Require("Distinct", cols...); err != nil {
		return nil, err
	}
	if df.Width() == 0 {
		return New(), nil
	}
	return df.Take(indexRows(df, cols, false).firstRows())
}

// SortBy returns the rows ordered by column. The sort is stable and nulls go
// last in both directions.
func (df *DataFrame) SortBy(column string, ascending bool) (*DataFrame, error) {
	col, exists := df.Column(column)
	if !exists {
		return nil, dferrors.NewColumnNotFoundError("SortBy", column)
	}
	arr := col.Array()
	defer arr.Release()

	var compare func(i, j int) int
	switch typed := arr.(type) {
	case *array.String:
		compare = func(i, j int) int { return cmp.Compare(typed.Value(i), typed.Value(j)) }
	case *array.Int64:
		compare = func(i, j int) int { return cmp.Compare(typed.Value(i), typed.Value(j)) }
	case *array.Float64:
		compare = func(i, j int) int { return cmp.Compare(typed.Value(i), typed.Value(j)) }
	case *array.Timestamp:
		compare = func(i, j int) int { return cmp.Compare(typed.Value(i), typed.Value(j)) }
	default:
		return nil, dferrors.NewUnsupportedTypeError("SortBy", column, arr.DataType().String())
	}

	indices := make([]int, df.Len())
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(i, j int) int {
		iNull, jNull := arr.IsNull(i), arr.IsNull(j)
		switch {
		case iNull && jNull:
			return 0
		case iNull:
			return 1
		case jNull:
			return -1
		}
		if ascending {
			return compare(i, j)
		}
		return compare(j, i)
	})
	return df.Take(indices)
}

// Rename returns a DataFrame where column oldName is called newName.
func (df *DataFrame) Rename(oldName, newName string) (*DataFrame, error) {
	s, exists := df.Column(oldName)
	if !exists {
		return nil, dferrors.NewColumnNotFoundError("Rename", oldName)
	}
	if oldName != newName && df.HasColumn(newName) {
		return nil, dferrors.NewValidationError("Rename", newName, "column already exists")
	}

	renamed, err := renameSeries(s, newName)
	if err != nil {
		return nil, err
	}

	result := make([]ISeries, 0, df.Width())
	for _, name := range df.order {
		if name == oldName {
			result = append(result, renamed)
			continue
		}
		existing := df.columns[name]
		existing.Retain()
		result = append(result, existing)
	}
	return New(result...), nil
}

func renameSeries(s ISeries, name string) (ISeries, error) {
	switch typed := s.(type) {
	case *series.Series[string]:
		return typed.Rename(name), nil
	case *series.Series[int64]:
		return typed.Rename(name), nil
	case *series.Series[float64]:
		return typed.Rename(name), nil
	case *series.Series[bool]:
		return typed.Rename(name), nil
	case *series.Series[time.Time]:
		return typed.Rename(name), nil
	default:
		return nil, dferrors.NewUnsupportedTypeError("Rename", s.Name(), fmt.Sprintf("%T", s))
	}
}

// Float64Values returns the values of a numeric column as float64 with a
// validity mask. Int64 columns are converted.
func (df *DataFrame) Float64Values(column string) ([]float64, []bool, error) {
	col, exists := df.Column(column)
	if !exists {
		return nil, nil, dferrors.NewColumnNotFoundError("Float64Values", column)
	}
	arr := col.Array()
	defer arr.Release()

	values := make([]float64, arr.Len())
	valid := make([]bool, arr.Len())
	switch typed := arr.(type) {
	case *array.Float64:
		for i := range values {
			values[i], valid[i] = typed.Value(i), typed.IsValid(i)
		}
	case *array.Int64:
		for i := range values {
			values[i], valid[i] = float64(typed.Value(i)), typed.IsValid(i)
		}
	default:
		return nil, nil, dferrors.NewUnsupportedTypeError("Float64Values", column, arr.DataType().String())
	}
	return values, valid, nil
}

// TimeValues returns the values of a timestamp column with a validity mask.
func (df *DataFrame) TimeValues(column string) ([]time.Time, []bool, error) {
	col, exists := df.Column(column)
	if !exists {
		return nil, nil, dferrors.NewColumnNotFoundError("TimeValues", column)
	}
	arr := col.Array()
	defer arr.Release()

	typed, ok := arr.(*array.Timestamp)
	if !ok {
		return nil, nil, dferrors.NewUnsupportedTypeError("TimeValues", column, arr.DataType().String())
	}
	values := make([]time.Time, typed.Len())
	valid := make([]bool, typed.Len())
	for i := range values {
		if typed.IsValid(i) {
			values[i], valid[i] = typed.Value(i).ToTime(arrow.Microsecond), true
		}
	}
	return values, valid, nil
}

// StringValues returns the textual form of every value of column with a
// validity mask.
func (df *DataFrame) StringValues(column string) ([]string, []bool, error) {
	col, exists := df.Column(column)
	if !exists {
		return nil, nil, dferrors.NewColumnNotFoundError("StringValues", column)
	}
	values := make([]string, col.Len())
	valid := make([]bool, col.Len())
	for i := range values {
		if !col.IsNull(i) {
			values[i], valid[i] = col.GetAsString(i), true
		}
	}
	return values, valid, nil
}
