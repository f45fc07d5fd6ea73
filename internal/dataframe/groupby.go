package dataframe

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	dferrors "github.com/paveg/rfm/internal/errors"
	"github.com/paveg/rfm/internal/series"
	"golang.org/x/exp/constraints"
)

// GroupBy holds the rows of a DataFrame partitioned by key columns. Rows with
// null keys form their own groups.
type GroupBy struct {
	df   *DataFrame
	keys []string
	idx  *rowIndex
}

// GroupBy partitions the rows by the given key columns.
func (df *DataFrame) GroupBy(keys ...string) (*GroupBy, error) {
	if len(keys) == 0 {
		return nil, dferrors.NewInvalidInputError("GroupBy", "at least one key column is required")
	}
	if err := df.Require("GroupBy", keys...); err != nil {
		return nil, err
	}
	return &GroupBy{
		df:   df,
		keys: append([]string{}, keys...),
		idx:  indexRows(df, keys, false),
	}, nil
}

// Groups returns the number of groups.
func (gb *GroupBy) Groups() int {
	return gb.idx.groups()
}

// Count returns one row per group with the number of rows in the group.
func (gb *GroupBy) Count(alias string) (*DataFrame, error) {
	counts := make([]int64, gb.idx.groups())
	for i, rows := range gb.idx.rows {
		counts[i] = int64(len(rows))
	}
	s, err := series.NewSafe(alias, counts, memory.NewGoAllocator())
	if err != nil {
		return nil, dferrors.NewInternalError("Count", err)
	}
	return gb.withAggregate(s)
}

// CountDistinct returns one row per group with the number of distinct
// non-null values of column.
func (gb *GroupBy) CountDistinct(column, alias string) (*DataFrame, error) {
	col, exists := gb.df.Column(column)
	if !exists {
		return nil, dferrors.NewColumnNotFoundError("CountDistinct", column)
	}

	counts := make([]int64, gb.idx.groups())
	for g, rows := range gb.idx.rows {
		seen := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			if !col.IsNull(row) {
				seen[col.GetAsString(row)] = struct{}{}
			}
		}
		counts[g] = int64(len(seen))
	}
	s, err := series.NewSafe(alias, counts, memory.NewGoAllocator())
	if err != nil {
		return nil, dferrors.NewInternalError("CountDistinct", err)
	}
	return gb.withAggregate(s)
}

// Sum returns one row per group with the sum of column. Nulls are skipped; a
// group with only nulls sums to null.
func (gb *GroupBy) Sum(column, alias string) (*DataFrame, error) {
	return gb.fold("Sum", column, alias, func(acc, v float64) float64 { return acc + v },
		func(acc, v int64) int64 { return acc + v }, false)
}

// Min returns one row per group with the smallest value of column.
func (gb *GroupBy) Min(column, alias string) (*DataFrame, error) {
	return gb.fold("Min", column, alias, minOf[float64], minOf[int64], true)
}

// Max returns one row per group with the largest value of column.
func (gb *GroupBy) Max(column, alias string) (*DataFrame, error) {
	return gb.fold("Max", column, alias, maxOf[float64], maxOf[int64], true)
}

func (gb *GroupBy) fold(
	op, column, alias string,
	floatFold func(acc, v float64) float64,
	intFold func(acc, v int64) int64,
	allowTimestamps bool,
) (*DataFrame, error) {
	col, exists := gb.df.Column(column)
	if !exists {
		return nil, dferrors.NewColumnNotFoundError(op, column)
	}
	arr := col.Array()
	defer arr.Release()

	mem := memory.NewGoAllocator()
	var (
		s   ISeries
		err error
	)
	switch typed := arr.(type) {
	case *array.Float64:
		values, valid := foldGroups(gb.idx.rows, typed.IsNull, typed.Value, floatFold)
		s, err = series.NewNullable(alias, values, valid, mem)
	case *array.Int64:
		values, valid := foldGroups(gb.idx.rows, typed.IsNull, typed.Value, intFold)
		s, err = series.NewNullable(alias, values, valid, mem)
	case *array.Timestamp:
		if !allowTimestamps {
			return nil, dferrors.NewUnsupportedTypeError(op, column, arr.DataType().String())
		}
		micros, valid := foldGroups(gb.idx.rows, typed.IsNull, func(i int) int64 {
			return int64(typed.Value(i))
		}, intFold)
		times := make([]time.Time, len(micros))
		for i, us := range micros {
			times[i] = arrow.Timestamp(us).ToTime(arrow.Microsecond)
		}
		s, err = series.NewNullable(alias, times, valid, mem)
	default:
		return nil, dferrors.NewUnsupportedTypeError(op, column, arr.DataType().String())
	}
	if err != nil {
		return nil, dferrors.NewInternalError(op, err)
	}
	return gb.withAggregate(s)
}

// foldGroups reduces the non-null values of every group with fn.
func foldGroups[T constraints.Integer | constraints.Float](
	groups [][]int, isNull func(int) bool, value func(int) T, fn func(acc, v T) T,
) ([]T, []bool) {
	results := make([]T, len(groups))
	valid := make([]bool, len(groups))
	for g, rows := range groups {
		for _, row := range rows {
			if isNull(row) {
				continue
			}
			if !valid[g] {
				results[g] = value(row)
				valid[g] = true
				continue
			}
			results[g] = fn(results[g], value(row))
		}
	}
	return results, valid
}

func minOf[T constraints.Ordered](a, b T) T { return min(a, b) }

func maxOf[T constraints.Ordered](a, b T) T { return max(a, b) }

// withAggregate returns the key columns of every group followed by s.
func (gb *GroupBy) withAggregate(s ISeries) (*DataFrame, error) {
	keyCols := gb.df.Select(gb.keys...)
	defer keyCols.Release()

	keys, err := keyCols.Take(gb.idx.firstRows())
	if err != nil {
		s.Release()
		return nil, err
	}
	defer keys.Release()

	result, err := keys.WithColumn(s)
	if err != nil {
		s.Release()
		return nil, err
	}
	return result, nil
}
