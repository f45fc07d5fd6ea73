package dataframe

import (
	dferrors "github.com/paveg/rfm/internal/errors"
)

// JoinType represents the type of join operation
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// rightSuffix is appended to right-hand column names that clash with the left.
const rightSuffix = "_right"

func (jt JoinType) String() string {
	switch jt {
	case InnerJoin:
		return "inner"
	case LeftJoin:
		return "left"
	default:
		return "unknown"
	}
}

// Join hash-joins df with right on the key column present in both frames.
// Null keys never match. The result holds every left column followed by the
// right columns other than the key; clashing right names get a "_right"
// suffix. Left row order is preserved, and matches for one left row follow
// right row order.
func (df *DataFrame) Join(right *DataFrame, on string, how JoinType) (*DataFrame, error) {
	if on == "" {
		return nil, dferrors.NewInvalidInputError("Join", "join key must not be empty")
	}
	if err := df.Require("Join", on); err != nil {
		return nil, err
	}
	if err := right.Require("Join", on); err != nil {
		return nil, err
	}
	if how != InnerJoin && how != LeftJoin {
		return nil, dferrors.NewInvalidInputError("Join", "unsupported join type "+how.String())
	}

	built := indexRows(right, []string{on}, true)
	leftKey := []ISeries{df.columns[on]}

	leftIdx := make([]int, 0, df.Len())
	rightIdx := make([]int, 0, df.Len())
	for i := range df.Len() {
		key, complete := rowKey(leftKey, i)
		var matches []int
		if complete {
			matches = built.get(key)
		}
		if len(matches) == 0 {
			if how == LeftJoin {
				leftIdx = append(leftIdx, i)
				rightIdx = append(rightIdx, -1)
			}
			continue
		}
		for _, j := range matches {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
		}
	}

	leftPart, err := df.Take(leftIdx)
	if err != nil {
		return nil, err
	}
	defer leftPart.Release()

	rightCols := right.Drop(on)
	defer rightCols.Release()
	rightPart, err := rightCols.Take(rightIdx)
	if err != nil {
		return nil, err
	}
	defer rightPart.Release()

	combined := make([]ISeries, 0, leftPart.Width()+rightPart.Width())
	for _, name := range leftPart.order {
		s := leftPart.columns[name]
		s.Retain()
		combined = append(combined, s)
	}
	for _, name := range rightPart.order {
		s := rightPart.columns[name]
		if df.HasColumn(name) {
			renamed, err := renameSeries(s, name+rightSuffix)
			if err != nil {
				releaseAll(combined)
				return nil, err
			}
			combined = append(combined, renamed)
			continue
		}
		s.Retain()
		combined = append(combined, s)
	}
	return New(combined...), nil
}
