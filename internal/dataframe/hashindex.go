package dataframe

import (
	"strconv"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
)

// Key components are tagged so a null never equals a value: nullTag alone
// marks a null, valueTag prefixes a value. Composite keys also carry each
// value's length, so no value content can imitate a component boundary.
const (
	nullTag  = '\x00'
	valueTag = '\x01'
)

// rowIndex groups row numbers by key. Groups are kept in first-appearance
// order; keys are bucketed by their xxhash and compared in full on collision.
type rowIndex struct {
	buckets map[uint64][]int // hash -> group ids
	keys    []string
	rows    [][]int
}

func newRowIndex(estimatedSize int) *rowIndex {
	return &rowIndex{
		buckets: make(map[uint64][]int, estimatedSize),
	}
}

// add records row under key and returns the group id.
func (ri *rowIndex) add(key string, row int) int {
	hash := xxhash.Sum64String(key)
	for _, id := range ri.buckets[hash] {
		if ri.keys[id] == key {
			ri.rows[id] = append(ri.rows[id], row)
			return id
		}
	}

	id := len(ri.keys)
	ri.keys = append(ri.keys, key)
	ri.rows = append(ri.rows, []int{row})
	ri.buckets[hash] = append(ri.buckets[hash], id)
	return id
}

// get returns the rows recorded under key.
func (ri *rowIndex) get(key string) []int {
	for _, id := range ri.buckets[xxhash.Sum64String(key)] {
		if ri.keys[id] == key {
			return ri.rows[id]
		}
	}
	return nil
}

// groups returns the number of distinct keys.
func (ri *rowIndex) groups() int {
	return len(ri.keys)
}

// firstRows returns the first row of every group, in group order.
func (ri *rowIndex) firstRows() []int {
	first := make([]int, len(ri.rows))
	for i, rows := range ri.rows {
		first[i] = rows[0]
	}
	return first
}

// rowKey builds the composite key of row i over cols. The second result is
// false when any key column is null.
func rowKey(cols []ISeries, i int) (string, bool) {
	if len(cols) == 1 {
		if cols[0].IsNull(i) {
			return string(nullTag), false
		}
		return string(valueTag) + cols[0].GetAsString(i), true
	}

	var b strings.Builder
	complete := true
	for _, col := range cols {
		if col.IsNull(i) {
			b.WriteByte(nullTag)
			complete = false
			continue
		}
		v := col.GetAsString(i)
		b.WriteByte(valueTag)
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String(), complete
}

// indexRows builds a rowIndex over every row of df keyed by cols. Rows with a
// null key are skipped when skipNulls is set.
func indexRows(df *DataFrame, cols []string, skipNulls bool) *rowIndex {
	keyCols := make([]ISeries, len(cols))
	for i, name := range cols {
		keyCols[i] = df.columns[name]
	}

	idx := newRowIndex(df.Len())
	for i := range df.Len() {
		key, complete := rowKey(keyCols, i)
		if !complete && skipNulls {
			continue
		}
		idx.add(key, i)
	}
	return idx
}
