package io

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rfm/internal/dataframe"
	"github.com/paveg/rfm/internal/series"
)

// FieldType is the logical type of a schema field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt64
	TypeFloat64
	TypeTimestamp
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is a named, typed column of a Schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema is an ordered list of fields.
type Schema struct {
	Fields []Field
}

// NewSchema returns a schema with the given fields.
func NewSchema(fields ...Field) *Schema {
	return &Schema{Fields: append([]Field{}, fields...)}
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field called name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DefaultTimestampLayouts returns the layouts tried when parsing timestamps:
// the converter's own output first, then common spreadsheet exports.
func DefaultTimestampLayouts() []string {
	return []string{
		series.TimestampLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04",
		"1/2/06 15:04",
		"2006-01-02",
	}
}

// parseColumn builds a nullable series of the field's type. Empty and
// unparsable values become nulls.
func parseColumn(field Field, raw []string, layouts []string, mem memory.Allocator) (dataframe.ISeries, error) {
	valid := make([]bool, len(raw))
	switch field.Type {
	case TypeString:
		for i, v := range raw {
			valid[i] = v != ""
		}
		return nullable(field.Name, raw, valid, mem)
	case TypeInt64:
		values := make([]int64, len(raw))
		for i, v := range raw {
			values[i], valid[i] = parseInt(v)
		}
		return nullable(field.Name, values, valid, mem)
	case TypeFloat64:
		values := make([]float64, len(raw))
		for i, v := range raw {
			values[i], valid[i] = parseFloat(v)
		}
		return nullable(field.Name, values, valid, mem)
	case TypeTimestamp:
		values := make([]time.Time, len(raw))
		for i, v := range raw {
			values[i], valid[i] = parseTimestamp(v, layouts)
		}
		return nullable(field.Name, values, valid, mem)
	default:
		return nil, fmt.Errorf("column %s: unsupported field type %s", field.Name, field.Type)
	}
}

func nullable[T any](name string, values []T, valid []bool, mem memory.Allocator) (dataframe.ISeries, error) {
	s, err := series.NewNullable(name, values, valid, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// parseInt accepts integral floats such as "6.0", which spreadsheet exports
// produce for integer cells.
func parseInt(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseFloat(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseTimestamp(v string, layouts []string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
