package io

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rfm/internal/dataframe"
	dferrors "github.com/paveg/rfm/internal/errors"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"
)

// inferred column kinds when no schema is given
const (
	kindString = iota
	kindBool
	kindInt
	kindFloat
)

// Read reads CSV data and returns a DataFrame
func (r *CSVReader) Read() (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	if len(records) == 0 {
		if r.options.Schema != nil {
			return r.emptyFrame(r.options.Schema.Names())
		}
		return dataframe.New(), nil
	}

	var headers []string
	dataRows := records
	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		width := len(records[0])
		if r.options.Schema != nil {
			width = len(r.options.Schema.Fields)
		}
		headers = make([]string, width)
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		if r.options.Schema != nil {
			copy(headers, r.options.Schema.Names())
		}
	}
	for i, h := range headers {
		headers[i] = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
	}

	if r.options.Schema != nil {
		return r.readWithSchema(headers, dataRows)
	}

	columns := transpose(dataRows, len(headers))
	seriesList := make([]dataframe.ISeries, 0, len(headers))
	for i, header := range headers {
		s, err := r.createSeriesFromStrings(header, columns[i])
		if err != nil {
			releaseSeries(seriesList)
			return nil, fmt.Errorf("creating series for column %s: %w", header, err)
		}
		seriesList = append(seriesList, s)
	}
	return dataframe.NewSafe(seriesList...)
}

// readWithSchema looks columns up by header name and parses them as the
// schema's types. Extra columns in the file are ignored.
func (r *CSVReader) readWithSchema(headers []string, rows [][]string) (*dataframe.DataFrame, error) {
	position := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := position[h]; !dup {
			position[h] = i
		}
	}

	columns := transpose(rows, len(headers))
	seriesList := make([]dataframe.ISeries, 0, len(r.options.Schema.Fields))
	for _, field := range r.options.Schema.Fields {
		idx, ok := position[field.Name]
		if !ok {
			releaseSeries(seriesList)
			return nil, dferrors.NewColumnNotFoundError("ReadCSV", field.Name)
		}
		s, err := parseColumn(field, columns[idx], r.options.TimestampLayouts, r.mem)
		if err != nil {
			releaseSeries(seriesList)
			return nil, err
		}
		seriesList = append(seriesList, s)
	}
	return dataframe.NewSafe(seriesList...)
}

func (r *CSVReader) emptyFrame(names []string) (*dataframe.DataFrame, error) {
	seriesList := make([]dataframe.ISeries, 0, len(names))
	for _, name := range names {
		field := Field{Name: name, Type: TypeString}
		if r.options.Schema != nil {
			if f, ok := r.options.Schema.Field(name); ok {
				field = f
			}
		}
		s, err := parseColumn(field, nil, r.options.TimestampLayouts, r.mem)
		if err != nil {
			releaseSeries(seriesList)
			return nil, err
		}
		seriesList = append(seriesList, s)
	}
	return dataframe.New(seriesList...), nil
}

// transpose turns rows into columns; short rows are padded with empty fields.
func transpose(rows [][]string, width int) [][]string {
	columns := make([][]string, width)
	for i := range columns {
		columns[i] = make([]string, len(rows))
		for j, row := range rows {
			if i < len(row) {
				columns[i][j] = row[i]
			}
		}
	}
	return columns
}

// createSeriesFromStrings creates a series from string data, inferring the appropriate type
func (r *CSVReader) createSeriesFromStrings(name string, data []string) (dataframe.ISeries, error) {
	switch inferKind(data) {
	case kindBool:
		values := make([]bool, len(data))
		valid := make([]bool, len(data))
		for i, v := range data {
			if v != "" {
				values[i], valid[i] = strings.EqualFold(v, trueStr), true
			}
		}
		return nullable(name, values, valid, r.mem)
	case kindInt:
		return parseColumn(Field{Name: name, Type: TypeInt64}, data, nil, r.mem)
	case kindFloat:
		return parseColumn(Field{Name: name, Type: TypeFloat64}, data, nil, r.mem)
	default:
		return parseColumn(Field{Name: name, Type: TypeString}, data, nil, r.mem)
	}
}

// inferKind determines the most specific kind every non-empty value fits.
func inferKind(data []string) int {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	for _, value := range data {
		if value == "" {
			continue
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}
		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	switch {
	case !hasNonEmptyValue:
		return kindString
	case canBeBool:
		return kindBool
	case canBeInt:
		return kindInt
	case canBeFloat:
		return kindFloat
	default:
		return kindString
	}
}

// Write writes the DataFrame to CSV format. Nulls are written as empty fields.
func (w *CSVWriter) Write(df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	if w.options.Header {
		if err := csvWriter.Write(df.Columns()); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	columns := make([]dataframe.ISeries, 0, df.Width())
	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		columns = append(columns, col)
	}

	row := make([]string, len(columns))
	for i := range df.Len() {
		for j, col := range columns {
			row[j] = ""
			if !col.IsNull(i) {
				row[j] = col.GetAsString(i)
			}
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// ReadCSVFile reads the CSV file at path.
func ReadCSVFile(path string, options CSVOptions, mem memory.Allocator) (*dataframe.DataFrame, error) {
	return readFile(path, func(r io.Reader) DataReader {
		return NewCSVReader(r, options, mem)
	})
}

// WriteCSVFile writes df to path, replacing any existing file.
func WriteCSVFile(path string, df *dataframe.DataFrame, options CSVOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}()

	var w DataWriter = NewCSVWriter(f, options)
	if err := w.Write(df); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func releaseSeries(list []dataframe.ISeries) {
	for _, s := range list {
		s.Release()
	}
}
