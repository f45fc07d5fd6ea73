package io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/rfm/internal/dataframe"
)

// Read reads Parquet data and returns a DataFrame.
func (r *ParquetReader) Read() (*dataframe.DataFrame, error) {
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.arrowTableToDataFrame(table)
}

// Write writes the DataFrame to Parquet format.
func (w *ParquetWriter) Write(df *dataframe.DataFrame) error {
	table := dataFrameToArrowTable(df)
	defer table.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compressionCodec(w.options.Compression)),
		parquet.WithBatchSize(int64(max(w.options.BatchSize, 1))),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(table.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	chunkSize := int64(max(df.Len(), 1))
	if err := writer.WriteTable(table, chunkSize); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}

func compressionCodec(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

// WriteParquetFile writes df to path, replacing any existing file.
func WriteParquetFile(path string, df *dataframe.DataFrame, options ParquetOptions) error {
	var buf bytes.Buffer
	var w DataWriter = NewParquetWriter(&buf, options)
	if err := w.Write(df); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // export files are meant to be shared
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadParquetFile reads the Parquet file at path.
func ReadParquetFile(path string, options ParquetOptions, mem memory.Allocator) (*dataframe.DataFrame, error) {
	return readFile(path, func(r io.Reader) DataReader {
		return NewParquetReader(r, options, mem)
	})
}

// arrowTableToDataFrame converts an Arrow table to a DataFrame.
func (r *ParquetReader) arrowTableToDataFrame(table arrow.Table) (*dataframe.DataFrame, error) {
	schema := table.Schema()
	seriesList := make([]dataframe.ISeries, 0, table.NumCols())

	for i := range int(table.NumCols()) {
		field := schema.Field(i)
		s, err := r.arrowColumnToSeries(field.Name, table.Column(i))
		if err != nil {
			releaseSeries(seriesList)
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		seriesList = append(seriesList, s)
	}
	return dataframe.NewSafe(seriesList...)
}

// arrowColumnToSeries flattens the chunks of column into one series.
func (r *ParquetReader) arrowColumnToSeries(name string, column *arrow.Column) (dataframe.ISeries, error) {
	chunks := column.Data().Chunks()

	var arr arrow.Array
	switch len(chunks) {
	case 0:
		arr = array.MakeArrayOfNull(r.mem, column.DataType(), 0)
	case 1:
		arr = chunks[0]
		arr.Retain()
	default:
		concatenated, err := array.Concatenate(chunks, r.mem)
		if err != nil {
			return nil, err
		}
		arr = concatenated
	}
	defer arr.Release()

	return arrayToSeries(name, arr, r.mem)
}

// arrayToSeries copies arr into a series of the matching Go type.
func arrayToSeries(name string, arr arrow.Array, mem memory.Allocator) (dataframe.ISeries, error) {
	switch typed := arr.(type) {
	case *array.String:
		return copyArray(name, arr, typed.Value, mem)
	case *array.LargeString:
		return copyArray(name, arr, typed.Value, mem)
	case *array.Int64:
		return copyArray(name, arr, typed.Value, mem)
	case *array.Int32:
		return copyArray(name, arr, func(i int) int64 { return int64(typed.Value(i)) }, mem)
	case *array.Float64:
		return copyArray(name, arr, typed.Value, mem)
	case *array.Float32:
		return copyArray(name, arr, func(i int) float64 { return float64(typed.Value(i)) }, mem)
	case *array.Boolean:
		return copyArray(name, arr, typed.Value, mem)
	case *array.Timestamp:
		unit := typed.DataType().(*arrow.TimestampType).Unit
		return copyArray(name, arr, func(i int) time.Time { return typed.Value(i).ToTime(unit) }, mem)
	case *array.Null:
		return copyArray(name, arr, func(int) string { return "" }, mem)
	default:
		return nil, fmt.Errorf("unsupported Arrow type: %s", arr.DataType())
	}
}

func copyArray[T any](name string, arr arrow.Array, value func(int) T, mem memory.Allocator) (dataframe.ISeries, error) {
	values := make([]T, arr.Len())
	valid := make([]bool, arr.Len())
	for i := range values {
		if arr.IsValid(i) {
			values[i], valid[i] = value(i), true
		}
	}
	return nullable(name, values, valid, mem)
}

// dataFrameToArrowTable wraps the series arrays of df in an Arrow table.
func dataFrameToArrowTable(df *dataframe.DataFrame) arrow.Table {
	names := df.Columns()
	fields := make([]arrow.Field, 0, len(names))
	arrays := make([]arrow.Array, 0, len(names))

	for _, name := range names {
		col, _ := df.Column(name)
		arr := col.Array()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}

	schema := arrow.NewSchema(fields, nil)
	record := array.NewRecord(schema, arrays, int64(df.Len()))
	for _, arr := range arrays {
		arr.Release()
	}
	defer record.Release()

	return array.NewTableFromRecords(schema, []arrow.Record{record})
}
