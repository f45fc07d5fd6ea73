package io

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paveg/rfm/internal/series"
	"github.com/xuri/excelize/v2"
)

// ErrNoHeader is returned when a sheet has no header row.
var ErrNoHeader = errors.New("sheet has no header row")

// XLSXOptions configures spreadsheet conversion.
type XLSXOptions struct {
	// Sheet to convert; empty selects the first sheet.
	Sheet string
	// Delimiter of the output file.
	Delimiter rune
	// DateColumns are rendered with series.TimestampLayout.
	DateColumns []string
	// Progress is called after every data row with the rows written so far
	// and the expected total, or -1 when the sheet size is unknown.
	Progress func(done, total int)
}

// DefaultXLSXOptions returns options producing a semicolon-delimited file.
func DefaultXLSXOptions() XLSXOptions {
	return XLSXOptions{Delimiter: ';'}
}

// XLSXConverter converts a worksheet into delimited text with a header row.
type XLSXConverter struct {
	options XLSXOptions
}

// NewXLSXConverter creates a converter with the given options.
func NewXLSXConverter(options XLSXOptions) *XLSXConverter {
	if options.Delimiter == 0 {
		options.Delimiter = ';'
	}
	return &XLSXConverter{options: options}
}

// ConvertFile converts the workbook at src into a delimited file at dst and
// returns the number of data rows written.
func (c *XLSXConverter) ConvertFile(ctx context.Context, src, dst string) (n int, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", dst, closeErr)
		}
	}()

	return c.Convert(ctx, in, out)
}

// Convert reads a workbook from src and writes the selected sheet to dst.
// Cells keep their raw stored values, except date columns which are
// rendered as wall-clock timestamps.
func (c *XLSXConverter) Convert(ctx context.Context, src io.Reader, dst io.Writer) (int, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet, err := c.sheetName(f)
	if err != nil {
		return 0, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return 0, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, fmt.Errorf("sheet %s: %w", sheet, ErrNoHeader)
	}
	header, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("reading header of %s: %w", sheet, err)
	}
	header = trimTrailingEmpty(header)
	if len(header) == 0 {
		return 0, fmt.Errorf("sheet %s: %w", sheet, ErrNoHeader)
	}

	isDate := make([]bool, len(header))
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		for _, d := range c.options.DateColumns {
			if header[i] == d {
				isDate[i] = true
			}
		}
	}

	w := csv.NewWriter(dst)
	w.Comma = c.options.Delimiter
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	total := sheetRows(f, sheet)
	written := 0
	rowNum := 1
	record := make([]string, len(header))
	for rows.Next() {
		rowNum++
		if err := ctx.Err(); err != nil {
			return written, err
		}
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return written, fmt.Errorf("reading row %d: %w", written+2, err)
		}
		if len(trimTrailingEmpty(cells)) == 0 {
			continue
		}

		for i := range record {
			record[i] = ""
			if i >= len(cells) {
				continue
			}
			if isDate[i] {
				record[i] = formatDateCell(cells[i], date1904)
				continue
			}
			record[i] = formatCell(f, sheet, i+1, rowNum, cells[i])
		}
		if err := w.Write(record); err != nil {
			return written, fmt.Errorf("writing row %d: %w", written+2, err)
		}
		written++
		if c.options.Progress != nil {
			c.options.Progress(written, total)
		}
	}
	if err := rows.Error(); err != nil {
		return written, fmt.Errorf("iterating sheet %s: %w", sheet, err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return written, fmt.Errorf("flushing output: %w", err)
	}
	return written, nil
}

func (c *XLSXConverter) sheetName(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	if c.options.Sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == c.options.Sheet {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (have %s)", c.options.Sheet, strings.Join(sheets, ", "))
}

// sheetRows returns the number of data rows from the sheet dimension, or -1.
func sheetRows(f *excelize.File, sheet string) int {
	dim, err := f.GetSheetDimension(sheet)
	if err != nil {
		return -1
	}
	parts := strings.Split(dim, ":")
	if len(parts) != 2 {
		return -1
	}
	_, last, err := excelize.CellNameToCoordinates(parts[1])
	if err != nil || last < 2 {
		return -1
	}
	return last - 1
}

// formatCell normalises stored floating point noise such as
// "2.5499999999999998" in numeric cells to its shortest representation.
// Text cells are written as stored, even when they read as numbers.
func formatCell(f *excelize.File, sheet string, col, row int, raw string) string {
	if !strings.ContainsAny(raw, ".eE") {
		return raw
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	if !isNumberCell(f, sheet, col, row) {
		return raw
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isNumberCell reports whether the cell is stored as a number. Cells without
// a type attribute are numbers.
func isNumberCell(f *excelize.File, sheet string, col, row int) bool {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return false
	}
	return typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset
}

// formatDateCell renders a serial date; text dates are passed through.
func formatDateCell(raw string, date1904 bool) string {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return raw
	}
	return t.Round(time.Second).Format(series.TimestampLayout)
}

func trimTrailingEmpty(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}
