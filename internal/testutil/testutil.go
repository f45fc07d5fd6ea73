// Package testutil builds order line fixtures shared by the test suites.
//
// Fixtures follow the order line schema of the rfm package:
//
//	lines := []testutil.OrderLine{
//		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55),
//		testutil.Line(13047, "536367", "2010-12-01 08:34:00", 32, 1.69).Without(rfm.ColDescription),
//	}
//	df := testutil.NewOrderLines(t, mem.Allocator, lines...)
//	defer df.Release()
package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rfm/internal/dataframe"
	"github.com/paveg/rfm/internal/rfm"
	"github.com/paveg/rfm/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator for tests.
// Returns a TestMemoryContext that should be released with defer.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewGoAllocator(),
		cleanup:   func() {},
	}
}

// OrderLine is one row of an order line fixture. Columns listed in Missing
// are null.
type OrderLine struct {
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    int64
	InvoiceDate time.Time
	UnitPrice   float64
	CustomerID  float64
	Country     string
	Missing     []string
}

// Line returns an order line of customer for invoice placed at date
// (2006-01-02 15:04:05). Product and country take fixed values.
func Line(customer float64, invoice, date string, qty int64, price float64) OrderLine {
	t, err := time.Parse(series.TimestampLayout, date)
	if err != nil {
		panic("testutil: bad order date " + date)
	}
	return OrderLine{
		InvoiceNo:   invoice,
		StockCode:   "85123A",
		Description: "WHITE HANGING HEART T-LIGHT HOLDER",
		Quantity:    qty,
		InvoiceDate: t,
		UnitPrice:   price,
		CustomerID:  customer,
		Country:     "United Kingdom",
	}
}

// Without returns a copy of l with the given columns null.
func (l OrderLine) Without(columns ...string) OrderLine {
	l.Missing = append(slices.Clone(l.Missing), columns...)
	return l
}

// In returns a copy of l placed from country.
func (l OrderLine) In(country string) OrderLine {
	l.Country = country
	return l
}

func (l OrderLine) has(column string) bool {
	return !slices.Contains(l.Missing, column)
}

// NewOrderLines builds an order line frame with the column types the CSV
// reader produces.
func NewOrderLines(tb testing.TB, allocator memory.Allocator, lines ...OrderLine) *dataframe.DataFrame {
	tb.Helper()

	n := len(lines)
	invoices, stockCodes := make([]string, n), make([]string, n)
	descriptions, countries := make([]string, n), make([]string, n)
	quantities, dates := make([]int64, n), make([]time.Time, n)
	prices, customers := make([]float64, n), make([]float64, n)
	valid := make(map[string][]bool)
	for _, name := range rfm.Schema().Names() {
		valid[name] = make([]bool, n)
	}

	for i, l := range lines {
		invoices[i], stockCodes[i], descriptions[i], countries[i] = l.InvoiceNo, l.StockCode, l.Description, l.Country
		quantities[i], dates[i] = l.Quantity, l.InvoiceDate
		prices[i], customers[i] = l.UnitPrice, l.CustomerID
		for name, v := range valid {
			v[i] = l.has(name)
		}
	}

	list := []dataframe.ISeries{
		nullable(tb, rfm.ColInvoiceNo, invoices, valid, allocator),
		nullable(tb, rfm.ColStockCode, stockCodes, valid, allocator),
		nullable(tb, rfm.ColDescription, descriptions, valid, allocator),
		nullable(tb, rfm.ColQuantity, quantities, valid, allocator),
		nullable(tb, rfm.ColInvoiceDate, dates, valid, allocator),
		nullable(tb, rfm.ColUnitPrice, prices, valid, allocator),
		nullable(tb, rfm.ColCustomerID, customers, valid, allocator),
		nullable(tb, rfm.ColCountry, countries, valid, allocator),
	}
	return dataframe.New(list...)
}

func nullable[T any](tb testing.TB, name string, values []T, valid map[string][]bool, allocator memory.Allocator) dataframe.ISeries {
	tb.Helper()
	s, err := series.NewNullable(name, values, valid[name], allocator)
	require.NoError(tb, err)
	return s
}

// OrderLinesCSV renders lines as a delimited file with a header, the way a
// spreadsheet export looks. Null fields are empty.
func OrderLinesCSV(delimiter rune, lines ...OrderLine) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = delimiter

	_ = w.Write(rfm.Schema().Names())
	for _, l := range lines {
		row := []string{
			l.InvoiceNo,
			l.StockCode,
			l.Description,
			strconv.FormatInt(l.Quantity, 10),
			l.InvoiceDate.Format(series.TimestampLayout),
			strconv.FormatFloat(l.UnitPrice, 'f', -1, 64),
			strconv.FormatFloat(l.CustomerID, 'f', 1, 64),
			l.Country,
		}
		for i, name := range rfm.Schema().Names() {
			if !l.has(name) {
				row[i] = ""
			}
		}
		_ = w.Write(row)
	}
	w.Flush()
	return sb.String()
}

// WriteOrderLinesCSV writes lines to a semicolon-delimited file in a
// temporary directory and returns its path.
func WriteOrderLinesCSV(tb testing.TB, lines ...OrderLine) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "online_retail.csv")
	require.NoError(tb, os.WriteFile(path, []byte(OrderLinesCSV(';', lines...)), 0o600))
	return path
}

// AssertDataFrameHasColumns verifies that a DataFrame has exactly the
// expected columns.
func AssertDataFrameHasColumns(tb testing.TB, df *dataframe.DataFrame, expectedColumns []string) {
	tb.Helper()

	require.NotNil(tb, df, "DataFrame should not be nil")

	actualColumns := df.Columns()
	assert.Len(tb, actualColumns, len(expectedColumns), "column count should match")

	for _, col := range expectedColumns {
		assert.True(tb, df.HasColumn(col), "DataFrame should have column %s", col)
	}
}

// AssertColumnValues verifies the textual values of column, with "" for
// nulls.
func AssertColumnValues(tb testing.TB, df *dataframe.DataFrame, column string, expected ...string) {
	tb.Helper()

	values, valid, err := df.StringValues(column)
	require.NoError(tb, err)
	for i := range values {
		if !valid[i] {
			values[i] = ""
		}
	}
	assert.Equal(tb, expected, values, "values of column %s", column)
}
