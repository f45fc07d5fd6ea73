package rfm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paveg/rfm"
	"github.com/paveg/rfm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	opts := rfm.DefaultOptions()
	opts.Reference = time.Date(2011, 12, 10, 0, 0, 0, 0, time.UTC)
	opts.InputPath = testutil.WriteOrderLinesCSV(t,
		testutil.Line(12346, "536365", "2011-12-05 10:00:00", 10, 5),
		testutil.Line(17850, "536370", "2011-12-08 12:30:00", 1, 60),
	)
	opts.ResultPath = filepath.Join(dir, "result.csv")
	opts.Thresholds.Frequency = rfm.Ladder{A: 1, B: 1, HigherIsBetter: true}
	opts.Thresholds.Monetary = rfm.Ladder{A: 50, B: 10, HigherIsBetter: true}

	report, err := rfm.Analyze(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Selected)

	data, err := os.ReadFile(opts.ResultPath)
	require.NoError(t, err)
	assert.Equal(t, "CustomerID\n12346\n17850\n", string(data))
}

func TestAnalyzeInvalidThresholds(t *testing.T) {
	opts := rfm.DefaultOptions()
	opts.Thresholds.Monetary = rfm.Ladder{A: 1, B: 10, HigherIsBetter: true}

	_, err := rfm.Analyze(context.Background(), opts, nil)
	require.ErrorIs(t, err, rfm.ErrInvalidThresholds)
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analysis:
  reference_date: "2011-12-10"
  recency_aggregation: most_recent
thresholds:
  monetary:
    a: 5000
    b: 1000
`), 0o600))

	opts, err := rfm.LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, rfm.RecencyMostRecent, opts.RecencyAggregation)
	assert.Equal(t, rfm.Ladder{A: 5000, B: 1000, HigherIsBetter: true}, opts.Thresholds.Monetary)
	assert.Equal(t, rfm.DefaultThresholds().Recency, opts.Thresholds.Recency)
	assert.Equal(t, 2011, opts.Reference.Year())

	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  monetary_source: invoiced\n"), 0o600))
	_, err = rfm.LoadOptions(path)
	require.Error(t, err)
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Online Retail.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{
		"InvoiceNo", "StockCode", "Description", "Quantity", "InvoiceDate", "UnitPrice", "CustomerID", "Country",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{
		"536365", "85123A", "WHITE HANGING HEART T-LIGHT HOLDER", 6,
		time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), 2.55, 17850, "United Kingdom",
	}))
	require.NoError(t, f.SaveAs(src))
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "online_retail.csv")
	n, err := rfm.Convert(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2010-12-01 08:26:00")
	assert.Contains(t, string(data), "InvoiceNo;StockCode")
}
