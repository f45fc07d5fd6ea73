package rfm_test

import (
	"testing"
	"time"

	"github.com/paveg/rfm/internal/rfm"
	"github.com/paveg/rfm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reference = time.Date(2011, 12, 10, 0, 0, 0, 0, time.UTC)

func TestClean(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	raw := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55),
		testutil.Line(17850, "536366", "2010-12-01 08:28:00", 6, 1.85).Without(rfm.ColDescription),
		testutil.Line(13047, "536367", "2010-12-01 08:34:00", 32, 1.69).Without(rfm.ColCustomerID),
		testutil.Line(13047, "536368", "2010-12-01 08:34:00", 6, 4.25).Without(rfm.ColQuantity, rfm.ColCountry),
		testutil.Line(12583, "536370", "2010-12-01 08:45:00", 24, 3.75),
	)
	defer raw.Release()

	clean, err := rfm.Clean(raw)
	require.NoError(t, err)
	defer clean.Release()

	assert.Equal(t, 2, clean.Len())
	for col, n := range clean.NonNullCounts() {
		assert.Equal(t, clean.Len(), n, "column %s has nulls after cleaning", col)
	}
	testutil.AssertColumnValues(t, clean, rfm.ColInvoiceNo, "536365", "536370")
}

func TestAddRecency(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	lines := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(17850, "581587", "2011-12-09 23:59:00", 12, 0.85),
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55),
		testutil.Line(17850, "581588", "2011-12-10 12:00:00", 1, 1.00),
		testutil.Line(17850, "581589", "2011-12-10 12:00:00", 1, 1.00).Without(rfm.ColInvoiceDate),
	)
	defer lines.Release()

	df, err := rfm.AddRecency(lines, reference)
	require.NoError(t, err)
	defer df.Release()

	testutil.AssertColumnValues(t, df, rfm.ColRecency, "1", "374", "0", "")
}

func TestFrequency(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	lines := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55),
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 3.39),
		testutil.Line(13047, "536367", "2010-12-01 08:34:00", 32, 1.69),
		testutil.Line(17850, "536366", "2010-12-01 08:28:00", 6, 1.85),
		testutil.Line(17850, "536366", "2010-12-01 08:28:00", 6, 1.85),
	)
	defer lines.Release()

	freq, err := rfm.Frequency(lines)
	require.NoError(t, err)
	defer freq.Release()

	testutil.AssertDataFrameHasColumns(t, freq, []string{rfm.ColCustomerID, rfm.ColFrequency})
	testutil.AssertColumnValues(t, freq, rfm.ColCustomerID, "17850", "13047")
	testutil.AssertColumnValues(t, freq, rfm.ColFrequency, "2", "1")
}

func TestLineTotals(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	lines := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 2, 1.125),
		testutil.Line(17850, "536366", "2010-12-01 08:28:00", 1, 2.675),
		testutil.Line(17850, "C536379", "2010-12-01 09:41:00", -1, 2.675),
		testutil.Line(17850, "536367", "2010-12-01 08:34:00", 3, 1).Without(rfm.ColUnitPrice),
	)
	defer lines.Release()

	df, err := rfm.LineTotals(lines)
	require.NoError(t, err)
	defer df.Release()

	testutil.AssertColumnValues(t, df, rfm.ColTotalPrice, "2.25", "2.68", "-2.68", "")
}

func TestMonetary(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	raw := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 2, 1.25),
		testutil.Line(13047, "536367", "2010-12-01 08:34:00", 3, 0.5),
		testutil.Line(17850, "536366", "2010-12-01 08:28:00", 1, 2.675),
		testutil.Line(17850, "536368", "2010-12-01 08:40:00", 10, 1).Without(rfm.ColDescription),
		testutil.Line(17850, "536369", "2010-12-01 08:45:00", 10, 1).Without(rfm.ColCustomerID),
	)
	defer raw.Release()

	clean, err := rfm.Clean(raw)
	require.NoError(t, err)
	defer clean.Release()

	t.Run("clean lines", func(t *testing.T) {
		m, err := rfm.Monetary(clean, raw, rfm.MonetarySourceClean)
		require.NoError(t, err)
		defer m.Release()

		testutil.AssertDataFrameHasColumns(t, m, []string{rfm.ColCustomerID, rfm.ColMonetary})
		testutil.AssertColumnValues(t, m, rfm.ColCustomerID, "17850", "13047")
		testutil.AssertColumnValues(t, m, rfm.ColMonetary, "5.18", "1.5")
	})

	t.Run("raw lines", func(t *testing.T) {
		m, err := rfm.Monetary(clean, raw, rfm.MonetarySourceRaw)
		require.NoError(t, err)
		defer m.Release()

		testutil.AssertColumnValues(t, m, rfm.ColMonetary, "15.18", "1.5")
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := rfm.Monetary(clean, raw, "invoiced")
		require.Error(t, err)
	})
}

func TestJoinMetrics(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	lines := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(1, "A", "2011-12-05 10:00:00", 1, 10),
		testutil.Line(1, "B", "2011-12-01 10:00:00", 1, 20),
		testutil.Line(2, "C", "2011-12-07 10:00:00", 2, 5),
	)
	defer lines.Release()

	recency, err := rfm.AddRecency(lines, reference)
	require.NoError(t, err)
	defer recency.Release()
	freq, err := rfm.Frequency(lines)
	require.NoError(t, err)
	defer freq.Release()
	monetary, err := rfm.Monetary(lines, lines, rfm.MonetarySourceClean)
	require.NoError(t, err)
	defer monetary.Release()

	t.Run("per line", func(t *testing.T) {
		df, err := rfm.JoinMetrics(recency, freq, monetary, rfm.RecencyPerLine)
		require.NoError(t, err)
		defer df.Release()

		assert.Equal(t, []string{
			rfm.ColCustomerID, rfm.ColInvoiceNo, rfm.ColInvoiceDate,
			rfm.ColRecency, rfm.ColFrequency, rfm.ColMonetary,
		}, df.Columns())
		testutil.AssertColumnValues(t, df, rfm.ColRecency, "5", "9", "3")
		testutil.AssertColumnValues(t, df, rfm.ColFrequency, "2", "2", "1")
		testutil.AssertColumnValues(t, df, rfm.ColMonetary, "30", "30", "10")
	})

	tests := []struct {
		aggregation rfm.RecencyAggregation
		want        []string
	}{
		{rfm.RecencyMostRecent, []string{"5", "3"}},
		{rfm.RecencyOldest, []string{"9", "3"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.aggregation), func(t *testing.T) {
			df, err := rfm.JoinMetrics(recency, freq, monetary, tt.aggregation)
			require.NoError(t, err)
			defer df.Release()

			testutil.AssertColumnValues(t, df, rfm.ColCustomerID, "1", "2")
			testutil.AssertColumnValues(t, df, rfm.ColRecency, tt.want...)
		})
	}

	t.Run("customer missing from monetary", func(t *testing.T) {
		only, err := monetary.Filter([]bool{true, false})
		require.NoError(t, err)
		defer only.Release()

		df, err := rfm.JoinMetrics(recency, freq, only, rfm.RecencyPerLine)
		require.NoError(t, err)
		defer df.Release()

		testutil.AssertColumnValues(t, df, rfm.ColCustomerID, "1", "1")
	})

	t.Run("recency required", func(t *testing.T) {
		_, err := rfm.JoinMetrics(lines, freq, monetary, rfm.RecencyPerLine)
		require.Error(t, err)
	})

	t.Run("unknown aggregation", func(t *testing.T) {
		_, err := rfm.JoinMetrics(recency, freq, monetary, "median")
		require.Error(t, err)
	})
}
