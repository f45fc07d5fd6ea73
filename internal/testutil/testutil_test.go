package testutil_test

import (
	"strings"
	"testing"

	"github.com/paveg/rfm/internal/rfm"
	"github.com/paveg/rfm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMemoryTest(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	require.NotNil(t, mem.Allocator)
}

func TestNewOrderLines(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55),
		testutil.Line(13047, "536367", "2010-12-01 08:34:00", 32, 1.69).Without(rfm.ColCustomerID),
		testutil.Line(12583, "536370", "2010-12-01 08:45:00", 24, 3.75).In("France"),
	)
	defer df.Release()

	assert.Equal(t, 3, df.Len())
	testutil.AssertDataFrameHasColumns(t, df, rfm.Schema().Names())
	testutil.AssertColumnValues(t, df, rfm.ColCustomerID, "17850", "", "12583")
	testutil.AssertColumnValues(t, df, rfm.ColCountry, "United Kingdom", "United Kingdom", "France")
	testutil.AssertColumnValues(t, df, rfm.ColInvoiceDate,
		"2010-12-01 08:26:00", "2010-12-01 08:34:00", "2010-12-01 08:45:00")
}

func TestWithoutDoesNotShareMissing(t *testing.T) {
	base := testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55).Without(rfm.ColCountry)
	a := base.Without(rfm.ColQuantity)
	b := base.Without(rfm.ColUnitPrice)

	assert.Equal(t, []string{rfm.ColCountry, rfm.ColQuantity}, a.Missing)
	assert.Equal(t, []string{rfm.ColCountry, rfm.ColUnitPrice}, b.Missing)
}

func TestOrderLinesCSV(t *testing.T) {
	out := testutil.OrderLinesCSV(';',
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55),
		testutil.Line(13047, "536367", "2010-12-01 08:34:00", 32, 1.69).Without(rfm.ColDescription),
	)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(rfm.Schema().Names(), ";"), lines[0])
	assert.Equal(t,
		"536365;85123A;WHITE HANGING HEART T-LIGHT HOLDER;6;2010-12-01 08:26:00;2.55;17850.0;United Kingdom",
		lines[1])
	assert.Equal(t, "536367;85123A;;32;2010-12-01 08:34:00;1.69;13047.0;United Kingdom", lines[2])
}
