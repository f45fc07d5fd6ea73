package rfm_test

import (
	"testing"
	"time"

	"github.com/paveg/rfm/internal/rfm"
	"github.com/paveg/rfm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplore(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.NewOrderLines(t, mem.Allocator,
		testutil.Line(17850, "536365", "2010-12-01 08:26:00", 6, 2.55),
		testutil.Line(12583, "536370", "2010-12-01 08:45:00", 24, 3.75).In("France"),
		testutil.Line(17850, "536366", "2011-12-09 12:50:00", 6, 1.85),
		testutil.Line(0, "536367", "2011-01-04 10:00:00", 32, 1.69).Without(rfm.ColCustomerID),
		testutil.Line(12583, "536371", "2011-03-01 10:00:00", 1, 1).In("France").Without(rfm.ColInvoiceDate),
	)
	defer df.Release()

	ov, err := rfm.Explore(df)
	require.NoError(t, err)

	assert.Equal(t, 5, ov.Rows)
	assert.Equal(t, 2, ov.Customers)
	assert.Equal(t, "United Kingdom", ov.TopCountry)
	assert.Equal(t, 3, ov.TopCountryLines)
	require.True(t, ov.HasOrderInterval)
	assert.Equal(t, time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), ov.FirstOrder)
	assert.Equal(t, time.Date(2011, 12, 9, 12, 50, 0, 0, time.UTC), ov.LastOrder)
	assert.Equal(t, 4, ov.NonNull[rfm.ColCustomerID])
	assert.Equal(t, 4, ov.NonNull[rfm.ColInvoiceDate])
	assert.Equal(t, 5, ov.NonNull[rfm.ColCountry])

	text := ov.String()
	assert.Contains(t, text, "distinct customers: 2")
	assert.Contains(t, text, "top country: United Kingdom (3 lines)")
	assert.Contains(t, text, "last order: 2011-12-09 12:50:00")
}

func TestExploreEmpty(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.NewOrderLines(t, mem.Allocator)
	defer df.Release()

	ov, err := rfm.Explore(df)
	require.NoError(t, err)
	assert.Equal(t, 0, ov.Rows)
	assert.False(t, ov.HasOrderInterval)
	assert.Empty(t, ov.TopCountry)
}
