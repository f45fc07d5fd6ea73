package rfm_test

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rfm/internal/config"
	"github.com/paveg/rfm/internal/dataframe"
	"github.com/paveg/rfm/internal/rfm"
	"github.com/paveg/rfm/internal/series"
	"github.com/paveg/rfm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLadderTier(t *testing.T) {
	th := rfm.DefaultThresholds()
	tests := []struct {
		name   string
		ladder rfm.Ladder
		value  float64
		want   string
	}{
		{"recent", th.Recency, 10, "A"},
		{"recency at A bound", th.Recency, 4325, "A"},
		{"recency past A bound", th.Recency, 4326, "B"},
		{"recency at B bound", th.Recency, 4409, "B"},
		{"stale", th.Recency, 4410, "C"},
		{"frequent", th.Frequency, 20, "A"},
		{"frequency at A bound", th.Frequency, 18, "A"},
		{"frequency below A bound", th.Frequency, 17, "B"},
		{"frequency at B bound", th.Frequency, 8, "B"},
		{"rare", th.Frequency, 7, "C"},
		{"big spender", th.Monetary, 7000, "A"},
		{"monetary at A bound", th.Monetary, 6147, "A"},
		{"monetary below A bound", th.Monetary, 6146.99, "B"},
		{"monetary at B bound", th.Monetary, 2616, "B"},
		{"small spender", th.Monetary, 2615.99, "C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ladder.Tier(tt.value))
		})
	}
}

func TestThresholdsCode(t *testing.T) {
	th := rfm.DefaultThresholds()

	assert.Equal(t, "AAA", th.Code(10, 20, 7000))
	assert.Equal(t, "C", th.Code(5000, 20, 7000)[:1])
	assert.Equal(t, "BBB", th.Code(4400, 10, 3000))
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, rfm.DefaultThresholds().Validate())

	th := rfm.DefaultThresholds()
	th.Recency = rfm.Ladder{A: 100, B: 10}
	require.ErrorIs(t, th.Validate(), rfm.ErrInvalidThresholds)

	th = rfm.DefaultThresholds()
	th.Monetary.A = 1
	require.ErrorIs(t, th.Validate(), rfm.ErrInvalidThresholds)
}

func TestThresholdsFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	assert.Equal(t, rfm.DefaultThresholds(), rfm.ThresholdsFromConfig(cfg.Thresholds))
}

// metricsFrame builds a joined metrics frame. A negative recency is null.
func metricsFrame(t *testing.T, ids []float64, recency []int64, frequency []int64, monetary []float64) *dataframe.DataFrame {
	t.Helper()
	mem := memory.NewGoAllocator()

	valid := make([]bool, len(recency))
	for i, r := range recency {
		valid[i] = r >= 0
	}
	r, err := series.NewNullable(rfm.ColRecency, recency, valid, mem)
	require.NoError(t, err)

	return dataframe.New(
		series.New(rfm.ColCustomerID, ids, mem),
		r,
		series.New(rfm.ColFrequency, frequency, mem),
		series.New(rfm.ColMonetary, monetary, mem),
	)
}

func TestSegment(t *testing.T) {
	metrics := metricsFrame(t,
		[]float64{1, 2, 3, 4},
		[]int64{10, 5000, 4400, -1},
		[]int64{20, 20, 10, 1},
		[]float64{7000, 7000, 3000, 100},
	)
	defer metrics.Release()

	df, err := rfm.Segment(metrics, rfm.DefaultThresholds())
	require.NoError(t, err)
	defer df.Release()

	testutil.AssertDataFrameHasColumns(t, df, []string{
		rfm.ColCustomerID, rfm.ColRecency, rfm.ColFrequency, rfm.ColMonetary,
		rfm.ColRecencyGroup, rfm.ColFrequencyGroup, rfm.ColMonetaryGroup, rfm.ColGroups,
	})
	testutil.AssertColumnValues(t, df, rfm.ColRecencyGroup, "A", "C", "B", "")
	testutil.AssertColumnValues(t, df, rfm.ColFrequencyGroup, "A", "A", "B", "C")
	testutil.AssertColumnValues(t, df, rfm.ColMonetaryGroup, "A", "A", "B", "C")
	testutil.AssertColumnValues(t, df, rfm.ColGroups, "AAA", "CAA", "BBB", "")

	codes, valid, err := df.StringValues(rfm.ColGroups)
	require.NoError(t, err)
	for i, code := range codes {
		if !valid[i] {
			continue
		}
		assert.Len(t, code, 3)
		assert.Empty(t, strings.Trim(code, "ABC"), "code %q", code)
	}
}

func TestSegmentErrors(t *testing.T) {
	metrics := metricsFrame(t, []float64{1}, []int64{10}, []int64{20}, []float64{7000})
	defer metrics.Release()

	th := rfm.DefaultThresholds()
	th.Frequency = rfm.Ladder{A: 1, B: 5, HigherIsBetter: true}
	_, err := rfm.Segment(metrics, th)
	require.ErrorIs(t, err, rfm.ErrInvalidThresholds)

	partial := metrics.Drop(rfm.ColMonetary)
	defer partial.Release()
	_, err = rfm.Segment(partial, rfm.DefaultThresholds())
	require.Error(t, err)
}

func segmentedFrame(t *testing.T, ids []float64, groups []string) *dataframe.DataFrame {
	t.Helper()
	mem := memory.NewGoAllocator()

	valid := make([]bool, len(groups))
	for i, g := range groups {
		valid[i] = g != ""
	}
	g, err := series.NewNullable(rfm.ColGroups, groups, valid, mem)
	require.NoError(t, err)
	return dataframe.New(series.New(rfm.ColCustomerID, ids, mem), g)
}

func TestSelectTopTier(t *testing.T) {
	df := segmentedFrame(t,
		[]float64{13047, 12346, 17850, 12346, 14911},
		[]string{"AAA", "AAA", "BBB", "AAA", ""},
	)
	defer df.Release()

	t.Run("AAA", func(t *testing.T) {
		selected, err := rfm.SelectTopTier(df, rfm.DefaultTargetGroup)
		require.NoError(t, err)
		defer selected.Release()

		assert.Equal(t, []string{rfm.ColCustomerID}, selected.Columns())
		testutil.AssertColumnValues(t, selected, rfm.ColCustomerID, "12346", "13047")
	})

	t.Run("no match", func(t *testing.T) {
		selected, err := rfm.SelectTopTier(df, "CCC")
		require.NoError(t, err)
		defer selected.Release()

		assert.Equal(t, 0, selected.Len())
	})
}

func TestTierDistribution(t *testing.T) {
	df := segmentedFrame(t,
		[]float64{1, 1, 2, 3, 4},
		[]string{"BBB", "BBB", "AAA", "BBB", ""},
	)
	defer df.Release()

	dist, err := rfm.TierDistribution(df)
	require.NoError(t, err)
	defer dist.Release()

	testutil.AssertColumnValues(t, dist, rfm.ColGroups, "AAA", "BBB", "")
	testutil.AssertColumnValues(t, dist, rfm.ColCustomers, "1", "2", "1")
}

func TestDescribe(t *testing.T) {
	metrics := metricsFrame(t,
		[]float64{1, 2, 3},
		[]int64{10, 20, 30},
		[]int64{1, 2, 3},
		[]float64{100, 200, 300},
	)
	defer metrics.Release()

	summaries, err := rfm.Describe(metrics)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, rfm.ColRecency, summaries[0].Column)
	assert.InDelta(t, 20.0, summaries[0].Mean, 1e-9)
	assert.Equal(t, rfm.ColMonetary, summaries[2].Column)
	assert.InDelta(t, 300.0, summaries[2].Max, 1e-9)
}
