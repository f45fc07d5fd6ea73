package rfm

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rfm/internal/config"
	"github.com/paveg/rfm/internal/dataframe"
	"github.com/paveg/rfm/internal/series"
)

// Tier labels, best first.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
)

// DefaultTargetGroup is the code of the best customers on every metric.
const DefaultTargetGroup = TierA + TierA + TierA

// Ladder grades one metric. With HigherIsBetter a value reaching A is tier
// A, one reaching B is tier B. Otherwise a value up to A is tier A and one
// up to B is tier B. Everything else is tier C.
type Ladder struct {
	A              float64
	B              float64
	HigherIsBetter bool
}

// Tier returns the tier label of v.
func (l Ladder) Tier(v float64) string {
	if l.HigherIsBetter {
		switch {
		case v >= l.A:
			return TierA
		case v >= l.B:
			return TierB
		}
		return TierC
	}
	switch {
	case v <= l.A:
		return TierA
	case v <= l.B:
		return TierB
	}
	return TierC
}

func (l Ladder) validate(metric string) error {
	if l.HigherIsBetter && l.A < l.B {
		return fmt.Errorf("%w: %s tier A bound %g is below tier B bound %g", ErrInvalidThresholds, metric, l.A, l.B)
	}
	if !l.HigherIsBetter && l.A > l.B {
		return fmt.Errorf("%w: %s tier A bound %g exceeds tier B bound %g", ErrInvalidThresholds, metric, l.A, l.B)
	}
	return nil
}

// Thresholds holds the ladders of the three metrics.
type Thresholds struct {
	Recency   Ladder
	Frequency Ladder
	Monetary  Ladder
}

// DefaultThresholds are the ladders calibrated on the Online Retail dataset.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Recency:   Ladder{A: 4325, B: 4409},
		Frequency: Ladder{A: 18, B: 8, HigherIsBetter: true},
		Monetary:  Ladder{A: 6147, B: 2616, HigherIsBetter: true},
	}
}

// ThresholdsFromConfig builds the ladders from the thresholds section.
func ThresholdsFromConfig(c config.ThresholdsConfig) Thresholds {
	return Thresholds{
		Recency:   Ladder{A: c.Recency.A, B: c.Recency.B},
		Frequency: Ladder{A: c.Frequency.A, B: c.Frequency.B, HigherIsBetter: true},
		Monetary:  Ladder{A: c.Monetary.A, B: c.Monetary.B, HigherIsBetter: true},
	}
}

// Validate checks every ladder is ordered in its grading direction.
func (t Thresholds) Validate() error {
	if err := t.Recency.validate(ColRecency); err != nil {
		return err
	}
	if err := t.Frequency.validate(ColFrequency); err != nil {
		return err
	}
	return t.Monetary.validate(ColMonetary)
}

// Code grades one customer and returns its three-letter code.
func (t Thresholds) Code(recency, frequency, monetary float64) string {
	return t.Recency.Tier(recency) + t.Frequency.Tier(frequency) + t.Monetary.Tier(monetary)
}

// Segment appends the tier of every metric and the combined code. A null
// metric gives a null tier and a null code.
func Segment(df *dataframe.DataFrame, t Thresholds) (*dataframe.DataFrame, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := df.Require("Segment", ColRecency, ColFrequency, ColMonetary); err != nil {
		return nil, err
	}

	metrics := []struct {
		column, group string
		ladder        Ladder
	}{
		{ColRecency, ColRecencyGroup, t.Recency},
		{ColFrequency, ColFrequencyGroup, t.Frequency},
		{ColMonetary, ColMonetaryGroup, t.Monetary},
	}

	n := df.Len()
	codes := make([]strings.Builder, n)
	codeValid := make([]bool, n)
	for i := range codeValid {
		codeValid[i] = true
	}

	result := df.Select(df.Columns()...)
	for _, m := range metrics {
		values, valid, err := df.Float64Values(m.column)
		if err != nil {
			result.Release()
			return nil, err
		}
		tiers := make([]string, n)
		for i, v := range values {
			if !valid[i] {
				codeValid[i] = false
				continue
			}
			tiers[i] = m.ladder.Tier(v)
			codes[i].WriteString(tiers[i])
		}

		next, err := withSeries(result, m.group, tiers, valid)
		if err != nil {
			return nil, err
		}
		result = next
	}

	groups := make([]string, n)
	for i := range groups {
		if codeValid[i] {
			groups[i] = codes[i].String()
		}
	}
	return withSeries(result, ColGroups, groups, codeValid)
}

// withSeries appends a string column to df and releases df.
func withSeries(df *dataframe.DataFrame, name string, values []string, valid []bool) (*dataframe.DataFrame, error) {
	defer df.Release()
	s, err := series.NewNullable(name, values, valid, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return df.WithColumn(s)
}

// SelectTopTier returns the distinct customer ids whose code equals code, in
// ascending order.
func SelectTopTier(df *dataframe.DataFrame, code string) (*dataframe.DataFrame, error) {
	if err := df.Require("SelectTopTier", ColCustomerID, ColGroups); err != nil {
		return nil, err
	}
	groups, valid, err := df.StringValues(ColGroups)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(groups))
	for i, g := range groups {
		mask[i] = valid[i] && g == code
	}

	ids := df.Select(ColCustomerID)
	defer ids.Release()
	matched, err := ids.Filter(mask)
	if err != nil {
		return nil, err
	}
	defer matched.Release()

	distinct, err := matched.Distinct(ColCustomerID)
	if err != nil {
		return nil, err
	}
	defer distinct.Release()
	return distinct.SortBy(ColCustomerID, true)
}

// TierDistribution counts the distinct customers of every code, ordered by
// code.
func TierDistribution(df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if err := df.Require("TierDistribution", ColCustomerID, ColGroups); err != nil {
		return nil, err
	}
	gb, err := df.GroupBy(ColGroups)
	if err != nil {
		return nil, err
	}
	counts, err := gb.CountDistinct(ColCustomerID, ColCustomers)
	if err != nil {
		return nil, err
	}
	defer counts.Release()
	return counts.SortBy(ColGroups, true)
}

// Describe summarizes the three metrics.
func Describe(df *dataframe.DataFrame) ([]dataframe.ColumnSummary, error) {
	return df.Summarize(ColRecency, ColFrequency, ColMonetary)
}
