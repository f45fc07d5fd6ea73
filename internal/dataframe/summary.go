package dataframe

import (
	"math"
	"slices"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/memory"
	dferrors "github.com/paveg/rfm/internal/errors"
	"github.com/paveg/rfm/internal/series"
)

// SummaryStats are the statistic names of a summary, in output order.
var SummaryStats = []string{"count", "mean", "stddev", "min", "25%", "50%", "75%", "max"}

// ColumnSummary holds descriptive statistics of one numeric column. Values
// that are undefined for the sample size are NaN.
type ColumnSummary struct {
	Column string
	Count  int64
	Mean   float64
	StdDev float64 // sample standard deviation
	Min    float64
	P25    float64
	P50    float64
	P75    float64
	Max    float64
}

// Values returns the statistics in SummaryStats order.
func (cs ColumnSummary) Values() []float64 {
	return []float64{float64(cs.Count), cs.Mean, cs.StdDev, cs.Min, cs.P25, cs.P50, cs.P75, cs.Max}
}

// Summarize computes descriptive statistics for the given numeric columns,
// skipping nulls. Percentiles are nearest-rank values from the data.
func (df *DataFrame) Summarize(cols ...string) ([]ColumnSummary, error) {
	if err := df.Require("Summarize", cols...); err != nil {
		return nil, err
	}
	selected := df.Select(cols...)
	defer selected.Release()

	type result struct {
		summary ColumnSummary
		err     error
	}
	results := forEachColumn(selected, func(s ISeries) result {
		values, valid, err := selected.Float64Values(s.Name())
		if err != nil {
			return result{err: err}
		}
		return result{summary: summarize(s.Name(), values, valid)}
	})

	summaries := make([]ColumnSummary, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		summaries = append(summaries, r.summary)
	}
	return summaries, nil
}

func summarize(name string, values []float64, valid []bool) ColumnSummary {
	present := make([]float64, 0, len(values))
	for i, v := range values {
		if valid[i] {
			present = append(present, v)
		}
	}

	nan := math.NaN()
	cs := ColumnSummary{
		Column: name, Count: int64(len(present)),
		Mean: nan, StdDev: nan, Min: nan, P25: nan, P50: nan, P75: nan, Max: nan,
	}
	n := len(present)
	if n == 0 {
		return cs
	}

	slices.Sort(present)
	var sum float64
	for _, v := range present {
		sum += v
	}
	cs.Mean = sum / float64(n)
	if n > 1 {
		var sq float64
		for _, v := range present {
			sq += (v - cs.Mean) * (v - cs.Mean)
		}
		cs.StdDev = math.Sqrt(sq / float64(n-1))
	}
	cs.Min = present[0]
	cs.Max = present[n-1]
	cs.P25 = nearestRank(present, 0.25)
	cs.P50 = nearestRank(present, 0.50)
	cs.P75 = nearestRank(present, 0.75)
	return cs
}

// nearestRank returns the smallest value with at least p of the sorted data
// at or below it.
func nearestRank(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

// SummaryFrame lays summaries out as a table: a "summary" column with the
// statistic names and one text column per summarized column.
func SummaryFrame(summaries []ColumnSummary) (*DataFrame, error) {
	mem := memory.NewGoAllocator()

	cols := make([]ISeries, 0, len(summaries)+1)
	cols = append(cols, series.New("summary", SummaryStats, mem))
	for _, cs := range summaries {
		text := make([]string, len(SummaryStats))
		valid := make([]bool, len(SummaryStats))
		for i, v := range cs.Values() {
			if math.IsNaN(v) {
				continue
			}
			text[i] = strconv.FormatFloat(v, 'f', -1, 64)
			valid[i] = true
		}
		s, err := series.NewNullable(cs.Column, text, valid, mem)
		if err != nil {
			releaseAll(cols)
			return nil, dferrors.NewInternalError("SummaryFrame", err)
		}
		cols = append(cols, s)
	}
	return NewSafe(cols...)
}
