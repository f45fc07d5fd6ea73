package rfm

import (
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rfm/internal/dataframe"
	"github.com/paveg/rfm/internal/series"
	"github.com/shopspring/decimal"
)

// MonetarySource selects the order lines monetary totals are summed over.
type MonetarySource string

const (
	// MonetarySourceClean sums the cleaned lines.
	MonetarySourceClean MonetarySource = "clean"
	// MonetarySourceRaw sums every raw line with a customer, quantity and
	// price, including lines cleaning dropped for other missing fields.
	MonetarySourceRaw MonetarySource = "raw"
)

// RecencyAggregation decides how per-line recency is attached to customers.
type RecencyAggregation string

const (
	// RecencyPerLine keeps one row per order line.
	RecencyPerLine RecencyAggregation = "per_line"
	// RecencyMostRecent keeps the smallest recency of each customer.
	RecencyMostRecent RecencyAggregation = "most_recent"
	// RecencyOldest keeps the largest recency of each customer.
	RecencyOldest RecencyAggregation = "oldest"
)

var (
	// ErrEmptyInput is returned when there are no order lines to analyze.
	ErrEmptyInput = errors.New("no order lines to analyze")
	// ErrInvalidThresholds is returned for inconsistent tier ladders.
	ErrInvalidThresholds = errors.New("invalid tier thresholds")
)

// Clean drops every order line with a missing field.
func Clean(df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	return df.DropNulls()
}

// AddRecency appends the number of calendar days between each line's order
// date and ref. Time of day is ignored on both sides.
func AddRecency(df *dataframe.DataFrame, ref time.Time) (*dataframe.DataFrame, error) {
	dates, valid, err := df.TimeValues(ColInvoiceDate)
	if err != nil {
		return nil, err
	}

	refDay := civilDay(ref)
	days := make([]int64, len(dates))
	for i, d := range dates {
		if valid[i] {
			days[i] = refDay - civilDay(d)
		}
	}

	s, err := series.NewNullable(ColRecency, days, valid, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return df.WithColumn(s)
}

// civilDay numbers the calendar date of t's wall clock.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Frequency counts the distinct orders of every customer.
func Frequency(df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	byOrder, err := df.GroupBy(ColCustomerID, ColInvoiceNo)
	if err != nil {
		return nil, err
	}
	orders, err := byOrder.Count("lines")
	if err != nil {
		return nil, err
	}
	defer orders.Release()

	byCustomer, err := orders.GroupBy(ColCustomerID)
	if err != nil {
		return nil, err
	}
	return byCustomer.Count(ColFrequency)
}

// LineTotals appends round(Quantity * UnitPrice, 2) to every line.
func LineTotals(df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	qty, qtyValid, err := df.Float64Values(ColQuantity)
	if err != nil {
		return nil, err
	}
	price, priceValid, err := df.Float64Values(ColUnitPrice)
	if err != nil {
		return nil, err
	}

	totals := make([]float64, len(qty))
	valid := make([]bool, len(qty))
	for i := range totals {
		if qtyValid[i] && priceValid[i] {
			totals[i], valid[i] = round2(qty[i]*price[i]), true
		}
	}

	s, err := series.NewNullable(ColTotalPrice, totals, valid, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return df.WithColumn(s)
}

// Monetary sums the rounded line totals of every customer and rounds the sum
// again. clean and raw are the cleaned and the raw order lines; source picks
// which of them is summed.
func Monetary(clean, raw *dataframe.DataFrame, source MonetarySource) (*dataframe.DataFrame, error) {
	var lines *dataframe.DataFrame
	switch source {
	case MonetarySourceClean, "":
		lines = clean.Select(clean.Columns()...)
	case MonetarySourceRaw:
		priced := raw.Select(ColCustomerID, ColQuantity, ColUnitPrice)
		defer priced.Release()
		var err error
		if lines, err = priced.DropNulls(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown monetary source %q", source)
	}
	defer lines.Release()

	withTotals, err := LineTotals(lines)
	if err != nil {
		return nil, err
	}
	defer withTotals.Release()

	gb, err := withTotals.GroupBy(ColCustomerID)
	if err != nil {
		return nil, err
	}
	sums, err := gb.Sum(ColTotalPrice, ColMonetary)
	if err != nil {
		return nil, err
	}
	defer sums.Release()

	values, valid, err := sums.Float64Values(ColMonetary)
	if err != nil {
		return nil, err
	}
	for i := range values {
		values[i] = round2(values[i])
	}
	rounded, err := series.NewNullable(ColMonetary, values, valid, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return sums.WithColumn(rounded)
}

// round2 rounds half away from zero to two decimals, on the shortest decimal
// representation of v.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// JoinMetrics inner-joins per-line recency with per-customer frequency and
// monetary totals. With RecencyPerLine the result keeps one row per order
// line; the other aggregations collapse recency to one row per customer
// first.
func JoinMetrics(lines, frequency, monetary *dataframe.DataFrame, aggregation RecencyAggregation) (*dataframe.DataFrame, error) {
	recency, err := recencyPerCustomer(lines, aggregation)
	if err != nil {
		return nil, err
	}
	defer recency.Release()

	withFrequency, err := recency.Join(frequency, ColCustomerID, dataframe.InnerJoin)
	if err != nil {
		return nil, err
	}
	defer withFrequency.Release()

	return withFrequency.Join(monetary, ColCustomerID, dataframe.InnerJoin)
}

func recencyPerCustomer(lines *dataframe.DataFrame, aggregation RecencyAggregation) (*dataframe.DataFrame, error) {
	if err := lines.Require("JoinMetrics", ColCustomerID, ColRecency); err != nil {
		return nil, err
	}

	switch aggregation {
	case RecencyPerLine, "":
		cols := []string{ColCustomerID}
		for _, c := range []string{ColInvoiceNo, ColInvoiceDate} {
			if lines.HasColumn(c) {
				cols = append(cols, c)
			}
		}
		return lines.Select(append(cols, ColRecency)...), nil
	case RecencyMostRecent, RecencyOldest:
		gb, err := lines.GroupBy(ColCustomerID)
		if err != nil {
			return nil, err
		}
		if aggregation == RecencyMostRecent {
			return gb.Min(ColRecency, ColRecency)
		}
		return gb.Max(ColRecency, ColRecency)
	default:
		return nil, fmt.Errorf("unknown recency aggregation %q", aggregation)
	}
}
