package rfm

import (
	"fmt"
	"time"

	"github.com/paveg/rfm/internal/dataframe"
)

// Overview describes a raw order line table before cleaning.
type Overview struct {
	Rows             int
	Customers        int // distinct non-null customer ids
	TopCountry       string
	TopCountryLines  int
	FirstOrder       time.Time
	LastOrder        time.Time
	NonNull          map[string]int
	Columns          []string
	HasOrderInterval bool
}

// Explore computes the overview of df.
func Explore(df *dataframe.DataFrame) (Overview, error) {
	if err := df.Require("Explore", ColCustomerID, ColCountry, ColInvoiceDate); err != nil {
		return Overview{}, err
	}

	ov := Overview{
		Rows:    df.Len(),
		NonNull: df.NonNullCounts(),
		Columns: df.Columns(),
	}

	ids, valid, err := df.StringValues(ColCustomerID)
	if err != nil {
		return Overview{}, err
	}
	seen := make(map[string]struct{})
	for i, id := range ids {
		if valid[i] {
			seen[id] = struct{}{}
		}
	}
	ov.Customers = len(seen)

	country, lines, err := topCountry(df)
	if err != nil {
		return Overview{}, err
	}
	ov.TopCountry, ov.TopCountryLines = country, lines

	dates, valid, err := df.TimeValues(ColInvoiceDate)
	if err != nil {
		return Overview{}, err
	}
	for i, d := range dates {
		if !valid[i] {
			continue
		}
		if !ov.HasOrderInterval || d.Before(ov.FirstOrder) {
			ov.FirstOrder = d
		}
		if !ov.HasOrderInterval || d.After(ov.LastOrder) {
			ov.LastOrder = d
		}
		ov.HasOrderInterval = true
	}
	return ov, nil
}

// topCountry returns the country with the most order lines. Ties go to the
// country seen first.
func topCountry(df *dataframe.DataFrame) (string, int, error) {
	if df.Len() == 0 {
		return "", 0, nil
	}
	gb, err := df.GroupBy(ColCountry)
	if err != nil {
		return "", 0, err
	}
	counts, err := gb.Count("count")
	if err != nil {
		return "", 0, err
	}
	defer counts.Release()

	sorted, err := counts.SortBy("count", false)
	if err != nil {
		return "", 0, err
	}
	defer sorted.Release()

	countries, _, err := sorted.StringValues(ColCountry)
	if err != nil {
		return "", 0, err
	}
	n, _, err := sorted.Float64Values("count")
	if err != nil {
		return "", 0, err
	}
	return countries[0], int(n[0]), nil
}

// String renders the overview as plain text.
func (ov Overview) String() string {
	s := fmt.Sprintf("rows: %d\ndistinct customers: %d\n", ov.Rows, ov.Customers)
	if ov.TopCountry != "" {
		s += fmt.Sprintf("top country: %s (%d lines)\n", ov.TopCountry, ov.TopCountryLines)
	}
	if ov.HasOrderInterval {
		s += fmt.Sprintf("first order: %s\nlast order: %s\n",
			ov.FirstOrder.Format(time.DateTime), ov.LastOrder.Format(time.DateTime))
	}
	for _, c := range ov.Columns {
		s += fmt.Sprintf("non-null %s: %d\n", c, ov.NonNull[c])
	}
	return s
}
