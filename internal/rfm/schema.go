// Package rfm segments retail customers by Recency, Frequency and Monetary
// value.
//
// The package works on order lines held in a dataframe.DataFrame: lines are
// cleaned, per-line recency is derived against a reference date, frequency
// and monetary totals are aggregated per customer, the three metrics are
// joined and graded A/B/C, and customers whose combined code matches a target
// (by default "AAA") are selected.
package rfm

import (
	"github.com/apache/arrow-go/v18/arrow"
	dfio "github.com/paveg/rfm/internal/io"
	"github.com/paveg/rfm/internal/validation"
)

// Order line columns
const (
	ColInvoiceNo   = "InvoiceNo"
	ColStockCode   = "StockCode"
	ColDescription = "Description"
	ColQuantity    = "Quantity"
	ColInvoiceDate = "InvoiceDate"
	ColUnitPrice   = "UnitPrice"
	ColCustomerID  = "CustomerID"
	ColCountry     = "Country"
)

// Derived columns
const (
	ColTotalPrice     = "TotalPrice"
	ColRecency        = "recency"
	ColFrequency      = "frequency"
	ColMonetary       = "monetary"
	ColRecencyGroup   = "recency_group"
	ColFrequencyGroup = "frequency_group"
	ColMonetaryGroup  = "monetary_group"
	ColGroups         = "groups"
	ColCustomers      = "customers"
)

// Schema returns the order line schema.
func Schema() *dfio.Schema {
	return dfio.NewSchema(
		dfio.Field{Name: ColInvoiceNo, Type: dfio.TypeString},
		dfio.Field{Name: ColStockCode, Type: dfio.TypeString},
		dfio.Field{Name: ColDescription, Type: dfio.TypeString},
		dfio.Field{Name: ColQuantity, Type: dfio.TypeInt64},
		dfio.Field{Name: ColInvoiceDate, Type: dfio.TypeTimestamp},
		dfio.Field{Name: ColUnitPrice, Type: dfio.TypeFloat64},
		dfio.Field{Name: ColCustomerID, Type: dfio.TypeFloat64},
		dfio.Field{Name: ColCountry, Type: dfio.TypeString},
	)
}

// DateColumns lists the columns holding timestamps in spreadsheet exports.
func DateColumns() []string {
	return []string{ColInvoiceDate}
}

// ValidateLines checks that df carries the columns the analysis reads, with
// types it can compute on.
func ValidateLines(df validation.ColumnProvider) error {
	const op = "ValidateLines"
	return validation.NewCompoundValidator(
		validation.NewColumnValidator(df, op, Schema().Names()...),
		validation.NewTypeValidator(df, op, ColInvoiceDate, arrow.TIMESTAMP),
		validation.NewTypeValidator(df, op, ColQuantity, arrow.INT64, arrow.FLOAT64),
		validation.NewTypeValidator(df, op, ColUnitPrice, arrow.INT64, arrow.FLOAT64),
	).Validate()
}
