// Package rfm segments retail customers by Recency, Frequency and Monetary
// value.
//
// Order lines exported from a spreadsheet are converted to delimited text,
// cleaned, scored per customer and graded A/B/C on each metric. Customers
// whose three-letter code matches the target group are written to a result
// file. This package is the public entry point; the engine and the analysis
// steps live under internal/.
//
// Example:
//
//	opts := rfm.DefaultOptions()
//	opts.InputPath = "online_retail.csv"
//	opts.ResultPath = "result.csv"
//	report, err := rfm.Analyze(ctx, opts, nil)
package rfm

import (
	"context"
	"time"

	"github.com/paveg/rfm/internal/config"
	dfio "github.com/paveg/rfm/internal/io"
	"github.com/paveg/rfm/internal/rfm"
	"go.uber.org/zap"
)

type (
	// Options configures an analysis run.
	Options = rfm.Options
	// Thresholds holds the tier ladders of the three metrics.
	Thresholds = rfm.Thresholds
	// Ladder grades one metric into tiers A, B and C.
	Ladder = rfm.Ladder
	// Report summarizes a completed run.
	Report = rfm.Report
	// TierCount is the number of customers holding one code.
	TierCount = rfm.TierCount
	// Overview describes the raw order lines.
	Overview = rfm.Overview
	// MonetarySource selects the order lines monetary totals are summed over.
	MonetarySource = rfm.MonetarySource
	// RecencyAggregation decides how per-line recency reaches customers.
	RecencyAggregation = rfm.RecencyAggregation
)

const (
	MonetarySourceClean = rfm.MonetarySourceClean
	MonetarySourceRaw   = rfm.MonetarySourceRaw
	RecencyPerLine      = rfm.RecencyPerLine
	RecencyMostRecent   = rfm.RecencyMostRecent
	RecencyOldest       = rfm.RecencyOldest
	DefaultTargetGroup  = rfm.DefaultTargetGroup
)

var (
	ErrEmptyInput        = rfm.ErrEmptyInput
	ErrInvalidThresholds = rfm.ErrInvalidThresholds
)

// DefaultOptions returns options for a run against today's date.
func DefaultOptions() Options {
	return rfm.DefaultOptions()
}

// DefaultThresholds returns the ladders calibrated on the Online Retail dataset.
func DefaultThresholds() Thresholds {
	return rfm.DefaultThresholds()
}

// LoadOptions reads the YAML configuration at path over the built-in
// defaults and environment overrides. An empty path uses defaults only.
func LoadOptions(path string) (Options, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return Options{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	return rfm.OptionsFromConfig(cfg, time.Now())
}

// Analyze runs the segmentation described by opts. A nil logger discards
// logs.
func Analyze(ctx context.Context, opts Options, logger *zap.Logger) (*Report, error) {
	p, err := rfm.NewPipeline(opts, logger)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

// Convert writes the first sheet of the workbook at xlsx to a
// semicolon-delimited file at csv and returns the number of order lines.
func Convert(ctx context.Context, xlsx, csv string) (int, error) {
	opts := dfio.DefaultXLSXOptions()
	opts.DateColumns = rfm.DateColumns()
	return dfio.NewXLSXConverter(opts).ConvertFile(ctx, xlsx, csv)
}
