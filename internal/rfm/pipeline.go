package rfm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rfm/internal/config"
	"github.com/paveg/rfm/internal/dataframe"
	dfio "github.com/paveg/rfm/internal/io"
	"github.com/paveg/rfm/internal/logging"
	"github.com/paveg/rfm/internal/monitoring"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures a Pipeline.
type Options struct {
	InputPath   string
	Delimiter   rune
	ResultPath  string
	MetricsPath string // Parquet export of the segmented metrics; empty skips it
	Compression string

	Reference          time.Time
	MonetarySource     MonetarySource
	RecencyAggregation RecencyAggregation
	Thresholds         Thresholds
	TargetGroup        string

	TrackMemory bool // sample heap growth of every stage
}

// DefaultOptions returns options for a run against today's date.
func DefaultOptions() Options {
	y, m, d := time.Now().Date()
	return Options{
		Delimiter:          ';',
		Compression:        "snappy",
		Reference:          time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		MonetarySource:     MonetarySourceClean,
		RecencyAggregation: RecencyPerLine,
		Thresholds:         DefaultThresholds(),
		TargetGroup:        DefaultTargetGroup,
	}
}

// OptionsFromConfig maps a loaded configuration onto pipeline options. now
// resolves an empty reference date.
func OptionsFromConfig(cfg config.Config, now time.Time) (Options, error) {
	ref, err := cfg.ReferenceDate(now)
	if err != nil {
		return Options{}, err
	}
	return Options{
		InputPath:          cfg.Input.CSV,
		Delimiter:          cfg.DelimiterRune(),
		ResultPath:         cfg.Export.Result,
		MetricsPath:        cfg.Export.Metrics,
		Compression:        cfg.Export.Compression,
		Reference:          ref,
		MonetarySource:     MonetarySource(cfg.Analysis.MonetarySource),
		RecencyAggregation: RecencyAggregation(cfg.Analysis.RecencyAggregation),
		Thresholds:         ThresholdsFromConfig(cfg.Thresholds),
		TargetGroup:        cfg.Analysis.TargetGroup,
		TrackMemory:        cfg.Engine.TrackMemory,
	}, nil
}

// Validate checks the analysis options.
func (o Options) Validate() error {
	if err := o.Thresholds.Validate(); err != nil {
		return err
	}
	if len(o.TargetGroup) != 3 || strings.Trim(o.TargetGroup, TierA+TierB+TierC) != "" {
		return fmt.Errorf("target group must be three of A, B, C, got %q", o.TargetGroup)
	}
	switch o.MonetarySource {
	case MonetarySourceClean, MonetarySourceRaw:
	default:
		return fmt.Errorf("unknown monetary source %q", o.MonetarySource)
	}
	switch o.RecencyAggregation {
	case RecencyPerLine, RecencyMostRecent, RecencyOldest:
	default:
		return fmt.Errorf("unknown recency aggregation %q", o.RecencyAggregation)
	}
	if o.Reference.IsZero() {
		return fmt.Errorf("reference date must be set")
	}
	return nil
}

// Pipeline runs the RFM analysis.
type Pipeline struct {
	opts   Options
	logger *zap.Logger
	mem    memory.Allocator
}

// NewPipeline validates opts and returns a pipeline logging to logger. A
// nil logger discards logs.
func NewPipeline(opts Options, logger *zap.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		opts:   opts,
		logger: logging.OrNop(logger),
		mem:    memory.NewGoAllocator(),
	}, nil
}

// Result holds the frames of one analysis. Release frees them.
type Result struct {
	Overview     Overview
	CleanRows    int
	Metrics      *dataframe.DataFrame // joined and segmented metrics
	Selected     *dataframe.DataFrame // single CustomerID column
	Summary      []dataframe.ColumnSummary
	Distribution *dataframe.DataFrame // groups, customers
	Stages       []monitoring.StageMetrics
}

// Release frees the frames of r.
func (r *Result) Release() {
	for _, df := range []*dataframe.DataFrame{r.Metrics, r.Selected, r.Distribution} {
		if df != nil {
			df.Release()
		}
	}
}

// Analyze segments the raw order lines. lines is not released.
func (p *Pipeline) Analyze(ctx context.Context, lines *dataframe.DataFrame) (*Result, error) {
	return p.analyze(ctx, lines, monitoring.NewCollector(p.opts.TrackMemory))
}

func (p *Pipeline) analyze(ctx context.Context, lines *dataframe.DataFrame, stages *monitoring.Collector) (*Result, error) {
	if lines.Len() == 0 {
		return nil, ErrEmptyInput
	}
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	overview, err := Explore(lines)
	if err != nil {
		return nil, fmt.Errorf("explore: %w", err)
	}

	clean, err := p.stage(ctx, stages, "clean", lines.Len(), func() (*dataframe.DataFrame, error) {
		return Clean(lines)
	})
	if err != nil {
		return nil, err
	}
	defer clean.Release()
	if clean.Len() == 0 {
		p.logger.Warn("no complete order lines left after cleaning", zap.Int("rows_in", lines.Len()))
	}

	recency, err := p.stage(ctx, stages, "recency", clean.Len(), func() (*dataframe.DataFrame, error) {
		return AddRecency(clean, p.opts.Reference)
	})
	if err != nil {
		return nil, err
	}
	defer recency.Release()

	var frequency, monetary *dataframe.DataFrame
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		frequency, err = p.stage(gctx, stages, "frequency", clean.Len(), func() (*dataframe.DataFrame, error) {
			return Frequency(clean)
		})
		return err
	})
	g.Go(func() error {
		var err error
		monetary, err = p.stage(gctx, stages, "monetary", clean.Len(), func() (*dataframe.DataFrame, error) {
			return Monetary(clean, lines, p.opts.MonetarySource)
		})
		return err
	})
	waitErr := g.Wait()
	for _, df := range []*dataframe.DataFrame{frequency, monetary} {
		if df != nil {
			defer df.Release()
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}

	joined, err := p.stage(ctx, stages, "join", recency.Len(), func() (*dataframe.DataFrame, error) {
		return JoinMetrics(recency, frequency, monetary, p.opts.RecencyAggregation)
	})
	if err != nil {
		return nil, err
	}
	defer joined.Release()

	res := &Result{Overview: overview, CleanRows: clean.Len()}
	if res.Metrics, err = p.stage(ctx, stages, "segment", joined.Len(), func() (*dataframe.DataFrame, error) {
		return Segment(joined, p.opts.Thresholds)
	}); err != nil {
		return nil, err
	}
	if res.Selected, err = p.stage(ctx, stages, "select", res.Metrics.Len(), func() (*dataframe.DataFrame, error) {
		return SelectTopTier(res.Metrics, p.opts.TargetGroup)
	}); err != nil {
		res.Release()
		return nil, err
	}
	if res.Summary, err = Describe(res.Metrics); err != nil {
		res.Release()
		return nil, fmt.Errorf("describe: %w", err)
	}
	if res.Distribution, err = TierDistribution(res.Metrics); err != nil {
		res.Release()
		return nil, fmt.Errorf("distribution: %w", err)
	}
	res.Stages = stages.Stages()
	return res, nil
}

// stage runs fn unless ctx is done, records it in stages and logs its row
// counts and duration.
func (p *Pipeline) stage(
	ctx context.Context,
	stages *monitoring.Collector,
	name string,
	rowsIn int,
	fn func() (*dataframe.DataFrame, error),
) (*dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var out *dataframe.DataFrame
	m, err := stages.Record(name, rowsIn, func() (int, error) {
		var err error
		if out, err = fn(); err != nil {
			return 0, err
		}
		return out.Len(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	fields := []zap.Field{
		zap.String("stage", name),
		zap.Int("rows_in", m.RowsIn),
		zap.Int("rows_out", m.RowsOut),
		zap.Duration("duration", m.Duration),
	}
	if p.opts.TrackMemory {
		fields = append(fields, zap.Int64("memory_used", m.MemoryUsed))
	}
	p.logger.Info("stage complete", fields...)
	return out, nil
}

// TierCount is the number of customers holding one code.
type TierCount struct {
	Code      string
	Customers int
}

// Report summarizes a completed run.
type Report struct {
	Overview     Overview
	CleanRows    int
	MetricRows   int
	Selected     int
	Summary      []dataframe.ColumnSummary
	Distribution []TierCount
	Stages       []monitoring.StageMetrics
	ResultPath   string
	MetricsPath  string
	Duration     time.Duration
}

// Run loads the order lines from the input CSV, analyzes them and writes the
// selected customer ids to the result file.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	stages := monitoring.NewCollector(p.opts.TrackMemory)

	lines, err := p.stage(ctx, stages, "load", 0, func() (*dataframe.DataFrame, error) {
		opts := dfio.DefaultCSVOptions()
		opts.Delimiter = p.opts.Delimiter
		opts.Schema = Schema()
		return dfio.ReadCSVFile(p.opts.InputPath, opts, p.mem)
	})
	if err != nil {
		return nil, err
	}
	defer lines.Release()

	res, err := p.analyze(ctx, lines, stages)
	if err != nil {
		return nil, err
	}
	defer res.Release()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := dfio.WriteCSVFile(p.opts.ResultPath, res.Selected, dfio.DefaultCSVOptions()); err != nil {
		return nil, fmt.Errorf("writing result: %w", err)
	}
	p.logger.Info("result written", zap.String("path", p.opts.ResultPath), zap.Int("customers", res.Selected.Len()))

	if p.opts.MetricsPath != "" {
		popts := dfio.DefaultParquetOptions()
		popts.Compression = p.opts.Compression
		if err := dfio.WriteParquetFile(p.opts.MetricsPath, res.Metrics, popts); err != nil {
			return nil, fmt.Errorf("exporting metrics: %w", err)
		}
		p.logger.Info("metrics exported", zap.String("path", p.opts.MetricsPath), zap.Int("rows", res.Metrics.Len()))
	}

	distribution, err := tierCounts(res.Distribution)
	if err != nil {
		return nil, err
	}
	sum := stages.Summary()
	p.logger.Debug("run complete",
		zap.Int("stages", sum.Stages),
		zap.Duration("stage_time", sum.TotalDuration),
		zap.String("slowest", sum.Slowest),
		zap.Duration("slowest_duration", sum.SlowestDuration))
	return &Report{
		Overview:     res.Overview,
		CleanRows:    res.CleanRows,
		MetricRows:   res.Metrics.Len(),
		Selected:     res.Selected.Len(),
		Summary:      res.Summary,
		Distribution: distribution,
		Stages:       stages.Stages(),
		ResultPath:   p.opts.ResultPath,
		MetricsPath:  p.opts.MetricsPath,
		Duration:     time.Since(start),
	}, nil
}

func tierCounts(df *dataframe.DataFrame) ([]TierCount, error) {
	codes, valid, err := df.StringValues(ColGroups)
	if err != nil {
		return nil, err
	}
	counts, _, err := df.Float64Values(ColCustomers)
	if err != nil {
		return nil, err
	}
	out := make([]TierCount, 0, len(codes))
	for i, code := range codes {
		if valid[i] {
			out = append(out, TierCount{Code: code, Customers: int(counts[i])})
		}
	}
	return out, nil
}
