package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/paveg/rfm/internal/dataframe"
	dfio "github.com/paveg/rfm/internal/io"
	"github.com/paveg/rfm/internal/rfm"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func convertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert the spreadsheet export to delimited text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.convert(cmd)
		},
	}
	addInputFlags(cmd)
	return cmd
}

func exploreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Describe the order lines and preview the first rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := dfio.DefaultCSVOptions()
			opts.Delimiter = a.cfg.DelimiterRune()
			opts.Schema = rfm.Schema()
			df, err := dfio.ReadCSVFile(a.cfg.Input.CSV, opts, memory.NewGoAllocator())
			if err != nil {
				return err
			}
			defer df.Release()

			ov, err := rfm.Explore(df)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprint(out, ov.String()); err != nil {
				return err
			}
			return df.Show(out, a.cfg.Analysis.PreviewRows)
		},
	}
	cmd.Flags().String("csv", "", "order line CSV")
	cmd.Flags().String("delimiter", "", "CSV field delimiter")
	cmd.Flags().Int("preview", 0, "rows to preview")
	return cmd
}

func analyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Segment customers from the order line CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.analyze(cmd)
		},
	}
	cmd.Flags().String("csv", "", "order line CSV")
	cmd.Flags().String("delimiter", "", "CSV field delimiter")
	addAnalysisFlags(cmd)
	return cmd
}

func runCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert the spreadsheet and segment its customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.convert(cmd); err != nil {
				return err
			}
			return a.analyze(cmd)
		},
	}
	addInputFlags(cmd)
	addAnalysisFlags(cmd)
	return cmd
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("xlsx", "", "spreadsheet to convert")
	cmd.Flags().String("sheet", "", "sheet to convert (default: first sheet)")
	cmd.Flags().String("csv", "", "CSV file to write")
	cmd.Flags().String("delimiter", "", "CSV field delimiter")
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("reference-date", "", "reference date as YYYY-MM-DD (default: today)")
	cmd.Flags().String("monetary-source", "", "order lines summed for monetary value (clean, raw)")
	cmd.Flags().String("recency", "", "recency per customer (per_line, most_recent, oldest)")
	cmd.Flags().String("target", "", "code of the customers to select")
	cmd.Flags().StringP("output", "o", "", "result CSV")
	cmd.Flags().String("metrics", "", "Parquet export of the segmented metrics")
	cmd.Flags().String("compression", "", "Parquet compression (snappy, gzip, lz4, zstd, uncompressed)")
	cmd.Flags().Bool("track-memory", false, "report heap growth of every stage")
}

func (a *app) convert(cmd *cobra.Command) error {
	var bar *progressbar.ProgressBar
	opts := dfio.DefaultXLSXOptions()
	opts.Sheet = a.cfg.Input.Sheet
	opts.Delimiter = a.cfg.DelimiterRune()
	opts.DateColumns = rfm.DateColumns()
	opts.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("converting "+a.cfg.Input.XLSX),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionOnCompletion(func() {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		_ = bar.Set(done)
	}

	start := time.Now()
	n, err := dfio.NewXLSXConverter(opts).ConvertFile(cmd.Context(), a.cfg.Input.XLSX, a.cfg.Input.CSV)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	a.logger.Info("spreadsheet converted",
		zap.String("source", a.cfg.Input.XLSX),
		zap.String("path", a.cfg.Input.CSV),
		zap.Int("rows", n),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (a *app) analyze(cmd *cobra.Command) error {
	opts, err := rfm.OptionsFromConfig(a.cfg, time.Now())
	if err != nil {
		return err
	}
	p, err := rfm.NewPipeline(opts, a.logger)
	if err != nil {
		return err
	}
	report, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(w io.Writer, r *rfm.Report) error {
	if _, err := fmt.Fprintf(w, "%s\nclean order lines: %d\nmetric rows: %d\n\n",
		r.Overview.String(), r.CleanRows, r.MetricRows); err != nil {
		return err
	}

	summary, err := dataframe.SummaryFrame(r.Summary)
	if err != nil {
		return err
	}
	defer summary.Release()
	if err := summary.Show(w, summary.Len()); err != nil {
		return err
	}

	dist := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(rfm.ColGroups, rfm.ColCustomers)
	for _, tc := range r.Distribution {
		dist.Row(tc.Code, strconv.Itoa(tc.Customers))
	}
	if _, err := fmt.Fprintln(w, dist.String()); err != nil {
		return err
	}

	stages := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("stage", "rows in", "rows out", "duration", "memory")
	for _, m := range r.Stages {
		mem := "-"
		if m.MemoryUsed != 0 {
			mem = strconv.FormatInt(m.MemoryUsed, 10)
		}
		stages.Row(m.Stage, strconv.Itoa(m.RowsIn), strconv.Itoa(m.RowsOut), m.Duration.Round(time.Microsecond).String(), mem)
	}
	if _, err := fmt.Fprintln(w, stages.String()); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "selected customers: %d -> %s (%s)\n", r.Selected, r.ResultPath, r.Duration.Round(time.Millisecond))
	if err == nil && r.MetricsPath != "" {
		_, err = fmt.Fprintf(w, "metrics: %s\n", r.MetricsPath)
	}
	return err
}
