package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paveg/rfm/internal/config"
	"github.com/paveg/rfm/internal/dataframe"
	"github.com/paveg/rfm/internal/logging"
	"github.com/paveg/rfm/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"xlsx":            "input.xlsx",
	"sheet":           "input.sheet",
	"csv":             "input.csv",
	"delimiter":       "input.delimiter",
	"reference-date":  "analysis.reference_date",
	"monetary-source": "analysis.monetary_source",
	"recency":         "analysis.recency_aggregation",
	"target":          "analysis.target_group",
	"preview":         "analysis.preview_rows",
	"output":          "export.result",
	"metrics":         "export.metrics",
	"compression":     "export.compression",
	"track-memory":    "engine.track_memory",
}

// app carries the state shared by every command of one invocation.
type app struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "rfm-cli",
		Short: "Segment retail customers by recency, frequency and monetary value",
		Long: `rfm-cli converts an Online Retail spreadsheet to CSV, grades every customer
A/B/C on recency, frequency and monetary value, and writes the ids of the
customers in the target group (AAA by default).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file merged over the built-in defaults")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")

	root.AddCommand(
		convertCmd(a),
		exploreCmd(a),
		analyzeCmd(a),
		runCmd(a),
		configCmd(a),
		versionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// init loads the configuration, sets up logging and tunes the engine.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	opts := make([]config.Option, 0, len(flagKeys))
	for name, key := range flagKeys {
		opts = append(opts, config.WithFlag(key, cmd.Flags().Lookup(name)))
	}

	cfg, err := config.Load(a.cfgFile, opts...)
	if err != nil {
		return err
	}
	cfg, warnings, err := config.NewConfigValidator().Validate(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	dataframe.Configure(dataframe.EngineOptions{
		ParallelThreshold: cfg.Engine.ParallelThreshold,
		WorkerPoolSize:    cfg.Engine.WorkerPoolSize,
	})

	a.cfg, a.logger = cfg, logger
	return nil
}

func configCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), version.Info().String())
			return err
		},
	}
}
