// Package config loads the configuration of an RFM run.
//
// Values come from embedded defaults, an optional YAML file merged on top,
// environment variables prefixed with RFM_ (RFM_ANALYSIS_REFERENCE_DATE,
// RFM_LOGGING_LEVEL, ...) and finally bound command line flags.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaults []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RFM"

// DateLayout is the layout of analysis.reference_date.
const DateLayout = "2006-01-02"

// Monetary sources
const (
	MonetarySourceClean = "clean"
	MonetarySourceRaw   = "raw"
)

// Recency aggregations
const (
	RecencyPerLine    = "per_line"
	RecencyMostRecent = "most_recent"
	RecencyOldest     = "oldest"
)

// Config represents the configuration of one pipeline run
type Config struct {
	Input      InputConfig      `mapstructure:"input" yaml:"input"`
	Analysis   AnalysisConfig   `mapstructure:"analysis" yaml:"analysis"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds"`
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Export     ExportConfig     `mapstructure:"export" yaml:"export"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

type InputConfig struct {
	XLSX      string `mapstructure:"xlsx" yaml:"xlsx"`
	Sheet     string `mapstructure:"sheet" yaml:"sheet"`
	CSV       string `mapstructure:"csv" yaml:"csv"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
}

type AnalysisConfig struct {
	ReferenceDate      string `mapstructure:"reference_date" yaml:"reference_date"` // empty = today
	MonetarySource     string `mapstructure:"monetary_source" yaml:"monetary_source"`
	RecencyAggregation string `mapstructure:"recency_aggregation" yaml:"recency_aggregation"`
	TargetGroup        string `mapstructure:"target_group" yaml:"target_group"`
	PreviewRows        int    `mapstructure:"preview_rows" yaml:"preview_rows"`
}

// LadderConfig holds the boundaries of tiers A and B. Values beyond B fall
// into tier C.
type LadderConfig struct {
	A float64 `mapstructure:"a" yaml:"a"`
	B float64 `mapstructure:"b" yaml:"b"`
}

type ThresholdsConfig struct {
	Recency   LadderConfig `mapstructure:"recency" yaml:"recency"`
	Frequency LadderConfig `mapstructure:"frequency" yaml:"frequency"`
	Monetary  LadderConfig `mapstructure:"monetary" yaml:"monetary"`
}

type EngineConfig struct {
	ParallelThreshold int  `mapstructure:"parallel_threshold" yaml:"parallel_threshold"` // Minimum rows to trigger parallel processing
	WorkerPoolSize    int  `mapstructure:"worker_pool_size" yaml:"worker_pool_size"`     // Number of worker goroutines (0 = auto-detect)
	TrackMemory       bool `mapstructure:"track_memory" yaml:"track_memory"`             // Sample heap growth of every pipeline stage
}

type ExportConfig struct {
	Result      string `mapstructure:"result" yaml:"result"`
	Metrics     string `mapstructure:"metrics" yaml:"metrics"` // Parquet export of segmented metrics, empty = off
	Compression string `mapstructure:"compression" yaml:"compression"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Option customises Load.
type Option func(v *viper.Viper) error

// WithFlag binds a command line flag to a configuration key. The flag wins
// over every other source when it was set explicitly.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %s to %s: %w", flag.Name, key, err)
		}
		return nil
	}
}

// Load reads embedded defaults, merges the YAML file at path (if provided)
// and applies environment and flag overrides.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, fmt.Errorf("reading embedded defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}

// NewConfig returns the embedded defaults.
func NewConfig() Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.Input.CSV == "" {
		return fmt.Errorf("input.csv must be set")
	}
	if utf8.RuneCountInString(c.Input.Delimiter) != 1 {
		return fmt.Errorf("input.delimiter must be a single character, got %q", c.Input.Delimiter)
	}

	if _, err := c.ReferenceDate(time.Now()); err != nil {
		return err
	}
	switch c.Analysis.MonetarySource {
	case MonetarySourceClean, MonetarySourceRaw:
	default:
		return fmt.Errorf("analysis.monetary_source must be %q or %q, got %q",
			MonetarySourceClean, MonetarySourceRaw, c.Analysis.MonetarySource)
	}
	switch c.Analysis.RecencyAggregation {
	case RecencyPerLine, RecencyMostRecent, RecencyOldest:
	default:
		return fmt.Errorf("analysis.recency_aggregation must be one of %s, %s, %s, got %q",
			RecencyPerLine, RecencyMostRecent, RecencyOldest, c.Analysis.RecencyAggregation)
	}
	if len(c.Analysis.TargetGroup) != 3 || strings.Trim(c.Analysis.TargetGroup, "ABC") != "" {
		return fmt.Errorf("analysis.target_group must be three of A, B, C, got %q", c.Analysis.TargetGroup)
	}
	if c.Analysis.PreviewRows < 0 {
		return fmt.Errorf("analysis.preview_rows must be non-negative, got %d", c.Analysis.PreviewRows)
	}

	if c.Thresholds.Recency.A > c.Thresholds.Recency.B {
		return fmt.Errorf("thresholds.recency: a (%g) must not exceed b (%g)",
			c.Thresholds.Recency.A, c.Thresholds.Recency.B)
	}
	if c.Thresholds.Frequency.A < c.Thresholds.Frequency.B {
		return fmt.Errorf("thresholds.frequency: a (%g) must not be below b (%g)",
			c.Thresholds.Frequency.A, c.Thresholds.Frequency.B)
	}
	if c.Thresholds.Monetary.A < c.Thresholds.Monetary.B {
		return fmt.Errorf("thresholds.monetary: a (%g) must not be below b (%g)",
			c.Thresholds.Monetary.A, c.Thresholds.Monetary.B)
	}

	if c.Engine.ParallelThreshold <= 0 {
		return fmt.Errorf("engine.parallel_threshold must be positive, got %d", c.Engine.ParallelThreshold)
	}
	if c.Engine.WorkerPoolSize < 0 {
		return fmt.Errorf("engine.worker_pool_size must be non-negative, got %d", c.Engine.WorkerPoolSize)
	}

	if c.Export.Result == "" {
		return fmt.Errorf("export.result must be set")
	}
	switch c.Export.Compression {
	case "snappy", "gzip", "lz4", "zstd", "uncompressed":
	default:
		return fmt.Errorf("export.compression %q is not supported", c.Export.Compression)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	d := NewConfig()

	fill(&c.Input.CSV, d.Input.CSV)
	fill(&c.Input.XLSX, d.Input.XLSX)
	fill(&c.Input.Delimiter, d.Input.Delimiter)
	fill(&c.Analysis.MonetarySource, d.Analysis.MonetarySource)
	fill(&c.Analysis.RecencyAggregation, d.Analysis.RecencyAggregation)
	fill(&c.Analysis.TargetGroup, d.Analysis.TargetGroup)
	fill(&c.Analysis.PreviewRows, d.Analysis.PreviewRows)
	if c.Thresholds == (ThresholdsConfig{}) {
		c.Thresholds = d.Thresholds
	}
	fill(&c.Engine.ParallelThreshold, d.Engine.ParallelThreshold)
	fill(&c.Export.Result, d.Export.Result)
	fill(&c.Export.Compression, d.Export.Compression)
	fill(&c.Logging.Level, d.Logging.Level)
	fill(&c.Logging.Format, d.Logging.Format)

	// Empty reference date, zero worker pool size and empty metrics path are
	// meaningful values and are left alone.
	return c
}

func fill[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// ReferenceDate returns the analysis "current date" as a wall-clock
// midnight. An empty reference date means the date of now.
func (c *Config) ReferenceDate(now time.Time) (time.Time, error) {
	if c.Analysis.ReferenceDate == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(DateLayout, c.Analysis.ReferenceDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("analysis.reference_date must be YYYY-MM-DD, got %q", c.Analysis.ReferenceDate)
	}
	return t, nil
}

// DelimiterRune returns the input delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Input.Delimiter)
	return r
}

// YAML renders the configuration.
func (c Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	return buf.Bytes(), nil
}

// ConfigValidator validates a configuration against the host it runs on
type ConfigValidator struct {
	cpuCount int
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{cpuCount: runtime.NumCPU()}
}

// Validate validates config and returns it with unset engine values
// resolved, plus warnings worth surfacing to the user.
func (cv *ConfigValidator) Validate(config Config) (Config, []string, error) {
	var warnings []string
	if err := config.Validate(); err != nil {
		return Config{}, nil, err
	}

	validated := config
	if config.Engine.WorkerPoolSize == 0 {
		validated.Engine.WorkerPoolSize = cv.cpuCount
	} else if config.Engine.WorkerPoolSize > cv.cpuCount*2 {
		warnings = append(warnings,
			fmt.Sprintf("worker pool size (%d) exceeds 2x CPU count (%d), may cause contention",
				config.Engine.WorkerPoolSize, cv.cpuCount))
	}
	if config.Analysis.MonetarySource == MonetarySourceRaw {
		warnings = append(warnings,
			"monetary_source=raw sums lines that cleaning dropped; totals include rows with missing fields")
	}
	if config.Analysis.ReferenceDate == "" {
		warnings = append(warnings, "analysis.reference_date is empty; recency is relative to today and "+
			"the default recency thresholds were calibrated for a fixed date")
	}
	return validated, warnings, nil
}
