package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_DefaultValues(t *testing.T) {
	config := NewConfig()

	assert.Equal(t, "online_retail.csv", config.Input.CSV)
	assert.Equal(t, ";", config.Input.Delimiter)
	assert.Equal(t, ';', config.DelimiterRune())
	assert.Empty(t, config.Analysis.ReferenceDate)
	assert.Equal(t, MonetarySourceClean, config.Analysis.MonetarySource)
	assert.Equal(t, RecencyPerLine, config.Analysis.RecencyAggregation)
	assert.Equal(t, "AAA", config.Analysis.TargetGroup)
	assert.Equal(t, LadderConfig{A: 4325, B: 4409}, config.Thresholds.Recency)
	assert.Equal(t, LadderConfig{A: 18, B: 8}, config.Thresholds.Frequency)
	assert.Equal(t, LadderConfig{A: 6147, B: 2616}, config.Thresholds.Monetary)
	assert.Equal(t, 1000, config.Engine.ParallelThreshold)
	assert.Equal(t, "info", config.Logging.Level)
	require.NoError(t, config.Validate())
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"fixed reference date", func(c *Config) { c.Analysis.ReferenceDate = "2023-06-30" }, ""},
		{"bad reference date", func(c *Config) { c.Analysis.ReferenceDate = "30/06/2023" }, "reference_date"},
		{"long delimiter", func(c *Config) { c.Input.Delimiter = ";;" }, "delimiter"},
		{"missing input", func(c *Config) { c.Input.CSV = "" }, "input.csv"},
		{"monetary source", func(c *Config) { c.Analysis.MonetarySource = "gross" }, "monetary_source"},
		{"recency aggregation", func(c *Config) { c.Analysis.RecencyAggregation = "mean" }, "recency_aggregation"},
		{"target group letters", func(c *Config) { c.Analysis.TargetGroup = "AAD" }, "target_group"},
		{"target group length", func(c *Config) { c.Analysis.TargetGroup = "AA" }, "target_group"},
		{"recency ladder", func(c *Config) { c.Thresholds.Recency = LadderConfig{A: 5000, B: 4000} }, "thresholds.recency"},
		{"frequency ladder", func(c *Config) { c.Thresholds.Frequency = LadderConfig{A: 1, B: 8} }, "thresholds.frequency"},
		{"monetary ladder", func(c *Config) { c.Thresholds.Monetary = LadderConfig{A: 1, B: 2} }, "thresholds.monetary"},
		{"parallel threshold", func(c *Config) { c.Engine.ParallelThreshold = 0 }, "parallel_threshold"},
		{"worker pool", func(c *Config) { c.Engine.WorkerPoolSize = -1 }, "worker_pool_size"},
		{"compression", func(c *Config) { c.Export.Compression = "brotli" }, "compression"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewConfig()
			tt.modify(&config)

			err := config.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfm.yaml")
	content := `
analysis:
  reference_date: "2023-06-30"
  recency_aggregation: most_recent
thresholds:
  monetary:
    a: 10000
    b: 5000
export:
  metrics: metrics.parquet
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2023-06-30", config.Analysis.ReferenceDate)
	assert.Equal(t, RecencyMostRecent, config.Analysis.RecencyAggregation)
	assert.Equal(t, LadderConfig{A: 10000, B: 5000}, config.Thresholds.Monetary)
	assert.Equal(t, LadderConfig{A: 18, B: 8}, config.Thresholds.Frequency, "untouched keys keep defaults")
	assert.Equal(t, "metrics.parquet", config.Export.Metrics)
	require.NoError(t, config.Validate())
}

func TestConfig_LoadFromNonExistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("RFM_ANALYSIS_REFERENCE_DATE", "2011-12-10")
	t.Setenv("RFM_LOGGING_LEVEL", "debug")
	t.Setenv("RFM_ENGINE_WORKER_POOL_SIZE", "3")
	t.Setenv("RFM_THRESHOLDS_RECENCY_B", "30")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "2011-12-10", config.Analysis.ReferenceDate)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, 3, config.Engine.WorkerPoolSize)
	assert.InDelta(t, 30.0, config.Thresholds.Recency.B, 1e-9)
}

func TestConfig_LoadWithFlags(t *testing.T) {
	t.Setenv("RFM_EXPORT_RESULT", "from-env.csv")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "unused-default.csv", "")
	flags.String("log-level", "warn", "")
	require.NoError(t, flags.Parse([]string{"--output", "from-flag.csv"}))

	config, err := Load("",
		WithFlag("export.result", flags.Lookup("output")),
		WithFlag("logging.level", flags.Lookup("log-level")),
		WithFlag("input.sheet", flags.Lookup("missing")),
	)
	require.NoError(t, err)

	assert.Equal(t, "from-flag.csv", config.Export.Result)
	assert.Equal(t, "info", config.Logging.Level, "unset flags do not override configuration")
}

func TestConfig_ReferenceDate(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 59, 0, 0, time.FixedZone("JST", 9*3600))

	config := NewConfig()
	today, err := config.ReferenceDate(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), today)

	config.Analysis.ReferenceDate = "2011-12-10"
	fixed, err := config.ReferenceDate(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2011, 12, 10, 0, 0, 0, 0, time.UTC), fixed)
}

func TestConfig_WithDefaults(t *testing.T) {
	partial := Config{
		Input:    InputConfig{CSV: "lines.csv"},
		Analysis: AnalysisConfig{TargetGroup: "AAB"},
		Engine:   EngineConfig{WorkerPoolSize: 2},
	}

	result := partial.WithDefaults()
	assert.Equal(t, "lines.csv", result.Input.CSV)
	assert.Equal(t, ";", result.Input.Delimiter)
	assert.Equal(t, "AAB", result.Analysis.TargetGroup)
	assert.Equal(t, MonetarySourceClean, result.Analysis.MonetarySource)
	assert.Equal(t, NewConfig().Thresholds, result.Thresholds)
	assert.Equal(t, 2, result.Engine.WorkerPoolSize)
	assert.Equal(t, 1000, result.Engine.ParallelThreshold)
	assert.Empty(t, result.Analysis.ReferenceDate)
	require.NoError(t, result.Validate())
}

func TestConfig_YAML(t *testing.T) {
	config := NewConfig()
	config.Analysis.ReferenceDate = "2011-12-10"

	data, err := config.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "2011-12-10")
	assert.Contains(t, string(data), "recency_aggregation: per_line")

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, config, decoded)
}

func TestConfig_ValidatorRecommendations(t *testing.T) {
	validator := &ConfigValidator{cpuCount: 4}

	config := NewConfig()
	config.Analysis.ReferenceDate = "2011-12-10"
	validated, warnings, err := validator.Validate(config)
	require.NoError(t, err)
	assert.Equal(t, 4, validated.Engine.WorkerPoolSize)
	assert.Empty(t, warnings)

	config.Engine.WorkerPoolSize = 64
	config.Analysis.MonetarySource = MonetarySourceRaw
	config.Analysis.ReferenceDate = ""
	validated, warnings, err = validator.Validate(config)
	require.NoError(t, err)
	assert.Equal(t, 64, validated.Engine.WorkerPoolSize)
	assert.Len(t, warnings, 3)

	config.Logging.Format = "xml"
	_, _, err = validator.Validate(config)
	require.Error(t, err)
}
