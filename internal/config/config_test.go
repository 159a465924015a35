package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "turbo" }, "unknown mode"},
		{"unknown storage", func(c *Config) { c.Storage = "sqlite" }, "unknown storage"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"no exchanges", func(c *Config) { c.Kalshi.Enabled, c.Polymarket.Enabled = false, false }, "at least one exchange"},
		{"kalshi without base url", func(c *Config) { c.Kalshi.BaseURL = "" }, "base_url"},
		{"missing clickhouse dsn", func(c *Config) { c.ClickHouse.DSN = "" }, "clickhouse"},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis"},
		{"bad postgres port", func(c *Config) { c.Postgres.Port = 99999 }, "port"},
		{"unknown embedder", func(c *Config) { c.Index.Embedder = "openai" }, "embedder"},
		{"http embedder without endpoint", func(c *Config) { c.Index.Embedder = "http" }, "endpoint"},
		{"zero dim", func(c *Config) { c.Index.Dim = 0 }, "dim"},
		{"weights do not sum", func(c *Config) { c.Correlate.TextWeight = 0.9 }, "sum to 1"},
		{"threshold out of range", func(c *Config) { c.Correlate.Threshold = 1.5 }, "threshold"},
		{"export without s3", func(c *Config) { c.Mode = "export" }, "s3 must be enabled"},
		{"zero ingest interval", func(c *Config) { c.Pipeline.IngestInterval = duration{} }, "ingest_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMemoryStorageSkipsBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Storage = "memory"
	cfg.Postgres.DSN = ""
	cfg.Postgres.Host = ""
	cfg.ClickHouse.DSN = ""
	cfg.Redis.Addr = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
storage = "memory"
mode = "ingest"
log_level = "debug"

[kalshi]
enabled = true
base_url = "https://example.test/v2"

[correlate]
threshold = 0.7
series_lookback = "48h"

[pipeline]
ingest_interval = "2m"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "ingest", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://example.test/v2", cfg.Kalshi.BaseURL)
	assert.Equal(t, 0.7, cfg.Correlate.Threshold)
	assert.Equal(t, 48*time.Hour, cfg.Correlate.SeriesLookback.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.IngestInterval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, Defaults().Polymarket.GammaHost, cfg.Polymarket.GammaHost)
	assert.Equal(t, Defaults().Pipeline.PageLimit, cfg.Pipeline.PageLimit)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Mode, cfg.Mode)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pipeline]\ningest_interval = \"soon\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("UNIPRED_MODE", "correlate")
	t.Setenv("UNIPRED_STORAGE", "memory")
	t.Setenv("UNIPRED_KALSHI_BASE_URL", "https://env.test/v2")
	t.Setenv("UNIPRED_REDIS_DB", "4")
	t.Setenv("UNIPRED_CORRELATE_THRESHOLD", "0.8")
	t.Setenv("UNIPRED_PIPELINE_INGEST_INTERVAL", "90s")
	t.Setenv("UNIPRED_S3_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "correlate", cfg.Mode)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "https://env.test/v2", cfg.Kalshi.BaseURL)
	assert.Equal(t, 4, cfg.Redis.DB)
	assert.Equal(t, 0.8, cfg.Correlate.Threshold)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.IngestInterval.Duration)
	assert.True(t, cfg.S3.Enabled)
}

func TestLoadEnvIgnoresUnparseable(t *testing.T) {
	t.Setenv("UNIPRED_REDIS_DB", "four")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Redis.DB, cfg.Redis.DB)
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.Kalshi.ApiKeyID = "key-id"
	cfg.Postgres.Password = "hunter2"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.ClickHouse.DSN = "clickhouse://u:p@h/db"
	cfg.Redis.Password = "redispass"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "secret"

	red := cfg.Redacted()
	assert.Equal(t, "***", red.Kalshi.ApiKeyID)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Postgres.DSN)
	assert.Equal(t, "***", red.ClickHouse.DSN)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.AccessKey)
	assert.Equal(t, "***", red.S3.SecretKey)

	// The original is untouched and non-secret fields survive.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, cfg.Kalshi.BaseURL, red.Kalshi.BaseURL)
}

func TestRedactedLeavesEmptySecrets(t *testing.T) {
	red := Defaults().Redacted()
	assert.Empty(t, red.Postgres.Password)
	assert.Empty(t, red.Kalshi.ApiKeyID)
}
