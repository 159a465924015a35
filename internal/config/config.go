// Package config defines the top-level configuration for the unipred service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by UNIPRED_* environment
// variables.
type Config struct {
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Index      IndexConfig      `toml:"index"`
	Correlate  CorrelateConfig  `toml:"correlate"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Storage    string           `toml:"storage"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// KalshiConfig holds Kalshi exchange API parameters. Credentials are
// optional; public market data does not require signing.
type KalshiConfig struct {
	Enabled           bool   `toml:"enabled"`
	BaseURL           string `toml:"base_url"`
	WsURL             string `toml:"ws_url"`
	ApiKeyID          string `toml:"api_key_id"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	Enabled   bool   `toml:"enabled"`
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
}

// PostgresConfig holds PostgreSQL connection parameters for the canonical
// catalog and the edge set.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ClickHouseConfig holds the connection for the quote time series.
type ClickHouseConfig struct {
	DSN string `toml:"dsn"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for dataset export.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	ExportPrefix   string `toml:"export_prefix"`
}

// IndexConfig holds embedding and retrieval parameters.
type IndexConfig struct {
	// Embedder selects the embedding backend: "hashing" or "http".
	Embedder string `toml:"embedder"`
	// Endpoint is the embedding service URL for the http backend.
	Endpoint  string   `toml:"endpoint"`
	Dim       int      `toml:"dim"`
	K         int      `toml:"k"`
	VectorTTL duration `toml:"vector_ttl"`
}

// CorrelateConfig holds the scoring policy.
type CorrelateConfig struct {
	TextWeight               float64  `toml:"text_weight"`
	StructuralWeight         float64  `toml:"structural_weight"`
	MissingStructuralPenalty float64  `toml:"missing_structural_penalty"`
	Threshold                float64  `toml:"threshold"`
	SeriesLookback           duration `toml:"series_lookback"`
}

// PipelineConfig holds loop cadences and client-side pacing.
type PipelineConfig struct {
	IngestInterval    duration `toml:"ingest_interval"`
	RecomputeInterval duration `toml:"recompute_interval"`
	ExportCron        string   `toml:"export_cron"`
	PageLimit         int      `toml:"page_limit"`
	MaxRetries        int      `toml:"max_retries"`
	RateLimit         int      `toml:"rate_limit"`
	RateWindow        duration `toml:"rate_window"`
	QuoteTTL          duration `toml:"quote_ttl"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration, suitable for a local run
// against the public exchange APIs.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			Enabled: true,
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Polymarket: PolymarketConfig{
			Enabled:   true,
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "unipred",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		ClickHouse: ClickHouseConfig{
			DSN: "clickhouse://localhost:9000/unipred",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "unipred-data",
			ForcePathStyle: true,
			ExportPrefix:   "exports",
		},
		Index: IndexConfig{
			Embedder:  "hashing",
			Dim:       384,
			K:         25,
			VectorTTL: duration{0},
		},
		Correlate: CorrelateConfig{
			TextWeight:               0.6,
			StructuralWeight:         0.4,
			MissingStructuralPenalty: 0.8,
			Threshold:                0.65,
			SeriesLookback:           duration{72 * time.Hour},
		},
		Pipeline: PipelineConfig{
			IngestInterval:    duration{5 * time.Minute},
			RecomputeInterval: duration{30 * time.Minute},
			ExportCron:        "",
			PageLimit:         200,
			MaxRetries:        5,
			RateLimit:         10,
			RateWindow:        duration{time.Second},
			QuoteTTL:          duration{30 * time.Second},
		},
		Storage:  "full",
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":      true,
	"ingest":    true,
	"correlate": true,
	"sync":      true,
	"recompute": true,
	"export":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validStorage enumerates the accepted values for Config.Storage.
var validStorage = map[string]bool{
	"full":   true,
	"memory": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, ingest, correlate, sync, recompute, export)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if !validStorage[strings.ToLower(c.Storage)] {
		errs = append(errs, fmt.Sprintf("unknown storage %q (valid: full, memory)", c.Storage))
	}

	if !c.Kalshi.Enabled && !c.Polymarket.Enabled {
		errs = append(errs, "at least one exchange must be enabled")
	}
	if c.Kalshi.Enabled && c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Polymarket.Enabled {
		if c.Polymarket.GammaHost == "" {
			errs = append(errs, "polymarket: gamma_host must not be empty")
		}
		if c.Polymarket.ClobHost == "" {
			errs = append(errs, "polymarket: clob_host must not be empty")
		}
	}

	if strings.ToLower(c.Storage) == "full" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.ClickHouse.DSN == "" {
			errs = append(errs, "clickhouse: dsn must not be empty")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
	}

	switch c.Index.Embedder {
	case "hashing":
	case "http":
		if c.Index.Endpoint == "" {
			errs = append(errs, "index: endpoint is required for the http embedder")
		}
	default:
		errs = append(errs, fmt.Sprintf("index: unknown embedder %q (valid: hashing, http)", c.Index.Embedder))
	}
	if c.Index.Dim <= 0 {
		errs = append(errs, fmt.Sprintf("index: dim must be positive, got %d", c.Index.Dim))
	}
	if c.Index.K <= 0 {
		errs = append(errs, fmt.Sprintf("index: k must be positive, got %d", c.Index.K))
	}

	if sum := c.Correlate.TextWeight + c.Correlate.StructuralWeight; sum < 0.999 || sum > 1.001 {
		errs = append(errs, fmt.Sprintf("correlate: text_weight and structural_weight must sum to 1, got %v", sum))
	}
	if c.Correlate.Threshold < 0 || c.Correlate.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("correlate: threshold must be on [0, 1], got %v", c.Correlate.Threshold))
	}
	if p := c.Correlate.MissingStructuralPenalty; p <= 0 || p > 1 {
		errs = append(errs, fmt.Sprintf("correlate: missing_structural_penalty must be on (0, 1], got %v", p))
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if c.Mode == "export" && !c.S3.Enabled {
		errs = append(errs, "s3 must be enabled for export mode")
	}

	if c.Pipeline.IngestInterval.Duration <= 0 {
		errs = append(errs, "pipeline: ingest_interval must be positive")
	}
	if c.Pipeline.RecomputeInterval.Duration <= 0 {
		errs = append(errs, "pipeline: recompute_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
