package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies UNIPRED_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known UNIPRED_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setBool(&cfg.Kalshi.Enabled, "UNIPRED_KALSHI_ENABLED")
	setStr(&cfg.Kalshi.BaseURL, "UNIPRED_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.WsURL, "UNIPRED_KALSHI_WS_URL")
	setStr(&cfg.Kalshi.ApiKeyID, "UNIPRED_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "UNIPRED_KALSHI_RSA_PRIVATE_KEY_PATH")

	// ── Polymarket ──
	setBool(&cfg.Polymarket.Enabled, "UNIPRED_POLYMARKET_ENABLED")
	setStr(&cfg.Polymarket.GammaHost, "UNIPRED_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "UNIPRED_POLYMARKET_CLOB_HOST")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "UNIPRED_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "UNIPRED_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "UNIPRED_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "UNIPRED_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "UNIPRED_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "UNIPRED_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "UNIPRED_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "UNIPRED_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "UNIPRED_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "UNIPRED_POSTGRES_RUN_MIGRATIONS")

	// ── ClickHouse ──
	setStr(&cfg.ClickHouse.DSN, "UNIPRED_CLICKHOUSE_DSN")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "UNIPRED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "UNIPRED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "UNIPRED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "UNIPRED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "UNIPRED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "UNIPRED_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "UNIPRED_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "UNIPRED_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "UNIPRED_S3_REGION")
	setStr(&cfg.S3.Bucket, "UNIPRED_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "UNIPRED_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "UNIPRED_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "UNIPRED_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "UNIPRED_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ExportPrefix, "UNIPRED_S3_EXPORT_PREFIX")

	// ── Index ──
	setStr(&cfg.Index.Embedder, "UNIPRED_INDEX_EMBEDDER")
	setStr(&cfg.Index.Endpoint, "UNIPRED_INDEX_ENDPOINT")
	setInt(&cfg.Index.Dim, "UNIPRED_INDEX_DIM")
	setInt(&cfg.Index.K, "UNIPRED_INDEX_K")
	setDuration(&cfg.Index.VectorTTL, "UNIPRED_INDEX_VECTOR_TTL")

	// ── Correlate ──
	setFloat64(&cfg.Correlate.TextWeight, "UNIPRED_CORRELATE_TEXT_WEIGHT")
	setFloat64(&cfg.Correlate.StructuralWeight, "UNIPRED_CORRELATE_STRUCTURAL_WEIGHT")
	setFloat64(&cfg.Correlate.MissingStructuralPenalty, "UNIPRED_CORRELATE_MISSING_STRUCTURAL_PENALTY")
	setFloat64(&cfg.Correlate.Threshold, "UNIPRED_CORRELATE_THRESHOLD")
	setDuration(&cfg.Correlate.SeriesLookback, "UNIPRED_CORRELATE_SERIES_LOOKBACK")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.IngestInterval, "UNIPRED_PIPELINE_INGEST_INTERVAL")
	setDuration(&cfg.Pipeline.RecomputeInterval, "UNIPRED_PIPELINE_RECOMPUTE_INTERVAL")
	setStr(&cfg.Pipeline.ExportCron, "UNIPRED_PIPELINE_EXPORT_CRON")
	setInt(&cfg.Pipeline.PageLimit, "UNIPRED_PIPELINE_PAGE_LIMIT")
	setInt(&cfg.Pipeline.MaxRetries, "UNIPRED_PIPELINE_MAX_RETRIES")
	setInt(&cfg.Pipeline.RateLimit, "UNIPRED_PIPELINE_RATE_LIMIT")
	setDuration(&cfg.Pipeline.RateWindow, "UNIPRED_PIPELINE_RATE_WINDOW")
	setDuration(&cfg.Pipeline.QuoteTTL, "UNIPRED_PIPELINE_QUOTE_TTL")

	// ── Top-level ──
	setStr(&cfg.Storage, "UNIPRED_STORAGE")
	setStr(&cfg.Mode, "UNIPRED_MODE")
	setStr(&cfg.LogLevel, "UNIPRED_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
