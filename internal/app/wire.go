package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/unipredhq/unipred/internal/adapter"
	"github.com/unipredhq/unipred/internal/adapter/kalshi"
	"github.com/unipredhq/unipred/internal/adapter/polymarket"
	s3blob "github.com/unipredhq/unipred/internal/blob/s3"
	"github.com/unipredhq/unipred/internal/broker"
	"github.com/unipredhq/unipred/internal/cache/redis"
	"github.com/unipredhq/unipred/internal/config"
	"github.com/unipredhq/unipred/internal/correlate"
	"github.com/unipredhq/unipred/internal/domain"
	"github.com/unipredhq/unipred/internal/feature"
	"github.com/unipredhq/unipred/internal/index"
	"github.com/unipredhq/unipred/internal/store/clickhouse"
	"github.com/unipredhq/unipred/internal/store/memory"
	"github.com/unipredhq/unipred/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore   domain.MarketStore
	SnapshotStore domain.SnapshotStore
	EdgeStore     domain.EdgeStore

	// Caches and coordination
	VectorCache domain.VectorCache
	QuoteCache  domain.QuoteCache
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Exchange adapters, keyed construction order: kalshi then polymarket.
	Adapters []adapter.Adapter

	// Core engine components
	Index     *index.Index
	Extractor *feature.Extractor
	Engine    *correlate.Engine
	Broker    *broker.Broker

	// Dataset export (nil unless S3 is enabled)
	Exporter *s3blob.Exporter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	switch cfg.Storage {
	case "memory":
		deps.MarketStore = memory.NewMarketStore()
		deps.SnapshotStore = memory.NewSnapshotStore()
		deps.EdgeStore = memory.NewEdgeStore()
		deps.VectorCache = memory.NewVectorCache()
		deps.QuoteCache = memory.NewQuoteCache()
		deps.LockManager = memory.NewLockManager()

	default: // "full"
		// --- PostgreSQL: canonical catalog and edge set ---
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.EdgeStore = postgres.NewEdgeStore(pool)

		// --- ClickHouse: quote time series ---
		chConn, err := clickhouse.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = chConn.Close() })

		if err := chConn.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: clickhouse schema: %w", err)
		}
		deps.SnapshotStore = clickhouse.NewSnapshotStore(chConn)

		// --- Redis: caches, locks, pacing, signals ---
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.VectorCache = redis.NewVectorCache(redisClient, cfg.Index.VectorTTL.Duration)
		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Pipeline.QuoteTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- Exchange adapters ---
	if cfg.Kalshi.Enabled {
		kc := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKeyID)
		if cfg.Kalshi.RsaPrivateKeyPath != "" {
			keyBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
			if err != nil {
				logger.Warn("wire: failed reading Kalshi RSA key, continuing unauthenticated",
					slog.String("path", cfg.Kalshi.RsaPrivateKeyPath),
					slog.String("error", err.Error()),
				)
			} else if err := kc.SetRSAPrivateKey(keyBytes); err != nil {
				logger.Warn("wire: failed parsing Kalshi RSA key, continuing unauthenticated",
					slog.String("path", cfg.Kalshi.RsaPrivateKeyPath),
					slog.String("error", err.Error()),
				)
			}
		}
		deps.Adapters = append(deps.Adapters, kalshi.NewAdapter(kc, logger))
	}
	if cfg.Polymarket.Enabled {
		pc := polymarket.NewClient(cfg.Polymarket.GammaHost, cfg.Polymarket.ClobHost)
		deps.Adapters = append(deps.Adapters, polymarket.NewAdapter(pc, logger))
	}

	// --- Text embedding index ---
	var embedder index.Embedder
	switch cfg.Index.Embedder {
	case "http":
		embedder = index.NewHTTPEmbedder(cfg.Index.Endpoint, cfg.Index.Dim)
	default:
		embedder = index.NewHashingEmbedder(cfg.Index.Dim)
	}
	deps.Index = index.New(embedder, deps.VectorCache, logger)
	if err := deps.Index.Load(ctx); err != nil {
		logger.Warn("wire: loading cached vectors failed, index starts empty",
			slog.String("error", err.Error()),
		)
	}

	// --- Structural features and correlation engine ---
	deps.Extractor = feature.NewExtractor(deps.SnapshotStore, cfg.Correlate.SeriesLookback.Duration, logger)

	engine, err := correlate.NewEngine(
		deps.MarketStore,
		deps.EdgeStore,
		deps.Index,
		deps.Extractor,
		correlate.Weights{
			Text:                     cfg.Correlate.TextWeight,
			Structural:               cfg.Correlate.StructuralWeight,
			MissingStructuralPenalty: cfg.Correlate.MissingStructuralPenalty,
			Threshold:                cfg.Correlate.Threshold,
		},
		logger,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: correlation engine: %w", err)
	}
	deps.Engine = engine

	deps.Broker = broker.New(
		deps.Adapters,
		deps.MarketStore,
		deps.SnapshotStore,
		deps.EdgeStore,
		deps.Engine,
		deps.Index,
		deps.QuoteCache,
		deps.LockManager,
		deps.SignalBus,
		logger,
	)

	// --- S3 dataset export ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Exporter = s3blob.NewExporter(
			s3blob.NewWriter(s3Client),
			deps.MarketStore,
			deps.EdgeStore,
			cfg.S3.ExportPrefix,
			logger,
		)
	}

	return deps, cleanup, nil
}
