package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/price-service/internal/config"
	"github.com/utafrali/price-service/internal/repository"
	"github.com/utafrali/price-service/internal/repository/memory"
	"github.com/utafrali/price-service/internal/repository/postgres"
	"github.com/utafrali/price-service/internal/repository/redis"
	"github.com/utafrali/price-service/migrations"
	"github.com/utafrali/price-service/pkg/database"
)

// Store is an opened price store and the connections behind it.
type Store struct {
	Repository repository.PriceRepository

	pool   *pgxpool.Pool
	client *goredis.Client
}

// Pool returns the PostgreSQL pool, or nil for other backends.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Redis returns the Redis client, or nil for other backends.
func (s *Store) Redis() *goredis.Client { return s.client }

// Close releases the store connections.
func (s *Store) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// OpenStore connects the backend named by cfg.PriceStore. For PostgreSQL it
// applies pending migrations when enabled and registers pool metrics on reg
// when reg is non-nil.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Store, error) {
	switch cfg.PriceStore {
	case config.StorePostgres:
		return openPostgres(ctx, cfg, logger, reg)

	case config.StoreRedis:
		client, err := database.NewRedisClient(ctx, cfg.RedisConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisConfig().Addr()))
		return &Store{Repository: redis.NewPriceRepository(client), client: client}, nil

	case config.StoreMemory:
		if cfg.MemoryCatalogPath == "" {
			logger.Warn("MEMORY_CATALOG_PATH not set, serving the sample catalog")
			repo, err := memory.NewPriceRepository(memory.SampleCatalog())
			if err != nil {
				return nil, err
			}
			return &Store{Repository: repo}, nil
		}
		repo, err := memory.LoadFile(cfg.MemoryCatalogPath)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded price catalog",
			slog.String("path", cfg.MemoryCatalogPath),
			slog.Int("prices", repo.Len()),
		)
		return &Store{Repository: repo}, nil
	}
	return nil, fmt.Errorf("unsupported price store %q", cfg.PriceStore)
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Store, error) {
	pgCfg := cfg.PostgresConfig()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if reg != nil {
		if err := database.RegisterPoolMetrics(reg, pool, config.ServiceName); err != nil {
			pool.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
	}
	return &Store{Repository: postgres.NewPriceRepository(pool), pool: pool}, nil
}
