// Package bootstrap opens the stores and transports selected by configuration.
package bootstrap

import (
	"context"
	"fmt"

	s3blob "backtest-lab/internal/blob/s3"
	"backtest-lab/internal/cache/redis"
	"backtest-lab/internal/config"
	"backtest-lab/internal/progress"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/csvfile"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
)

func noop() {}

// OpenBarStore returns the configured bar store and a func releasing it.
func OpenBarStore(ctx context.Context, cfg config.StorageConfig) (storage.PriceBarStore, func(), error) {
	switch cfg.BarBackend {
	case "memory":
		return memory.NewPriceBarStore(), noop, nil
	case "csv":
		return csvfile.NewBarStore(cfg.CSVDir), noop, nil
	case "clickhouse":
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.RunMigrations {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("open clickhouse bar store: %w", err)
		}
		return chstore.NewPriceBarStore(conn), func() { _ = conn.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown bar backend %q", cfg.BarBackend)
	}
}

// OpenResultStore returns the configured result archive and a func releasing it.
func OpenResultStore(ctx context.Context, cfg config.StorageConfig) (storage.ResultStore, func(), error) {
	switch cfg.ResultBackend {
	case "memory":
		return memory.NewResultStore(), noop, nil
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres result store: %w", err)
		}
		if cfg.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		return pgstore.NewResultStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown result backend %q", cfg.ResultBackend)
	}
}

// OpenProgressBus returns the configured progress bus and a func releasing it.
func OpenProgressBus(ctx context.Context, cfg config.ProgressConfig) (progress.Bus, func(), error) {
	switch cfg.Backend {
	case "memory":
		return progress.NewBroadcaster(), noop, nil
	case "redis":
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis progress bus: %w", err)
		}
		return redis.NewProgressBus(c, cfg.ChannelPrefix), func() { _ = c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown progress backend %q", cfg.Backend)
	}
}

// OpenArchiver returns the S3 archiver, or nil when archiving is disabled.
func OpenArchiver(ctx context.Context, cfg config.ArchiveConfig) (*s3blob.Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	c, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.Endpoint,
		Region:         cfg.Region,
		Bucket:         cfg.Bucket,
		AccessKey:      cfg.AccessKey,
		SecretKey:      cfg.SecretKey,
		UseSSL:         cfg.UseSSL,
		ForcePathStyle: cfg.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Health(ctx); err != nil {
		return nil, err
	}
	return s3blob.NewArchiver(c, cfg.Prefix), nil
}
