// Package database подключает PostgreSQL для журнала запусков.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolOptions - параметры пула и попыток подключения при старте.
type PoolOptions struct {
	MaxConns    int
	IdleTimeout time.Duration
	Retries     int
	RetryDelay  time.Duration
}

// Connect создает пул и ждет, пока база ответит на ping.
func Connect(ctx context.Context, dsn string, opts PoolOptions, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = opts.IdleTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err == nil {
			err = pool.Ping(connectCtx)
			if err != nil {
				pool.Close()
			}
		}
		cancel()
		if err == nil {
			logger.Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}

		lastErr = err
		logger.Warn("PostgreSQL connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", opts.Retries),
			zap.Error(err),
		)
		if attempt < opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", opts.Retries, lastErr)
}
