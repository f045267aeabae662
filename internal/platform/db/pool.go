package db

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PoolConfig describes how to open the record store connection pool.
type PoolConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnectAttempts uint
	RetryDelay      time.Duration
}

// NewPool opens a pgx pool and pings it, retrying while the database is not
// yet accepting connections.
func NewPool(ctx context.Context, pc PoolConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = pc.MaxConns
	cfg.MinConns = pc.MinConns

	attempts := pc.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	delay := pc.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var pool *pgxpool.Pool
	err = retry.Do(
		func() error {
			p, err := pgxpool.NewWithConfig(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create connection pool: %w", err)
			}
			if err := p.Ping(ctx); err != nil {
				p.Close()
				return fmt.Errorf("ping database: %w", err)
			}
			pool = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Err(err).Uint("attempt", n+1).Msg("database not ready, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
