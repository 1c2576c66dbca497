package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pingTimeout bounds each connection attempt.
const pingTimeout = 5 * time.Second

// PoolConfig controls how Open builds and verifies the pool.
type PoolConfig struct {
	DSN        string
	MaxConns   int32
	Retries    int
	RetryDelay time.Duration
}

// Open builds a pgx pool for cfg.DSN and pings it, retrying up to cfg.Retries times with
// cfg.RetryDelay between attempts. Caller must Close the pool when done.
func Open(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("db: DATABASE_URL is not set")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	attempts := cfg.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := connect(ctx, pcfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		slog.Warn("db.connect.retry", "attempt", attempt, "of", attempts, "err", err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("db: connect after %d attempts: %w", attempts, lastErr)
}

func connect(ctx context.Context, pcfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
