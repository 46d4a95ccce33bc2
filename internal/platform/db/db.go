// Package db opens the Postgres pool used by the postgres record store.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/streamsite/internal/platform/logging"
)

type Options struct {
	MaxConns int32 // default 10
	// Attempts is how many times the first ping is tried before giving up.
	// Default 3; a database container may still be starting.
	Attempts int
	Backoff  time.Duration // default 1s, doubled per attempt
	Logger   *zap.Logger
}

// Open parses dsn, builds a pool and pings it, retrying the ping with
// backoff. Configuration errors are returned without retrying.
func Open(ctx context.Context, dsn string, opts Options) (*pgxpool.Pool, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 10
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	log := logging.OrNop(opts.Logger)

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	wait := opts.Backoff
	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			return pool, nil
		}
		if attempt >= opts.Attempts {
			break
		}
		log.Warn("postgres ping failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	pool.Close()
	return nil, fmt.Errorf("postgres ping after %d attempts: %w", opts.Attempts, err)
}
