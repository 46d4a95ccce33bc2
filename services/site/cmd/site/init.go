package main

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/streamsite/internal/platform/config"
	"github.com/example/streamsite/internal/platform/db"
	"github.com/example/streamsite/internal/platform/run"
	siteconfig "github.com/example/streamsite/services/site/internal/config"
	"github.com/example/streamsite/services/site/internal/revival"
	"github.com/example/streamsite/services/site/internal/store"
)

type natsJS = nats.JetStreamContext

// initStore selects the Store backend.
// In production (APP_ENV=production) the in-memory backend is refused and a
// backend that fails to open terminates the process instead of falling back.
func initStore(log *zap.Logger, cfg config.AppConfig, site siteconfig.SiteConfig) store.Store {
	backend := site.Backend()
	fail := func(msg string, err error) store.Store {
		if cfg.IsProduction() {
			log.Error(msg, zap.String("backend", backend), zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn(msg+", falling back to in-memory store", zap.String("backend", backend), zap.Error(err))
		return store.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch backend {
	case siteconfig.BackendPostgres:
		pool, err := db.Open(ctx, site.DatabaseURL, db.Options{Logger: log})
		if err != nil {
			return fail("postgres unavailable", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return fail("postgres schema setup failed", err)
		}
		log.Info("store: postgres")
		return pg
	case siteconfig.BackendSQLite:
		s, err := store.OpenSQLite(ctx, site.SQLitePath)
		if err != nil {
			return fail("sqlite unavailable", err)
		}
		log.Info("store: sqlite", zap.String("path", site.SQLitePath))
		return s
	case siteconfig.BackendJSONFile:
		s, err := store.OpenJSONFile(site.DataFile)
		if err != nil {
			return fail("data file unavailable", err)
		}
		log.Info("store: jsonfile", zap.String("path", site.DataFile))
		return s
	default:
		if cfg.IsProduction() {
			log.Error("a persistent store is required in production (set DATABASE_URL, SQLITE_PATH or DATA_FILE)")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("no store configured, using in-memory store (development only)")
		return store.NewMemoryStore()
	}
}

// initCache picks the revival memo: Redis when REDIS_URL is set and
// reachable, process memory otherwise.
func initCache(log *zap.Logger, site siteconfig.SiteConfig) revival.Cache {
	if site.RedisURL == "" {
		return revival.NewMemoryCache()
	}
	c, err := revival.NewRedisCache(site.RedisURL)
	if err != nil {
		log.Warn("invalid REDIS_URL, using in-memory revival cache", zap.Error(err))
		return revival.NewMemoryCache()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		log.Warn("redis unavailable, using in-memory revival cache", zap.Error(err))
		return revival.NewMemoryCache()
	}
	log.Info("revival cache: redis")
	return c
}
