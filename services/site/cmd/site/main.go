package main

import (
	"context"
	"net"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/streamsite/internal/platform/auth"
	"github.com/example/streamsite/internal/platform/config"
	"github.com/example/streamsite/internal/platform/events"
	"github.com/example/streamsite/internal/platform/httpserver"
	"github.com/example/streamsite/internal/platform/logging"
	"github.com/example/streamsite/internal/platform/natsconn"
	"github.com/example/streamsite/internal/platform/run"
	"github.com/example/streamsite/services/site/internal/accounts"
	siteconfig "github.com/example/streamsite/services/site/internal/config"
	"github.com/example/streamsite/services/site/internal/handlers"
	"github.com/example/streamsite/services/site/internal/metrics"
	"github.com/example/streamsite/services/site/internal/revival"
	"github.com/example/streamsite/services/site/internal/thread"
	"github.com/example/streamsite/services/site/internal/tmdb"
	"github.com/example/streamsite/services/site/internal/userstate"
	"github.com/example/streamsite/services/site/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, zap.String("service", cfg.ServiceName))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	site, err := siteconfig.LoadSite()
	if err != nil {
		log.Error("site config", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	runner := run.New(log)

	st := initStore(log, cfg, site)
	runner.OnShutdown(func(context.Context) error { return st.Close() })

	m := metrics.New()

	cache := initCache(log, site)
	if c, ok := cache.(*revival.RedisCache); ok {
		runner.OnShutdown(func(context.Context) error { return c.Close() })
	}

	pub, js := initEvents(log, site, runner)

	catalog := tmdb.New(tmdb.Options{
		BaseURL:  site.TMDB.BaseURL,
		APIKey:   site.TMDB.APIKey,
		Language: site.TMDB.Language,
		RPS:      site.TMDB.RPS,
	})
	if site.TMDB.APIKey == "" {
		log.Warn("TMDB_API_KEY not set, metadata revival will fail until configured")
	}

	users := userstate.NewReconciler(st, log)
	coord := revival.NewCoordinator(catalog, users, revival.Options{
		Cache:       cache,
		Concurrency: site.RevivalConcurrency,
		Logger:      log,
		Metrics:     m,
	})

	svc := handlers.Services{
		Threads:  thread.NewService(st, st, log, thread.WithEvents(pub)),
		Users:    users,
		Revival:  coord,
		Accounts: &accounts.Service{Users: st, Issuer: auth.Issuer{Secret: site.JWTSecret, TTL: site.TokenTTL}},
	}
	env := handlers.Env{Log: log, Metrics: m, Events: pub}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return st.Ping(ctx)
		},
		Metrics: m.Handler(),
		Logger:  log,
	})
	handlers.Mount(r, svc, auth.JWTVerifier{Secret: site.JWTSecret}, env)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Logger: log, Handler: r})

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, hs)
	reflection.Register(grpcSrv)
	go func() {
		log.Info("grpc server starting", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	runner.OnShutdown(func(ctx context.Context) error {
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			grpcSrv.Stop()
		}
		return srv.Shutdown(ctx)
	})

	code := runner.WithSignals(func(ctx context.Context) error {
		if js != nil {
			if err := worker.StartRevivalConsumer(ctx, js, coord, log); err != nil {
				log.Error("revival consumer not started", zap.Error(err))
			}
		}
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initEvents connects to NATS when NATS_URL is set. Events are optional:
// without them the site still works and revival happens on profile render.
func initEvents(log *zap.Logger, site siteconfig.SiteConfig, runner *run.Runner) (*events.Publisher, natsJS) {
	if site.NATSURL == "" {
		log.Info("NATS_URL not set, events disabled")
		return nil, nil
	}
	conn, err := natsconn.ConnectJetStream(natsconn.Options{URL: site.NATSURL, Name: "site", Logger: log})
	if err != nil {
		log.Warn("nats unavailable, events disabled", zap.Error(err))
		return nil, nil
	}
	runner.OnShutdown(func(context.Context) error { return conn.Close() })

	if err := events.EnsureStream(conn.JS); err != nil {
		log.Warn("ensure stream failed, events disabled", zap.Error(err))
		return nil, nil
	}
	log.Info("events: nats jetstream", zap.String("stream", events.StreamName))
	return events.New(conn.JS, log), conn.JS
}
