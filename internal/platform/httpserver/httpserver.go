// Package httpserver holds the HTTP plumbing shared by every binary: the base
// chi middleware stack, health endpoints and a server with sane timeouts.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/streamsite/internal/platform/logging"
)

type Server struct {
	HTTP *http.Server
	log  *zap.Logger
}

type Options struct {
	Addr    string
	Logger  *zap.Logger
	Handler http.Handler
	// WriteTimeout bounds a whole response, including any catalog fetches a
	// profile render triggers. Defaults to 30s.
	WriteTimeout time.Duration
}

func New(opts Options) *Server {
	if opts.Handler == nil {
		opts.Handler = http.NotFoundHandler()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	log := logging.OrNop(opts.Logger)
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           opts.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(log.Named("http")),
	}
	return &Server{HTTP: srv, log: log}
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.HTTP.Addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve blocks serving lis. A graceful Shutdown is reported as nil.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("http server starting", zap.String("addr", lis.Addr().String()))
	if err := s.HTTP.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.HTTP.Shutdown(ctx)
}
