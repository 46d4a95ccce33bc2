package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	r := chi.NewRouter()
	SetupRouter(r)
	srv := New(Options{Handler: r})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected healthz response %d %q", resp.StatusCode, body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("expected nil after graceful shutdown, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	srv := New(Options{Addr: ":0"})
	if srv.HTTP.WriteTimeout != 30*time.Second {
		t.Fatalf("expected default write timeout, got %s", srv.HTTP.WriteTimeout)
	}
	if srv.HTTP.Handler == nil || srv.HTTP.ErrorLog == nil {
		t.Fatal("expected handler and error log to be set")
	}
}
