package run

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"
)

func TestWithSignals_ServerClosedIsClean(t *testing.T) {
	r := New(zap.NewNop())
	var order []int
	r.OnShutdown(func(context.Context) error { order = append(order, 1); return nil })
	r.OnShutdown(func(context.Context) error { order = append(order, 2); return errors.New("ignored") })

	code := r.WithSignals(func(context.Context) error { return http.ErrServerClosed })
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected hooks in reverse order, got %v", order)
	}
}

func TestWithSignals_ErrorExitCode(t *testing.T) {
	r := New(zap.NewNop())
	code := r.WithSignals(func(context.Context) error { return errors.New("listen failed") })
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}
