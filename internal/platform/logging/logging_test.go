package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Level(t *testing.T) {
	log, err := New("DEBUG")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug enabled")
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New("loud", zap.String("service", "site"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug disabled")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info enabled")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestRequestIDField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	ctx := WithRequestID(context.Background(), "rid-7")
	if got := RequestIDFromContext(ctx); got != "rid-7" {
		t.Fatalf("expected rid-7, got %q", got)
	}
	log.Info("hello", RequestIDField(ctx))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if v := entries[0].ContextMap()["request_id"]; v != "rid-7" {
		t.Fatalf("expected request_id field, got %v", v)
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty id on bare context")
	}
}
