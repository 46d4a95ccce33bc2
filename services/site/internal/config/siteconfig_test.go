package config

import (
	"testing"
	"time"
)

func TestLoadSiteRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadSite(); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestLoadSiteDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("DATA_FILE", "")
	t.Setenv("REVIVAL_CONCURRENCY", "nope")
	t.Setenv("TOKEN_TTL", "")

	cfg, err := LoadSite()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend() != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Backend())
	}
	if cfg.RevivalConcurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.RevivalConcurrency)
	}
	if cfg.TokenTTL != 30*24*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.TokenTTL)
	}
}

func TestBackendInference(t *testing.T) {
	cases := []struct {
		cfg  SiteConfig
		want string
	}{
		{SiteConfig{DatabaseURL: "postgres://x", SQLitePath: "a.db"}, BackendPostgres},
		{SiteConfig{SQLitePath: "a.db", DataFile: "d.json"}, BackendSQLite},
		{SiteConfig{DataFile: "d.json"}, BackendJSONFile},
		{SiteConfig{StoreBackend: BackendMemory, DatabaseURL: "postgres://x"}, BackendMemory},
	}
	for _, c := range cases {
		if got := c.cfg.Backend(); got != c.want {
			t.Fatalf("Backend() = %q, want %q", got, c.want)
		}
	}
}

func TestLoadSiteRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_BACKEND", "mongo")
	if _, err := LoadSite(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
