package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendJSONFile = "jsonfile"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type SiteConfig struct {
	JWTSecret []byte
	TokenTTL  time.Duration

	// StoreBackend is empty when it should be inferred from the other settings.
	StoreBackend string
	DatabaseURL  string
	DataFile     string
	SQLitePath   string

	TMDB TMDBConfig

	RedisURL           string
	NATSURL            string
	RevivalConcurrency int
}

type TMDBConfig struct {
	APIKey   string
	BaseURL  string
	Language string
	RPS      float64
}

func LoadSite() (SiteConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return SiteConfig{}, errors.New("JWT_SECRET is required")
	}
	cfg := SiteConfig{
		JWTSecret:    []byte(secret),
		TokenTTL:     parseDurationWithDefault(os.Getenv("TOKEN_TTL"), 30*24*time.Hour),
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND")),
		DatabaseURL:  getenv("DATABASE_URL"),
		DataFile:     getenv("DATA_FILE"),
		SQLitePath:   getenv("SQLITE_PATH"),
		TMDB: TMDBConfig{
			APIKey:   getenv("TMDB_API_KEY"),
			BaseURL:  getenv("TMDB_BASE_URL"),
			Language: getenv("TMDB_LANGUAGE"),
			RPS:      parseFloatWithDefault(os.Getenv("TMDB_RPS"), 0),
		},
		RedisURL:           getenv("REDIS_URL"),
		NATSURL:            getenv("NATS_URL"),
		RevivalConcurrency: parseIntWithDefault(os.Getenv("REVIVAL_CONCURRENCY"), 4),
	}
	switch cfg.StoreBackend {
	case "", BackendMemory, BackendJSONFile, BackendSQLite, BackendPostgres:
	default:
		return SiteConfig{}, fmt.Errorf("STORE_BACKEND %q is not one of memory, jsonfile, sqlite, postgres", cfg.StoreBackend)
	}
	return cfg, nil
}

// Backend resolves the store backend: STORE_BACKEND if set, else postgres
// when DATABASE_URL is set, sqlite when SQLITE_PATH is set, jsonfile when
// DATA_FILE is set, memory otherwise.
func (c SiteConfig) Backend() string {
	switch {
	case c.StoreBackend != "":
		return c.StoreBackend
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.SQLitePath != "":
		return BackendSQLite
	case c.DataFile != "":
		return BackendJSONFile
	default:
		return BackendMemory
	}
}

func getenv(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}

func parseDurationWithDefault(v string, def time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseIntWithDefault(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseFloatWithDefault(v string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
