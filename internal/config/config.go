package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env              string
	ListenAddr       string
	DatabaseURL      string
	RedisURL         string
	QuotaBackend     string
	ReconcileWorkers int
	AutoMigrate      bool
	LogLevel         string
	LogFormat        string
	DefaultTier      string
	TiersFile        string
	Tiers            Tiers
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads .env (when present) and the process environment. A missing
// DATABASE_URL is reported as an error value but cfg is still usable, so
// callers can decide whether to fall back to the in-memory store.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Env:              getenv("APP_ENV", "development"),
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		QuotaBackend:     strings.ToLower(getenv("QUOTA_BACKEND", "postgres")),
		ReconcileWorkers: getenvInt("RECONCILE_WORKERS", 0),
		AutoMigrate:      getenvBool("AUTO_MIGRATE", false),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "text"),
		DefaultTier:      getenv("DEFAULT_PLAN_TIER", "free"),
		TiersFile:        os.Getenv("PLAN_TIERS_FILE"),
	}

	tiers := DefaultTiers()
	if cfg.TiersFile != "" {
		loaded, err := LoadTiers(cfg.TiersFile)
		if err != nil {
			return cfg, err
		}
		tiers = loaded
	}
	cfg.Tiers = tiers
	if _, ok := cfg.Tiers[cfg.DefaultTier]; !ok {
		return cfg, fmt.Errorf("DEFAULT_PLAN_TIER %q is not a known tier", cfg.DefaultTier)
	}

	switch cfg.QuotaBackend {
	case "postgres", "redis", "memory":
	default:
		return cfg, fmt.Errorf("QUOTA_BACKEND %q must be postgres, redis or memory", cfg.QuotaBackend)
	}
	if cfg.QuotaBackend == "redis" && cfg.RedisURL == "" {
		return cfg, fmt.Errorf("QUOTA_BACKEND=redis requires REDIS_URL")
	}

	if cfg.DatabaseURL == "" {
		return cfg, ErrNoDatabase
	}
	return cfg, nil
}

// ErrNoDatabase is returned by Load when DATABASE_URL is unset.
var ErrNoDatabase = errors.New("DATABASE_URL not set")

func (c Config) Development() bool { return c.Env == "development" }

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
