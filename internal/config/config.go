package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrMissingSalt      = errors.New("MILESTONE_SALT is required")
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required")
)

type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	LogMode     string   `env:"LOG_MODE" envDefault:"dev"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	MilestoneSalt string `env:"MILESTONE_SALT"`
	JWTSecret     string `env:"JWT_SECRET"`

	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"milestones"`
	SQLitePath   string `env:"SQLITE_PATH"`

	SyncURL    string `env:"SYNC_URL"`
	SyncAPIKey string `env:"SYNC_API_KEY"`

	ToastDisplayMs int `env:"TOAST_DISPLAY_MS" envDefault:"3000"`
	ToastFadeMs    int `env:"TOAST_FADE_MS" envDefault:"800"`

	// SessionIdle bounds how long per-visitor memory outlives its last request.
	SessionIdle time.Duration `env:"SESSION_IDLE" envDefault:"24h"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.MilestoneSalt = strings.TrimSpace(cfg.MilestoneSalt)
	if cfg.MilestoneSalt == "" {
		return Config{}, ErrMissingSalt
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, ErrMissingJWTSecret
	}
	return cfg, nil
}
