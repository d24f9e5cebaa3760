// Package config loads server settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devSecret = "dstlead-dev-secret"

type Config struct {
	Addr string `env:"DSTLEAD_ADDR" envDefault:":8080"`

	JWTSecret string        `env:"DSTLEAD_JWT_SECRET"`
	TokenTTL  time.Duration `env:"DSTLEAD_TOKEN_TTL" envDefault:"720h"`

	// SQLitePath selects the SQLite store; empty means the memory store.
	SQLitePath    string `env:"DSTLEAD_SQLITE_PATH"`
	SnapshotPath  string `env:"DSTLEAD_SNAPSHOT_PATH"`
	MigrationsDir string `env:"DSTLEAD_MIGRATIONS_DIR"`

	SchedulePath   string        `env:"DSTLEAD_SCHEDULE_PATH"`
	SessionTTL     time.Duration `env:"DSTLEAD_SESSION_TTL" envDefault:"1h"`
	SweepInterval  time.Duration `env:"DSTLEAD_SESSION_SWEEP" envDefault:"1m"`
	MinPasswordLen int           `env:"DSTLEAD_MIN_PASSWORD_LEN" envDefault:"8"`

	AdminEmail    string `env:"DSTLEAD_ADMIN_EMAIL"`
	AdminPassword string `env:"DSTLEAD_ADMIN_PASSWORD"`
	SeedFAQs      bool   `env:"DSTLEAD_SEED_FAQS" envDefault:"true"`

	StaticDir      string   `env:"DSTLEAD_STATIC_DIR"`
	DevFrontendURL string   `env:"DSTLEAD_DEV_FRONTEND_URL"`
	CORSOrigins    []string `env:"DSTLEAD_CORS_ORIGINS" envSeparator:","`

	LogLevel  string `env:"DSTLEAD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DSTLEAD_LOG_FORMAT" envDefault:"text"`

	Commit    string `env:"DSTLEAD_COMMIT"`
	BuildTime string `env:"DSTLEAD_BUILD_TIME"`
}

// Load reads .env (if any) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.TokenTTL <= 0 {
		return errors.New("DSTLEAD_TOKEN_TTL must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("DSTLEAD_SESSION_TTL must be positive")
	}
	if c.MinPasswordLen < 6 || c.MinPasswordLen > 72 {
		return fmt.Errorf("DSTLEAD_MIN_PASSWORD_LEN must be between 6 and 72, got %d", c.MinPasswordLen)
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("DSTLEAD_ADMIN_EMAIL and DSTLEAD_ADMIN_PASSWORD must be set together")
	}
	if c.AdminEmail != "" && c.JWTSecret == "" {
		return errors.New("DSTLEAD_JWT_SECRET is required when an admin account is seeded")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("DSTLEAD_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Secret returns the JWT signing key, falling back to a fixed development key.
// Validate refuses that fallback once an admin is configured.
func (c *Config) Secret() []byte {
	if c.JWTSecret == "" {
		slog.Warn("DSTLEAD_JWT_SECRET not set; using development secret")
		return []byte(devSecret)
	}
	return []byte(c.JWTSecret)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("DSTLEAD_LOG_LEVEL: %w", err)
	}
	return l, nil
}

// Logger builds the process logger described by LogLevel and LogFormat.
func (c *Config) Logger() *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
