// Package config resolves runtime settings from flags, the environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the service reads at startup.
type Config struct {
	Addr            string
	DatabaseURL     string
	DBPath          string
	StaticDir       string
	ClientURL       string
	RateLimit       int
	RateBurst       int
	LogLevel        slog.Level
	LogFormat       string
	ShutdownTimeout time.Duration
}

// DSN returns the database location handed to the store. DATABASE_URL wins over the SQLite path.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Load reads the .env file named by TASKBOARD_ENV_FILE (default ".env") when
// present, then parses args with environment-derived defaults.
func Load(name string, args []string) (Config, error) {
	envFile := EnvOrDefault("TASKBOARD_ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var errs []error
	intEnv := func(key string, fallback int) int {
		v, err := envInt(key, fallback)
		errs = append(errs, err)
		return v
	}
	durEnv := func(key string, fallback time.Duration) time.Duration {
		v, err := envDuration(key, fallback)
		errs = append(errs, err)
		return v
	}

	var (
		cfg   Config
		level string
	)
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	flagSet.StringVar(&cfg.Addr, "addr", EnvOrDefault("TASKBOARD_ADDR", ":3001"), "HTTP listen address")
	flagSet.StringVar(&cfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL; overrides -db when set")
	flagSet.StringVar(&cfg.DBPath, "db", EnvOrDefault("TASKBOARD_DB_PATH", "data/taskboard.db"), "Path to sqlite database file")
	flagSet.StringVar(&cfg.StaticDir, "static", EnvOrDefault("TASKBOARD_STATIC_DIR", "web/dist"), "Directory with built frontend")
	flagSet.StringVar(&cfg.ClientURL, "client-url", EnvOrDefault("CLIENT_URL", "http://localhost:3000"), "Allowed CORS origin")
	flagSet.IntVar(&cfg.RateLimit, "rate-limit", intEnv("TASKBOARD_RATE_LIMIT", 600), "Requests per minute per client ip; 0 disables")
	flagSet.IntVar(&cfg.RateBurst, "rate-burst", intEnv("TASKBOARD_RATE_BURST", 50), "Rate limiter burst size")
	flagSet.StringVar(&level, "log-level", EnvOrDefault("TASKBOARD_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flagSet.StringVar(&cfg.LogFormat, "log-format", EnvOrDefault("TASKBOARD_LOG_FORMAT", "text"), "Log format: text or json")
	flagSet.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", durEnv("TASKBOARD_SHUTDOWN_TIMEOUT", 5*time.Second), "Graceful shutdown timeout")

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := flagSet.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.ClientURL != "" && c.ClientURL != "*" &&
		!strings.HasPrefix(c.ClientURL, "http://") && !strings.HasPrefix(c.ClientURL, "https://") {
		return fmt.Errorf("invalid client url %q: must start with http:// or https://", c.ClientURL)
	}
	if c.DSN() == "" {
		return fmt.Errorf("either DATABASE_URL or a sqlite path is required")
	}
	return nil
}

// NewLogger builds the process logger described by the config.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EnvOrDefault returns the environment variable value or fallback when it is empty.
func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return v, nil
}
