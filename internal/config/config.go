// Package config loads process configuration from the environment once at
// startup. The resulting Config is treated as immutable.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eternalflame/pkg/sqlgateway"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "change-me-in-production"
)

// Config holds every tunable of the service.
type Config struct {
	AppEnv string

	// Database
	DBBackend   string
	DatabaseURL string
	SQLitePath  string

	// Credentials
	JWTSecret string
	JWTTTL    time.Duration

	// Server
	Port             int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration

	// Logging
	LogLevel  zerolog.Level
	LogFormat string

	// Scheduling
	Location      *time.Location
	ScheduleCount int

	// Translator
	TranslateURL       string
	TranslateAPIKey    string
	TranslateTimeout   time.Duration
	TranslateCacheSize int

	// Auth rate limiting; zero rate disables it.
	AuthRatePerMinute int
	AuthRateBurst     int

	// Tracing; empty endpoint disables export.
	OTLPEndpoint string

	// Bootstrap admin; both empty skips seeding.
	AdminUsername string
	AdminPassword string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.AppEnv = strings.ToLower(getEnvDefault("APP_ENV", EnvDevelopment))

	// DB_BACKEND: sqlite (default), postgres or mysql
	dialect, err := sqlgateway.DialectFor(getEnvDefault("DB_BACKEND", sqlgateway.BackendSQLite))
	if err != nil {
		return nil, fmt.Errorf("DB_BACKEND: %w", err)
	}
	cfg.DBBackend = dialect.Name()
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SQLitePath = getEnvDefault("SQLITE_PATH", "data/dev.db")
	if cfg.DBBackend != sqlgateway.BackendSQLite && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL: required for backend %q", cfg.DBBackend)
	}

	cfg.JWTSecret = getEnvDefault("JWT_SECRET", devJWTSecret)
	if cfg.Production() && cfg.JWTSecret == devJWTSecret {
		return nil, errors.New("JWT_SECRET: must be set in production")
	}
	hours, err := getEnvInt("JWT_EXPIRE_HOURS", 168)
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRE_HOURS: %w", err)
	}
	if hours <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRE_HOURS: must be > 0, got %d", hours)
	}
	cfg.JWTTTL = time.Duration(hours) * time.Hour

	cfg.Port, err = getEnvInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT: out of range: %d", cfg.Port)
	}
	if cfg.HTTPReadTimeout, err = getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, fmt.Errorf("HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(getEnvDefault("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("LOG_FORMAT: invalid format %q, want json or console", cfg.LogFormat)
	}

	// TIMEZONE decides which calendar day counts as "today".
	cfg.Location, err = time.LoadLocation(getEnvDefault("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.ScheduleCount, err = getEnvInt("SCHEDULE_COUNT", 6)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_COUNT: %w", err)
	}
	if cfg.ScheduleCount < 1 {
		return nil, fmt.Errorf("SCHEDULE_COUNT: must be >= 1, got %d", cfg.ScheduleCount)
	}

	cfg.TranslateURL = strings.TrimRight(os.Getenv("TRANSLATE_URL"), "/")
	cfg.TranslateAPIKey = os.Getenv("TRANSLATE_API_KEY")
	if cfg.TranslateTimeout, err = getEnvDuration("TRANSLATE_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("TRANSLATE_TIMEOUT: %w", err)
	}
	if cfg.TranslateCacheSize, err = getEnvInt("TRANSLATE_CACHE_SIZE", 512); err != nil {
		return nil, fmt.Errorf("TRANSLATE_CACHE_SIZE: %w", err)
	}

	if cfg.AuthRatePerMinute, err = getEnvInt("AUTH_RATE_PER_MINUTE", 30); err != nil {
		return nil, fmt.Errorf("AUTH_RATE_PER_MINUTE: %w", err)
	}
	if cfg.AuthRateBurst, err = getEnvInt("AUTH_RATE_BURST", 10); err != nil {
		return nil, fmt.Errorf("AUTH_RATE_BURST: %w", err)
	}

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		return nil, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

func (c *Config) Production() bool { return c.AppEnv == EnvProduction }

// Database returns the gateway configuration for the selected backend.
func (c *Config) Database() sqlgateway.Config {
	dsn := c.DatabaseURL
	if c.DBBackend == sqlgateway.BackendSQLite {
		dsn = c.SQLitePath
	}
	return sqlgateway.Config{Backend: c.DBBackend, DSN: dsn}
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// SetupLogger builds the process logger.
func SetupLogger(cfg *Config) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *Config, out io.Writer) zerolog.Logger {
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", "eternalflame").
		Str("version", Version).
		Logger()
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q (use Go syntax: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be > 0, got %s", d)
	}
	return d, nil
}
