package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eternalflame/pkg/sqlgateway"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "DB_BACKEND", "DATABASE_URL", "SQLITE_PATH", "JWT_SECRET",
		"JWT_EXPIRE_HOURS", "PORT", "LOG_LEVEL", "LOG_FORMAT", "TIMEZONE", "SCHEDULE_COUNT",
		"TRANSLATE_URL", "ADMIN_USERNAME", "ADMIN_PASSWORD", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.Equal(t, sqlgateway.BackendSQLite, cfg.DBBackend)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 6, cfg.ScheduleCount)
	assert.Empty(t, cfg.TranslateURL)

	db := cfg.Database()
	assert.Equal(t, "data/dev.db", db.DSN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_BACKEND", "postgresql")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/flame")
	t.Setenv("JWT_EXPIRE_HOURS", "2")
	t.Setenv("TIMEZONE", "Asia/Shanghai")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TRANSLATE_URL", "http://translate:5000/")
	t.Setenv("TRANSLATE_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, sqlgateway.BackendPostgres, cfg.DBBackend)
	assert.Equal(t, "postgres://u:p@db/flame", cfg.Database().DSN)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "Asia/Shanghai", cfg.Location.String())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "http://translate:5000", cfg.TranslateURL)
	assert.Equal(t, 750*time.Millisecond, cfg.TranslateTimeout)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"DB_BACKEND": "oracle"}},
		{"postgres without url", map[string]string{"DB_BACKEND": "postgres", "DATABASE_URL": ""}},
		{"default secret in production", map[string]string{"APP_ENV": "production", "JWT_SECRET": ""}},
		{"bad ttl", map[string]string{"JWT_EXPIRE_HOURS": "0"}},
		{"bad port", map[string]string{"PORT": "http"}},
		{"bad duration", map[string]string{"SHUTDOWN_TIMEOUT": "soon"}},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad format", map[string]string{"LOG_FORMAT": "xml"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad count", map[string]string{"SCHEDULE_COUNT": "0"}},
		{"half admin", map[string]string{"ADMIN_USERNAME": "root", "ADMIN_PASSWORD": ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogLevel: zerolog.WarnLevel, LogFormat: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"service":"eternalflame"`)
}
