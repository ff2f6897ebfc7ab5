package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "GTFS_SOURCE", "DATABASE_URL", "PG_DSN", "CITY", "CITY_NAME",
	"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE",
	"TABLES_REFRESH_INTERVAL_SEC", "HTTP_ADDR", "METRICS_ADDR",
	"NATS_URL", "NATS_QUERY_SUBJECT", "NATS_RESULT_PREFIX",
	"LOG_LEVEL", "LOG_DEVELOPMENT",
}

// clearEnv unsets every key Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Source)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "arrivals.query", cfg.NATSQuerySubject)
	assert.Equal(t, "arrivals.results", cfg.NATSResultPrefix)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogDevelopment)
	assert.Zero(t, cfg.RefreshInterval())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GTFS_SOURCE", "/data/feed.zip")
	t.Setenv("TABLES_REFRESH_INTERVAL_SEC", "300")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("METRICS_ADDR", ":9102")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("NATS_RESULT_PREFIX", "")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_DEVELOPMENT", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/feed.zip", cfg.Source)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval())
	assert.Empty(t, cfg.HTTPAddr, "an empty HTTP_ADDR disables the API")
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Empty(t, cfg.NATSResultPrefix)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoadDatabaseSource(t *testing.T) {
	t.Run("database url becomes the source", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "postgres://u@db:5432/gtfs")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u@db:5432/gtfs", cfg.Source)
	})

	t.Run("city builds a dsn against the postgres database", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CITY_NAME", "madrid")
		t.Setenv("PGHOST", "db")
		t.Setenv("PGUSER", "gtfs")
		t.Setenv("PGPASSWORD", "p@ss")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "madrid", cfg.City)
		assert.Equal(t, "postgres://gtfs:p%40ss@db:5432/postgres?sslmode=disable", cfg.DatabaseURL)
		assert.Equal(t, cfg.DatabaseURL, cfg.Source)
	})

	t.Run("explicit source wins over the database", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "postgres://u@db:5432/gtfs")
		t.Setenv("GTFS_SOURCE", "sqlite:gtfs.db")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "sqlite:gtfs.db", cfg.Source)
	})
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
gtfs_source: ./feeds/brisbane
tables_refresh_interval_sec: 60
http_addr: 127.0.0.1:9000
log_level: warn
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./feeds/brisbane", cfg.Source)
	assert.Equal(t, time.Minute, cfg.RefreshInterval())
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "error", cfg.LogLevel, "environment overrides the file")
	assert.Equal(t, "arrivals.query", cfg.NATSQuerySubject, "defaults survive the file")
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"negative refresh", map[string]string{"TABLES_REFRESH_INTERVAL_SEC": "-1"}, "TABLES_REFRESH_INTERVAL_SEC"},
		{"non numeric refresh", map[string]string{"TABLES_REFRESH_INTERVAL_SEC": "soon"}, "TABLES_REFRESH_INTERVAL_SEC"},
		{"unknown log level", map[string]string{"LOG_LEVEL": "verbose"}, "LogLevel"},
		{"bad listen address", map[string]string{"HTTP_ADDR": "localhost"}, "HTTPAddr"},
		{"missing config file", map[string]string{"CONFIG_FILE": "/nonexistent/config.yml"}, "read config file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadNATSWithoutSubject(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("nats_query_subject: \"\"\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("NATS_URL", "nats://localhost:4222")

	_, err := Load()
	assert.ErrorContains(t, err, "NATSQuerySubject")
}
