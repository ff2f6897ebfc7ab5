package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Source is a feed directory, a .zip path or URL, or a database DSN
	// (postgres://, postgresql:// or sqlite:).
	Source             string `yaml:"gtfs_source" validate:"required"`
	DatabaseURL        string `yaml:"database_url"`
	City               string `yaml:"city"`
	RefreshIntervalSec int    `yaml:"tables_refresh_interval_sec" validate:"gte=0"`
	HTTPAddr           string `yaml:"http_addr" validate:"omitempty,hostname_port"`
	MetricsAddr        string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	NATSURL            string `yaml:"nats_url" validate:"omitempty,url"`
	NATSQuerySubject   string `yaml:"nats_query_subject" validate:"required_with=NATSURL"`
	NATSResultPrefix   string `yaml:"nats_result_prefix"`
	LogLevel           string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogDevelopment     bool   `yaml:"log_development"`
}

// RefreshInterval is the period between table reloads; zero disables them.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

func defaults() *Config {
	return &Config{
		HTTPAddr:         ":8080",
		NATSQuerySubject: "arrivals.query",
		NATSResultPrefix: "arrivals.results",
		LogLevel:         "info",
	}
}

// Load builds the configuration from an optional YAML file named by
// CONFIG_FILE, then the environment (and .env), which takes precedence.
func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		cfg.DatabaseURL = dsn
	}
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"), cfg.City)
	if cfg.DatabaseURL == "" && (os.Getenv("PGDATABASE") != "" || os.Getenv("PGHOST") != "" || cfg.City != "") {
		cfg.DatabaseURL = dsnFromPGEnv(cfg.City != "")
	}

	cfg.Source = firstNonEmpty(os.Getenv("GTFS_SOURCE"), cfg.Source, cfg.DatabaseURL, ".")

	if v := os.Getenv("TABLES_REFRESH_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid TABLES_REFRESH_INTERVAL_SEC: %q", v)
		}
		cfg.RefreshIntervalSec = sec
	}

	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	cfg.NATSURL = getenvDefault("NATS_URL", cfg.NATSURL)
	cfg.NATSQuerySubject = getenvDefault("NATS_QUERY_SUBJECT", cfg.NATSQuerySubject)
	if v, ok := os.LookupEnv("NATS_RESULT_PREFIX"); ok {
		cfg.NATSResultPrefix = v
	}

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", cfg.LogLevel))
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		cfg.LogDevelopment = parseBool(v)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// dsnFromPGEnv composes a DSN from the libpq PG* variables. With a city
// set, the base database defaults to 'postgres' where the import bookkeeping
// lives.
func dsnFromPGEnv(withCity bool) string {
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" && withCity {
		db = "postgres"
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
