// Package config loads process configuration from the environment and
// per-merchant profiles from YAML.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/archive"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/observability"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// Config holds server configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TemplateTTL   time.Duration

	KafkaBrokers     []string
	KafkaTopic       string
	AlertMinSeverity string

	ProfilesDir string
	CORSOrigins []string

	Archive   archive.Config
	Telemetry observability.Config
}

// Load loads configuration from environment variables.
func Load() *Config {
	telemetry := *observability.DefaultConfig()
	telemetry.Enabled = os.Getenv("OTEL_ENABLED") == "true"
	telemetry.Insecure = os.Getenv("OTEL_INSECURE") == "true"
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		telemetry.Environment = v
	}

	cfg := &Config{
		Port:             env("PORT", "8080"),
		LogLevel:         env("LOG_LEVEL", "INFO"),
		LogFormat:        env("LOG_FORMAT", "text"),
		StoreDriver:      env("STORE_DRIVER", DriverMemory),
		DatabaseURL:      env("DATABASE_URL", "postgres://profitpulse@localhost:5432/profitpulse?sslmode=disable"),
		SQLitePath:       env("SQLITE_PATH", "data/profitpulse.db"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          envInt("REDIS_DB", 0),
		TemplateTTL:      envDuration("TEMPLATE_CACHE_TTL", 10*time.Minute),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       env("KAFKA_TOPIC", "profitpulse.flags"),
		AlertMinSeverity: env("ALERT_MIN_SEVERITY", "warning"),
		ProfilesDir:      env("PROFILES_DIR", "profiles"),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Archive:          archive.ConfigFromEnv(),
		Telemetry:        telemetry,
	}
	return cfg
}

// SlogLevel maps LogLevel to a slog level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
