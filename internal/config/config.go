package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/clustermon/core/internal/database"
)

// Config holds all configuration for the monitord daemon.
type Config struct {
	Paths    PathsConfig
	Admin    AdminConfig
	Metrics  MetricsConfig
	Audit    *database.Config
	Snapshot SnapshotConfig
	JWT      JWTConfig
	Session  SessionConfig
}

// PathsConfig mirrors MaxScale's datadir/persistdir split: datadir holds
// the per-monitor journal files, persistdir holds the generated .cnf
// files written by Instance.Serialize. It implements monitor.PathConfig.
type PathsConfig struct {
	DatadirPath    string
	PersistdirPath string
}

func (p PathsConfig) Datadir() string    { return p.DatadirPath }
func (p PathsConfig) Persistdir() string { return p.PersistdirPath }

// AdminConfig configures the admin HTTP API that exposes the monitor
// control surface to monitorctl.
type AdminConfig struct {
	BindAddress string
	RateLimit   int // requests per second
	Environment string
}

// MetricsConfig holds Prometheus metrics server configuration.
type MetricsConfig struct {
	Port int
}

// SnapshotConfig configures the Redis-backed last-known-snapshot mirror.
type SnapshotConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// JWTConfig configures bearer-token auth for monitorctl API calls.
type JWTConfig struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

// SessionConfig configures cookie-based operator console sessions.
type SessionConfig struct {
	SecretKey string
	MaxAge    time.Duration
	SameSite  string
	Secure    bool
}

// Load loads configuration from environment variables (optionally from a
// .env file) with sensible defaults.
func Load() (*Config, error) {
	// A missing .env file is not an error; environment variables set by
	// the process supervisor take precedence either way.
	_ = godotenv.Load()

	cfg := &Config{
		Paths: PathsConfig{
			DatadirPath:    getEnv("CLUSTERMON_DATADIR", "/var/lib/clustermon"),
			PersistdirPath: getEnv("CLUSTERMON_PERSISTDIR", "/var/lib/clustermon/monitors"),
		},
		Admin: AdminConfig{
			BindAddress: getEnv("ADMIN_BIND_ADDRESS", ":8989"),
			RateLimit:   getEnvInt("ADMIN_RATE_LIMIT", 50),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Metrics: MetricsConfig{
			Port: getEnvInt("METRICS_PORT", 9090),
		},
		Audit: &database.Config{
			Host:                  getEnv("AUDIT_DB_HOST", "localhost"),
			Port:                  getEnvInt("AUDIT_DB_PORT", 5432),
			User:                  getEnv("AUDIT_DB_USER", "clustermon"),
			Password:              getEnv("AUDIT_DB_PASSWORD", ""),
			Database:              getEnv("AUDIT_DB_NAME", "clustermon_audit"),
			SSLMode:               database.SSLMode(getEnv("AUDIT_DB_SSL_MODE", "prefer")),
			MaxConnections:        int32(getEnvInt("AUDIT_DB_MAX_CONNECTIONS", 25)),
			MinConnections:        int32(getEnvInt("AUDIT_DB_MIN_CONNECTIONS", 5)),
			MaxConnectionLifetime: getDurationEnv("AUDIT_DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnectionIdleTime: getDurationEnv("AUDIT_DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
			HealthCheckPeriod:     getDurationEnv("AUDIT_DB_HEALTH_CHECK_PERIOD", time.Minute),
			ConnectTimeout:        getDurationEnv("AUDIT_DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		Snapshot: SnapshotConfig{
			Address:  getEnv("SNAPSHOT_REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("SNAPSHOT_REDIS_PASSWORD", ""),
			DB:       getEnvInt("SNAPSHOT_REDIS_DB", 0),
			TTL:      getDurationEnv("SNAPSHOT_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			SecretKey:           getEnv("JWT_SECRET_KEY", ""),
			AccessTokenDuration: getDurationEnv("JWT_ACCESS_TOKEN_DURATION", time.Hour),
		},
		Session: SessionConfig{
			SecretKey: getEnv("SESSION_SECRET_KEY", ""),
			MaxAge:    getDurationEnv("SESSION_MAX_AGE", 24*time.Hour),
			SameSite:  getEnv("SESSION_SAME_SITE", "Lax"),
			Secure:    getEnvBool("SESSION_SECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// MustLoad calls Load and panics if configuration is invalid. Intended for
// use at process startup in cmd/monitord.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
