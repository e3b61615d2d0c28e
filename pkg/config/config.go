package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (permission cache)
	Redis RedisConfig

	// Schema configuration
	Schema SchemaConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds permission cache connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SchemaConfig points at the entity schema definition file
type SchemaConfig struct {
	Path string
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       string
	LogPlainText   bool
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TOLLGATE_HOST", "0.0.0.0"),
			Port:            getEnv("TOLLGATE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("TOLLGATE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("TOLLGATE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("TOLLGATE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("TOLLGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("TOLLGATE_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("TOLLGATE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns:    getEnvInt("TOLLGATE_POSTGRES_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("TOLLGATE_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("TOLLGATE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("TOLLGATE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("TOLLGATE_REDIS_DB", 0),
		},
		Schema: SchemaConfig{
			Path: getEnv("TOLLGATE_SCHEMA_PATH", "schema.yaml"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("TOLLGATE_LOG_LEVEL", "info"),
			LogPlainText:   getEnvBool("TOLLGATE_LOG_PLAIN", false),
			MetricsEnabled: getEnvBool("TOLLGATE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Schema.Path == "" {
		return fmt.Errorf("schema path is required")
	}
	if c.Database.MaxOpenConns < c.Database.MaxIdleConns {
		return fmt.Errorf("max open connections must be at least max idle connections")
	}
	return nil
}

// Addr returns the host:port the API server binds to
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
