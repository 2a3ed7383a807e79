// Package config provides environment-aware configuration management,
// adapted from the teacher's internal/config.Config: same env-file +
// getEnv/getIntEnv/getBoolEnv helper shape, trimmed to this module's own
// settings (no MarbleRun/Neo/Supabase fields, which belonged to the
// teacher's own domain).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment names a deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	Env Environment

	// HTTP server
	Host string
	Port int

	// Database
	DatabaseURL      string
	DBMaxOpenConns   int
	DBMaxIdleConns   int
	DBConnMaxLifetime time.Duration

	// Stripe webhook
	StripeWebhookSecret string

	// Redis (internal/platform/cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel  string
	LogFormat string

	// Outbox dispatcher
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	// Admin API tokens, comma-separated
	APITokens []string
}

// Load reads configuration from APP_ENV-selected dotenv file plus
// environment variable overrides, mirroring the teacher's Load shape.
func Load() (*Config, error) {
	envStr := os.Getenv("APP_ENV")
	if envStr == "" {
		envStr = string(Development)
	}
	env := Environment(envStr)
	switch env {
	case Development, Testing, Production:
	default:
		return nil, fmt.Errorf("invalid APP_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("warning: could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	c.Host = getEnv("HOST", "0.0.0.0")
	c.Port = getIntEnv("PORT", 8080)

	c.DatabaseURL = getEnv("DATABASE_URL", "")
	c.DBMaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", 20)
	c.DBMaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", 5)
	idleLifetime := getEnv("DB_CONN_MAX_LIFETIME", "5m")
	lifetime, err := time.ParseDuration(idleLifetime)
	if err != nil {
		return fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	c.DBConnMaxLifetime = lifetime

	c.StripeWebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", "")

	c.RedisAddr = getEnv("REDIS_ADDR", "")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.RedisDB = getIntEnv("REDIS_DB", 0)

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "json")

	pollInterval := getEnv("OUTBOX_POLL_INTERVAL", "1s")
	interval, err := time.ParseDuration(pollInterval)
	if err != nil {
		return fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %w", err)
	}
	c.OutboxPollInterval = interval
	c.OutboxBatchSize = getIntEnv("OUTBOX_BATCH_SIZE", 50)

	c.APITokens = splitNonEmpty(getEnv("API_TOKENS", ""))
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsProduction() bool  { return c.Env == Production }

// Validate enforces production-only hardening requirements.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET must be set in production")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set in production")
		}
		if len(c.APITokens) == 0 {
			return fmt.Errorf("API_TOKENS must be set in production")
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitNonEmpty(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
