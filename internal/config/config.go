// Package config provides configuration management for the ad-operations
// backend. It loads settings from environment variables with sensible
// defaults and validates them so the process fails fast on bad config.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8000)
//   - LOG_LEVEL: Logging level (default: info)
//   - DEBUG: Include error detail in 500 responses (default: false)
//
// Database Configuration:
//   - DATABASE_URL: PostgreSQL connection string (default: postgres://localhost/adops)
//   - DATABASE_POOL_SIZE: Maximum pool connections (default: 5)
//   - DATABASE_POOL_OVERFLOW: Extra connections allowed under load (default: 10)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Security Configuration:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//   - ACCESS_TOKEN_EXPIRE_MINUTES: JWT lifetime in minutes (default: 30)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: Requests allowed per window (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit time window (default: 60s)
//
// Distributed Locks:
//   - LOCK_BACKEND: Lock implementation - "redis" or "redsync" (default: redis)
//
// Workflow Orchestrator:
//   - ORCHESTRATOR_BASE_URL: Orchestrator API base URL (default: http://localhost:8080)
//   - ORCHESTRATOR_USERNAME: Basic auth username (default: admin)
//   - ORCHESTRATOR_PASSWORD: Basic auth password (default: admin)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the ad-operations backend.
// Load it with Load() and check it with Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	Debug    bool

	// Database configuration
	DatabaseURL          string
	DatabasePoolSize     int
	DatabasePoolOverflow int

	// Redis configuration for caching and distributed coordination
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// JWT authentication configuration
	JWTSecret         string
	AccessTokenExpiry time.Duration

	// Rate limiting configuration
	RateLimitEnabled bool
	RateLimitDefault int
	RateLimitWindow  time.Duration

	// Distributed lock configuration
	LockBackend string

	// Background work configuration
	SyncWorkers      int
	PipelinePollCron string

	// Workflow orchestrator configuration
	OrchestratorBaseURL  string
	OrchestratorUsername string
	OrchestratorPassword string
}

// Load creates a Config populated from environment variables, falling back
// to defaults for anything unset. Call Validate() before using the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Debug:    getBoolEnv("DEBUG", false),

		DatabaseURL:          getEnv("DATABASE_URL", "postgres://localhost/adops"),
		DatabasePoolSize:     getIntEnv("DATABASE_POOL_SIZE", 5),
		DatabasePoolOverflow: getIntEnv("DATABASE_POOL_OVERFLOW", 10),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTokenExpiry: time.Duration(getIntEnv("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getIntEnv("RATE_LIMIT_DEFAULT", 100),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),

		LockBackend: getEnv("LOCK_BACKEND", "redis"),

		SyncWorkers:      getIntEnv("SYNC_WORKERS", 4),
		PipelinePollCron: getEnv("PIPELINE_POLL_CRON", "@every 1m"),

		OrchestratorBaseURL:  getEnv("ORCHESTRATOR_BASE_URL", "http://localhost:8080"),
		OrchestratorUsername: getEnv("ORCHESTRATOR_USERNAME", "admin"),
		OrchestratorPassword: getEnv("ORCHESTRATOR_PASSWORD", "admin"),
	}
}

// Validate checks that required values are present and sane
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}

	if c.RateLimitDefault <= 0 {
		return fmt.Errorf("RATE_LIMIT_DEFAULT must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	switch c.LockBackend {
	case "redis", "redsync":
	default:
		return fmt.Errorf("LOCK_BACKEND must be \"redis\" or \"redsync\", got %q", c.LockBackend)
	}

	if c.OrchestratorBaseURL == "" {
		return fmt.Errorf("ORCHESTRATOR_BASE_URL is required")
	}

	if c.SyncWorkers <= 0 {
		return fmt.Errorf("SYNC_WORKERS must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
