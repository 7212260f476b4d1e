// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// AIConfig provides settings for the AI completion backend.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetAIDefaultModel() string
	GetAITimeout() time.Duration
	IsAIEnabled() bool
}

// CacheConfig provides settings for the tenant-scoped cache stores.
type CacheConfig interface {
	GetCacheBackend() string // "memory" or "redis"
	GetRedisURL() string
	GetDistributionTTL() time.Duration
}

// SchedulerConfig provides settings for the background scan scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetScanInterval() time.Duration
}

// Config is the concrete configuration loaded from the environment.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	GeminiAPIKey     string
	AIDefaultModel   string
	AITimeout        time.Duration
	AIEnabled        bool
	CacheBackend     string
	RedisURL         string
	RedisTLSInsecure bool
	DistributionTTL  time.Duration
	AsynqQueueName   string
	AsynqConcurrency int
	ScanInterval     time.Duration
}

// Load reads configuration from the environment, with .env support.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	geminiKey := getEnv("GEMINI_API_KEY", "")
	aiEnabled := strings.EqualFold(getEnv("AI_ENABLED", "true"), "true")

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		GeminiAPIKey:     geminiKey,
		AIDefaultModel:   getEnv("AI_DEFAULT_MODEL", "gemini-2.0-flash"),
		AITimeout:        mustDuration(getEnv("AI_TIMEOUT", "10s")),
		AIEnabled:        aiEnabled && geminiKey != "",
		CacheBackend:     strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		DistributionTTL:  mustDuration(getEnv("DISTRIBUTION_CACHE_TTL", "1h")),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "intelligence"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ScanInterval:     mustDuration(getEnv("SCAN_INTERVAL", "1h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CacheBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when CACHE_BACKEND is redis")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string          { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string      { return c.JWTAccessSecret }
func (c *Config) GetHTTPAddr() string             { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool           { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string        { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool         { return c.CORSAllowCreds }
func (c *Config) GetGeminiAPIKey() string         { return c.GeminiAPIKey }
func (c *Config) GetAIDefaultModel() string       { return c.AIDefaultModel }
func (c *Config) GetAITimeout() time.Duration     { return c.AITimeout }
func (c *Config) IsAIEnabled() bool               { return c.AIEnabled }
func (c *Config) GetCacheBackend() string         { return c.CacheBackend }
func (c *Config) GetRedisURL() string             { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool       { return c.RedisTLSInsecure }
func (c *Config) GetDistributionTTL() time.Duration { return c.DistributionTTL }
func (c *Config) GetAsynqQueueName() string       { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int        { return c.AsynqConcurrency }
func (c *Config) GetScanInterval() time.Duration  { return c.ScanInterval }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
