package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     int
	LogLevel string
	DevMode  bool

	// Data sources
	PrimarySource      string
	SecondarySource    string
	AlphaVantageAPIKey string
	FallbackDelay      time.Duration

	// Response cache
	CacheTTL      time.Duration
	CacheCapacity int

	// Resilience
	RequestTimeout           time.Duration
	MaxRetries               int
	BackoffBase              time.Duration
	BackoffMax               time.Duration
	BackoffMultiplier        float64
	FailureThreshold         int
	RecoveryTimeout          time.Duration
	HalfOpenMaxCalls         int
	HalfOpenSuccessThreshold int

	// Health probes
	HealthCheckSchedule string

	// Diagnostics store
	DiagnosticsDBPath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		PrimarySource:      getEnv("PRIMARY_SOURCE", "yahoo"),
		SecondarySource:    getEnv("SECONDARY_SOURCE", "alphavantage"),
		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", "demo"),
		FallbackDelay:      getEnvAsDuration("FALLBACK_DELAY", 500*time.Millisecond),

		CacheTTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		CacheCapacity: getEnvAsInt("CACHE_CAPACITY", 256),

		RequestTimeout:           getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxRetries:               getEnvAsInt("MAX_RETRIES", 2),
		BackoffBase:              getEnvAsDuration("BACKOFF_BASE", 500*time.Millisecond),
		BackoffMax:               getEnvAsDuration("BACKOFF_MAX", 10*time.Second),
		BackoffMultiplier:        getEnvAsFloat("BACKOFF_MULTIPLIER", 2.0),
		FailureThreshold:         getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		RecoveryTimeout:          getEnvAsDuration("BREAKER_RECOVERY_TIMEOUT", 30*time.Second),
		HalfOpenMaxCalls:         getEnvAsInt("BREAKER_HALF_OPEN_MAX_CALLS", 3),
		HalfOpenSuccessThreshold: getEnvAsInt("BREAKER_HALF_OPEN_SUCCESSES", 2),

		HealthCheckSchedule: getEnv("HEALTH_CHECK_SCHEDULE", "@every 30s"),

		DiagnosticsDBPath: getEnv("DIAGNOSTICS_DB_PATH", "./data/diagnostics.db"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.PrimarySource == "" {
		return fmt.Errorf("PRIMARY_SOURCE is required")
	}
	if c.PrimarySource == c.SecondarySource {
		return fmt.Errorf("PRIMARY_SOURCE and SECONDARY_SOURCE must differ")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("BACKOFF_MULTIPLIER must be at least 1")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
