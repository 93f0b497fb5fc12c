// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Tracing
	OTLPEndpoint string // OpenTelemetry collector endpoint (optional)

	// Rate limiting
	OrderRateLimit    int           // max order submissions per client per window
	DefaultRateLimit  int           // max requests per client per window for other endpoints
	RateLimitWindow   time.Duration // fixed window length
	ViolationBlockAt  int           // violation count at which a violation row is marked blocked
	AllowedOrigins    []string      // CORS origins
	FactorTimeout     time.Duration // per-evaluation budget for history lookups
	ProxyCIDRs        []string      // known proxy/VPN ranges for the location factor
	BlockThreshold    float64       // final score >= this → blocked
	ReviewThreshold   float64       // final score >= this → manual_review
	FlagThreshold     float64       // final score >= this → flagged
	HighValueAmount   int64         // order amount that triggers the HIGH_VALUE_ORDER overlay
	BreakerThreshold  int           // blacklist store failures before the breaker opens
	BreakerOpenFor    time.Duration // how long the blacklist breaker stays open
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultOrderRateLimit  = 10
	DefaultRequestLimit    = 100
	DefaultWindow          = time.Minute
	DefaultViolationBlock  = 5
	DefaultFactorTimeout   = 2 * time.Second
	DefaultBlockThreshold  = 0.8
	DefaultReviewThreshold = 0.6
	DefaultFlagThreshold   = 0.4
	DefaultHighValueAmount = 500_000
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OrderRateLimit:   getEnvInt("ORDER_RATE_LIMIT", DefaultOrderRateLimit),
		DefaultRateLimit: getEnvInt("DEFAULT_RATE_LIMIT", DefaultRequestLimit),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", DefaultWindow),
		ViolationBlockAt: getEnvInt("VIOLATION_BLOCK_AT", DefaultViolationBlock),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS"),
		FactorTimeout:    getEnvDuration("FACTOR_TIMEOUT", DefaultFactorTimeout),
		ProxyCIDRs:       getEnvList("PROXY_CIDRS"),
		BlockThreshold:   getEnvFloat("BLOCK_THRESHOLD", DefaultBlockThreshold),
		ReviewThreshold:  getEnvFloat("REVIEW_THRESHOLD", DefaultReviewThreshold),
		FlagThreshold:    getEnvFloat("FLAG_THRESHOLD", DefaultFlagThreshold),
		HighValueAmount:  int64(getEnvInt("HIGH_VALUE_AMOUNT", DefaultHighValueAmount)),
		BreakerThreshold: getEnvInt("BREAKER_THRESHOLD", 5),
		BreakerOpenFor:   getEnvDuration("BREAKER_OPEN_FOR", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.OrderRateLimit <= 0 {
		return fmt.Errorf("ORDER_RATE_LIMIT must be positive, got %d", c.OrderRateLimit)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if !(c.FlagThreshold < c.ReviewThreshold && c.ReviewThreshold < c.BlockThreshold) {
		return fmt.Errorf("thresholds must satisfy flag < review < block, got %.2f/%.2f/%.2f",
			c.FlagThreshold, c.ReviewThreshold, c.BlockThreshold)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
