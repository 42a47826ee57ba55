package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	StoreContentful = "contentful"
	StorePostgres   = "postgres"
	StoreMemory     = "memory"
)

// Config holds the application configuration
type Config struct {
	// Server
	Port int
	Host string

	// Environment
	Environment string
	LogFile     string

	// Catalogue storage
	StoreBackend string
	DatabaseURL  string

	// Contentful
	ContentfulSpaceID         string
	ContentfulEnvironment     string
	ContentfulEntryID         string
	ContentfulFieldID         string
	ContentfulLocale          string
	ContentfulAccessToken     string
	ContentfulManagementToken string

	// TMDB
	TMDBAPIKey         string
	TMDBRateLimit      float64
	MetadataPluginPath string

	// Authentication
	AdminPasswordHash string
	JWTSecret         string

	// HTTP limits
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxBodyBytes      int64

	// Background enrichment
	EnrichSchedule string
	EnrichDelay    time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvAsInt("PORT", 3000),
		Host:        getEnv("HOST", "0.0.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogFile:     getEnv("LOG_FILE", ""),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreContentful)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		ContentfulSpaceID:         getEnv("CONTENTFUL_SPACE_ID", ""),
		ContentfulEnvironment:     getEnv("CONTENTFUL_ENVIRONMENT", "master"),
		ContentfulEntryID:         getEnv("CONTENTFUL_ENTRY_ID", ""),
		ContentfulFieldID:         getEnv("CONTENTFUL_FIELD_ID", ""),
		ContentfulLocale:          getEnv("CONTENTFUL_LOCALE", "en-US"),
		ContentfulAccessToken:     getEnv("CONTENTFUL_ACCESS_TOKEN", ""),
		ContentfulManagementToken: getEnv("CONTENTFUL_MANAGEMENT_TOKEN", ""),

		TMDBAPIKey:         getEnv("TMDB_API_KEY", ""),
		TMDBRateLimit:      getEnvAsFloat("TMDB_RATE_LIMIT", 4),
		MetadataPluginPath: getEnv("METADATA_PLUGIN_PATH", ""),

		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		MaxBodyBytes:      int64(getEnvAsInt("MAX_BODY_BYTES", 10<<20)),

		EnrichSchedule: getEnv("ENRICH_SCHEDULE", ""),
		EnrichDelay:    getEnvAsDuration("ENRICH_DELAY", 300*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid. Missing Contentful
// identifiers are not an error here; requests that need them report it.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	switch c.StoreBackend {
	case StoreContentful, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of contentful, postgres, memory")
	}

	if c.AdminPasswordHash != "" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
		}
	}

	if c.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthEnabled reports whether write endpoints require an admin session
func (c *Config) AuthEnabled() bool {
	return c.AdminPasswordHash != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat gets an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("1m", "300ms") or a plain number of milliseconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
