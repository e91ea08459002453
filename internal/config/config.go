package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings
	DatabaseURL string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Court registry
	CourtsFile string

	// Archive settings
	ArchiveBackend     string
	ArchivePath        string
	GCSBucket          string
	GCSCredentialsFile string

	// Party reconciliation retry
	PartyRetryAttempts int
	PartyRetryDelay    time.Duration

	// Orphan document windows
	OrphanLookback time.Duration
	OrphanFallback time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:               getEnv("HOST", "0.0.0.0"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "sqlite:///./data/recap.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CourtsFile:         getEnv("COURTS_FILE", ""),
		ArchiveBackend:     getEnv("ARCHIVE_BACKEND", "local"),
		ArchivePath:        getEnv("ARCHIVE_PATH", "./data/archive"),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
	}

	// Parse integer values
	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	cfg.PartyRetryAttempts, err = strconv.Atoi(getEnv("PARTY_RETRY_ATTEMPTS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid PARTY_RETRY_ATTEMPTS: %w", err)
	}

	retryDelay, err := strconv.Atoi(getEnv("PARTY_RETRY_DELAY", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PARTY_RETRY_DELAY: %w", err)
	}
	cfg.PartyRetryDelay = time.Duration(retryDelay) * time.Millisecond

	lookback, err := strconv.Atoi(getEnv("ORPHAN_LOOKBACK_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORPHAN_LOOKBACK_DAYS: %w", err)
	}
	cfg.OrphanLookback = time.Duration(lookback) * 24 * time.Hour

	fallback, err := strconv.Atoi(getEnv("ORPHAN_FALLBACK_DAYS", "180"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORPHAN_FALLBACK_DAYS: %w", err)
	}
	cfg.OrphanFallback = time.Duration(fallback) * 24 * time.Hour

	if cfg.ArchiveBackend != "local" && cfg.ArchiveBackend != "gcs" {
		return nil, fmt.Errorf("invalid ARCHIVE_BACKEND: %q", cfg.ArchiveBackend)
	}
	if cfg.ArchiveBackend == "gcs" && cfg.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required when ARCHIVE_BACKEND=gcs")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
