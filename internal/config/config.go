package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Exchange rates
	MemoryCacheTTL   time.Duration // in-memory rate cache freshness
	StoredCacheTTL   time.Duration // persisted rate cache freshness
	ProviderTimeout  time.Duration // per-request bound on provider calls
	FetchAttempts    int           // attempts per provider fetch
	FetchBackoffBase time.Duration // first retry delay, doubled per attempt
	ARSSource        string        // dolarapi variant: blue, official, mep

	// Pending transaction worker
	PendingMaxRetries int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		MemoryCacheTTL:   getEnvDuration("FX_MEMORY_CACHE_TTL", 5*time.Minute),
		StoredCacheTTL:   getEnvDuration("FX_STORED_CACHE_TTL", time.Hour),
		ProviderTimeout:  getEnvDuration("FX_PROVIDER_TIMEOUT", 10*time.Second),
		FetchAttempts:    getEnvInt("FX_FETCH_ATTEMPTS", 3),
		FetchBackoffBase: getEnvDuration("FX_FETCH_BACKOFF", time.Second),
		ARSSource:        getEnv("ARS_SOURCE", "blue"),

		PendingMaxRetries: getEnvInt("PENDING_MAX_RETRIES", 10),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}
