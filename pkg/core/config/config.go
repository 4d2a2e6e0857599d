// Package config reads process configuration from the environment, with an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
	CacheBadger   = "badger"
)

// Config holds application configuration
type Config struct {
	Port         int
	DatabaseURL  string // empty => in-memory stores
	LogLevel     string
	LogPretty    bool
	ModelsConfig string
	ResourcesDir string

	CacheBackend       string
	CacheTTL           time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	BadgerPath         string
	CachePurgeSchedule string

	TitleMaxLen    int
	SectionCharCap int
	Form4CharCap   int
	SelectLimit    int
	NameFallback   bool

	LLMTimeout    time.Duration
	LLMRatePerSec float64

	DownloadScript        string // empty => downloads disabled
	DownloadConcurrency   int
	DownloadTimeout       time.Duration
	DownloadLookbackYears int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the environment without loading .env or validating.
func FromEnv() *Config {
	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8080),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", false),
		ModelsConfig: getEnv("MODELS_CONFIG", "config/models.yaml"),
		ResourcesDir: getEnv("RESOURCES_DIR", "resources"),

		CacheTTL:           getEnvAsDuration("CACHE_TTL", 168*time.Hour),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		BadgerPath:         getEnv("BADGER_PATH", ""),
		CachePurgeSchedule: getEnv("CACHE_PURGE_SCHEDULE", "0 0 3 * * *"),

		TitleMaxLen:    getEnvAsInt("TITLE_MAX_LEN", 30),
		SectionCharCap: getEnvAsInt("SECTION_CHAR_CAP", 6000),
		Form4CharCap:   getEnvAsInt("FORM4_CHAR_CAP", 800),
		SelectLimit:    getEnvAsInt("SELECT_LIMIT", 10),
		NameFallback:   getEnvAsBool("TICKER_NAME_FALLBACK", false),

		LLMTimeout:    getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		LLMRatePerSec: getEnvAsFloat("LLM_RATE_PER_SEC", 2),

		DownloadScript:        getEnv("DOWNLOAD_SCRIPT", ""),
		DownloadConcurrency:   getEnvAsInt("DOWNLOAD_CONCURRENCY", 2),
		DownloadTimeout:       getEnvAsDuration("DOWNLOAD_TIMEOUT", 30*time.Minute),
		DownloadLookbackYears: getEnvAsInt("DOWNLOAD_LOOKBACK_YEARS", 3),
	}

	backend := strings.ToLower(getEnv("CACHE_BACKEND", ""))
	if backend == "" {
		backend = CacheMemory
		if cfg.DatabaseURL != "" {
			backend = CachePostgres
		}
	}
	cfg.CacheBackend = backend
	return cfg
}

// Validate checks that required combinations are present.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.CacheBackend {
	case CacheMemory:
	case CachePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("CACHE_BACKEND=postgres requires DATABASE_URL")
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDR")
		}
	case CacheBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("CACHE_BACKEND=badger requires BADGER_PATH")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.TitleMaxLen <= 0 {
		return fmt.Errorf("TITLE_MAX_LEN must be positive")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
