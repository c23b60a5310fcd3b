// Package config provides configuration management for the asset service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig
	Cache     CacheConfig
	Batch     BatchConfig
	Executor  ExecutorConfig
	Analyzer  AnalyzerConfig
	Generator GeneratorConfig
	Database  DatabaseConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	RateLimit      int
	RateWindow     time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// CacheConfig holds TTL cache store configuration.
type CacheConfig struct {
	// TTL applies to successfully computed entries.
	TTL time.Duration
	// NegativeTTL applies to cached upstream failures. Kept deliberately
	// shorter than TTL so a flaky analyzer is shed, not remembered.
	NegativeTTL time.Duration
	// SweepInterval drives the best-effort background sweep. Zero disables
	// the sweep; expiry is still enforced lazily on read.
	SweepInterval time.Duration
}

// BatchConfig holds batch coordinator configuration.
type BatchConfig struct {
	// MaxSize caps the number of items accepted per resolve call and the
	// size of sub-batches dispatched to the fetch executor.
	MaxSize int
	// Deadline bounds a whole resolve call. Keys that miss it are reported
	// individually as timeouts.
	Deadline time.Duration
}

// ExecutorConfig holds parallel fetch executor configuration.
type ExecutorConfig struct {
	Workers     int
	QueueDepth  int
	TaskTimeout time.Duration
}

// AnalyzerConfig holds Gemini analyzer configuration.
type AnalyzerConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	// Rate and Burst shape outgoing analyzer calls (requests per second).
	Rate  float64
	Burst int
}

// GeneratorConfig holds 3D generation (Meshy) and polling configuration.
type GeneratorConfig struct {
	APIKey          string
	BaseURL         string
	PollInterval    time.Duration
	PollTimeout     time.Duration
	PollMaxAttempts int
	PollBackoffMax  time.Duration
	PollConcurrency int
}

// DatabaseConfig holds MongoDB configuration.
type DatabaseConfig struct {
	URI          string
	DatabaseName string
	Enabled      bool
	// CircuitBreaker configuration
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration
}

// Load creates a Config from environment variables.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			RateLimit:      getEnvInt("RATE_LIMIT", 100),
			RateWindow:     getEnvDuration("RATE_WINDOW", time.Minute),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
			CORSOrigins:    parseCORSOrigins(os.Getenv("CORS_ORIGINS")),
		},
		Cache: CacheConfig{
			TTL:           getEnvDuration("CACHE_TTL", 24*time.Hour),
			NegativeTTL:   getEnvDuration("CACHE_NEGATIVE_TTL", 30*time.Second),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),
		},
		Batch: BatchConfig{
			MaxSize:  getEnvInt("BATCH_MAX_SIZE", 50),
			Deadline: getEnvDuration("BATCH_DEADLINE", 30*time.Second),
		},
		Executor: ExecutorConfig{
			Workers:     getEnvInt("FETCH_WORKERS", 4),
			QueueDepth:  getEnvInt("FETCH_QUEUE_DEPTH", 64),
			TaskTimeout: getEnvDuration("FETCH_TIMEOUT", 20*time.Second),
		},
		Analyzer: AnalyzerConfig{
			APIKey:     os.Getenv("GEMINI_API_KEY"),
			Model:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxRetries: getEnvInt("ANALYZER_MAX_RETRIES", 3),
			RetryDelay: getEnvDuration("ANALYZER_RETRY_DELAY", 2*time.Second),
			Rate:       getEnvFloat("ANALYZER_RATE", 5),
			Burst:      getEnvInt("ANALYZER_BURST", 10),
		},
		Generator: GeneratorConfig{
			APIKey:          os.Getenv("MESHY_API_KEY"),
			BaseURL:         getEnv("MESHY_BASE_URL", "https://api.meshy.ai"),
			PollInterval:    getEnvDuration("POLL_INTERVAL", 10*time.Second),
			PollTimeout:     getEnvDuration("POLL_TIMEOUT", 15*time.Second),
			PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 120),
			PollBackoffMax:  getEnvDuration("POLL_BACKOFF_MAX", 2*time.Minute),
			PollConcurrency: getEnvInt("POLL_CONCURRENCY", 4),
		},
		Database: DatabaseConfig{
			URI:                            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			DatabaseName:                   getEnv("MONGODB_DATABASE", "asset_service"),
			Enabled:                        getEnvBool("MONGODB_ENABLED", false),
			CircuitBreakerFailureThreshold: getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
			CircuitBreakerSuccessThreshold: getEnvInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 2),
			CircuitBreakerTimeout:          getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseCORSOrigins(s string) []string {
	// Default origins for local development
	defaults := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if s == "" {
		return defaults
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts)+len(defaults))
	result = append(result, defaults...)
	for _, p := range parts {
		if origin := strings.TrimSpace(p); origin != "" {
			result = append(result, origin)
		}
	}
	return result
}
