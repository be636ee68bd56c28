package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Values are read once at
// startup and never mutated afterwards; hot reload is out of scope.
type Server struct {
	Addr string

	// Adapter selection by registry name; the fallback is consulted only
	// for retryable primary failures.
	Adapter         string
	FallbackAdapter string

	// Remote adapter tuning.
	VIESBaseURL  string
	Timeout      time.Duration
	RecvTimeout  time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	RetryBackoff string

	// Optional Redis result cache; an empty URL disables caching.
	RedisURL string
	CacheTTL time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	return Server{
		Addr:            envString("VATGATE_ADDR", ":8080"),
		Adapter:         envString("VATGATE_ADAPTER", "vies"),
		FallbackAdapter: envString("VATGATE_FALLBACK_ADAPTER", "offline"),
		VIESBaseURL:     envString("VATGATE_VIES_BASE_URL", ""),
		Timeout:         envDuration("VATGATE_TIMEOUT", 10*time.Second),
		RecvTimeout:     envDuration("VATGATE_RECV_TIMEOUT", 30*time.Second),
		MaxRetries:      envInt("VATGATE_MAX_RETRIES", 3),
		RetryDelay:      envDuration("VATGATE_RETRY_DELAY", time.Second),
		RetryBackoff:    envString("VATGATE_RETRY_BACKOFF", "exponential"),
		RedisURL:        envString("VATGATE_REDIS_URL", ""),
		CacheTTL:        envDuration("VATGATE_CACHE_TTL", 5*time.Minute),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
