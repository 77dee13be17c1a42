// Package config validates and exposes environment-driven configuration
// for the auction engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the auction engine.
type Config struct {
	// Required
	JWTSecret string
	Port      string
	CacheAddr string
	DBURL     string

	// Optional with defaults
	GoEnv           string
	LogLevel        string
	CachePassword   string
	CachePoolSize   int
	DBPoolMax       int
	Production      bool
	AllowedOrigins  string
	SkipAuth        bool
	Auth0Domain     string
	Auth0Audience   string
	IPGeoToken      string
	IPGeoEnabled    bool
	LLMKey          string
	OtelExporterURL string

	// Auction tuning
	BidTimerSeconds   int
	RTMTimerSeconds   int
	RoomMode          bool
	MinParticipants   int
	RosterSize        int
	DBWorkerCount     int
	RetryPollInterval time.Duration
	RetryBackoffCap   time.Duration
	RetryMaxAttempts  int

	// Rate limits
	RateLimitWsIP   string
	RateLimitWsUser string
}

// ValidateEnv reads and validates all environment variables, returning an
// aggregated error describing every problem at once when validation fails.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least 32 characters (got %d)", len(cfg.JWTSecret)))
	}

	cfg.Port = getEnvOrDefault("PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.CacheAddr = getEnvOrDefault("CACHE_ADDR", "localhost:6379")
	if !isValidHostPort(cfg.CacheAddr) {
		errs = append(errs, fmt.Sprintf("CACHE_ADDR must be in format 'host:port' (got '%s')", cfg.CacheAddr))
	}
	cfg.CachePassword = os.Getenv("CACHE_PASSWORD")
	cfg.CachePoolSize = getEnvIntOrDefault("CACHE_POOL_SIZE", 10)

	cfg.DBURL = os.Getenv("DB_URL")
	if cfg.DBURL == "" {
		errs = append(errs, "DB_URL is required")
	}
	cfg.DBPoolMax = getEnvIntOrDefault("DB_POOL_MAX", 10)

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.Production = os.Getenv("PRODUCTION") == "true"
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	cfg.SkipAuth = os.Getenv("SKIP_AUTH") == "true"
	cfg.Auth0Domain = os.Getenv("AUTH0_DOMAIN")
	cfg.Auth0Audience = os.Getenv("AUTH0_AUDIENCE")
	cfg.IPGeoToken = os.Getenv("IP_GEO_TOKEN")
	cfg.IPGeoEnabled = os.Getenv("IP_GEO_ENABLED") == "true"
	cfg.LLMKey = os.Getenv("LLM_KEY")
	cfg.OtelExporterURL = os.Getenv("OTEL_EXPORTER_ADDR")

	cfg.BidTimerSeconds = getEnvIntOrDefault("BID_TIMER_SECONDS", 20)
	cfg.RTMTimerSeconds = getEnvIntOrDefault("RTM_TIMER_SECONDS", 15)
	cfg.RoomMode = os.Getenv("ROOM_MODE_RELAXED") == "true"
	cfg.MinParticipants = getEnvIntOrDefault("MIN_PARTICIPANTS", 3)
	cfg.RosterSize = getEnvIntOrDefault("ROSTER_SIZE", 15)
	if cfg.RoomMode {
		cfg.RosterSize = getEnvIntOrDefault("ROSTER_SIZE_RELAXED", 11)
	}
	cfg.DBWorkerCount = getEnvIntOrDefault("DB_WORKER_COUNT", 3)
	cfg.RetryPollInterval = time.Duration(getEnvIntOrDefault("RETRY_POLL_INTERVAL_SECONDS", 1)) * time.Second
	cfg.RetryBackoffCap = time.Duration(getEnvIntOrDefault("RETRY_BACKOFF_CAP_SECONDS", 60)) * time.Second
	cfg.RetryMaxAttempts = getEnvIntOrDefault("RETRY_MAX_ATTEMPTS", 10)

	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	return err == nil && port >= 1 && port <= 65535
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// RedactSecret shows only the first 8 characters of a secret, for safe logging.
func RedactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
