// Package config loads server configuration from environment variables.
//
// Required variables:
//   - DATABASE_URL: PostgreSQL connection string for the preference store.
//
// Optional variables:
//   - HTTP_ADDR: listen address for the HTTP server (default ":8080").
//   - LOG_LEVEL: minimum log level (default "info").
//   - LOCALE: locale identifier of the running deployment (default "en-US"),
//     consulted by the pocket-section locale gate.
//   - REMOTE_CONFIG_URL: endpoint serving the experiment-configuration
//     document. Empty disables remote configuration; section-backed
//     features then resolve disabled.
//   - REMOTE_REFRESH_INTERVAL: background refresh cadence for the remote
//     document (default "5m", must be > 0 if set).
//   - AUTH_TOKEN_HASH: bcrypt hash of the bearer token required on mutating
//     endpoints. Empty leaves mutations unauthenticated.
//   - AUTH_RATE_LIMIT: max failed auth attempts per IP per minute
//     (default "10", must be > 0 if set).
//   - MAX_JSON_BODY_SIZE: max HTTP JSON request body size in bytes
//     (default "1048576", must be > 0 if set).
//
// The build channel is deliberately not configuration: it is baked into the
// binary at link time (see cmd/server).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr                    = ":8080"
	defaultLocale                      = "en-US"
	defaultAuthRateLimit               = 10
	defaultMaxJSONBodySize       int64 = 1 << 20 // 1MB
	defaultRemoteRefreshInterval       = 5 * time.Minute
)

// Config holds the runtime configuration for the toggld server.
type Config struct {
	DatabaseURL           string
	HTTPAddr              string
	LogLevel              string
	Locale                string
	RemoteConfigURL       string
	RemoteRefreshInterval time.Duration
	AuthTokenHash         string
	AuthRateLimit         int
	MaxJSONBodySize       int64
}

// Load reads configuration from environment variables, applying defaults
// where appropriate. It returns an error if required variables are missing
// or optional values fail validation.
func Load() (Config, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	remoteRefreshInterval := defaultRemoteRefreshInterval
	if value := strings.TrimSpace(os.Getenv("REMOTE_REFRESH_INTERVAL")); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse REMOTE_REFRESH_INTERVAL: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("REMOTE_REFRESH_INTERVAL must be > 0")
		}
		remoteRefreshInterval = parsed
	}

	authRateLimit := defaultAuthRateLimit
	if value := strings.TrimSpace(os.Getenv("AUTH_RATE_LIMIT")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse AUTH_RATE_LIMIT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("AUTH_RATE_LIMIT must be > 0")
		}
		authRateLimit = parsed
	}

	maxJSONBodySize := defaultMaxJSONBodySize
	if v := strings.TrimSpace(os.Getenv("MAX_JSON_BODY_SIZE")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, errors.New("MAX_JSON_BODY_SIZE must be a positive integer (bytes)")
		}
		maxJSONBodySize = n
	}

	return Config{
		DatabaseURL:           databaseURL,
		HTTPAddr:              envOrDefault("HTTP_ADDR", defaultHTTPAddr),
		LogLevel:              envOrDefault("LOG_LEVEL", "info"),
		Locale:                envOrDefault("LOCALE", defaultLocale),
		RemoteConfigURL:       strings.TrimSpace(os.Getenv("REMOTE_CONFIG_URL")),
		RemoteRefreshInterval: remoteRefreshInterval,
		AuthTokenHash:         strings.TrimSpace(os.Getenv("AUTH_TOKEN_HASH")),
		AuthRateLimit:         authRateLimit,
		MaxJSONBodySize:       maxJSONBodySize,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
