// Package server provides configuration helpers that define runtime defaults,
// validation, and connection limits for the chat service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/framechat/internal/frame"
)

// RateLimitConfig defines the parameters for per-connection inbound rate limiting.
// A Burst of zero or less disables the limiter, which is the default.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	// ListenAddress is the TCP endpoint for framed clients.
	ListenAddress string
	// GatewayAddress is the HTTP endpoint serving the WebSocket gateway; empty disables it.
	GatewayAddress string
	AllowedOrigins []string
	// FrameSize is the wire frame length in both directions.
	FrameSize int
	// QueueSize is the per-connection broadcast backlog before old messages are dropped.
	QueueSize int
	// MaxConnections caps concurrent clients; zero means unlimited.
	MaxConnections int
	// IdleTimeout closes a client that sends nothing for this long; zero disables it.
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       RateLimitConfig
}

const (
	defaultListenAddress   = "127.0.0.1:6000"
	defaultMaxConnections  = 1024
	defaultIdleTimeout     = 10 * time.Minute
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

func defaultConfig() Config {
	return Config{
		ListenAddress: defaultListenAddress,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		FrameSize:       frame.DefaultSize,
		QueueSize:       DefaultQueueSize,
		MaxConnections:  defaultMaxConnections,
		IdleTimeout:     defaultIdleTimeout,
		WriteTimeout:    defaultWriteTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		RateLimit: RateLimitConfig{
			Burst:          0,
			RefillInterval: time.Second,
		},
	}
}

// sanitizeConfig replaces invalid values with defaults and copies slices.
func sanitizeConfig(cfg Config) Config {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}

	if cfg.FrameSize <= 0 {
		cfg.FrameSize = frame.DefaultSize
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	if cfg.MaxConnections < 0 {
		cfg.MaxConnections = 0
	}

	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.RateLimit.Burst > 0 && cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	origins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	if allowAll {
		origins = append(origins, "*")
	}
	cfg.AllowedOrigins = origins

	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("LISTEN_ADDRESS"); addr != "" {
		cfg.ListenAddress = addr
	}

	if addr, ok := os.LookupEnv("GATEWAY_ADDRESS"); ok {
		cfg.GatewayAddress = strings.TrimSpace(addr)
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if size := os.Getenv("FRAME_SIZE"); size != "" {
		cfg.FrameSize = parsePositiveInt(size, cfg.FrameSize)
	}

	if size := os.Getenv("QUEUE_SIZE"); size != "" {
		cfg.QueueSize = parsePositiveInt(size, cfg.QueueSize)
	}

	if limit := os.Getenv("MAX_CONNECTIONS"); limit != "" {
		cfg.MaxConnections = parseNonNegativeInt(limit, cfg.MaxConnections)
	}

	if timeout := os.Getenv("IDLE_TIMEOUT"); timeout != "" {
		cfg.IdleTimeout = time.Duration(parseNonNegativeInt(timeout, int(cfg.IdleTimeout/time.Second))) * time.Second
	}

	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}

	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseNonNegativeInt(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePositiveInt(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseNonNegativeInt(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds := parsePositiveInt(value, 0); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
