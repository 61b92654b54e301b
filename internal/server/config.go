// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the room chat service.
package server

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	env "github.com/Netflix/go-env"

	"github.com/Tyrowin/roomchat/internal/presence"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 512
	defaultBurst           = 5
	defaultSendBufferSize  = 256
	defaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	SendBufferSize  int
	TimestampLayout string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// environment mirrors Config in the shape decoded from process variables.
type environment struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=512"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefill string        `env:"RATE_LIMIT_REFILL_INTERVAL,default=1"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	TimestampLayout string        `env:"TIMESTAMP_LAYOUT,default=15:04:05"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

var (
	configMu      sync.RWMutex
	activeConfig  Config
	activeOrigins originPolicy
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: time.Second,
		},
		SendBufferSize:  defaultSendBufferSize,
		TimestampLayout: presence.DefaultTimestampLayout,
		LogLevel:        "info",
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.TimestampLayout == "" {
		cfg.TimestampLayout = presence.DefaultTimestampLayout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	policy, kept := newOriginPolicy(slog.Default(), cfg.AllowedOrigins)
	cfg.AllowedOrigins = kept

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	activeOrigins = policy

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

// CurrentConfig returns a copy of the active configuration.
func CurrentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads the configuration from environment variables, falling
// back to defaults for unset ones. Malformed numbers are reported as errors.
func LoadConfig() (*Config, error) {
	var raw environment
	if _, err := env.UnmarshalFromEnviron(&raw); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := defaultConfig()
	cfg.Port = raw.Port
	cfg.AllowedOrigins = parseOrigins(raw.AllowedOrigins)
	cfg.MaxMessageSize = raw.MaxMessageSize
	cfg.RateLimit.Burst = raw.RateLimitBurst
	cfg.RateLimit.RefillInterval = parseRefillInterval(raw.RateLimitRefill, cfg.RateLimit.RefillInterval)
	cfg.SendBufferSize = raw.SendBufferSize
	cfg.TimestampLayout = raw.TimestampLayout
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	cfg.ShutdownTimeout = raw.ShutdownTimeout
	return &cfg, nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseRefillInterval accepts either whole seconds ("2") or a Go duration
// ("500ms").
func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
