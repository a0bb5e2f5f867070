package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const envPrefix = "APP_"

// Config holds all configuration for the huddle server.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Store
	RedisURL          string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	HuddleTTL         time.Duration `env:"HUDDLE_TTL" envDefault:"1h"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"30s"`

	// Streaming tokens
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"5m"`

	// Media server; empty URL runs the in-process one.
	MediaServerURL     string        `env:"MEDIA_SERVER_URL"`
	MediaServerTimeout time.Duration `env:"MEDIA_SERVER_TIMEOUT" envDefault:"10s"`
}

// Load reads .env when present and parses the APP_ environment into Config.
func Load() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("%sJWT_SECRET is required", envPrefix)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("%sJWT_TTL must be positive", envPrefix)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("%sRECONCILE_INTERVAL must not be negative", envPrefix)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%sLOG_FORMAT must be console or json, got %q", envPrefix, c.LogFormat)
	}
	return nil
}

// InProcessMedia reports whether no external media server is configured.
func (c *Config) InProcessMedia() bool {
	return strings.TrimSpace(c.MediaServerURL) == ""
}

// loadEnvFile never overrides variables already set in the environment.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
