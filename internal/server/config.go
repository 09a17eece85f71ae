// Package server provides configuration helpers that define runtime defaults,
// validation, and transport limits for the chat service.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultPort            = "5000"
	defaultMaxMessageSize  = 4096
	defaultSendBufferSize  = 256
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Port              string        `env:"PORT"                envDefault:"5000"`
	Env               string        `env:"ENV"                 envDefault:"development"`
	LogLevel          string        `env:"LOG_LEVEL"           envDefault:"info"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS"     envDefault:"http://localhost:3000" envSeparator:","`
	AllowLocalNetwork bool          `env:"ALLOW_LOCAL_NETWORK" envDefault:"true"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE"    envDefault:"4096"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE"    envDefault:"256"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT"    envDefault:"10s"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port:              defaultPort,
		Env:               "development",
		LogLevel:          "info",
		AllowedOrigins:    []string{"http://localhost:3000"},
		AllowLocalNetwork: true,
		MaxMessageSize:    defaultMaxMessageSize,
		SendBufferSize:    defaultSendBufferSize,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize replaces missing or non-positive values with their defaults.
func (c *Config) Sanitize() {
	c.Port = strings.TrimSpace(c.Port)
	if c.Port == "" {
		c.Port = defaultPort
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}

	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	c.AllowedOrigins = parseOrigins(c.AllowedOrigins)
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func parseOrigins(origins []string) []string {
	parsed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			parsed = append(parsed, trimmed)
		}
	}
	return parsed
}
