// Package broker provides configuration helpers that define runtime defaults,
// validation, and listener parameters for the TopicHub broker.
package broker

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultPort is the TCP port the broker listens on when none is configured.
const DefaultPort = 1999

// Config holds the broker configuration settings.
type Config struct {
	// Listen is the TCP listen address for the text protocol.
	Listen string `yaml:"listen"`

	// WSListen is the HTTP listen address for the WebSocket access path and
	// the health endpoint. Empty disables both.
	WSListen string `yaml:"ws_listen"`

	// AllowedOrigins restricts WebSocket upgrades to the listed origins.
	// "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ShutdownTimeout bounds how long Shutdown waits for connection
	// goroutines to finish.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	return Config{
		Listen:          fmt.Sprintf(":%d", DefaultPort),
		AllowedOrigins:  []string{"http://localhost:8080"},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Sanitize fills empty or invalid settings with their defaults and returns
// the cleaned configuration.
func (c Config) Sanitize() Config {
	if c.Listen == "" {
		c.Listen = fmt.Sprintf(":%d", DefaultPort)
	}
	if !strings.Contains(c.Listen, ":") {
		c.Listen = ":" + c.Listen
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	return c
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if listen := os.Getenv("TOPICHUB_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if wsListen := os.Getenv("TOPICHUB_WS_LISTEN"); wsListen != "" {
		cfg.WSListen = wsListen
	}
	if origins := os.Getenv("TOPICHUB_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if timeout := os.Getenv("TOPICHUB_SHUTDOWN_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.ShutdownTimeout = d
		}
	}

	return &cfg
}

// LoadConfig reads a YAML configuration file and merges it over the
// environment-derived defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfigFromEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	sanitized := cfg.Sanitize()
	return &sanitized, nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
