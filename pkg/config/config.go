// Package config defines the pushd server configuration and its file
// loader. Configuration comes from defaults, an optional YAML file, and CLI
// flag overrides, in that order.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default ports and timeouts.
const (
	DefaultPort         = 4292
	DefaultHost         = "localhost"
	DefaultReadTimeout  = 30
	DefaultWriteTimeout = 30
	// DefaultMaxBodyBytes bounds notification bodies. Push services cap
	// payloads at 4KB; the extra headroom covers framing overhead.
	DefaultMaxBodyBytes = 64 * 1024
)

// ServerConfig holds the pushd server configuration.
type ServerConfig struct {
	// Host is the interface the server binds to.
	Host string `yaml:"host"`

	// Port is the HTTP port.
	Port int `yaml:"port"`

	// EndpointURL overrides the base URL used when composing subscription
	// endpoints. Empty means derive it from Host and Port.
	EndpointURL string `yaml:"endpointUrl"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// LogFormat is text or json.
	LogFormat string `yaml:"logFormat"`

	// ReadTimeout and WriteTimeout are in seconds.
	ReadTimeout  int `yaml:"readTimeout"`
	WriteTimeout int `yaml:"writeTimeout"`

	// MaxBodyBytes caps the size of notification bodies.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Host:         DefaultHost,
		Port:         DefaultPort,
		LogLevel:     "info",
		LogFormat:    "text",
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// BaseURL returns the URL under which subscription endpoints are issued.
func (c *ServerConfig) BaseURL() string {
	if c.EndpointURL != "" {
		return c.EndpointURL
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks field ranges.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("maxBodyBytes must be positive")
	}
	return nil
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}
