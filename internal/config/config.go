// Package config loads service configuration from built-in defaults, an
// optional YAML file and VOICEBRIDGE_* environment variables, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "VOICEBRIDGE"

// Config holds all configuration for the voicebridge service.
type Config struct {
	Port      int             `yaml:"port" envconfig:"PORT"`
	Version   string          `yaml:"version" envconfig:"VERSION"`
	APIKeys   []string        `yaml:"api_keys" envconfig:"API_KEYS"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Remote    RemoteConfig    `yaml:"remote" envconfig:"REMOTE"`
	Telemetry TelemetryConfig `yaml:"otel" envconfig:"OTEL"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"` // console | json
}

type StoreConfig struct {
	Driver         string `yaml:"driver" envconfig:"DRIVER"` // memory | sqlite | postgres
	DataDir        string `yaml:"data_dir" envconfig:"DATA_DIR"`
	SQLitePath     string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	DatabaseURL    string `yaml:"database_url" envconfig:"DATABASE_URL"`
	MaxConnections int    `yaml:"max_connections" envconfig:"MAX_CONNECTIONS"`
}

type RemoteConfig struct {
	BaseURL       string        `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey        string        `yaml:"api_key" envconfig:"API_KEY"`
	CreateTimeout time.Duration `yaml:"create_timeout" envconfig:"CREATE_TIMEOUT"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	Backoff       time.Duration `yaml:"backoff" envconfig:"BACKOFF"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled" envconfig:"ENABLED"`
	OTLPEndpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
	ServiceName  string `yaml:"service_name" envconfig:"SERVICE_NAME"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:    8080,
		Version: "0.1.0",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Driver:         "memory",
			DataDir:        "",
			SQLitePath:     "voicebridge.db",
			MaxConnections: 10,
		},
		Remote: RemoteConfig{
			BaseURL:       "https://api.bland.ai/v1",
			CreateTimeout: 60 * time.Second,
			Timeout:       30 * time.Second,
			MaxAttempts:   5,
			Backoff:       time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "voicebridge",
		},
	}
}

// Load builds the configuration. path may be empty; a missing file named
// explicitly is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// Only variables that are set override the values above.
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Remote.MaxAttempts < 1 {
		errs = append(errs, errors.New("remote.max_attempts must be at least 1"))
	}
	if c.Remote.CreateTimeout <= 0 || c.Remote.Timeout <= 0 {
		errs = append(errs, errors.New("remote timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
