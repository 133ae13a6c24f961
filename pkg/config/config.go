// Package config loads bot settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "10s"-style strings from both YAML
// and environment values.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Config is everything needed to reach a Mirai HTTP API deployment and
// authenticate one bot account.
type Config struct {
	Host    string `yaml:"host" env:"MIRAI_HOST"`
	Port    int    `yaml:"port" env:"MIRAI_PORT"`
	Secure  bool   `yaml:"secure" env:"MIRAI_SECURE"`
	AuthKey string `yaml:"auth_key" env:"MIRAI_AUTH_KEY"`
	QQ      int64  `yaml:"qq" env:"MIRAI_QQ"`

	LogLevel string   `yaml:"log_level" env:"MIRAI_LOG_LEVEL"`
	Timeout  Duration `yaml:"timeout" env:"MIRAI_TIMEOUT"`
}

func defaults() Config {
	return Config{
		Host:     "127.0.0.1",
		Port:     8080,
		LogLevel: "info",
		Timeout:  Duration(10 * time.Second),
	}
}

// Load reads path (skipped when empty or missing), applies MIRAI_* overrides
// from the environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to env only
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields Login cannot proceed without.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("config: host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.AuthKey == "" {
		return errors.New("config: auth_key must not be empty")
	}
	if c.QQ <= 0 {
		return fmt.Errorf("config: invalid qq %d", c.QQ)
	}
	return nil
}
