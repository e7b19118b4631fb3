// Package config loads the hub configuration file. Values in the file may
// reference environment variables with ${VAR} syntax; flags in main override
// individual fields.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full hub configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Liveness LivenessConfig `yaml:"liveness"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LivenessConfig configures the connection probe loop.
type LivenessConfig struct {
	Interval string `yaml:"interval"`
}

// DatabaseConfig points at PostgreSQL. An empty URL selects the in-memory
// store (development mode).
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// MQTTConfig configures the optional telemetry bridge. An empty broker
// disables it.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.setDefaults()
	return cfg
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5003"
	}
	if c.Liveness.Interval == "" {
		c.Liveness.Interval = "5s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.Liveness.Interval); err != nil {
		return fmt.Errorf("liveness interval: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level: unknown level %q", c.Log.Level)
	}
	return nil
}

// ProbeInterval returns the parsed liveness probe period.
func (c Config) ProbeInterval() time.Duration {
	d, err := time.ParseDuration(c.Liveness.Interval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
