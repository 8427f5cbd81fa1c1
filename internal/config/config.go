// Package config loads viewer configuration from YAML files with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level viewer configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	View    ViewConfig    `yaml:"view"`
	Render  RenderConfig  `yaml:"render"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig locates the upstream stream and its fallback endpoints.
type ServerConfig struct {
	StreamURL   string        `yaml:"stream_url"`
	PollURL     string        `yaml:"poll_url"`
	Token       string        `yaml:"token"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ViewConfig selects the initial projection.
type ViewConfig struct {
	Plane     string  `yaml:"plane"` // xy | xz | yz
	Slice     float64 `yaml:"slice"`
	Tolerance float64 `yaml:"tolerance"`
	Stride    int     `yaml:"stride"`
}

// RenderConfig controls the terminal frame output.
type RenderConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	TargetFPS float64 `yaml:"target_fps"`
	Color     bool    `yaml:"color"`
	Simulate  int     `yaml:"simulate"` // local vortex count when offline
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LogConfig feeds the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML configuration file, fills defaults, and applies
// environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.StreamURL == "" {
		c.Server.StreamURL = "ws://localhost:8080/channel"
	}
	if c.Server.PollURL == "" {
		c.Server.PollURL = "http://localhost:8080/status"
	}
	if c.Server.DialTimeout <= 0 {
		c.Server.DialTimeout = 4 * time.Second
	}
	if c.View.Plane == "" {
		c.View.Plane = "xy"
	}
	if c.View.Tolerance <= 0 {
		c.View.Tolerance = 1.2
	}
	if c.View.Stride < 1 {
		c.View.Stride = 1
	}
	if c.Render.Width <= 0 {
		c.Render.Width = 100
	}
	if c.Render.Height <= 0 {
		c.Render.Height = 32
	}
	if c.Render.TargetFPS <= 0 {
		c.Render.TargetFPS = 30
	}
	if c.Render.Simulate <= 0 {
		c.Render.Simulate = 9
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HOLONET_STREAM_URL"); v != "" {
		c.Server.StreamURL = v
	}
	if v := os.Getenv("HOLONET_POLL_URL"); v != "" {
		c.Server.PollURL = v
	}
	if v := os.Getenv("HOLONET_TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("HOLONET_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("HOLONET_PLANE"); v != "" {
		c.View.Plane = v
	}
	if v := os.Getenv("HOLONET_SLICE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			c.View.Slice = parsed
		}
	}
}

func (c *Config) validate() error {
	switch c.View.Plane {
	case "xy", "xz", "yz":
	default:
		return fmt.Errorf("unknown view plane %q", c.View.Plane)
	}
	return nil
}
