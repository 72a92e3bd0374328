// Package config loads server configuration from a JSON or YAML file.
// Values are expanded against the environment, layered over defaults, and
// validated before anything starts.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edequartel/BrailleServer/device"
	"github.com/edequartel/BrailleServer/errors"
)

// ReconnectConfig mirrors the device reconnect policy with file-friendly
// millisecond fields.
type ReconnectConfig struct {
	Enabled        bool    `json:"enabled"          yaml:"enabled"`
	InitialDelayMS int     `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	MaxDelayMS     int     `json:"max_delay_ms"     yaml:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier"       yaml:"multiplier"`
}

// DeviceConfig configures the bridge connection
type DeviceConfig struct {
	SocketURL     string          `json:"socket_url"      yaml:"socket_url"`
	BaseURL       string          `json:"base_url"        yaml:"base_url"`
	DisplayPath   string          `json:"display_path"    yaml:"display_path"`
	ClearPath     string          `json:"clear_path"      yaml:"clear_path"`
	SendTimeoutMS int             `json:"send_timeout_ms" yaml:"send_timeout_ms"`
	SendRate      float64         `json:"send_rate"       yaml:"send_rate"`
	Reconnect     ReconnectConfig `json:"reconnect"       yaml:"reconnect"`
}

// GatewayConfig configures the browser-facing HTTP server
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Config is the full server configuration
type Config struct {
	LogLevel  string `json:"log_level"  yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	// Language selects the capital-sign variant ("en" or "nl")
	Language string `json:"language" yaml:"language"`

	// Cells is the display width
	Cells int `json:"cells" yaml:"cells"`

	// AutoRun chains the next activity after a natural completion
	AutoRun bool `json:"auto_run" yaml:"auto_run"`

	// ContentDir holds the lesson files; empty disables content loading
	ContentDir string `json:"content_dir" yaml:"content_dir"`

	// FlashIntervalMS is the per-word dwell time of the flash activity
	FlashIntervalMS int `json:"flash_interval_ms" yaml:"flash_interval_ms"`

	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Device  DeviceConfig  `json:"device"  yaml:"device"`
}

// DefaultConfig returns the recognized defaults
func DefaultConfig() Config {
	dev := device.DefaultConfig()
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Language:        "nl",
		Cells:           40,
		AutoRun:         false,
		FlashIntervalMS: 2000,
		Gateway: GatewayConfig{
			Host: "localhost",
			Port: 8090,
		},
		Device: DeviceConfig{
			SocketURL:     dev.SocketURL,
			BaseURL:       dev.BaseURL,
			DisplayPath:   dev.DisplayPath,
			ClearPath:     dev.ClearPath,
			SendTimeoutMS: int(dev.SendTimeout / time.Millisecond),
			SendRate:      dev.SendRate,
			Reconnect: ReconnectConfig{
				Enabled:        dev.Reconnect.Enabled,
				InitialDelayMS: int(dev.Reconnect.InitialDelay / time.Millisecond),
				MaxDelayMS:     int(dev.Reconnect.MaxDelay / time.Millisecond),
				Multiplier:     dev.Reconnect.Multiplier,
			},
		},
	}
}

// Load reads a config file over the defaults. The extension picks the
// format: .yaml/.yml is YAML, anything else JSON. Environment references
// ($VAR or ${VAR}) are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WrapUsage(err, "Config", "Load", "read config file")
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(expanded, &cfg)
	default:
		err = json.Unmarshal(expanded, &cfg)
	}
	if err != nil {
		return Config{}, errors.WrapUsage(err, "Config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log level %q", c.LogLevel))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log format %q", c.LogFormat))
	}

	if c.Language != "en" && c.Language != "nl" {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unsupported language %q", c.Language))
	}

	if c.Cells <= 0 {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "cells must be positive")
	}

	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("gateway port %d out of range", c.Gateway.Port))
	}

	if c.FlashIntervalMS <= 0 {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "flash_interval_ms must be positive")
	}

	deviceCfg := c.DeviceConfig()
	if err := deviceCfg.Validate(); err != nil {
		return err
	}
	return nil
}

// DeviceConfig converts the file representation to the device package config
func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		SocketURL:   c.Device.SocketURL,
		BaseURL:     c.Device.BaseURL,
		DisplayPath: c.Device.DisplayPath,
		ClearPath:   c.Device.ClearPath,
		Cells:       c.Cells,
		SendTimeout: time.Duration(c.Device.SendTimeoutMS) * time.Millisecond,
		SendRate:    c.Device.SendRate,
		Reconnect: device.ReconnectConfig{
			Enabled:      c.Device.Reconnect.Enabled,
			InitialDelay: time.Duration(c.Device.Reconnect.InitialDelayMS) * time.Millisecond,
			MaxDelay:     time.Duration(c.Device.Reconnect.MaxDelayMS) * time.Millisecond,
			Multiplier:   c.Device.Reconnect.Multiplier,
		},
	}
}

// GatewayAddr returns the gateway listen address
func (c *Config) GatewayAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// FlashInterval returns the flash dwell time as a duration
func (c *Config) FlashInterval() time.Duration {
	return time.Duration(c.FlashIntervalMS) * time.Millisecond
}
