package device

import (
	"net/url"
	"time"

	"github.com/edequartel/BrailleServer/errors"
)

// ReconnectConfig controls the exponential backoff between reconnect attempts
type ReconnectConfig struct {
	Enabled      bool          `json:"enabled"       yaml:"enabled"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"     yaml:"max_delay"`
	Multiplier   float64       `json:"multiplier"    yaml:"multiplier"`
}

// Config holds configuration for the bridge device client
type Config struct {
	// SocketURL is the bridge's websocket event endpoint (ws:// or wss://)
	SocketURL string `json:"socket_url" yaml:"socket_url"`

	// BaseURL is the bridge's HTTP base address for display requests
	BaseURL string `json:"base_url" yaml:"base_url"`

	// DisplayPath and ClearPath are the request paths under BaseURL
	DisplayPath string `json:"display_path" yaml:"display_path"`
	ClearPath   string `json:"clear_path"   yaml:"clear_path"`

	// Cells is the display width used when padding outbound lines
	Cells int `json:"cells" yaml:"cells"`

	// SendTimeout bounds a single display request
	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout"`

	// SendRate caps display writes per second; refresh faster than the
	// hardware can raise its pins is wasted
	SendRate float64 `json:"send_rate" yaml:"send_rate"`

	Reconnect ReconnectConfig `json:"reconnect" yaml:"reconnect"`
}

// DefaultConfig returns the recognized defaults for a local bridge
func DefaultConfig() Config {
	return Config{
		SocketURL:   "ws://localhost:5000/ws",
		BaseURL:     "http://localhost:5000",
		DisplayPath: "/display",
		ClearPath:   "/clear",
		Cells:       40,
		SendTimeout: 5 * time.Second,
		SendRate:    10,
		Reconnect: ReconnectConfig{
			Enabled:      true,
			InitialDelay: 2000 * time.Millisecond,
			MaxDelay:     10000 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.SocketURL == "" {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "socket_url is required")
	}
	u, err := url.Parse(c.SocketURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "socket_url must be a ws:// or wss:// URL")
	}

	if c.BaseURL == "" {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return errors.WrapUsage(err, "Config", "Validate", "invalid base_url")
	}

	if c.Cells <= 0 {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "cells must be positive")
	}

	if c.Reconnect.Enabled {
		if c.Reconnect.InitialDelay <= 0 {
			return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "reconnect initial_delay must be positive")
		}
		if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
			return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "reconnect max_delay must be >= initial_delay")
		}
		if c.Reconnect.Multiplier < 1 {
			return errors.WrapUsage(errors.ErrInvalidConfig, "Config", "Validate", "reconnect multiplier must be >= 1")
		}
	}

	return nil
}
