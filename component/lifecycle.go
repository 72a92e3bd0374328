// Package component defines the lifecycle contract shared by the server's
// long-lived parts (device client, activity runner, gateway) and a manager
// that starts them in order and stops them in reverse.
package component

import (
	"context"
	"time"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates component was created but not initialized
	StateCreated State = iota
	// StateInitialized indicates component was initialized but not started
	StateInitialized
	// StateStarted indicates component is running
	StateStarted
	// StateStopped indicates component was stopped
	StateStopped
	// StateFailed indicates component failed during lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Metadata describes a component for health reporting and logging
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus reports a component's current health
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// Component defines the lifecycle contract:
//   - Initialize() error                  // Setup/create only, NO context
//   - Start(ctx context.Context) error    // Start with context passed through
//   - Stop(timeout time.Duration) error   // Stop with timeout for graceful shutdown
//
// The component never stores the context it is started with; the Manager owns
// a named child context per component so individual components can be
// cancelled during shutdown.
type Component interface {
	Meta() Metadata
	Health() HealthStatus
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// managed tracks a component and its lifecycle state inside the Manager
type managed struct {
	component  Component
	state      State
	cancel     context.CancelFunc
	startOrder int
	lastError  error
}
