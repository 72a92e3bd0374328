// Package health aggregates per-component health into one service status
package health

import (
	"time"

	"github.com/edequartel/BrailleServer/component"
)

// State is the aggregate service state
type State string

// Aggregate states
const (
	StateUp       State = "up"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// ComponentStatus is the reported health of one component
type ComponentStatus struct {
	Healthy    bool          `json:"healthy"`
	ErrorCount int           `json:"errorCount"`
	LastError  string        `json:"lastError,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// Status is the aggregate service health
type Status struct {
	State      State                      `json:"state"`
	Components map[string]ComponentStatus `json:"components"`
	CheckedAt  time.Time                  `json:"checkedAt"`
}

// Healthy reports whether every component is healthy
func (s Status) Healthy() bool {
	return s.State == StateUp
}

// FromComponents aggregates component healths: all healthy is up, some is
// degraded, none (or no components) is down.
func FromComponents(healths map[string]component.HealthStatus) Status {
	status := Status{
		Components: make(map[string]ComponentStatus, len(healths)),
		CheckedAt:  time.Now(),
	}

	healthy := 0
	for name, h := range healths {
		status.Components[name] = ComponentStatus{
			Healthy:    h.Healthy,
			ErrorCount: h.ErrorCount,
			LastError:  h.LastError,
			Uptime:     h.Uptime,
		}
		if h.Healthy {
			healthy++
		}
	}

	switch {
	case len(healths) == 0 || healthy == 0:
		status.State = StateDown
	case healthy == len(healths):
		status.State = StateUp
	default:
		status.State = StateDegraded
	}
	return status
}
