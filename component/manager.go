package component

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/edequartel/BrailleServer/errors"
)

// Manager owns the set of lifecycle components. Registration order is start
// order; shutdown runs in reverse so consumers stop before producers.
type Manager struct {
	mu         sync.Mutex
	components map[string]*managed
	order      []string
	logger     *slog.Logger
	started    bool
}

// NewManager creates an empty component manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		components: make(map[string]*managed),
		logger:     logger,
	}
}

// Register adds a component under its metadata name. Duplicate names are a
// usage error.
func (m *Manager) Register(c Component) error {
	if c == nil {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Manager", "Register", "nil component")
	}

	name := c.Meta().Name
	if name == "" {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Manager", "Register", "component name required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.components[name]; exists {
		return errors.WrapUsage(
			fmt.Errorf("component %q already registered", name),
			"Manager", "Register", "duplicate component")
	}

	m.components[name] = &managed{
		component:  c,
		state:      StateCreated,
		startOrder: len(m.order),
	}
	m.order = append(m.order, name)
	return nil
}

// StartAll initializes and starts every registered component in registration
// order. The first failure stops the sequence and rolls back already-started
// components in reverse.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.WrapUsage(errors.ErrAlreadyConnected, "Manager", "StartAll", "already started")
	}

	started := make([]string, 0, len(m.order))
	for _, name := range m.order {
		mc := m.components[name]

		if err := mc.component.Initialize(); err != nil {
			mc.state = StateFailed
			mc.lastError = err
			m.rollback(started)
			return errors.Wrap(err, "Manager", "StartAll", fmt.Sprintf("initialize %s", name))
		}
		mc.state = StateInitialized

		componentCtx, cancel := context.WithCancel(ctx)
		mc.cancel = cancel

		m.logger.Info("starting component", "component", name)
		if err := mc.component.Start(componentCtx); err != nil {
			cancel()
			mc.state = StateFailed
			mc.lastError = err
			m.rollback(started)
			return errors.Wrap(err, "Manager", "StartAll", fmt.Sprintf("start %s", name))
		}
		mc.state = StateStarted
		started = append(started, name)
	}

	m.started = true
	return nil
}

// rollback stops the named components in reverse start order. Callers hold m.mu.
func (m *Manager) rollback(started []string) {
	for i := len(started) - 1; i >= 0; i-- {
		mc := m.components[started[i]]
		if mc.cancel != nil {
			mc.cancel()
		}
		if err := mc.component.Stop(5 * time.Second); err != nil {
			m.logger.Warn("rollback stop failed", "component", started[i], "error", err)
		}
		mc.state = StateStopped
	}
}

// StopAll stops all started components in reverse start order, dividing the
// timeout among them. The last error wins; every component is still attempted.
func (m *Manager) StopAll(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	names := make([]string, 0, len(m.components))
	for name, mc := range m.components {
		if mc.state == StateStarted {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return m.components[names[i]].startOrder > m.components[names[j]].startOrder
	})

	perComponent := timeout
	if len(names) > 0 {
		perComponent = timeout / time.Duration(len(names))
	}

	var lastErr error
	for _, name := range names {
		mc := m.components[name]
		if mc.cancel != nil {
			mc.cancel()
		}

		m.logger.Info("stopping component", "component", name)
		if err := mc.component.Stop(perComponent); err != nil {
			m.logger.Error("component stop failed", "component", name, "error", err)
			mc.lastError = err
			lastErr = err
		}
		mc.state = StateStopped
	}

	m.started = false
	return lastErr
}

// Health returns the health status of every registered component by name
func (m *Manager) Health() map[string]HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]HealthStatus, len(m.components))
	for name, mc := range m.components {
		out[name] = mc.component.Health()
	}
	return out
}

// States returns the lifecycle state of every registered component by name
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]State, len(m.components))
	for name, mc := range m.components {
		out[name] = mc.state
	}
	return out
}
