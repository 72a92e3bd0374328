package activity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edequartel/BrailleServer/errors"
)

// Registry maps canonical activity identifiers to handler factories. A fresh
// handler is built per run so handlers may keep per-run state.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewRegistry creates an empty activity registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under an activity identifier
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return errors.WrapUsage(errors.ErrInvalidConfig, "Registry", "Register", "name and factory required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.WrapUsage(
			fmt.Errorf("activity %q already registered", name),
			"Registry", "Register", "duplicate activity")
	}
	r.factories[name] = factory
	return nil
}

// New builds a handler for the named activity, or returns false when no
// module is registered for it.
func (r *Registry) New(name string) (Handler, bool) {
	r.mu.Lock()
	factory, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names returns the registered activity identifiers, sorted
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
