// Package stages provides the stage executor registry and the built-in
// stage types. The registry is an explicit object wired into each
// engine, so isolated engines never share executor state.
package stages

import (
	"fmt"
	"sync"

	"workflow-engine/internal/pipeline/core"
)

// Registry maps a stage type tag to a factory producing a stage
// execution function. It implements core.StageRegistry.
type Registry struct {
	factories map[string]core.StageFactory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]core.StageFactory),
	}
}

// NewDefaultRegistry creates a registry pre-populated with the built-in
// stage types.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register associates a stage type with a factory. Registering an
// already-known type replaces the factory: the built-ins are
// placeholders meant to be overridden with real behavior.
func (r *Registry) Register(stageType string, factory core.StageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[stageType] = factory
}

// Build resolves the stage's type and produces its execution function
func (r *Registry) Build(cfg core.StageConfig, collab core.Collaborators) (core.StageFunc, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("stage type %q not registered", cfg.Type)
	}

	return factory(cfg, collab), nil
}

// IsRegistered reports whether a stage type is known
func (r *Registry) IsRegistered(stageType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[stageType]
	return exists
}

// Types returns all registered stage types
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for stageType := range r.factories {
		types = append(types, stageType)
	}
	return types
}
