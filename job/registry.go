package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased job body that accepts raw JSON params.
// The typed Definition[T] is converted to a HandlerFunc at registration
// time by closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, m *Manager, params []byte) (*Result, error)

// Registry maps dispatch function names to type-erased handlers and
// their options. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	handler HandlerFunc
	opts    Options
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]registryEntry),
	}
}

// Register registers a typed job definition. The generic handler is
// wrapped in a closure that JSON-unmarshals the params into T before
// calling the typed handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Register[T any](r *Registry, def *Definition[T]) {
	handler := func(ctx context.Context, m *Manager, params []byte) (*Result, error) {
		var t T
		if len(params) > 0 {
			if err := json.Unmarshal(params, &t); err != nil {
				return nil, fmt.Errorf("job: unmarshal params for %q: %w", def.Function, err)
			}
		}
		return def.Handler(ctx, m, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Function] = registryEntry{handler: handler, opts: def.Opts}
}

// Get returns the handler for the given dispatch function name.
// Returns false if no handler is registered.
func (r *Registry) Get(function string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[function]
	return e.handler, ok
}

// Options returns the registered options for the given function.
func (r *Registry) Options(function string) (Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[function]
	return e.opts, ok
}

// Functions returns all registered dispatch function names.
func (r *Registry) Functions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
