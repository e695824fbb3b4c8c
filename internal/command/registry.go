package command

import (
	"context"
	"sort"
	"sync"
)

// Handler implements a single command. Args arrive as individual
// variadic values, in the order they appeared on the command line.
type Handler func(ctx context.Context, args ...string) (any, error)

// Registry maps normalized command names to handlers. It is built once
// at startup and handed to the Dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register stores h under the normalized name. A later registration for
// the same name replaces the earlier one. Names that normalize to the
// empty string are ignored since Parse can never produce them.
func (r *Registry) Register(name string, h Handler) {
	key := Normalize(name)
	if key == "" || h == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
}

// Lookup returns the handler registered under the normalized name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[Normalize(name)]
	return h, ok
}

// Names returns all registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
