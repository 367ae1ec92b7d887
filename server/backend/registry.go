package backend

import (
	"fmt"
	"sync"
)

// Registry holds the running backends in registration order.
// The first registered backend serves requests that do not name one.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the registry.
// Returns an error if a backend with the same ID already exists.
func (r *Registry) Register(b Backend) error {
	if b == nil {
		return fmt.Errorf("cannot register nil backend")
	}

	id := b.GetID()
	if id == "" {
		return fmt.Errorf("backend ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[id]; exists {
		return fmt.Errorf("backend with ID %s already registered", id)
	}

	r.backends[id] = b
	r.order = append(r.order, id)
	return nil
}

// Unregister removes a backend and stops it.
// The backend is removed even when Stop fails.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	b, exists := r.backends[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("backend with ID %s not found", id)
	}
	delete(r.backends, id)
	r.order = removeID(r.order, id)
	r.mu.Unlock()

	// Stopping waits for an in-flight poll cycle, so it happens outside the lock.
	if err := b.Stop(); err != nil {
		return fmt.Errorf("failed to stop backend %s: %w", id, err)
	}

	return nil
}

// Get looks up a backend by ID.
func (r *Registry) Get(id string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[id]
	return b, ok
}

// Default returns the earliest registered backend still present.
func (r *Registry) Default() (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, false
	}
	return r.backends[r.order[0]], true
}

// Resolve returns the backend with the given ID, or the default backend when id is empty.
func (r *Registry) Resolve(id string) (Backend, bool) {
	if id == "" {
		return r.Default()
	}
	return r.Get(id)
}

// List returns all registered backends in registration order.
func (r *Registry) List() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.backends[id])
	}
	return out
}

// UnregisterAll stops and removes every backend.
// Returns the first error encountered, but continues with the remaining backends.
func (r *Registry) UnregisterAll() error {
	r.mu.Lock()
	stopping := make([]Backend, 0, len(r.order))
	for _, id := range r.order {
		stopping = append(stopping, r.backends[id])
	}
	r.backends = make(map[string]Backend)
	r.order = nil
	r.mu.Unlock()

	var firstErr error
	for _, b := range stopping {
		if err := b.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to stop backend %s: %w", b.GetID(), err)
		}
	}
	return firstErr
}

// Count returns the number of registered backends.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.backends)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
