// Package registry is the dynamic-dispatch-by-name replacement called for
// in spec.md §9: "Dynamic dispatch by name strings... Re-architect as a
// registry: at startup, each binary registers a factory by name into a
// global (or injected) map returning a trait object. Configuration
// carries names; the registry resolves them. Unknown names are a
// configuration-time Failed, not a runtime crash." Grounded on
// `resource.Register`/`LookupRegistration`/`Deregister` (the teacher's
// resource/resource_registry_test.go).
package registry

import (
	"fmt"
	"sync"
)

// Registry is a generic name -> factory map, one instance per kind of
// pluggable thing (model robots, physical robots, physical sensors,
// combiners, skills, decoders).
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Register adds a factory under name, panicking on a duplicate name the
// same way the teacher's resource.Register does for a bad registration —
// this is a programming error caught at binary-startup time, not a
// runtime/config error.
func (r *Registry[T]) Register(name string, item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[name]; exists {
		panic(fmt.Sprintf("registry: duplicate registration for %q", name))
	}
	r.items[name] = item
}

// Deregister removes a registration, if any.
func (r *Registry[T]) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, name)
}

// Lookup resolves a name. Unknown names are the caller's configuration-time
// Failed, not a panic.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	return item, ok
}

// Names returns every registered name, useful for diagnostics.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for n := range r.items {
		names = append(names, n)
	}
	return names
}
