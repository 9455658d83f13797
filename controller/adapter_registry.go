package controller

import "tasqsym/registry"

// AdapterRegistry is the name->AdapterFactory registry resolved at
// topology init time (spec.md §9).
type AdapterRegistry struct {
	registry *registry.Registry[AdapterFactory]
}

// NewAdapterRegistry returns an empty adapter registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{registry: registry.New[AdapterFactory]()}
}

// Register adds an adapter factory under name.
func (r *AdapterRegistry) Register(name string, factory AdapterFactory) {
	r.registry.Register(name, factory)
}
