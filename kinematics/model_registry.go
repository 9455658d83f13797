package kinematics

import "tasqsym/registry"

// ModelRegistry is the name->ModelFactory registry resolved at topology
// init time (spec.md §9).
type ModelRegistry struct {
	registry *registry.Registry[ModelFactory]
}

// NewModelRegistry returns an empty model registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{registry: registry.New[ModelFactory]()}
}

// Register adds a model factory under name.
func (r *ModelRegistry) Register(name string, factory ModelFactory) {
	r.registry.Register(name, factory)
}
