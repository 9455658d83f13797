package adapter

import (
	"context"

	"github.com/pkg/errors"

	"tasqsym/logging"
	"tasqsym/registry"
)

// CombinerFactory builds a RobotCombiner from the `robot_structure.
// combiner` resolver name and its free-form config (spec.md §6).
type CombinerFactory func(ctx context.Context, configs map[string]any, logger logging.Logger) (RobotCombiner, error)

// CombinerRegistry is the name->CombinerFactory registry resolved at
// setup time (spec.md §9).
type CombinerRegistry struct {
	registry *registry.Registry[CombinerFactory]
}

// NewCombinerRegistry returns an empty combiner registry.
func NewCombinerRegistry() *CombinerRegistry {
	return &CombinerRegistry{registry: registry.New[CombinerFactory]()}
}

// Register adds a combiner factory under name.
func (r *CombinerRegistry) Register(name string, factory CombinerFactory) {
	r.registry.Register(name, factory)
}

// Build resolves name and constructs a RobotCombiner, configs-aware.
func (r *CombinerRegistry) Build(ctx context.Context, name string, configs map[string]any, logger logging.Logger) (RobotCombiner, error) {
	factory, ok := r.registry.Lookup(name)
	if !ok {
		return nil, errors.Errorf("adapter: unknown combiner %q", name)
	}
	return factory(ctx, configs, logger)
}
