package controller

import (
	"context"

	"tasqsym/adapter"
	"tasqsym/logging"
	"tasqsym/model"
	"tasqsym/registry"
)

// SensorFactory builds a PhysicalSensor from its node-scoped config.
type SensorFactory func(ctx context.Context, nodeID model.RobotID, configs map[string]any, logger logging.Logger) (adapter.PhysicalSensor, error)

// SensorRegistry is the name->SensorFactory registry resolved at topology
// init time, the sensor-side counterpart of AdapterRegistry.
type SensorRegistry struct {
	registry *registry.Registry[SensorFactory]
}

// NewSensorRegistry returns an empty sensor registry.
func NewSensorRegistry() *SensorRegistry {
	return &SensorRegistry{registry: registry.New[SensorFactory]()}
}

// Register adds a sensor factory under name.
func (r *SensorRegistry) Register(name string, factory SensorFactory) {
	r.registry.Register(name, factory)
}
