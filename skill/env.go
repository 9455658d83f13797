package skill

import (
	"tasqsym/adapter"
	"tasqsym/logging"
	"tasqsym/model"
	"tasqsym/pipeline"
)

// Env is the explicit, per-run execution context threaded through the
// skill loop. Per spec.md §9's redesign note ("Focus-selection state as
// session-scoped... re-architect as explicit parameters passed down the
// skill call"), focus selection lives here rather than as mutable state
// hanging off the kinematics engine's lifetime; the kinematics registry
// itself stays immutable after init.
type Env struct {
	Pipeline *pipeline.Pipeline
	Combiner adapter.RobotCombiner
	Logger   logging.Logger

	FocusEndEffector model.RobotID
	FocusSensors     map[adapter.SensorType]model.RobotID
}

// NewEnv builds a fresh per-task Env.
func NewEnv(p *pipeline.Pipeline, combiner adapter.RobotCombiner, logger logging.Logger) *Env {
	return &Env{
		Pipeline:     p,
		Combiner:     combiner,
		Logger:       logger,
		FocusSensors: make(map[adapter.SensorType]model.RobotID),
	}
}
