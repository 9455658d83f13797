package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tasqsym/adapter"
	"tasqsym/controller"
	"tasqsym/kinematics"
	"tasqsym/logging"
	"tasqsym/model"
)

// EngineConfig carries what Init needs to build the kinematics and
// controller engines: the robot topology and the combiner used for focus
// selection.
type EngineConfig struct {
	Topology model.TopologyConfig
	Combiner adapter.RobotCombiner
}

// Init cleanly closes any previously-running pipeline (if old is non-nil)
// then constructs and initializes a fresh one, per spec.md §4.E: "cleanly
// closes any existing engines (parallel), then constructs and initializes
// each engine (parallel)". Kinematics and controller are always built;
// world_constructor/physics_sim/rendering_sim/data are left to the caller
// to attach afterward since they are adapter-registry-specific and
// transparent pass-throughs.
func Init(ctx context.Context, old *Pipeline, cfg EngineConfig, models *kinematics.ModelRegistry, adapters *controller.AdapterRegistry, sensors *controller.SensorRegistry, logger logging.Logger) (*Pipeline, error) {
	if old != nil {
		if err := old.Close(ctx); err != nil {
			logger.Warnw("error closing previous pipeline", "error", err)
		}
	}

	var kin *kinematics.Engine
	var ctrl *controller.Engine
	var g errgroup.Group
	g.Go(func() (err error) {
		kin, err = kinematics.NewEngine(ctx, cfg.Topology, models, cfg.Combiner, logger.Sublogger("kinematics"))
		return err
	})
	g.Go(func() (err error) {
		ctrl, err = controller.NewEngine(ctx, cfg.Topology, adapters, sensors, logger.Sublogger("controller"))
		return err
	})
	if err := g.Wait(); err != nil {
		if ctrl != nil {
			_ = ctrl.Close(ctx)
		}
		return nil, err
	}

	return New(kin, ctrl, logger)
}
