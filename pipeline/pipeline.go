// Package pipeline implements the engine pipeline orchestrator of spec.md
// §4.E: the ordered chain kinematics -> controller -> (optional
// simulators) traversed on every step, plus load-time and init-time
// orchestration.
package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"tasqsym/controller"
	"tasqsym/kinematics"
	"tasqsym/logging"
	"tasqsym/model"
)

// OptionalEngine is the shape shared by the data/world-constructor/
// physics/rendering engines: transparent pass-throughs identical in shape,
// present only when configured (spec.md §4.E).
type OptionalEngine interface {
	Close(ctx context.Context) error
	Update(ctx context.Context, in model.CombinedRobotAction) model.Status
	Reset(ctx context.Context) error
	LoadComponents(ctx context.Context, classIDs []string) error
	LoadRobot(ctx context.Context) error
}

// SpawnComponent is one component the (optional) world constructor wants
// loaded. A ClassID is loaded at most once per Pipeline.
type SpawnComponent struct {
	ClassID string
	Data    map[string]any
}

// WorldConstructor queries spawn components for a load pass.
type WorldConstructor interface {
	SpawnComponents(ctx context.Context, params map[string]any) ([]SpawnComponent, error)
}

// Pipeline owns the kinematics + controller engines plus optional
// data/world-constructor/physics/rendering engines.
type Pipeline struct {
	logger logging.Logger

	Kinematics *kinematics.Engine
	Controller *controller.Engine

	Data             OptionalEngine
	WorldConstructor WorldConstructor
	PhysicsSim       OptionalEngine
	RenderingSim     OptionalEngine

	loadedClassIDs map[string]bool
}

// New wires together already-constructed engines. Kinematics and
// Controller must both be non-nil (spec.md §4.E "Validates that
// kinematics and controller fields are present and non-null").
func New(kin *kinematics.Engine, ctrl *controller.Engine, logger logging.Logger) (*Pipeline, error) {
	if kin == nil || ctrl == nil {
		return nil, errors.New("pipeline: kinematics and controller engines are required")
	}
	return &Pipeline{
		logger:         logger,
		Kinematics:     kin,
		Controller:     ctrl,
		loadedClassIDs: make(map[string]bool),
	}, nil
}

// Close cleanly closes every configured engine in parallel.
func (p *Pipeline) Close(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.Controller != nil {
		g.Go(func() error { return p.Controller.Close(gctx) })
	}
	if p.Data != nil {
		g.Go(func() error { return p.Data.Close(gctx) })
	}
	if p.PhysicsSim != nil {
		g.Go(func() error { return p.PhysicsSim.Close(gctx) })
	}
	if p.RenderingSim != nil {
		g.Go(func() error { return p.RenderingSim.Close(gctx) })
	}
	return g.Wait()
}

// CallEnvironmentLoadPipeline queries the world constructor (if any) for
// spawn components, snapshots current robot state, then issues reset/
// loadComponents/loadRobot to any simulation engines (spec.md §4.E).
// Class ids already loaded by an earlier call on this Pipeline are dropped;
// PhysicsSim and RenderingSim each receive the same remaining list, and
// whether the two engines share one world is not taken into account.
func (p *Pipeline) CallEnvironmentLoadPipeline(ctx context.Context, params map[string]any) (model.CombinedRobotState, model.Status) {
	var components []SpawnComponent
	if p.WorldConstructor != nil {
		var err error
		components, err = p.WorldConstructor.SpawnComponents(ctx, params)
		if err != nil {
			return model.CombinedRobotState{}, model.Failed("world constructor: " + err.Error())
		}
	}

	snapshot := p.Controller.LatestState()

	var classIDs []string
	for _, c := range components {
		if p.loadedClassIDs[c.ClassID] {
			continue
		}
		p.loadedClassIDs[c.ClassID] = true
		classIDs = append(classIDs, c.ClassID)
	}

	for _, eng := range []OptionalEngine{p.PhysicsSim, p.RenderingSim} {
		if eng == nil {
			continue
		}
		if err := eng.Reset(ctx); err != nil {
			return snapshot, model.Failed("reset: " + err.Error())
		}
		if len(classIDs) > 0 {
			if err := eng.LoadComponents(ctx, classIDs); err != nil {
				return snapshot, model.Failed("loadComponents: " + err.Error())
			}
		}
		if err := eng.LoadRobot(ctx); err != nil {
			return snapshot, model.Failed("loadRobot: " + err.Error())
		}
	}

	return snapshot, model.Success("environment loaded")
}

// CallEnvironmentUpdatePipeline is the per-step hot path: kinematics.update
// -> controller.update -> (optional) physics.update -> (optional)
// rendering.update. Each stage sees the output of the previous stage; any
// non-success short-circuits and propagates (spec.md §4.E, §5 "within a
// step, kinematics.update completes before controller.update begins;
// physics before rendering").
func (p *Pipeline) CallEnvironmentUpdatePipeline(ctx context.Context, actions model.CombinedRobotAction) (model.CombinedRobotState, model.Status) {
	annotated, err := p.Kinematics.Update(ctx, actions)
	if err != nil {
		return model.CombinedRobotState{}, model.Failed("kinematics: " + err.Error())
	}

	state, status := p.Controller.Update(ctx, annotated)
	if !status.Ok() {
		return state, status
	}

	if p.PhysicsSim != nil {
		if st := p.PhysicsSim.Update(ctx, annotated); !st.Ok() {
			return state, st
		}
	}
	if p.RenderingSim != nil {
		if st := p.RenderingSim.Update(ctx, annotated); !st.Ok() {
			return state, st
		}
	}

	return state, status
}
