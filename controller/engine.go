// Package controller implements the controller engine of spec.md §4.D:
// parallel command dispatch to per-robot adapters, abort fan-out, and
// emergency stop. Dispatch groups are structured-concurrency scopes
// (golang.org/x/sync/errgroup) per the §9 "coroutine control flow"
// redesign note: a pipeline update owns all per-robot send tasks as one
// scope; cancellation cancels the scope, abort tasks run in a new scope,
// state refresh runs last.
package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"tasqsym/adapter"
	"tasqsym/logging"
	"tasqsym/model"
)

// AdapterFactory builds a PhysicalRobot from its node-scoped config.
type AdapterFactory func(ctx context.Context, nodeID model.RobotID, configs map[string]any, logger logging.Logger) (adapter.PhysicalRobot, error)

type dispatchHandle struct {
	cancel context.CancelFunc
}

// Engine is the controller engine: adapter map + latest combined state +
// the active dispatch handle that skill.CancelTask reaches into.
type Engine struct {
	logger logging.Logger

	adapters map[model.RobotID]adapter.PhysicalRobot
	sensors  map[model.RobotID]adapter.PhysicalSensor
	// sensorParent/sensorParentLink let GetSensorTransform resolve a
	// sensor node's pose through the adapter chain it is mounted on,
	// since PhysicalSensor itself carries no link-transform method.
	sensorParent     map[model.RobotID]model.RobotID
	sensorParentLink map[model.RobotID]string

	mu            sync.RWMutex
	latestState   model.CombinedRobotState
	active        *dispatchHandle
	emergencyFlag atomic.Bool
}

// NewEngine walks the same topology tree as the kinematics engine,
// instantiating an adapter per node with a non-empty PhysicalRobot name
// and a sensor per node with a non-empty PhysicalSensor name, connecting
// all of them in parallel, and short-circuiting (disconnecting what
// already connected) on the first failure.
func NewEngine(ctx context.Context, topology model.TopologyConfig, adapterFactories *AdapterRegistry, sensorFactories *SensorRegistry, logger logging.Logger) (*Engine, error) {
	e := &Engine{
		logger:           logger,
		adapters:         make(map[model.RobotID]adapter.PhysicalRobot),
		sensors:          make(map[model.RobotID]adapter.PhysicalSensor),
		sensorParent:     make(map[model.RobotID]model.RobotID),
		sensorParentLink: make(map[model.RobotID]string),
	}

	type pendingRobot struct {
		id      model.RobotID
		name    string
		configs map[string]any
	}
	type pendingSensor struct {
		id         model.RobotID
		name       string
		configs    map[string]any
		parent     model.RobotID
		parentLink string
	}
	var robots []pendingRobot
	var sensors []pendingSensor
	var walk func(n model.TopologyNode, parentID model.RobotID)
	walk = func(n model.TopologyNode, parentID model.RobotID) {
		if n.PhysicalRobot != "" {
			robots = append(robots, pendingRobot{id: n.UniqueID, name: n.PhysicalRobot, configs: n.Configs})
		}
		if n.PhysicalSensor != "" {
			sensors = append(sensors, pendingSensor{id: n.UniqueID, name: n.PhysicalSensor, configs: n.Configs, parent: parentID, parentLink: n.ParentLink})
		}
		for _, c := range n.Children {
			walk(c, n.UniqueID)
		}
	}
	for _, root := range topology.Models {
		walk(root, "")
	}

	for _, p := range robots {
		factory, ok := adapterFactories.registry.Lookup(p.name)
		if !ok {
			return nil, errors.Errorf("controller: unknown adapter %q for node %q", p.name, p.id)
		}
		a, err := factory(ctx, p.id, p.configs, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "controller: constructing adapter %q for node %q", p.name, p.id)
		}
		e.adapters[p.id] = a
	}
	if sensorFactories != nil {
		for _, s := range sensors {
			factory, ok := sensorFactories.registry.Lookup(s.name)
			if !ok {
				return nil, errors.Errorf("controller: unknown sensor %q for node %q", s.name, s.id)
			}
			sn, err := factory(ctx, s.id, s.configs, logger)
			if err != nil {
				return nil, errors.Wrapf(err, "controller: constructing sensor %q for node %q", s.name, s.id)
			}
			e.sensors[s.id] = sn
			e.sensorParent[s.id] = s.parent
			e.sensorParentLink[s.id] = s.parentLink
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	var connected sync.Map
	for id, a := range e.adapters {
		id, a := id, a
		g.Go(func() error {
			if err := a.Connect(gctx); err != nil {
				return errors.Wrapf(err, "controller: connecting adapter %q", id)
			}
			connected.Store(id, true)
			return nil
		})
	}
	for id, s := range e.sensors {
		id, s := id, s
		g.Go(func() error {
			if err := s.Connect(gctx); err != nil {
				return errors.Wrapf(err, "controller: connecting sensor %q", id)
			}
			connected.Store(id, true)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		connected.Range(func(key, _ any) bool {
			id := key.(model.RobotID)
			if a, ok := e.adapters[id]; ok {
				_ = a.Disconnect(context.Background())
			}
			if s, ok := e.sensors[id]; ok {
				_ = s.Disconnect(context.Background())
			}
			return true
		})
		return nil, err
	}

	return e, nil
}

// Close disconnects every adapter and sensor in parallel.
func (e *Engine) Close(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for id, a := range e.adapters {
		id, a := id, a
		g.Go(func() error {
			if err := a.Disconnect(gctx); err != nil {
				return errors.Wrapf(err, "controller: disconnecting adapter %q", id)
			}
			return nil
		})
	}
	for id, s := range e.sensors {
		id, s := id, s
		g.Go(func() error {
			if err := s.Disconnect(gctx); err != nil {
				return errors.Wrapf(err, "controller: disconnecting sensor %q", id)
			}
			return nil
		})
	}
	return g.Wait()
}

// SetEmergencyStopRequest is how skill.CancelTask(emergency=true) tells an
// in-flight dispatch to exit with Aborted without running abort* (spec.md
// §4.D/§4.F).
func (e *Engine) SetEmergencyStopRequest(v bool) {
	e.emergencyFlag.Store(v)
}

// HasActiveDispatch reports whether an Update call is currently in flight.
func (e *Engine) HasActiveDispatch() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active != nil
}

// CancelActiveDispatch cancels the in-flight dispatch's context, if any,
// triggering the abort-fanout path in Update. Returns false if there was
// nothing to cancel (bad timing; caller should retry, per spec.md §4.F).
func (e *Engine) CancelActiveDispatch() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return false
	}
	e.active.cancel()
	return true
}

// LatestState returns the last combined state observed.
func (e *Engine) LatestState() model.CombinedRobotState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latestState
}

// EmergencyStop unconditionally fans out emergencyStop to every adapter in
// parallel (spec.md §4.D).
func (e *Engine) EmergencyStop(ctx context.Context) model.Status {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	failed := false
	for id, a := range e.adapters {
		id, a := id, a
		g.Go(func() error {
			st := a.EmergencyStop(gctx)
			if !st.Ok() {
				mu.Lock()
				failed = true
				mu.Unlock()
				e.logger.Warnw("emergencyStop failed on adapter", "robot_id", id, "status", st)
			}
			return nil
		})
	}
	_ = g.Wait()
	if failed {
		return model.Status{Kind: model.StatusUnexpected, Message: "one or more adapters failed emergencyStop"}
	}
	return model.Success("emergency stop fanned out to all adapters")
}
