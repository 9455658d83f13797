package controller

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"tasqsym/adapter"
	"tasqsym/model"
)

// Update is the controller-engine update pass of spec.md §4.D. For every
// (robot, non-empty action list) pair it dispatches by the *first*
// action's SolveByType (the element-0 convention), launches all selected
// calls as sibling concurrent tasks in one structured-concurrency scope,
// and awaits them as a group.
//
// On cancellation: if the emergency-stop flag is set, returns Aborted
// immediately without running any abort* (the stop is being driven
// separately by EmergencyStop). Otherwise it fans out the matching abort*
// to every robot dispatched this step, awaits that group, then returns
// Aborted.
//
// After the dispatch group resolves (success or abort) the engine re-polls
// adapters via updateActualRobotStates and returns the new combined state.
func (e *Engine) Update(ctx context.Context, in model.CombinedRobotAction) (model.CombinedRobotState, model.Status) {
	dispatchCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.active = &dispatchHandle{cancel: cancel}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.active = nil
		e.mu.Unlock()
		cancel()
	}()

	g, gctx := errgroup.WithContext(dispatchCtx)
	var mu sync.Mutex
	statuses := make(map[model.RobotID]model.Status)
	dispatchedType := make(map[model.RobotID]model.SolveByType)

	for id, actions := range in.Actions {
		if len(actions) == 0 {
			continue
		}
		id, actions := id, actions
		dispatchedType[id] = actions[0].SolveBy
		g.Go(func() error {
			a, ok := e.adapters[id]
			if !ok {
				return errors.Errorf("controller: no adapter registered for robot %q", id)
			}
			st := dispatchOne(gctx, a, actions)
			mu.Lock()
			statuses[id] = st
			mu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()

	if dispatchCtx.Err() != nil {
		if e.emergencyFlag.Load() {
			return e.LatestState(), model.Aborted("emergency stop in progress; abort* skipped")
		}
		e.runAbortFanout(dispatchedType)
		newState := e.updateActualRobotStates(context.Background())
		return newState, model.Aborted("dispatch cancelled")
	}

	if waitErr != nil {
		newState := e.updateActualRobotStates(ctx)
		return newState, model.Status{Kind: model.StatusUnexpected, Message: waitErr.Error()}
	}

	newState := e.updateActualRobotStates(ctx)
	return newState, combineStatuses(statuses)
}

// dispatchOne sends the action list to the adapter call matching the
// first action's SolveByType (spec.md §4.D table).
func dispatchOne(ctx context.Context, a adapter.PhysicalRobot, actions []model.RobotAction) model.Status {
	switch actions[0].SolveBy {
	case model.SolveByFK:
		return a.SendJointAngles(ctx, actions)
	case model.SolveByNav3D:
		return a.SendBasePose(ctx, actions)
	case model.SolveByIK:
		return a.SendTargetMotion(ctx, actions)
	case model.SolveByPointTo:
		return a.SendPointToMotion(ctx, actions)
	case model.SolveByCommand:
		return a.SendControlCommand(ctx, actions)
	case model.SolveByInit:
		return a.Init(ctx)
	case model.SolveByNull:
		return model.Success("null action")
	default:
		return model.Unexpected("unknown SolveByType: " + string(actions[0].SolveBy))
	}
}

func abortOne(ctx context.Context, a adapter.PhysicalRobot, firstType model.SolveByType) model.Status {
	switch firstType {
	case model.SolveByFK:
		return a.AbortJointAngles(ctx)
	case model.SolveByNav3D:
		return a.AbortBasePose(ctx)
	case model.SolveByIK:
		return a.AbortTargetMotion(ctx)
	case model.SolveByPointTo:
		return a.AbortPointToMotion(ctx)
	case model.SolveByCommand:
		return a.AbortControlCommand(ctx)
	default:
		// InitRobot and NullAction have no paired abort.
		return model.Success("nothing to abort")
	}
}

// runAbortFanout launches the matching abort* call (paired to the type
// each robot was actually dispatched with) on every robot dispatched this
// step, as its own structured-concurrency scope, and awaits them (spec.md
// §4.D, §5 "aborts are fanned out only after the send group has been
// cancelled, and awaited as their own group").
func (e *Engine) runAbortFanout(dispatchedType map[model.RobotID]model.SolveByType) {
	ag, actx := errgroup.WithContext(context.Background())
	for id, t := range dispatchedType {
		id, t := id, t
		ag.Go(func() error {
			a, ok := e.adapters[id]
			if !ok {
				return nil
			}
			_ = abortOne(actx, a, t)
			return nil
		})
	}
	_ = ag.Wait()
}

func combineStatuses(statuses map[model.RobotID]model.Status) model.Status {
	if len(statuses) == 0 {
		return model.Success("no robots commanded")
	}
	for _, st := range statuses {
		if !st.Ok() {
			return model.Status{Kind: st.Kind, Reason: st.Reason, Message: "one or more robots failed: " + st.Message}
		}
	}
	return model.Success("all robots succeeded")
}
