package controller

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"tasqsym/model"
)

// updateActualRobotStates fans out a parallel LatestState poll to every
// adapter and stores the combined result. Invariant §8.3: after this call
// every id in the registry appears in the returned state exactly once.
func (e *Engine) updateActualRobotStates(ctx context.Context) model.CombinedRobotState {
	states := make(map[model.RobotID]model.RobotState, len(e.adapters))
	var mu sync.Mutex
	var anyErr bool

	g, gctx := errgroup.WithContext(ctx)
	for id, a := range e.adapters {
		id, a := id, a
		g.Go(func() error {
			st, err := a.LatestState(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				anyErr = true
				e.logger.Warnw("failed to poll latest state", "robot_id", id, "error", err)
				// Invariant §8.3: every id must appear exactly once even on
				// failure; report the zero-value state and flag the
				// overall status instead of dropping the entry.
				states[id] = model.RobotState{}
				return nil
			}
			states[id] = st
			return nil
		})
	}
	_ = g.Wait()

	status := model.Success("state refreshed")
	if anyErr {
		status = model.Status{Kind: model.StatusUnexpected, Message: "one or more adapters failed to report latest state"}
	}

	combined := model.CombinedRobotState{RobotStates: states, Status: status}
	e.mu.Lock()
	e.latestState = combined
	e.mu.Unlock()
	return combined
}
