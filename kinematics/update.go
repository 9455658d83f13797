package kinematics

import (
	"context"

	"tasqsym/model"
)

// Update is the kinematics-engine update pass of spec.md §4.C. For every
// robot id in the command map, it inspects each action's SolveByType,
// warns (non-fatally) on duplicate FK/Nav/Init goals for one robot in one
// step, and copies the action through unchanged into the output bundle.
// It then updates the action log per invariant §8.2: every known robot's
// MostLatestActionTypes is reset to [NullAction], then overwritten with the
// types actually seen this step for commanded robots; LastActions[type] is
// replaced (not appended) with this step's actions of that type.
//
// Per spec.md §9's documented ambiguity, robots absent from the command
// map have MostLatestActionTypes zeroed but keep their stale LastActions —
// that memory is not cleared for uncommanded robots.
func (e *Engine) Update(ctx context.Context, in model.CombinedRobotAction) (model.CombinedRobotAction, error) {
	out := model.NewCombinedRobotAction(in.Task)

	for id, actions := range in.Actions {
		seenTypesThisStep := make(map[model.SolveByType][]model.RobotAction)
		seenOrder := make([]model.SolveByType, 0, len(actions))

		var sawFK, sawNav, sawInit int
		outActions := make([]model.RobotAction, 0, len(actions))
		for _, a := range actions {
			outActions = append(outActions, a)
			if a.SolveBy == model.SolveByNull {
				continue
			}
			if _, exists := seenTypesThisStep[a.SolveBy]; !exists {
				seenOrder = append(seenOrder, a.SolveBy)
			}
			seenTypesThisStep[a.SolveBy] = append(seenTypesThisStep[a.SolveBy], a)

			switch a.SolveBy {
			case model.SolveByFK:
				sawFK++
			case model.SolveByNav3D:
				sawNav++
			case model.SolveByInit:
				sawInit++
			}
		}
		if sawFK > 1 {
			e.logger.Warnw("duplicate FK goals for robot in one step", "robot_id", id, "count", sawFK)
		}
		if sawNav > 1 {
			e.logger.Warnw("duplicate Nav3D goals for robot in one step", "robot_id", id, "count", sawNav)
		}
		if sawInit > 1 {
			e.logger.Warnw("duplicate InitRobot goals for robot in one step", "robot_id", id, "count", sawInit)
		}

		out.Actions[id] = outActions

		e.mu.Lock()
		if len(seenOrder) == 0 {
			e.log.MostLatestActionTypes[id] = []model.SolveByType{model.SolveByNull}
		} else {
			e.log.MostLatestActionTypes[id] = seenOrder
			if e.log.LastActions[id] == nil {
				e.log.LastActions[id] = make(map[model.SolveByType][]model.RobotAction)
			}
			for t, acts := range seenTypesThisStep {
				e.log.LastActions[id][t] = acts
			}
		}
		e.mu.Unlock()
	}

	// Every known robot not present in the command map resets to
	// [NullAction] but keeps its prior LastActions (documented ambiguity).
	e.mu.Lock()
	for id := range e.nodes {
		if _, commanded := in.Actions[id]; !commanded {
			e.log.MostLatestActionTypes[id] = []model.SolveByType{model.SolveByNull}
		}
	}
	e.mu.Unlock()

	return out, nil
}
