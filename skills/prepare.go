// Package skills implements the built-in skill library of spec.md §4.J:
// prepare, find, look, grasp, pick, bring, place, release and navigation,
// grounded on original_source/src/tasqsym/library/*/*.py.
package skills

import (
	"context"

	"tasqsym/blackboard"
	"tasqsym/model"
	"tasqsym/skill"
)

// PrepareDecoder takes no parameters; prepare always issues InitRobot to
// every registered robot, grounded on library/prepare/prepare.py.
type PrepareDecoder struct{}

func NewPrepareDecoder() skill.Decoder { return &PrepareDecoder{} }

func (d *PrepareDecoder) Decode(ctx context.Context, params map[string]any, board *blackboard.Blackboard) model.Status {
	return model.Success("")
}

func (d *PrepareDecoder) FillRuntimeParameters(ctx context.Context, params map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	return model.Success("")
}

func (d *PrepareDecoder) AsConfig() map[string]any { return map[string]any{} }
func (d *PrepareDecoder) IsReadyForExecution() bool { return true }

// Prepare issues a single InitRobot action to every robot known to the
// controller, then terminates on the next iteration.
type Prepare struct {
	robotIDs []model.RobotID
	step     int
}

func NewPrepare() skill.Skill { return &Prepare{} }

func (s *Prepare) Init(ctx context.Context, env *skill.Env, params map[string]any) model.Status {
	s.robotIDs = nil
	for _, id := range env.Pipeline.Kinematics.IDs() {
		if entry, ok := env.Pipeline.Kinematics.Entry(id); ok && entry.Role == model.RoleSensor {
			continue
		}
		s.robotIDs = append(s.robotIDs, id)
	}
	return model.Success("")
}

func (s *Prepare) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Prepare) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Prepare) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Prepare) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	return map[string]any{"terminate": obs["observable_timestep"] == 1}, nil
}

func (s *Prepare) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Prepare) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	out := model.NewCombinedRobotAction("prepare")
	for _, id := range s.robotIDs {
		out.Actions[id] = []model.RobotAction{model.InitRobotAction()}
	}
	return out, nil
}

func (s *Prepare) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Prepare) Interruptible() bool { return true }
