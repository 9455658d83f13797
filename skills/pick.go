package skills

import (
	"context"
	"fmt"
	"math"

	"tasqsym/blackboard"
	"tasqsym/geometry"
	"tasqsym/model"
	"tasqsym/skill"
	"tasqsym/skills/internal/params"
	"tasqsym/skills/internal/trajectory"
)

// PickDecoder resolves @detach_direction (a body-frame vector) into the
// world frame using the base's current orientation, grounded on
// library/pick/pick.py.
type PickDecoder struct {
	detachDirection []float64
	context         string
	raw             map[string]any
}

func NewPickDecoder() skill.Decoder { return &PickDecoder{} }

func (d *PickDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	dir, ok := params.Float64Slice(in["detach_direction"])
	if !ok || len(dir) != 3 {
		return model.Failed("pick: missing or invalid detach_direction")
	}
	d.detachDirection = dir
	d.context = params.StringOr(in, "context", "")
	d.raw = in
	return model.Success("")
}

func (d *PickDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	d.raw = params.Overlay(d.raw, in)
	baseID := env.Pipeline.Kinematics.BaseID()
	latest := env.Pipeline.Controller.LatestState()
	baseState, ok := latest.RobotStates[baseID].MobileBase()
	if !ok {
		return model.Failed("pick: no mobile-base state for base robot")
	}
	body := geometry.Point{X: d.detachDirection[0], Y: d.detachDirection[1], Z: d.detachDirection[2]}
	world := baseState.Orientation.RotateVector(body)
	d.detachDirection = []float64{world.X, world.Y, world.Z}
	return model.Success("")
}

func (d *PickDecoder) AsConfig() map[string]any {
	return params.Overlay(d.raw, map[string]any{
		"detach_direction": d.detachDirection,
		"context":          d.context,
	})
}

func (d *PickDecoder) IsReadyForExecution() bool { return len(d.detachDirection) == 3 }

// Pick lifts the focus end effector straight off its current (or
// logged-desired) pose along the world-frame detach direction, holding
// orientation fixed, grounded on library/pick/pick.py.
type Pick struct {
	manipID               model.RobotID
	sourceLinks           []string
	eefRotation           geometry.Quaternion
	translationTrajectory []geometry.Point
	context               string
	step                  int
}

func NewPick() skill.Skill { return &Pick{} }

func (s *Pick) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	eefID, err := env.Pipeline.Kinematics.SetEndEffectorRobot(ctx, "pick", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("pick: setting focus end effector: %v", err))
	}

	detach, ok := params.Float64Slice(cfg["detach_direction"])
	if !ok || len(detach) != 3 {
		return model.Failed("pick: missing detach_direction config")
	}
	distance := math.Sqrt(detach[0]*detach[0] + detach[1]*detach[1] + detach[2]*detach[2])

	entry, ok := env.Pipeline.Kinematics.Entry(eefID)
	if !ok {
		return model.Failed("pick: end effector entry not found")
	}
	s.manipID = entry.ParentID
	if s.manipID == "" {
		return model.Failed("pick: tried to trigger skill but no target end-effector set")
	}

	latest := env.Pipeline.Controller.LatestState()
	links, pose, ok := trajectory.PoseToMaintain(env.Pipeline.Kinematics.ActionLog(), latest, eefID, s.manipID, model.ContactCenter)
	if !ok {
		return model.Failed("pick: could not resolve end-effector pose to maintain")
	}
	s.sourceLinks = links
	s.eefRotation = pose.Orientation

	to := geometry.Point{X: pose.Position.X + detach[0], Y: pose.Position.Y + detach[1], Z: pose.Position.Z + detach[2]}
	div := trajectory.Segments(cfg, "num_segments", distance)
	s.translationTrajectory = trajectory.Points(pose.Position, to, div)

	s.context, _ = params.String(cfg["context"])
	s.step = 0
	return model.Success("")
}

func (s *Pick) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Pick) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Pick) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Pick) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	pt := obs["observable_timestep"].(int)
	return map[string]any{
		"timestep":  pt,
		"terminate": pt == len(s.translationTrajectory),
	}, nil
}

func (s *Pick) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Pick) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	pt := action["timestep"].(int)
	out := model.NewCombinedRobotAction("pick")
	out.Actions[s.manipID] = []model.RobotAction{{
		SolveBy:     model.SolveByIK,
		IKGoal:      geometry.Pose{Position: s.translationTrajectory[pt], Orientation: s.eefRotation},
		SourceLinks: s.sourceLinks,
		Context:     map[string]any{"context": s.context},
	}}
	return out, nil
}

func (s *Pick) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	env.Pipeline.Kinematics.FreeEndEffectorRobot()
	return nil, nil
}

func (s *Pick) Interruptible() bool { return false }
