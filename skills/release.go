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

// releaseFingerClearance is the constant stand-off distance used to avoid
// finger-object collision on depart, grounded on library/release/release.py's d=0.15.
const releaseFingerClearance = 0.15

// ReleaseDecoder resolves @depart_direction (a body-frame vector, minimum
// 1mm) into the world frame, grounded on library/release/release.py.
type ReleaseDecoder struct {
	departDirection []float64
	context         string
	raw             map[string]any
}

func NewReleaseDecoder() skill.Decoder { return &ReleaseDecoder{} }

func (d *ReleaseDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	dir, ok := params.Float64Slice(in["depart_direction"])
	if !ok || len(dir) != 3 {
		return model.Failed("release: missing or invalid depart_direction")
	}
	norm := math.Sqrt(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])
	if math.Abs(norm) < 0.001 {
		return model.Failed("release: depart_direction cannot be of size 0 or smaller than 1mm")
	}
	d.departDirection = dir
	d.context = params.StringOr(in, "context", "")
	d.raw = in
	return model.Success("")
}

func (d *ReleaseDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	d.raw = params.Overlay(d.raw, in)
	baseID := env.Pipeline.Kinematics.BaseID()
	latest := env.Pipeline.Controller.LatestState()
	baseState, ok := latest.RobotStates[baseID].MobileBase()
	if !ok {
		return model.Failed("release: no mobile-base state for base robot")
	}
	body := geometry.Point{X: d.departDirection[0], Y: d.departDirection[1], Z: d.departDirection[2]}
	world := baseState.Orientation.RotateVector(body)
	d.departDirection = []float64{world.X, world.Y, world.Z}
	return model.Success("")
}

func (d *ReleaseDecoder) AsConfig() map[string]any {
	return params.Overlay(d.raw, map[string]any{
		"depart_direction": d.departDirection,
		"context":          d.context,
	})
}

func (d *ReleaseDecoder) IsReadyForExecution() bool { return len(d.departDirection) == 3 }

// Release opens the gripper to its release posture while holding position,
// then departs along the world-frame depart direction, grounded on
// library/release/release.py.
type Release struct {
	eefID  model.RobotID
	manipID model.RobotID

	jointShapeNames []string
	parentLink      string
	contacts        map[model.ContactAnnotation]model.LinkPose
	sourceLinks     []string
	eefRotation     geometry.Quaternion

	jointTrajectory       [][]float64
	translationTrajectory []geometry.Point

	context string
	step    int
}

func NewRelease() skill.Skill { return &Release{} }

func (s *Release) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	eefID, err := env.Pipeline.Kinematics.SetEndEffectorRobot(ctx, "release", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("release: setting focus end effector: %v", err))
	}
	s.eefID = eefID
	if s.eefID == "" {
		return model.Failed("release: tried to trigger skill but no target end-effector set")
	}
	entry, ok := env.Pipeline.Kinematics.Entry(eefID)
	if !ok {
		return model.Failed("release: end effector entry not found")
	}
	s.manipID = entry.ParentID

	depart, ok := params.Float64Slice(cfg["depart_direction"])
	if !ok || len(depart) != 3 {
		return model.Failed("release: missing depart_direction config")
	}
	norm := math.Sqrt(depart[0]*depart[0] + depart[1]*depart[1] + depart[2]*depart[2])
	departScaled := geometry.Point{
		X: releaseFingerClearance / norm * depart[0],
		Y: releaseFingerClearance / norm * depart[1],
		Z: releaseFingerClearance / norm * depart[2],
	}

	latest := env.Pipeline.Controller.LatestState()
	links, eefPose, ok := trajectory.PoseToMaintain(env.Pipeline.Kinematics.ActionLog(), latest, eefID, s.manipID, model.ContactCenter)
	if !ok {
		return model.Failed("release: could not resolve end-effector pose to maintain")
	}
	s.sourceLinks = links
	s.eefRotation = eefPose.Orientation
	pos := eefPose.Position

	robotModel, ok := env.Pipeline.Kinematics.Model(eefID)
	if !ok {
		return model.Failed("release: end-effector model not registered")
	}
	currentEefState, ok := latest.RobotStates[eefID]
	if !ok {
		return model.Failed("release: no latest state for end effector")
	}
	jointPostshape, err := robotModel.ConfigurationForTask(ctx, "release", cfg, currentEefState)
	if err != nil {
		return model.Failed(fmt.Sprintf("release: configuration for task: %v", err))
	}

	s.jointShapeNames = currentEefState.Joints.Names
	s.parentLink = currentEefState.ParentLink
	s.contacts = currentEefState.Contacts

	to := pos.Add(departScaled)

	div1 := trajectory.IntConfig(cfg, "num_release_segments", 3)
	div2 := trajectory.IntConfig(cfg, "num_depart_segments", 3)

	jointTraj := trajectory.Joints(currentEefState.Joints.Positions, jointPostshape.Joints.Positions, div1)
	s.jointTrajectory = trajectory.HoldJoints(jointTraj, div2)

	transTraj := make([]geometry.Point, div1)
	for i := range transTraj {
		transTraj[i] = pos
	}
	transTraj = append(transTraj, trajectory.Points(pos, to, div2)...)
	s.translationTrajectory = transTraj

	s.context, _ = cfg["context"].(string)
	s.step = 0
	return model.Success("")
}

func (s *Release) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Release) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Release) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Release) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	pt := obs["observable_timestep"].(int)
	return map[string]any{
		"timestep":  pt,
		"terminate": pt == len(s.jointTrajectory),
	}, nil
}

func (s *Release) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Release) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	pt := action["timestep"].(int)
	shape := model.NewEndEffectorState(
		model.JointState{Positions: s.jointTrajectory[pt], Names: s.jointShapeNames},
		s.parentLink, geometry.IdentityPose, s.contacts,
	)

	out := model.NewCombinedRobotAction("release")
	out.Actions[s.eefID] = []model.RobotAction{model.FKAction(shape)}
	out.Actions[s.manipID] = []model.RobotAction{{
		SolveBy:     model.SolveByIK,
		IKGoal:      geometry.Pose{Position: s.translationTrajectory[pt], Orientation: s.eefRotation},
		SourceLinks: s.sourceLinks,
		FixedShape:  &shape,
		Context:     map[string]any{"context": s.context},
	}}
	return out, nil
}

func (s *Release) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	env.Pipeline.Kinematics.FreeEndEffectorRobot()
	return nil, nil
}

func (s *Release) Interruptible() bool { return true }
