package skills

import (
	"context"
	"fmt"

	"tasqsym/adapter"
	"tasqsym/blackboard"
	"tasqsym/geometry"
	"tasqsym/model"
	"tasqsym/skill"
	"tasqsym/skills/internal/params"
	"tasqsym/skills/internal/trajectory"
)

// GraspDecoder resolves @target either from an already-substituted
// blackboard value (an adapter.RecognitionResult, per the interpreter's
// resolveParams pass) or, if @target is a plain description, by running
// focus-sensor recognition during FillRuntimeParameters. Grounded on
// library/grasp/grasp.py.
type GraspDecoder struct {
	graspType       string
	handLaterality  string
	context         string
	approachDirBody []float64
	target          any
	raw             map[string]any

	goalPosition          geometry.Point
	goalOrientation       geometry.Quaternion
	expectedStartPosition geometry.Point
}

func NewGraspDecoder() skill.Decoder { return &GraspDecoder{} }

func (d *GraspDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	graspType, ok := params.String(in["grasp_type"])
	if !ok {
		return model.Failed("grasp: missing or invalid grasp_type")
	}
	hand, ok := params.String(in["hand_laterality"])
	if !ok {
		return model.Failed("grasp: missing or invalid hand_laterality")
	}
	target, present := in["target"]
	if !present {
		return model.Failed("grasp: missing target")
	}
	dir, ok := params.Float64Slice(in["approach_direction"])
	if !ok || len(dir) != 3 {
		return model.Failed("grasp: missing or invalid approach_direction")
	}

	d.graspType = graspType
	d.handLaterality = hand
	d.target = target
	d.approachDirBody = dir
	d.context = params.StringOr(in, "context", "")
	d.raw = in
	return model.Success("")
}

func (d *GraspDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	d.raw = params.Overlay(d.raw, in)
	baseID := env.Pipeline.Kinematics.BaseID()
	latest := env.Pipeline.Controller.LatestState()
	baseState, ok := latest.RobotStates[baseID].MobileBase()
	if !ok {
		return model.Failed("grasp: no mobile-base state for base robot")
	}

	bodyDir := geometry.Point{X: d.approachDirBody[0], Y: d.approachDirBody[1], Z: d.approachDirBody[2]}
	worldDir := baseState.Orientation.RotateVector(bodyDir)
	length := worldDir.Norm()
	if length == 0 {
		return model.Failed("grasp: approach_direction has zero length")
	}
	approachDir := worldDir.Scale(1 / length)

	var result adapter.RecognitionResult
	if r, ok := d.target.(adapter.RecognitionResult); ok {
		result = r
	} else {
		desc, ok := params.String(d.target)
		if !ok {
			return model.Failed("grasp: target must be a description string or a resolved recognition result")
		}

		method, err := env.Combiner.RecognitionMethod(ctx, "grasp", in)
		if err != nil {
			return model.Failed(fmt.Sprintf("grasp: resolving recognition method: %v", err))
		}
		sensorID, err := env.Pipeline.Kinematics.SetSensor(ctx, adapter.SensorCamera, "grasp", in)
		if err != nil {
			return model.Failed(fmt.Sprintf("grasp: setting focus sensor: %v", err))
		}
		cameraTransform, st := env.Pipeline.Controller.GetSensorTransform(ctx, sensorID)
		if !st.Ok() {
			return st
		}
		status, data, err := env.Pipeline.Controller.GetSceneryState(ctx, sensorID, method, map[string]any{
			"target_description": desc,
			"skill_parameters":    in,
			"camera_transform":    cameraTransform,
			"base_transform":      baseState,
		})
		env.Pipeline.Kinematics.FreeSensor(adapter.SensorCamera)
		if err != nil || !status.Ok() {
			if !status.Ok() {
				return status
			}
			return model.Failed(fmt.Sprintf("grasp: recognition: %v", err))
		}
		pos, _ := params.Point(data["position"])
		orient, _ := params.Quaternion(data["orientation"])
		scale, _ := data["scale"].(float64)
		accuracy, _ := data["accuracy"].(float64)
		result = adapter.RecognitionResult{Description: desc, Position: pos, Orientation: orient, Scale: scale, Accuracy: accuracy}
	}

	d.goalPosition = result.Position
	d.goalOrientation = result.Orientation
	d.expectedStartPosition = d.goalPosition.Sub(approachDir.Scale(0.15))
	return model.Success("")
}

func (d *GraspDecoder) AsConfig() map[string]any {
	return params.Overlay(d.raw, map[string]any{
		"target_pose":             geometry.Pose{Position: d.goalPosition, Orientation: d.goalOrientation},
		"expected_start_position": d.expectedStartPosition,
		"grasp_type":              d.graspType,
		"hand_laterality":         d.handLaterality,
		"context":                 d.context,
	})
}

func (d *GraspDecoder) IsReadyForExecution() bool { return d.graspType != "" }

// Grasp drives the end effector from its release posture through a
// preshape-to-grasp interpolated approach onto the target pose, holding
// the contact link's pre-approach orientation throughout (matching
// library/grasp/grasp.py precisely, including that the commanded
// orientation never itself interpolates toward the goal — only position
// and finger joints do).
type Grasp struct {
	eefID   model.RobotID
	manipID model.RobotID

	jointPreshape model.RobotState
	jointShape    model.RobotState
	sourceLinks   []string

	pRobot2Goal geometry.Point
	qRobot2Goal geometry.Quaternion

	expectedStartPosition geometry.Point
	context               string
	cfg                   map[string]any

	jointTrajectory       [][]float64
	translationTrajectory []geometry.Point
	rotationTrajectory    []geometry.Quaternion
	step                  int
}

func NewGrasp() skill.Skill { return &Grasp{} }

func (s *Grasp) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	eefID, err := env.Pipeline.Kinematics.SetEndEffectorRobot(ctx, "grasp", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("grasp: setting focus end effector: %v", err))
	}
	s.eefID = eefID

	entry, ok := env.Pipeline.Kinematics.Entry(eefID)
	if !ok {
		return model.Failed("grasp: end effector entry not found")
	}
	s.manipID = entry.ParentID
	baseID := env.Pipeline.Kinematics.BaseID()

	latest := env.Pipeline.Controller.LatestState()
	eefState, ok := latest.RobotStates[eefID]
	if !ok {
		return model.Failed("grasp: no latest state for end effector")
	}

	model_, ok := env.Pipeline.Kinematics.Model(eefID)
	if !ok {
		return model.Failed("grasp: no model for end effector")
	}
	jointPreshape, err := model_.ConfigurationForTask(ctx, "release", cfg, eefState)
	if err != nil {
		return model.Failed(fmt.Sprintf("grasp: resolving release posture: %v", err))
	}
	s.jointPreshape = jointPreshape
	jointShape, err := model_.ConfigurationForTask(ctx, "grasp", cfg, eefState)
	if err != nil {
		return model.Failed(fmt.Sprintf("grasp: resolving grasp posture: %v", err))
	}
	s.jointShape = jointShape

	contact, ok := eefState.EndEffectorContact(model.ContactCenter)
	if !ok {
		return model.Failed("grasp: end effector carries no contact-center link")
	}
	s.sourceLinks = []string{contact.LinkName}

	goalPose, ok := cfg["target_pose"].(geometry.Pose)
	if !ok {
		return model.Failed("grasp: missing target_pose config")
	}
	s.pRobot2Goal = goalPose.Position

	if err := env.Pipeline.Kinematics.GenerateOrientationTransformPair(ctx, eefID, cfg); err != nil {
		return model.Failed(fmt.Sprintf("grasp: generating orientation transform pair: %v", err))
	}
	baseState, ok := latest.RobotStates[baseID].MobileBase()
	if !ok {
		return model.Failed("grasp: no mobile-base state for base robot")
	}
	qRobot2Goal, err := env.Pipeline.Kinematics.GetOrientationTransform(ctx, eefID, contact.LinkName, goalPose.Orientation, baseState.Orientation, model.ContactCenter)
	if err != nil {
		return model.Failed(fmt.Sprintf("grasp: resolving orientation transform: %v", err))
	}
	s.qRobot2Goal = qRobot2Goal

	expectedStart, ok := cfg["expected_start_position"].(geometry.Point)
	if !ok {
		return model.Failed("grasp: missing expected_start_position config")
	}
	s.expectedStartPosition = expectedStart
	s.context, _ = params.String(cfg["context"])
	s.cfg = cfg
	s.step = 0

	return model.Success("")
}

func (s *Grasp) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	out := model.NewCombinedRobotAction("grasp")
	out.Actions[s.eefID] = []model.RobotAction{model.FKAction(s.jointPreshape)}
	out.Actions[s.manipID] = []model.RobotAction{{
		SolveBy:     model.SolveByIK,
		IKGoal:      geometry.Pose{Position: s.expectedStartPosition, Orientation: s.qRobot2Goal},
		SourceLinks: s.sourceLinks,
		FixedShape:  &s.jointPreshape,
		Context:     map[string]any{"context": s.context},
	}}
	return &out, nil
}

func (s *Grasp) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	latest := env.Pipeline.Controller.LatestState()
	eefState, ok := latest.RobotStates[s.eefID]
	if !ok {
		return model.Failed("grasp: no latest state for end effector after initiation")
	}
	contact, ok := eefState.EndEffectorContact(model.ContactCenter)
	if !ok {
		return model.Failed("grasp: end effector carries no contact-center link")
	}

	div := trajectory.IntConfig(s.cfg, "num_approach_segments", 5)
	postIters := trajectory.IntConfig(s.cfg, "num_grasp_segments", 10)

	s.jointTrajectory = trajectory.HoldJoints(
		trajectory.Joints(s.jointPreshape.Joints.Positions, s.jointShape.Joints.Positions, div), postIters)
	s.translationTrajectory = trajectory.HoldPoints(
		trajectory.Points(contact.Pose.Position, s.pRobot2Goal, div), postIters)

	rot := contact.Pose.Orientation
	rotTraj := make([]geometry.Quaternion, div)
	for i := range rotTraj {
		rotTraj[i] = rot
	}
	s.rotationTrajectory = trajectory.HoldOrientations(rotTraj, postIters)

	return model.Success("")
}

func (s *Grasp) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Grasp) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	pt := obs["observable_timestep"].(int)
	return map[string]any{
		"timestep":  pt,
		"terminate": pt == len(s.jointTrajectory),
	}, nil
}

func (s *Grasp) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Grasp) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	pt := action["timestep"].(int)
	shape := model.NewEndEffectorState(
		model.JointState{Positions: s.jointTrajectory[pt], Names: s.jointPreshape.Joints.Names},
		s.jointPreshape.ParentLink,
		geometry.IdentityPose,
		s.jointPreshape.Contacts,
	)
	out := model.NewCombinedRobotAction("grasp")
	out.Actions[s.eefID] = []model.RobotAction{model.FKAction(shape)}
	out.Actions[s.manipID] = []model.RobotAction{{
		SolveBy:     model.SolveByIK,
		IKGoal:      geometry.Pose{Position: s.translationTrajectory[pt], Orientation: s.rotationTrajectory[pt]},
		SourceLinks: s.sourceLinks,
		FixedShape:  &shape,
		Context:     map[string]any{"context": s.context},
	}}
	return out, nil
}

func (s *Grasp) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	env.Pipeline.Kinematics.FreeEndEffectorRobot()
	return nil, nil
}

func (s *Grasp) Interruptible() bool { return true }
