package skills

import (
	"context"
	"fmt"

	"tasqsym/adapter"
	"tasqsym/blackboard"
	"tasqsym/model"
	"tasqsym/skill"
	"tasqsym/skills/internal/params"
)

// FindDecoder requires target_description and accepts an optional free-form
// context hint, grounded on library/find/find.py.
type FindDecoder struct {
	targetDescription string
	context           string
}

func NewFindDecoder() skill.Decoder { return &FindDecoder{} }

func (d *FindDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	desc, ok := params.String(in["target_description"])
	if !ok {
		return model.Failed("find: missing or invalid target_description")
	}
	d.targetDescription = desc
	d.context = params.StringOr(in, "context", "")
	return model.Success("")
}

func (d *FindDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	return model.Success("")
}

func (d *FindDecoder) AsConfig() map[string]any {
	return map[string]any{
		"target_description": d.targetDescription,
		"context":             d.context,
	}
}

func (d *FindDecoder) IsReadyForExecution() bool { return d.targetDescription != "" }

// Find drives the focus camera to its recognition posture, then runs the
// combiner's chosen recognition method once at onFinish, writing
// find_true/find_result to the blackboard (library/find/find.py).
type Find struct {
	method            string
	targetDescription string
	sensorID          model.RobotID
	poseForRecognition model.RobotState
	step              int
}

func NewFind() skill.Skill { return &Find{} }

func (s *Find) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	s.step = 0
	s.targetDescription, _ = params.String(cfg["target_description"])

	method, err := env.Combiner.RecognitionMethod(ctx, "find", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("find: resolving recognition method: %v", err))
	}
	s.method = method

	sensorID, err := env.Pipeline.Kinematics.SetSensor(ctx, adapter.SensorCamera, "find", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("find: setting focus sensor: %v", err))
	}
	s.sensorID = sensorID

	entry, ok := env.Pipeline.Kinematics.Entry(sensorID)
	if !ok {
		return model.Failed("find: sensor entry not found")
	}
	parentID := entry.ParentID

	model_, ok := env.Pipeline.Kinematics.Model(parentID)
	if !ok {
		return model.Failed("find: no model for sensor's parent robot")
	}
	latest := env.Pipeline.Controller.LatestState()
	parentState, ok := latest.RobotStates[parentID]
	if !ok {
		return model.Failed("find: no latest state for sensor's parent robot")
	}
	posture, err := model_.ConfigurationForTask(ctx, "find", cfg, parentState)
	if err != nil {
		return model.Failed(fmt.Sprintf("find: resolving recognition posture: %v", err))
	}
	s.poseForRecognition = posture
	// the parent robot, not the sensor, is what receives the FK goal below
	s.sensorID = parentID

	return model.Success("")
}

func (s *Find) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Find) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Find) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Find) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	return map[string]any{"terminate": obs["observable_timestep"] == 1}, nil
}

func (s *Find) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Find) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	out := model.NewCombinedRobotAction("find")
	out.Actions[s.sensorID] = []model.RobotAction{model.FKAction(s.poseForRecognition)}
	return out, nil
}

func (s *Find) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	defer env.Pipeline.Kinematics.FreeSensor(adapter.SensorCamera)

	cameraID, ok := env.Pipeline.Kinematics.SensorID(adapter.SensorCamera)
	if !ok {
		board.Set(blackboard.KeyFindTrue, false)
		return nil, nil
	}

	cameraTransform, st := env.Pipeline.Controller.GetSensorTransform(ctx, cameraID)
	if !st.Ok() {
		board.Set(blackboard.KeyFindTrue, false)
		return nil, nil
	}

	baseID := env.Pipeline.Kinematics.BaseID()
	latest := env.Pipeline.Controller.LatestState()
	baseState, ok := latest.RobotStates[baseID].MobileBase()
	if !ok {
		board.Set(blackboard.KeyFindTrue, false)
		return nil, nil
	}

	status, data, err := env.Pipeline.Controller.GetSceneryState(ctx, cameraID, s.method, map[string]any{
		"target_description": s.targetDescription,
		"camera_transform":   cameraTransform,
		"base_transform":     baseState,
	})
	if err != nil || !status.Ok() {
		board.Set(blackboard.KeyFindTrue, false)
		return nil, nil
	}

	board.Set(blackboard.KeyFindTrue, true)

	pos, _ := params.Point(data["position"])
	orient, _ := params.Quaternion(data["orientation"])
	scale, _ := data["scale"].(float64)
	accuracy, _ := data["accuracy"].(float64)

	board.Set(blackboard.KeyFindResult, adapter.RecognitionResult{
		Description: s.targetDescription,
		Position:    pos,
		Orientation: orient,
		Scale:       scale,
		Accuracy:    accuracy,
	})

	return nil, nil
}

func (s *Find) Interruptible() bool { return false }
