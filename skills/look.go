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
)

// LookDecoder resolves @target into a 3D point, either a blackboard
// reference (already substituted by the interpreter into a native value
// by the time Decode runs) or nil, in which case Look points at the zero
// point (0,0,0), grounded on
// library/look/look.py.
type LookDecoder struct {
	hasTarget   bool
	targetPoint geometry.Point
	context     string
}

func NewLookDecoder() skill.Decoder { return &LookDecoder{} }

func (d *LookDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	raw, present := in["target"]
	if !present {
		return model.Failed("look: missing target")
	}
	if raw == nil {
		d.hasTarget = false
	} else {
		p, ok := params.Point(raw)
		if !ok {
			return model.Failed("look: target must resolve to a point (blackboard reference with a position)")
		}
		d.targetPoint = p
		d.hasTarget = true
	}
	d.context = params.StringOr(in, "context", "")
	return model.Success("")
}

func (d *LookDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	return model.Success("")
}

func (d *LookDecoder) AsConfig() map[string]any {
	cfg := map[string]any{"context": d.context}
	if d.hasTarget {
		cfg["target_point"] = d.targetPoint
	} else {
		cfg["target_point"] = nil
	}
	return cfg
}

func (d *LookDecoder) IsReadyForExecution() bool { return true }

// Look points the focus camera's mounting link at a target point (or at
// the zero point (0,0,0) if no target is given), grounded on
// library/look/look.py.
type Look struct {
	targetPoint geometry.Point
	hasTarget   bool
	context     string
	robotID     model.RobotID
	sourceLink  string
	step        int
}

func NewLook() skill.Skill { return &Look{} }

func (s *Look) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	s.step = 0
	if p, ok := cfg["target_point"].(geometry.Point); ok {
		s.targetPoint = p
		s.hasTarget = true
	} else {
		s.hasTarget = false
	}
	s.context, _ = params.String(cfg["context"])

	sensorID, err := env.Pipeline.Kinematics.SetSensor(ctx, adapter.SensorCamera, "look", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("look: setting focus sensor: %v", err))
	}

	link, ok := env.Pipeline.Controller.SensorParentLink(sensorID)
	if !ok {
		return model.Failed("look: no parent link known for focus sensor")
	}
	s.sourceLink = link

	entry, ok := env.Pipeline.Kinematics.Entry(sensorID)
	if !ok {
		return model.Failed("look: sensor entry not found")
	}
	s.robotID = entry.ParentID

	return model.Success("")
}

func (s *Look) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Look) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Look) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Look) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	return map[string]any{"terminate": obs["observable_timestep"] == 1}, nil
}

func (s *Look) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Look) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	out := model.NewCombinedRobotAction("look")
	point := s.targetPoint
	if !s.hasTarget {
		point = geometry.Point{}
	}
	out.Actions[s.robotID] = []model.RobotAction{{
		SolveBy:           model.SolveByPointTo,
		PointToPoint:      point,
		PointToSourceLink: s.sourceLink,
		Context:           map[string]any{"context": s.context},
	}}
	return out, nil
}

func (s *Look) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	env.Pipeline.Kinematics.FreeSensor(adapter.SensorCamera)
	return nil, nil
}

func (s *Look) Interruptible() bool { return true }
