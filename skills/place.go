package skills

import (
	"context"
	"fmt"
	"math"

	"tasqsym/adapter"
	"tasqsym/blackboard"
	"tasqsym/geometry"
	"tasqsym/model"
	"tasqsym/skill"
	"tasqsym/skills/internal/params"
	"tasqsym/skills/internal/trajectory"
)

// placePostContactIterations caps how long Place keeps nudging toward the
// plane after the approach segments finish, waiting on a force-sensor
// contact reading, grounded on library/place/place.py's post_iters=100.
const placePostContactIterations = 100

// PlaceDecoder resolves @attach_direction (a body-frame vector) into the
// world frame using the base's current orientation, grounded on
// library/place/place.py.
type PlaceDecoder struct {
	attachDirection []float64
	context         string
}

func NewPlaceDecoder() skill.Decoder { return &PlaceDecoder{} }

func (d *PlaceDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	dir, ok := params.Float64Slice(in["attach_direction"])
	if !ok || len(dir) != 3 {
		return model.Failed("place: missing or invalid attach_direction")
	}
	d.attachDirection = dir
	d.context = params.StringOr(in, "context", "")
	return model.Success("")
}

func (d *PlaceDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	baseID := env.Pipeline.Kinematics.BaseID()
	latest := env.Pipeline.Controller.LatestState()
	baseState, ok := latest.RobotStates[baseID].MobileBase()
	if !ok {
		return model.Failed("place: no mobile-base state for base robot")
	}
	body := geometry.Point{X: d.attachDirection[0], Y: d.attachDirection[1], Z: d.attachDirection[2]}
	world := baseState.Orientation.RotateVector(body)
	d.attachDirection = []float64{world.X, world.Y, world.Z}
	return model.Success("")
}

func (d *PlaceDecoder) AsConfig() map[string]any {
	return map[string]any{
		"attach_direction": d.attachDirection,
		"context":          d.context,
	}
}

func (d *PlaceDecoder) IsReadyForExecution() bool { return len(d.attachDirection) == 3 }

// Place approaches a surface along the world-frame attach direction, then
// nudges a small fixed step further each iteration until the force sensor
// reports contact, grounded on library/place/place.py.
type Place struct {
	manipID    model.RobotID
	sensorID   model.RobotID
	sourceLinks []string
	eefRot     geometry.Quaternion

	velocityDirection             geometry.Point
	iterationsUntilPreplaceFinish int
	translationTrajectory         []geometry.Point

	context string
	step    int
}

func NewPlace() skill.Skill { return &Place{} }

func (s *Place) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	eefID, err := env.Pipeline.Kinematics.SetEndEffectorRobot(ctx, "place", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("place: setting focus end effector: %v", err))
	}

	attach, ok := params.Float64Slice(cfg["attach_direction"])
	if !ok || len(attach) != 3 {
		return model.Failed("place: missing attach_direction config")
	}
	distance := math.Sqrt(attach[0]*attach[0] + attach[1]*attach[1] + attach[2]*attach[2])
	velocityDirection := geometry.Point{X: attach[0] / distance, Y: attach[1] / distance, Z: attach[2] / distance}

	vApproachScalar := math.Max(distance-0.02, 0.0)
	vApproach := velocityDirection.Scale(vApproachScalar)
	div := int(vApproachScalar/0.05) + 1
	s.iterationsUntilPreplaceFinish = div + 1

	entry, ok := env.Pipeline.Kinematics.Entry(eefID)
	if !ok {
		return model.Failed("place: end effector entry not found")
	}
	s.manipID = entry.ParentID
	if s.manipID == "" {
		return model.Failed("place: tried to trigger skill but no target end-effector set")
	}

	sensorID, err := env.Pipeline.Kinematics.SetSensor(ctx, adapter.SensorForce, "place", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("place: setting focus force sensor: %v", err))
	}
	s.sensorID = sensorID
	if _, _, err := env.Pipeline.Controller.GetPhysicsState(ctx, sensorID, "reset", nil); err != nil {
		return model.Failed(fmt.Sprintf("place: resetting force sensor: %v", err))
	}

	latest := env.Pipeline.Controller.LatestState()
	links, pose, ok := trajectory.PoseToMaintain(env.Pipeline.Kinematics.ActionLog(), latest, eefID, s.manipID, model.ContactCenter)
	if !ok {
		return model.Failed("place: could not resolve end-effector pose to maintain")
	}
	s.sourceLinks = links
	s.eefRot = pose.Orientation
	pos := pose.Position

	pPreplace := pos.Add(vApproach)

	raw := make([]geometry.Point, div)
	for i := 0; i < div; i++ {
		t := float64(i+1) / float64(div)
		switch {
		case vApproach.Norm() < 0.02:
			raw[i] = pos
		case i < div-1:
			raw[i] = geometry.Lerp(pos, pPreplace, t)
		default:
			raw[i] = pPreplace
		}
	}
	s.translationTrajectory = trajectory.HoldPoints(raw, placePostContactIterations+1)

	s.velocityDirection = velocityDirection
	s.context, _ = cfg["context"].(string)
	s.step = 0
	return model.Success("")
}

func (s *Place) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Place) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Place) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	_, data, err := env.Pipeline.Controller.GetPhysicsState(ctx, s.sensorID, "SurfaceContact", map[string]any{})
	if err != nil {
		return nil, err
	}
	contactEnv, _ := data["contact_environment"].(bool)
	if contactEnv {
		obs["ptg13_plane_contact"] = -1
	} else {
		obs["ptg13_plane_contact"] = 10
	}
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Place) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	const dist = 0.005
	pt := obs["observable_timestep"].(int)
	planeContact := obs["ptg13_plane_contact"].(int)

	var deviation float64
	if pt >= s.iterationsUntilPreplaceFinish {
		nAdd := pt - s.iterationsUntilPreplaceFinish + 1
		deviation = float64(nAdd) * dist
	}

	return map[string]any{
		"velocity_direction_deviation": deviation,
		"terminate":                    planeContact <= 0,
		"timestep":                     pt,
	}, nil
}

func (s *Place) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Place) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	pt := action["timestep"].(int)
	tv := s.translationTrajectory[pt]
	dev := action["velocity_direction_deviation"].(float64)
	if math.Abs(dev) >= 0.00001 {
		tv = tv.Add(s.velocityDirection.Scale(dev))
	}

	out := model.NewCombinedRobotAction("place")
	out.Actions[s.manipID] = []model.RobotAction{{
		SolveBy:     model.SolveByIK,
		IKGoal:      geometry.Pose{Position: tv, Orientation: s.eefRot},
		SourceLinks: s.sourceLinks,
		Context:     map[string]any{"context": s.context},
	}}
	return out, nil
}

func (s *Place) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	env.Pipeline.Kinematics.FreeEndEffectorRobot()
	return nil, nil
}

func (s *Place) Interruptible() bool { return false }
