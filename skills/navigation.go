package skills

import (
	"context"
	"math"

	"tasqsym/blackboard"
	"tasqsym/geometry"
	"tasqsym/model"
	"tasqsym/skill"
	"tasqsym/skills/internal/params"
)

const (
	navPointOnMap        = "point_on_map"
	navRelativeMovement  = "relative_movement"
	navAbsoluteMovement  = "absolute_movement"
	navPointFromVision   = "point_from_vision"
)

// NavigationDecoder resolves @destination into one of four goal types,
// grounded on library/navigation/navigation.py: a null destination names a
// map location carried by @context; a coordinate list is interpreted
// against @frame, which is either "current_state" (relative movement),
// "map" (absolute movement), or an already-resolved blackboard frame
// detail (point-from-vision, since the interpreter substitutes a
// "{name}" frame reference before the decoder ever sees it).
type NavigationDecoder struct {
	goalType       string
	destination    geometry.Point
	orientation    *geometry.Quaternion
	targetDetails  map[string]any
	context        string
	raw            map[string]any
}

func NewNavigationDecoder() skill.Decoder { return &NavigationDecoder{} }

func (d *NavigationDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	d.raw = in
	destRaw, hasDest := in["destination"]
	if !hasDest {
		return model.Failed("navigation: missing destination parameter")
	}
	if v, ok := in["context"]; ok {
		if s, ok2 := v.(string); ok2 {
			d.context = s
		}
	}

	if destRaw == nil {
		d.goalType = navPointOnMap
		return model.Success("")
	}

	pt, ok := params.Point(destRaw)
	if !ok {
		return model.Failed("navigation: destination parameter in wrong format")
	}
	d.destination = pt

	frameRaw, hasFrame := in["frame"]
	if !hasFrame {
		return model.Failed("navigation: missing frame parameter")
	}

	switch f := frameRaw.(type) {
	case map[string]any:
		d.goalType = navPointFromVision
		if _, ok := f["position"]; !ok {
			return model.Failed("navigation: missing essential details for frame from blackboard")
		}
		if _, ok := f["orientation"]; !ok {
			return model.Failed("navigation: missing essential details for frame from blackboard")
		}
		if _, ok := f["scale"]; !ok {
			return model.Failed("navigation: missing essential details for frame from blackboard")
		}
		d.targetDetails = f
		if oriRaw, ok := in["orientation"]; ok && oriRaw != nil {
			if q, ok2 := params.Quaternion(oriRaw); ok2 {
				d.orientation = &q
			}
		}
	case string:
		switch f {
		case "current_state":
			d.goalType = navRelativeMovement
			if oriRaw, ok := in["orientation"]; ok && oriRaw != nil {
				if q, ok2 := params.Quaternion(oriRaw); ok2 {
					d.orientation = &q
				}
			} else {
				identity := geometry.Identity
				d.orientation = &identity
			}
		case "map":
			d.goalType = navAbsoluteMovement
			if oriRaw, ok := in["orientation"]; ok && oriRaw != nil {
				if q, ok2 := params.Quaternion(oriRaw); ok2 {
					d.orientation = &q
				}
			}
		default:
			return model.Failed("navigation: unexpected value in frame parameter")
		}
	default:
		return model.Failed("navigation: unexpected value in frame parameter")
	}

	return model.Success("")
}

func (d *NavigationDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	d.raw = params.Overlay(d.raw, in)
	return model.Success("")
}

func (d *NavigationDecoder) AsConfig() map[string]any {
	return params.Overlay(d.raw, map[string]any{
		"goal_type":      d.goalType,
		"destination":    d.destination,
		"orientation":    d.orientation,
		"target_details": d.targetDetails,
		"context":        d.context,
	})
}

func (d *NavigationDecoder) IsReadyForExecution() bool { return d.goalType != "" }

// Navigation drives the mobile base toward a point-on-map, a
// relative/absolute world coordinate, or a vision-derived standpoint,
// skipping dispatch entirely when already within tolerance of the goal
// (the "stay" case), grounded on library/navigation/navigation.py.
type Navigation struct {
	baseID model.RobotID

	desiredWorldPose     geometry.Pose
	desiredLocalMovement geometry.Pose
	desiredLocationName  string
	stay                 bool

	timeout                  float64
	stayPositionTolerance    float64
	stayOrientationTolerance float64
	navigation2D             bool

	context string
	step    int
}

func NewNavigation() skill.Skill {
	return &Navigation{
		timeout:                  30.0,
		stayPositionTolerance:    0.08,
		stayOrientationTolerance: 0.2,
		navigation2D:             true,
	}
}

func (s *Navigation) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	s.timeout = params.FloatOr(cfg, "timeout", s.timeout)
	s.stayPositionTolerance = params.FloatOr(cfg, "stay_position_tolerance", s.stayPositionTolerance)
	s.stayOrientationTolerance = params.FloatOr(cfg, "stay_orientation_tolerance", s.stayOrientationTolerance)
	if v, ok := cfg["navigation_2d"].(bool); ok {
		s.navigation2D = v
	}

	s.context, _ = cfg["context"].(string)
	goalType, _ := cfg["goal_type"].(string)

	s.baseID = env.Pipeline.Kinematics.BaseID()
	latest := env.Pipeline.Controller.LatestState()
	currentBaseState, ok := latest.RobotStates[s.baseID].MobileBase()
	if !ok {
		return model.Failed("navigation: no mobile-base state for base robot")
	}

	switch goalType {
	case navPointFromVision:
		transforms, err := env.Combiner.TaskTransform(ctx, "navigation", cfg, latest)
		if err != nil {
			return model.Failed("navigation: task transform: " + err.Error())
		}
		baseTransforms, ok := transforms[s.baseID]
		if !ok {
			return model.Failed("navigation: combiner did not return a transform for the base robot")
		}
		s.desiredWorldPose = baseTransforms["map->base"]
		s.desiredLocalMovement = baseTransforms["base_old->base_new"]

	case navRelativeMovement:
		dest, _ := cfg["destination"].(geometry.Point)
		orient := geometry.Identity
		if q, ok := cfg["orientation"].(*geometry.Quaternion); ok && q != nil {
			orient = *q
		}
		s.desiredLocalMovement = geometry.Pose{Position: dest, Orientation: orient}
		worldPosition := currentBaseState.Position.Add(currentBaseState.Orientation.RotateVector(dest))
		worldOrientation := currentBaseState.Orientation.Multiply(orient)
		s.desiredWorldPose = geometry.Pose{Position: worldPosition, Orientation: worldOrientation}
		s.step = 0
		return model.Success("") // always move, no stay check

	case navAbsoluteMovement:
		dest, _ := cfg["destination"].(geometry.Point)
		orient := currentBaseState.Orientation
		if q, ok := cfg["orientation"].(*geometry.Quaternion); ok && q != nil {
			orient = *q
		}
		s.desiredWorldPose = geometry.Pose{Position: dest, Orientation: orient}
		relativePosition := currentBaseState.Orientation.Conjugate().RotateVector(dest.Sub(currentBaseState.Position))
		relativeOrientation := currentBaseState.Orientation.Conjugate().Multiply(orient)
		s.desiredLocalMovement = geometry.Pose{Position: relativePosition, Orientation: relativeOrientation}

	case navPointOnMap:
		s.desiredLocationName = s.context
		s.step = 0
		return model.Success("")

	default:
		return model.Failed("navigation: unknown goal_type")
	}

	pDiff := s.desiredWorldPose.Position.Sub(currentBaseState.Position)
	if s.navigation2D {
		pDiff.Z = 0.0
	}
	pDist := pDiff.Norm()

	qDiff := s.desiredWorldPose.Orientation.Multiply(currentBaseState.Orientation.Conjugate())
	w := math.Max(math.Min(qDiff.W, 1.0), -1.0)
	qDist := 2 * math.Acos(w)

	s.stay = pDist < s.stayPositionTolerance && qDist < s.stayOrientationTolerance
	s.step = 0
	return model.Success("")
}

func (s *Navigation) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Navigation) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Navigation) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Navigation) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	pt := obs["observable_timestep"].(int)
	return map[string]any{"terminate": pt == 1}, nil
}

func (s *Navigation) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Navigation) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	out := model.NewCombinedRobotAction("navigation")
	if s.stay {
		out.Actions[s.baseID] = []model.RobotAction{model.NullAction()}
		return out, nil
	}
	navAction := model.Nav3DActionFor(s.desiredWorldPose, s.desiredLocalMovement, s.desiredLocationName, s.timeout)
	navAction.Context = map[string]any{"context": s.context}
	out.Actions[s.baseID] = []model.RobotAction{navAction}
	return out, nil
}

func (s *Navigation) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Navigation) Interruptible() bool { return true }
