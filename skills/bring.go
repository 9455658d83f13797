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

const (
	bringFromContext          = "from_context"
	bringCoordinateDestination = "coordinate_destination"
)

// BringDecoder resolves @destination either against the blackboard target
// set up by a prior find/grasp (from_context) or into a world-frame
// coordinate relative to a named frame (origin, current_state, or an
// already-resolved blackboard pose), grounded on library/bring/bring.py.
type BringDecoder struct {
	goalType string

	rawDestination geometry.Point
	frame          any

	nullOrientationGoal bool
	hasOrientation      bool
	rawOrientation      geometry.Quaternion

	destination geometry.Point
	orientation *geometry.Quaternion

	context string
	raw     map[string]any
}

func NewBringDecoder() skill.Decoder { return &BringDecoder{} }

func (d *BringDecoder) Decode(ctx context.Context, in map[string]any, board *blackboard.Blackboard) model.Status {
	d.raw = in
	destRaw, hasDest := in["destination"]
	if !hasDest {
		return model.Failed("bring: missing destination parameter")
	}
	if v, ok := in["context"]; ok {
		if s, ok2 := v.(string); ok2 {
			d.context = s
		}
	}

	if destRaw == nil {
		if _, hasCtx := in["context"]; hasCtx {
			d.goalType = bringFromContext
			return model.Success("")
		}
		return model.Failed("bring: destination is null but no context given to resolve it")
	}

	pt, ok := params.Point(destRaw)
	if !ok {
		return model.Failed("bring: destination parameter in wrong format")
	}
	frameRaw, hasFrame := in["frame"]
	if !hasFrame {
		return model.Failed("bring: missing frame parameter")
	}
	d.goalType = bringCoordinateDestination
	d.rawDestination = pt
	d.frame = frameRaw

	if oriRaw, ok := in["orientation"]; ok && oriRaw != nil {
		if s, ok2 := oriRaw.(string); ok2 {
			if s != "any" {
				return model.Failed("bring: unexpected value in orientation parameter")
			}
			d.nullOrientationGoal = true
		} else if q, ok2 := params.Quaternion(oriRaw); ok2 {
			d.hasOrientation = true
			d.rawOrientation = q
		} else {
			return model.Failed("bring: orientation parameter in wrong format")
		}
	}

	return model.Success("")
}

func (d *BringDecoder) FillRuntimeParameters(ctx context.Context, in map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	d.raw = params.Overlay(d.raw, in)
	if d.goalType != bringCoordinateDestination {
		return model.Success("")
	}

	latest := env.Pipeline.Controller.LatestState()

	var framePos geometry.Point
	var frameOrient geometry.Quaternion

	switch f := d.frame.(type) {
	case string:
		switch f {
		case "origin":
			baseID := env.Pipeline.Kinematics.BaseID()
			baseState, ok := latest.RobotStates[baseID].MobileBase()
			if !ok {
				return model.Failed("bring: no mobile-base state for base robot")
			}
			framePos, frameOrient = baseState.Position, baseState.Orientation
		case "current_state":
			eefID, err := env.Pipeline.Kinematics.SetEndEffectorRobot(ctx, "bring", map[string]any{"context": d.context})
			if err != nil {
				return model.Failed(fmt.Sprintf("bring: setting focus end effector: %v", err))
			}
			entry, ok := env.Pipeline.Kinematics.Entry(eefID)
			if !ok {
				return model.Failed("bring: end effector entry not found")
			}
			_, pose, ok := trajectory.PoseToMaintain(env.Pipeline.Kinematics.ActionLog(), latest, eefID, entry.ParentID, model.ContactCenter)
			if !ok {
				return model.Failed("bring: could not resolve current end-effector pose")
			}
			framePos, frameOrient = pose.Position, pose.Orientation
		default:
			return model.Failed("bring: unexpected value in frame parameter")
		}
	case map[string]any:
		posRaw, hasPos := f["position"]
		oriRaw, hasOri := f["orientation"]
		if !hasPos || !hasOri {
			return model.Failed("bring: missing essential details from blackboard frame")
		}
		pt, ok := params.Point(posRaw)
		q, ok2 := params.Quaternion(oriRaw)
		if !ok || !ok2 {
			return model.Failed("bring: blackboard frame details in wrong format")
		}
		framePos, frameOrient = pt, q
	default:
		return model.Failed("bring: unexpected value in frame parameter")
	}

	d.destination = framePos.Add(frameOrient.RotateVector(d.rawDestination))
	if !d.nullOrientationGoal && d.hasOrientation {
		q := frameOrient.Multiply(d.rawOrientation)
		d.orientation = &q
	}
	return model.Success("")
}

func (d *BringDecoder) AsConfig() map[string]any {
	return params.Overlay(d.raw, map[string]any{
		"goal_type":             d.goalType,
		"destination":           d.destination,
		"orientation":           d.orientation,
		"null_orientation_goal": d.nullOrientationGoal,
		"context":               d.context,
	})
}

func (d *BringDecoder) IsReadyForExecution() bool { return d.goalType != "" }

// Bring carries the focus end effector to either a context-derived
// configuration (from_context) or along a straight-line IK trajectory to
// a world-frame coordinate (coordinate_destination), grounded on
// library/bring/bring.py.
type Bring struct {
	robotID model.RobotID

	poseForBring *model.RobotState

	sourceLinks           []string
	nullOrientationGoal   bool
	translationTrajectory []geometry.Point
	rotationTrajectory    []geometry.Quaternion

	context string
	step    int
}

func NewBring() skill.Skill { return &Bring{} }

func (s *Bring) Init(ctx context.Context, env *skill.Env, cfg map[string]any) model.Status {
	eefID, err := env.Pipeline.Kinematics.SetEndEffectorRobot(ctx, "bring", cfg)
	if err != nil {
		return model.Failed(fmt.Sprintf("bring: setting focus end effector: %v", err))
	}
	entry, ok := env.Pipeline.Kinematics.Entry(eefID)
	if !ok {
		return model.Failed("bring: end effector entry not found")
	}
	s.robotID = entry.ParentID
	if s.robotID == "" {
		return model.Failed("bring: tried to trigger skill but no target end-effector set")
	}

	goalType, _ := cfg["goal_type"].(string)
	latest := env.Pipeline.Controller.LatestState()

	switch goalType {
	case bringFromContext:
		cfg["target_eefs"] = []model.RobotID{eefID}
		robotModel, ok := env.Pipeline.Kinematics.Model(s.robotID)
		if !ok {
			return model.Failed("bring: manipulator model not registered")
		}
		robotState, ok := latest.RobotStates[s.robotID]
		if !ok {
			return model.Failed("bring: no latest state for manipulator")
		}
		pose, err := robotModel.ConfigurationForTask(ctx, "bring", cfg, robotState)
		if err != nil {
			return model.Failed(fmt.Sprintf("bring: configuration for task: %v", err))
		}
		s.poseForBring = &pose

	case bringCoordinateDestination:
		s.poseForBring = nil
		pGoal, ok := cfg["destination"].(geometry.Point)
		if !ok {
			return model.Failed("bring: destination config in wrong format")
		}

		links, eefPose, ok := trajectory.PoseToMaintain(env.Pipeline.Kinematics.ActionLog(), latest, eefID, s.robotID, model.ContactCenter)
		if !ok {
			return model.Failed("bring: could not resolve end-effector pose to maintain")
		}
		s.sourceLinks = links

		s.nullOrientationGoal, _ = cfg["null_orientation_goal"].(bool)

		rot := eefPose.Orientation
		if oriPtr, ok := cfg["orientation"].(*geometry.Quaternion); ok && oriPtr != nil {
			baseID := env.Pipeline.Kinematics.BaseID()
			baseState, ok := latest.RobotStates[baseID].MobileBase()
			if !ok {
				return model.Failed("bring: no mobile-base state for base robot")
			}
			rot, err = env.Pipeline.Kinematics.GetOrientationTransform(ctx, eefID, links[0], *oriPtr, baseState.Orientation, model.ContactCenter)
			if err != nil {
				return model.Failed(fmt.Sprintf("bring: orientation transform: %v", err))
			}
		}

		dx, dy, dz := pGoal.X-eefPose.Position.X, pGoal.Y-eefPose.Position.Y, pGoal.Z-eefPose.Position.Z
		distance := math.Sqrt(dx*dx + dy*dy + dz*dz)
		div := trajectory.Segments(cfg, "num_segments", distance)

		s.translationTrajectory = trajectory.Points(eefPose.Position, pGoal, div)
		s.rotationTrajectory = trajectory.Orientations(rot, rot, div)

	default:
		return model.Failed("bring: unknown goal_type")
	}

	s.context, _ = cfg["context"].(string)
	s.step = 0
	return model.Success("")
}

func (s *Bring) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}

func (s *Bring) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}

func (s *Bring) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	obs["observable_timestep"] = s.step
	s.step++
	return obs, nil
}

func (s *Bring) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	pt := obs["observable_timestep"].(int)
	if s.poseForBring != nil {
		return map[string]any{"terminate": pt == 1}, nil
	}
	return map[string]any{
		"timestep":  pt,
		"terminate": pt == len(s.translationTrajectory),
	}, nil
}

func (s *Bring) GetTerminal(obs, action map[string]any) bool {
	t, _ := action["terminate"].(bool)
	return t
}

func (s *Bring) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	out := model.NewCombinedRobotAction("bring")

	if s.poseForBring != nil {
		out.Actions[s.robotID] = []model.RobotAction{model.FKAction(*s.poseForBring)}
		return out, nil
	}

	pt := action["timestep"].(int)
	out.Actions[s.robotID] = []model.RobotAction{{
		SolveBy:     model.SolveByIK,
		IKGoal:      geometry.Pose{Position: s.translationTrajectory[pt], Orientation: s.rotationTrajectory[pt]},
		SourceLinks: s.sourceLinks,
		Context: map[string]any{
			"context":               s.context,
			"null_orientation_goal": s.nullOrientationGoal,
		},
	}}
	return out, nil
}

func (s *Bring) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	env.Pipeline.Kinematics.FreeEndEffectorRobot()
	return nil, nil
}

func (s *Bring) Interruptible() bool { return true }
