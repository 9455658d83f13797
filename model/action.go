package model

import "tasqsym/geometry"

// SolveByType tags which RobotAction variant is populated (spec.md §3).
type SolveByType string

const (
	SolveByNull      SolveByType = "NullAction"
	SolveByInit      SolveByType = "InitRobot"
	SolveByFK        SolveByType = "FKAction"
	SolveByIK        SolveByType = "IKAction"
	SolveByNav3D     SolveByType = "Nav3DAction"
	SolveByPointTo   SolveByType = "PointToAction"
	SolveByCommand   SolveByType = "CommandAction"
)

// RobotAction is a tagged union over SolveByType. Only the fields for
// SolveBy are meaningful.
type RobotAction struct {
	SolveBy SolveByType

	// FKAction
	FKGoal RobotState

	// IKAction
	IKGoal      geometry.Pose
	SourceLinks []string
	FixedShape  *RobotState
	Context     map[string]any

	// Nav3DAction
	NavPose         geometry.Pose
	NavRelativePose geometry.Pose
	NavDestName     string
	NavTimeout      float64 // seconds; negative = infinite (spec.md §5)

	// PointToAction
	PointToPoint      geometry.Point
	PointToSourceLink string

	// CommandAction
	Commands map[string]any
}

// NullAction is the singleton empty action used for log resets and no-op
// steps (e.g. the navigation "already at destination" case, §4.J).
func NullAction() RobotAction { return RobotAction{SolveBy: SolveByNull} }

// InitRobotAction requests the adapter's init() call (§4.B, used by Prepare).
func InitRobotAction() RobotAction { return RobotAction{SolveBy: SolveByInit} }

// FKAction builds a forward-kinematics goal action.
func FKAction(goal RobotState) RobotAction {
	return RobotAction{SolveBy: SolveByFK, FKGoal: goal}
}

// IKActionFor builds an inverse-kinematics goal action.
func IKActionFor(goal geometry.Pose, sourceLinks []string) RobotAction {
	return RobotAction{SolveBy: SolveByIK, IKGoal: goal, SourceLinks: sourceLinks}
}

// Nav3DActionFor builds a navigation goal action.
func Nav3DActionFor(pose, relative geometry.Pose, destName string, timeout float64) RobotAction {
	return RobotAction{SolveBy: SolveByNav3D, NavPose: pose, NavRelativePose: relative, NavDestName: destName, NavTimeout: timeout}
}

// PointToActionFor builds a point-to-point gaze/reach action.
func PointToActionFor(point geometry.Point, sourceLink string) RobotAction {
	return RobotAction{SolveBy: SolveByPointTo, PointToPoint: point, PointToSourceLink: sourceLink}
}

// CommandActionFor builds a raw adapter command action (e.g. gripper open/close).
func CommandActionFor(commands map[string]any) RobotAction {
	return RobotAction{SolveBy: SolveByCommand, Commands: commands}
}

// CombinedRobotAction is the per-step bundle of commands fanned out to
// multiple adapters (spec.md §3).
type CombinedRobotAction struct {
	Task    string
	Actions map[RobotID][]RobotAction
}

// NewCombinedRobotAction builds an empty action bundle for the given task.
func NewCombinedRobotAction(task string) CombinedRobotAction {
	return CombinedRobotAction{Task: task, Actions: make(map[RobotID][]RobotAction)}
}
