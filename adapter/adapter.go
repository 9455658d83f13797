// Package adapter defines the four extension points the runtime consumes
// (spec.md §4.B): model robots, physical robots, physical sensors, and the
// robot combiner. None of these are implemented here — the package is the
// contract; concrete adapters (IK solvers, drivers, cameras) are external
// collaborators per spec.md §1.
package adapter

import (
	"context"

	"github.com/pkg/errors"

	"tasqsym/geometry"
	"tasqsym/model"
)

// ErrUnimplemented is returned by adapter methods an implementation
// deliberately does not support, matching the `errUnimplemented` pattern
// of viam-devrel-so-101/arm.go.
var ErrUnimplemented = errors.New("adapter: unimplemented")

// ModelRobot is kinematic knowledge with no hardware binding: predefined
// postures for named tasks.
type ModelRobot interface {
	Create(ctx context.Context) error
	Destroy(ctx context.Context) error
	// ConfigurationForTask returns the predefined posture for a named task
	// (e.g. "find", "bring"), given decoded params and the latest known
	// state.
	ConfigurationForTask(ctx context.Context, task string, params map[string]any, latest model.RobotState) (model.RobotState, error)
}

// EndEffectorModelRobot is a ModelRobot that additionally knows how to
// translate orientation goals between the standard basis and its own
// gripper-specific basis.
type EndEffectorModelRobot interface {
	ModelRobot

	// OrientationTransform moves `desired` (standard basis) into this
	// gripper's basis for `controlLink`, using `knownPair` if a dynamic
	// pair has already been latched (else a static, model-specific
	// fallback), composed with robotTransform (the robot's current base
	// orientation).
	OrientationTransform(ctx context.Context, controlLink string, desired geometry.Quaternion, knownPair *model.TransformPair, robotTransform geometry.Quaternion) (geometry.Quaternion, error)

	// GenerateOrientationTransformPair latches a dynamic transform pair per
	// contact annotation, called at grasp time (spec.md §3, §4.C).
	GenerateOrientationTransformPair(ctx context.Context, params map[string]any) (map[model.ContactAnnotation]model.TransformPair, error)
}

// PhysicalRobot is the hardware driver contract. Every send* call returns
// once the motion completes or fails; cancellation is delivered by the
// caller abandoning the send (context cancellation) and then explicitly
// invoking the paired abort* (spec.md §4.B, §5).
type PhysicalRobot interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	LatestState(ctx context.Context) (model.RobotState, error)
	EmergencyStop(ctx context.Context) model.Status
	Init(ctx context.Context) model.Status

	SendJointAngles(ctx context.Context, actions []model.RobotAction) model.Status
	AbortJointAngles(ctx context.Context) model.Status

	SendBasePose(ctx context.Context, actions []model.RobotAction) model.Status
	AbortBasePose(ctx context.Context) model.Status

	SendTargetMotion(ctx context.Context, actions []model.RobotAction) model.Status
	AbortTargetMotion(ctx context.Context) model.Status

	SendPointToMotion(ctx context.Context, actions []model.RobotAction) model.Status
	AbortPointToMotion(ctx context.Context) model.Status

	SendControlCommand(ctx context.Context, actions []model.RobotAction) model.Status
	AbortControlCommand(ctx context.Context) model.Status

	// GetLinkTransform is optional; end-effectors may return ErrUnimplemented.
	GetLinkTransform(ctx context.Context, link string) (geometry.Pose, error)
}

// SensorType distinguishes the two sensor families the runtime knows
// about.
type SensorType string

const (
	SensorForce  SensorType = "FORCE_6AXIS"
	SensorCamera SensorType = "CAMERA_3D"
)

// PhysicalSensor is the sensor driver contract.
type PhysicalSensor interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Type() SensorType

	// GetPhysicsState reads a 6-axis force sensor.
	GetPhysicsState(ctx context.Context, cmd string, data map[string]any) (model.Status, map[string]any, error)

	// GetSceneryState reads a 3D camera / recognition sensor.
	GetSceneryState(ctx context.Context, cmd string, data map[string]any) (model.Status, map[string]any, error)
}

// RecognitionResult is what Find expects back from a scenery-state read
// via the combiner's chosen recognition method (spec.md §4.J).
type RecognitionResult struct {
	Description string
	Position    geometry.Point
	Orientation geometry.Quaternion
	Scale       float64
	Accuracy    float64
}

// RobotCombiner is task-dependent policy: which end-effector/sensor is in
// focus right now, and how to transform between frames for a given task.
type RobotCombiner interface {
	SetEndEffectorRobot(ctx context.Context, task string, params map[string]any) (model.RobotID, error)
	SetSensor(ctx context.Context, sensorType SensorType, task string, params map[string]any) (model.RobotID, error)
	SetMultipleEndEffectorRobots(ctx context.Context, task string, params map[string]any) ([]model.RobotID, error)

	// TaskTransform returns, per robot id, a named frame-pair -> Pose
	// mapping (e.g. "target_in_world" -> Pose) used by skills like
	// navigation's relative-to-visually-detected-target mode.
	TaskTransform(ctx context.Context, task string, params map[string]any, states model.CombinedRobotState) (map[model.RobotID]map[string]geometry.Pose, error)

	RecognitionMethod(ctx context.Context, task string, params map[string]any) (string, error)
}
