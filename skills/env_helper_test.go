package skills_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tasqsym/adapter"
	"tasqsym/controller"
	"tasqsym/geometry"
	"tasqsym/kinematics"
	"tasqsym/logging"
	"tasqsym/model"
	"tasqsym/pipeline"
	"tasqsym/skill"
)

// fakeRobotAdapter is a no-op PhysicalRobot that reports a fixed state.
type fakeRobotAdapter struct {
	state model.RobotState
	link  geometry.Pose
}

func (f *fakeRobotAdapter) Connect(ctx context.Context) error    { return nil }
func (f *fakeRobotAdapter) Disconnect(ctx context.Context) error { return nil }
func (f *fakeRobotAdapter) LatestState(ctx context.Context) (model.RobotState, error) {
	return f.state, nil
}
func (f *fakeRobotAdapter) EmergencyStop(ctx context.Context) model.Status { return model.Success("") }
func (f *fakeRobotAdapter) Init(ctx context.Context) model.Status         { return model.Success("") }
func (f *fakeRobotAdapter) SendJointAngles(ctx context.Context, a []model.RobotAction) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) AbortJointAngles(ctx context.Context) model.Status { return model.Success("") }
func (f *fakeRobotAdapter) SendBasePose(ctx context.Context, a []model.RobotAction) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) AbortBasePose(ctx context.Context) model.Status { return model.Success("") }
func (f *fakeRobotAdapter) SendTargetMotion(ctx context.Context, a []model.RobotAction) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) AbortTargetMotion(ctx context.Context) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) SendPointToMotion(ctx context.Context, a []model.RobotAction) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) AbortPointToMotion(ctx context.Context) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) SendControlCommand(ctx context.Context, a []model.RobotAction) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) AbortControlCommand(ctx context.Context) model.Status {
	return model.Success("")
}
func (f *fakeRobotAdapter) GetLinkTransform(ctx context.Context, link string) (geometry.Pose, error) {
	return f.link, nil
}

// fakeModel is a ModelRobot + EndEffectorModelRobot stand-in returning a
// fixed posture per task name.
type fakeModel struct {
	postures map[string]model.RobotState
}

func (f *fakeModel) Create(ctx context.Context) error  { return nil }
func (f *fakeModel) Destroy(ctx context.Context) error { return nil }
func (f *fakeModel) ConfigurationForTask(ctx context.Context, task string, params map[string]any, latest model.RobotState) (model.RobotState, error) {
	if p, ok := f.postures[task]; ok {
		return p, nil
	}
	return latest, nil
}
func (f *fakeModel) OrientationTransform(ctx context.Context, controlLink string, desired geometry.Quaternion, knownPair *model.TransformPair, robotTransform geometry.Quaternion) (geometry.Quaternion, error) {
	return desired, nil
}
func (f *fakeModel) GenerateOrientationTransformPair(ctx context.Context, params map[string]any) (map[model.ContactAnnotation]model.TransformPair, error) {
	return map[model.ContactAnnotation]model.TransformPair{}, nil
}

type fakeSensor struct {
	sceneryResult map[string]any
	physicsResult map[string]any
}

func (f *fakeSensor) Connect(ctx context.Context) error    { return nil }
func (f *fakeSensor) Disconnect(ctx context.Context) error { return nil }
func (f *fakeSensor) Type() adapter.SensorType             { return adapter.SensorCamera }
func (f *fakeSensor) GetPhysicsState(ctx context.Context, cmd string, data map[string]any) (model.Status, map[string]any, error) {
	return model.Success(""), f.physicsResult, nil
}
func (f *fakeSensor) GetSceneryState(ctx context.Context, cmd string, data map[string]any) (model.Status, map[string]any, error) {
	return model.Success(""), f.sceneryResult, nil
}

type fakeCombiner struct{}

func (fakeCombiner) SetEndEffectorRobot(ctx context.Context, task string, params map[string]any) (model.RobotID, error) {
	return "gripper", nil
}
func (fakeCombiner) SetSensor(ctx context.Context, t adapter.SensorType, task string, params map[string]any) (model.RobotID, error) {
	return "camera", nil
}
func (fakeCombiner) SetMultipleEndEffectorRobots(ctx context.Context, task string, params map[string]any) ([]model.RobotID, error) {
	return []model.RobotID{"gripper"}, nil
}
func (fakeCombiner) TaskTransform(ctx context.Context, task string, params map[string]any, states model.CombinedRobotState) (map[model.RobotID]map[string]geometry.Pose, error) {
	return map[model.RobotID]map[string]geometry.Pose{
		"base": {
			"map->base":       {Position: geometry.Point{X: 1, Y: 2, Z: 0}, Orientation: geometry.Identity},
			"base_old->base_new": {Position: geometry.Point{X: 1, Y: 0, Z: 0}, Orientation: geometry.Identity},
		},
	}, nil
}
func (fakeCombiner) RecognitionMethod(ctx context.Context, task string, params map[string]any) (string, error) {
	return "default", nil
}

// newTestEnv builds a real pipeline over a base -> arm -> gripper chain
// plus a camera sensor mounted on the arm, with no-op adapters/models, for
// skill-level tests.
func newTestEnv(t *testing.T, extraRobots []model.RobotID) *skill.Env {
	t.Helper()

	gripperState := model.NewEndEffectorState(
		model.JointState{Positions: []float64{0, 0}, Names: []string{"f1", "f2"}},
		"wrist",
		geometry.IdentityPose,
		map[model.ContactAnnotation]model.LinkPose{
			model.ContactCenter: {LinkName: "tip", Pose: geometry.IdentityPose},
		},
	)
	closedState := model.NewEndEffectorState(
		model.JointState{Positions: []float64{1, 1}, Names: []string{"f1", "f2"}},
		"wrist",
		geometry.IdentityPose,
		map[model.ContactAnnotation]model.LinkPose{
			model.ContactCenter: {LinkName: "tip", Pose: geometry.IdentityPose},
		},
	)

	topo := model.TopologyConfig{
		Models: []model.TopologyNode{
			{
				UniqueID: "base", Role: model.RoleMobileBase,
				ModelRobot: "fake", PhysicalRobot: "fake-robot",
				Children: []model.TopologyNode{
					{
						UniqueID: "arm", Role: model.RoleManipulator, ParentLink: "torso",
						ModelRobot: "fake", PhysicalRobot: "fake-robot",
						Children: []model.TopologyNode{
							{
								UniqueID: "gripper", Role: model.RoleEndEffector, ParentLink: "wrist",
								ModelRobot: "fake", PhysicalRobot: "fake-robot",
							},
							{
								UniqueID: "camera", Role: model.RoleSensor, ParentLink: "camera_mount",
								ModelRobot: "fake", PhysicalSensor: "fake-sensor",
							},
						},
					},
				},
			},
		},
	}

	mr := kinematics.NewModelRegistry()
	mr.Register("fake", func(ctx context.Context, id model.RobotID, configs map[string]any, logger logging.Logger) (adapter.ModelRobot, error) {
		return &fakeModel{postures: map[string]model.RobotState{
			"release": gripperState,
			"grasp":   closedState,
		}}, nil
	})

	ar := controller.NewAdapterRegistry()
	ar.Register("fake-robot", func(ctx context.Context, id model.RobotID, configs map[string]any, logger logging.Logger) (adapter.PhysicalRobot, error) {
		state := model.RobotState{Role: model.RoleManipulator, Base: geometry.IdentityPose}
		if id == "gripper" {
			state = gripperState
		}
		if id == "base" {
			state = model.NewMobileBaseState(geometry.IdentityPose)
		}
		return &fakeRobotAdapter{state: state, link: geometry.IdentityPose}, nil
	})

	sr := controller.NewSensorRegistry()
	sr.Register("fake-sensor", func(ctx context.Context, id model.RobotID, configs map[string]any, logger logging.Logger) (adapter.PhysicalSensor, error) {
		return &fakeSensor{
			sceneryResult: map[string]any{
				"position":    geometry.Point{X: 1, Y: 0, Z: 0.5},
				"orientation": geometry.Identity,
				"scale":       1.0,
				"accuracy":    0.9,
			},
			physicsResult: map[string]any{"contact_environment": false},
		}, nil
	})

	logger := logging.NewTest()
	kin, err := kinematics.NewEngine(context.Background(), topo, mr, fakeCombiner{}, logger)
	require.NoError(t, err)
	ctrl, err := controller.NewEngine(context.Background(), topo, ar, sr, logger)
	require.NoError(t, err)
	p, err := pipeline.New(kin, ctrl, logger)
	require.NoError(t, err)

	// seed LatestState so skills can read it before any real dispatch.
	ctrl.Update(context.Background(), model.NewCombinedRobotAction("init"))

	return skill.NewEnv(p, fakeCombiner{}, logger)
}
