package kinematics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/adapter"
	"tasqsym/geometry"
	"tasqsym/kinematics"
	"tasqsym/logging"
	"tasqsym/model"
)

type fakeModel struct{}

func (fakeModel) Create(ctx context.Context) error  { return nil }
func (fakeModel) Destroy(ctx context.Context) error { return nil }
func (fakeModel) ConfigurationForTask(ctx context.Context, task string, params map[string]any, latest model.RobotState) (model.RobotState, error) {
	return latest, nil
}

func fakeFactory(ctx context.Context, id model.RobotID, configs map[string]any, logger logging.Logger) (adapter.ModelRobot, error) {
	return fakeModel{}, nil
}

func simpleTopology() model.TopologyConfig {
	return model.TopologyConfig{
		Models: []model.TopologyNode{
			{
				UniqueID:   "base",
				Role:       model.RoleMobileBase,
				ModelRobot: "fake",
				Children: []model.TopologyNode{
					{
						UniqueID:   "arm",
						Role:       model.RoleManipulator,
						ParentLink: "torso",
						ModelRobot: "fake",
						Children: []model.TopologyNode{
							{
								UniqueID:   "gripper",
								Role:       model.RoleEndEffector,
								ParentLink: "wrist",
								ModelRobot: "fake",
							},
						},
					},
				},
			},
		},
	}
}

func newTestEngine(t *testing.T) *kinematics.Engine {
	t.Helper()
	mr := kinematics.NewModelRegistry()
	mr.Register("fake", fakeFactory)
	e, err := kinematics.NewEngine(context.Background(), simpleTopology(), mr, nil, logging.NewTest())
	require.NoError(t, err)
	return e
}

func TestNewEngineBuildsTreeAndPicksBase(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, model.RobotID("base"), e.BaseID())
	assert.Equal(t, model.RobotID("gripper"), e.EndEffectorID())
	assert.ElementsMatch(t, []model.RobotID{"base", "arm", "gripper"}, e.IDs())
}

func TestNewEngineRejectsMultipleMobileRoots(t *testing.T) {
	topo := model.TopologyConfig{
		Models: []model.TopologyNode{
			{UniqueID: "base1", Role: model.RoleMobileBase, ModelRobot: "fake"},
			{UniqueID: "base2", Role: model.RoleMobileBase, ModelRobot: "fake"},
		},
	}
	mr := kinematics.NewModelRegistry()
	mr.Register("fake", fakeFactory)
	_, err := kinematics.NewEngine(context.Background(), topo, mr, nil, logging.NewTest())
	require.Error(t, err)
}

func TestNewEngineRejectsUnknownModel(t *testing.T) {
	topo := model.TopologyConfig{
		Models: []model.TopologyNode{
			{UniqueID: "base", Role: model.RoleMobileBase, ModelRobot: "nope"},
		},
	}
	mr := kinematics.NewModelRegistry()
	_, err := kinematics.NewEngine(context.Background(), topo, mr, nil, logging.NewTest())
	require.Error(t, err)
}

func TestSetEndEffectorRobotSingleCandidate(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.SetEndEffectorRobot(context.Background(), "grasp", nil)
	require.NoError(t, err)
	assert.Equal(t, model.RobotID("gripper"), id)
}

// TestUpdateActionLogInvariant checks invariant §8.2: uncommanded robots
// reset to [NullAction]; commanded robots reflect this step's types in
// insertion order; LastActions is replaced, not appended.
func TestUpdateActionLogInvariant(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	step1 := model.NewCombinedRobotAction("t")
	step1.Actions["arm"] = []model.RobotAction{model.FKAction(model.RobotState{})}
	_, err := e.Update(ctx, step1)
	require.NoError(t, err)

	log := e.ActionLog()
	assert.Equal(t, []model.SolveByType{model.SolveByFK}, log.MostLatestActionTypes["arm"])
	assert.Equal(t, []model.SolveByType{model.SolveByNull}, log.MostLatestActionTypes["base"])
	assert.Len(t, log.LastActions["arm"][model.SolveByFK], 1)

	step2 := model.NewCombinedRobotAction("t")
	step2.Actions["arm"] = []model.RobotAction{
		model.IKActionFor(geometry.IdentityPose, []string{"wrist"}),
	}
	_, err = e.Update(ctx, step2)
	require.NoError(t, err)

	log = e.ActionLog()
	assert.Equal(t, []model.SolveByType{model.SolveByIK}, log.MostLatestActionTypes["arm"])
	// arm is commanded again in step2 with IK only: FK entry from step1 is
	// stale-but-present per the documented ambiguity (only cleared when
	// that type is re-commanded); IK entry now populated.
	assert.Len(t, log.LastActions["arm"][model.SolveByIK], 1)
	assert.Len(t, log.LastActions["arm"][model.SolveByFK], 1, "stale FK entry from a prior step is not cleared")

	// base was never commanded across either step: still [NullAction].
	assert.Equal(t, []model.SolveByType{model.SolveByNull}, log.MostLatestActionTypes["base"])
}

func TestFreeSensorsZeroesAllTypes(t *testing.T) {
	e := newTestEngine(t)
	// Manually simulate two focused sensor types via SetSensor's single
	// code path isn't reachable without sensor nodes; directly test
	// FreeSensor/FreeSensors idempotence instead.
	e.FreeSensor(adapter.SensorCamera)
	e.FreeSensors()
	_, ok := e.SensorID(adapter.SensorCamera)
	assert.False(t, ok)
}
