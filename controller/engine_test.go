package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/adapter"
	"tasqsym/controller"
	"tasqsym/geometry"
	"tasqsym/logging"
	"tasqsym/model"
)

type fakeAdapter struct {
	mu        sync.Mutex
	connected bool
	aborted   map[model.SolveByType]int
	blockSend chan struct{} // if non-nil, SendTargetMotion blocks until ctx done or this closes
	state     model.RobotState
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{aborted: make(map[model.SolveByType]int)}
}

func (f *fakeAdapter) Connect(ctx context.Context) error    { f.mu.Lock(); f.connected = true; f.mu.Unlock(); return nil }
func (f *fakeAdapter) Disconnect(ctx context.Context) error { f.mu.Lock(); f.connected = false; f.mu.Unlock(); return nil }
func (f *fakeAdapter) LatestState(ctx context.Context) (model.RobotState, error) {
	return f.state, nil
}
func (f *fakeAdapter) EmergencyStop(ctx context.Context) model.Status { return model.Success("stopped") }
func (f *fakeAdapter) Init(ctx context.Context) model.Status         { return model.Success("init") }

func (f *fakeAdapter) SendJointAngles(ctx context.Context, actions []model.RobotAction) model.Status {
	return model.Success("ok")
}
func (f *fakeAdapter) AbortJointAngles(ctx context.Context) model.Status { return f.recordAbort(model.SolveByFK) }

func (f *fakeAdapter) SendBasePose(ctx context.Context, actions []model.RobotAction) model.Status {
	return model.Success("ok")
}
func (f *fakeAdapter) AbortBasePose(ctx context.Context) model.Status { return f.recordAbort(model.SolveByNav3D) }

func (f *fakeAdapter) SendTargetMotion(ctx context.Context, actions []model.RobotAction) model.Status {
	if f.blockSend != nil {
		select {
		case <-ctx.Done():
			return model.Aborted("cancelled")
		case <-f.blockSend:
			return model.Success("ok")
		}
	}
	return model.Success("ok")
}
func (f *fakeAdapter) AbortTargetMotion(ctx context.Context) model.Status { return f.recordAbort(model.SolveByIK) }

func (f *fakeAdapter) SendPointToMotion(ctx context.Context, actions []model.RobotAction) model.Status {
	return model.Success("ok")
}
func (f *fakeAdapter) AbortPointToMotion(ctx context.Context) model.Status {
	return f.recordAbort(model.SolveByPointTo)
}

func (f *fakeAdapter) SendControlCommand(ctx context.Context, actions []model.RobotAction) model.Status {
	return model.Success("ok")
}
func (f *fakeAdapter) AbortControlCommand(ctx context.Context) model.Status {
	return f.recordAbort(model.SolveByCommand)
}

func (f *fakeAdapter) GetLinkTransform(ctx context.Context, link string) (geometry.Pose, error) {
	return geometry.IdentityPose, adapter.ErrUnimplemented
}

func (f *fakeAdapter) recordAbort(t model.SolveByType) model.Status {
	f.mu.Lock()
	f.aborted[t]++
	f.mu.Unlock()
	return model.Success("aborted")
}

func (f *fakeAdapter) abortCount(t model.SolveByType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborted[t]
}

func newTestEngine(t *testing.T, adapters map[model.RobotID]*fakeAdapter) *controller.Engine {
	t.Helper()
	ar := controller.NewAdapterRegistry()
	for id, a := range adapters {
		id, a := id, a
		ar.Register(string(id)+"-model", func(ctx context.Context, nodeID model.RobotID, configs map[string]any, logger logging.Logger) (adapter.PhysicalRobot, error) {
			return a, nil
		})
	}
	var models []model.TopologyNode
	for id := range adapters {
		models = append(models, model.TopologyNode{UniqueID: id, Role: model.RoleManipulator, PhysicalRobot: string(id) + "-model"})
	}
	topo := model.TopologyConfig{Models: models}
	e, err := controller.NewEngine(context.Background(), topo, ar, nil, logging.NewTest())
	require.NoError(t, err)
	return e
}

func TestUpdateDispatchesByFirstActionType(t *testing.T) {
	arm := newFakeAdapter()
	e := newTestEngine(t, map[model.RobotID]*fakeAdapter{"arm": arm})

	action := model.NewCombinedRobotAction("t")
	action.Actions["arm"] = []model.RobotAction{model.FKAction(model.RobotState{})}

	state, status := e.Update(context.Background(), action)
	assert.True(t, status.Ok())
	_, ok := state.RobotStates["arm"]
	assert.True(t, ok, "invariant §8.3: every adapter id appears exactly once")
}

func TestUpdateAbortsOnCancellation(t *testing.T) {
	arm := newFakeAdapter()
	arm.blockSend = make(chan struct{})
	e := newTestEngine(t, map[model.RobotID]*fakeAdapter{"arm": arm})

	action := model.NewCombinedRobotAction("nav")
	action.Actions["arm"] = []model.RobotAction{model.IKActionFor(geometry.IdentityPose, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var status model.Status
	go func() {
		_, status = e.Update(ctx, action)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, model.StatusAborted, status.Kind)
	assert.Equal(t, 1, arm.abortCount(model.SolveByIK))
}

func TestEmergencyStopSkipsAbort(t *testing.T) {
	arm := newFakeAdapter()
	arm.blockSend = make(chan struct{})
	e := newTestEngine(t, map[model.RobotID]*fakeAdapter{"arm": arm})
	e.SetEmergencyStopRequest(true)

	action := model.NewCombinedRobotAction("nav")
	action.Actions["arm"] = []model.RobotAction{model.IKActionFor(geometry.IdentityPose, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var status model.Status
	go func() {
		_, status = e.Update(ctx, action)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, model.StatusAborted, status.Kind)
	assert.Equal(t, 0, arm.abortCount(model.SolveByIK), "emergency path must skip abort*")
}

func TestEmergencyStopFansOutToAll(t *testing.T) {
	arm := newFakeAdapter()
	base := newFakeAdapter()
	e := newTestEngine(t, map[model.RobotID]*fakeAdapter{"arm": arm, "base": base})

	status := e.EmergencyStop(context.Background())
	assert.True(t, status.Ok())
}

func TestCancelActiveDispatchFalseWhenIdle(t *testing.T) {
	e := newTestEngine(t, map[model.RobotID]*fakeAdapter{"arm": newFakeAdapter()})
	assert.False(t, e.CancelActiveDispatch())
}

// TestGetSensorTransformUnknownSensorReturnsIdentityPose pins the
// documented failure-return resolution (DESIGN.md Open Question #3):
// an unresolvable sensor transform comes back as geometry.IdentityPose,
// not the Go zero-value Pose (a degenerate all-zero quaternion).
func TestGetSensorTransformUnknownSensorReturnsIdentityPose(t *testing.T) {
	e := newTestEngine(t, map[model.RobotID]*fakeAdapter{"arm": newFakeAdapter()})

	pose, status := e.GetSensorTransform(context.Background(), "no-such-sensor")
	assert.False(t, status.Ok())
	assert.Equal(t, geometry.IdentityPose, pose)
}
