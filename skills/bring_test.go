package skills_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/blackboard"
	"tasqsym/geometry"
	"tasqsym/model"
	"tasqsym/skills"
)

func TestBringDecoderRequiresDestinationKey(t *testing.T) {
	d := skills.NewBringDecoder()
	st := d.Decode(context.Background(), map[string]any{}, blackboard.New())
	assert.False(t, st.Ok())
}

func TestBringDecoderNilDestinationNeedsContext(t *testing.T) {
	d := skills.NewBringDecoder()
	st := d.Decode(context.Background(), map[string]any{"destination": nil}, blackboard.New())
	assert.False(t, st.Ok())
}

func TestBringDecoderFromContext(t *testing.T) {
	d := skills.NewBringDecoder()
	st := d.Decode(context.Background(), map[string]any{"destination": nil, "context": "table"}, blackboard.New())
	require.True(t, st.Ok())
	assert.True(t, d.IsReadyForExecution())
	assert.Equal(t, "from_context", d.AsConfig()["goal_type"])
}

func TestBringDecoderCoordinateDestinationRequiresFrame(t *testing.T) {
	d := skills.NewBringDecoder()
	st := d.Decode(context.Background(), map[string]any{"destination": []any{1.0, 0.0, 0.0}}, blackboard.New())
	assert.False(t, st.Ok())
}

func TestBringDecoderResolvesOriginFrame(t *testing.T) {
	env := newTestEnv(t, nil)
	d := skills.NewBringDecoder()
	st := d.Decode(context.Background(), map[string]any{
		"destination": []any{1.0, 0.0, 0.0},
		"frame":       "origin",
	}, blackboard.New())
	require.True(t, st.Ok())

	st = d.FillRuntimeParameters(context.Background(), map[string]any{}, blackboard.New(), env)
	require.True(t, st.Ok())

	cfg := d.AsConfig()
	pt, ok := cfg["destination"].(geometry.Point)
	require.True(t, ok)
	assert.InDelta(t, 1.0, pt.X, 1e-9)
}

func TestBringFromContextDispatchesFKAndTerminatesOnSecondIteration(t *testing.T) {
	env := newTestEnv(t, nil)
	s := skills.NewBring()
	cfg := map[string]any{
		"goal_type": "from_context",
		"context":   "",
	}
	require.True(t, s.Init(context.Background(), env, cfg).Ok())

	obs, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
	require.NoError(t, err)
	action, err := s.GetAction(context.Background(), obs)
	require.NoError(t, err)
	require.False(t, s.GetTerminal(obs, action), "first iteration must dispatch before terminating")

	combined, err := s.FormatAction(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, combined.Actions[model.RobotID("arm")], 1)
	assert.Equal(t, model.SolveByFK, combined.Actions[model.RobotID("arm")][0].SolveBy)

	obs2, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
	require.NoError(t, err)
	action2, err := s.GetAction(context.Background(), obs2)
	require.NoError(t, err)
	assert.True(t, s.GetTerminal(obs2, action2))
}

func TestBringCoordinateDestinationTrajectory(t *testing.T) {
	env := newTestEnv(t, nil)
	s := skills.NewBring()
	cfg := map[string]any{
		"goal_type":             "coordinate_destination",
		"destination":           geometry.Point{X: 1, Y: 0, Z: 0},
		"null_orientation_goal": false,
		"context":               "",
		"num_segments":          2,
	}
	require.True(t, s.Init(context.Background(), env, cfg).Ok())

	var lastCombined model.CombinedRobotAction
	iterations := 0
	for i := 0; i < 5; i++ {
		obs, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
		require.NoError(t, err)
		action, err := s.GetAction(context.Background(), obs)
		require.NoError(t, err)
		if s.GetTerminal(obs, action) {
			break
		}
		lastCombined, err = s.FormatAction(context.Background(), action)
		require.NoError(t, err)
		iterations++
	}

	assert.Equal(t, 2, iterations)
	act := lastCombined.Actions[model.RobotID("arm")][0]
	assert.Equal(t, model.SolveByIK, act.SolveBy)
	assert.InDelta(t, 1.0, act.IKGoal.Position.X, 1e-9)

	_, err := s.OnFinish(context.Background(), env, blackboard.New())
	require.NoError(t, err)
}
