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

func TestNavigationDecoderRequiresDestinationKey(t *testing.T) {
	d := skills.NewNavigationDecoder()
	st := d.Decode(context.Background(), map[string]any{}, blackboard.New())
	assert.False(t, st.Ok())
}

func TestNavigationDecoderNilDestinationIsPointOnMap(t *testing.T) {
	d := skills.NewNavigationDecoder()
	st := d.Decode(context.Background(), map[string]any{"destination": nil, "context": "kitchen"}, blackboard.New())
	require.True(t, st.Ok())
	assert.True(t, d.IsReadyForExecution())
	assert.Equal(t, "point_on_map", d.AsConfig()["goal_type"])
}

func TestNavigationDecoderCoordinateRequiresFrame(t *testing.T) {
	d := skills.NewNavigationDecoder()
	st := d.Decode(context.Background(), map[string]any{"destination": []any{1.0, 0.0, 0.0}}, blackboard.New())
	assert.False(t, st.Ok())
}

func TestNavigationDecoderRelativeMovementDefaultsOrientation(t *testing.T) {
	d := skills.NewNavigationDecoder()
	st := d.Decode(context.Background(), map[string]any{
		"destination": []any{1.0, 0.0, 0.0},
		"frame":       "current_state",
	}, blackboard.New())
	require.True(t, st.Ok())
	cfg := d.AsConfig()
	assert.Equal(t, "relative_movement", cfg["goal_type"])
	q, ok := cfg["orientation"].(*geometry.Quaternion)
	require.True(t, ok)
	require.NotNil(t, q)
	assert.Equal(t, geometry.Identity, *q)
}

func TestNavigationRelativeMovementAlwaysDispatches(t *testing.T) {
	env := newTestEnv(t, nil)
	s := skills.NewNavigation()
	ident := geometry.Identity
	cfg := map[string]any{
		"goal_type":   "relative_movement",
		"destination": geometry.Point{X: 1, Y: 0, Z: 0},
		"orientation": &ident,
		"context":     "",
	}
	require.True(t, s.Init(context.Background(), env, cfg).Ok())

	obs, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
	require.NoError(t, err)
	action, err := s.GetAction(context.Background(), obs)
	require.NoError(t, err)
	require.False(t, s.GetTerminal(obs, action), "first iteration must dispatch before terminating")

	combined, err := s.FormatAction(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, combined.Actions[model.RobotID("base")], 1)
	assert.Equal(t, model.SolveByNav3D, combined.Actions[model.RobotID("base")][0].SolveBy)

	obs2, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
	require.NoError(t, err)
	action2, err := s.GetAction(context.Background(), obs2)
	require.NoError(t, err)
	assert.True(t, s.GetTerminal(obs2, action2))
}

func TestNavigationAbsoluteMovementStaysWhenAlreadyAtDestination(t *testing.T) {
	env := newTestEnv(t, nil)
	s := skills.NewNavigation()
	cfg := map[string]any{
		"goal_type":   "absolute_movement",
		"destination": geometry.Point{X: 0, Y: 0, Z: 0}, // base's fake starting pose is identity
		"orientation": (*geometry.Quaternion)(nil),
		"context":     "",
	}
	require.True(t, s.Init(context.Background(), env, cfg).Ok())

	obs, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
	require.NoError(t, err)
	action, err := s.GetAction(context.Background(), obs)
	require.NoError(t, err)
	require.False(t, s.GetTerminal(obs, action))

	combined, err := s.FormatAction(context.Background(), action)
	require.NoError(t, err)
	act := combined.Actions[model.RobotID("base")][0]
	assert.Equal(t, model.SolveByNull, act.SolveBy)
}
