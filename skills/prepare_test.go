package skills_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/blackboard"
	"tasqsym/model"
	"tasqsym/skills"
)

func TestPrepareDecoderAlwaysSucceeds(t *testing.T) {
	d := skills.NewPrepareDecoder()
	st := d.Decode(context.Background(), nil, blackboard.New())
	require.True(t, st.Ok())
	assert.Empty(t, d.AsConfig())
	assert.True(t, d.IsReadyForExecution())
}

func TestPrepareFormatActionInitsEveryRobot(t *testing.T) {
	env := newTestEnv(t, []model.RobotID{"arm", "base"})
	s := skills.NewPrepare()
	require.True(t, s.Init(context.Background(), env, nil).Ok())

	obs, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
	require.NoError(t, err)
	action, err := s.GetAction(context.Background(), obs)
	require.NoError(t, err)
	require.False(t, s.GetTerminal(obs, action), "first iteration must dispatch before terminating")

	combined, err := s.FormatAction(context.Background(), action)
	require.NoError(t, err)
	assert.Len(t, combined.Actions, 3)
	for _, acts := range combined.Actions {
		require.Len(t, acts, 1)
		assert.Equal(t, model.SolveByInit, acts[0].SolveBy)
	}

	obs2, err := s.AppendTaskSpecificStates(context.Background(), map[string]any{}, env, false)
	require.NoError(t, err)
	action2, err := s.GetAction(context.Background(), obs2)
	require.NoError(t, err)
	assert.True(t, s.GetTerminal(obs2, action2), "second iteration terminates without dispatching again")
}
