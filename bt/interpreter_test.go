package bt_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/blackboard"
	"tasqsym/bt"
	"tasqsym/model"
	"tasqsym/registry"
	"tasqsym/skill"
)

// fakeDecoder is a no-op decoder: always ready, never touches params.
type fakeDecoder struct{}

func (fakeDecoder) Decode(ctx context.Context, params map[string]any, board *blackboard.Blackboard) model.Status {
	return model.Success("")
}
func (fakeDecoder) FillRuntimeParameters(ctx context.Context, params map[string]any, board *blackboard.Blackboard, env *skill.Env) model.Status {
	return model.Success("")
}
func (fakeDecoder) AsConfig() map[string]any  { return map[string]any{} }
func (fakeDecoder) IsReadyForExecution() bool { return true }

// stubSkill terminates immediately without ever dispatching through the
// pipeline (so these tests can use a nil-Pipeline Env); its Init result
// is produced by next(), letting a test script a fixed status or a
// sequence of statuses across repeated invocations of the same node (used
// by the RetryUntilSuccessful test).
type stubSkill struct {
	next func() model.Status
}

func fixedSkill(st model.Status) *stubSkill {
	return &stubSkill{next: func() model.Status { return st }}
}

func (s *stubSkill) Init(ctx context.Context, env *skill.Env, params map[string]any) model.Status {
	return s.next()
}
func (s *stubSkill) AnyInitiationAction(ctx context.Context, env *skill.Env) (*model.CombinedRobotAction, error) {
	return nil, nil
}
func (s *stubSkill) AnyPostInitiation(ctx context.Context, env *skill.Env) model.Status {
	return model.Success("")
}
func (s *stubSkill) AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *skill.Env, training bool) (map[string]any, error) {
	return obs, nil
}
func (s *stubSkill) GetAction(ctx context.Context, obs map[string]any) (map[string]any, error) {
	return map[string]any{"terminate": true}, nil
}
func (s *stubSkill) FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error) {
	return model.NewCombinedRobotAction("noop"), nil
}
func (s *stubSkill) GetTerminal(obs map[string]any, action map[string]any) bool { return true }
func (s *stubSkill) OnFinish(ctx context.Context, env *skill.Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error) {
	return nil, nil
}
func (s *stubSkill) Interruptible() bool { return true }

func buildLibrary(skills map[string]skill.Skill) (*skill.Interface, map[string]skill.LibraryEntry) {
	skillReg := registry.New[skill.SkillFactory]()
	library := make(map[string]skill.LibraryEntry)
	for name, sk := range skills {
		sk := sk
		skillReg.Register(name, func() skill.Skill { return sk })
		library[name] = skill.LibraryEntry{Src: name, Decoder: "noop"}
	}
	decoderReg := registry.New[skill.DecoderFactory]()
	decoderReg.Register("noop", func() skill.Decoder { return fakeDecoder{} })
	return skill.NewInterface(skillReg, decoderReg, blackboard.New()), library
}

func parseTree(t *testing.T, src string) bt.TreeNode {
	t.Helper()
	var node bt.TreeNode
	require.NoError(t, json.Unmarshal([]byte(src), &node))
	return node
}

func TestSequenceStopsOnFirstFailure(t *testing.T) {
	skills, library := buildLibrary(map[string]skill.Skill{
		"OK":    fixedSkill(model.Success("")),
		"FAIL":  fixedSkill(model.Failed("boom")),
		"NEVER": fixedSkill(model.Success("")),
	})
	tree := parseTree(t, `{"Sequence":[{"Node":"OK"},{"Node":"FAIL"},{"Node":"NEVER"}]}`)
	interp := bt.NewInterpreter(blackboard.New(), skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, telemetry := interp.RunTree(context.Background(), tree, nil, nil)
	assert.Equal(t, model.StatusFailed, status.Kind)
	assert.Equal(t, "FAIL", telemetry.LastNodeName)
}

func TestFallbackSucceedsAfterFailures(t *testing.T) {
	skills, library := buildLibrary(map[string]skill.Skill{
		"FAIL1": fixedSkill(model.Failed("no")),
		"FAIL2": fixedSkill(model.Failed("no")),
		"OK":    fixedSkill(model.Success("")),
	})
	tree := parseTree(t, `{"Fallback":[{"Node":"FAIL1"},{"Node":"FAIL2"},{"Node":"OK"}]}`)
	interp := bt.NewInterpreter(blackboard.New(), skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, _ := interp.RunTree(context.Background(), tree, nil, nil)
	assert.True(t, status.Ok())
}

func TestFallbackAllFailReturnsSuccess(t *testing.T) {
	skills, library := buildLibrary(map[string]skill.Skill{
		"FAIL1": fixedSkill(model.Failed("no")),
		"FAIL2": fixedSkill(model.Failed("no")),
	})
	tree := parseTree(t, `{"Fallback":[{"Node":"FAIL1"},{"Node":"FAIL2"}]}`)
	interp := bt.NewInterpreter(blackboard.New(), skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, _ := interp.RunTree(context.Background(), tree, nil, nil)
	assert.True(t, status.Ok(), "source behavior: Fallback exhausting all children reports Success")
}

func TestConditionReadsBlackboard(t *testing.T) {
	board := blackboard.New()
	board.Set("find_true", true)
	skills, library := buildLibrary(map[string]skill.Skill{})
	tree := parseTree(t, `{"Node":"CONDITION","@variable_name":"find_true"}`)
	interp := bt.NewInterpreter(board, skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, _ := interp.RunTree(context.Background(), tree, nil, nil)
	assert.True(t, status.Ok())
}

func TestRetryUntilSuccessfulRetries(t *testing.T) {
	seq := []model.Status{model.Failed("1"), model.Failed("2"), model.Success("3")}
	calls := 0
	sk := &stubSkill{next: func() model.Status {
		st := seq[calls]
		if calls < len(seq)-1 {
			calls++
		}
		return st
	}}
	skills, library := buildLibrary(map[string]skill.Skill{"X": sk})
	tree := parseTree(t, `{"RetryUntilSuccessful":{"Node":"X"}}`)
	interp := bt.NewInterpreter(blackboard.New(), skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, _ := interp.RunTree(context.Background(), tree, nil, nil)
	assert.True(t, status.Ok())
	assert.Equal(t, 2, calls)
}

func TestStartFromNodeIDSkipsEarlierLeaves(t *testing.T) {
	skills, library := buildLibrary(map[string]skill.Skill{
		"A": fixedSkill(model.Failed("would fail if actually run")),
		"B": fixedSkill(model.Success("")),
	})
	tree := parseTree(t, `{"Sequence":[{"Node":"A"},{"Node":"B"}]}`)
	interp := bt.NewInterpreter(blackboard.New(), skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, telemetry := interp.RunTree(context.Background(), tree, []int{1}, nil)
	assert.True(t, status.Ok())
	assert.Equal(t, "B", telemetry.LastNodeName)
}

func TestEscapeAtNodeIDReturnsEscaped(t *testing.T) {
	skills, library := buildLibrary(map[string]skill.Skill{
		"A": fixedSkill(model.Success("")),
		"B": fixedSkill(model.Success("")),
	})
	tree := parseTree(t, `{"Sequence":[{"Node":"A"},{"Node":"B"}]}`)
	interp := bt.NewInterpreter(blackboard.New(), skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, telemetry := interp.RunTree(context.Background(), tree, nil, []int{0})
	assert.Equal(t, model.StatusEscaped, status.Kind)
	assert.Equal(t, "A", telemetry.LastNodeName)
}

func TestUnknownSkillNameFails(t *testing.T) {
	skills, library := buildLibrary(map[string]skill.Skill{})
	tree := parseTree(t, `{"Node":"NOPE"}`)
	interp := bt.NewInterpreter(blackboard.New(), skills, library, skill.NewEnv(nil, nil, nil), nil)

	status, _ := interp.RunTree(context.Background(), tree, nil, nil)
	assert.Equal(t, model.StatusFailed, status.Kind)
}
