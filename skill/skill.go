// Package skill implements the skill interface of spec.md §4.F: the
// Skill/Decoder contracts, the per-skill iterate loop (initiate ->
// observe/act/terminate -> finish), and the interrupt-pending /
// emergency-stop cancellation discipline.
package skill

import (
	"context"

	"tasqsym/blackboard"
	"tasqsym/model"
)

// Skill is the contract every built-in or user skill implements (spec.md
// §4.F). Init/AnyInitiationAction/AnyPostInitiation run once per task;
// GetAction/FormatAction/GetTerminal run every iteration; OnFinish runs
// once at the end regardless of how the loop terminated.
type Skill interface {
	Init(ctx context.Context, env *Env, params map[string]any) model.Status

	// AnyInitiationAction returns a one-off action to dispatch before the
	// main loop starts (e.g. preshaping fingers before a grasp), or nil.
	AnyInitiationAction(ctx context.Context, env *Env) (*model.CombinedRobotAction, error)

	// AnyPostInitiation runs after the initiation action (if any) has been
	// dispatched — e.g. computing a reference trajectory now that the hand
	// is open.
	AnyPostInitiation(ctx context.Context, env *Env) model.Status

	// AppendTaskSpecificStates extends the per-iteration observation with
	// whatever this skill needs to decide its next action.
	AppendTaskSpecificStates(ctx context.Context, obs map[string]any, env *Env, training bool) (map[string]any, error)

	// GetAction decides the next action dict from the observation. The
	// dict must include a "terminate" bool.
	GetAction(ctx context.Context, obs map[string]any) (map[string]any, error)

	// FormatAction turns a GetAction result into a dispatchable
	// CombinedRobotAction.
	FormatAction(ctx context.Context, action map[string]any) (model.CombinedRobotAction, error)

	// GetTerminal decides whether this iteration is the last one. Skills
	// that have no extra termination logic beyond action["terminate"]
	// should just return that.
	GetTerminal(obs map[string]any, action map[string]any) bool

	// OnFinish runs once the loop has exited; it may write blackboard
	// flags and/or return a finishing command to dispatch (e.g. opening
	// fingers), or nil.
	OnFinish(ctx context.Context, env *Env, board *blackboard.Blackboard) (*model.CombinedRobotAction, error)

	// Interruptible reports the `interruptible_skill` config flag: whether
	// a non-emergency cancel() may interrupt this skill mid-loop, or must
	// instead wait for its natural termination (spec.md §4.F).
	Interruptible() bool
}

// Decoder is the two-phase parameter translator paired with a Skill
// (spec.md §4.F). Decode is board-only; FillRuntimeParameters may read
// robot state and run recognition. Both phases must succeed before
// execution.
type Decoder interface {
	Decode(ctx context.Context, params map[string]any, board *blackboard.Blackboard) model.Status
	FillRuntimeParameters(ctx context.Context, params map[string]any, board *blackboard.Blackboard, env *Env) model.Status
	AsConfig() map[string]any
	IsReadyForExecution() bool
}

// SkillFactory builds a fresh Skill instance per task run.
type SkillFactory func() Skill

// DecoderFactory builds a fresh Decoder instance per task run.
type DecoderFactory func() Decoder

// LibraryEntry is one entry of the `library` config map of spec.md §6:
// name -> {decoder, decoder_configs, src, src_configs}.
type LibraryEntry struct {
	Decoder        string
	DecoderConfigs map[string]any
	Src            string
	SrcConfigs     map[string]any
}
