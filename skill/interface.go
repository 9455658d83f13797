package skill

import (
	"context"
	"sync"
	"sync/atomic"

	"tasqsym/blackboard"
	"tasqsym/model"
	"tasqsym/registry"
)

// activeSkill tracks the currently-running Skill instance plus the
// interruptible flag captured at Init time, so CancelTask can decide
// between "set interrupt_pending" and "cancel the active dispatch now"
// without re-querying the skill mid-cancel.
type activeSkill struct {
	skill         Skill
	interruptible bool
}

// Interface is the skill-execution driver of spec.md §4.F: it resolves a
// library entry to a Skill+Decoder pair, runs the decode -> init ->
// iterate -> finish loop, and exposes CancelTask for the session driver's
// emergency-stop and soft-cancel paths.
type Interface struct {
	skills   *registry.Registry[SkillFactory]
	decoders *registry.Registry[DecoderFactory]
	board    *blackboard.Blackboard

	mu               sync.Mutex
	current          *activeSkill
	interruptPending atomic.Bool
}

// NewInterface builds a driver over the given skill/decoder registries and
// a shared blackboard.
func NewInterface(skills *registry.Registry[SkillFactory], decoders *registry.Registry[DecoderFactory], board *blackboard.Blackboard) *Interface {
	return &Interface{skills: skills, decoders: decoders, board: board}
}

func mergeParams(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// RunTask drives one full skill execution per spec.md §4.F: resolve ->
// decode -> fillRuntimeParameters -> init -> (initiationAction ->
// postInitiation) -> iterate(observe -> getAction -> getTerminal ->
// dispatch) -> onFinish. Any non-Success status from a setup step aborts
// the run without entering the iterate loop. Invariant §8.6: once
// interruptPending is set mid-loop, the run's final status is coerced to
// Aborted regardless of how the loop itself terminated.
func (in *Interface) RunTask(ctx context.Context, env *Env, entry LibraryEntry, params map[string]any) model.Status {
	skillFactory, ok := in.skills.Lookup(entry.Src)
	if !ok {
		return model.Failed("skill: unknown skill " + entry.Src)
	}
	decoderFactory, ok := in.decoders.Lookup(entry.Decoder)
	if !ok {
		return model.Failed("skill: unknown decoder " + entry.Decoder)
	}

	sk := skillFactory()
	dec := decoderFactory()

	if st := dec.Decode(ctx, mergeParams(entry.DecoderConfigs, params), in.board); !st.Ok() {
		return st
	}
	if st := dec.FillRuntimeParameters(ctx, mergeParams(entry.SrcConfigs, params), in.board, env); !st.Ok() {
		return st
	}
	if !dec.IsReadyForExecution() {
		return model.Failed("skill: decoder reports not ready for execution")
	}

	if st := sk.Init(ctx, env, dec.AsConfig()); !st.Ok() {
		return st
	}

	in.mu.Lock()
	in.current = &activeSkill{skill: sk, interruptible: sk.Interruptible()}
	in.interruptPending.Store(false)
	in.mu.Unlock()
	defer func() {
		in.mu.Lock()
		in.current = nil
		in.mu.Unlock()
		in.interruptPending.Store(false)
	}()

	status := in.runLoop(ctx, env, sk)

	if fin, err := sk.OnFinish(ctx, env, in.board); err != nil {
		status = model.Failed("skill: onFinish: " + err.Error())
	} else if fin != nil {
		if _, st := env.Pipeline.CallEnvironmentUpdatePipeline(ctx, *fin); !st.Ok() && status.Ok() {
			status = st
		}
	}

	if in.interruptPending.Load() {
		return model.Aborted("skill: interrupt requested during execution")
	}
	return status
}

// runLoop is the initiate-then-iterate portion of RunTask, split out so
// OnFinish always runs regardless of how this returns.
func (in *Interface) runLoop(ctx context.Context, env *Env, sk Skill) model.Status {
	if initAction, err := sk.AnyInitiationAction(ctx, env); err != nil {
		return model.Failed("skill: initiationAction: " + err.Error())
	} else if initAction != nil {
		if _, st := env.Pipeline.CallEnvironmentUpdatePipeline(ctx, *initAction); !st.Ok() {
			return st
		}
	}
	if st := sk.AnyPostInitiation(ctx, env); !st.Ok() {
		return st
	}

	for {
		if ctx.Err() != nil {
			return model.Aborted("skill: context cancelled")
		}
		if in.interruptPending.Load() {
			return model.Aborted("skill: interrupt requested")
		}

		obs, err := sk.AppendTaskSpecificStates(ctx, map[string]any{}, env, false)
		if err != nil {
			return model.Failed("skill: appendTaskSpecificStates: " + err.Error())
		}

		action, err := sk.GetAction(ctx, obs)
		if err != nil {
			return model.Failed("skill: getAction: " + err.Error())
		}

		if sk.GetTerminal(obs, action) {
			return model.Success("skill: terminated")
		}

		combined, err := sk.FormatAction(ctx, action)
		if err != nil {
			return model.Failed("skill: formatAction: " + err.Error())
		}

		if _, st := env.Pipeline.CallEnvironmentUpdatePipeline(ctx, combined); !st.Ok() {
			return st
		}
	}
}

// CancelTask implements spec.md §4.F's two cancellation paths.
//
// emergency=true always wins: it sets the controller's emergency flag so
// the active dispatch's abort-fanout path is skipped, cancels any active
// dispatch, fans out emergencyStop to every adapter, and always reports
// Success regardless of what it found in flight.
//
// emergency=false requires an active, interruptible skill with a live
// dispatch to actually cancel: a non-interruptible skill instead gets
// interrupt_pending set, to be honored at the next loop iteration or at
// RunTask's final status coercion.
func (in *Interface) CancelTask(ctx context.Context, ctrl EmergencyController, emergency bool) model.Status {
	if emergency {
		ctrl.SetEmergencyStopRequest(true)
		ctrl.CancelActiveDispatch()
		ctrl.EmergencyStop(ctx)
		return model.Success("emergency stop executed")
	}

	in.mu.Lock()
	cur := in.current
	in.mu.Unlock()

	if cur == nil {
		return model.Failed("skill: cancel requested but no skill is active")
	}

	if !cur.interruptible {
		in.interruptPending.Store(true)
		return model.Success("skill: interrupt pending, not interruptible mid-execution")
	}

	if !ctrl.HasActiveDispatch() {
		return model.Failed("skill: cancel requested but no active dispatch (bad timing, retry)")
	}

	ctrl.SetEmergencyStopRequest(false)
	if !ctrl.CancelActiveDispatch() {
		return model.Failed("skill: cancel requested but dispatch ended before cancel landed")
	}
	in.interruptPending.Store(true)
	return model.Aborted("skill: cancel requested")
}

// Cleanup drops any active skill and clears interrupt_pending. RunTask's
// own defer already does this after every call; the behavior-tree
// interpreter calls this again on tree exit (spec.md §4.G "tear-down")
// as a defensive idempotent safety net covering early-return paths.
func (in *Interface) Cleanup() {
	in.mu.Lock()
	in.current = nil
	in.mu.Unlock()
	in.interruptPending.Store(false)
}

// EmergencyController is the slice of controller.Engine that CancelTask
// needs; declared here so skill does not import controller directly
// (pipeline already sits between them).
type EmergencyController interface {
	SetEmergencyStopRequest(v bool)
	CancelActiveDispatch() bool
	HasActiveDispatch() bool
	EmergencyStop(ctx context.Context) model.Status
}
