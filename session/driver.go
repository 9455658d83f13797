package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tasqsym/adapter"
	"tasqsym/blackboard"
	"tasqsym/bt"
	"tasqsym/controller"
	"tasqsym/kinematics"
	"tasqsym/logging"
	"tasqsym/model"
	"tasqsym/pipeline"
	"tasqsym/skill"
)

// RunRecord is what gets handed to a RunLogSink after each completed run
// (the [ADDED] completed-run log of spec.md's expansion).
type RunRecord struct {
	RunID       string
	TreeID      string
	Status      model.Status
	NodeName    string
	NodePointer []int
}

// RunLogSink persists completed runs; implemented by runlog.Store. Session
// depends on this narrow interface rather than the runlog package so a
// driver can run with logging disabled (nil sink).
type RunLogSink interface {
	Append(ctx context.Context, record RunRecord) error
}

// Driver is the session driver of spec.md §4.I: three concurrent
// mailbox-drained loops (setup/run/abort) sharing a pipeline, skill
// library, and blackboard that `setup` (re)builds.
type Driver struct {
	logger logging.Logger

	models    *kinematics.ModelRegistry
	adapters  *controller.AdapterRegistry
	sensors   *controller.SensorRegistry
	combiners *adapter.CombinerRegistry
	skills    *skill.Interface
	board     *blackboard.Blackboard

	transport Transport
	runLog    RunLogSink

	setupMailbox *Mailbox[SetupCommand]
	runMailbox   *Mailbox[RunCommand]
	abortMailbox *Mailbox[AbortCommand]

	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
	library  map[string]skill.LibraryEntry
	env      *skill.Env

	runActive atomic.Bool
}

// NewDriver builds a driver with empty pipeline/library/env state; a
// `setup` command must complete before any `run` is accepted.
func NewDriver(
	models *kinematics.ModelRegistry,
	adapters *controller.AdapterRegistry,
	sensors *controller.SensorRegistry,
	combiners *adapter.CombinerRegistry,
	skills *skill.Interface,
	board *blackboard.Blackboard,
	transport Transport,
	runLog RunLogSink,
	logger logging.Logger,
) *Driver {
	return &Driver{
		logger:       logger,
		models:       models,
		adapters:     adapters,
		sensors:      sensors,
		combiners:    combiners,
		skills:       skills,
		board:        board,
		transport:    transport,
		runLog:       runLog,
		setupMailbox: NewMailbox[SetupCommand](),
		runMailbox:   NewMailbox[RunCommand](),
		abortMailbox: NewMailbox[AbortCommand](),
	}
}

// EnqueueSetup, EnqueueRun and EnqueueAbort are what the transport
// packages call after decoding an inbound wire message.
func (d *Driver) EnqueueSetup(cmd SetupCommand) { d.setupMailbox.Send(cmd) }
func (d *Driver) EnqueueRun(cmd RunCommand)     { d.runMailbox.Send(cmd) }
func (d *Driver) EnqueueAbort(cmd AbortCommand) { d.abortMailbox.Send(cmd) }

// Start runs the three loops concurrently until ctx is done.
func (d *Driver) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { d.setupLoop(gctx); return nil })
	g.Go(func() error { d.runLoop(gctx); return nil })
	g.Go(func() error { d.abortLoop(gctx); return nil })
	return g.Wait()
}

func (d *Driver) setupLoop(ctx context.Context) {
	for {
		cmd, ok := d.setupMailbox.Recv(ctx)
		if !ok {
			return
		}
		d.handleSetup(ctx, cmd)
	}
}

// handleSetup rejects a concurrent setup while a run is active, then
// (re)builds the combiner, pipeline, skill library and per-task Env, and
// finally calls callEnvironmentLoadPipeline (spec.md §4.I).
func (d *Driver) handleSetup(ctx context.Context, cmd SetupCommand) {
	if d.runActive.Load() {
		d.reply(ctx, statusResponse(cmd.ID, responseTypeResponse, model.Failed("setup rejected: run in progress"), nil))
		return
	}

	topo := cmd.Content.RobotStructure.ToTopologyConfig()

	combiner, err := d.combiners.Build(ctx, topo.Combiner, nil, d.logger.Sublogger("combiner"))
	if err != nil {
		d.reply(ctx, statusResponse(cmd.ID, responseTypeResponse, model.Failed("setup: combiner: "+err.Error()), nil))
		return
	}

	d.mu.Lock()
	oldPipeline := d.pipeline
	d.mu.Unlock()

	newPipeline, err := pipeline.Init(ctx, oldPipeline, pipeline.EngineConfig{Topology: topo, Combiner: combiner}, d.models, d.adapters, d.sensors, d.logger.Sublogger("pipeline"))
	if err != nil {
		d.reply(ctx, statusResponse(cmd.ID, responseTypeResponse, model.Failed("setup: pipeline: "+err.Error()), nil))
		return
	}

	library := cmd.Content.ToLibrary()

	d.mu.Lock()
	d.pipeline = newPipeline
	d.library = library
	d.env = skill.NewEnv(newPipeline, combiner, d.logger.Sublogger("skill"))
	d.mu.Unlock()

	_, status := newPipeline.CallEnvironmentLoadPipeline(ctx, nil)
	d.reply(ctx, statusResponse(cmd.ID, responseTypeResponse, status, nil))
}

func (d *Driver) runLoop(ctx context.Context) {
	for {
		cmd, ok := d.runMailbox.Recv(ctx)
		if !ok {
			return
		}
		d.handleRun(ctx, cmd)
	}
}

// handleRun launches tree execution against the env/library latched by
// the most recent setup, then replies with the status plus the
// interpreter's last-executed-node telemetry (spec.md §4.I).
func (d *Driver) handleRun(ctx context.Context, cmd RunCommand) {
	d.mu.RLock()
	env := d.env
	library := d.library
	d.mu.RUnlock()

	if env == nil {
		d.reply(ctx, statusResponse(cmd.ID, responseTypeResponse, model.Failed("run rejected: no setup has completed"), nil))
		return
	}

	tree := rootOf(cmd.Content)
	interp := bt.NewInterpreter(d.board, d.skills, library, env, d.logger.Sublogger("bt"))

	d.runActive.Store(true)
	status, telemetry := interp.RunTree(ctx, tree, cmd.NodePointer, nil)
	d.runActive.Store(false)

	logs := &NodeLog{NodeName: telemetry.LastNodeName, NodePointer: telemetry.LastNodeID}
	d.reply(ctx, statusResponse(cmd.ID, responseTypeResponse, status, logs))

	if d.runLog != nil {
		record := RunRecord{
			RunID:       uuid.NewString(),
			TreeID:      cmd.Content.Root.BehaviorTree.ID,
			Status:      status,
			NodeName:    telemetry.LastNodeName,
			NodePointer: telemetry.LastNodeID,
		}
		if err := d.runLog.Append(ctx, record); err != nil {
			d.logger.Warnw("run log append failed", "error", err)
		}
	}
}

func (d *Driver) abortLoop(ctx context.Context) {
	for {
		cmd, ok := d.abortMailbox.Recv(ctx)
		if !ok {
			return
		}
		d.handleAbort(ctx, cmd)
	}
}

// handleAbort delegates to skill.Interface.CancelTask against the
// controller engine of whatever pipeline the last setup built (spec.md
// §4.I, §4.F).
func (d *Driver) handleAbort(ctx context.Context, cmd AbortCommand) {
	d.mu.RLock()
	p := d.pipeline
	d.mu.RUnlock()

	if p == nil {
		d.reply(ctx, statusResponse(cmd.ID, responseTypeAbort, model.Failed("abort rejected: no setup has completed"), nil))
		return
	}

	status := d.skills.CancelTask(ctx, p.Controller, cmd.Emergency)
	d.reply(ctx, statusResponse(cmd.ID, responseTypeAbort, status, nil))
}

func (d *Driver) reply(ctx context.Context, resp Response) {
	if d.transport == nil {
		return
	}
	if err := d.transport.Publish(ctx, resp); err != nil {
		d.logger.Warnw("publishing response failed", "error", err, "id", resp.ID)
	}
}

// rootOf wraps a document's top-level Tree nodes into a single
// executable root, always Sequence-ing them the way bt_decoder.py's
// runTree unconditionally wraps via runSequence regardless of sibling
// count. Even a lone top-level node must come back two levels deep
// (Sequence[node]) so its leaf path carries the Sequence's [0] prefix —
// unwrapping it would collapse every NodePointer comparison in
// bt/interpreter.go's comparePath by one level and break resume-from
// skip logic.
func rootOf(doc bt.Document) bt.TreeNode {
	return bt.TreeNode{Sequence: doc.Root.BehaviorTree.Tree}
}
