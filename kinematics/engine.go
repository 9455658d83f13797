// Package kinematics implements the kinematics engine of spec.md §4.C: the
// robot topology registry, focus selection (end-effector / sensor), the
// per-step action log, and orientation-frame translation.
package kinematics

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"tasqsym/adapter"
	"tasqsym/geometry"
	"tasqsym/logging"
	"tasqsym/model"
)

// ModelFactory builds a ModelRobot from its node-scoped config. Registered
// into the ModelRegistry by name and resolved at topology-init time (the
// §9 "dynamic dispatch by name strings -> registry" redesign).
type ModelFactory func(ctx context.Context, nodeID model.RobotID, configs map[string]any, logger logging.Logger) (adapter.ModelRobot, error)

// node is the internal tree representation built from model.TopologyConfig.
type node struct {
	entry    model.RegistryEntry
	children []model.RobotID
}

// Engine is the kinematics engine: topology + focus selection + action
// log + orientation transforms.
type Engine struct {
	logger   logging.Logger
	combiner adapter.RobotCombiner

	mu       sync.RWMutex
	nodes    map[model.RobotID]*node
	models   map[model.RobotID]adapter.ModelRobot
	baseID   model.RobotID
	rootID   model.RobotID

	endEffectorID model.RobotID
	sensorIDs     map[adapter.SensorType]model.RobotID

	log *model.ActionLog

	transformPairs map[model.RobotID]map[model.ContactAnnotation]model.TransformPair
}

// NewEngine parses topology, instantiates each model by name via
// modelFactories, and enforces the registry invariants of spec.md §3:
// exactly one root (empty parent_id); at most one MobileBase/
// MobileManipulator; every non-root parent_id resolves; sensors have no
// children. Each node's role is taken from the topology as given and is
// not checked.
func NewEngine(ctx context.Context, topology model.TopologyConfig, modelFactories *ModelRegistry, combiner adapter.RobotCombiner, logger logging.Logger) (*Engine, error) {
	e := &Engine{
		logger:         logger,
		combiner:       combiner,
		nodes:          make(map[model.RobotID]*node),
		models:         make(map[model.RobotID]adapter.ModelRobot),
		sensorIDs:      make(map[adapter.SensorType]model.RobotID),
		transformPairs: make(map[model.RobotID]map[model.ContactAnnotation]model.TransformPair),
	}

	var mobileRootCount int
	var roots []model.RobotID
	var firstMobile, firstManipulator, firstEndEffector model.RobotID

	var walk func(n model.TopologyNode, parentID model.RobotID, parentLink string) error
	walk = func(n model.TopologyNode, parentID model.RobotID, parentLink string) error {
		if n.UniqueID == "" {
			return errors.New("kinematics: topology node missing unique_id")
		}
		if parentID != "" && parentLink == "" && n.ParentLink == "" {
			return errors.Errorf("kinematics: node %q missing parent_link", n.UniqueID)
		}
		if n.ModelRobot == "" {
			return errors.Errorf("kinematics: node %q missing model", n.UniqueID)
		}
		if _, exists := e.nodes[n.UniqueID]; exists {
			return errors.Errorf("kinematics: duplicate unique_id %q", n.UniqueID)
		}

		entry := model.RegistryEntry{
			ID:         n.UniqueID,
			Role:       n.Role,
			ParentID:   parentID,
			ParentLink: n.ParentLink,
			Model:      n.ModelRobot,
			Adapter:    n.PhysicalRobot,
		}

		if parentID == "" {
			roots = append(roots, n.UniqueID)
		}
		if entry.Role == model.RoleMobileBase || entry.Role == model.RoleMobileManipulator {
			mobileRootCount++
			if firstMobile == "" {
				firstMobile = n.UniqueID
			}
		}
		if entry.Role == model.RoleManipulator && firstManipulator == "" {
			firstManipulator = n.UniqueID
		}
		if entry.Role == model.RoleEndEffector && firstEndEffector == "" {
			firstEndEffector = n.UniqueID
		}
		if entry.Role == model.RoleSensor && len(n.Children) > 0 {
			return errors.Errorf("kinematics: sensor %q may not have children", n.UniqueID)
		}

		e.nodes[n.UniqueID] = &node{entry: entry}
		if parentID != "" {
			parent, ok := e.nodes[parentID]
			if !ok {
				return errors.Errorf("kinematics: node %q references unknown parent %q", n.UniqueID, parentID)
			}
			parent.children = append(parent.children, n.UniqueID)
		}

		factory, ok := modelFactories.registry.Lookup(n.ModelRobot)
		if !ok {
			return errors.Errorf("kinematics: unknown model %q for node %q", n.ModelRobot, n.UniqueID)
		}
		m, err := factory(ctx, n.UniqueID, n.Configs, logger)
		if err != nil {
			return errors.Wrapf(err, "kinematics: constructing model %q for node %q", n.ModelRobot, n.UniqueID)
		}
		e.models[n.UniqueID] = m

		for _, child := range n.Children {
			if err := walk(child, n.UniqueID, n.ParentLink); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range topology.Models {
		if err := walk(root, "", ""); err != nil {
			return nil, err
		}
	}

	if len(roots) != 1 {
		return nil, errors.Errorf("kinematics: expected exactly one root node, got %d", len(roots))
	}
	if mobileRootCount > 1 {
		return nil, errors.New("kinematics: at most one MobileBase/MobileManipulator role is allowed")
	}

	e.rootID = roots[0]
	switch {
	case firstMobile != "":
		e.baseID = firstMobile
	case firstManipulator != "":
		e.logger.Warnw("no mobile base found, promoting manipulator to base", "robot_id", firstManipulator)
		e.baseID = firstManipulator
	default:
		e.baseID = e.rootID
	}
	e.endEffectorID = firstEndEffector

	ids := make([]model.RobotID, 0, len(e.nodes))
	for id := range e.nodes {
		ids = append(ids, id)
	}
	e.log = model.NewActionLog(ids)

	return e, nil
}

// BaseID returns the root/base robot id (spec.md §3).
func (e *Engine) BaseID() model.RobotID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baseID
}

// Entry returns the registry entry for id.
func (e *Engine) Entry(id model.RobotID) (model.RegistryEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[id]
	if !ok {
		return model.RegistryEntry{}, false
	}
	return n.entry, true
}

// IDs returns every known robot id.
func (e *Engine) IDs() []model.RobotID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]model.RobotID, 0, len(e.nodes))
	for id := range e.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Model returns the ModelRobot instance for id.
func (e *Engine) Model(id model.RobotID) (adapter.ModelRobot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.models[id]
	return m, ok
}

func (e *Engine) idsWithRole(role model.RobotRole) []model.RobotID {
	var ids []model.RobotID
	for id, n := range e.nodes {
		if n.entry.Role == role {
			ids = append(ids, id)
		}
	}
	return ids
}

// SetEndEffectorRobot selects the focus end-effector: if exactly one
// EndEffector-role model exists, select it directly; otherwise delegate to
// the combiner (spec.md §4.C).
func (e *Engine) SetEndEffectorRobot(ctx context.Context, task string, params map[string]any) (model.RobotID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	candidates := e.idsWithRole(model.RoleEndEffector)
	if len(candidates) == 1 {
		e.endEffectorID = candidates[0]
		return e.endEffectorID, nil
	}
	if e.combiner == nil {
		return "", errors.New("kinematics: multiple end-effectors and no combiner configured")
	}
	id, err := e.combiner.SetEndEffectorRobot(ctx, task, params)
	if err != nil {
		return "", errors.Wrap(err, "kinematics: combiner.SetEndEffectorRobot")
	}
	e.endEffectorID = id
	return id, nil
}

// FreeEndEffectorRobot releases the focus end-effector.
func (e *Engine) FreeEndEffectorRobot() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endEffectorID = ""
}

// EndEffectorID returns the currently focused end-effector id.
func (e *Engine) EndEffectorID() model.RobotID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.endEffectorID
}

// SetSensor selects the focus sensor for the given type: if exactly one
// Sensor-role node is registered, select it directly; otherwise delegate
// to the combiner. Registry entries carry no sensor type, so the count
// covers every Sensor-role node and a lone sensor is selected whatever
// type is requested.
func (e *Engine) SetSensor(ctx context.Context, sensorType adapter.SensorType, task string, params map[string]any) (model.RobotID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var candidates []model.RobotID
	for id, n := range e.nodes {
		if n.entry.Role == model.RoleSensor {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 1 {
		e.sensorIDs[sensorType] = candidates[0]
		return candidates[0], nil
	}
	if e.combiner == nil {
		return "", errors.New("kinematics: multiple sensors and no combiner configured")
	}
	id, err := e.combiner.SetSensor(ctx, sensorType, task, params)
	if err != nil {
		return "", errors.Wrap(err, "kinematics: combiner.SetSensor")
	}
	e.sensorIDs[sensorType] = id
	return id, nil
}

// SensorID returns the currently focused sensor of the given type.
func (e *Engine) SensorID(sensorType adapter.SensorType) (model.RobotID, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.sensorIDs[sensorType]
	return id, ok
}

// FreeSensor releases the focus sensor of the given type.
func (e *Engine) FreeSensor(sensorType adapter.SensorType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sensorIDs, sensorType)
}

// FreeSensors releases every focused sensor. Per spec.md §9's resolution
// of the source ambiguity: iterate by registered sensor *type* and zero
// each type's currently-selected id, rather than acting on raw ids.
func (e *Engine) FreeSensors() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for t := range e.sensorIDs {
		delete(e.sensorIDs, t)
	}
}

// GetOrientationTransform moves `desired` (standard basis) into the
// gripper basis for (id, controlLink): applies a latched TransformPair if
// one was generated for this (id, annotation) pair, else falls back to
// the model's static unpaired transform (spec.md §4.C).
func (e *Engine) GetOrientationTransform(ctx context.Context, id model.RobotID, controlLink string, desired geometry.Quaternion, robotBaseQ geometry.Quaternion, annotation model.ContactAnnotation) (geometry.Quaternion, error) {
	e.mu.RLock()
	m, ok := e.models[id]
	pairs := e.transformPairs[id]
	e.mu.RUnlock()
	if !ok {
		return geometry.Identity, errors.Errorf("kinematics: unknown robot %q", id)
	}
	eeModel, isEE := m.(adapter.EndEffectorModelRobot)
	if !isEE {
		return geometry.Identity, errors.Errorf("kinematics: robot %q is not an end-effector model", id)
	}

	var knownPair *model.TransformPair
	if pairs != nil {
		if p, ok := pairs[annotation]; ok {
			knownPair = &p
		}
	}
	return eeModel.OrientationTransform(ctx, controlLink, desired, knownPair, robotBaseQ)
}

// GenerateOrientationTransformPair latches a dynamic (base, transform) pair
// for id at grasp time (spec.md §3, §4.C).
func (e *Engine) GenerateOrientationTransformPair(ctx context.Context, id model.RobotID, params map[string]any) error {
	e.mu.Lock()
	m, ok := e.models[id]
	e.mu.Unlock()
	if !ok {
		return errors.Errorf("kinematics: unknown robot %q", id)
	}
	eeModel, isEE := m.(adapter.EndEffectorModelRobot)
	if !isEE {
		return errors.Errorf("kinematics: robot %q is not an end-effector model", id)
	}
	pairs, err := eeModel.GenerateOrientationTransformPair(ctx, params)
	if err != nil {
		return errors.Wrapf(err, "kinematics: generating transform pair for %q", id)
	}
	e.mu.Lock()
	e.transformPairs[id] = pairs
	e.mu.Unlock()
	return nil
}

// ActionLog exposes the action-log memory for read access (e.g. the
// `bring` skill checking whether the previous step was an IK action —
// spec.md §9).
func (e *Engine) ActionLog() *model.ActionLog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log
}
