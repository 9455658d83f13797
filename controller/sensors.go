package controller

import (
	"context"

	"github.com/pkg/errors"

	"tasqsym/geometry"
	"tasqsym/model"
)

// GetSensorTransform resolves a sensor node's world pose through the
// PhysicalRobot it is mounted on, since PhysicalSensor itself carries no
// link-transform method (spec.md §4.D, find/look/grasp's camera-transform
// lookups).
func (e *Engine) GetSensorTransform(ctx context.Context, id model.RobotID) (geometry.Pose, model.Status) {
	parent, ok := e.sensorParent[id]
	if !ok {
		return geometry.IdentityPose, model.Failed("controller: unknown sensor " + string(id))
	}
	a, ok := e.adapters[parent]
	if !ok {
		return geometry.IdentityPose, model.Failed("controller: sensor parent adapter not found for " + string(id))
	}
	pose, err := a.GetLinkTransform(ctx, e.sensorParentLink[id])
	if err != nil {
		return geometry.IdentityPose, model.Failed("controller: get sensor transform: " + err.Error())
	}
	return pose, model.Success("")
}

// SensorParentLink returns the link name (on the sensor's parent
// PhysicalRobot) the sensor is mounted to, as declared by its topology
// node's parent_link (spec.md §4.J, look's PointToAction source link).
func (e *Engine) SensorParentLink(id model.RobotID) (string, bool) {
	link, ok := e.sensorParentLink[id]
	return link, ok
}

// GetSceneryState runs a 3D-camera/recognition read on the given sensor.
func (e *Engine) GetSceneryState(ctx context.Context, id model.RobotID, method string, data map[string]any) (model.Status, map[string]any, error) {
	s, ok := e.sensors[id]
	if !ok {
		return model.Failed("controller: unknown sensor " + string(id)), nil, errors.New("controller: unknown sensor")
	}
	return s.GetSceneryState(ctx, method, data)
}

// GetPhysicsState runs a force-sensor read/command on the given sensor.
func (e *Engine) GetPhysicsState(ctx context.Context, id model.RobotID, cmd string, data map[string]any) (model.Status, map[string]any, error) {
	s, ok := e.sensors[id]
	if !ok {
		return model.Failed("controller: unknown sensor " + string(id)), nil, errors.New("controller: unknown sensor")
	}
	return s.GetPhysicsState(ctx, cmd, data)
}
