// Package trajectory holds the linear interpolation primitives shared by
// grasp, pick, bring, place and release (spec.md §4.J): each skill builds
// a fixed-length sequence of waypoints at init/post-initiation time and
// walks it one step per iteration, grounded on original_source/src/
// tasqsym/library/grasp/grasp.py and pick/pick.py inlining the same math.
package trajectory

import (
	"tasqsym/geometry"
	"tasqsym/model"
)

// Joints linearly interpolates two joint-position vectors of equal length
// into steps waypoints, t = (i+1)/steps for i in [0, steps).
func Joints(from, to []float64, steps int) [][]float64 {
	if steps <= 0 {
		return nil
	}
	out := make([][]float64, steps)
	for i := 0; i < steps; i++ {
		t := float64(i+1) / float64(steps)
		wp := make([]float64, len(from))
		for j := range from {
			wp[j] = (1-t)*from[j] + t*to[j]
		}
		out[i] = wp
	}
	return out
}

// Points linearly interpolates two 3D points into steps waypoints.
func Points(from, to geometry.Point, steps int) []geometry.Point {
	if steps <= 0 {
		return nil
	}
	out := make([]geometry.Point, steps)
	for i := 0; i < steps; i++ {
		t := float64(i+1) / float64(steps)
		out[i] = geometry.Lerp(from, to, t)
	}
	return out
}

// Orientations spherically interpolates two orientations into steps
// waypoints: waypoint i is Slerp(from, to, (i+1)/steps), so the last one
// is to.
func Orientations(from, to geometry.Quaternion, steps int) []geometry.Quaternion {
	if steps <= 0 {
		return nil
	}
	out := make([]geometry.Quaternion, steps)
	for i := 0; i < steps; i++ {
		t := float64(i+1) / float64(steps)
		out[i] = geometry.Slerp(from, to, t)
	}
	return out
}

// HoldPoints repeats the last element of traj n more times, modeling the
// "continue for a while at the final pose" tail several skills append
// after their main approach trajectory.
func HoldPoints(traj []geometry.Point, n int) []geometry.Point {
	if len(traj) == 0 || n <= 0 {
		return traj
	}
	last := traj[len(traj)-1]
	for i := 0; i < n; i++ {
		traj = append(traj, last)
	}
	return traj
}

// HoldOrientations repeats the last element of traj n more times.
func HoldOrientations(traj []geometry.Quaternion, n int) []geometry.Quaternion {
	if len(traj) == 0 || n <= 0 {
		return traj
	}
	last := traj[len(traj)-1]
	for i := 0; i < n; i++ {
		traj = append(traj, last)
	}
	return traj
}

// HoldJoints repeats the last element of traj n more times.
func HoldJoints(traj [][]float64, n int) [][]float64 {
	if len(traj) == 0 || n <= 0 {
		return traj
	}
	last := traj[len(traj)-1]
	for i := 0; i < n; i++ {
		traj = append(traj, last)
	}
	return traj
}

// PoseToMaintain returns the end-effector pose pick/bring/place/release
// should hold orientation relative to: if the manipulator's most recent
// dispatch was an IK action, its logged goal (the desired-but-maybe-not-
// yet-reached pose) is authoritative; otherwise fall back to the
// end effector's actually observed contact-link pose. Grounded on
// tasqsym_utilities.getEndEffectorPoseToMaintain.
func PoseToMaintain(log *model.ActionLog, states model.CombinedRobotState, eefID, manipID model.RobotID, annotation model.ContactAnnotation) ([]string, geometry.Pose, bool) {
	if log != nil {
		for _, t := range log.MostLatestActionTypes[manipID] {
			if t != model.SolveByIK {
				continue
			}
			acts, ok := log.LastActions[manipID][model.SolveByIK]
			if !ok || len(acts) == 0 {
				break
			}
			return acts[0].SourceLinks, acts[0].IKGoal, true
		}
	}

	state, ok := states.RobotStates[eefID]
	if !ok {
		return nil, geometry.Pose{}, false
	}
	lp, ok := state.EndEffectorContact(annotation)
	if !ok {
		return nil, geometry.Pose{}, false
	}
	return []string{lp.LinkName}, lp.Pose, true
}

// IntConfig reads an integer skill config value, accepting a JSON-decoded
// float64, or returns def.
func IntConfig(configs map[string]any, key string, def int) int {
	if v, ok := configs[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

// Segments picks the configured segment count from params[key], falling
// back to a distance-derived default (1 segment per ~5cm), matching the
// `self.configs.get("num_..._segments", int(distance/0.05) + 1)` pattern
// every trajectory-building skill repeats.
func Segments(configs map[string]any, key string, distance float64) int {
	if v, ok := configs[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return int(distance/0.05) + 1
}
