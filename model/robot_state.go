package model

import (
	"fmt"

	"tasqsym/geometry"
)

// RobotID names a node in the robot registry.
type RobotID string

// RobotRole tags what kind of robot a registry entry / state represents.
type RobotRole string

const (
	RoleMobileBase       RobotRole = "mobile_base"
	RoleManipulator      RobotRole = "manipulator"
	RoleEndEffector      RobotRole = "end_effector"
	RoleMobileManipulator RobotRole = "mobile_manipulator"
	RoleSensor           RobotRole = "sensor"
)

// ContactAnnotation names a role an end-effector link plays, used by
// skills to pick which link to target with IK.
type ContactAnnotation string

// ContactCenter is the one contact annotation every end-effector must
// provide (spec.md §3).
const ContactCenter ContactAnnotation = "CONTACT_CENTER"

// JointState is a positional sequence plus a parallel name sequence.
type JointState struct {
	Positions []float64
	Names     []string
}

// NewJointState validates that positions and names have matching lengths.
func NewJointState(positions []float64, names []string) (JointState, error) {
	if len(positions) != len(names) {
		return JointState{}, fmt.Errorf("joint state: %d positions but %d names", len(positions), len(names))
	}
	return JointState{Positions: positions, Names: names}, nil
}

// LinkPose names a link and the pose of that link.
type LinkPose struct {
	LinkName string
	Pose     geometry.Pose
}

// RobotState is a tagged union over robot roles (spec.md §3). Only the
// fields matching Role are meaningful; accessors below are the supported
// way to read it so callers can't misinterpret an unset branch.
type RobotState struct {
	Role RobotRole

	// MobileBase / MobileManipulator
	Base geometry.Pose

	// Manipulator / MobileManipulator
	Joints JointState

	// EndEffector / MobileManipulator
	ParentLink string
	Contacts   map[ContactAnnotation]LinkPose
}

// NewMobileBaseState builds a mobile-base RobotState.
func NewMobileBaseState(base geometry.Pose) RobotState {
	return RobotState{Role: RoleMobileBase, Base: base}
}

// NewManipulatorState builds a manipulator RobotState.
func NewManipulatorState(joints JointState, base geometry.Pose) RobotState {
	return RobotState{Role: RoleManipulator, Joints: joints, Base: base}
}

// NewEndEffectorState builds an end-effector RobotState.
func NewEndEffectorState(joints JointState, parentLink string, base geometry.Pose, contacts map[ContactAnnotation]LinkPose) RobotState {
	return RobotState{Role: RoleEndEffector, Joints: joints, ParentLink: parentLink, Base: base, Contacts: contacts}
}

// NewMobileManipulatorState builds a mobile-manipulator RobotState (union
// of base + manipulator + end-effector fields).
func NewMobileManipulatorState(joints JointState, base geometry.Pose, parentLink string, contacts map[ContactAnnotation]LinkPose) RobotState {
	return RobotState{Role: RoleMobileManipulator, Joints: joints, Base: base, ParentLink: parentLink, Contacts: contacts}
}

// MobileBase returns (pose, true) if this state carries a base pose.
func (s RobotState) MobileBase() (geometry.Pose, bool) {
	if s.Role == RoleMobileBase || s.Role == RoleManipulator || s.Role == RoleMobileManipulator {
		return s.Base, true
	}
	return geometry.Pose{}, false
}

// ManipulatorJoints returns (joints, true) if this state carries arm joints.
func (s RobotState) ManipulatorJoints() (JointState, bool) {
	if s.Role == RoleManipulator || s.Role == RoleMobileManipulator {
		return s.Joints, true
	}
	return JointState{}, false
}

// EndEffectorContact returns (link pose, true) for a given contact
// annotation if this state is an end-effector carrying it.
func (s RobotState) EndEffectorContact(a ContactAnnotation) (LinkPose, bool) {
	if s.Role != RoleEndEffector && s.Role != RoleMobileManipulator {
		return LinkPose{}, false
	}
	lp, ok := s.Contacts[a]
	return lp, ok
}

// CombinedRobotState is the mapping robot-id -> robot state plus an
// overall status (spec.md §3).
type CombinedRobotState struct {
	RobotStates map[RobotID]RobotState
	Status      Status
}
