// Package config decodes the general/library/robot_structure/engines
// configuration document of spec.md §6 and loads it from disk with a
// TASQSYM_*-prefixed environment overlay.
package config

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tasqsym/model"
)

// LibraryEntryConfig is one `library` map value: name -> {decoder,
// decoder_configs, src, src_configs}.
type LibraryEntryConfig struct {
	Decoder        string         `yaml:"decoder" json:"decoder"`
	DecoderConfigs map[string]any `yaml:"decoder_configs" json:"decoder_configs"`
	Src            string         `yaml:"src" json:"src"`
	SrcConfigs     map[string]any `yaml:"src_configs" json:"src_configs"`
}

// EngineRef names a pluggable engine implementation plus its class id and
// free-form config, for each of the `engines` sub-sections.
type EngineRef struct {
	Engine  string         `yaml:"engine" json:"engine"`
	ClassID string         `yaml:"class_id" json:"class_id"`
	Config  map[string]any `yaml:"config" json:"config"`
}

// EnginesConfig is the `engines` section. Kinematics and controller are
// required; the rest are optional pass-through engines.
type EnginesConfig struct {
	Kinematics       EngineRef  `yaml:"kinematics" json:"kinematics"`
	Controller       EngineRef  `yaml:"controller" json:"controller"`
	Data             *EngineRef `yaml:"data" json:"data"`
	WorldConstructor *EngineRef `yaml:"world_constructor" json:"world_constructor"`
	PhysicsSim       *EngineRef `yaml:"physics_sim" json:"physics_sim"`
	RenderingSim     *EngineRef `yaml:"rendering_sim" json:"rendering_sim"`
}

// RoleNode is the common body of every `models` tree node regardless of
// which role key carries it: unique_id, parent_link, resolver strings,
// optional configs and children.
type RoleNode struct {
	UniqueID       string         `yaml:"unique_id" json:"unique_id"`
	ParentLink     string         `yaml:"parent_link" json:"parent_link"`
	ModelRobot     string         `yaml:"model_robot" json:"model_robot"`
	PhysicalRobot  string         `yaml:"physical_robot" json:"physical_robot"`
	PhysicalSensor string         `yaml:"physical_sensor" json:"physical_sensor"`
	Configs        map[string]any `yaml:"configs" json:"configs"`
	Children       []ModelNode    `yaml:"childs" json:"childs"`
}

// ModelNode is a `models` tree node: exactly one role key (mobile_base |
// mobile_manipulator | manipulator | end_effector | tool | sensor) whose
// value is a RoleNode (spec.md §6). "tool" is treated as an end_effector
// variant: an attachable, typically joint-less end effector gets the same
// registry role as a jointed gripper.
type ModelNode struct {
	Role model.RobotRole
	RoleNode
}

var roleKeys = map[string]model.RobotRole{
	"mobile_base":        model.RoleMobileBase,
	"mobile_manipulator":  model.RoleMobileManipulator,
	"manipulator":         model.RoleManipulator,
	"end_effector":        model.RoleEndEffector,
	"tool":                model.RoleEndEffector,
	"sensor":              model.RoleSensor,
}

// UnmarshalJSON dispatches on whichever single role key is present.
// Exercised when a Document arrives as JSON over the control channel's
// `setup` command (spec.md §4.I, §6).
func (n *ModelNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "config: decoding model node")
	}
	for key, role := range roleKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var body RoleNode
		if err := json.Unmarshal(v, &body); err != nil {
			return errors.Wrapf(err, "config: decoding %q node", key)
		}
		n.Role = role
		n.RoleNode = body
		return nil
	}
	return errors.New("config: model node has none of the recognized role keys")
}

// UnmarshalYAML is the same one-of-role-key dispatch, exercised when a
// Document is loaded from a YAML file at startup (Load, below).
func (n *ModelNode) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return errors.Wrap(err, "config: decoding model node")
	}
	for key, role := range roleKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var body RoleNode
		if err := v.Decode(&body); err != nil {
			return errors.Wrapf(err, "config: decoding %q node", key)
		}
		n.Role = role
		n.RoleNode = body
		return nil
	}
	return errors.New("config: model node has none of the recognized role keys")
}

// RobotStructureConfig is the `robot_structure` section.
type RobotStructureConfig struct {
	Combiner string      `yaml:"combiner" json:"combiner"`
	Models   []ModelNode `yaml:"models" json:"models"`
}

// Document is the full configuration document of spec.md §6.
type Document struct {
	General        map[string]any                 `yaml:"general" json:"general"`
	Library        map[string]LibraryEntryConfig   `yaml:"library" json:"library"`
	RobotStructure RobotStructureConfig            `yaml:"robot_structure" json:"robot_structure"`
	Engines        EnginesConfig                   `yaml:"engines" json:"engines"`
}
