package config

import (
	"tasqsym/model"
	"tasqsym/skill"
)

// ToTopologyConfig flattens a decoded RobotStructureConfig into the
// model.TopologyConfig shape the kinematics/controller engines build
// from.
func (rs RobotStructureConfig) ToTopologyConfig() model.TopologyConfig {
	topo := model.TopologyConfig{Combiner: rs.Combiner}
	for _, n := range rs.Models {
		topo.Models = append(topo.Models, n.toTopologyNode())
	}
	return topo
}

func (n ModelNode) toTopologyNode() model.TopologyNode {
	node := model.TopologyNode{
		UniqueID:       model.RobotID(n.UniqueID),
		Role:           n.Role,
		ParentLink:     n.ParentLink,
		ModelRobot:     n.ModelRobot,
		PhysicalRobot:  n.PhysicalRobot,
		PhysicalSensor: n.PhysicalSensor,
		Configs:        n.Configs,
	}
	for _, c := range n.Children {
		node.Children = append(node.Children, c.toTopologyNode())
	}
	return node
}

// ToLibrary flattens the decoded library map into skill.LibraryEntry
// values, keyed the same way (by the upper-cased Node name the behavior
// tree references).
func (d Document) ToLibrary() map[string]skill.LibraryEntry {
	out := make(map[string]skill.LibraryEntry, len(d.Library))
	for name, e := range d.Library {
		out[name] = skill.LibraryEntry{
			Decoder:        e.Decoder,
			DecoderConfigs: e.DecoderConfigs,
			Src:            e.Src,
			SrcConfigs:     e.SrcConfigs,
		}
	}
	return out
}
