// Package bt implements the behavior-tree interpreter of spec.md §4.G:
// JSON decoding of the Sequence/Fallback/RetryUntilSuccessful/Node shape
// and the node-id-stack traversal over it.
package bt

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// LeafNode is a `Node: name, @attr: …` leaf. Name "CONDITION" is special
// (spec.md §4.G); any other name is a skill invocation, resolved case-
// insensitively against the upper-cased library key. Attrs holds the
// `@`-prefixed keys with the prefix stripped.
type LeafNode struct {
	Name  string
	Attrs map[string]any
}

// TreeNode is exactly one of Sequence/Fallback/Retry/Leaf, matching the
// "each node has exactly one of the keys" contract of spec.md §6.
type TreeNode struct {
	Sequence []TreeNode
	Fallback []TreeNode
	Retry    *TreeNode
	Leaf     *LeafNode
}

// Document is the outer `{root: {BehaviorTree: {ID, Tree}}}` envelope
// consumed over the control channel (spec.md §6).
type Document struct {
	Root struct {
		BehaviorTree struct {
			ID   string     `json:"ID"`
			Tree []TreeNode `json:"Tree"`
		} `json:"BehaviorTree"`
	} `json:"root"`
}

// UnmarshalJSON dispatches on whichever of Sequence/Fallback/
// RetryUntilSuccessful/Node is present, and for Node gathers every
// "@"-prefixed sibling key into Leaf.Attrs.
func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "bt: decoding tree node")
	}

	if v, ok := raw["Sequence"]; ok {
		var children []TreeNode
		if err := json.Unmarshal(v, &children); err != nil {
			return errors.Wrap(err, "bt: decoding Sequence children")
		}
		n.Sequence = children
		return nil
	}
	if v, ok := raw["Fallback"]; ok {
		var children []TreeNode
		if err := json.Unmarshal(v, &children); err != nil {
			return errors.Wrap(err, "bt: decoding Fallback children")
		}
		n.Fallback = children
		return nil
	}
	if v, ok := raw["RetryUntilSuccessful"]; ok {
		var child TreeNode
		if err := json.Unmarshal(v, &child); err != nil {
			return errors.Wrap(err, "bt: decoding RetryUntilSuccessful child")
		}
		n.Retry = &child
		return nil
	}
	if v, ok := raw["Node"]; ok {
		var name string
		if err := json.Unmarshal(v, &name); err != nil {
			return errors.Wrap(err, "bt: decoding Node name")
		}
		leaf := &LeafNode{Name: name, Attrs: make(map[string]any)}
		for k, rv := range raw {
			if k == "Node" || !strings.HasPrefix(k, "@") {
				continue
			}
			var val any
			if err := json.Unmarshal(rv, &val); err != nil {
				return errors.Wrapf(err, "bt: decoding attribute %q", k)
			}
			leaf.Attrs[strings.TrimPrefix(k, "@")] = val
		}
		n.Leaf = leaf
		return nil
	}

	return errors.New("bt: node has none of Sequence, Fallback, RetryUntilSuccessful, Node")
}
