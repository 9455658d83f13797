package bt

import (
	"context"
	"regexp"
	"strings"

	"tasqsym/blackboard"
	"tasqsym/logging"
	"tasqsym/model"
	"tasqsym/skill"
)

// NodeTelemetry reports the last leaf reached during a RunTree call, for
// the session driver's completion reply (spec.md §4.G, §4.I).
type NodeTelemetry struct {
	LastNodeName string
	LastNodeID   []int
}

// placeholderPattern matches the "{name}" blackboard-substitution syntax
// used by leaf attributes (e.g. Grasp's target="{find_result}", spec.md
// §4.J).
var placeholderPattern = regexp.MustCompile(`^\{([A-Za-z0-9_]+)\}$`)

// Interpreter walks a decoded tree, dispatching leaves to a skill.Interface
// and conditions against a blackboard, per spec.md §4.G.
type Interpreter struct {
	Board   *blackboard.Blackboard
	Skills  *skill.Interface
	Library map[string]skill.LibraryEntry
	Env     *skill.Env
	Logger  logging.Logger

	lastNodeName string
	lastNodeID   []int
}

// NewInterpreter builds an interpreter over a library keyed by
// upper-cased skill name (matching the tree's `"Node": "<NAME_UPPER>"`
// convention).
func NewInterpreter(board *blackboard.Blackboard, skills *skill.Interface, library map[string]skill.LibraryEntry, env *skill.Env, logger logging.Logger) *Interpreter {
	return &Interpreter{Board: board, Skills: skills, Library: library, Env: env, Logger: logger}
}

// RunTree executes tree from the root, honoring startFrom/escapeAt
// partial-execution markers (spec.md §4.G), and always tears down the
// skill interface on exit regardless of how the walk ended.
func (in *Interpreter) RunTree(ctx context.Context, tree TreeNode, startFrom, escapeAt []int) (model.Status, NodeTelemetry) {
	if in.Skills != nil {
		defer in.Skills.Cleanup()
	}

	marker := append([]int(nil), startFrom...)
	status := in.run(ctx, tree, nil, &marker, escapeAt)

	return status, NodeTelemetry{
		LastNodeName: in.lastNodeName,
		LastNodeID:   append([]int(nil), in.lastNodeID...),
	}
}

// parseControl promotes Skipped to Success so Sequence/Fallback keep
// traversing past a not-yet-reached start_from_node_id (spec.md §4.G).
func parseControl(st model.Status) model.Status {
	if st.Kind == model.StatusSkipped {
		return model.Success("skipped")
	}
	return st
}

func (in *Interpreter) run(ctx context.Context, node TreeNode, path []int, startFrom *[]int, escapeAt []int) model.Status {
	if err := ctx.Err(); err != nil {
		return model.Aborted("bt: context cancelled")
	}

	switch {
	case node.Sequence != nil:
		for i, child := range node.Sequence {
			childPath := appendPath(path, i)
			st := parseControl(in.run(ctx, child, childPath, startFrom, escapeAt))
			if st.StopsSequence() {
				return st
			}
		}
		return model.Success("sequence complete")

	case node.Fallback != nil:
		for i, child := range node.Fallback {
			childPath := appendPath(path, i)
			st := parseControl(in.run(ctx, child, childPath, startFrom, escapeAt))
			if st.StopsFallback() {
				return st
			}
		}
		// Every child failed: Fallback still reports Success here, not Failed.
		return model.Success("fallback exhausted")

	case node.Retry != nil:
		for {
			st := parseControl(in.run(ctx, *node.Retry, path, startFrom, escapeAt))
			if st.Ok() {
				return st
			}
			if st.Kind == model.StatusAborted || st.Kind == model.StatusEscaped {
				return st
			}
			if err := ctx.Err(); err != nil {
				return model.Aborted("bt: context cancelled during retry")
			}
		}

	case node.Leaf != nil:
		return in.runLeaf(ctx, *node.Leaf, path, startFrom, escapeAt)

	default:
		return model.Unexpected("bt: node has no recognized control key")
	}
}

func appendPath(path []int, i int) []int {
	out := make([]int, len(path), len(path)+1)
	copy(out, path)
	return append(out, i)
}

// comparePath orders two node-id paths lexicographically; a shorter path
// that is a prefix of a longer one sorts before it.
func comparePath(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (in *Interpreter) runLeaf(ctx context.Context, leaf LeafNode, path []int, startFrom *[]int, escapeAt []int) model.Status {
	in.lastNodeName = leaf.Name
	in.lastNodeID = append([]int(nil), path...)

	if *startFrom != nil {
		switch comparePath(path, *startFrom) {
		case -1:
			return model.Skipped()
		case 0:
			*startFrom = nil
		}
	}

	var status model.Status
	if leaf.Name == "CONDITION" {
		variable, _ := leaf.Attrs["variable_name"].(string)
		if in.Board.Truthy(variable) {
			status = model.Success("condition true: " + variable)
		} else {
			status = model.Failed("condition false: " + variable)
		}
	} else {
		entry, ok := in.Library[strings.ToUpper(leaf.Name)]
		if !ok {
			return model.Failed("bt: unknown skill " + leaf.Name)
		}
		status = in.Skills.RunTask(ctx, in.Env, entry, resolveParams(leaf.Attrs, in.Board))
	}

	if status.Ok() && escapeAt != nil && comparePath(path, escapeAt) == 0 {
		return model.Escaped()
	}
	return status
}

// resolveParams substitutes any "{name}" string attribute with the
// matching blackboard value, leaving everything else untouched (spec.md
// §4.J, e.g. Grasp's target="{find_result}").
func resolveParams(attrs map[string]any, board *blackboard.Blackboard) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if s, ok := v.(string); ok {
			if m := placeholderPattern.FindStringSubmatch(s); m != nil {
				if bv, found := board.Get(m[1]); found {
					out[k] = bv
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}
