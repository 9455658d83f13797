package bt_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/bt"
)

func TestDecodeDocument(t *testing.T) {
	src := `{
		"root": {
			"BehaviorTree": {
				"ID": "pick_and_place",
				"Tree": [
					{"Sequence": [
						{"Node": "PREPARE"},
						{"Node": "FIND", "@object": "cup", "@from": "right"},
						{"Fallback": [
							{"Node": "CONDITION", "@variable_name": "find_true"},
							{"Node": "GRASP"}
						]},
						{"RetryUntilSuccessful": {"Node": "PLACE"}}
					]}
				]
			}
		}
	}`

	var doc bt.Document
	require.NoError(t, json.Unmarshal([]byte(src), &doc))

	assert.Equal(t, "pick_and_place", doc.Root.BehaviorTree.ID)
	require.Len(t, doc.Root.BehaviorTree.Tree, 1)

	root := doc.Root.BehaviorTree.Tree[0]
	require.Len(t, root.Sequence, 4)

	require.NotNil(t, root.Sequence[0].Leaf)
	assert.Equal(t, "PREPARE", root.Sequence[0].Leaf.Name)

	require.NotNil(t, root.Sequence[1].Leaf)
	assert.Equal(t, "FIND", root.Sequence[1].Leaf.Name)
	assert.Equal(t, "cup", root.Sequence[1].Leaf.Attrs["object"])
	assert.Equal(t, "right", root.Sequence[1].Leaf.Attrs["from"])

	require.Len(t, root.Sequence[2].Fallback, 2)
	assert.Equal(t, "CONDITION", root.Sequence[2].Fallback[0].Leaf.Name)
	assert.Equal(t, "find_true", root.Sequence[2].Fallback[0].Leaf.Attrs["variable_name"])

	require.NotNil(t, root.Sequence[3].Retry)
	assert.Equal(t, "PLACE", root.Sequence[3].Retry.Leaf.Name)
}

func TestDecodeNodeMissingControlKeyFails(t *testing.T) {
	var node bt.TreeNode
	err := json.Unmarshal([]byte(`{"Bogus": true}`), &node)
	assert.Error(t, err)
}
