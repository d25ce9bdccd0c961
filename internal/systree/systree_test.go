package systree

import (
	"strings"
	"testing"

	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/stretchr/testify/assert"
)

func TestPathFromRootIsLeafFirst(t *testing.T) {
	dm := defs.NewManager()
	tree := New(dm, "cluster-a")
	node := tree.AddChild(tree.Root(), "node", "n01", 0)
	numa := tree.AddChild(node, "numa", "numa0", 0)
	core := tree.AddChild(numa, "core", "core0", 0)

	path := tree.PathFromRoot(core)
	assert.Len(t, path, 4)
	assert.Equal(t, core, path[0])
	assert.Equal(t, tree.Root(), path[3])

	var classes []string
	for _, h := range path {
		classes = append(classes, tree.ClassName(h))
	}
	assert.Equal(t, []string{"core", "numa", "node", "machine"}, classes)
}

func TestImportJSONBuildsNestedTree(t *testing.T) {
	dm := defs.NewManager()
	base := dm.Count(defs.KindSystemTreeNode) // the manager's pre-allocated unknown node
	r := strings.NewReader(`{
		"class": "machine", "name": "cluster-b",
		"children": [
			{"class": "node", "name": "n01", "children": [
				{"class": "core", "name": "core0"}
			]}
		]
	}`)
	tree, err := ImportJSON(dm, r)
	assert.NoError(t, err)
	assert.Equal(t, "cluster-b", tree.NodeName(tree.Root()))
	assert.Equal(t, base+3, dm.Count(defs.KindSystemTreeNode))
}

func TestImportJSONRejectsInvalidInput(t *testing.T) {
	dm := defs.NewManager()
	_, err := ImportJSON(dm, strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestLeavesFindsOnlyChildlessNodes(t *testing.T) {
	dm := defs.NewManager()
	tree := New(dm, "cluster-a")
	node := tree.AddChild(tree.Root(), "node", "n01", 0)
	numaA := tree.AddChild(node, "numa", "numa0", 0)
	numaB := tree.AddChild(node, "numa", "numa1", 0)
	coreA := tree.AddChild(numaA, "core", "core0", 0)

	leaves := tree.Leaves()
	assert.ElementsMatch(t, []defs.Handle{coreA, numaB}, leaves)
}
