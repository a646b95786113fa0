package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain() *Draft {
	d := &Draft{
		Name: "chain",
		Nodes: []*Node{
			{ID: "a", Name: "Start", Parameters: map[string]any{"nested": map[string]any{"x": 1}}},
			{ID: "b", Name: "Work", Position: &Position{X: 10, Y: 20}, ErrorPolicy: DefaultErrorPolicy()},
			{ID: "c", Name: "Note"},
		},
	}
	d.Connect("a", 0, "b")

	return d
}

func TestDraft_Validate(t *testing.T) {
	require.NoError(t, chain().Validate())

	d := chain()
	d.Nodes = append(d.Nodes, &Node{ID: "a", Name: "Again"}, &Node{Name: "Blank"})
	d.Connect("b", 0, "ghost")

	err := d.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
	assert.ErrorIs(t, err, ErrEmptyNodeID)
	assert.ErrorIs(t, err, ErrDanglingConnection)
}

func TestDraft_Orphans(t *testing.T) {
	d := chain()

	orphans := d.Orphans(nil)
	require.Len(t, orphans, 1)
	assert.Equal(t, "c", orphans[0].ID)

	assert.Empty(t, d.Orphans(func(n *Node) bool { return n.Name == "Note" }))

	inbound, outbound := d.Degree()
	assert.Equal(t, 1, outbound["a"])
	assert.Equal(t, 1, inbound["b"])
}

func TestDraft_CloneIsDeep(t *testing.T) {
	d := chain()
	cp := d.Clone()

	cp.Nodes[0].Parameters["nested"].(map[string]any)["x"] = 2
	cp.Nodes[1].Position.X = 99
	cp.Nodes[1].ErrorPolicy.MaxTries = 9
	cp.Connections[0].Target = "c"

	assert.Equal(t, 1, d.Nodes[0].Parameters["nested"].(map[string]any)["x"])
	assert.Equal(t, 10, d.Nodes[1].Position.X)
	assert.Equal(t, 3, d.Nodes[1].ErrorPolicy.MaxTries)
	assert.Equal(t, "b", d.Connections[0].Target)

	assert.Nil(t, (*Draft)(nil).Clone())
}

func TestDraft_Lookup(t *testing.T) {
	d := chain()

	assert.Equal(t, "Work", d.Node("b").Name)
	assert.Nil(t, d.Node("z"))
	assert.Equal(t, "c", d.NodeByName("Note").ID)
	assert.True(t, d.Node("b").HasErrorPolicy())
	assert.False(t, d.Node("a").HasErrorPolicy())
}
