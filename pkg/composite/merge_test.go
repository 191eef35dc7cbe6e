package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-code-structure/pkg/graph"
)

func build(t *testing.T, nodes []string, edges [][2]string) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, id := range nodes {
		require.NoError(t, g.AddNode(id, ""))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestMerge_StraightLine(t *testing.T) {
	g := build(t, []string{"start", "a", "b", "end"}, [][2]string{
		{"start", "a"}, {"a", "b"}, {"b", "end"},
	})

	var formed []string
	m := NewMerger(g)
	m.AddListener(func(id string) { formed = append(formed, id) })

	heads, err := m.Merge([]string{"start"})
	require.NoError(t, err)

	assert.Equal(t, []string{"start-a-b-end"}, heads)
	assert.Equal(t, []string{"start-a-b-end"}, formed)
	assert.Equal(t, 1, g.Len())

	n, ok := g.Node("start-a-b-end")
	require.True(t, ok)
	assert.Equal(t, graph.KindComposite, n.Kind)
	assert.Equal(t, []string{"start", "a", "b", "end"}, n.Sub)
}

func TestMerge_KeepsBranches(t *testing.T) {
	// H -> L1 -> L2 -> J, H -> R -> J, J -> X
	g := build(t, []string{"H", "L1", "L2", "R", "J", "X"}, [][2]string{
		{"H", "L1"}, {"H", "R"}, {"L1", "L2"}, {"L2", "J"}, {"R", "J"}, {"J", "X"},
	})

	heads, err := NewMerger(g).Merge([]string{"H"})
	require.NoError(t, err)
	assert.Equal(t, []string{"H"}, heads)

	assert.Equal(t, []string{"L1-L2", "R"}, g.Next("H"))
	assert.Equal(t, []string{"L1-L2", "R"}, g.Prev("J-X"))
	assert.Equal(t, []string{"J-X"}, g.Next("L1-L2"))
	assert.NoError(t, g.Validate())
}

func TestMerge_DoesNotSwallowHeads(t *testing.T) {
	g := build(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})

	heads, err := NewMerger(g).Merge([]string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B-C"}, heads)
	assert.Equal(t, []string{"B-C"}, g.Next("A"))
	assert.NoError(t, g.Validate())
}

func TestMerge_LoopChain(t *testing.T) {
	// S -> Y -> Z -> Y: Y and Z form a self-looping composite.
	g := build(t, []string{"S", "Y", "Z"}, [][2]string{
		{"S", "Y"}, {"Y", "Z"}, {"Z", "Y"},
	})

	heads, err := NewMerger(g).Merge([]string{"S"})
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, heads)

	assert.Equal(t, []string{"Y-Z"}, g.Next("S"))
	assert.Equal(t, []string{"S", "Y-Z"}, g.Prev("Y-Z"))
	assert.Equal(t, []string{"Y-Z"}, g.Next("Y-Z"))
	assert.NoError(t, g.Validate())
}

func TestMerge_NothingToMerge(t *testing.T) {
	g := build(t, []string{"A", "B"}, [][2]string{{"A", "B"}, {"A", "B"}})
	heads, err := NewMerger(g).Merge([]string{"A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, heads)
	assert.Equal(t, 2, g.Len())
}
