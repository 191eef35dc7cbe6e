package join

import (
	"errors"
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

func TestInjector_Diamond(t *testing.T) {
	g := build(t, []string{"H", "L", "R", "J"}, [][2]string{
		{"H", "L"}, {"H", "R"}, {"L", "J"}, {"R", "J"},
	})

	var added []string
	inj := NewInjector(g)
	inj.AddListener(func(id string) { added = append(added, id) })

	id, err := inj.Inject("H", []string{"L", "R"}, "J")
	require.NoError(t, err)

	assert.Equal(t, []string{id}, added)
	n, ok := g.Node(id)
	require.True(t, ok)
	assert.Equal(t, graph.KindJoin, n.Kind)
	assert.Equal(t, "H", n.Decision)

	assert.Equal(t, []string{id}, g.Next("L"))
	assert.Equal(t, []string{id}, g.Next("R"))
	assert.Equal(t, []string{"L", "R"}, g.Prev(id))
	assert.Equal(t, []string{"J"}, g.Next(id))
	assert.Equal(t, []string{id}, g.Prev("J"))
	assert.Equal(t, []string{"L", "R"}, g.Next("H"))
	assert.NoError(t, g.Validate())
}

func TestInjector_PreservesPredecessorPosition(t *testing.T) {
	g := build(t, []string{"P", "H", "L", "R", "J"}, [][2]string{
		{"H", "L"}, {"H", "R"}, {"R", "J"}, {"P", "J"}, {"L", "J"},
	})
	// J.prev = [R, P, L]
	id, err := NewInjector(g).Inject("H", []string{"L", "R"}, "J")
	require.NoError(t, err)

	assert.Equal(t, []string{id, "P"}, g.Prev("J"))
	assert.Equal(t, []string{"L", "R"}, g.Prev(id))
	assert.NoError(t, g.Validate())
}

func TestInjector_PreservesBranchPosition(t *testing.T) {
	g := build(t, []string{"H", "L", "R", "J", "X"}, [][2]string{
		{"H", "L"}, {"H", "R"}, {"L", "J"}, {"L", "X"}, {"R", "J"},
	})
	id, err := NewInjector(g).Inject("H", []string{"L", "R"}, "J")
	require.NoError(t, err)

	assert.Equal(t, []string{id, "X"}, g.Next("L"))
	assert.NoError(t, g.Validate())
}

func TestInjector_NotPredecessorFailsWithoutMutation(t *testing.T) {
	g := build(t, []string{"H", "L", "R", "J"}, [][2]string{
		{"H", "L"}, {"H", "R"}, {"L", "J"},
	})
	before := g.Clone()

	_, err := NewInjector(g).Inject("H", []string{"L", "R"}, "J")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPredecessor))

	assert.Equal(t, before.Len(), g.Len())
	assert.Equal(t, before.Edges(), g.Edges())
}

func TestInjector_Errors(t *testing.T) {
	g := build(t, []string{"H", "J"}, [][2]string{{"H", "J"}})

	_, err := NewInjector(g).Inject("H", nil, "J")
	assert.True(t, errors.Is(err, ErrNoEnds))

	_, err = NewInjector(g).Inject("H", []string{"H"}, "missing")
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))
}
