package structure

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-code-structure/internal/log"
	"github.com/l3aro/go-code-structure/pkg/decision"
	"github.com/l3aro/go-code-structure/pkg/graph"
)

func build(t *testing.T, edges [][2]string) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, e := range edges {
		for _, id := range e {
			if !g.Has(id) {
				require.NoError(t, g.AddNode(id, ""))
			}
		}
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func edge(from, to string) graph.Edge {
	return graph.Edge{From: from, To: to}
}

func list(t *testing.T, res *Result, from, to string) decision.List {
	t.Helper()
	dl, ok := res.DecisionLists.Get(edge(from, to))
	require.True(t, ok, "no decision list for %s->%s", from, to)
	return dl
}

func TestRun_Diamond(t *testing.T) {
	g := build(t, [][2]string{{"H", "L"}, {"H", "R"}, {"L", "J"}, {"R", "J"}})

	res, err := Run(g, []string{"H"}, RunOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{"endif_H"}, res.Joins)
	join, ok := g.Node("endif_H")
	require.True(t, ok)
	assert.Equal(t, graph.KindJoin, join.Kind)
	assert.Equal(t, "H", join.Decision)

	assert.Equal(t, []string{"L", "R"}, g.Prev("endif_H"))
	assert.Equal(t, []string{"J"}, g.Next("endif_H"))
	assert.Equal(t, []string{"endif_H"}, g.Prev("J"))
	assert.Equal(t, []string{"endif_H"}, g.Next("L"))
	assert.Equal(t, []string{"endif_H"}, g.Next("R"))
	assert.NoError(t, g.Validate())

	assert.Equal(t, "[H#0]", list(t, res, "L", "endif_H").String())
	assert.Equal(t, "[H#1]", list(t, res, "R", "endif_H").String())
	assert.True(t, list(t, res, "endif_H", "J").IsEmpty())

	assert.Empty(t, res.BackEdges)
	assert.Empty(t, res.GotoEdges)
	assert.Empty(t, res.OutsideIfEdges)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, EdgeStructured, res.Kind(edge("H", "L")))
}

func TestDetect_WithoutInjector(t *testing.T) {
	g := build(t, [][2]string{{"H", "L"}, {"H", "R"}, {"L", "J"}, {"R", "J"}})

	_, err := New(g).Detect("H")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJoinNotSpliced))
}

func TestDetect_HeadErrors(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}})

	_, err := New(g).DetectAll(nil)
	assert.True(t, errors.Is(err, ErrNoHeads))

	_, err = New(g).Detect("missing")
	assert.True(t, errors.Is(err, ErrUnknownHead))
}

func TestDetect_StraightLine(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}, {"B", "C"}})

	res, err := New(g).Detect("A")
	require.NoError(t, err)
	assert.Empty(t, res.Joins)
	assert.Equal(t, []graph.Edge{edge("A", "B"), edge("B", "C")}, res.Edges())
	for _, e := range res.Edges() {
		assert.True(t, list(t, res, e.From, e.To).IsEmpty())
	}
}

func TestRun_SingleLoop(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}, {"B", "A"}, {"A", "C"}})

	res, err := Run(g, []string{"A"}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, res.LoopContinues)
	assert.True(t, res.IsLoopContinue("A"))
	assert.Equal(t, []graph.Edge{edge("B", "A")}, res.BackEdges)
	assert.Equal(t, EdgeBack, res.Kind(edge("B", "A")))
	assert.Empty(t, res.Joins)
	assert.Empty(t, res.Unresolved)

	assert.True(t, list(t, res, "A", "B").IsEmpty())
	assert.True(t, list(t, res, "A", "C").IsEmpty())
}

func TestRun_SelfLoop(t *testing.T) {
	g := build(t, [][2]string{{"H", "A"}, {"A", "A"}, {"A", "X"}})

	res, err := Run(g, []string{"H"}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{edge("A", "A")}, res.BackEdges)
	assert.Equal(t, []string{"A"}, res.LoopContinues)
	assert.True(t, list(t, res, "A", "X").IsEmpty())
}

func TestRun_IfInsideLoop(t *testing.T) {
	g := build(t, [][2]string{
		{"H", "A"}, {"A", "B"}, {"A", "X"},
		{"B", "C"}, {"B", "D"}, {"C", "E"}, {"D", "E"}, {"E", "A"},
	})

	res, err := Run(g, []string{"H"}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, res.LoopContinues)
	assert.Equal(t, []graph.Edge{edge("E", "A")}, res.BackEdges)
	assert.Equal(t, []string{"endif_B"}, res.Joins)
	assert.Equal(t, []string{"C", "D"}, g.Prev("endif_B"))
	assert.Equal(t, "[B#1]", list(t, res, "D", "endif_B").String())
	assert.True(t, list(t, res, "A", "X").IsEmpty())
	assert.NoError(t, g.Validate())
}

func TestRun_IrreducibleTerminates(t *testing.T) {
	g := build(t, [][2]string{{"H", "A"}, {"H", "B"}, {"A", "C"}, {"B", "C"}, {"C", "A"}})

	res, err := Run(g, []string{"H"}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []graph.Edge{edge("C", "A")}, res.BackEdges)
	assert.Equal(t, []graph.Edge{edge("B", "C")}, res.GotoEdges)
	assert.Equal(t, EdgeGoto, res.Kind(edge("B", "C")))
	assert.Empty(t, res.Unresolved)
}

func TestRun_EarlyExitBranch(t *testing.T) {
	// X leaves through R before H's branches rejoin at J.
	g := build(t, [][2]string{
		{"H", "A"}, {"H", "B"}, {"A", "X"}, {"X", "R"}, {"X", "C"},
		{"C", "J"}, {"B", "J"}, {"R", "E"}, {"J", "E"},
	})

	res, err := Run(g, []string{"H"}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"endif_H"}, res.Joins)
	assert.Equal(t, []string{"C", "B"}, g.Prev("endif_H"))
	assert.Equal(t, []graph.Edge{edge("X", "R")}, res.OutsideIfEdges)
	assert.Equal(t, []graph.Edge{edge("R", "E")}, res.GotoEdges)
	assert.Equal(t, EdgeOutsideIf, res.Kind(edge("X", "R")))
	assert.Equal(t, "[H#0]", list(t, res, "C", "endif_H").String())
	assert.True(t, list(t, res, "J", "E").IsEmpty())
	assert.NoError(t, g.Validate())
}

func TestRun_MultipleHeads(t *testing.T) {
	g := build(t, [][2]string{
		{"H1", "L"}, {"H1", "R"}, {"L", "J"}, {"R", "J"},
		{"H2", "Y"},
	})

	res, err := Run(g, []string{"H1", "H2"}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"H1", "H2"}, res.Heads)
	assert.Equal(t, []string{"endif_H1"}, res.Joins)
	assert.True(t, list(t, res, "H2", "Y").IsEmpty())
}

func TestDetect_MissingListIsReported(t *testing.T) {
	g := build(t, [][2]string{{"H", "B"}})
	require.NoError(t, g.AddNode("A", ""))
	require.NoError(t, g.InsertPrev("B", 1, "A")) // B lists A as predecessor, A has no successor

	var buf bytes.Buffer
	logger := log.New(log.LoggerConfig{Level: log.WarnLevel, Stderr: &buf})

	res, err := New(g, WithLogger(logger)).DetectAll([]string{"H", "A"})
	require.NoError(t, err)

	assert.Equal(t, []graph.Edge{edge("A", "B")}, res.MissingLists)
	assert.Contains(t, buf.String(), "WARN: missing decision list edge=A->B")
}

// assertPartition checks that the classification lists are disjoint and that
// every edge entering a non-head node is either classified once or structured
// with a decision list.
func assertPartition(t *testing.T, g *graph.Graph, res *Result) {
	t.Helper()
	lists := map[EdgeKind][]graph.Edge{
		EdgeBack:      res.BackEdges,
		EdgeGoto:      res.GotoEdges,
		EdgeOutsideIf: res.OutsideIfEdges,
	}
	owners := make(map[graph.Edge][]EdgeKind)
	for kind, edges := range lists {
		for _, e := range edges {
			owners[e] = append(owners[e], kind)
		}
	}
	for e, kinds := range owners {
		assert.Len(t, kinds, 1, "%s classified as %v", e, kinds)
	}

	for _, n := range g.Nodes() {
		if slices.Contains(res.Heads, n.ID) {
			continue
		}
		for _, p := range g.Prev(n.ID) {
			e := edge(p, n.ID)
			if kinds := owners[e]; len(kinds) > 0 {
				assert.Equal(t, kinds[0], res.Kind(e), "%s", e)
				continue
			}
			assert.Equal(t, EdgeStructured, res.Kind(e), "%s", e)
			_, ok := res.DecisionLists.Get(e)
			assert.True(t, ok, "structured edge %s has no decision list", e)
		}
	}
}

func TestRun_EveryEdgeHasOneKind(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
	}{
		{"loop with goto", [][2]string{
			{"H", "A"}, {"H", "B"}, {"A", "C"}, {"B", "C"}, {"C", "A"}, {"C", "D"},
			{"D", "E"}, {"D", "F"}, {"E", "G"}, {"F", "G"},
		}},
		{"irreducible", [][2]string{{"H", "A"}, {"H", "B"}, {"A", "C"}, {"B", "C"}, {"C", "A"}}},
		{"early exit", [][2]string{
			{"H", "A"}, {"H", "B"}, {"A", "X"}, {"X", "R"}, {"X", "C"},
			{"C", "J"}, {"B", "J"}, {"R", "E"}, {"J", "E"},
		}},
		{"exit rejoins after join", [][2]string{
			{"H", "A"}, {"H", "B"}, {"A", "X"}, {"X", "R"}, {"X", "C"},
			{"C", "J"}, {"B", "J"}, {"J", "R"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.edges)
			res, err := Run(g, []string{"H"}, RunOptions{})
			require.NoError(t, err)
			assertPartition(t, g, res)
		})
	}
}

func TestRun_ExitEdgeReclassifiedAsGoto(t *testing.T) {
	// X->R leaves H's branch early and is reached again through the join, so the
	// outside-if mark is replaced by goto.
	g := build(t, [][2]string{
		{"H", "A"}, {"H", "B"}, {"A", "X"}, {"X", "R"}, {"X", "C"},
		{"C", "J"}, {"B", "J"}, {"J", "R"},
	})

	var rec Recorder
	res, err := Run(g, []string{"H"}, RunOptions{Listeners: []Listener{&rec}})
	require.NoError(t, err)

	assert.Contains(t, res.GotoEdges, edge("X", "R"))
	assert.NotContains(t, res.OutsideIfEdges, edge("X", "R"))
	assert.Equal(t, EdgeGoto, res.Kind(edge("X", "R")))

	var kinds []EdgeKind
	for _, e := range rec.Of(EventEdgeMarked) {
		if e.Edge == edge("X", "R") {
			kinds = append(kinds, e.Kind)
		}
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, EdgeGoto, kinds[len(kinds)-1])
}

func TestMark_KeepsStrongestKind(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}})
	var rec Recorder
	r := newRun(New(g, WithListener(&rec)))
	e := edge("A", "B")

	r.mark(e, EdgeOutsideIf)
	r.mark(e, EdgeOutsideIf)
	r.mark(e, EdgeGoto)
	r.mark(e, EdgeOutsideIf)
	r.mark(e, EdgeBack)
	r.mark(e, EdgeGoto)
	r.mark(e, EdgeStructured)

	assert.Equal(t, []graph.Edge{e}, r.back.list)
	assert.Empty(t, r.gotos.list)
	assert.Empty(t, r.outside.list)
	assert.False(t, r.gotos.has(e))
	assert.False(t, r.outside.has(e))

	got := rec.Of(EventEdgeMarked)
	want := []Event{
		{Type: EventEdgeMarked, Edge: e, Kind: EdgeOutsideIf},
		{Type: EventEdgeMarked, Edge: e, Kind: EdgeGoto},
		{Type: EventEdgeMarked, Edge: e, Kind: EdgeBack},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EdgeMarked events mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Deterministic(t *testing.T) {
	edges := [][2]string{
		{"H", "A"}, {"H", "B"}, {"A", "X"}, {"X", "R"}, {"X", "C"},
		{"C", "J"}, {"B", "J"}, {"R", "E"}, {"J", "E"}, {"E", "H"}, {"E", "Z"},
	}
	g1, g2 := build(t, edges), build(t, edges)

	var rec1, rec2 Recorder
	res1, err := Run(g1, []string{"H"}, RunOptions{Listeners: []Listener{&rec1}})
	require.NoError(t, err)
	res2, err := Run(g2, []string{"H"}, RunOptions{Listeners: []Listener{&rec2}})
	require.NoError(t, err)

	if diff := cmp.Diff(NewReport(g1, res1), NewReport(g2, res2)); diff != "" {
		t.Errorf("reports differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(rec1.Events, rec2.Events); diff != "" {
		t.Errorf("event traces differ (-first +second):\n%s", diff)
	}
}

func TestRun_Events(t *testing.T) {
	g := build(t, [][2]string{{"H", "L"}, {"H", "R"}, {"L", "J"}, {"R", "J"}})

	rec := &Recorder{}
	_, err := Run(g, []string{"H"}, RunOptions{Listeners: []Listener{rec}})
	require.NoError(t, err)

	want := []Event{
		{Type: EventNodeSelected, Node: "H"},
		{Type: EventNodeSelected, Node: "L"},
		{Type: EventNodeSelected, Node: "R"},
		{Type: EventNoNodeSelected},
		{Type: EventJoinDetected, Node: "H", Ends: []string{"L", "R"}},
		{Type: EventJoinAdded, Node: "endif_H"},
		{Type: EventNodeSelected, Node: "J"},
		{Type: EventNoNodeSelected},
	}
	if diff := cmp.Diff(want, rec.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_LoopEvents(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}, {"B", "A"}, {"A", "C"}})

	rec := &Recorder{}
	_, err := Run(g, []string{"A"}, RunOptions{Listeners: []Listener{rec}})
	require.NoError(t, err)

	marked := rec.Of(EventEdgeMarked)
	require.Len(t, marked, 1)
	assert.Equal(t, edge("B", "A"), marked[0].Edge)
	assert.Equal(t, EdgeBack, marked[0].Kind)
}

func TestRun_Steps(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}})

	rec := &Recorder{Steps: true}
	_, err := Run(g, []string{"A"}, RunOptions{Listeners: []Listener{rec}})
	require.NoError(t, err)
	assert.Len(t, rec.Of(EventStep), 2)
}

func TestRun_MergeComposites(t *testing.T) {
	g := build(t, [][2]string{{"a", "b"}, {"b", "c"}})

	rec := &Recorder{}
	res, err := Run(g, []string{"a"}, RunOptions{MergeComposites: true, Listeners: []Listener{rec}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a-b-c"}, res.Heads)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, []Event{{Type: EventComposite, Node: "a-b-c"}}, rec.Of(EventComposite))
}

func TestRun_MaxNodes(t *testing.T) {
	g := build(t, [][2]string{{"a", "b"}, {"b", "c"}})

	_, err := Run(g, []string{"a"}, RunOptions{MaxNodes: 2})
	assert.True(t, errors.Is(err, ErrGraphTooLarge))
}

type failingListener struct {
	NopListener
}

func (failingListener) JoinDetected(string, []string, string) (string, error) {
	return "", errors.New("refused")
}

func TestRun_ListenerError(t *testing.T) {
	g := build(t, [][2]string{{"H", "L"}, {"H", "R"}, {"L", "J"}, {"R", "J"}})

	_, err := Run(g, []string{"H"}, RunOptions{Listeners: []Listener{failingListener{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestDetector_RemoveListener(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}})

	rec := &Recorder{}
	d := New(g, WithListener(rec))
	d.RemoveListener(rec)

	_, err := d.Detect("A")
	require.NoError(t, err)
	assert.Empty(t, rec.Events)
}

func TestDetector_RerunStartsFresh(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}, {"B", "A"}, {"A", "C"}})

	d := New(g)
	first, err := d.Detect("A")
	require.NoError(t, err)
	second, err := d.Detect("A")
	require.NoError(t, err)

	assert.Equal(t, first.BackEdges, second.BackEdges)
	assert.Equal(t, first.Edges(), second.Edges())
}
