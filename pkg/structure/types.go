// Package structure detects nested if/else and loop structure in an arbitrary directed
// control flow graph.
//
// The Detector walks the graph forward, tracking for every edge the list of still-open
// branch decisions (a path condition). Where the lists of a node's predecessors show that
// every branch of a decision rejoins, it asks its listeners to splice in a join (endif)
// node. Nodes that wait for themselves are loop headers; the edges closing the cycle are
// classified as back edges. Flow that cannot be nested becomes goto or outside-if edges.
//
// The run is synchronous. Listeners are called in order and may mutate the graph; the
// detector re-reads adjacency on every access.
package structure

import (
	"errors"
	"slices"

	"github.com/l3aro/go-code-structure/pkg/decision"
	"github.com/l3aro/go-code-structure/pkg/graph"
)

var (
	// ErrNoHeads is returned when detection is started without a head node.
	ErrNoHeads = errors.New("structure: no head nodes")

	// ErrUnknownHead is returned when a head node is not part of the graph.
	ErrUnknownHead = errors.New("structure: head node not in graph")

	// ErrJoinNotSpliced is returned when no listener supplied a join node for a
	// detected reconvergence.
	ErrJoinNotSpliced = errors.New("structure: no listener spliced a join node")

	// ErrGraphTooLarge is returned by Run when the graph exceeds RunOptions.MaxNodes.
	ErrGraphTooLarge = errors.New("structure: graph too large")
)

// EdgeKind classifies an edge of the structured graph.
type EdgeKind string

const (
	EdgeStructured EdgeKind = "structured" // Contributes to the decision lists
	EdgeBack       EdgeKind = "back"       // Loop continuation
	EdgeGoto       EdgeKind = "goto"       // Not expressible by nesting
	EdgeOutsideIf  EdgeKind = "outside_if" // Leaves a branch before its join
)

// ListView is a read-only view of the edge to decision-list map.
type ListView interface {
	Get(e graph.Edge) (decision.List, bool)
	Edges() []graph.Edge
	Len() int
}

// Lists maps edges to decision lists, remembering insertion order.
type Lists struct {
	m     map[graph.Edge]decision.List
	order []graph.Edge
}

func newLists() *Lists {
	return &Lists{m: make(map[graph.Edge]decision.List)}
}

// Get returns the list stored for e.
func (l *Lists) Get(e graph.Edge) (decision.List, bool) {
	dl, ok := l.m[e]
	return dl, ok
}

func (l *Lists) put(e graph.Edge, dl decision.List) {
	if _, ok := l.m[e]; !ok {
		l.order = append(l.order, e)
	}
	l.m[e] = dl
}

// Edges returns the edges in insertion order.
func (l *Lists) Edges() []graph.Edge {
	return slices.Clone(l.order)
}

// Sorted returns the edges ordered by Edge.Compare.
func (l *Lists) Sorted() []graph.Edge {
	out := slices.Clone(l.order)
	slices.SortFunc(out, graph.Edge.Compare)
	return out
}

// Len returns the number of edges with a list.
func (l *Lists) Len() int {
	return len(l.order)
}

// edgeSet is an insertion-ordered set of edges.
type edgeSet struct {
	seen map[graph.Edge]bool
	list []graph.Edge
}

func newEdgeSet() *edgeSet {
	return &edgeSet{seen: make(map[graph.Edge]bool)}
}

func (s *edgeSet) add(e graph.Edge) bool {
	if s.seen[e] {
		return false
	}
	s.seen[e] = true
	s.list = append(s.list, e)
	return true
}

func (s *edgeSet) has(e graph.Edge) bool {
	return s.seen[e]
}

func (s *edgeSet) remove(e graph.Edge) {
	if !s.seen[e] {
		return
	}
	delete(s.seen, e)
	if i := slices.Index(s.list, e); i >= 0 {
		s.list = slices.Delete(s.list, i, i+1)
	}
}

// Result is the outcome of a detection run.
type Result struct {
	// Heads are the head nodes the run started from.
	Heads []string

	// LoopContinues are the loop header nodes, in detection order.
	LoopContinues []string

	BackEdges      []graph.Edge
	GotoEdges      []graph.Edge
	OutsideIfEdges []graph.Edge

	// Joins lists the join nodes spliced in during the run.
	Joins []string

	// Unresolved lists nodes still waiting for a predecessor when the run ended.
	// It is empty for connected graphs reachable from the heads.
	Unresolved []string

	// MissingLists lists live predecessor edges that had no decision list when merged.
	MissingLists []graph.Edge

	// DecisionLists holds the final decision list of every edge the walk reached.
	DecisionLists *Lists

	back, gotos, outside map[graph.Edge]bool
}

// Kind classifies e. Back wins over goto, goto over outside-if.
func (r *Result) Kind(e graph.Edge) EdgeKind {
	switch {
	case r.back[e]:
		return EdgeBack
	case r.gotos[e]:
		return EdgeGoto
	case r.outside[e]:
		return EdgeOutsideIf
	default:
		return EdgeStructured
	}
}

// IsLoopContinue reports whether id is a loop header.
func (r *Result) IsLoopContinue(id string) bool {
	return slices.Contains(r.LoopContinues, id)
}

// Edges returns every edge with a decision list, sorted.
func (r *Result) Edges() []graph.Edge {
	return r.DecisionLists.Sorted()
}

func toSet(edges []graph.Edge) map[graph.Edge]bool {
	m := make(map[graph.Edge]bool, len(edges))
	for _, e := range edges {
		m[e] = true
	}
	return m
}
