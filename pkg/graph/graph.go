package graph

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Graph is an insertion-ordered arena of nodes with ordered adjacency.
// It is not safe for concurrent use.
type Graph struct {
	nodes []*Node
	index map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode adds a plain node.
func (g *Graph) AddNode(id, label string) error {
	_, err := g.add(&Node{ID: id, Kind: KindPlain, Label: label})
	return err
}

func (g *Graph) add(n *Node) (*Node, error) {
	if n.ID == "" {
		return nil, ErrEmptyNodeID
	}
	if _, ok := g.index[n.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return n, nil
}

// AddJoin creates a join node bound to the given decision node.
// The node has no adjacency yet.
func (g *Graph) AddJoin(decision string) (string, error) {
	if _, ok := g.index[decision]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNodeNotFound, decision)
	}
	base := "endif_" + decision
	id := base
	for i := 2; g.Has(id); i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	n, err := g.add(&Node{ID: id, Kind: KindJoin, Decision: decision})
	if err != nil {
		return "", err
	}
	return n.ID, nil
}

// AddComposite creates a composite node for the given chain. Composite sub-nodes
// are flattened so the result always lists original node ids.
func (g *Graph) AddComposite(sub []string) (string, error) {
	var flat []string
	for _, id := range sub {
		n, ok := g.Node(id)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if n.Kind == KindComposite {
			flat = append(flat, n.Sub...)
		} else {
			flat = append(flat, n.ID)
		}
	}
	labels := make([]string, 0, len(sub))
	for _, id := range sub {
		n, _ := g.Node(id)
		if n.Label != "" {
			labels = append(labels, n.Label)
		} else {
			labels = append(labels, n.ID)
		}
	}
	n, err := g.add(&Node{
		ID:    strings.Join(flat, CompositeDelimiter),
		Kind:  KindComposite,
		Label: strings.Join(labels, "\n"),
		Sub:   flat,
	})
	if err != nil {
		return "", err
	}
	return n.ID, nil
}

// AddEdge appends to -> at the end of from's successors and from at the end of to's predecessors.
func (g *Graph) AddEdge(from, to string) error {
	f, ok := g.Node(from)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	t, ok := g.Node(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	f.next = append(f.next, to)
	t.prev = append(t.prev, from)
	return nil
}

// RemoveEdge removes one occurrence of from -> to.
func (g *Graph) RemoveEdge(from, to string) error {
	f, ok := g.Node(from)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	t, ok := g.Node(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	i, j := slices.Index(f.next, to), slices.Index(t.prev, from)
	if i < 0 || j < 0 {
		return fmt.Errorf("%w: %s->%s", ErrEdgeNotFound, from, to)
	}
	f.next = slices.Delete(f.next, i, i+1)
	t.prev = slices.Delete(t.prev, j, j+1)
	return nil
}

// RemoveNode removes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for _, n := range g.nodes {
		n.next = slices.DeleteFunc(n.next, func(s string) bool { return s == id })
		n.prev = slices.DeleteFunc(n.prev, func(s string) bool { return s == id })
	}
	g.nodes = slices.Delete(g.nodes, i, i+1)
	delete(g.index, id)
	for j := i; j < len(g.nodes); j++ {
		g.index[g.nodes[j].ID] = j
	}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Has reports whether the graph contains id.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// IDs returns all node ids sorted.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns every edge in node insertion order, then successor order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, n := range g.nodes {
		for _, next := range n.next {
			edges = append(edges, Edge{From: n.ID, To: next})
		}
	}
	return edges
}

// Next returns a copy of the ordered successor list of id.
func (g *Graph) Next(id string) []string {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	return slices.Clone(n.next)
}

// Prev returns a copy of the ordered predecessor list of id.
func (g *Graph) Prev(id string) []string {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	return slices.Clone(n.prev)
}

// IndexOfNext returns the position of the first next in id's successors, or -1.
func (g *Graph) IndexOfNext(id, next string) int {
	n, ok := g.Node(id)
	if !ok {
		return -1
	}
	return slices.Index(n.next, next)
}

// IndexOfPrev returns the position of the first prev in id's predecessors, or -1.
func (g *Graph) IndexOfPrev(id, prev string) int {
	n, ok := g.Node(id)
	if !ok {
		return -1
	}
	return slices.Index(n.prev, prev)
}

// InsertNext inserts next into id's successors at index. It does not touch next's predecessors.
func (g *Graph) InsertNext(id string, index int, next string) error {
	n, err := g.endpoints(id, next)
	if err != nil {
		return err
	}
	if index < 0 || index > len(n.next) {
		return fmt.Errorf("%w: %s next[%d]", ErrIndexRange, id, index)
	}
	n.next = slices.Insert(n.next, index, next)
	return nil
}

// InsertPrev inserts prev into id's predecessors at index. It does not touch prev's successors.
func (g *Graph) InsertPrev(id string, index int, prev string) error {
	n, err := g.endpoints(id, prev)
	if err != nil {
		return err
	}
	if index < 0 || index > len(n.prev) {
		return fmt.Errorf("%w: %s prev[%d]", ErrIndexRange, id, index)
	}
	n.prev = slices.Insert(n.prev, index, prev)
	return nil
}

// RemoveNextAt removes the successor at index from id.
func (g *Graph) RemoveNextAt(id string, index int) error {
	n, ok := g.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if index < 0 || index >= len(n.next) {
		return fmt.Errorf("%w: %s next[%d]", ErrIndexRange, id, index)
	}
	n.next = slices.Delete(n.next, index, index+1)
	return nil
}

// RemovePrevAt removes the predecessor at index from id.
func (g *Graph) RemovePrevAt(id string, index int) error {
	n, ok := g.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if index < 0 || index >= len(n.prev) {
		return fmt.Errorf("%w: %s prev[%d]", ErrIndexRange, id, index)
	}
	n.prev = slices.Delete(n.prev, index, index+1)
	return nil
}

// ReplaceNext swaps the first oldNext in id's successors for newNext, keeping its position.
func (g *Graph) ReplaceNext(id, oldNext, newNext string) error {
	n, err := g.endpoints(id, newNext)
	if err != nil {
		return err
	}
	i := slices.Index(n.next, oldNext)
	if i < 0 {
		return fmt.Errorf("%w: %s->%s", ErrEdgeNotFound, id, oldNext)
	}
	n.next[i] = newNext
	return nil
}

func (g *Graph) endpoints(id, other string) (*Node, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if !g.Has(other) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, other)
	}
	return n, nil
}

// Validate checks that A is in B.prev exactly as many times as B is in A.next.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		for _, next := range n.next {
			m, ok := g.Node(next)
			if !ok {
				return fmt.Errorf("%w: %s->%s targets a missing node", ErrInconsistent, n.ID, next)
			}
			if count(n.next, next) != count(m.prev, n.ID) {
				return fmt.Errorf("%w: %s->%s", ErrInconsistent, n.ID, next)
			}
		}
		for _, prev := range n.prev {
			m, ok := g.Node(prev)
			if !ok {
				return fmt.Errorf("%w: %s<-%s sources a missing node", ErrInconsistent, n.ID, prev)
			}
			if count(m.next, n.ID) != count(n.prev, prev) {
				return fmt.Errorf("%w: %s->%s", ErrInconsistent, prev, n.ID)
			}
		}
	}
	return nil
}

func count(ids []string, id string) int {
	c := 0
	for _, s := range ids {
		if s == id {
			c++
		}
	}
	return c
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := New()
	for _, n := range g.nodes {
		cp := *n
		cp.Sub = slices.Clone(n.Sub)
		cp.next = slices.Clone(n.next)
		cp.prev = slices.Clone(n.prev)
		c.index[cp.ID] = len(c.nodes)
		c.nodes = append(c.nodes, &cp)
	}
	return c
}
