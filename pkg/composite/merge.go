// Package composite merges straight-line chains of a graph into composite nodes
// before structuring, so that single-entry/single-exit runs are handled as one unit.
package composite

import (
	"fmt"
	"slices"

	"github.com/l3aro/go-code-structure/pkg/graph"
)

// Editor is the graph capability the merger needs.
type Editor interface {
	graph.Editor
	Nodes() []*graph.Node
}

// Merger replaces chains a -> b -> ... with one composite node.
type Merger struct {
	g         Editor
	listeners []func(id string)
}

// NewMerger creates a merger working on g.
func NewMerger(g Editor) *Merger {
	return &Merger{g: g}
}

// AddListener registers a callback fired after each composite node is formed.
func (m *Merger) AddListener(fn func(id string)) {
	m.listeners = append(m.listeners, fn)
}

// Merge collapses every maximal chain and returns heads with merged members
// replaced by their composite. a -> b extends a chain when a has exactly one
// successor b, b has exactly one predecessor a, b is not a head and b is not
// already in the chain.
func (m *Merger) Merge(heads []string) ([]string, error) {
	heads = slices.Clone(heads)
	isHead := make(map[string]bool, len(heads))
	for _, h := range heads {
		isHead[h] = true
	}

	for _, n := range m.g.Nodes() {
		if !m.g.Has(n.ID) || m.extendsPredecessor(n.ID, isHead) {
			continue
		}
		chain := m.chainFrom(n.ID, isHead)
		if len(chain) < 2 {
			continue
		}
		id, err := m.collapse(chain)
		if err != nil {
			return nil, err
		}
		for i, h := range heads {
			if slices.Contains(chain, h) {
				heads[i] = id
				isHead[id] = true
			}
		}
		for _, fn := range m.listeners {
			fn(id)
		}
	}
	return heads, nil
}

// extendsPredecessor reports whether id would be merged into its predecessor's chain.
func (m *Merger) extendsPredecessor(id string, isHead map[string]bool) bool {
	if isHead[id] {
		return false
	}
	prev := m.g.Prev(id)
	if len(prev) != 1 || prev[0] == id {
		return false
	}
	return len(m.g.Next(prev[0])) == 1
}

func (m *Merger) chainFrom(start string, isHead map[string]bool) []string {
	chain := []string{start}
	cur := start
	for {
		next := m.g.Next(cur)
		if len(next) != 1 {
			return chain
		}
		b := next[0]
		if isHead[b] || slices.Contains(chain, b) || len(m.g.Prev(b)) != 1 {
			return chain
		}
		chain = append(chain, b)
		cur = b
	}
}

func (m *Merger) collapse(chain []string) (string, error) {
	first, last := chain[0], chain[len(chain)-1]
	id, err := m.g.AddComposite(chain)
	if err != nil {
		return "", fmt.Errorf("merging %v: %w", chain, err)
	}
	inChain := func(s string) bool { return slices.Contains(chain, s) }
	mapped := func(s string) string {
		if inChain(s) {
			return id
		}
		return s
	}

	firstPrev, lastNext := m.g.Prev(first), m.g.Next(last)
	for _, p := range firstPrev {
		if !inChain(p) {
			if err := m.g.ReplaceNext(p, first, id); err != nil {
				return "", err
			}
		}
		if err := m.g.InsertPrev(id, len(m.g.Prev(id)), mapped(p)); err != nil {
			return "", err
		}
	}
	for _, n := range lastNext {
		if !inChain(n) {
			i := m.g.IndexOfPrev(n, last)
			if err := m.g.RemovePrevAt(n, i); err != nil {
				return "", err
			}
			if err := m.g.InsertPrev(n, i, id); err != nil {
				return "", err
			}
		}
		if err := m.g.InsertNext(id, len(m.g.Next(id)), mapped(n)); err != nil {
			return "", err
		}
	}
	for _, sub := range chain {
		if err := m.g.RemoveNode(sub); err != nil {
			return "", err
		}
	}
	return id, nil
}
