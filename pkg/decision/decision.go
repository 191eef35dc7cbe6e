// Package decision models path conditions: which branch of which decision node was
// taken to reach a point of the graph.
//
// A List is a persistent sequence. Appending or dropping returns a new List that shares
// its prefix with the receiver, so lists can be published to many edges without copying
// and without any risk of later mutation.
package decision

import (
	"fmt"
	"strings"
)

// Decision is one recorded branch choice.
type Decision struct {
	Node   string `json:"node" msgpack:"node"`
	Branch int    `json:"branch" msgpack:"branch"`
}

// String returns "node#branch".
func (d Decision) String() string {
	return fmt.Sprintf("%s#%d", d.Node, d.Branch)
}

type cell struct {
	d      Decision
	parent *cell
}

// List is an immutable ordered sequence of decisions. The zero value is the empty list.
type List struct {
	tail *cell
	n    int
}

// Of builds a list from the given decisions.
func Of(ds ...Decision) List {
	var l List
	for _, d := range ds {
		l = l.Append(d)
	}
	return l
}

// Len returns the number of decisions.
func (l List) Len() int {
	return l.n
}

// IsEmpty reports whether the list has no decisions.
func (l List) IsEmpty() bool {
	return l.n == 0
}

// Append returns a list with d added at the end.
func (l List) Append(d Decision) List {
	return List{tail: &cell{d: d, parent: l.tail}, n: l.n + 1}
}

// Drop returns the list without its last decision. Dropping from an empty list is a no-op.
func (l List) Drop() List {
	if l.n == 0 {
		return l
	}
	return List{tail: l.tail.parent, n: l.n - 1}
}

// Prefix returns the first n decisions.
func (l List) Prefix(n int) List {
	if n < 0 {
		n = 0
	}
	for l.n > n {
		l = l.Drop()
	}
	return l
}

// Last returns the last decision. It panics on an empty list.
func (l List) Last() Decision {
	if l.n == 0 {
		panic("decision: Last on empty list")
	}
	return l.tail.d
}

// At returns the decision at index i. It panics when i is out of range.
func (l List) At(i int) Decision {
	if i < 0 || i >= l.n {
		panic(fmt.Sprintf("decision: index %d out of range [0,%d)", i, l.n))
	}
	c := l.tail
	for j := l.n - 1; j > i; j-- {
		c = c.parent
	}
	return c.d
}

// Decisions returns the decisions in order.
func (l List) Decisions() []Decision {
	out := make([]Decision, l.n)
	c := l.tail
	for i := l.n - 1; i >= 0; i-- {
		out[i] = c.d
		c = c.parent
	}
	return out
}

// Nodes returns the decision-node sequence.
func (l List) Nodes() []string {
	out := make([]string, l.n)
	c := l.tail
	for i := l.n - 1; i >= 0; i-- {
		out[i] = c.d.Node
		c = c.parent
	}
	return out
}

// IfNodesEqual compares only the decision-node sequences, ignoring branch indices.
func (l List) IfNodesEqual(o List) bool {
	if l.n != o.n {
		return false
	}
	a, b := l.tail, o.tail
	for a != b {
		if a.d.Node != b.d.Node {
			return false
		}
		a, b = a.parent, b.parent
	}
	return true
}

// Equal compares decision nodes and branch indices.
func (l List) Equal(o List) bool {
	if l.n != o.n {
		return false
	}
	a, b := l.tail, o.tail
	for a != b {
		if a.d != b.d {
			return false
		}
		a, b = a.parent, b.parent
	}
	return true
}

// ContainsAny reports whether any decision node of the list is in nodes.
func (l List) ContainsAny(nodes map[string]bool) bool {
	for c := l.tail; c != nil; c = c.parent {
		if nodes[c.d.Node] {
			return true
		}
	}
	return false
}

// String renders the list as "[H#0 X#1]", or "(empty)".
func (l List) String() string {
	if l.n == 0 {
		return "(empty)"
	}
	parts := make([]string, 0, l.n)
	for _, d := range l.Decisions() {
		parts = append(parts, d.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}
