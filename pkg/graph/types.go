// Package graph defines the mutable control flow graph consumed by the structuring detector.
// Nodes live in an insertion-ordered arena and are addressed by their stable string id.
// Edges are not stored separately; they are derived from the ordered adjacency lists.
package graph

import (
	"errors"
	"strings"
)

// Sentinel errors for graph operations.
var (
	ErrEmptyNodeID   = errors.New("graph: node id is empty")
	ErrDuplicateNode = errors.New("graph: duplicate node id")
	ErrNodeNotFound  = errors.New("graph: node not found")
	ErrEdgeNotFound  = errors.New("graph: edge not found")
	ErrParallelEdge  = errors.New("graph: parallel edge")
	ErrIndexRange    = errors.New("graph: adjacency index out of range")
	ErrInconsistent  = errors.New("graph: adjacency is not bidirectionally consistent")
)

// CompositeDelimiter separates sub-node ids in a composite node id.
const CompositeDelimiter = "-"

// Kind represents the kind of a graph node.
type Kind string

const (
	KindPlain     Kind = "plain"     // Node supplied by the graph builder
	KindJoin      Kind = "join"      // Synthetic reconvergence node (endif)
	KindComposite Kind = "composite" // Merged straight-line chain
)

// Node is one vertex of the graph. Adjacency is owned by the Graph.
type Node struct {
	ID    string
	Kind  Kind
	Label string

	// Decision is the id of the decision node a join node closes. Join kind only.
	Decision string

	// Sub lists the merged sub-node ids in chain order. Composite kind only.
	Sub []string

	next []string
	prev []string
}

// Edge is a directed edge keyed by its endpoint ids. It is a comparable value
// and can be used as a map key across traversals.
type Edge struct {
	From string `json:"from" msgpack:"from" yaml:"from"`
	To   string `json:"to" msgpack:"to" yaml:"to"`
}

// String returns the edge as "from->to".
func (e Edge) String() string {
	return e.From + "->" + e.To
}

// Compare orders edges by source id, then by target id.
func (e Edge) Compare(o Edge) int {
	if c := strings.Compare(e.From, o.From); c != 0 {
		return c
	}
	return strings.Compare(e.To, o.To)
}

// Less reports whether e sorts before o.
func (e Edge) Less(o Edge) bool {
	return e.Compare(o) < 0
}

// Reader is the read-only view of a graph used by the detector.
// Next and Prev must return the live adjacency at the time of the call.
type Reader interface {
	Has(id string) bool
	Next(id string) []string
	Prev(id string) []string
}

// Editor is a Reader that supports indexed adjacency mutation.
// Low-level methods do not keep adjacency bidirectionally consistent on their own;
// callers pair them so that Validate holds once they are done.
type Editor interface {
	Reader
	Node(id string) (*Node, bool)
	IndexOfNext(id, next string) int
	IndexOfPrev(id, prev string) int
	InsertNext(id string, index int, next string) error
	InsertPrev(id string, index int, prev string) error
	RemoveNextAt(id string, index int) error
	RemovePrevAt(id string, index int) error
	ReplaceNext(id, oldNext, newNext string) error
	AddJoin(decision string) (string, error)
	AddComposite(sub []string) (string, error)
	RemoveNode(id string) error
}
