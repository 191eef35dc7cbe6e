package structure

import (
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-code-structure/pkg/decision"
	"github.com/l3aro/go-code-structure/pkg/graph"
)

// Report is a serializable snapshot of a structured graph.
type Report struct {
	Heads         []string       `json:"heads" msgpack:"heads"`
	Nodes         []ReportNode   `json:"nodes" msgpack:"nodes"`
	Edges         []ReportEdge   `json:"edges" msgpack:"edges"`
	LoopContinues []string       `json:"loop_continues" msgpack:"loop_continues"`
	Joins         []string       `json:"joins" msgpack:"joins"`
	Unresolved    []string       `json:"unresolved,omitempty" msgpack:"unresolved,omitempty"`
	MissingLists  []graph.Edge   `json:"missing_lists,omitempty" msgpack:"missing_lists,omitempty"`
	Stats         map[string]int `json:"stats" msgpack:"stats"`
}

// ReportNode is one node of a Report.
type ReportNode struct {
	ID       string     `json:"id" msgpack:"id"`
	Kind     graph.Kind `json:"kind" msgpack:"kind"`
	Label    string     `json:"label,omitempty" msgpack:"label,omitempty"`
	Decision string     `json:"decision,omitempty" msgpack:"decision,omitempty"`
	Sub      []string   `json:"sub,omitempty" msgpack:"sub,omitempty"`
	Next     []string   `json:"next" msgpack:"next"`
}

// ReportEdge is one classified edge of a Report.
type ReportEdge struct {
	From      string              `json:"from" msgpack:"from"`
	To        string              `json:"to" msgpack:"to"`
	Kind      EdgeKind            `json:"kind" msgpack:"kind"`
	Decisions []decision.Decision `json:"decisions" msgpack:"decisions"`
}

// NewReport builds a report of g after a run produced res.
func NewReport(g *graph.Graph, res *Result) *Report {
	rep := &Report{
		Heads:         res.Heads,
		LoopContinues: res.LoopContinues,
		Joins:         res.Joins,
		Unresolved:    res.Unresolved,
		MissingLists:  res.MissingLists,
		Stats:         make(map[string]int),
	}
	for _, n := range g.Nodes() {
		rep.Nodes = append(rep.Nodes, ReportNode{
			ID:       n.ID,
			Kind:     n.Kind,
			Label:    n.Label,
			Decision: n.Decision,
			Sub:      n.Sub,
			Next:     g.Next(n.ID),
		})
	}
	for _, e := range g.Edges() {
		kind := res.Kind(e)
		re := ReportEdge{From: e.From, To: e.To, Kind: kind, Decisions: []decision.Decision{}}
		if dl, ok := res.DecisionLists.Get(e); ok {
			re.Decisions = dl.Decisions()
		}
		rep.Edges = append(rep.Edges, re)
		rep.Stats[string(kind)]++
	}
	rep.Stats["nodes"] = len(rep.Nodes)
	rep.Stats["loops"] = len(rep.LoopContinues)
	return rep
}

// WriteMsgpack encodes the report as msgpack.
func (r *Report) WriteMsgpack(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// ReadReport decodes a msgpack report.
func ReadReport(rd io.Reader) (*Report, error) {
	var r Report
	if err := msgpack.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}

// Text writes the report in human-readable form.
func (r *Report) Text(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Structure for heads: %s ===\n", strings.Join(r.Heads, ", "))
	fmt.Fprintf(&b, "Loop continues: %v\n", r.LoopContinues)
	fmt.Fprintf(&b, "Joins: %v\n", r.Joins)
	if len(r.Unresolved) > 0 {
		fmt.Fprintf(&b, "Unresolved: %v\n", r.Unresolved)
	}

	fmt.Fprintf(&b, "\nNodes (%d):\n", len(r.Nodes))
	for _, n := range r.Nodes {
		switch n.Kind {
		case graph.KindJoin:
			fmt.Fprintf(&b, "  %s (join of %s)\n", n.ID, n.Decision)
		case graph.KindComposite:
			fmt.Fprintf(&b, "  %s (composite of %d)\n", n.ID, len(n.Sub))
		default:
			fmt.Fprintf(&b, "  %s\n", n.ID)
		}
	}

	fmt.Fprintf(&b, "\nEdges (%d):\n", len(r.Edges))
	for _, e := range r.Edges {
		fmt.Fprintf(&b, "  %s --%s--> %s %s\n", e.From, e.Kind, e.To, decision.Of(e.Decisions...))
	}
	for _, e := range r.MissingLists {
		fmt.Fprintf(&b, "  warning: no decision list for %s\n", e)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
