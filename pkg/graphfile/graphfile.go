// Package graphfile reads and writes graph descriptions in YAML or JSON.
//
//	heads: [start]
//	nodes:
//	  - id: start
//	    label: "x := 0"
//	edges:
//	  - {from: start, to: loop}
//
// Nodes referenced only by edges are created implicitly.
package graphfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-code-structure/pkg/graph"
)

// ErrEmpty is returned when a description has no nodes.
var ErrEmpty = errors.New("graphfile: description has no nodes")

// Description is the on-disk form of a graph.
type Description struct {
	Heads []string   `yaml:"heads,omitempty" json:"heads,omitempty"`
	Nodes []NodeSpec `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Edges []EdgeSpec `yaml:"edges" json:"edges"`
}

// NodeSpec declares a node.
type NodeSpec struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// EdgeSpec declares an edge. Edge order defines branch order.
type EdgeSpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Parse decodes a YAML description. JSON input is accepted too.
func Parse(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing graph description: %w", err)
	}
	return &d, nil
}

// Load reads a description from path.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Build creates the graph. Heads default to the first node.
// Repeating an edge is an error wrapping graph.ErrParallelEdge.
func Build(d *Description) (*graph.Graph, []string, error) {
	g := graph.New()
	for _, n := range d.Nodes {
		if err := g.AddNode(n.ID, n.Label); err != nil {
			return nil, nil, err
		}
	}
	for _, e := range d.Edges {
		for _, id := range []string{e.From, e.To} {
			if g.Has(id) {
				continue
			}
			if err := g.AddNode(id, ""); err != nil {
				return nil, nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
			}
		}
		// Decision lists are keyed by endpoints, so a second from->to edge
		// would share the first one's list.
		if g.IndexOfNext(e.From, e.To) >= 0 {
			return nil, nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, graph.ErrParallelEdge)
		}
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, nil, err
		}
	}
	if g.Len() == 0 {
		return nil, nil, ErrEmpty
	}

	heads := d.Heads
	if len(heads) == 0 {
		heads = []string{g.Nodes()[0].ID}
	}
	for _, h := range heads {
		if !g.Has(h) {
			return nil, nil, fmt.Errorf("head %q: %w", h, graph.ErrNodeNotFound)
		}
	}
	return g, heads, nil
}

// LoadGraph loads and builds the description at path.
func LoadGraph(path string) (*graph.Graph, []string, error) {
	d, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	g, heads, err := Build(d)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, heads, nil
}

// FromGraph describes g in node insertion order.
func FromGraph(g *graph.Graph, heads []string) *Description {
	d := &Description{Heads: heads}
	for _, n := range g.Nodes() {
		d.Nodes = append(d.Nodes, NodeSpec{ID: n.ID, Label: n.Label})
	}
	for _, e := range g.Edges() {
		d.Edges = append(d.Edges, EdgeSpec{From: e.From, To: e.To})
	}
	return d
}

// Save writes d to path, as JSON when path ends in .json and YAML otherwise.
func Save(d *Description, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(d, "", "  ")
	} else {
		data, err = yaml.Marshal(d)
	}
	if err != nil {
		return fmt.Errorf("encoding graph description: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
