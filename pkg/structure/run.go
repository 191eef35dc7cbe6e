package structure

import (
	"fmt"

	"github.com/l3aro/go-code-structure/internal/log"
	"github.com/l3aro/go-code-structure/pkg/composite"
	"github.com/l3aro/go-code-structure/pkg/graph"
	"github.com/l3aro/go-code-structure/pkg/join"
)

// RunOptions configures Run.
type RunOptions struct {
	// MergeComposites collapses straight-line chains before detection.
	MergeComposites bool

	// MaxNodes rejects graphs with more nodes. Zero means no limit.
	MaxNodes int

	Logger    log.Logger
	Listeners []Listener
}

// Run structures g in place: it optionally merges composite chains, then runs the
// detector with a join injector so that every detected reconvergence gets a
// join node. Listeners observe the run before the injector splices.
func Run(g *graph.Graph, heads []string, opts RunOptions) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	if opts.MaxNodes > 0 && g.Len() > opts.MaxNodes {
		return nil, fmt.Errorf("%w: %d nodes, limit is %d", ErrGraphTooLarge, g.Len(), opts.MaxNodes)
	}

	if opts.MergeComposites {
		m := composite.NewMerger(g)
		m.AddListener(func(id string) {
			for _, l := range opts.Listeners {
				l.CompositeFormed(id)
			}
		})
		merged, err := m.Merge(heads)
		if err != nil {
			return nil, fmt.Errorf("merging composites: %w", err)
		}
		heads = merged
	}

	inj := join.NewInjector(g)
	inj.AddListener(func(id string) {
		for _, l := range opts.Listeners {
			l.JoinAdded(id)
		}
	})

	d := New(g, WithLogger(logger))
	for _, l := range opts.Listeners {
		d.AddListener(l)
	}
	d.AddListener(InjectorListener(inj))

	res, err := d.DetectAll(heads)
	if err != nil {
		return nil, err
	}
	logger.Debug("structure detected",
		"nodes", g.Len(),
		"joins", len(res.Joins),
		"loops", len(res.LoopContinues),
		"gotos", len(res.GotoEdges))
	return res, nil
}
