// Package join splices synthetic join (endif) nodes into a graph.
package join

import (
	"errors"
	"fmt"
	"slices"

	"github.com/l3aro/go-code-structure/pkg/graph"
)

var (
	// ErrNoEnds is returned when Inject is called without branch-end nodes.
	ErrNoEnds = errors.New("join: no branch-end nodes")

	// ErrNotPredecessor is returned when a branch-end node is not an immediate
	// predecessor of the common successor. The graph is left untouched.
	ErrNotPredecessor = errors.New("join: branch-end node is not a predecessor of the successor")
)

// Injector inserts join nodes between branch ends and their common successor.
type Injector struct {
	g         graph.Editor
	listeners []func(id string)
}

// NewInjector creates an injector working on g.
func NewInjector(g graph.Editor) *Injector {
	return &Injector{g: g}
}

// AddListener registers a callback fired after each join node is spliced in.
func (inj *Injector) AddListener(fn func(id string)) {
	inj.listeners = append(inj.listeners, fn)
}

// Inject creates one join node bound to decision and routes every ends[i] -> after
// edge through it: ends[i] -> join -> after. The join takes the position of the
// first removed predecessor in after's predecessor list, and each end node keeps
// the join at the branch position it had for after.
func (inj *Injector) Inject(decision string, ends []string, after string) (string, error) {
	if len(ends) == 0 {
		return "", ErrNoEnds
	}

	// Check every precondition before touching the graph.
	prev := inj.g.Prev(after)
	if prev == nil && !inj.g.Has(after) {
		return "", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, after)
	}
	pos := len(prev)
	remaining := slices.Clone(prev)
	for _, end := range ends {
		i := slices.Index(remaining, end)
		if i < 0 || inj.g.IndexOfNext(end, after) < 0 {
			return "", fmt.Errorf("%w: %s->%s", ErrNotPredecessor, end, after)
		}
		remaining[i] = "" // consume one occurrence per end
		if i < pos {
			pos = i
		}
	}

	id, err := inj.g.AddJoin(decision)
	if err != nil {
		return "", fmt.Errorf("creating join for %s: %w", decision, err)
	}

	for _, end := range ends {
		if err := inj.g.ReplaceNext(end, after, id); err != nil {
			return "", err
		}
		if err := inj.g.InsertPrev(id, len(inj.g.Prev(id)), end); err != nil {
			return "", err
		}
		if err := inj.g.RemovePrevAt(after, inj.g.IndexOfPrev(after, end)); err != nil {
			return "", err
		}
	}
	if err := inj.g.InsertNext(id, 0, after); err != nil {
		return "", err
	}
	if err := inj.g.InsertPrev(after, pos, id); err != nil {
		return "", err
	}

	for _, fn := range inj.listeners {
		fn(id)
	}
	return id, nil
}
