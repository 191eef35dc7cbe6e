package structure

import (
	"fmt"
	"slices"

	"github.com/l3aro/go-code-structure/internal/log"
	"github.com/l3aro/go-code-structure/pkg/decision"
	"github.com/l3aro/go-code-structure/pkg/graph"
)

// Detector runs structure detection over a graph.
type Detector struct {
	g         graph.Reader
	logger    log.Logger
	listeners []Listener
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for warnings. The default discards output.
func WithLogger(l log.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithListener registers a listener at construction time.
func WithListener(l Listener) Option {
	return func(d *Detector) {
		d.AddListener(l)
	}
}

// New creates a detector reading g.
func New(g graph.Reader, opts ...Option) *Detector {
	d := &Detector{g: g, logger: log.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddListener appends l to the listener chain.
func (d *Detector) AddListener(l Listener) {
	d.listeners = append(d.listeners, l)
}

// RemoveListener removes the first registration of l.
func (d *Detector) RemoveListener(l Listener) {
	for i, x := range d.listeners {
		if x == l {
			d.listeners = slices.Delete(d.listeners, i, i+1)
			return
		}
	}
}

// Detect runs detection from a single head node.
//
// Every reconvergence needs a listener that splices a join node in
// JoinDetected, such as InjectorListener; without one the run fails with
// ErrJoinNotSpliced at the first join. Run registers the injector itself.
func (d *Detector) Detect(head string) (*Result, error) {
	return d.DetectAll([]string{head})
}

// DetectAll runs detection with every head enqueued up front.
// Each call starts from fresh state; the graph may have been changed in between.
func (d *Detector) DetectAll(heads []string) (*Result, error) {
	if len(heads) == 0 {
		return nil, ErrNoHeads
	}
	for _, h := range heads {
		if !d.g.Has(h) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHead, h)
		}
	}

	r := newRun(d)
	r.todo = append(r.todo, heads...)
	if err := r.walk(); err != nil {
		return nil, err
	}
	if len(r.waiting) > 0 {
		d.logger.Warn("nodes never became ready", "nodes", fmt.Sprint(r.waiting))
	}
	return r.result(heads), nil
}

// run holds the state of one detection.
type run struct {
	d *Detector
	g graph.Reader

	todo      []string
	waiting   []string
	processed map[string]bool
	ignored   map[graph.Edge]bool

	// remembered holds decision nodes whose branches exit before the join.
	remembered map[string]bool

	lists         *Lists
	loopContinues []string
	back          *edgeSet
	gotos         *edgeSet
	outside       *edgeSet
	missing       *edgeSet
	joins         []string
}

func newRun(d *Detector) *run {
	return &run{
		d:          d,
		g:          d.g,
		processed:  make(map[string]bool),
		ignored:    make(map[graph.Edge]bool),
		remembered: make(map[string]bool),
		lists:      newLists(),
		back:       newEdgeSet(),
		gotos:      newEdgeSet(),
		outside:    newEdgeSet(),
		missing:    newEdgeSet(),
	}
}

func (r *run) result(heads []string) *Result {
	res := &Result{
		Heads:          slices.Clone(heads),
		LoopContinues:  slices.Clone(r.loopContinues),
		BackEdges:      sortedEdges(r.back.list),
		GotoEdges:      sortedEdges(r.gotos.list),
		OutsideIfEdges: sortedEdges(r.outside.list),
		Joins:          slices.Clone(r.joins),
		Unresolved:     slices.Clone(r.waiting),
		MissingLists:   sortedEdges(r.missing.list),
		DecisionLists:  r.lists,
	}
	res.back = toSet(res.BackEdges)
	res.gotos = toSet(res.GotoEdges)
	res.outside = toSet(res.OutsideIfEdges)
	return res
}

func sortedEdges(edges []graph.Edge) []graph.Edge {
	out := slices.Clone(edges)
	slices.SortFunc(out, graph.Edge.Compare)
	return out
}

// liveNext returns the successors of id reached over non-ignored edges.
func (r *run) liveNext(id string) []string {
	var out []string
	for _, n := range r.g.Next(id) {
		if !r.ignored[graph.Edge{From: id, To: n}] {
			out = append(out, n)
		}
	}
	return out
}

// livePrev returns the predecessors of id reached over non-ignored edges.
func (r *run) livePrev(id string) []string {
	var out []string
	for _, p := range r.g.Prev(id) {
		if !r.ignored[graph.Edge{From: p, To: id}] {
			out = append(out, p)
		}
	}
	return out
}

func (r *run) addWaiting(id string) {
	if !slices.Contains(r.waiting, id) {
		r.waiting = append(r.waiting, id)
	}
}

func (r *run) removeWaiting(id string) {
	if i := slices.Index(r.waiting, id); i >= 0 {
		r.waiting = slices.Delete(r.waiting, i, i+1)
	}
}

// kindPriority orders the non-structured kinds, strongest first.
var kindPriority = []EdgeKind{EdgeBack, EdgeGoto, EdgeOutsideIf}

func (r *run) set(kind EdgeKind) *edgeSet {
	switch kind {
	case EdgeBack:
		return r.back
	case EdgeGoto:
		return r.gotos
	case EdgeOutsideIf:
		return r.outside
	}
	return nil
}

// mark classifies e. An edge holds at most one kind: back outranks goto, which
// outranks outside-if. EdgeMarked fires only when the kind of e changes.
func (r *run) mark(e graph.Edge, kind EdgeKind) {
	rank := slices.Index(kindPriority, kind)
	if rank < 0 {
		return
	}
	for _, k := range kindPriority[:rank+1] {
		if r.set(k).has(e) {
			return
		}
	}
	for _, k := range kindPriority[rank+1:] {
		r.set(k).remove(e)
	}
	r.set(kind).add(e)
	for _, l := range r.d.listeners {
		l.EdgeMarked(e, kind)
	}
}

func (r *run) fireNodeSelected(id string) {
	for _, l := range r.d.listeners {
		l.NodeSelected(id)
	}
}

func (r *run) fireNoNodeSelected() {
	for _, l := range r.d.listeners {
		l.NoNodeSelected()
	}
}

func (r *run) fireListsUpdated() {
	for _, l := range r.d.listeners {
		l.DecisionListsUpdated(r.lists)
	}
}

func (r *run) fireStep() {
	for _, l := range r.d.listeners {
		l.Step()
	}
}

// walk runs the forward walk to a fixpoint and then resolves the first loop
// header found among the waiting nodes.
func (r *run) walk() error {
	if err := r.walkForward(); err != nil {
		return err
	}
	r.fireNoNodeSelected()

	for _, header := range slices.Clone(r.waiting) {
		body, continues := r.leadsTo(header)
		if len(continues) == 0 {
			continue
		}
		return r.resolveLoop(header, body, continues)
	}
	return nil
}

// walkForward processes queued nodes in FIFO order. A node is processed once all
// its live predecessors are; until then it waits.
func (r *run) walkForward() error {
	for len(r.todo) > 0 {
		cur := r.todo[0]
		r.todo = r.todo[1:]
		if r.processed[cur] {
			continue
		}

		prev := r.livePrev(cur)
		ready := true
		for _, p := range prev {
			if !r.processed[p] {
				ready = false
				break
			}
		}
		if !ready {
			r.addWaiting(cur)
			continue
		}
		r.removeWaiting(cur)

		merged, err := r.merge(cur, prev)
		if err != nil {
			return err
		}
		r.processed[cur] = true

		next := r.liveNext(cur)
		for branch, n := range next {
			dl := merged
			if len(next) > 1 {
				dl = dl.Append(decision.Decision{Node: cur, Branch: branch})
			}
			r.lists.put(graph.Edge{From: cur, To: n}, dl)
			r.todo = append(r.todo, n)
		}

		r.fireNodeSelected(cur)
		r.fireListsUpdated()
		r.fireStep()
	}
	return nil
}

// join asks the listener chain to splice a join node for decisionNode between
// ends and after, then moves the lists of the replaced edges onto the edges
// entering the join.
func (r *run) join(decisionNode string, ends []string, after string) (string, error) {
	before := make([]graph.Edge, len(ends))
	for i, e := range ends {
		before[i] = graph.Edge{From: e, To: after}
	}

	node := after
	for _, l := range r.d.listeners {
		n, err := l.JoinDetected(decisionNode, slices.Clone(ends), node)
		if err != nil {
			return "", fmt.Errorf("joining %s before %s: %w", decisionNode, after, err)
		}
		node = n
	}
	if node == after {
		return "", fmt.Errorf("%w: %s before %s", ErrJoinNotSpliced, decisionNode, after)
	}

	for m, p := range r.g.Prev(node) {
		if m >= len(before) {
			break
		}
		if dl, ok := r.lists.Get(before[m]); ok {
			r.lists.put(graph.Edge{From: p, To: node}, dl)
		}
	}
	r.joins = append(r.joins, node)
	return node, nil
}
