package structure

import (
	"slices"

	"github.com/l3aro/go-code-structure/pkg/graph"
)

// loopBody is the set of nodes found on paths from a header back to itself,
// in discovery order.
type loopBody struct {
	order []string
	set   map[string]bool
}

func (b *loopBody) add(id string) {
	if !b.set[id] {
		b.set[id] = true
		b.order = append(b.order, id)
	}
}

// leadsTo searches depth-first from target over live edges for paths back to
// target. It returns the nodes found on such paths and the edges that close them.
// A node reached again while still on the search path does not count as leading
// back, so only the first closing edge of each branch is found.
func (r *run) leadsTo(target string) (*loopBody, []graph.Edge) {
	body := &loopBody{set: make(map[string]bool)}
	found := newEdgeSet()
	visited := map[string]bool{target: true}

	type frame struct {
		node string
		next []string
		i    int
		res  bool
	}

	var stack []*frame
	// enter reports whether id was pushed, and if not, whether it leads back.
	enter := func(id string) (bool, bool) {
		if visited[id] {
			return false, body.set[id]
		}
		visited[id] = true
		next := r.liveNext(id)
		if slices.Contains(next, target) {
			found.add(graph.Edge{From: id, To: target})
			return false, true
		}
		stack = append(stack, &frame{node: id, next: next})
		return true, false
	}

	next := r.liveNext(target)
	if slices.Contains(next, target) {
		found.add(graph.Edge{From: target, To: target})
		return body, found.list
	}
	stack = append(stack, &frame{node: target, next: next})

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.i == len(f.next) {
			stack = stack[:len(stack)-1]
			if len(stack) > 0 && f.res {
				body.add(f.node)
				stack[len(stack)-1].res = true
			}
			continue
		}
		n := f.next[f.i]
		f.i++
		if pushed, back := enter(n); !pushed && back {
			body.add(n)
			f.res = true
		}
	}
	return body, found.list
}

// resolveLoop classifies the edges closing the loop at header as back edges,
// walks the loop body with every other waiting node frozen, and then re-admits
// the frozen nodes with the loop's decision list on their entry edges.
func (r *run) resolveLoop(header string, body *loopBody, continues []graph.Edge) error {
	for _, e := range continues {
		r.mark(e, EdgeBack)
	}
	if !slices.Contains(r.loopContinues, header) {
		r.loopContinues = append(r.loopContinues, header)
	}

	// Entries into the body that bypass the header stay out of the structure.
	for _, n := range body.order {
		for _, p := range r.livePrev(n) {
			if p == header || body.set[p] || !r.processed[p] {
				continue
			}
			e := graph.Edge{From: p, To: n}
			r.ignored[e] = true
			r.mark(e, EdgeGoto)
		}
	}

	var frozen []string
	for _, w := range r.waiting {
		if w != header {
			frozen = append(frozen, w)
		}
	}
	entries := newEdgeSet()
	for _, w := range frozen {
		for _, p := range r.livePrev(w) {
			entries.add(graph.Edge{From: p, To: w})
		}
	}
	for _, e := range continues {
		r.ignored[e] = true
	}
	for _, n := range r.liveNext(header) {
		if body.set[n] {
			continue
		}
		entries.add(graph.Edge{From: header, To: n})
		if !slices.Contains(frozen, n) {
			frozen = append(frozen, n)
		}
	}

	for _, e := range entries.list {
		r.ignored[e] = true
	}
	r.waiting = nil
	r.todo = append(r.todo, header)
	if err := r.walk(); err != nil {
		return err
	}

	for _, e := range entries.list {
		delete(r.ignored, e)
	}
	for _, w := range frozen {
		delete(r.processed, w)
	}

	loopList, err := r.merge(header, r.livePrev(header))
	if err != nil {
		return err
	}
	for _, e := range entries.list {
		if !r.processed[e.From] {
			continue
		}
		if _, ok := r.lists.Get(e); !ok {
			r.lists.put(e, loopList)
		}
	}

	if len(frozen) == 0 {
		return nil
	}
	r.todo = append(r.todo, frozen...)
	return r.walk()
}
