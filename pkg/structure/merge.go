package structure

import (
	"slices"
	"sort"

	"github.com/l3aro/go-code-structure/pkg/decision"
	"github.com/l3aro/go-code-structure/pkg/graph"
)

// mergeState is the working set of predecessors while merging into bod.
type mergeState struct {
	bod   string
	nodes []string
	lists []decision.List
}

func (st *mergeState) remove(idx ...int) {
	sort.Sort(sort.Reverse(sort.IntSlice(idx)))
	for _, i := range idx {
		st.nodes = slices.Delete(st.nodes, i, i+1)
		st.lists = slices.Delete(st.lists, i, i+1)
	}
}

func (st *mergeState) add(node string, dl decision.List) {
	st.nodes = append(st.nodes, node)
	st.lists = append(st.lists, dl)
}

// branchEnd is a predecessor tagged with the branch it leaves a decision through.
type branchEnd struct {
	node   string
	branch int
}

func orderEnds(ends []branchEnd) []string {
	sort.SliceStable(ends, func(i, j int) bool { return ends[i].branch < ends[j].branch })
	out := make([]string, len(ends))
	for i, e := range ends {
		out[i] = e.node
	}
	return out
}

// merge computes the decision list of bod from the lists on its live incoming
// edges, splicing join nodes for every decision whose branches reconverge.
func (r *run) merge(bod string, prev []string) (decision.List, error) {
	st := &mergeState{bod: bod}
	for _, p := range prev {
		e := graph.Edge{From: p, To: bod}
		dl, ok := r.lists.Get(e)
		if !ok {
			r.missingList(e)
		}
		st.add(p, dl)
	}
	switch len(st.lists) {
	case 0:
		return decision.List{}, nil
	case 1:
		return st.lists[0], nil
	}

	// Flow through a decision that already exits early cannot be nested here.
	for i := len(st.lists) - 1; i >= 0; i-- {
		if st.lists[i].ContainsAny(r.remembered) {
			r.mark(graph.Edge{From: st.nodes[i], To: bod}, EdgeGoto)
			st.remove(i)
		}
	}

	for {
		ok, err := r.fullReconvergence(st)
		if err != nil {
			return decision.List{}, err
		}
		if ok {
			continue
		}
		ok, err = r.partialReconvergence(st)
		if err != nil {
			return decision.List{}, err
		}
		if !ok {
			break
		}
	}

	switch len(st.lists) {
	case 0:
		return decision.List{}, nil
	case 1:
		return st.lists[0], nil
	}
	return r.commonPrefix(st)
}

func (r *run) missingList(e graph.Edge) {
	if r.missing.add(e) {
		r.d.logger.Warn("missing decision list", "edge", e.String())
	}
}

// fullReconvergence joins a set of lists that agree on every decision node and
// cover each branch of the last one exactly once.
func (r *run) fullReconvergence(st *mergeState) (bool, error) {
	for i, li := range st.lists {
		if li.IsEmpty() {
			continue
		}
		same := []int{i}
		for j, lj := range st.lists {
			if j != i && lj.IfNodesEqual(li) {
				same = append(same, j)
			}
		}
		if len(same) < 2 {
			continue
		}
		dnode := li.Last().Node
		if len(same) != len(r.liveNext(dnode)) {
			continue
		}

		pos := li.Len() - 1
		seen := make(map[int]bool, len(same))
		ends := make([]branchEnd, 0, len(same))
		for _, idx := range same {
			b := st.lists[idx].At(pos).Branch
			if seen[b] {
				break
			}
			seen[b] = true
			ends = append(ends, branchEnd{st.nodes[idx], b})
		}
		if len(ends) != len(same) {
			continue
		}

		shorter := li.Drop()
		st.remove(same...)
		r.fireNoNodeSelected()
		id, err := r.join(dnode, orderEnds(ends), st.bod)
		if err != nil {
			return false, err
		}
		r.processed[id] = true
		st.add(id, shorter)
		r.lists.put(graph.Edge{From: id, To: st.bod}, shorter)
		r.fireListsUpdated()
		r.fireStep()
		return true, nil
	}
	return false, nil
}

// partialReconvergence joins a list with one that is exactly one decision
// shorter. The extra decision node of the longer list exits early: it is
// remembered and its other branches are classified as outside-if.
func (r *run) partialReconvergence(st *mergeState) (bool, error) {
	maxLen := 0
	for _, l := range st.lists {
		maxLen = max(maxLen, l.Len())
	}

	for size := maxLen; size > 1; size-- {
		for j, lj := range st.lists {
			if lj.Len() != size {
				continue
			}
			short := lj.Drop()
			for k, lk := range st.lists {
				if j == k || lk.Len() != size-1 || !short.IfNodesEqual(lk) {
					continue
				}

				prevJ, prevK := st.nodes[j], st.nodes[k]
				r.lists.put(graph.Edge{From: prevJ, To: st.bod}, short)

				dJ := short.Last()
				dK := lk.Last()
				exit := lj.Last().Node
				r.remembered[exit] = true

				ends := orderEnds([]branchEnd{{prevJ, dJ.Branch}, {prevK, dK.Branch}})
				shorter := lk.Drop()
				st.remove(j, k)

				r.fireNoNodeSelected()
				id, err := r.join(dK.Node, ends, st.bod)
				if err != nil {
					return false, err
				}
				r.processed[id] = true
				st.add(id, shorter)
				r.lists.put(graph.Edge{From: id, To: st.bod}, shorter)
				r.fireListsUpdated()
				r.fireStep()

				r.truncateExit(prevJ, id, exit)
				r.fireListsUpdated()
				r.fireStep()
				return true, nil
			}
		}
	}
	return false, nil
}

// commonPrefix merges the remaining lists to their longest common prefix of
// decision nodes. Lists reaching past the prefix leave their decisions early.
func (r *run) commonPrefix(st *mergeState) (decision.List, error) {
	var prefix decision.List
	for n := 0; ; n++ {
		var node string
		shared := true
		for i, l := range st.lists {
			if l.Len() <= n {
				shared = false
				break
			}
			d := l.At(n)
			if i == 0 {
				node = d.Node
			} else if d.Node != node {
				shared = false
				break
			}
		}
		if !shared {
			break
		}
		prefix = prefix.Append(st.lists[0].At(n))
	}

	for i, l := range st.lists {
		for j := l.Len() - 1; j >= prefix.Len(); j-- {
			r.truncateExit(st.nodes[i], st.bod, l.At(j).Node)
		}
	}

	target := st.bod
	if !prefix.IsEmpty() {
		pos := prefix.Len() - 1
		ends := make([]branchEnd, len(st.nodes))
		for i, p := range st.nodes {
			ends[i] = branchEnd{p, st.lists[i].At(pos).Branch}
		}
		id, err := r.join(prefix.Last().Node, orderEnds(ends), st.bod)
		if err != nil {
			return decision.List{}, err
		}
		r.processed[id] = true
		r.lists.put(graph.Edge{From: id, To: st.bod}, prefix)
		target = id
	}
	for _, p := range st.nodes {
		r.lists.put(graph.Edge{From: p, To: target}, prefix)
	}
	r.fireListsUpdated()
	r.fireStep()
	return prefix, nil
}

// truncateExit walks backwards from prev -> node until it reaches exit. Lists on
// the way that end in a decision of exit lose it, and the branches of exit that
// do not lead to the walk become outside-if. Loop headers are not crossed.
func (r *run) truncateExit(prev, node, exit string) {
	type frame struct{ prev, node string }

	expanded := make(map[string]bool)
	stack := []frame{{prev, node}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.prev == exit {
			next := r.g.Next(exit)
			inside := slices.Index(next, f.node)
			for b, n := range next {
				if b != inside {
					r.mark(graph.Edge{From: exit, To: n}, EdgeOutsideIf)
				}
			}
			return
		}

		e := graph.Edge{From: f.prev, To: f.node}
		if dl, ok := r.lists.Get(e); ok && !dl.IsEmpty() && dl.Last().Node == exit {
			r.lists.put(e, dl.Drop())
		}

		if expanded[f.prev] {
			continue
		}
		expanded[f.prev] = true
		preds := r.g.Prev(f.prev)
		for i := len(preds) - 1; i >= 0; i-- {
			if !slices.Contains(r.loopContinues, preds[i]) {
				stack = append(stack, frame{preds[i], f.prev})
			}
		}
	}
}
