package graph

// This file adapts the teacher's obj/internal/graph/dom.go (itself the
// "engineered algorithm" of Cooper, Harvey and Kennedy, "A Simple,
// Fast Dominance Algorithm", 2001) to handle-addressed Graph values,
// and adds a reverse mode so the same routine computes both the
// dominance tree (successors) and the post-dominance tree
// (predecessors) per §4.4.

func succs[N, E any](g *Graph[N, E], n NodeID, reverse bool) []NodeID {
	var ids []EdgeID
	if reverse {
		ids = g.In(n)
	} else {
		ids = g.Out(n)
	}
	out := make([]NodeID, len(ids))
	for i, id := range ids {
		if reverse {
			out[i] = g.From(id)
		} else {
			out[i] = g.To(id)
		}
	}
	return out
}

func preds[N, E any](g *Graph[N, E], n NodeID, reverse bool) []NodeID {
	return succs(g, n, !reverse)
}

// postOrderFrom is PostOrder but walking successors in the direction
// selected by reverse, restricted to nodes reachable from root within
// the given allowed set (nil means "all nodes").
func postOrderFrom[N, E any](g *Graph[N, E], root NodeID, reverse bool, allowed map[NodeID]bool) []NodeID {
	var order []NodeID
	seen := map[NodeID]bool{}
	var visit func(n NodeID)
	visit = func(n NodeID) {
		if seen[n] || (allowed != nil && !allowed[n]) {
			return
		}
		seen[n] = true
		for _, s := range succs(g, n, reverse) {
			visit(s)
		}
		order = append(order, n)
	}
	visit(root)
	return order
}

// IDom returns the immediate dominator of each node reachable from
// root, or NoNode for unreachable nodes and for root itself. Set
// reverse to true to compute post-dominators (successors become
// predecessors): root must then be the virtual exit node (§4.4).
func IDom[N, E any](g *Graph[N, E], root NodeID, reverse bool) []NodeID {
	po := postOrderFrom(g, root, reverse, nil)

	poNum := make(map[NodeID]int, len(po))
	for i, n := range po {
		poNum[n] = i
	}
	rpo := Reverse(append([]NodeID{}, po...))

	idom := make([]NodeID, g.NumNodes())
	for i := range idom {
		idom[i] = NoNode
	}
	idom[root] = root

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}
			newIdom := NoNode
			for _, p := range preds(g, b, reverse) {
				if _, ok := poNum[p]; !ok {
					continue // p unreachable from root
				}
				if idom[p] == NoNode {
					continue
				}
				if newIdom == NoNode {
					newIdom = p
					continue
				}
				newIdom = intersectDom(idom, poNum, p, newIdom)
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	idom[root] = NoNode
	return idom
}

func intersectDom(idom []NodeID, poNum map[NodeID]int, b1, b2 NodeID) NodeID {
	for b1 != b2 {
		for poNum[b1] < poNum[b2] {
			b1 = idom[b1]
		}
		for poNum[b2] < poNum[b1] {
			b2 = idom[b2]
		}
	}
	return b1
}

// DomFrontier returns DF(X) for every node, per the §4.9 definition
// (DF_local ∪ DF_up, computed here directly from idom the way Cooper,
// Harvey & Kennedy derive it rather than as two separate passes).
// idom may be nil, in which case IDom(g, root, reverse) is computed.
func DomFrontier[N, E any](g *Graph[N, E], root NodeID, reverse bool, idom []NodeID) [][]NodeID {
	if idom == nil {
		idom = IDom(g, root, reverse)
	}

	df := make([][]NodeID, g.NumNodes())
	for b := 0; b < g.NumNodes(); b++ {
		bdom := idom[b]
		ps := preds(g, NodeID(b), reverse)
		if len(ps) < 2 {
			continue
		}
		for _, pred := range ps {
			runner := pred
			for runner != bdom {
				found := false
				for _, rdf := range df[runner] {
					if rdf == NodeID(b) {
						found = true
						break
					}
				}
				if !found {
					df[runner] = append(df[runner], NodeID(b))
				}
				if idom[runner] == NoNode {
					break
				}
				runner = idom[runner]
			}
		}
	}
	for i := range df {
		if df[i] == nil {
			df[i] = []NodeID{}
		}
	}
	return df
}

// DomTree is a dominator (or post-dominator) tree materialized from
// idom: each block's parent is its immediate (post-)dominator (§4.4).
type DomTree struct {
	idom     []NodeID
	children [][]NodeID
}

func BuildDomTree(idom []NodeID) *DomTree {
	children := make([][]NodeID, len(idom))
	for node, parent := range idom {
		if parent != NoNode {
			children[parent] = append(children[parent], NodeID(node))
		}
	}
	return &DomTree{idom, children}
}

func (t *DomTree) Parent(n NodeID) NodeID    { return t.idom[n] }
func (t *DomTree) Children(n NodeID) []NodeID { return t.children[n] }
func (t *DomTree) NumNodes() int              { return len(t.idom) }

// Dominates reports whether a dominates b (reflexively).
func (t *DomTree) Dominates(a, b NodeID) bool {
	for n := b; n != NoNode; n = t.idom[n] {
		if n == a {
			return true
		}
	}
	return false
}
