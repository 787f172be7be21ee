// Package components implements the connected-component finalizer
// (C5), grounded on original_source/src/analyze/lcore_cc.c: splitting
// a function's CFG into maximal weakly connected subgraphs once
// back-edges are set aside, so that multi-entry functions (patched
// code, exception handlers, switch-table fallthroughs) get one CC per
// natural single-entry region instead of one CC for the whole
// function.
package components

import (
	"sort"

	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/graph"
)

// Compute builds fn.Components, assuming fn's CFG is already built
// (StageFlow done). Re-running Compute on a function that already has
// components recomputes them, for callers that edit the CFG between
// runs (the caller is responsible for noticing they need to).
func Compute(fn *core.Function) {
	backEdge := findBackEdges(fn)

	entries := ccEntries(fn, backEdge)
	// The function's declared entry always leads, per §4.5 "place the
	// function's main entry first".
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i] == fn.Entry {
			return true
		}
		if entries[j] == fn.Entry {
			return false
		}
		return entries[i].Start < entries[j].Start
	})

	owner := map[*core.Block]*core.Component{}
	var comps []*core.Component

	for _, e := range entries {
		if owner[e] != nil {
			// Already swept in from an earlier entry's traversal;
			// record the merge (§4.5: "the current CC's head is
			// added as an additional entry of the other CC").
			addEntry(owner[e], e)
			continue
		}
		reached := undirectedReach(fn, e, backEdge)

		// Find every component an earlier entry's traversal already
		// claimed among the blocks this traversal reaches; §4.5
		// treats this as the current CC merging into the other one
		// (or ones, if more than one is touched), not the reverse.
		var touched []*core.Component
		seenComp := map[*core.Component]bool{}
		for b := range reached {
			if existing := owner[b]; existing != nil && !seenComp[existing] {
				seenComp[existing] = true
				touched = append(touched, existing)
			}
		}
		// reached is a map, so the order touched was built in is
		// randomized per run; pick which touched component survives
		// deterministically instead — the one already holding
		// fn.Entry if it's among them, else the earliest-created one —
		// so which component lands in comps[0] never depends on that
		// order (§4.5 "place the function's main entry first").
		survivor := pickSurvivor(touched, comps, fn.Entry, owner)
		for _, c := range touched {
			if c != survivor {
				mergeInto(survivor, c, owner)
			}
		}
		if survivor == nil {
			survivor = &core.Component{}
			comps = append(comps, survivor)
		}
		addEntry(survivor, e)
		for b := range reached {
			owner[b] = survivor
		}
	}

	var final []*core.Component
	for _, c := range comps {
		if len(c.Entries) == 0 {
			continue // absorbed into another component, §4.5 "queued for removal"
		}
		sort.Slice(c.Entries, func(i, j int) bool { return c.Entries[i].Start < c.Entries[j].Start })
		final = append(final, c)
	}
	fn.Components = final
}

// pickSurvivor chooses which of touched absorbs the others: the
// component that already holds fn's declared entry, if any of them
// does, else the one created earliest (lowest index in comps). nil if
// touched is empty.
func pickSurvivor(touched []*core.Component, comps []*core.Component, entry *core.Block, owner map[*core.Block]*core.Component) *core.Component {
	if len(touched) == 0 {
		return nil
	}
	if entry != nil {
		if ec := owner[entry]; ec != nil {
			for _, c := range touched {
				if c == ec {
					return ec
				}
			}
		}
	}
	best, bestIdx := touched[0], compIndex(comps, touched[0])
	for _, c := range touched[1:] {
		if idx := compIndex(comps, c); idx < bestIdx {
			best, bestIdx = c, idx
		}
	}
	return best
}

func compIndex(comps []*core.Component, c *core.Component) int {
	for i, x := range comps {
		if x == c {
			return i
		}
	}
	return len(comps)
}

// mergeInto folds absorbed's entries into survivor and repoints every
// block currently owned by absorbed, then clears absorbed so it is
// dropped from the final component list (§4.5 "queued for removal").
func mergeInto(survivor, absorbed *core.Component, owner map[*core.Block]*core.Component) {
	if survivor == absorbed {
		return
	}
	for _, e := range absorbed.Entries {
		addEntry(survivor, e)
	}
	for b, c := range owner {
		if c == absorbed {
			owner[b] = survivor
		}
	}
	absorbed.Entries = nil
}

func addEntry(c *core.Component, b *core.Block) {
	for _, x := range c.Entries {
		if x == b {
			return
		}
	}
	c.Entries = append(c.Entries, b)
}

// findBackEdges marks every CFG edge that closes a cycle in a DFS
// from the function's entry: an edge whose target is an ancestor
// still on the DFS stack. This is the generic notion of "back-edge of
// a loop or of the function's internal hierarchy" §4.5 relies on,
// computed locally rather than waiting on the loop analyzer (C6),
// which the data-flow ordering in §2 runs strictly after C5.
func findBackEdges(fn *core.Function) map[graph.EdgeID]bool {
	back := map[graph.EdgeID]bool{}
	if fn.Entry == nil {
		return back
	}
	onStack := map[graph.NodeID]bool{}
	visited := map[graph.NodeID]bool{}

	var walk func(n graph.NodeID)
	walk = func(n graph.NodeID) {
		visited[n] = true
		onStack[n] = true
		for _, eid := range fn.CFG.Out(n) {
			to := fn.CFG.To(eid)
			if onStack[to] {
				back[eid] = true
				continue
			}
			if !visited[to] {
				walk(to)
			}
		}
		onStack[n] = false
	}
	walk(fn.Entry.Node())
	// Blocks unreachable from Entry (e.g. a stolen trampoline with no
	// path from the main entry) still need a pass so their internal
	// cycles are marked too.
	for _, b := range fn.Blocks {
		if b.Virtual || b.Padding {
			continue
		}
		if !visited[b.Node()] {
			walk(b.Node())
		}
	}
	return back
}

// ccEntries returns every block with no incoming non-back edge from a
// non-virtual, non-padding predecessor (§4.5).
func ccEntries(fn *core.Function, back map[graph.EdgeID]bool) []*core.Block {
	var out []*core.Block
	for _, b := range fn.Blocks {
		if b.Virtual || b.Padding {
			continue
		}
		if isEntry(fn, b, back) {
			out = append(out, b)
		}
	}
	return out
}

func isEntry(fn *core.Function, b *core.Block, back map[graph.EdgeID]bool) bool {
	for _, eid := range b.Preds() {
		if back[eid] {
			continue
		}
		from := fn.CFG.Node(fn.CFG.From(eid))
		if from.Virtual || from.Padding {
			continue
		}
		return false
	}
	return true
}

// undirectedReach is the combined successor+predecessor DFS §4.5
// calls for: all non-virtual, non-padding blocks reachable from root
// by following either CFG direction, never crossing a back-edge.
func undirectedReach(fn *core.Function, root *core.Block, back map[graph.EdgeID]bool) map[*core.Block]bool {
	reached := map[*core.Block]bool{}
	var walk func(b *core.Block)
	walk = func(b *core.Block) {
		if reached[b] {
			return
		}
		reached[b] = true
		for _, eid := range b.Succs() {
			if back[eid] {
				continue
			}
			to := fn.CFG.Node(fn.CFG.To(eid))
			if to.Virtual || to.Padding {
				continue
			}
			walk(to)
		}
		for _, eid := range b.Preds() {
			if back[eid] {
				continue
			}
			from := fn.CFG.Node(fn.CFG.From(eid))
			if from.Virtual || from.Padding {
				continue
			}
			walk(from)
		}
	}
	walk(root)
	return reached
}
