// Package path implements acyclic path enumeration (C7) over a
// function's or a loop's CFG, grounded on internal/graph's
// EnumeratePaths/CountPaths (themselves modeled on the teacher's
// obj/internal/graph traversal helpers, generalized with a cap and a
// capped/computed distinction per §9's "a signal distinct from
// computed but empty").
package path

import (
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/graph"
)

// MaxPaths is the default enumeration cap (§4.7).
const MaxPaths = 100000

// ForFunction enumerates every simple path through fn's CFG starting
// at its entry, storing the result on fn.Paths. A function with no
// entry, no blocks, or more than one component (multiple entries) gets
// a fresh empty result instead of an error (§8 "empty input" /
// "multi-entry object"). max <= 0 uses MaxPaths.
func ForFunction(fn *core.Function, max int) {
	if max <= 0 {
		max = MaxPaths
	}
	fn.Paths = nil
	fn.PathsCapped = false
	fn.PathsComputed = true

	if fn.CFG == nil || fn.Entry == nil || len(fn.Components) > 1 {
		return
	}
	computePaths(fn.CFG, fn.Entry.Node(), max, &fn.Paths, &fn.PathsCapped)
}

// ForLoop enumerates every simple path through l's body starting at
// its entry, storing the result on l.Paths. Per §4.7, this runs over
// a temporary subgraph: every edge leaving one of l's exit blocks, and
// every edge entering l's entry from outside the loop, is removed for
// the duration of the enumeration and restored afterward. A loop with
// more than one entry (irreducible or multi-entry) gets a fresh empty
// result. max <= 0 uses MaxPaths.
func ForLoop(l *core.Loop, max int) {
	if max <= 0 {
		max = MaxPaths
	}
	l.Paths = nil
	l.PathsCapped = false
	l.PathsComputed = true

	if len(l.Entries) != 1 || l.Func == nil || l.Func.CFG == nil {
		return
	}
	entry := l.Entries[0]
	g := l.Func.CFG

	inLoop := make(map[*core.Block]bool, len(l.Blocks))
	for _, b := range l.Blocks {
		inLoop[b] = true
	}

	var removed []savedEdge
	for _, exit := range l.Exits {
		for _, eid := range snapshot(g.Out(exit.Node())) {
			removed = append(removed, saveEdge(g, eid))
			g.RemoveEdge(eid)
		}
	}
	for _, eid := range snapshot(g.In(entry.Node())) {
		from := g.Node(g.From(eid))
		if inLoop[from] {
			continue
		}
		removed = append(removed, saveEdge(g, eid))
		g.RemoveEdge(eid)
	}

	computePaths(g, entry.Node(), max, &l.Paths, &l.PathsCapped)

	for _, e := range removed {
		g.AddEdge(e.from, e.to, e.payload, e.distance)
	}
}

type savedEdge struct {
	from, to graph.NodeID
	payload  core.CFGEdge
	distance int
}

func saveEdge(g *graph.Graph[*core.Block, core.CFGEdge], eid graph.EdgeID) savedEdge {
	return savedEdge{g.From(eid), g.To(eid), g.Edge(eid), g.Distance(eid)}
}

func snapshot(ids []graph.EdgeID) []graph.EdgeID {
	return append([]graph.EdgeID{}, ids...)
}

// computePaths counts first (§4.7: "counting uses the same node
// exploration but without materializing paths") so a cap hit never
// stores a partial result.
func computePaths(g *graph.Graph[*core.Block, core.CFGEdge], root graph.NodeID, max int, dst *[][]*core.Block, capped *bool) {
	if _, hit := graph.CountPaths(g, root, max); hit {
		*capped = true
		return
	}
	var paths [][]*core.Block
	graph.EnumeratePaths(g, root, max, func(p []graph.NodeID) {
		blocks := make([]*core.Block, len(p))
		for i, id := range p {
			blocks[i] = g.Node(id)
		}
		paths = append(paths, blocks)
	})
	*dst = paths
}
