package ddg

import (
	"github.com/gonum/floats"

	"github.com/aclements/maqcore/internal/graph"
)

// MaxPaths is the default cap on cycles/paths explored per query,
// matching lcore_ddg.c's DDG_MAX_PATHS.
const MaxPaths = 1000

// RecMII returns a loop DDG's recurrence-constrained minimum initiation
// interval: the maximum, over every elementary cycle built entirely of
// RAW edges, of that cycle's (summed latency / summed distance) ratio
// — tracked separately for min and max latency (get_RecMII). Cycles
// with zero total distance are excluded, since they carry no
// iteration-spanning recurrence to bound. The per-cycle sums and the
// final max-of-ratios reduction go through gonum/floats rather than a
// hand-rolled loop.
func RecMII(g *Graph, maxCycles int) (min, max float64) {
	if maxCycles <= 0 {
		maxCycles = MaxPaths
	}
	rawOnly := func(eid graph.EdgeID) bool {
		return g.Edge(eid).Kind == RAW
	}
	var minRatios, maxRatios []float64
	graph.EnumerateCycles(g, maxCycles, rawOnly, func(cycle []graph.EdgeID) {
		lats := make([]float64, 0, len(cycle))
		dists := make([]float64, 0, len(cycle))
		for _, eid := range cycle {
			e := g.Edge(eid)
			lats = append(lats, float64(e.Latency.Min))
			dists = append(dists, float64(e.Distance))
		}
		sumDist := floats.Sum(dists)
		if sumDist == 0 {
			return
		}
		minRatios = append(minRatios, floats.Sum(lats)/sumDist)

		lats = lats[:0]
		for _, eid := range cycle {
			lats = append(lats, float64(g.Edge(eid).Latency.Max))
		}
		maxRatios = append(maxRatios, floats.Sum(lats)/sumDist)
	})
	if len(minRatios) > 0 {
		min = floats.Max(minRatios)
	}
	if len(maxRatios) > 0 {
		max = floats.Max(maxRatios)
	}
	return min, max
}

// CriticalPath is one best-latency chain through a DDG: its edges in
// traversal order and the summed latency that made it the best one
// found so far.
type CriticalPath struct {
	Edges   []graph.EdgeID
	Latency float64
}

// CriticalPaths returns the best min-latency and best max-latency
// chains found by exploring simple edge-paths from every connected
// component's entry nodes (lcore_ddg_get_critical_paths), walking at
// most maxPaths paths from each entry. A DDG with no edges returns zero
// CriticalPaths.
func CriticalPaths(g *Graph, maxPaths int) (min, max CriticalPath) {
	if maxPaths <= 0 {
		maxPaths = MaxPaths
	}
	seenCC := map[int]bool{}
	haveMin, haveMax := false, false
	for n := 0; n < g.NumNodes(); n++ {
		nid := graph.NodeID(n)
		cc := g.CC(nid)
		if seenCC[cc] {
			continue
		}
		seenCC[cc] = true
		for _, entry := range g.CCEntries(nid) {
			walkEdgePaths(g, entry, maxPaths, func(edges []graph.EdgeID) {
				var sumMin, sumMax float64
				for _, eid := range edges {
					e := g.Edge(eid)
					sumMin += float64(e.Latency.Min)
					sumMax += float64(e.Latency.Max)
				}
				if !haveMin || sumMin > min.Latency {
					haveMin = true
					min = CriticalPath{Edges: append([]graph.EdgeID{}, edges...), Latency: sumMin}
				}
				if !haveMax || sumMax > max.Latency {
					haveMax = true
					max = CriticalPath{Edges: append([]graph.EdgeID{}, edges...), Latency: sumMax}
				}
			})
		}
	}
	return min, max
}

// walkEdgePaths enumerates simple edge-paths from root (tracking node
// visitation the way internal/graph.EnumeratePaths does for node
// paths), stopping at a dead end or at a node already on the path — a
// DDG can contain cycles (that's what RecMII measures), so a path that
// loops back is reported as ending there rather than explored forever.
// Adapted here rather than in internal/graph because a DDG's multiple
// parallel edges between the same two instructions (e.g. a RAW and a
// WAW edge) carry different latencies and must be walked individually,
// which node-granularity path enumeration can't distinguish.
func walkEdgePaths(g *Graph, root graph.NodeID, max int, visit func(edges []graph.EdgeID)) (count int) {
	onPath := map[graph.NodeID]bool{root: true}
	var edges []graph.EdgeID

	report := func() bool {
		cp := make([]graph.EdgeID, len(edges))
		copy(cp, edges)
		visit(cp)
		count++
		return count < max
	}

	var walk func(n graph.NodeID) bool
	walk = func(n graph.NodeID) bool {
		outs := g.Out(n)
		progressed := false
		for _, eid := range outs {
			to := g.To(eid)
			if onPath[to] {
				continue
			}
			progressed = true
			onPath[to] = true
			edges = append(edges, eid)
			cont := walk(to)
			edges = edges[:len(edges)-1]
			onPath[to] = false
			if !cont {
				return false
			}
		}
		if !progressed {
			return report()
		}
		return true
	}
	walk(root)
	return count
}
