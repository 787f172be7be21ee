package graph

// EnumeratePaths enumerates all simple (node-disjoint) paths starting
// at root, in successor order, calling visit with each complete path.
// It reports at most max paths and stops at the first complete path
// beyond them; Hit reports whether such a path exists, that is,
// whether the cap stopped enumeration before exhaustion, which callers
// must use to distinguish "capped" from "exhaustively computed" (§4.7,
// §9: "a signal distinct from computed but empty").
func EnumeratePaths[N, E any](g *Graph[N, E], root NodeID, max int, visit func(path []NodeID)) (count int, hit bool) {
	onPath := map[NodeID]bool{}
	var path []NodeID

	var walk func(n NodeID) bool // returns false to stop entirely
	walk = func(n NodeID) bool {
		path = append(path, n)
		onPath[n] = true

		succs := g.Out(n)
		if len(succs) == 0 {
			if count >= max {
				hit = true
			} else {
				cp := make([]NodeID, len(path))
				copy(cp, path)
				visit(cp)
				count++
			}
		} else {
			for _, eid := range succs {
				to := g.To(eid)
				if onPath[to] {
					continue // back-edge: would not be a simple path
				}
				if !walk(to) {
					break
				}
			}
		}

		onPath[n] = false
		path = path[:len(path)-1]
		return !hit
	}
	walk(root)
	return count, hit
}

// CountPaths counts simple paths from root the same way
// EnumeratePaths does, without materializing them (§4.7: "counting
// uses the same node exploration but without materializing paths").
func CountPaths[N, E any](g *Graph[N, E], root NodeID, max int) (count int, hit bool) {
	return EnumeratePaths(g, root, max, func([]NodeID) {})
}

// EdgeFilter decides whether an edge participates in cycle
// enumeration; nil means "all edges".
type EdgeFilter func(e EdgeID) bool

// EnumerateCycles enumerates elementary (simple) cycles of g, stopping
// once max have been reported. filter, if non-nil, restricts which
// edges may be used (e.g. RAW-only for RecMII, §4.10).
func EnumerateCycles[N, E any](g *Graph[N, E], max int, filter EdgeFilter, visit func(cycle []EdgeID)) (count int, hit bool) {
	for start := 0; start < g.NumNodes() && count < max; start++ {
		root := NodeID(start)
		onPath := map[NodeID]bool{root: true}
		var edgePath []EdgeID

		var walk func(n NodeID) bool
		walk = func(n NodeID) bool {
			for _, eid := range g.Out(n) {
				if filter != nil && !filter(eid) {
					continue
				}
				to := g.To(eid)
				if int(to) < start {
					continue // already fully enumerated from a smaller root
				}
				if to == root {
					cyc := append(append([]EdgeID{}, edgePath...), eid)
					visit(cyc)
					count++
					if count >= max {
						hit = true
						return false
					}
					continue
				}
				if onPath[to] {
					continue
				}
				onPath[to] = true
				edgePath = append(edgePath, eid)
				if !walk(to) {
					return false
				}
				edgePath = edgePath[:len(edgePath)-1]
				onPath[to] = false
			}
			return true
		}
		if !walk(root) {
			break
		}
	}
	return count, hit
}
