// Package graph is the directed-multigraph substrate (C1): nodes and
// edges carry caller payloads and are addressed by handle, following
// the §9 design note that intrusive pointers become arena-per-owner
// handles. The graph maintains an incremental connected-component
// index (node→CC, edge→CC, entry-node set per CC) that every public
// reader can rely on being consistent after every Add call.
//
// This generalizes the teacher's obj/internal/graph, which represented
// nodes as dense ints with no payload and no incremental CC index;
// here nodes and edges carry arbitrary payloads (the teacher's
// BasicBlock/Edge pairing is folded into the graph itself) and the CC
// index is new, grounded on original_source/src/analyze/lcore_cc.c.
package graph

// NodeID and EdgeID are arena handles: stable for the life of the
// graph, dense from 0, never reused after Remove.
type NodeID int
type EdgeID int

const NoNode NodeID = -1

type node[N any] struct {
	payload N
	out     []EdgeID
	in      []EdgeID
	cc      int
	removed bool
}

type edge[E any] struct {
	payload  E
	from, to NodeID
	distance int
	cc       int
	removed  bool
}

// Graph is a directed multigraph over nodes of payload type N and
// edges of payload type E. The zero value is not usable; use New.
type Graph[N any, E any] struct {
	nodes []node[N]
	edges []edge[E]
	ccs   []*component
}

// component is one connected-component bucket. Removed/merged
// components are left as nil entries in Graph.ccs so CC ids stay
// stable handles, matching the NodeID/EdgeID handle discipline.
type component struct {
	nodes   map[NodeID]bool
	edges   map[EdgeID]bool
	entries map[NodeID]bool
}

func newComponent() *component {
	return &component{nodes: map[NodeID]bool{}, edges: map[EdgeID]bool{}, entries: map[NodeID]bool{}}
}

func New[N any, E any]() *Graph[N, E] {
	return &Graph[N, E]{}
}

func (g *Graph[N, E]) NumNodes() int { return len(g.nodes) }
func (g *Graph[N, E]) NumEdges() int { return len(g.edges) }

func (g *Graph[N, E]) Node(id NodeID) N { return g.nodes[id].payload }
func (g *Graph[N, E]) Edge(id EdgeID) E { return g.edges[id].payload }

func (g *Graph[N, E]) SetNode(id NodeID, payload N) { g.nodes[id].payload = payload }
func (g *Graph[N, E]) SetEdge(id EdgeID, payload E) { g.edges[id].payload = payload }

func (g *Graph[N, E]) From(id EdgeID) NodeID { return g.edges[id].from }
func (g *Graph[N, E]) To(id EdgeID) NodeID   { return g.edges[id].to }
func (g *Graph[N, E]) Distance(id EdgeID) int { return g.edges[id].distance }

func (g *Graph[N, E]) Out(n NodeID) []EdgeID { return g.nodes[n].out }
func (g *Graph[N, E]) In(n NodeID) []EdgeID  { return g.nodes[n].in }

// AddNode adds a node with the given payload and its own singleton CC,
// with itself as the sole entry. O(1).
func (g *Graph[N, E]) AddNode(payload N) NodeID {
	id := NodeID(len(g.nodes))
	cc := newComponent()
	cc.nodes[id] = true
	cc.entries[id] = true
	ccID := len(g.ccs)
	g.ccs = append(g.ccs, cc)
	g.nodes = append(g.nodes, node[N]{payload: payload, cc: ccID})
	return id
}

// AddEdge adds a directed edge from→to. distance distinguishes
// same-iteration (0) from previous-iteration (1) dependencies for DDG
// edges (§3); CFG/CG callers always pass 0. Self-loops and parallel
// edges are permitted. O(1) amortized, except for the CC merge below
// which is O(size of smaller CC).
func (g *Graph[N, E]) AddEdge(from, to NodeID, payload E, distance int) EdgeID {
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, edge[E]{payload: payload, from: from, to: to, distance: distance})
	g.nodes[from].out = append(g.nodes[from].out, id)
	g.nodes[to].in = append(g.nodes[to].in, id)

	g.mergeCC(from, to, id, distance)
	return id
}

// RemoveEdge detaches e from both endpoint lists. The payload is not
// freed by the graph (the caller owns it). The CC index is recomputed
// eagerly on every removal, which keeps the Graph type simple at the
// cost of a full rebuild per removed edge.
func (g *Graph[N, E]) RemoveEdge(id EdgeID) {
	e := &g.edges[id]
	if e.removed {
		return
	}
	e.removed = true
	g.nodes[e.from].out = removeID(g.nodes[e.from].out, id)
	g.nodes[e.to].in = removeID(g.nodes[e.to].in, id)
	g.rebuildCCs()
}

func removeID(s []EdgeID, id EdgeID) []EdgeID {
	for i, x := range s {
		if x == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// CC returns the connected-component id containing n.
func (g *Graph[N, E]) CC(n NodeID) int { return g.nodes[n].cc }

// CCEntries returns the entry nodes of the CC containing n: nodes
// with no incoming intra-CC edge of distance 0 (§4.1). Order is
// unspecified; callers needing the address-order tie-break (§9) sort
// by their own node ordering.
func (g *Graph[N, E]) CCEntries(n NodeID) []NodeID {
	cc := g.ccs[g.nodes[n].cc]
	out := make([]NodeID, 0, len(cc.entries))
	for id := range cc.entries {
		out = append(out, id)
	}
	return out
}

// CCNodes returns all nodes in n's connected component.
func (g *Graph[N, E]) CCNodes(n NodeID) []NodeID {
	cc := g.ccs[g.nodes[n].cc]
	out := make([]NodeID, 0, len(cc.nodes))
	for id := range cc.nodes {
		out = append(out, id)
	}
	return out
}

// mergeCC updates the CC index after adding edge id from→to. If an
// edge of distance 0 lands on `to`, `to` stops being an entry of its
// CC (§4.1). Adding an edge across two different CCs merges them; the
// surviving (larger) CC inherits both entry sets.
func (g *Graph[N, E]) mergeCC(from, to NodeID, id EdgeID, distance int) {
	fromCC, toCC := g.nodes[from].cc, g.nodes[to].cc

	if fromCC == toCC {
		g.ccs[fromCC].edges[id] = true
		if distance == 0 {
			delete(g.ccs[fromCC].entries, to)
		}
		return
	}

	// Merge toCC into fromCC (arbitrary choice of survivor; keep the
	// bigger one to bound total merge work, as a disjoint-set union
	// by size would).
	survivor, absorbed := fromCC, toCC
	if len(g.ccs[toCC].nodes) > len(g.ccs[fromCC].nodes) {
		survivor, absorbed = toCC, fromCC
	}

	sc, ac := g.ccs[survivor], g.ccs[absorbed]
	for n := range ac.nodes {
		sc.nodes[n] = true
		g.nodes[n].cc = survivor
	}
	for e := range ac.edges {
		sc.edges[e] = true
		g.edges[e].cc = survivor
	}
	for n := range ac.entries {
		sc.entries[n] = true
	}
	g.ccs[absorbed] = nil

	sc.edges[id] = true
	if distance == 0 {
		delete(sc.entries, to)
	}
}

// rebuildCCs recomputes the CC index from scratch. Used after edge
// removal, where incremental bookkeeping (did removing this edge
// split a CC?) is not worth the complexity for the rare callers that
// remove edges.
func (g *Graph[N, E]) rebuildCCs() {
	g.ccs = nil
	seen := make([]bool, len(g.nodes))
	for start := range g.nodes {
		if seen[start] || g.nodes[start].removed {
			continue
		}
		cc := newComponent()
		ccID := len(g.ccs)
		g.ccs = append(g.ccs, cc)

		stack := []NodeID{NodeID(start)}
		seen[start] = true
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cc.nodes[n] = true
			g.nodes[n].cc = ccID
			hasIncoming0 := false
			for _, eid := range g.nodes[n].in {
				e := &g.edges[eid]
				if e.removed {
					continue
				}
				cc.edges[eid] = true
				if e.distance == 0 {
					hasIncoming0 = true
				}
			}
			if !hasIncoming0 {
				cc.entries[n] = true
			}
			for _, eid := range g.nodes[n].out {
				e := &g.edges[eid]
				if e.removed {
					continue
				}
				cc.edges[eid] = true
				if !seen[e.to] {
					seen[e.to] = true
					stack = append(stack, e.to)
				}
			}
			for _, eid := range g.nodes[n].in {
				e := &g.edges[eid]
				if e.removed {
					continue
				}
				if !seen[e.from] {
					seen[e.from] = true
					stack = append(stack, e.from)
				}
			}
		}
	}
}
