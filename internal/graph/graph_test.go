package graph

// buildIntGraph builds a Graph[int,int] whose node payloads are their
// own index, from an adjacency list indexed by node number. This
// mirrors the teacher's IntGraph fixture shape in
// obj/internal/graph/graph_test.go, adapted to handle-addressed Graph
// values.
func buildIntGraph(adj map[int][]int) (*Graph[int, int], []NodeID) {
	g := New[int, int]()
	ids := make([]NodeID, len(adj))
	for i := 0; i < len(adj); i++ {
		ids[i] = g.AddNode(i)
	}
	for i, outs := range adj {
		for _, o := range outs {
			g.AddEdge(ids[i], ids[o], 0, 0)
		}
	}
	return g, ids
}

// Example graph from Muchnick, "Advanced Compiler Design &
// Implementation", figure 8.21.
var muchnickAdj = map[int][]int{
	0: {1},
	1: {2},
	2: {3, 4},
	3: {2},
	4: {5, 6},
	5: {7},
	6: {7},
	7: {},
}

// Example graph from
// https://www.seas.harvard.edu/courses/cs252/2011sp/slides/Lec04-SSA.pdf
// slide 24.
var cs252Adj = map[int][]int{
	0: {1},
	1: {2, 5},
	2: {3, 4},
	3: {6},
	4: {6},
	5: {1, 7},
	6: {7},
	7: {8},
	8: {},
}
