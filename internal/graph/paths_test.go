package graph

import "testing"

func TestEnumeratePaths(t *testing.T) {
	// 0 -> 1 -> 3
	// 0 -> 2 -> 3
	g, ids := buildIntGraph(map[int][]int{
		0: {1, 2},
		1: {3},
		2: {3},
		3: {},
	})
	var paths [][]NodeID
	count, hit := EnumeratePaths(g, ids[0], 100, func(p []NodeID) {
		paths = append(paths, append([]NodeID{}, p...))
	})
	if hit {
		t.Fatalf("did not expect cap to be hit")
	}
	if count != 2 || len(paths) != 2 {
		t.Fatalf("want 2 paths, got %d", count)
	}
}

func TestEnumeratePathsCap(t *testing.T) {
	g, ids := buildIntGraph(map[int][]int{
		0: {1, 2},
		1: {3},
		2: {3},
		3: {},
	})
	count, hit := CountPaths(g, ids[0], 1)
	if !hit {
		t.Fatalf("expected cap to be hit")
	}
	if count != 1 {
		t.Fatalf("want count==max==1, got %d", count)
	}
}

func TestEnumeratePathsMonotone(t *testing.T) {
	// Raising the cap must return a superset (§8 testable property).
	g, ids := buildIntGraph(map[int][]int{
		0: {1, 2},
		1: {3, 4},
		2: {3, 4},
		3: {},
		4: {},
	})
	small, _ := CountPaths(g, ids[0], 1)
	big, _ := CountPaths(g, ids[0], 1000)
	if small > big {
		t.Fatalf("raising the cap must not shrink the result: small=%d big=%d", small, big)
	}
}

func TestEnumerateCycles(t *testing.T) {
	// 0 -> 1 -> 2 -> 0 (one 3-cycle), plus 1 -> 1 self loop.
	g := New[int, int]()
	n0, n1, n2 := g.AddNode(0), g.AddNode(1), g.AddNode(2)
	g.AddEdge(n0, n1, 0, 0)
	g.AddEdge(n1, n2, 0, 0)
	g.AddEdge(n2, n0, 0, 0)
	g.AddEdge(n1, n1, 0, 0)

	count, hit := EnumerateCycles(g, 100, nil, func(cyc []EdgeID) {})
	if hit {
		t.Fatalf("did not expect cap to be hit")
	}
	if count != 2 {
		t.Fatalf("want 2 elementary cycles (the 3-cycle and the self-loop), got %d", count)
	}
}
