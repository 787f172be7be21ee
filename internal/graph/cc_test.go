package graph

import "testing"

func TestConnectedComponentMerge(t *testing.T) {
	// Two entries A, B with a shared successor C (§8 scenario 6).
	g := New[int, int]()
	a, b, c := g.AddNode(0), g.AddNode(1), g.AddNode(2)
	g.AddEdge(a, c, 0, 0)
	if g.CC(a) == g.CC(b) {
		t.Fatalf("a and b should start in different CCs")
	}
	g.AddEdge(b, c, 0, 0)

	if g.CC(a) != g.CC(b) || g.CC(b) != g.CC(c) {
		t.Fatalf("expected a, b, c to share one CC after the merge")
	}
	entries := g.CCEntries(a)
	if len(entries) != 2 {
		t.Fatalf("want 2 entries (a and b), got %d: %v", len(entries), entries)
	}
}

func TestConnectedComponentEntryRemoval(t *testing.T) {
	g := New[int, int]()
	a, b := g.AddNode(0), g.AddNode(1)
	entries := g.CCEntries(a)
	if len(entries) != 1 || entries[0] != a {
		t.Fatalf("singleton node should be its own entry")
	}
	g.AddEdge(a, b, 0, 0)
	entries = g.CCEntries(a)
	if len(entries) != 1 || entries[0] != a {
		t.Fatalf("b should no longer be an entry after a distance-0 edge lands on it: %v", entries)
	}
}

func TestConnectedComponentDistance1NotEntry(t *testing.T) {
	// A distance-1 (previous-iteration) edge must not strip entry
	// status, unlike a distance-0 edge (§4.1).
	g := New[int, int]()
	a, b := g.AddNode(0), g.AddNode(1)
	g.AddEdge(a, b, 0, 1)
	entries := g.CCEntries(a)
	if len(entries) != 2 {
		t.Fatalf("distance-1 edge must not remove b's entry status, got entries=%v", entries)
	}
}
