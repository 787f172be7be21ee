package graph

import (
	"reflect"
	"testing"
)

func idsToInts(g *Graph[int, int], ids []NodeID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		if id == NoNode {
			out[i] = -1
		} else {
			out[i] = int(id)
		}
	}
	return out
}

func TestIDom(t *testing.T) {
	g, _ := buildIntGraph(muchnickAdj)
	idom := IDom(g, 0, false)
	want := []int{0: -1, 1: 0, 2: 1, 3: 2, 4: 2, 5: 4, 6: 4, 7: 4}
	if got := idsToInts(g, idom); !reflect.DeepEqual(want, got) {
		t.Errorf("muchnick: want %v, got %v", want, got)
	}

	g, _ = buildIntGraph(cs252Adj)
	idom = IDom(g, 0, false)
	want = []int{0: -1, 1: 0, 2: 1, 3: 2, 4: 2, 5: 1, 6: 2, 7: 1, 8: 7}
	if got := idsToInts(g, idom); !reflect.DeepEqual(want, got) {
		t.Errorf("cs252: want %v, got %v", want, got)
	}
}

func TestDomFrontier(t *testing.T) {
	g, _ := buildIntGraph(cs252Adj)
	df := DomFrontier(g, 0, false, nil)
	want := [][]int{
		0: {},
		1: {1},
		2: {7},
		3: {6},
		4: {6},
		5: {1, 7},
		6: {7},
		7: {},
		8: {},
	}
	for i, w := range want {
		got := idsToInts(g, df[i])
		if !reflect.DeepEqual(w, got) {
			t.Errorf("node %d: want %v, got %v", i, w, got)
		}
	}
}

func TestBuildDomTree(t *testing.T) {
	g, _ := buildIntGraph(muchnickAdj)
	idom := IDom(g, 0, false)
	tree := BuildDomTree(idom)
	if !tree.Dominates(NodeID(2), NodeID(6)) {
		t.Errorf("expected node 2 to dominate node 6")
	}
	if tree.Dominates(NodeID(3), NodeID(6)) {
		t.Errorf("did not expect node 3 to dominate node 6")
	}
	if got := tree.Parent(NodeID(0)); got != NoNode {
		t.Errorf("root parent: want NoNode, got %v", got)
	}
}

func TestPostDominance(t *testing.T) {
	// Simple diamond: 0 -> {1,2} -> 3. Virtual exit (3) post-dominates
	// everything.
	g := New[int, int]()
	n0, n1, n2, n3 := g.AddNode(0), g.AddNode(1), g.AddNode(2), g.AddNode(3)
	g.AddEdge(n0, n1, 0, 0)
	g.AddEdge(n0, n2, 0, 0)
	g.AddEdge(n1, n3, 0, 0)
	g.AddEdge(n2, n3, 0, 0)

	pdom := IDom(g, n3, true)
	if pdom[n0] != n3 || pdom[n1] != n3 || pdom[n2] != n3 {
		t.Errorf("want every node post-dominated directly by exit, got %v", pdom)
	}
}
