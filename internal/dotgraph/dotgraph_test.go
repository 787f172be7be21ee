package dotgraph

import (
	"strings"
	"testing"

	"github.com/aclements/maqcore/internal/graph"
)

func TestFprintRendersNodesAndEdges(t *testing.T) {
	g := graph.New[string, int]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, 44, 0)

	w := Writer[string, int]{
		Name:      "example",
		NodeLabel: func(n string) string { return n },
		EdgeLabel: func(e int) string { return strings.Repeat("x", e%3) },
	}
	var buf strings.Builder
	if err := w.Fprint(g, &buf); err != nil {
		t.Fatalf("Fprint: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`digraph "example" {`,
		`n0 [label="a"];`,
		`n1 [label="b"];`,
		`n0 -> n1 [label="xx"];`,
		"}\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q; got:\n%s", want, out)
		}
	}
}

func TestFprintDefaultsToBareIndexAndNoEdgeLabel(t *testing.T) {
	g := graph.New[string, int]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, 0, 0)

	var buf strings.Builder
	if err := (Writer[string, int]{}).Fprint(g, &buf); err != nil {
		t.Fatalf("Fprint: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `n0 [label="0"];`) {
		t.Errorf("default node label not the bare index; got:\n%s", out)
	}
	if !strings.Contains(out, "n0 -> n1;\n") {
		t.Errorf("unlabeled edge rendered with a label; got:\n%s", out)
	}
}

func TestDotStringEscaping(t *testing.T) {
	got := dotString("a\nb\\c\"d{e}f<g>h|i")
	want := `"a\nb\\c\"d\{e\}f\<g\>h\|i"`
	if got != want {
		t.Errorf("dotString escaping = %q, want %q", got, want)
	}
}
