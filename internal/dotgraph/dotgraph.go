// Package dotgraph renders a graph.Graph as Graphviz dot, implementing
// §6's "Graph dump format". Adapted from the teacher's
// obj/internal/graph/dot.go (Dot, Fprint, dotString), generalized from
// that file's plain adjacency-list Graph to this module's generic,
// handle-addressed graph.Graph[N, E] and given label functions instead
// of bare node numbers, since this module's nodes (blocks, loops,
// instructions) and edges (CFG origins, DDG hazards) carry real
// domain meaning the teacher's int-keyed graph didn't have.
package dotgraph

import (
	"fmt"
	"io"
	"os"

	"github.com/aclements/maqcore/internal/graph"
)

// Writer holds the options for rendering one graph.Graph[N, E] as dot.
type Writer[N, E any] struct {
	// Name is the dot graph's name; left blank renders "g".
	Name string

	// NodeLabel renders a node's label. If nil, nodes are labeled with
	// their bare node index, the teacher's default.
	NodeLabel func(n N) string

	// EdgeLabel renders an edge's label. If nil, edges are unlabeled.
	EdgeLabel func(e E) string
}

// Print writes g's dot form to os.Stdout.
func (d Writer[N, E]) Print(g *graph.Graph[N, E]) error {
	return d.Fprint(g, os.Stdout)
}

// Fprint writes g's dot form to w: one "nN [label=...];" per node, one
// "nA -> nB [label=...];" per edge.
func (d Writer[N, E]) Fprint(g *graph.Graph[N, E], w io.Writer) error {
	name := d.Name
	if name == "" {
		name = "g"
	}
	if _, err := fmt.Fprintf(w, "digraph %s {\n", dotString(name)); err != nil {
		return err
	}

	for i := 0; i < g.NumNodes(); i++ {
		id := graph.NodeID(i)
		label := fmt.Sprintf("%d", i)
		if d.NodeLabel != nil {
			label = d.NodeLabel(g.Node(id))
		}
		if _, err := fmt.Fprintf(w, "n%d [label=%s];\n", i, dotString(label)); err != nil {
			return err
		}
	}

	for i := 0; i < g.NumEdges(); i++ {
		id := graph.EdgeID(i)
		line := fmt.Sprintf("n%d -> n%d", g.From(id), g.To(id))
		if d.EdgeLabel != nil {
			line += fmt.Sprintf(" [label=%s]", dotString(d.EdgeLabel(g.Edge(id))))
		}
		if _, err := fmt.Fprintf(w, "%s;\n", line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "}\n")
	return err
}

// dotString returns s as a quoted dot string (teacher's dotString,
// unchanged: the escaping rules are Graphviz's, not this module's).
func dotString(s string) string {
	buf := []byte{'"'}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\\', '"', '{', '}', '<', '>', '|':
			buf = append(buf, '\\', s[i])
		default:
			buf = append(buf, s[i])
		}
	}
	buf = append(buf, '"')
	return string(buf)
}
