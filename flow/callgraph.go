package flow

import (
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/graph"
)

// CGEdge is the payload of a call-graph edge: always empty, since the
// call graph records only "who calls whom", not a specific call site
// (a function may call another from many sites).
type CGEdge struct{}

const cgCacheKind = "callgraph"

// CallGraph returns the program-wide call graph attached to f,
// creating it empty if this is the first reference. It is cached on
// the File rather than carried as a File field so that flow stays the
// only package that constructs it while any package can read it.
func CallGraph(f *core.File) *graph.Graph[*core.Function, CGEdge] {
	if cg, ok := core.Cache[*graph.Graph[*core.Function, CGEdge]](f, f, cgCacheKind); ok {
		return cg
	}
	cg := graph.New[*core.Function, CGEdge]()
	core.SetCache(f, f, cgCacheKind, cg)
	return cg
}

func addCGEdge(f *core.File, from, to *core.Function) {
	cg := CallGraph(f)
	ensureCGNode(cg, from)
	ensureCGNode(cg, to)
	cg.AddEdge(from.CGNode, to.CGNode, CGEdge{}, 0)
}

func ensureCGNode(cg *graph.Graph[*core.Function, CGEdge], fn *core.Function) {
	if fn.CGNode != graph.NoNode {
		return
	}
	fn.CGNode = cg.AddNode(fn)
}
