// Package dom computes a function's dominator and post-dominator trees
// (C4), directly adapted from the teacher's obj/internal/graph/dom.go:
// the same Cooper-Harvey-Kennedy engineered algorithm, run twice per
// function, once forward from fn.Entry for dominance and once in
// reverse from a synthesized virtual exit node for post-dominance
// (§4.4). internal/graph.IDom already accepts a reverse flag for
// exactly this; this package only owns the virtual-exit wiring and the
// per-function result cache the teacher's single-rooted CFGs never
// needed.
package dom

import (
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/graph"
)

const (
	infoCacheKind     = "dom.Info"
	postInfoCacheKind = "dom.PostInfo"
)

// Info is one direction's dominance results: the immediate-dominator
// tree and dominance-frontier sets, indexed by CFG node.
type Info struct {
	Tree     *graph.DomTree
	Frontier [][]graph.NodeID
}

// Compute builds fn's (forward) dominator tree, rooted at fn.Entry, and
// caches it (lcore_dom.c's analyze_dom, generalized from the teacher's
// obj.Func.Idom).
func Compute(fn *core.Function) *Info {
	if info, ok := Get(fn); ok {
		return info
	}
	info := &Info{}
	if fn.Entry != nil && fn.CFG != nil {
		idom := graph.IDom(fn.CFG, fn.Entry.Node(), false)
		info.Tree = graph.BuildDomTree(idom)
		info.Frontier = graph.DomFrontier(fn.CFG, fn.Entry.Node(), false, idom)
	}
	core.SetCache(fn.File, fn, infoCacheKind, info)
	return info
}

// Get returns fn's already-computed forward dominance Info, if any.
func Get(fn *core.Function) (*Info, bool) {
	return core.Cache[*Info](fn.File, fn, infoCacheKind)
}

// ComputePost builds fn's post-dominator tree (§4.4): every block with
// no real successor is wired, for the duration of this call only, into
// a synthesized virtual exit, which is then used as the root of a
// reverse IDom run. fn.VirtualExit is populated only while this runs;
// the CFG has no node-removal operation, so the synthesized node and
// its now-edgeless remnant are left in place afterward as an isolated,
// harmless node (it has no surviving edges to or from any real block,
// so no other pass's traversal from fn.Entry ever reaches it).
func ComputePost(fn *core.Function) *Info {
	if info, ok := GetPost(fn); ok {
		return info
	}
	info := &Info{}
	if fn.Entry != nil && fn.CFG != nil {
		exit := fn.NewVirtualBlock()
		fn.VirtualExit = exit
		var added []graph.EdgeID
		for _, b := range fn.Blocks {
			if b == exit || len(b.Succs()) > 0 {
				continue
			}
			added = append(added, fn.AddCFGEdge(b, exit, nil))
		}
		idom := graph.IDom(fn.CFG, exit.Node(), true)
		info.Tree = graph.BuildDomTree(idom)
		info.Frontier = graph.DomFrontier(fn.CFG, exit.Node(), true, idom)
		for _, eid := range added {
			fn.CFG.RemoveEdge(eid)
		}
		fn.VirtualExit = nil
	}
	core.SetCache(fn.File, fn, postInfoCacheKind, info)
	return info
}

// GetPost returns fn's already-computed post-dominance Info, if any.
func GetPost(fn *core.Function) (*Info, bool) {
	return core.Cache[*Info](fn.File, fn, postInfoCacheKind)
}
