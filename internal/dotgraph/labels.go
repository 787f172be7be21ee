package dotgraph

import (
	"fmt"

	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/ddg"
)

// BlockLabel renders a CFG/loop node's label as address/block-id,
// per §6: "<addr>" for a real block (its first instruction's
// address), "virtual#<id>" for a synthesized entry/exit block.
func BlockLabel(b *core.Block) string {
	if b.Virtual {
		return fmt.Sprintf("virtual#%d", b.ID)
	}
	seq := b.Func.File.Seq
	return fmt.Sprintf("%#x", seq.At(b.Start).Addr())
}

// CFGEdgeLabel renders a CFG edge's origin instruction address, or
// "fallthrough" for a synthesized edge with no origin instruction
// (e.g. the post-dominance virtual-exit edges dom.ComputePost adds and
// removes internally, which never reach a caller's dump, or the edge
// added when a block is split in two).
func CFGEdgeLabel(e core.CFGEdge) string {
	if e.Origin == nil {
		return "fallthrough"
	}
	return fmt.Sprintf("%#x", e.Origin.Addr())
}

// DDGEdgeLabel renders a DDG edge per §6's exact grammar:
// "<kind>_lat=<min>[-<max>]_dist=<d>", the max suffix only appearing
// when it differs from the min.
func DDGEdgeLabel(e *ddg.Edge) string {
	lat := fmt.Sprintf("%d", e.Latency.Min)
	if e.Latency.Max != e.Latency.Min {
		lat += fmt.Sprintf("-%d", e.Latency.Max)
	}
	return fmt.Sprintf("%s_lat=%s_dist=%d", e.Kind, lat, e.Distance)
}
