package dotgraph

import (
	"testing"

	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/ddg"
	"github.com/aclements/maqcore/flow"
	"github.com/aclements/maqcore/internal/fixture"
)

func TestBlockLabel(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	f, err := flow.Build(flow.Config{}, b.Build())
	if err != nil {
		t.Fatalf("flow.Build: %v", err)
	}
	fn := f.Functions[0]
	entry := fn.Entry
	if got, want := BlockLabel(entry), "0x0"; got != want {
		t.Errorf("BlockLabel(entry) = %q, want %q", got, want)
	}

	virtual := fn.NewVirtualBlock()
	if got := BlockLabel(virtual); got == "" || got[:8] != "virtual#" {
		t.Errorf("BlockLabel(virtual) = %q, want a \"virtual#\" prefix", got)
	}
}

func TestCFGEdgeLabel(t *testing.T) {
	if got, want := CFGEdgeLabel(core.CFGEdge{}), "fallthrough"; got != want {
		t.Errorf("CFGEdgeLabel(no origin) = %q, want %q", got, want)
	}
}

func TestDDGEdgeLabel(t *testing.T) {
	e := &ddg.Edge{Kind: ddg.RAW, Distance: 1, Latency: ddg.Latency{Min: 3, Max: 3}}
	if got, want := DDGEdgeLabel(e), "RAW_lat=3_dist=1"; got != want {
		t.Errorf("DDGEdgeLabel (min==max) = %q, want %q", got, want)
	}

	e2 := &ddg.Edge{Kind: ddg.WAW, Distance: 0, Latency: ddg.Latency{Min: 2, Max: 5}}
	if got, want := DDGEdgeLabel(e2), "WAW_lat=2-5_dist=0"; got != want {
		t.Errorf("DDGEdgeLabel (min!=max) = %q, want %q", got, want)
	}
}
