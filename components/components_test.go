package components

import (
	"testing"

	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/flow"
	"github.com/aclements/maqcore/internal/fixture"
)

// TestSingleEntryNoMerge is scenario 3 of §8: a single-entry loop
// preceded and followed by straight-line code stays one CC with one
// entry, the function's main entry.
func TestSingleEntryNoMerge(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	p := b.Emit(asm.OpMov, asm.STDCODE)
	h := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	b.BranchTo(h, h)
	x := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	seq := b.Build()
	_ = p
	_ = x

	f, err := flow.Build(flow.Config{}, seq)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fn := f.Functions[0]
	Compute(fn)

	if len(fn.Components) != 1 {
		t.Fatalf("got %d components, want 1", len(fn.Components))
	}
	if len(fn.Components[0].Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(fn.Components[0].Entries))
	}
	if fn.Components[0].Entries[0] != fn.Entry {
		t.Errorf("component entry is not the function's main entry")
	}
}

// TestMultiEntryMerge builds two CFG fragments joined by a shared
// successor block reached from two different CC entries, and checks
// they merge into a single component with both entries recorded.
func TestMultiEntryMerge(t *testing.T) {
	fn := &core.Function{Name: "f"}
	a := fn.NewBlock()
	bb := fn.NewBlock()
	c := fn.NewBlock()
	fn.Entry = a
	fn.AddCFGEdge(a, c, nil)
	fn.AddCFGEdge(bb, c, nil)

	Compute(fn)

	if len(fn.Components) != 1 {
		t.Fatalf("got %d components, want 1", len(fn.Components))
	}
	if len(fn.Components[0].Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(fn.Components[0].Entries))
	}
}
