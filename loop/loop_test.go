package loop

import (
	"testing"

	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/components"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/flow"
	"github.com/aclements/maqcore/internal/fixture"
)

func findBlock(fn *core.Function, seq fixture.Seq, inst *fixture.Inst) *core.Block {
	i := seq.IndexOf(inst)
	for _, b := range fn.Blocks {
		if !b.Virtual && i >= b.Start && i < b.End {
			return b
		}
	}
	return nil
}

// TestSingleEntryLoop is scenario 3 of §8: a single-entry loop with a
// back edge, entered from P and exited to X. Expected: one loop with
// entries={H}, blocks={H}, exits={H}.
func TestSingleEntryLoop(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	p := b.Emit(asm.OpMov, asm.STDCODE)
	h := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	b.BranchTo(h, h)
	x := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	seq := b.Build()

	f, err := flow.Build(flow.Config{}, seq)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fn := f.Functions[0]
	components.Compute(fn)
	Compute(fn)

	pBlk := findBlock(fn, seq, p)
	hBlk := findBlock(fn, seq, h)
	xBlk := findBlock(fn, seq, x)
	_ = pBlk
	_ = xBlk

	if len(fn.Loops) != 1 {
		t.Fatalf("got %d loops, want 1", len(fn.Loops))
	}
	l := fn.Loops[0]
	if len(l.Entries) != 1 || l.Entries[0] != hBlk {
		t.Fatalf("entries = %v, want [H]", l.Entries)
	}
	if len(l.Blocks) != 1 || l.Blocks[0] != hBlk {
		t.Fatalf("blocks = %v, want [H]", l.Blocks)
	}
	if len(l.Exits) != 1 || l.Exits[0] != hBlk {
		t.Fatalf("exits = %v, want [H]", l.Exits)
	}
	if l.Pattern != core.PatternWhile && l.Pattern != core.PatternRepeat {
		t.Errorf("pattern = %v, want while or repeat depending on the back edge's shape", l.Pattern)
	}
}

// TestNestedLoop builds an outer loop wrapping a single-block inner
// loop and checks the inner loop's blocks are folded into the outer
// one while each block's own innermost Loop pointer still names the
// tightest loop containing it.
func TestNestedLoop(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	outerHead := b.Emit(asm.OpMov, asm.STDCODE)
	innerHead := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	b.BranchTo(innerHead, innerHead)
	backToOuter := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	b.BranchTo(backToOuter, outerHead)
	exit := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	seq := b.Build()

	f, err := flow.Build(flow.Config{}, seq)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fn := f.Functions[0]
	components.Compute(fn)
	Compute(fn)

	outerBlk := findBlock(fn, seq, outerHead)
	innerBlk := findBlock(fn, seq, innerHead)
	_ = exit

	if len(fn.Loops) != 2 {
		t.Fatalf("got %d loops, want 2 (outer + inner)", len(fn.Loops))
	}

	if innerBlk.Loop == nil || innerBlk.Loop.Entries[0] != innerBlk {
		t.Fatalf("inner block's innermost loop is not the inner loop")
	}
	outer := innerBlk.Loop.Parent
	if outer == nil {
		t.Fatalf("inner loop has no parent")
	}
	if outer.Entries[0] != outerBlk {
		t.Fatalf("outer loop's entry is not the outer header")
	}
	found := false
	for _, blk := range outer.Blocks {
		if blk == innerBlk {
			found = true
		}
	}
	if !found {
		t.Errorf("outer loop's body does not include the inner loop's header")
	}
}
