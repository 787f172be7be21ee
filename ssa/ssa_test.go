package ssa

import (
	"testing"

	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/flow"
	"github.com/aclements/maqcore/internal/fixture"
	"github.com/aclements/maqcore/liveregs"
	"github.com/aclements/maqcore/loop"
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

var r1 = asm.Reg{Family: 1, Name: 1}
var stdR1 = arch.MakeStdReg(1, 1)

// TestDiamondPhi builds a diamond where both branches define r1 and
// the join reads it, and checks a phi is placed at the join with one
// argument per incoming definition.
func TestDiamondPhi(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	i0 := b.Emit(asm.OpMov, asm.STDCODE, fixture.Imm(1), fixture.Reg(asm.Dst, r1.Family, r1.Name))
	b.Emit(asm.OpCmp, asm.STDCODE)
	i2 := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	i3 := b.Emit(asm.OpMov, asm.STDCODE, fixture.Imm(2), fixture.Reg(asm.Dst, r1.Family, r1.Name))
	i4 := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN|asm.EX, fixture.Reg(asm.Src, r1.Family, r1.Name))
	b.BranchTo(i2, i4)
	seq := b.Build()

	f, err := flow.Build(flow.Config{}, seq)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fn := f.Functions[0]

	a := &fixture.Arch{}
	liveregs.Compute(fn, a)
	sf := Build(fn, a)

	joinBlk := findBlock(fn, seq, i4)
	defP := findBlock(fn, seq, i0)
	defA := findBlock(fn, seq, i3)

	bb := sf.Blocks[joinBlk]
	if len(bb.Values) == 0 || bb.Values[0].Op != OpPhi {
		t.Fatalf("join block has no phi: %+v", bb.Values)
	}
	phi := bb.Values[0]
	if phi.Reg != stdR1 {
		t.Errorf("phi register = %v, want %v", phi.Reg, stdR1)
	}
	if len(phi.Args) != 2 {
		t.Fatalf("phi has %d args, want 2", len(phi.Args))
	}
	blocksSeen := map[*core.Block]bool{}
	for _, arg := range phi.Args {
		if arg == nil {
			t.Fatal("phi has a nil argument")
		}
		blocksSeen[arg.Block] = true
	}
	if !blocksSeen[defP] || !blocksSeen[defA] {
		t.Errorf("phi args don't cover both definitions: %v", blocksSeen)
	}

	// The return instruction's value should read straight from the
	// phi, since the join block is where both definitions merge.
	var retVal *Value
	for _, v := range bb.Values {
		if v.Op == OpInst && v.Inst == i4 {
			retVal = v
		}
	}
	if retVal == nil {
		t.Fatal("no SSA value for the return instruction")
	}
	if len(retVal.Args) != 1 || retVal.Args[0] != phi {
		t.Errorf("return instruction does not read the phi directly: %+v", retVal.Args)
	}
}

// TestLoopHeaderPriorDef builds a single-block self loop whose header
// reads and rewrites a register, and checks the header's phi links
// back to the outside-the-loop definition via PriorDef.
func TestLoopHeaderPriorDef(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	p := b.Emit(asm.OpMov, asm.STDCODE, fixture.Imm(5), fixture.Reg(asm.Dst, r1.Family, r1.Name))
	h := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL,
		fixture.Reg(asm.Src, r1.Family, r1.Name), fixture.Reg(asm.Dst, r1.Family, r1.Name))
	b.BranchTo(h, h)
	x := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN|asm.EX, fixture.Reg(asm.Src, r1.Family, r1.Name))
	seq := b.Build()

	f, err := flow.Build(flow.Config{}, seq)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fn := f.Functions[0]

	a := &fixture.Arch{}
	loop.Compute(fn)
	liveregs.Compute(fn, a)
	sf := Build(fn, a)

	pBlk := findBlock(fn, seq, p)
	hBlk := findBlock(fn, seq, h)
	xBlk := findBlock(fn, seq, x)
	_ = xBlk

	hbb := sf.Blocks[hBlk]
	if len(hbb.Values) == 0 || hbb.Values[0].Op != OpPhi {
		t.Fatalf("loop header has no phi: %+v", hbb.Values)
	}
	phi := hbb.Values[0]
	if phi.PriorDef == nil {
		t.Fatal("loop header phi has no PriorDef")
	}
	if phi.PriorDef.Block != pBlk {
		t.Errorf("PriorDef points to block %v, want the pre-header block", phi.PriorDef.Block)
	}
}
