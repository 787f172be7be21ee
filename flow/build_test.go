package flow

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/fixture"
)

// findBlock returns the block in fn containing sequence index i, or
// nil. Small helper shared by the scenarios below.
func findBlock(fn *core.Function, seq fixture.Seq, inst *fixture.Inst) *core.Block {
	i := seq.IndexOf(inst)
	for _, b := range fn.Blocks {
		if !b.Virtual && i >= b.Start && i < b.End {
			return b
		}
	}
	return nil
}

// TestBuildFallthroughAndBranch is scenario 1 of §8: a function with a
// conditional jump that both falls through and branches forward to a
// shared successor.
func TestBuildFallthroughAndBranch(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	i0 := b.Emit(asm.OpMov, asm.STDCODE)
	i1 := b.Emit(asm.OpCmp, asm.STDCODE)
	i2 := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	i3 := b.Emit(asm.OpMov, asm.STDCODE)
	i4 := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	b.BranchTo(i2, i4)
	seq := b.Build()

	f, err := Build(Config{}, seq)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(f.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(f.Functions))
	}
	fn := f.Functions[0]

	blk0 := findBlock(fn, seq, i0)
	blk1 := findBlock(fn, seq, i3)
	blk2 := findBlock(fn, seq, i4)
	if blk0 == nil || blk1 == nil || blk2 == nil {
		t.Fatalf("missing block: blk0=%v blk1=%v blk2=%v", blk0, blk1, blk2)
	}
	if blk0 == blk1 || blk0 == blk2 || blk1 == blk2 {
		t.Fatalf("expected three distinct blocks")
	}
	_ = i1

	if got := len(blk0.SuccBlocks()); got != 2 {
		t.Errorf("blk0 has %d successors, want 2 (fallthrough + branch)", got)
	}
	if got := len(blk2.PredBlocks()); got != 2 {
		t.Errorf("blk2 has %d predecessors, want 2 (branch + fallthrough)", got)
	}
	if got := len(blk1.SuccBlocks()); got != 1 {
		t.Errorf("blk1 has %d successors, want 1 (fallthrough)", got)
	}
}

// fakeImage is a minimal fileimage.Reader backed by one flat byte
// buffer loaded at a fixed base address, enough to exercise the
// indirect-branch solver's jump-table read.
type fakeImage struct {
	base uint64
	data []byte
}

func (m fakeImage) ReadBytes(addr uint64, n int) ([]byte, error) {
	if addr < m.base || addr+uint64(n) > m.base+uint64(len(m.data)) {
		return nil, fmt.Errorf("fakeImage: [%#x,%#x) out of range", addr, addr+uint64(n))
	}
	off := addr - m.base
	return m.data[off : off+uint64(n)], nil
}

// TestBuildIndirectBranch is scenario 2 of §8: CMP-indexed indirect
// branch through a 4-entry jump table, resolved via the file image.
func TestBuildIndirectBranch(t *testing.T) {
	b := fixture.NewBuilder()
	b.Label("f")
	r1 := asm.Reg{Family: 1, Name: 1}
	r2 := asm.Reg{Family: 1, Name: 2}

	b.Emit(asm.OpMov, asm.STDCODE, fixture.Imm(2), fixture.Reg(asm.Dst, 1, 1))
	b.Emit(asm.OpCmp, asm.STDCODE, fixture.Imm(3), fixture.Reg(asm.Src, 1, 1))
	jcc := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	b.Emit(asm.OpMov, asm.STDCODE, fixture.Mem(asm.Reg{}, r1, 8, 0x1000), fixture.Reg(asm.Dst, 1, 2))
	jmp := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP, fixture.Reg(asm.Src, r2.Family, r2.Name))
	ldefault := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	b.BranchTo(jcc, ldefault)
	a := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	bb := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	c := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	d := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	seq := b.Build()

	table := make([]byte, 32)
	for i, tgt := range []*fixture.Inst{a, bb, c, d} {
		binary.LittleEndian.PutUint64(table[i*8:], tgt.Addr())
	}
	img := fakeImage{base: 0x1000, data: table}

	f, err := Build(Config{Image: img}, seq)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fn := f.Functions[0]

	jmpBlk := findBlock(fn, seq, jmp)
	if jmpBlk == nil {
		t.Fatal("no block found for indirect jump")
	}
	if got := len(jmpBlk.SuccBlocks()); got != 4 {
		t.Fatalf("indirect jump block has %d successors, want 4", got)
	}
	lastInst := fn.File.Seq.At(jmpBlk.End - 1)
	if !lastInst.Annotations().Has(asm.IBSOLVE) {
		t.Errorf("indirect jump not annotated IBSOLVE")
	}

	jccBlk := findBlock(fn, seq, jcc)
	defaultBlk := findBlock(fn, seq, ldefault)
	found := false
	for _, s := range jccBlk.SuccBlocks() {
		if s == defaultBlk {
			found = true
		}
	}
	if !found {
		t.Errorf("JCC block does not branch to the default label's block")
	}
}
