package ssa

import (
	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
)

// linkLoopHeaderPhis implements §4.9's "link loop-header phis to
// previous definition": for every loop-entry block with exactly two
// predecessors, the predecessor outside the loop (the non-back-edge)
// names the value a phi at that header "continues from" across
// iterations; DDG recurrence-distance queries follow PriorDef to see
// through the phi to that definition.
func (f *Func) linkLoopHeaderPhis() {
	for _, b := range f.Fn.Blocks {
		if b.Loop == nil || len(b.Loop.Entries) == 0 || b.Loop.Entries[0] != b {
			continue
		}
		preds := b.PredBlocks()
		if len(preds) != 2 {
			continue
		}
		outsideIdx := -1
		for i, p := range preds {
			if !b.Loop.HasBlock(p) && p != b {
				outsideIdx = i
				break
			}
		}
		if outsideIdx < 0 {
			continue
		}
		bb := f.Blocks[b]
		for _, phi := range bb.Values {
			if phi.Op == OpPhi {
				phi.PriorDef = phi.Args[outsideIdx]
			}
		}
	}
}

// distinctArgs collapses a phi's operand set to the distinct values by
// identity (§4.9 "deduplicate operands").
func distinctArgs(phi *Value) []*Value {
	var out []*Value
	seen := map[*Value]bool{}
	for _, a := range phi.Args {
		if a != nil && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// simplifyPhis runs the three phi-simplification passes of §4.9 in
// order.
func (f *Func) simplifyPhis() {
	f.dedupPhiArgs()
	f.removeInvariantLoopPhis()
	f.removeSameMemoryLoadPhis()
}

// dedupPhiArgs implements §4.9's first simplification: every phi's
// operand set is collapsed to its distinct values by identity, in
// place, so a phi that merges the same definition down two paths (a
// diamond both sides of which define the same value, or a value that
// reaches a loop header redundantly through more than one back edge)
// carries it once.
func (f *Func) dedupPhiArgs() {
	for _, bb := range f.Blocks {
		for _, v := range bb.Values {
			if v.Op != OpPhi {
				continue
			}
			v.Args = distinctArgs(v)
		}
	}
}

// movImmediate reports whether inst is a MOV whose source operand is
// an immediate, returning that immediate.
func movImmediate(inst asm.Instruction) (int64, bool) {
	if inst == nil || inst.Family() != asm.OpMov {
		return 0, false
	}
	for _, op := range inst.Operands() {
		if op.Kind == asm.OperandImm {
			return op.Imm, true
		}
	}
	return 0, false
}

// removeInvariantLoopPhis implements §4.9's second simplification:
// for each innermost single-entry loop, a header phi whose
// outside-the-loop operand is a MOV-immediate, and whose register is
// never redefined inside the loop to any other value, is trivial —
// every phi of that register in the loop becomes a copy of the
// outside definition.
func (f *Func) removeInvariantLoopPhis() {
	for _, b := range f.Fn.Blocks {
		l := b.Loop
		if l == nil || !l.IsInnermost() || len(l.Entries) != 1 || l.Entries[0] != b {
			continue
		}
		bb := f.Blocks[b]
		for _, phi := range bb.Values {
			if phi.Op != OpPhi {
				continue
			}
			var outside *Value
			for _, a := range distinctArgs(phi) {
				if a.Block == nil || !l.HasBlock(a.Block) {
					outside = a
					break
				}
			}
			if outside == nil {
				continue
			}
			imm, ok := movImmediate(outside.Inst)
			if !ok {
				continue
			}
			if !allLoopDefsMatchImmediate(f, l, phi.Reg, phi, outside, imm) {
				continue
			}
			for _, v := range loopHeaderPhis(f, l, phi.Reg) {
				v.ReplacedBy = outside
			}
		}
	}
}

func loopHeaderPhis(f *Func, l *core.Loop, reg arch.StdReg) []*Value {
	var out []*Value
	for _, e := range l.Entries {
		bb := f.Blocks[e]
		for _, v := range bb.Values {
			if v.Op == OpPhi && v.Reg == reg {
				out = append(out, v)
			}
		}
	}
	return out
}

func allLoopDefsMatchImmediate(f *Func, l *core.Loop, reg arch.StdReg, phi, outside *Value, imm int64) bool {
	for _, blk := range l.Blocks {
		bb := f.Blocks[blk]
		for _, v := range bb.Values {
			if v.Reg != reg || v == phi || v == outside || v.Op != OpInst {
				continue
			}
			vimm, ok := movImmediate(v.Inst)
			if !ok || vimm != imm {
				return false
			}
		}
	}
	return true
}

// removeSameMemoryLoadPhis implements §4.9's third simplification: a
// two-predecessor phi in a loop whose two operands are defined by the
// same MOV (or LEA — approximated here as MOV, since the abstract
// Family enum has no separate LEA tag) from identical memory
// expressions drops its inside-loop operand.
func (f *Func) removeSameMemoryLoadPhis() {
	for _, b := range f.Fn.Blocks {
		if b.Loop == nil {
			continue
		}
		bb := f.Blocks[b]
		for _, phi := range bb.Values {
			if phi.Op != OpPhi || len(phi.Args) != 2 {
				continue
			}
			a0, a1 := phi.Args[0], phi.Args[1]
			if a0 == nil || a1 == nil || a0.ReplacedBy != nil || a1.ReplacedBy != nil {
				continue
			}
			mem0, ok0 := sameMemSrc(a0.Inst)
			mem1, ok1 := sameMemSrc(a1.Inst)
			if !ok0 || !ok1 || mem0 != mem1 {
				continue
			}
			in0, in1 := b.Loop.HasBlock(a0.Block), b.Loop.HasBlock(a1.Block)
			switch {
			case in0 && !in1:
				phi.ReplacedBy = a1
			case in1 && !in0:
				phi.ReplacedBy = a0
			}
		}
	}
}

func sameMemSrc(inst asm.Instruction) (asm.Mem, bool) {
	if inst == nil || inst.Family() != asm.OpMov {
		return asm.Mem{}, false
	}
	for _, op := range inst.Operands() {
		if op.Kind == asm.OperandMem {
			return op.Mem, true
		}
	}
	return asm.Mem{}, false
}
