package flow

import (
	"encoding/binary"

	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
)

// solve is the C3 indirect-branch solver (§4.3): for every block
// ending in an unresolved indirect JUMP, walk backward for the
// MOV offset(,index,scale), tgt pattern feeding the jump register,
// and if the file image makes the implied jump table readable, wire
// one CFG edge per table slot.
func solve(cfg Config, fn *core.Function) {
	for _, blk := range fn.Blocks {
		if blk.Virtual || blk.NumInsts() == 0 {
			continue
		}
		last := fn.File.Seq.At(blk.End - 1)
		ann := last.Annotations()
		if !ann.Has(asm.JUMP) || ann.Has(asm.RTRN) {
			continue
		}
		if _, ok := last.Branch(); ok {
			continue // direct jump, already wired
		}
		ops := last.Operands()
		if len(ops) == 0 || ops[0].Kind == asm.OperandPtr {
			continue
		}

		mem, ok := findTableLoad(fn, blk, ops[0])
		if !ok {
			last.SetAnnotation(asm.IBNOTSOLVE)
			cfg.log().Warnf("flow: no table-load definition found for indirect jump at %#x", last.Addr())
			continue
		}

		if !solveFromTable(cfg, fn, blk, last, mem) {
			last.SetAnnotation(asm.IBNOTSOLVE)
		}
	}
}

// findTableLoad walks backward from blk's end, then through
// single-predecessor chains, looking for a MOV whose source is a
// memory operand matching the register the jump reads (§4.3: "find a
// definition of the destination register by walking backward through
// the block and through single-predecessor chains").
func findTableLoad(fn *core.Function, blk *core.Block, jumpOperand asm.Operand) (asm.Mem, bool) {
	want := jumpOperand.Reg
	seen := map[*core.Block]bool{}
	for b := blk; b != nil && !seen[b]; {
		seen[b] = true
		seq := fn.File.Seq
		for i := b.End - 1; i >= b.Start; i-- {
			inst := seq.At(i)
			if inst.Family() != asm.OpMov {
				continue
			}
			ops := inst.Operands()
			if len(ops) < 2 {
				continue
			}
			dst, src := ops[len(ops)-1], ops[0]
			if dst.Kind == asm.OperandReg && dst.Reg == want && src.Kind == asm.OperandMem {
				return src.Mem, true
			}
		}
		preds := b.PredBlocks()
		if len(preds) != 1 {
			return asm.Mem{}, false
		}
		b = preds[0]
	}
	return asm.Mem{}, false
}

// solveFromTable reads the jump table described by mem out of the
// file image and wires one CFG edge per resolved entry, per §4.3's
// "(imm+1)*scale bytes starting at offset" sizing rule, where imm is
// the bound established by the preceding CMP (found by the same
// backward walk, see findCmpBound).
func solveFromTable(cfg Config, fn *core.Function, blk *core.Block, jump asm.Instruction, mem asm.Mem) bool {
	if cfg.Image == nil {
		return false
	}
	bound, ok := findCmpBound(fn, blk, mem.Index)
	if !ok {
		return false
	}
	scale := int(mem.Scale)
	if scale == 0 {
		scale = 8
	}
	n := (bound + 1) * scale
	raw, err := cfg.Image.ReadBytes(uint64(mem.Offset), n)
	if err != nil {
		cfg.log().Warnf("flow: indirect jump at %#x: %v", jump.Addr(), err)
		return false
	}

	seq := fn.File.Seq
	ok = true
	for off := 0; off+scale <= len(raw); off += scale {
		var addr uint64
		switch scale {
		case 4:
			addr = uint64(binary.LittleEndian.Uint32(raw[off:]))
		default:
			addr = binary.LittleEndian.Uint64(raw[off:])
		}
		ti := addrIndex(seq, addr)
		if ti < 0 {
			cfg.log().Warnf("flow: indirect jump at %#x: table slot %#x unreachable", jump.Addr(), addr)
			ok = false
			continue
		}
		tb := blockAtAddr(fn, ti)
		fn.AddCFGEdge(blk, tb, jump)
	}
	if ok {
		jump.SetAnnotation(asm.IBSOLVE)
	}
	return ok
}

// findCmpBound returns the immediate operand of the nearest CMP that
// has one, using the same backward walk as findTableLoad. reg must be
// valid, but the CMP's register operand is not compared with it: the
// first CMP with an immediate supplies the bound, whichever register
// it tests.
func findCmpBound(fn *core.Function, blk *core.Block, reg asm.Reg) (int, bool) {
	if !reg.IsValid() {
		return 0, false
	}
	seen := map[*core.Block]bool{}
	for b := blk; b != nil && !seen[b]; {
		seen[b] = true
		seq := fn.File.Seq
		for i := b.End - 1; i >= b.Start; i-- {
			inst := seq.At(i)
			if inst.Family() != asm.OpCmp {
				continue
			}
			ops := inst.Operands()
			for _, o := range ops {
				if o.Kind == asm.OperandImm {
					return int(o.Imm), true
				}
			}
		}
		preds := b.PredBlocks()
		if len(preds) != 1 {
			return 0, false
		}
		b = preds[0]
	}
	return 0, false
}

func addrIndex(seq asm.Seq, addr uint64) int {
	for i := 0; i < seq.Len(); i++ {
		if seq.At(i).Addr() == addr {
			return i
		}
	}
	return -1
}

// blockAtAddr returns the block starting at sequence index ti,
// splitting the block containing it if ti falls mid-block (§4.3:
// "split the block at that address if the target is mid-block").
func blockAtAddr(fn *core.Function, ti int) *core.Block {
	for _, blk := range fn.Blocks {
		if blk.Virtual {
			continue
		}
		if blk.Start == ti {
			return blk
		}
		if ti > blk.Start && ti < blk.End {
			return splitBlock(blk, ti)
		}
	}
	blk := fn.NewBlock()
	blk.Start = ti
	blk.End = ti
	return blk
}
