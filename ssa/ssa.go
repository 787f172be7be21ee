// Package ssa builds single-static-assignment form over a function's
// standardized registers (C9), directly adapted from the teacher's
// obj/internal/ssa/ssa.go: same dominance-frontier phi placement and
// dominator-tree renaming walk with an explicit undo stack, generalized
// from the teacher's single memory-location abstraction (asm.Loc) to
// the spec's standardized-register model where one instruction can
// define several independent registers, each getting its own SSA
// value.
package ssa

import (
	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/graph"
	"github.com/aclements/maqcore/liveregs"
)

// Op discriminates the kinds of SSA value, following the teacher's
// three-op shape (phi / synthesized entry / instruction result).
type Op uint8

const (
	OpPhi Op = 1 + iota
	OpEntry
	OpInst
)

// Value is one SSA definition of a single standardized register.
type Value struct {
	ID   int
	Op   Op
	Reg  arch.StdReg
	Block *core.Block

	// Inst is the defining instruction; nil for OpPhi and OpEntry.
	Inst asm.Instruction

	// Args are the values this one reads, in read order: explicit
	// source register operands, then memory base/index registers,
	// then architecture-implicit sources (§4.9 renaming step 2).
	// For OpPhi, Args has one slot per predecessor block, in the
	// same order as Block.PredBlocks().
	Args []*Value

	// PriorDef is set only on a loop-header phi with exactly two
	// predecessors: it names the SSA definition flowing in from the
	// predecessor outside the loop (§4.9 "link loop-header phis").
	PriorDef *Value

	// ReplacedBy marks a phi that a simplification pass proved
	// trivial: consumers should resolve through it rather than
	// treat it as a real merge point.
	ReplacedBy *Value
}

// BasicBlock is one function block's SSA values: phis first (in the
// order they were placed), then one value per defined register per
// instruction, in program order.
type BasicBlock struct {
	Block  *core.Block
	Values []*Value
}

// Func is the SSA form of one core.Function.
type Func struct {
	Fn     *core.Function
	Blocks map[*core.Block]*BasicBlock

	idom graph.NodeID
	dom  *graph.DomTree
}

// Build constructs SSA form for fn. liveregs.Compute(fn, a) must have
// already run: phi placement is pruned using each block's live-IN set
// (§4.9 "This produces a pruned SSA form — the IN(Y) check is
// essential").
func Build(fn *core.Function, a arch.Arch) *Func {
	f := &Func{Fn: fn, Blocks: make(map[*core.Block]*BasicBlock, len(fn.Blocks))}
	for _, b := range fn.Blocks {
		f.Blocks[b] = &BasicBlock{Block: b}
	}
	if fn.Entry == nil || fn.CFG == nil {
		return f
	}

	idom := graph.IDom(fn.CFG, fn.Entry.Node(), false)
	dom := graph.BuildDomTree(idom)
	df := graph.DomFrontier(fn.CFG, fn.Entry.Node(), false, idom)
	f.dom = dom

	varDefs := collectVariableSet(fn, a)
	f.placePhis(varDefs, df)
	f.rename(fn.Entry, dom, a)
	f.linkLoopHeaderPhis()
	f.simplifyPhis()
	f.number()
	return f
}

// collectVariableSet builds §4.9's "variable set A": every
// standardized register that is ever an explicit or implicit
// destination, mapped to the blocks that define it.
func collectVariableSet(fn *core.Function, a arch.Arch) map[arch.StdReg][]*core.Block {
	defs := map[arch.StdReg]map[*core.Block]bool{}
	add := func(r arch.StdReg, b *core.Block) {
		m, ok := defs[r]
		if !ok {
			m = map[*core.Block]bool{}
			defs[r] = m
		}
		m[b] = true
	}
	for _, b := range fn.Blocks {
		if b.Virtual {
			continue
		}
		seq := b.Func.File.Seq
		for i := b.Start; i < b.End; i++ {
			inst := seq.At(i)
			for _, w := range writeRegs(inst, a) {
				add(w, b)
			}
		}
	}
	out := make(map[arch.StdReg][]*core.Block, len(defs))
	for r, m := range defs {
		blocks := make([]*core.Block, 0, len(m))
		for b := range m {
			blocks = append(blocks, b)
		}
		out[r] = blocks
	}
	return out
}

// writeRegs returns the standardized registers inst defines, honoring
// the exclusion list: a CMP instruction never defines a register
// (§4.9 renaming step 2c). The spec's other listed exclusion, "XCHG
// r,r where both operands are the same register", needs a dedicated
// opcode tag to detect: the abstract Family enum only distinguishes
// MOV/CMP/CALL/JUMP/RETURN/FMA/FMS/NOP, and a structural same-register
// Src+Dst check would misfire on every ordinary read-modify-write
// instruction (ADD r,r and friends legitimately read and redefine the
// same register). That exclusion is left to a concrete architecture's
// Family classification rather than approximated here.
func writeRegs(inst asm.Instruction, a arch.Arch) []arch.StdReg {
	if inst.Family() == asm.OpCmp {
		return nil
	}
	var out []arch.StdReg
	seen := map[arch.StdReg]bool{}
	push := func(r arch.StdReg) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, op := range inst.Operands() {
		if op.Kind == asm.OperandReg && (op.Direction == asm.Dst || op.Direction == asm.Both) {
			push(a.Standardize(op.Reg))
		}
	}
	for _, r := range a.ImplicitDst(inst) {
		push(r)
	}
	return out
}

// readRegs returns the standardized registers inst reads: explicit
// source/memory-address registers in operand order, then
// architecture-implicit sources (§4.9 renaming step 2a-b).
func readRegs(inst asm.Instruction, a arch.Arch) []arch.StdReg {
	var out []arch.StdReg
	for _, op := range inst.Operands() {
		switch op.Kind {
		case asm.OperandReg:
			if op.Direction == asm.Src || op.Direction == asm.Both {
				out = append(out, a.Standardize(op.Reg))
			}
		case asm.OperandMem:
			if op.Mem.Base.IsValid() {
				out = append(out, a.Standardize(op.Mem.Base))
			}
			if op.Mem.Index.IsValid() {
				out = append(out, a.Standardize(op.Mem.Index))
			}
		}
	}
	out = append(out, a.ImplicitSrc(inst)...)
	return out
}

// placePhis runs the worklist phi-insertion algorithm of §4.9, pruned
// by each candidate block's live-IN set.
func (f *Func) placePhis(varDefs map[arch.StdReg][]*core.Block, df [][]graph.NodeID) {
	for v, defBlocks := range varDefs {
		processed := map[*core.Block]bool{}
		worklist := append([]*core.Block{}, defBlocks...)
		for len(worklist) > 0 {
			x := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, yid := range df[x.Node()] {
				y := f.Fn.CFG.Node(yid)
				if processed[y] {
					continue
				}
				info, ok := liveregs.BlockInfo(y)
				if !ok || !info.In.Has(v) {
					continue
				}
				bb := f.Blocks[y]
				hasPhi := false
				for _, val := range bb.Values {
					if val.Op == OpPhi && val.Reg == v {
						hasPhi = true
						break
					}
				}
				if !hasPhi {
					phi := &Value{Op: OpPhi, Reg: v, Block: y, Args: make([]*Value, len(y.PredBlocks()))}
					bb.Values = append(bb.Values, phi)
				}
				processed[y] = true
				worklist = append(worklist, y)
			}
		}
	}
}

// renameState carries the per-variable current-definition map and its
// undo log across the dominator-tree walk (the teacher's
// vals/undoStack, generalized to standardized registers).
type renameState struct {
	vals      map[arch.StdReg]*Value
	undo      []undoEntry
	entryVals map[arch.StdReg]*Value
}

type undoEntry struct {
	reg arch.StdReg
	val *Value
}

func (f *Func) rename(entry *core.Block, dom *graph.DomTree, a arch.Arch) {
	s := &renameState{vals: map[arch.StdReg]*Value{}, entryVals: map[arch.StdReg]*Value{}}
	f.walk(entry, dom, a, s)
}

// entryValue returns the shared "version 0" value for r, synthesizing
// it on first read the same way the teacher's addEntry does — the
// initial value of r at function entry (§4.9's "Initial phi operand 0
// ... is set to version 0").
func (s *renameState) entryValue(r arch.StdReg, entry *core.Block) *Value {
	if v, ok := s.entryVals[r]; ok {
		return v
	}
	v := &Value{Op: OpEntry, Reg: r, Block: entry}
	s.entryVals[r] = v
	return v
}

func (f *Func) walk(b *core.Block, dom *graph.DomTree, a arch.Arch, s *renameState) {
	bb := f.Blocks[b]
	undoPos := len(s.undo)

	for _, phi := range bb.Values {
		if phi.Op != OpPhi {
			continue
		}
		s.undo = append(s.undo, undoEntry{phi.Reg, s.vals[phi.Reg]})
		s.vals[phi.Reg] = phi
	}

	if !b.Virtual {
		seq := b.Func.File.Seq
		for i := b.Start; i < b.End; i++ {
			inst := seq.At(i)

			var args []*Value
			for _, r := range readRegs(inst, a) {
				v := s.vals[r]
				if v == nil {
					v = s.entryValue(r, f.Fn.Entry)
				}
				args = append(args, v)
			}

			for _, w := range writeRegs(inst, a) {
				val := &Value{Op: OpInst, Reg: w, Block: b, Inst: inst, Args: args}
				bb.Values = append(bb.Values, val)
				s.undo = append(s.undo, undoEntry{w, s.vals[w]})
				s.vals[w] = val
			}
		}
	}

	for _, eid := range f.Fn.CFG.Out(b.Node()) {
		succID := f.Fn.CFG.To(eid)
		succ := f.Fn.CFG.Node(succID)
		sbb := f.Blocks[succ]
		predIdx := predIndex(succ, b)
		if predIdx < 0 {
			continue
		}
		for _, phi := range sbb.Values {
			if phi.Op != OpPhi {
				continue
			}
			v := s.vals[phi.Reg]
			if v == nil {
				v = s.entryValue(phi.Reg, f.Fn.Entry)
			}
			phi.Args[predIdx] = v
		}
	}

	for _, childID := range dom.Children(b.Node()) {
		f.walk(f.Fn.CFG.Node(childID), dom, a, s)
	}

	for len(s.undo) > undoPos {
		e := s.undo[len(s.undo)-1]
		s.undo = s.undo[:len(s.undo)-1]
		s.vals[e.reg] = e.val
	}
}

// predIndex returns pred's position in succ's predecessor list, or -1.
func predIndex(succ, pred *core.Block) int {
	for i, p := range succ.PredBlocks() {
		if p == pred {
			return i
		}
	}
	return -1
}

// number assigns dense IDs in block then program order, after phi
// placement/renaming/simplification have settled the final value set.
func (f *Func) number() {
	n := 0
	for _, b := range f.Fn.Blocks {
		bb := f.Blocks[b]
		for _, v := range bb.Values {
			v.ID = n
			n++
		}
	}
}
