// Package fixture is a test-only instruction-stream builder standing
// in for the external "Instructions (consumed)" contract of §6. It
// offers two ways to get an asm.Seq: Build, a fluent builder for
// hand-shaped CFG/SSA/DDG test fixtures where the exact annotation
// bitset matters, and DecodeX86, which drives real x86-64 decoding
// through golang.org/x/arch/x86/x86asm the way the teacher's
// obj/internal/asm/x86.go does, so at least one layer of tests
// exercises genuinely decoded instructions end to end.
package fixture

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/aclements/maqcore/asm"
)

// Inst is a mutable, in-memory asm.Instruction used only by tests.
type Inst struct {
	addr   uint64
	size   int
	family asm.Family
	ops    []asm.Operand
	ann    asm.Annotation

	branch    *Inst
	funcLabel string
	hasLabel  bool
	newBlock  bool
}

func (i *Inst) Addr() uint64           { return i.addr }
func (i *Inst) Size() int              { return i.size }
func (i *Inst) Family() asm.Family     { return i.family }
func (i *Inst) Operands() []asm.Operand { return i.ops }

func (i *Inst) Annotations() asm.Annotation     { return i.ann }
func (i *Inst) SetAnnotation(a asm.Annotation)   { i.ann |= a }
func (i *Inst) ClearAnnotation(a asm.Annotation) { i.ann &^= a }

func (i *Inst) Branch() (asm.Instruction, bool) {
	if i.branch == nil {
		return nil, false
	}
	return i.branch, true
}

func (i *Inst) FuncLabel() (string, bool) { return i.funcLabel, i.hasLabel }
func (i *Inst) NewBlockLabel() bool       { return i.newBlock }

// Seq is an ordered, addressable asm.Seq over a slice of *Inst.
type Seq []*Inst

func (s Seq) Len() int            { return len(s) }
func (s Seq) At(i int) asm.Instruction { return s[i] }
func (s Seq) IndexOf(inst asm.Instruction) int {
	target, ok := inst.(*Inst)
	if !ok {
		return -1
	}
	for i, x := range s {
		if x == target {
			return i
		}
	}
	return -1
}

// Builder assembles a Seq instruction by instruction, propagating
// function labels and resolving forward branch targets by name.
type Builder struct {
	seq        Seq
	curLabel   string
	haveLabel  bool
	addr       uint64
	labels     map[string]*Inst // label name -> first instruction
	pendingRef map[*Inst]string // instruction -> unresolved branch target label

	pendingNewBlock bool
}

func NewBuilder() *Builder {
	return &Builder{labels: map[string]*Inst{}, pendingRef: map[*Inst]string{}}
}

// Label starts (or continues) a function labeled name at the next
// emitted instruction.
func (b *Builder) Label(name string) *Builder {
	b.curLabel = name
	b.haveLabel = true
	return b
}

// NewBlock marks the next emitted instruction with the synthetic
// "new block" label (§4.2 pass 1).
func (b *Builder) NewBlock() *Builder {
	b.pendingNewBlock = true
	return b
}

// Emit appends one instruction of the given family and annotations,
// with the given operands, at the next address (each fixture
// instruction occupies one synthetic byte of size 1 unless overridden
// via EmitSized). Returns the instruction so callers can wire
// branches to it.
func (b *Builder) Emit(family asm.Family, ann asm.Annotation, ops ...asm.Operand) *Inst {
	return b.EmitSized(family, 1, ann, ops...)
}

func (b *Builder) EmitSized(family asm.Family, size int, ann asm.Annotation, ops ...asm.Operand) *Inst {
	inst := &Inst{
		addr:   b.addr,
		size:   size,
		family: family,
		ops:    ops,
		ann:    ann,
	}
	if b.haveLabel {
		inst.funcLabel = b.curLabel
		inst.hasLabel = true
		if _, ok := b.labels[b.curLabel]; !ok {
			b.labels[b.curLabel] = inst
		}
		b.haveLabel = false
	} else if len(b.seq) > 0 {
		inst.funcLabel = b.seq[len(b.seq)-1].funcLabel
		inst.hasLabel = b.seq[len(b.seq)-1].hasLabel
	}
	if b.pendingNewBlock {
		inst.newBlock = true
		b.pendingNewBlock = false
	}
	b.addr += uint64(size)
	b.seq = append(b.seq, inst)
	return inst
}

// BranchTo sets inst's resolved branch target to target. Use when
// target is already known (a backward branch); for forward branches
// to a not-yet-emitted label, use BranchToLabel.
func (b *Builder) BranchTo(inst *Inst, target *Inst) {
	inst.branch = target
}

// BranchToLabel records that inst branches to the first instruction
// of the function labeled name, resolved at Build time (the label may
// not have been emitted yet).
func (b *Builder) BranchToLabel(inst *Inst, name string) {
	b.pendingRef[inst] = name
}

// Build finalizes the sequence, resolving every BranchToLabel
// reference. Panics if a referenced label was never emitted, since
// this is test-fixture wiring, not production input.
func (b *Builder) Build() Seq {
	for inst, name := range b.pendingRef {
		target, ok := b.labels[name]
		if !ok {
			panic(fmt.Sprintf("fixture: branch to undefined label %q", name))
		}
		inst.branch = target
	}
	return b.seq
}

// Reg builds a register operand in the fixture's own register
// namespace, unrelated to any real ISA encoding.
func Reg(direction asm.Direction, family uint8, name uint16) asm.Operand {
	return asm.Operand{Kind: asm.OperandReg, Direction: direction, Reg: asm.Reg{Family: family, Name: name}}
}

func Imm(v int64) asm.Operand {
	return asm.Operand{Kind: asm.OperandImm, Direction: asm.Src, Imm: v}
}

func Mem(base, index asm.Reg, scale uint8, offset int64) asm.Operand {
	return asm.Operand{Kind: asm.OperandMem, Direction: asm.Src, Mem: asm.Mem{Base: base, Index: index, Scale: scale, Offset: offset}}
}
