// Package asm defines the contract this core consumes for a decoded
// instruction stream: the Instruction interface, its annotation bitset,
// and its operand variants. Disassembly itself — turning bytes into
// Instructions — is out of scope; this package only names the shape a
// producer (a disassembler, a test fixture) must satisfy.
package asm

import "fmt"

// Family classifies an instruction's semantic role. The analysis passes
// only care about a handful of families; everything else is OTHER.
type Family uint8

const (
	OTHER Family = iota
	OpJump
	OpCall
	OpReturn
	OpMov
	OpCmp
	OpFMA
	OpFMS
	OpNop
)

func (f Family) String() string {
	switch f {
	case OpJump:
		return "JUMP"
	case OpCall:
		return "CALL"
	case OpReturn:
		return "RETURN"
	case OpMov:
		return "MOV"
	case OpCmp:
		return "CMP"
	case OpFMA:
		return "FMA"
	case OpFMS:
		return "FMS"
	case OpNop:
		return "NOP"
	default:
		return "OTHER"
	}
}

// Annotation is the per-instruction classification bitset described in
// §3 of the spec. The flow builder sets most of these; the indirect
// branch solver sets IBSOLVE/IBNOTSOLVE.
type Annotation uint32

const (
	BEGIN_BLOCK Annotation = 1 << iota
	BEGIN_PROC
	JUMP // set independently of Family, per §3's annotation bitset
	CALL
	RTRN
	CONDITIONAL
	HANDLER_EX
	EX
	EARLY_EX
	POTENTIAL_EX
	NATURAL_EX
	PATCHED
	PATCHMOV
	PATCHNEW
	STDCODE
	EXTFCT
	IBSOLVE
	IBNOTSOLVE
)

func (a Annotation) Has(f Annotation) bool { return a&f != 0 }

func (a Annotation) String() string {
	names := []struct {
		bit  Annotation
		name string
	}{
		{BEGIN_BLOCK, "BEGIN_BLOCK"}, {BEGIN_PROC, "BEGIN_PROC"},
		{JUMP, "JUMP"}, {CALL, "CALL"}, {RTRN, "RTRN"},
		{CONDITIONAL, "CONDITIONAL"}, {HANDLER_EX, "HANDLER_EX"},
		{EX, "EX"}, {EARLY_EX, "EARLY_EX"}, {POTENTIAL_EX, "POTENTIAL_EX"},
		{NATURAL_EX, "NATURAL_EX"}, {PATCHED, "PATCHED"},
		{PATCHMOV, "PATCHMOV"}, {PATCHNEW, "PATCHNEW"}, {STDCODE, "STDCODE"},
		{EXTFCT, "EXTFCT"}, {IBSOLVE, "IBSOLVE"}, {IBNOTSOLVE, "IBNOTSOLVE"},
	}
	s := ""
	for _, n := range names {
		if a.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "0"
	}
	return s
}

// Direction is the role an operand plays relative to the instruction
// that contains it.
type Direction uint8

const (
	Src Direction = iota
	Dst
	Both
)

// OperandKind discriminates the tagged Operand variants.
type OperandKind uint8

const (
	OperandReg OperandKind = iota
	OperandMem
	OperandImm
	OperandPtr
)

// Mem is the decomposed addressing-mode payload for a memory operand:
// seg:[base + index*scale + offset].
type Mem struct {
	Segment Reg
	Base    Reg
	Index   Reg
	Scale   uint8
	Offset  int64
}

// Reg is a physical register identifier as reported by the
// architecture; it is not yet standardized (see arch.Standardize).
type Reg struct {
	Family uint8
	Name   uint16
	Type   uint8
}

func (r Reg) IsValid() bool { return r.Family != 0 || r.Name != 0 || r.Type != 0 }

// Operand is a tagged union: Reg(r) | Mem{...} | Imm(i) | Ptr(p), per
// the §9 design note. Only the field matching Kind is meaningful.
type Operand struct {
	Kind      OperandKind
	Direction Direction
	Size      uint8

	Reg Reg
	Mem Mem
	Imm int64
	Ptr uint64
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandReg:
		return fmt.Sprintf("reg(%d:%d)", o.Reg.Family, o.Reg.Name)
	case OperandMem:
		return fmt.Sprintf("mem(base=%v,index=%v,scale=%d,off=%#x)", o.Mem.Base, o.Mem.Index, o.Mem.Scale, o.Mem.Offset)
	case OperandImm:
		return fmt.Sprintf("imm(%#x)", o.Imm)
	case OperandPtr:
		return fmt.Sprintf("ptr(%#x)", o.Ptr)
	default:
		return "?"
	}
}

// Instruction is the opaque decoded instruction this core consumes.
// Addr, Size, Family, Arch, Annotations and Operands are read-only
// views; SetAnnotation mutates only the annotation bitset, since that
// is the sole per-instruction state the analysis passes write back.
type Instruction interface {
	Addr() uint64
	Size() int
	Family() Family
	Operands() []Operand

	Annotations() Annotation
	SetAnnotation(Annotation)
	ClearAnnotation(Annotation)

	// Branch returns the instruction this one branches to, if its
	// target is statically known (a direct jump/call). ok is false
	// for indirect branches, returns, and non-branches.
	Branch() (target Instruction, ok bool)

	// FuncLabel returns the name of the function this instruction's
	// label claims to start or continue, and whether that label
	// exists. Non-entry instructions still report the label of their
	// enclosing function.
	FuncLabel() (name string, ok bool)

	// NewBlockLabel reports whether this instruction carries the
	// synthetic "new block" label (§4.2 pass 1): an external hint,
	// independent of jump targets or function boundaries, that a
	// block must start here.
	NewBlockLabel() bool
}

// Seq is the file-wide ordered sequence of instructions; it is the
// ground truth for "the next lexical instruction" per §3.
type Seq interface {
	Len() int
	At(i int) Instruction
	// IndexOf returns the sequence position of inst, or -1 if it is
	// not a member of this sequence.
	IndexOf(inst Instruction) int
}
