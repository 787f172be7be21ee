// Package x86 is a concrete arch.Arch/asm.Seq pair for x86-64,
// fulfilling the "Instructions (consumed)" and "Architecture
// (consumed)" contracts of §6 with a real decoder instead of a test
// fixture. Grounded on the teacher's obj/internal/asm/x86.go
// (DisasmX86_64, built on golang.org/x/arch/x86/x86asm) for the decode
// loop shape, generalized from that file's own lightweight Inst/Control
// abstraction to this module's richer asm.Instruction (per-operand
// direction, standardized-register support) since the flow, ssa and
// ddg packages all need that detail and the teacher's Inst didn't
// carry it.
package x86

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
)

const family uint8 = 1 // the only register family x86 produces

// Inst is one decoded x86-64 instruction.
type Inst struct {
	addr   uint64
	size   int
	family asm.Family
	ann    asm.Annotation
	ops    []asm.Operand
	dec    x86asm.Inst
	branch *Inst // resolved direct-branch target, if any

	funcLabel string
	hasLabel  bool
}

func (i *Inst) Addr() uint64                { return i.addr }
func (i *Inst) Size() int                   { return i.size }
func (i *Inst) Family() asm.Family          { return i.family }
func (i *Inst) Operands() []asm.Operand     { return i.ops }
func (i *Inst) Annotations() asm.Annotation { return i.ann }

func (i *Inst) SetAnnotation(a asm.Annotation)   { i.ann |= a }
func (i *Inst) ClearAnnotation(a asm.Annotation) { i.ann &^= a }

// Branch returns the instruction a direct JMP/Jcc/CALL resolved to
// within the decoded text, or false for an indirect branch (left for
// flow's indirect-branch solver), an unresolved external call, or a
// non-branch instruction.
func (i *Inst) Branch() (asm.Instruction, bool) {
	if i.branch == nil {
		return nil, false
	}
	return i.branch, true
}

func (i *Inst) FuncLabel() (string, bool) { return i.funcLabel, i.hasLabel }

// NewBlockLabel always reports false: this decoder has no external
// hint source distinct from jump targets and function boundaries.
func (i *Inst) NewBlockLabel() bool { return false }

func (i *Inst) String() string {
	return i.dec.String()
}

// Seq is a decoded instruction stream in address order, implementing
// asm.Seq.
type Seq []*Inst

func (s Seq) Len() int                    { return len(s) }
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

type fixup struct {
	inst   *Inst
	target uint64
}

// Disassemble decodes text (the bytes loaded at address pc, typically
// an ELF/PE .text section) into a Seq, classifying each instruction's
// Family/Annotation and resolving direct branch targets within text.
// funcLabels, if non-nil, maps a function-entry address to its label
// name; instructions before the first known label, or when funcLabels
// is nil, carry no label (flow.Build groups unlabeled runs under a
// single synthetic function per §4.2's "BEGIN_PROC" fallback).
func Disassemble(text []byte, pc uint64, funcLabels map[uint64]string) (Seq, map[uint64]string, error) {
	var out Seq
	labelOf := map[uint64]string{}
	addrOf := map[uint64]*Inst{}
	var fixups []fixup

	cur, have := "", false
	for len(text) > 0 {
		dec, err := x86asm.Decode(text, 64)
		size := dec.Len
		if err != nil || size == 0 {
			size = 1
		}

		inst := &Inst{addr: pc, size: size, family: asm.OTHER, ann: asm.STDCODE, dec: dec}
		if name, ok := funcLabels[pc]; ok {
			cur, have = name, true
		}
		if have {
			inst.funcLabel, inst.hasLabel = cur, true
			labelOf[pc] = cur
		}

		if err == nil {
			classify(dec, pc, inst, &fixups)
		}

		addrOf[pc] = inst
		out = append(out, inst)
		text = text[size:]
		pc += uint64(size)
	}

	for _, fx := range fixups {
		if target, ok := addrOf[fx.target]; ok {
			fx.inst.branch = target
		}
	}
	return out, labelOf, nil
}

// readModifyWrite is the read-modify-write integer ALU ops: their
// first operand is both read and written.
var readModifyWrite = map[x86asm.Op]bool{
	x86asm.ADD: true, x86asm.SUB: true, x86asm.ADC: true, x86asm.SBB: true,
	x86asm.AND: true, x86asm.OR: true, x86asm.XOR: true,
	x86asm.SHL: true, x86asm.SHR: true, x86asm.SAR: true, x86asm.SAL: true,
	x86asm.ROL: true, x86asm.ROR: true, x86asm.RCL: true, x86asm.RCR: true,
	x86asm.INC: true, x86asm.DEC: true, x86asm.NEG: true, x86asm.NOT: true,
	x86asm.XADD: true, x86asm.IMUL: true,
}

// readOnly is the pure-comparison ops: every operand is a read.
var readOnly = map[x86asm.Op]bool{
	x86asm.CMP: true, x86asm.TEST: true,
}

func classify(dec x86asm.Inst, pc uint64, inst *Inst, fixups *[]fixup) {
	switch dec.Op {
	case x86asm.JMP:
		inst.family, inst.ann = asm.OpJump, inst.ann|asm.JUMP
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		inst.family, inst.ann = asm.OpJump, inst.ann|asm.JUMP|asm.CONDITIONAL
	case x86asm.CALL:
		inst.family, inst.ann = asm.OpCall, inst.ann|asm.CALL
	case x86asm.RET, x86asm.LRET:
		inst.family, inst.ann = asm.OpReturn, inst.ann|asm.RTRN
		return
	case x86asm.MOV, x86asm.MOVZX, x86asm.MOVSX, x86asm.LEA:
		inst.family = asm.OpMov
	case x86asm.CMP, x86asm.TEST:
		inst.family = asm.OpCmp
	case x86asm.NOP:
		inst.family = asm.OpNop
	}

	inst.ops = operands(dec)

	if inst.family != asm.OpJump && inst.family != asm.OpCall {
		return
	}
	if rel, ok := dec.Args[0].(x86asm.Rel); ok {
		target := uint64(int64(pc) + int64(dec.Len) + int64(rel))
		*fixups = append(*fixups, fixup{inst, target})
	}
}

// operands builds the operand list with a direction heuristic: LEA and
// a single-destination MOV write only their first operand; CMP/TEST
// read every operand; the read-modify-write ALU ops both read and
// write their first operand; everything else defaults to the first
// operand being a destination and the rest sources, the common case
// for two-operand x86 instructions (§6 leaves precise per-opcode
// operand semantics to the architecture; this is a pragmatic, common-
// case classification, not an exhaustive instruction-set table).
func operands(dec x86asm.Inst) []asm.Operand {
	var ops []asm.Operand
	for idx, a := range dec.Args {
		if a == nil {
			break
		}
		dir := direction(dec.Op, idx)
		ops = append(ops, operand(a, dir))
	}
	return ops
}

func direction(op x86asm.Op, idx int) asm.Direction {
	switch {
	case readOnly[op]:
		return asm.Src
	case idx != 0:
		return asm.Src
	case readModifyWrite[op]:
		return asm.Both
	default:
		return asm.Dst
	}
}

// regOf wraps an x86asm.Reg as an asm.Reg, leaving the zero Reg (fails
// IsValid) for x86asm's own "no register" sentinel, so an absent
// Mem.Base/Index/Segment is correctly reported as absent rather than
// standardized as if it named a real register.
func regOf(r x86asm.Reg) asm.Reg {
	if r == 0 {
		return asm.Reg{}
	}
	return asm.Reg{Family: family, Name: uint16(r)}
}

func operand(a x86asm.Arg, dir asm.Direction) asm.Operand {
	switch v := a.(type) {
	case x86asm.Reg:
		return asm.Operand{Kind: asm.OperandReg, Direction: dir, Reg: regOf(v)}
	case x86asm.Mem:
		return asm.Operand{
			Kind:      asm.OperandMem,
			Direction: dir,
			Mem: asm.Mem{
				Segment: regOf(v.Segment),
				Base:    regOf(v.Base),
				Index:   regOf(v.Index),
				Scale:   v.Scale,
				Offset:  v.Disp,
			},
		}
	case x86asm.Imm:
		return asm.Operand{Kind: asm.OperandImm, Direction: asm.Src, Imm: int64(v)}
	default:
		return asm.Operand{Kind: asm.OperandImm, Direction: asm.Src}
	}
}

// Arch is the x86-64 arch.Arch: general-purpose sub-registers
// standardize to their 64-bit parent (§4.8's "largest-typed register
// in the aliasing family"), following x86asm.Reg's regular layout (16
// registers per width class, in the same relative order, except the
// 8-bit class which additionally has the four high-byte registers
// AH/CH/DH/BH aliasing the same parents as AL/CL/DL/BL).
type Arch struct{}

func (Arch) NumStdRegs() int { return 16 }

func (Arch) Standardize(r asm.Reg) arch.StdReg {
	reg := x86asm.Reg(r.Name)
	var idx uint8
	switch {
	case reg >= x86asm.AL && reg <= x86asm.R15B:
		i := uint8(reg - x86asm.AL)
		if i < 4 {
			idx = i
		} else {
			idx = i - 4
		}
	case reg >= x86asm.AX && reg <= x86asm.R15W:
		idx = uint8(reg - x86asm.AX)
	case reg >= x86asm.EAX && reg <= x86asm.R15L:
		idx = uint8(reg - x86asm.EAX)
	case reg >= x86asm.RAX && reg <= x86asm.R15:
		idx = uint8(reg - x86asm.RAX)
	default:
		// Non-general-purpose registers (xmm/flags/segment/...) each
		// get their own standardized identity, past the 16 GP slots.
		return arch.MakeStdReg(family, 16+uint8(reg))
	}
	return arch.MakeStdReg(family, idx)
}

// SysV AMD64 ABI argument/return registers.
var (
	argRegs = []arch.StdReg{
		arch.MakeStdReg(family, 7), // RDI
		arch.MakeStdReg(family, 6), // RSI
		arch.MakeStdReg(family, 2), // RDX
		arch.MakeStdReg(family, 1), // RCX
		arch.MakeStdReg(family, 8), // R8
		arch.MakeStdReg(family, 9), // R9
	}
	retRegs = []arch.StdReg{
		arch.MakeStdReg(family, 0), // RAX
	}
)

func (Arch) ArgRegs() []arch.StdReg { return argRegs }
func (Arch) RetRegs() []arch.StdReg { return retRegs }

var gpNames = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func (Arch) Name(r arch.StdReg) string {
	if n := r.Name(); n < 16 {
		return gpNames[n]
	}
	return fmt.Sprintf("x86.%d", r.Name())
}

// ImplicitSrc returns no architecture-implicit sources: a shift or
// rotate by CL is not reported here (the decoder lists CL as an
// explicit operand).
func (Arch) ImplicitSrc(inst asm.Instruction) []arch.StdReg {
	return nil
}

// ImplicitDst returns no architecture-implicit destinations: this
// package does not yet model flags or the RDX:RAX wide-multiply/divide
// pair, leaving DDG edges for those hazards to whatever the abstract
// Annotation/Family classification already captures.
func (Arch) ImplicitDst(inst asm.Instruction) []arch.StdReg {
	return nil
}

func (Arch) ISA() []string { return []string{"amd64"} }
