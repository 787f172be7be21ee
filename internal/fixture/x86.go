package fixture

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/aclements/maqcore/asm"
)

// x86Family is the register family tag used for Operand.Reg.Family
// when the operand came from real x86-64 decoding. It is the same
// family number the tests use for synthetic Reg/Mem operands, so the
// family alone does not tell the two namespaces apart.
const x86Family uint8 = 1

type x86Fixup struct {
	inst   *Inst
	target uint64
}

// DecodeX86 disassembles text (loaded at pc) with x86asm and wraps
// each decoded instruction as an *Inst, classifying Family/Annotation
// the same way the flow builder expects a real disassembler to:
// JMP/Jcc set Family=OpJump and Annotation JUMP (conditional variants
// also set CONDITIONAL), CALL sets OpCall/CALL, RET sets
// OpReturn/RTRN. funcLabels maps an instruction's address to the
// function label starting there, mirroring the teacher's
// DisasmX86_64 (obj/internal/asm/x86.go) but producing this core's
// Instruction contract instead of the teacher's own.
func DecodeX86(text []byte, pc uint64, funcLabels map[uint64]string) (Seq, error) {
	var out Seq
	addrOf := map[uint64]*Inst{}
	var fixups []x86Fixup

	curLabel := ""
	haveLabel := false

	for len(text) > 0 {
		dec, err := x86asm.Decode(text, 64)
		size := dec.Len
		if err != nil || size == 0 {
			size = 1
		}

		inst := &Inst{addr: pc, size: size, ann: asm.STDCODE}
		if name, ok := funcLabels[pc]; ok {
			curLabel, haveLabel = name, true
		}
		if haveLabel {
			inst.funcLabel = curLabel
			inst.hasLabel = true
		}

		if err == nil {
			classifyX86(dec, pc, inst, &fixups)
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
	return out, nil
}

func classifyX86(dec x86asm.Inst, pc uint64, inst *Inst, fixups *[]x86Fixup) {
	conditional := false
	switch dec.Op {
	case x86asm.JMP:
		inst.family = asm.OpJump
		inst.ann |= asm.JUMP
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		inst.family = asm.OpJump
		inst.ann |= asm.JUMP | asm.CONDITIONAL
		conditional = true
	case x86asm.CALL:
		inst.family = asm.OpCall
		inst.ann |= asm.CALL
	case x86asm.RET, x86asm.LRET:
		inst.family = asm.OpReturn
		inst.ann |= asm.RTRN
		return
	case x86asm.MOV, x86asm.MOVZX, x86asm.MOVSX:
		inst.family = asm.OpMov
	case x86asm.CMP:
		inst.family = asm.OpCmp
	case x86asm.NOP:
		inst.family = asm.OpNop
	default:
		return
	}
	_ = conditional

	inst.ops = x86Operands(dec)

	if inst.family != asm.OpJump && inst.family != asm.OpCall {
		return
	}
	if rel, ok := dec.Args[0].(x86asm.Rel); ok {
		target := uint64(int64(pc) + int64(dec.Len) + int64(rel))
		*fixups = append(*fixups, x86Fixup{inst, target})
	}
}

func x86Operands(dec x86asm.Inst) []asm.Operand {
	var ops []asm.Operand
	for _, a := range dec.Args {
		if a == nil {
			break
		}
		switch v := a.(type) {
		case x86asm.Reg:
			ops = append(ops, asm.Operand{Kind: asm.OperandReg, Reg: asm.Reg{Family: x86Family, Name: uint16(v)}})
		case x86asm.Mem:
			ops = append(ops, asm.Operand{
				Kind: asm.OperandMem,
				Mem: asm.Mem{
					Segment: asm.Reg{Family: x86Family, Name: uint16(v.Segment)},
					Base:    asm.Reg{Family: x86Family, Name: uint16(v.Base)},
					Index:   asm.Reg{Family: x86Family, Name: uint16(v.Index)},
					Scale:   v.Scale,
					Offset:  v.Disp,
				},
			})
		case x86asm.Imm:
			ops = append(ops, asm.Operand{Kind: asm.OperandImm, Imm: int64(v)})
		}
	}
	return ops
}
