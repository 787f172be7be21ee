package x86

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
)

// TestDisassembleResolvesDirectBranch decodes "jmp +0; ret" and checks
// the jmp's Branch() resolves to the ret instruction decoded right
// after it.
func TestDisassembleResolvesDirectBranch(t *testing.T) {
	text := []byte{0xeb, 0x00, 0xc3} // jmp $+2 (falls to ret); ret
	seq, _, err := Disassemble(text, 0x1000, nil)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if seq.Len() != 2 {
		t.Fatalf("got %d instructions, want 2", seq.Len())
	}
	jmp := seq[0]
	if jmp.Family() != asm.OpJump || !jmp.Annotations().Has(asm.JUMP) {
		t.Errorf("jmp: family=%v ann=%v, want OpJump/JUMP", jmp.Family(), jmp.Annotations())
	}
	target, ok := jmp.Branch()
	if !ok {
		t.Fatalf("jmp.Branch() ok=false, want a resolved target")
	}
	if target.Addr() != seq[1].Addr() {
		t.Errorf("jmp resolved to addr %#x, want %#x", target.Addr(), seq[1].Addr())
	}

	ret := seq[1]
	if ret.Family() != asm.OpReturn || !ret.Annotations().Has(asm.RTRN) {
		t.Errorf("ret: family=%v ann=%v, want OpReturn/RTRN", ret.Family(), ret.Annotations())
	}
	if len(ret.Operands()) != 0 {
		t.Errorf("ret has %d operands, want 0", len(ret.Operands()))
	}
}

// TestDisassembleCmpOperandsAreBothSrc checks that CMP's two register
// operands are both classified as sources, per the readOnly heuristic.
func TestDisassembleCmpOperandsAreBothSrc(t *testing.T) {
	text := []byte{0x48, 0x39, 0xd8} // cmp rax, rbx
	seq, _, err := Disassemble(text, 0, nil)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if seq.Len() != 1 {
		t.Fatalf("got %d instructions, want 1", seq.Len())
	}
	inst := seq[0]
	if inst.Family() != asm.OpCmp {
		t.Fatalf("family=%v, want OpCmp", inst.Family())
	}
	ops := inst.Operands()
	if len(ops) != 2 {
		t.Fatalf("got %d operands, want 2", len(ops))
	}
	for i, op := range ops {
		if op.Direction != asm.Src {
			t.Errorf("operand %d direction=%v, want Src", i, op.Direction)
		}
		if !op.Reg.IsValid() {
			t.Errorf("operand %d register is not valid", i)
		}
	}
}

// TestDisassembleFuncLabelPropagates checks a label attached to the
// first instruction of a run is reported by every instruction that
// follows it, until a new label appears.
func TestDisassembleFuncLabelPropagates(t *testing.T) {
	text := []byte{0xc3, 0xc3} // ret; ret
	labels := map[uint64]string{0x2000: "f"}
	seq, labelOf, err := Disassemble(text, 0x2000, labels)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	for i, inst := range seq {
		name, ok := inst.FuncLabel()
		if !ok || name != "f" {
			t.Errorf("instruction %d FuncLabel() = (%q, %v), want (\"f\", true)", i, name, ok)
		}
	}
	if labelOf[0x2000] != "f" {
		t.Errorf("labelOf[0x2000] = %q, want \"f\"", labelOf[0x2000])
	}
}

// TestRegOfAbsentRegisterIsInvalid checks the zero x86asm register
// (no base/index/segment) standardizes to an invalid asm.Reg, so a
// memory operand with no index register is never mistaken for one
// with a real index.
func TestRegOfAbsentRegisterIsInvalid(t *testing.T) {
	if regOf(0).IsValid() {
		t.Errorf("regOf(0) is valid, want invalid")
	}
	if !regOf(x86asm.RAX).IsValid() {
		t.Errorf("regOf(RAX) is invalid, want valid")
	}
}

// TestStandardizeSubRegistersShareParent checks that AL and RAX
// standardize to the same slot, and that the high-byte register BH
// standardizes to the same slot as BL (both alias RBX), distinct from
// AL's.
func TestStandardizeSubRegistersShareParent(t *testing.T) {
	a := Arch{}
	al := a.Standardize(regOf(x86asm.AL))
	rax := a.Standardize(regOf(x86asm.RAX))
	if al != rax {
		t.Errorf("AL standardizes to %v, RAX to %v, want equal", al, rax)
	}

	bl := a.Standardize(regOf(x86asm.BL))
	bh := a.Standardize(regOf(x86asm.BH))
	if bl != bh {
		t.Errorf("BL standardizes to %v, BH to %v, want equal (both alias RBX)", bl, bh)
	}
	if bl == al {
		t.Errorf("BL and AL standardized to the same slot %v, want distinct", bl)
	}
}

func TestArgRetRegs(t *testing.T) {
	a := Arch{}
	if len(a.ArgRegs()) == 0 {
		t.Errorf("ArgRegs() is empty")
	}
	ret := a.RetRegs()
	if len(ret) != 1 {
		t.Fatalf("got %d return registers, want 1", len(ret))
	}
	if a.Name(ret[0]) != "rax" {
		t.Errorf("RetRegs()[0] named %q, want \"rax\"", a.Name(ret[0]))
	}
}

var _ arch.Arch = Arch{}
