// Package arch defines the "Architecture (consumed)" contract of §6:
// register naming, the register-standardization rule, argument/return
// register sets, implicit source/destination lookup per opcode, and the
// processor handle used only to pick a latency function (§4.10). Like
// package asm, this names an external contract rather than implementing
// an ISA; a concrete architecture (x86-64, ARM64, ...) supplies one.
package arch

import "github.com/aclements/maqcore/asm"

// StdReg is a standardized register identity: family*256+name, per
// §4.8. Two physical registers that alias (e.g. an XMM register and
// the low half of its YMM superregister) standardize to the same
// StdReg.
type StdReg uint32

func MakeStdReg(family, name uint8) StdReg {
	return StdReg(uint32(family)<<8 | uint32(name))
}

func (r StdReg) Family() uint8 { return uint8(r >> 8) }
func (r StdReg) Name() uint8   { return uint8(r) }

// Arch is the architecture handle attached to a file (§3) and consumed
// throughout analysis.
type Arch interface {
	// NumStdRegs returns R, the number of standardized registers (§4.8).
	NumStdRegs() int

	// Standardize maps a physical register to its canonical
	// representative. The representative is the largest-typed
	// register in the aliasing family.
	Standardize(r asm.Reg) StdReg

	// ArgRegs and RetRegs are the architecture's calling-convention
	// argument and return registers, used by live-register analysis
	// (§4.8) to model CALL instructions.
	ArgRegs() []StdReg
	RetRegs() []StdReg

	// ImplicitSrc and ImplicitDst return the architecture-implicit
	// source/destination registers for an instruction's opcode (e.g.
	// a shift implicitly reading CL, a multiply implicitly writing
	// the high half of the accumulator). Both may be empty.
	ImplicitSrc(inst asm.Instruction) []StdReg
	ImplicitDst(inst asm.Instruction) []StdReg

	// Name returns a human-readable name for a standardized register,
	// for diagnostics and dot dumps.
	Name(r StdReg) string

	// ISA reports the instruction-set identifiers this file requires
	// (e.g. "sse2", "avx2"); informational only.
	ISA() []string
}

// Microarch is the processor/micro-architecture handle attached to a
// file; it is consulted only to select a latency function for DDG
// edges (§4.10, §6).
type Microarch interface {
	Name() string

	// Latency returns the {min,max} cycle latency of a dependency
	// from src to dst. Architectures with a late-forwarding FMA/FMS
	// chain special-case that pair.
	Latency(src, dst asm.Instruction) (min, max int)
}

// ZeroLatency is the default Microarch: every edge costs (0, 0). Used
// when no processor handle is available.
type ZeroLatency struct{}

func (ZeroLatency) Name() string { return "unknown" }
func (ZeroLatency) Latency(asm.Instruction, asm.Instruction) (int, int) {
	return 0, 0
}
