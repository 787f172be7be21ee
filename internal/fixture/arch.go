package fixture

import (
	"fmt"

	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
)

// Arch is a minimal, configurable arch.Arch for tests: registers
// standardize to themselves (family, name) unless Alias remaps them,
// and argument/return/implicit register sets are whatever the test
// wires up.
type Arch struct {
	Args, Rets []arch.StdReg

	// Alias, if set, overrides the default identity standardization
	// for a physical register, letting a test model two registers
	// that fold into the same standardized identity (§4.8).
	Alias func(r asm.Reg) (arch.StdReg, bool)

	// ImplSrc and ImplDst key by instruction family, the most a test
	// fixture needs to distinguish.
	ImplSrc, ImplDst map[asm.Family][]arch.StdReg

	NReg int
}

func (a *Arch) NumStdRegs() int { return a.NReg }

func (a *Arch) Standardize(r asm.Reg) arch.StdReg {
	if a.Alias != nil {
		if std, ok := a.Alias(r); ok {
			return std
		}
	}
	return arch.MakeStdReg(r.Family, uint8(r.Name))
}

func (a *Arch) ArgRegs() []arch.StdReg { return a.Args }
func (a *Arch) RetRegs() []arch.StdReg { return a.Rets }

func (a *Arch) ImplicitSrc(inst asm.Instruction) []arch.StdReg {
	return a.ImplSrc[inst.Family()]
}

func (a *Arch) ImplicitDst(inst asm.Instruction) []arch.StdReg {
	return a.ImplDst[inst.Family()]
}

func (a *Arch) Name(r arch.StdReg) string {
	return fmt.Sprintf("r%d.%d", r.Family(), r.Name())
}

func (a *Arch) ISA() []string { return nil }
