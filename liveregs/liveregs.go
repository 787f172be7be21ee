// Package liveregs computes live-register sets (C8) via the classic
// backward dataflow equations from Aho/Lam/Sethi/Ullman, grounded on
// original_source/src/analyze/lcore_live_registers.c. The fixed-point
// iteration driver borrows the postorder-pass shape of the teacher's
// fkuehnel-golang-cfg/go-code/regalloc.go computeLive* family (walk
// blocks in postorder, repeat until no set changes), while the
// per-register USE/DEF extraction follows the lcore source's operand
// walk exactly.
package liveregs

import (
	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/graph"
)

const infoCacheKind = "liveregs.info"

// RegSet is a set of standardized registers (§4.8).
type RegSet map[arch.StdReg]bool

// Has reports whether r is a member.
func (s RegSet) Has(r arch.StdReg) bool { return s[r] }

// Add inserts r, reporting whether it was not already present.
func (s RegSet) Add(r arch.StdReg) bool {
	if s[r] {
		return false
	}
	s[r] = true
	return true
}

// Info is a block's USE/DEF/IN/OUT sets.
type Info struct {
	Use, Def RegSet
	In, Out  RegSet
}

func newInfo() *Info {
	return &Info{Use: RegSet{}, Def: RegSet{}, In: RegSet{}, Out: RegSet{}}
}

// BlockInfo returns the live-register sets computed for b by the most
// recent Compute over its function, and whether they exist.
func BlockInfo(b *core.Block) (*Info, bool) {
	if b.Func == nil || b.Func.File == nil {
		return nil, false
	}
	return core.Cache[*Info](b.Func.File, b, infoCacheKind)
}

// ComputeUseDefInBlock walks b's instructions computing its USE and DEF
// sets, standardizing every register through a. It is published
// standalone (not just as part of Compute's fixed point) for SSA and
// other consumers that need a block's local USE/DEF without running
// the whole-function iteration (§4.8's "published for SSA and other
// consumers").
func ComputeUseDefInBlock(b *core.Block, a arch.Arch) (use, def RegSet) {
	use, def = RegSet{}, RegSet{}
	accumulate(b, a, use, def)
	return use, def
}

// accumulate folds b's USE/DEF into the caller-supplied sets, so the
// entry block's argument-register seeding (done by the caller before
// this runs) can suppress a same-register DEF the same way the lcore
// source's shared UseDef array does.
func accumulate(b *core.Block, a arch.Arch, use, def RegSet) {
	if b.Virtual || b.Func == nil || b.Func.File == nil {
		return
	}
	seq := b.Func.File.Seq
	for i := b.Start; i < b.End; i++ {
		inst := seq.At(i)

		if inst.Annotations().Has(asm.CALL) {
			for _, r := range a.ArgRegs() {
				if !def.Has(r) {
					use.Add(r)
				}
			}
			for _, r := range a.RetRegs() {
				if !use.Has(r) {
					def.Add(r)
				}
			}
		}

		for _, op := range inst.Operands() {
			switch op.Kind {
			case asm.OperandReg:
				if op.Direction == asm.Src || op.Direction == asm.Both {
					r := a.Standardize(op.Reg)
					if !def.Has(r) {
						use.Add(r)
					}
				}
			case asm.OperandMem:
				if op.Mem.Base.IsValid() {
					r := a.Standardize(op.Mem.Base)
					if !def.Has(r) {
						use.Add(r)
					}
				}
				if op.Mem.Index.IsValid() {
					r := a.Standardize(op.Mem.Index)
					if !def.Has(r) {
						use.Add(r)
					}
				}
			}
		}
		for _, r := range a.ImplicitSrc(inst) {
			if !def.Has(r) {
				use.Add(r)
			}
		}

		for _, op := range inst.Operands() {
			if op.Kind == asm.OperandReg && (op.Direction == asm.Dst || op.Direction == asm.Both) {
				r := a.Standardize(op.Reg)
				if !use.Has(r) {
					def.Add(r)
				}
			}
		}
		for _, r := range a.ImplicitDst(inst) {
			if !use.Has(r) {
				def.Add(r)
			}
		}
	}
}

// Compute runs live-register analysis over every block of fn,
// publishing each block's Info via BlockInfo. Re-running it simply
// recomputes and overwrites the cache; callers that mutate the CFG
// must re-invoke it themselves (§5).
func Compute(fn *core.Function, a arch.Arch) {
	if fn == nil || fn.File == nil {
		return
	}

	infos := make(map[*core.Block]*Info, len(fn.Blocks))
	for _, b := range fn.Blocks {
		infos[b] = newInfo()
	}

	// Seed the entry block's USE with the architecture's argument
	// registers before any instruction is walked, so a same-register
	// DEF inside the entry block is suppressed exactly as the lcore
	// source's shared UseDef array suppresses it.
	if fn.Entry != nil {
		entry := infos[fn.Entry]
		for _, r := range a.ArgRegs() {
			if !entry.Def.Has(r) {
				entry.Use.Add(r)
			}
		}
	}
	for _, b := range fn.Blocks {
		accumulate(b, a, infos[b].Use, infos[b].Def)
	}

	// Seed OUT with the architecture's return registers for every
	// block that contains an instruction annotated EX (AMD64 System
	// V ABI convention: a register that survives to an EX instruction
	// is live out as a return value).
	for _, b := range fn.Blocks {
		if b.Virtual {
			continue
		}
		seq := b.Func.File.Seq
		for i := b.Start; i < b.End; i++ {
			if seq.At(i).Annotations().Has(asm.EX) {
				out := infos[b].Out
				for _, r := range a.RetRegs() {
					out.Add(r)
				}
				break
			}
		}
	}

	order := postorder(fn)
	for changed := true; changed; {
		changed = false
		for _, b := range order {
			info := infos[b]

			for _, succ := range b.SuccBlocks() {
				sin := infos[succ].In
				for r := range sin {
					info.Out.Add(r)
				}
			}

			for r := range info.Use {
				if info.In.Add(r) {
					changed = true
				}
			}
			for r := range info.Out {
				if !info.Def.Has(r) {
					if info.In.Add(r) {
						changed = true
					}
				}
			}
		}
	}

	for b, info := range infos {
		core.SetCache(fn.File, b, infoCacheKind, info)
	}
}

// postorder returns fn's blocks in postorder from its entry (the
// natural iteration order for a backward dataflow problem, per the
// teacher's computeLive* family), falling back to declaration order
// for blocks unreachable from the entry or when there is no entry.
func postorder(fn *core.Function) []*core.Block {
	if fn.Entry == nil || fn.CFG == nil {
		return append([]*core.Block{}, fn.Blocks...)
	}
	ids := graph.PostOrder(fn.CFG, fn.Entry.Node())
	seen := make(map[*core.Block]bool, len(ids))
	order := make([]*core.Block, 0, len(fn.Blocks))
	for _, id := range ids {
		b := fn.CFG.Node(id)
		order = append(order, b)
		seen[b] = true
	}
	for _, b := range fn.Blocks {
		if !seen[b] {
			order = append(order, b)
		}
	}
	return order
}
