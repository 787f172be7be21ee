package ddg

import (
	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/path"
)

// blockInsns returns b's instructions in program order; virtual blocks
// contribute none.
func blockInsns(b *core.Block) []asm.Instruction {
	if b.Virtual {
		return nil
	}
	seq := b.Func.File.Seq
	out := make([]asm.Instruction, 0, b.NumInsts())
	for i := b.Start; i < b.End; i++ {
		out = append(out, seq.At(i))
	}
	return out
}

// pathInsns flattens a path (array of blocks) to its concatenated
// instruction list (get_path_insns).
func pathInsns(p []*core.Block) []asm.Instruction {
	var out []asm.Instruction
	for _, b := range p {
		out = append(out, blockInsns(b)...)
	}
	return out
}

// Block builds the DDG of a single block's instructions
// (lcore_block_getddg[_ext]).
func Block(b *core.Block, a arch.Arch, cfg Config) *Graph {
	return Build(blockInsns(b), a, cfg)
}

// ensureFuncPaths computes fn's paths if they haven't been already
// (get_obj_paths): unlike the C original, which frees paths it
// computed only for this call to avoid retaining memory it doesn't
// own, this keeps them cached on fn.Paths — Go's garbage collector
// makes the original's "free if we computed it" bookkeeping
// unnecessary, and a later caller asking for paths again gets them for
// free.
func ensureFuncPaths(fn *core.Function) {
	if !fn.PathsComputed {
		path.ForFunction(fn, 0)
	}
}

func ensureLoopPaths(l *core.Loop) {
	if !l.PathsComputed {
		path.ForLoop(l, 0)
	}
}

// FuncPaths returns one DDG per enumerated path through fn
// (lcore_fctpath_getddg[_ext]).
func FuncPaths(fn *core.Function, a arch.Arch, cfg Config) []*Graph {
	ensureFuncPaths(fn)
	out := make([]*Graph, len(fn.Paths))
	for i, p := range fn.Paths {
		out[i] = Build(pathInsns(p), a, cfg)
	}
	return out
}

// Func returns a single DDG for fn: a direct build if it has only one
// path, otherwise every path's edges are computed independently and
// merged into one graph (lcore_fct_getddg[_ext] / obj_getddg).
func Func(fn *core.Function, a arch.Arch, cfg Config) *Graph {
	ensureFuncPaths(fn)
	if len(fn.Paths) <= 1 {
		var insns []asm.Instruction
		if len(fn.Paths) == 1 {
			insns = pathInsns(fn.Paths[0])
		}
		return Build(insns, a, cfg)
	}
	paths := make([][]asm.Instruction, len(fn.Paths))
	for i, p := range fn.Paths {
		paths[i] = pathInsns(p)
	}
	return Merge(paths, a, cfg)
}

// LoopPaths returns one DDG per enumerated path through l's body
// (lcore_looppath_getddg[_ext]).
func LoopPaths(l *core.Loop, a arch.Arch, cfg Config) []*Graph {
	ensureLoopPaths(l)
	out := make([]*Graph, len(l.Paths))
	for i, p := range l.Paths {
		out[i] = Build(pathInsns(p), a, cfg)
	}
	return out
}

// Loop returns a single DDG for l's body, merging multiple paths the
// same way Func does (lcore_loop_getddg[_ext]).
func Loop(l *core.Loop, a arch.Arch, cfg Config) *Graph {
	ensureLoopPaths(l)
	if len(l.Paths) <= 1 {
		var insns []asm.Instruction
		if len(l.Paths) == 1 {
			insns = pathInsns(l.Paths[0])
		}
		return Build(insns, a, cfg)
	}
	paths := make([][]asm.Instruction, len(l.Paths))
	for i, p := range l.Paths {
		paths[i] = pathInsns(p)
	}
	return Merge(paths, a, cfg)
}

// Path builds the DDG of one already-enumerated path (array of blocks)
// (lcore_path_getddg[_ext]).
func Path(p []*core.Block, a arch.Arch, cfg Config) *Graph {
	return Build(pathInsns(p), a, cfg)
}
