// Package flow builds the control-flow graph and call graph from an
// annotated instruction stream (C2), including indirect-branch
// resolution (C3). It is a two-pass construction grounded on
// original_source/src/analyze/lcore_flow.c, expressed in the style of
// the teacher's obj/internal/asm.BasicBlocks: discover block starts in
// a first pass, then wire successor/predecessor edges in a second.
package flow

import (
	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/internal/diag"
	"github.com/aclements/maqcore/internal/fileimage"
	"github.com/aclements/maqcore/internal/graph"
)

// Config configures the flow builder with the external collaborators
// named in §6: the exit-function name list, the file's architecture
// handle, and an optional byte-reader for indirect-branch resolution.
type Config struct {
	Arch arch.Arch
	// ExitFuncNames are project-level "exit" functions (longjmp,
	// abort, ...). A CALL to one of these is annotated HANDLER_EX
	// and treated as a terminator.
	ExitFuncNames []string
	// Image, if non-nil, lets the indirect-branch solver read jump
	// table entries out of the file's data sections.
	Image fileimage.Reader
	Log   *diag.Logger
}

func (c Config) log() *diag.Logger {
	if c.Log != nil {
		return c.Log
	}
	return diag.Default
}

// isExitFunc reports whether name matches one of cfg's exit functions,
// comparing either exactly or up to an external-label suffix (§4.2:
// "comparing either equal or equal up to an external-label suffix").
// MAQAO's external labels are conventionally suffixed "@plt" or
// "@got"; we strip the same class of suffix here.
func isExitFunc(name string, exitNames []string) bool {
	base := externalBase(name)
	for _, want := range exitNames {
		if name == want || base == want {
			return true
		}
	}
	return false
}

func externalBase(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '@' {
			return name[:i]
		}
	}
	return name
}

// Build runs the flow builder's pass 1 (classification), pass 2
// (graph construction), the patch-consolidation post-pass, and
// finally the indirect-branch solver, setting StageFlow on success.
// Re-entering an already-built file is a no-op per §5.
func Build(cfg Config, seq asm.Seq) (f *core.File, err error) {
	f = core.NewFile(seq)
	return f, BuildInto(cfg, f)
}

// BuildInto runs the flow builder on an existing File (for callers
// that assemble File incrementally, e.g. tests), honoring the
// idempotency flag.
func BuildInto(cfg Config, f *core.File) (err error) {
	if f.Done(core.StageFlow) {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(diag.FatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()

	classify(cfg, f.Seq)
	b := &builder{cfg: cfg, f: f, blockAt: map[int]*core.Block{}}
	b.constructPass()
	markPadding(f)
	b.consolidatePatches()

	for _, fn := range f.Functions {
		solve(cfg, fn)
	}
	removePaddingEdges(f)

	f.MarkDone(core.StageFlow)
	return nil
}

// classify is pass 1 (§4.2): mark BEGIN_BLOCK/BEGIN_PROC/HANDLER_EX
// annotations without touching the graph.
func classify(cfg Config, seq asm.Seq) {
	var curFunc string
	haveFunc := false
	for i := 0; i < seq.Len(); i++ {
		inst := seq.At(i)
		ann := inst.Annotations()
		if !ann.Has(asm.STDCODE) && !ann.Has(asm.PATCHED) {
			continue
		}
		if ann.Has(asm.EXTFCT) {
			continue
		}

		if ann.Has(asm.JUMP) && !ann.Has(asm.RTRN) {
			if target, ok := inst.Branch(); ok {
				target.SetAnnotation(asm.BEGIN_BLOCK)
			}
		}
		if inst.NewBlockLabel() {
			inst.SetAnnotation(asm.BEGIN_BLOCK)
		}

		if name, ok := inst.FuncLabel(); ok {
			if !haveFunc || name != curFunc {
				inst.SetAnnotation(asm.BEGIN_PROC)
				curFunc = name
				haveFunc = true
			}
		}

		if ann.Has(asm.CALL) {
			if target, ok := inst.Branch(); ok {
				if name, ok := target.FuncLabel(); ok && isExitFunc(name, cfg.ExitFuncNames) {
					inst.SetAnnotation(asm.HANDLER_EX)
				}
			}
		}
	}
}

// builder carries pass-2 state.
type builder struct {
	cfg Config
	f   *core.File

	curFunc *core.Function
	curBlk  *core.Block
	prev    asm.Instruction

	// blockAt maps an instruction's file-sequence index to the block
	// it starts, for jump-target resolution within a function.
	blockAt map[int]*core.Block

	// steals records a jump that crossed a function boundary because
	// one end was PATCHED: blk is the block materialized in the jump's
	// target function, neighbor is the block the jump came from. A
	// function's CFG graph is private to that function, so this edge
	// can't be recorded directly in either end's graph until the
	// post-pass decides which function blk ultimately belongs to
	// (§4.2 post-pass); consolidatePatches carries it as this
	// out-of-band pair instead, the closest equivalent this core has
	// to the original's single shared graph always having both
	// directions available.
	steals []steal
}

type steal struct {
	blk      *core.Block
	neighbor *core.Block
}

// forcesNewBlock reports whether inst's annotations mean "the next
// instruction starts a new block" (§4.2: previous was JUMP|RTRN|CALL).
func forcesNewBlock(ann asm.Annotation) bool {
	return ann.Has(asm.JUMP) || ann.Has(asm.RTRN) || ann.Has(asm.CALL)
}

// fallsThrough reports whether control can reach the lexically next
// instruction after inst (§4.2: link unless the previous instruction
// was (JUMP ∨ RTRN ∨ HANDLER_EX) without CONDITIONAL).
func fallsThrough(ann asm.Annotation) bool {
	terminal := ann.Has(asm.JUMP) || ann.Has(asm.RTRN) || ann.Has(asm.HANDLER_EX)
	return !(terminal && !ann.Has(asm.CONDITIONAL))
}

func (b *builder) constructPass() {
	seq := b.f.Seq

	for i := 0; i < seq.Len(); i++ {
		inst := seq.At(i)
		ann := inst.Annotations()
		if !ann.Has(asm.STDCODE) && !ann.Has(asm.PATCHED) {
			continue
		}

		if ann.Has(asm.BEGIN_PROC) {
			name, ok := inst.FuncLabel()
			if !ok {
				diag.Fatalf("instruction at index %d begins a procedure with no function label", i)
			}
			b.curFunc = b.f.FuncByLabel(name)
			b.curBlk = nil
			b.prev = nil
		}
		if b.curFunc == nil {
			// §4.2 "unexpected absence": the first code instruction
			// of the file carries no function label.
			diag.Fatalf("instruction at index %d has no enclosing function", i)
		}

		newBlock := ann.Has(asm.BEGIN_BLOCK) || ann.Has(asm.BEGIN_PROC) ||
			(b.prev != nil && forcesNewBlock(b.prev.Annotations()))

		if newBlock || b.curBlk == nil {
			b.startBlock(i)
		}

		b.handleControl(inst, ann)
		b.prev = inst
	}
	if b.curBlk != nil {
		b.curBlk.End = seq.Len()
	}
}

// startBlock closes the current block at index i and opens a new one,
// linking a fall-through edge if the previous instruction allows it.
func (b *builder) startBlock(i int) {
	if blk, ok := b.blockAt[i]; ok && blk.Func == b.curFunc {
		b.closeAndLink(i, blk)
		b.curBlk = blk
		return
	}

	blk := b.curFunc.NewBlock()
	blk.Start = i
	if b.curFunc.Entry == nil {
		b.curFunc.Entry = blk
	}
	b.closeAndLink(i, blk)
	b.curBlk = blk
	b.blockAt[i] = blk
}

func (b *builder) closeAndLink(i int, next *core.Block) {
	prev := b.curBlk
	if prev == nil {
		return
	}
	prev.End = i
	if b.prev != nil && fallsThrough(b.prev.Annotations()) {
		b.curFunc.AddCFGEdge(prev, next, b.prev)
	}
}

func (b *builder) handleControl(inst asm.Instruction, ann asm.Annotation) {
	switch {
	case ann.Has(asm.JUMP):
		target, ok := inst.Branch()
		if !ok {
			// Unresolvable indirect jump: left pending for the
			// indirect-branch solver (§4.2, §4.3).
			return
		}
		b.wireBranch(inst, target, false)

	case ann.Has(asm.CALL):
		target, ok := inst.Branch()
		if !ok {
			return // unresolved callee left pending
		}
		b.wireBranch(inst, target, true)
	}
}

// wireBranch resolves a JUMP/CALL target instruction to its block,
// creating the block (splitting an existing one) if needed, and adds
// the appropriate CFG or call-graph edge (§4.2).
func (b *builder) wireBranch(origin, target asm.Instruction, isCall bool) {
	seq := b.f.Seq
	ti := seq.IndexOf(target)
	if ti < 0 {
		return
	}

	tname, _ := target.FuncLabel()

	if isCall {
		addCGEdge(b.f, b.curFunc, b.f.FuncByLabel(tname))
		return
	}

	sameFunc := tname == b.curFunc.Name
	if sameFunc {
		tb := b.blockAtOrSplit(b.curFunc, ti)
		b.curFunc.AddCFGEdge(b.curBlk, tb, origin)
		return
	}

	// Cross-function jump. If either end is patched, or the jump is a
	// trampoline into patched code, the target block is materialized
	// in the jump's own function and queued for the post-pass to
	// decide ownership; otherwise record it as a tail-call-shaped
	// call-graph edge only (§4.2).
	if origin.Annotations().Has(asm.PATCHED) || target.Annotations().Has(asm.PATCHED) || isTrampoline(target) {
		targetFunc := b.f.FuncByLabel(tname)
		tb := b.blockAtOrSplit(targetFunc, ti)
		b.steals = append(b.steals, steal{blk: tb, neighbor: b.curBlk})
		return
	}
	addCGEdge(b.f, b.curFunc, b.f.FuncByLabel(tname))
}

// isTrampoline reports whether target is itself an unconditional JUMP
// whose own resolved target lands in patched code: MAQAO treats such a
// jump the same as one landing directly on a PATCHED instruction
// (build_graph_jump's "Trampoline detected" case, lcore_flow.c:400-410).
func isTrampoline(target asm.Instruction) bool {
	ann := target.Annotations()
	if !ann.Has(asm.JUMP) || ann.Has(asm.RTRN) {
		return false
	}
	inner, ok := target.Branch()
	if !ok {
		return false
	}
	return inner.Annotations().Has(asm.PATCHED)
}

// blockAtOrSplit returns the block starting exactly at sequence index
// ti within fn, splitting an existing block if ti falls in its
// middle. fn may differ from the function currently under
// construction, for cross-function jump targets.
func (b *builder) blockAtOrSplit(fn *core.Function, ti int) *core.Block {
	if blk, ok := b.blockAt[ti]; ok {
		return blk
	}
	for _, blk := range fn.Blocks {
		if blk.Virtual {
			continue
		}
		if ti > blk.Start && ti < blk.End {
			tail := splitBlock(blk, ti)
			b.blockAt[ti] = tail
			return tail
		}
	}
	// Forward reference into code not yet visited by the main loop:
	// mark it so the main loop starts a block there when it arrives,
	// and hand back a placeholder block meanwhile.
	b.f.Seq.At(ti).SetAnnotation(asm.BEGIN_BLOCK)
	blk := fn.NewBlock()
	blk.Start = ti
	blk.End = ti
	b.blockAt[ti] = blk
	return blk
}

// splitBlock splits blk at index at (blk.Start < at < blk.End),
// producing a new tail block [at, blk.End) and shrinking blk to
// [blk.Start, at). blk's successor edges move to the tail; a new
// fall-through edge from blk to the tail is added.
func splitBlock(blk *core.Block, at int) *core.Block {
	fn := blk.Func
	tail := fn.NewBlock()
	tail.Start = at
	tail.End = blk.End

	succs := blk.Succs()
	dests := make([]*core.Block, len(succs))
	origins := make([]asm.Instruction, len(succs))
	for i, eid := range succs {
		dests[i] = fn.CFG.Node(fn.CFG.To(eid))
		origins[i] = fn.CFG.Edge(eid).Origin
	}
	for _, eid := range succs {
		fn.CFG.RemoveEdge(eid)
	}
	for i := range dests {
		fn.AddCFGEdge(tail, dests[i], origins[i])
	}

	blk.End = at
	fn.AddCFGEdge(blk, tail, nil)
	return tail
}

// consolidatePatches runs the §4.2 post-pass: every block a patched
// jump reached across a function boundary is stolen unconditionally
// into the function of any CFG neighbor outside its present (patch)
// function — predecessors first, then the cross-function jumps that
// queued it, then successors — mirroring steal_block and
// find_stealing_function (lcore_flow.c:71-167). A block with no such
// neighbor anywhere (which cannot happen for a block reached only
// through a queued jump, since that jump is itself a foreign
// neighbor) would simply stay where constructPass first placed it.
func (b *builder) consolidatePatches() {
	neighbors := map[*core.Block][]*core.Block{}
	var order []*core.Block
	for _, st := range b.steals {
		if neighbors[st.blk] == nil {
			order = append(order, st.blk)
		}
		neighbors[st.blk] = append(neighbors[st.blk], st.neighbor)
	}

	pending := map[*core.Block]bool{}
	for _, blk := range order {
		pending[blk] = true
	}
	for _, blk := range order {
		delete(pending, blk)
		if fn := findStealingFunction(blk, neighbors[blk]); fn != nil {
			b.reown(blk, fn, neighbors[blk], pending)
		}
	}

	removeMisownedEdges(b.f)
}

// findStealingFunction returns the function of the first CFG neighbor
// of blk — checking real predecessors, then the patched-jump
// neighbors that queued blk for stealing (this core's per-function
// CFG graphs can't represent a not-yet-decided cross-function edge
// directly the way the original's single shared graph does, so these
// are tracked out of band instead of as real edges), then real
// successors — whose function differs from blk's own; nil if every
// neighbor still agrees with it (find_stealing_function,
// lcore_flow.c:140-167).
func findStealingFunction(blk *core.Block, neighbors []*core.Block) *core.Function {
	for _, p := range blk.PredBlocks() {
		if p.Func != blk.Func {
			return p.Func
		}
	}
	for _, n := range neighbors {
		if n.Func != blk.Func {
			return n.Func
		}
	}
	for _, s := range blk.SuccBlocks() {
		if s.Func != blk.Func {
			return s.Func
		}
	}
	return nil
}

// reown steals blk into fn: moves its bookkeeping and CFG node there
// (core.Function.AdoptBlock, which also performs the entry fixup and
// rewrites blk's own cross-function edges into call-graph edges, per
// steal_block lcore_flow.c:71-133), then wires the patched-jump
// edge(s) that queued blk in the first place now that both ends have
// a settled function — skipping a neighbor whose own steal decision
// is still pending this pass, the closest analogue this architecture
// has to the original's LABEL_PATCHMOV landing-function exception
// (lcore_flow.c:103-125).
func (b *builder) reown(blk *core.Block, fn *core.Function, neighbors []*core.Block, pending map[*core.Block]bool) {
	droppedOut, droppedIn := fn.AdoptBlock(blk)
	for _, other := range droppedOut {
		addCGEdge(b.f, fn, other.Func)
	}
	for _, other := range droppedIn {
		addCGEdge(b.f, other.Func, fn)
	}

	for _, n := range neighbors {
		if pending[n] {
			continue
		}
		if n.Func == fn {
			fn.AddCFGEdge(n, blk, nil)
		} else {
			addCGEdge(b.f, n.Func, fn)
		}
	}
}

// removeMisownedEdges is the final sweep of the §4.2 post-pass
// (lcore_analyze_flow driver, lcore_flow.c:625-649): once stealing
// settles, drop any CFG edge whose source block's function no longer
// matches the destination block's owning function.
func removeMisownedEdges(f *core.File) {
	for _, fn := range f.Functions {
		for _, blk := range fn.Blocks {
			for _, eid := range append([]graph.EdgeID(nil), blk.Preds()...) {
				from := fn.CFG.Node(fn.CFG.From(eid))
				if from.Func != fn {
					fn.CFG.RemoveEdge(eid)
				}
			}
		}
	}
}

// markPadding classifies every non-virtual block whose instructions
// are all no-ops as padding (glossary: "a 'padding' flag (sequence of
// no-ops)"). block_is_padding's own body isn't present in the
// retrieved original sources — only its call sites are — so this
// follows the glossary description rather than a found original
// implementation.
func markPadding(f *core.File) {
	seq := f.Seq
	for _, fn := range f.Functions {
		for _, blk := range fn.Blocks {
			if blk.Virtual || blk.NumInsts() == 0 {
				continue
			}
			allNop := true
			for i := blk.Start; i < blk.End; i++ {
				if seq.At(i).Family() != asm.OpNop {
					allNop = false
					break
				}
			}
			blk.Padding = allNop
		}
	}
}

// removePaddingEdges drops every outgoing CFG edge of a padding
// block, run after indirect-branch solving so a padding block never
// contributes a resolved jump-table successor (driver,
// lcore_flow.c:672-684).
func removePaddingEdges(f *core.File) {
	for _, fn := range f.Functions {
		for _, blk := range fn.Blocks {
			if !blk.Padding {
				continue
			}
			for _, eid := range append([]graph.EdgeID(nil), blk.Succs()...) {
				fn.CFG.RemoveEdge(eid)
			}
		}
	}
}
