// Package loop implements loop identification and loop-nesting
// construction (C6), grounded on
// original_source/src/analyze/lcore_loop.c's single-traversal
// Wei-Mao-Zou algorithm: one DFS per function builds loop membership
// and the loop-nesting forest simultaneously, handling irreducible
// and overlapping loops by reordering the forest as new evidence
// (re-entries, back edges reached through an already-closed subtree)
// comes in. The nesting-forest shape itself follows
// fkuehnel-golang-cfg/go-code/likelyadjust.go's loopnest, adapted from
// that file's Bourdoncle SCC partitioning to this package's
// Parent/Children pointers instead of a b2l slice plus a postorder
// cache.
//
// §2's data-flow order runs C5 (components) strictly before C6, the
// reverse of the original's build_loops (which computes a provisional
// "collect init heads" pass before a later, fuller CC analysis). This
// package uses fn.Components entries as its DFS roots when a component
// pass has already run, falling back to fn.Entry alone otherwise;
// orchestrator.AnalyzeInto runs loops before components, so its
// pipeline takes the fallback. See components.findBackEdges's doc
// comment for the components side of this ordering.
package loop

import (
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
)

const loopIDCacheKind = "loop.nextID"

// Compute builds fn.Loops: header/re-entry sets, bodies (inner loops
// folded in), exits, and the nesting forest, then classifies each
// loop's control-flow pattern (C11).
func Compute(fn *core.Function) {
	s := &loopState{
		fn:        fn,
		dfn:       make([]int, len(fn.Blocks)),
		traversed: make([]bool, len(fn.Blocks)),
	}

	for _, root := range initHeads(fn) {
		if root == nil || root.Virtual || root.Padding || s.traversed[root.ID] {
			continue
		}
		s.construct(root)
	}

	fn.Loops = s.loops
	fixLoopEntries(fn)
	attachOrphanCCs(fn)
	for _, l := range fn.Loops {
		Classify(l)
	}
}

// initHeads collects the DFS roots: every component's entries, or the
// function's sole entry if components haven't been computed.
func initHeads(fn *core.Function) []*core.Block {
	if len(fn.Components) > 0 {
		var heads []*core.Block
		for _, c := range fn.Components {
			heads = append(heads, c.Entries...)
		}
		return heads
	}
	if fn.Entry != nil {
		return []*core.Block{fn.Entry}
	}
	return nil
}

type loopState struct {
	fn        *core.Function
	dfn       []int
	traversed []bool
	stack     []*core.Block
	loops     []*core.Loop
	nextDfnID int
}

func (s *loopState) nextDfn() int {
	s.nextDfnID++
	return s.nextDfnID
}

func (s *loopState) push(b *core.Block) { s.stack = append(s.stack, b) }

func (s *loopState) indexOf(b *core.Block) int {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == b {
			return i
		}
	}
	return -1
}

func (s *loopState) removeAt(i int) {
	s.stack = append(s.stack[:i], s.stack[i+1:]...)
}

func (s *loopState) newLoop(b *core.Block) *core.Loop {
	l := &core.Loop{Func: s.fn, FuncID: len(s.loops), ID: nextLoopID(s.fn.File), Entries: []*core.Block{b}}
	s.loops = append(s.loops, l)
	b.Loop = l
	return l
}

func nextLoopID(f *core.File) int {
	if f == nil {
		return 0
	}
	n, _ := core.Cache[int](f, f, loopIDCacheKind)
	core.SetCache(f, f, loopIDCacheKind, n+1)
	return n
}

// construct is loop_constructor: a single DFS frame over root,
// returning the header of the loop root ends up positioned under (nil
// if root belongs to no loop), for the caller to reorder its own
// hierarchy against.
func (s *loopState) construct(root *core.Block) *core.Block {
	s.push(root)
	s.traversed[root.ID] = true
	s.dfn[root.ID] = s.nextDfn()

	succs := root.SuccBlocks()
	for i := len(succs) - 1; i >= 0; i-- {
		b := succs[i]
		if b.Virtual || b.Padding {
			continue
		}
		switch {
		case !s.traversed[b.ID]:
			// Case A: unvisited successor, recurse into it.
			nh := s.construct(b)
			reorderHierarchy(s.dfn, root, nh)

		case s.dfn[b.ID] > 0:
			// Case B: b is on the active DFS path, so this edge is a
			// back edge: b is a loop header.
			if b.Loop == nil || b.Loop.Entries[0] != b {
				outer := b.Loop
				l := s.newLoop(b)
				if outer != nil {
					// b was already tagged as a body block of outer:
					// its new loop nests inside outer.
					reparent(l, outer)
				}
			}
			reorderHierarchy(s.dfn, root, b)

		case b.Loop != nil && (b.Loop.Entries[0] != b || b.Loop.Parent != nil):
			// b was already closed and belongs to some loop: find its
			// position-holder h (the entry of its outermost known
			// ancestor loop).
			var h *core.Block
			if b.Loop.Entries[0] != b {
				h = b.Loop.Entries[0]
			} else {
				h = b.Loop.Parent.Entries[0]
			}
			if s.dfn[h.ID] > 0 {
				// Case D: h is on the active path, just reorder.
				reorderHierarchy(s.dfn, root, h)
			} else {
				// Case E: h is not on the active path: b is a
				// re-entry of its loop, and of every ancestor loop up
				// to the first one whose header is on the active
				// path.
				addReentry(h.Loop, b)
				llp := h.Loop.Parent
				for llp != nil {
					if s.dfn[llp.Entries[0].ID] > 0 {
						reorderHierarchy(s.dfn, root, llp.Entries[0])
						break
					}
					addReentry(llp, b)
					llp = llp.Parent
				}
			}
		}
		// Case C (b.Loop == nil and b already closed) needs no action:
		// b belongs to no loop.
	}

	if root.Loop == nil {
		s.dfn[root.ID] = 0
		return nil
	}
	if root.Loop.Entries[0] == root {
		s.closeLoop(root, root.Loop)
	}
	s.dfn[root.ID] = 0
	if root.Loop.Entries[0] != root {
		return root.Loop.Entries[0]
	}
	if root.Loop.Parent != nil {
		return root.Loop.Parent.Entries[0]
	}
	return nil
}

// closeLoop gathers loop's body now that root (its header) is about
// to finish: every block pushed after root that still carries loop's
// identity is popped in, and any already-closed nested loop header
// reachable the same way has its own body folded in wholesale.
func (s *loopState) closeLoop(root *core.Block, l *core.Loop) {
	pos := s.indexOf(root)
	if pos < 0 {
		return
	}
	i := pos
	for i < len(s.stack) {
		blk := s.stack[i]
		switch {
		case blk.Loop == l:
			addBlock(l, blk)
			checkExit(l, blk)
			if blk != root {
				s.removeAt(i)
				continue
			}
		case blk.Loop != nil && blk.Loop != l && blk.Loop.Entries[0] == blk && isAncestor(l, blk.Loop):
			nested := blk.Loop
			for _, iter := range nested.Blocks {
				addBlock(l, iter)
				checkExit(l, iter)
			}
			s.removeAt(i)
			continue
		}
		i++
	}
}

func addBlock(l *core.Loop, b *core.Block) {
	for _, x := range l.Blocks {
		if x == b {
			return
		}
	}
	l.Blocks = append(l.Blocks, b)
}

func addReentry(l *core.Loop, b *core.Block) {
	for _, x := range l.Entries {
		if x == b {
			return
		}
	}
	l.Entries = append(l.Entries, b)
}

// checkExit marks blk (and registers it on l.Exits) if it is a loop
// exit: its last instruction calls a designated exit function
// (already annotated HANDLER_EX by the flow builder), or it has a
// successor outside l's transitive nest.
func checkExit(l *core.Loop, blk *core.Block) {
	if blk.NumInsts() > 0 {
		last := blk.Func.File.Seq.At(blk.End - 1)
		if last.Annotations().Has(asm.HANDLER_EX) {
			markExit(l, blk)
			return
		}
	}
	for _, succ := range blk.SuccBlocks() {
		if succ.Loop == nil {
			markExit(l, blk)
			return
		}
		if succ.Loop != l {
			if succ.Loop.Parent != nil {
				if !isAncestor(l, succ.Loop) {
					markExit(l, blk)
					return
				}
			} else {
				markExit(l, blk)
				return
			}
		}
	}
}

func markExit(l *core.Loop, blk *core.Block) {
	blk.IsLoopExit = true
	for _, x := range l.Exits {
		if x == blk {
			return
		}
	}
	l.Exits = append(l.Exits, blk)
}

// isAncestor reports whether anc is desc itself or a hierarchy
// ancestor of it.
func isAncestor(anc, desc *core.Loop) bool {
	for l := desc; l != nil; l = l.Parent {
		if l == anc {
			return true
		}
	}
	return false
}

// reorderHierarchy walks up from b's loop, comparing the DFS order of
// loop entries, so that the lexically-earliest-discovered loop always
// ends up outermost; it rewires Parent/Children as it goes
// (original_source/src/analyze/lcore_loop.c: reorderHierarchy).
func reorderHierarchy(dfn []int, b, h *core.Block) {
	if b == h || h == nil {
		return
	}
	cur1, cur2 := b, h
	for {
		var ih *core.Block
		if cur1.Loop != nil {
			if cur1.Loop.Entries[0] != cur1 {
				ih = cur1.Loop.Entries[0]
			} else if cur1.Loop.Parent != nil {
				ih = cur1.Loop.Parent.Entries[0]
			} else {
				break
			}
		} else {
			break
		}

		if ih == cur2 {
			return
		}
		if dfn[ih.ID] < dfn[cur2.ID] {
			if cur1.Loop.Entries[0] != cur1 {
				cur1.Loop = cur2.Loop
			}
			reparent(cur2.Loop, ih.Loop)
			cur1, cur2 = cur2, ih
		} else {
			cur1 = ih
		}
	}

	if cur1.Loop == nil {
		cur1.Loop = cur2.Loop
	} else {
		reparent(cur1.Loop, cur2.Loop)
	}
}

// reparent makes child a direct hierarchy child of parent, detaching
// it from any previous parent first.
func reparent(child, parent *core.Loop) {
	if child == parent {
		return
	}
	if child.Parent != nil {
		removeChild(child.Parent, child)
	}
	child.Parent = parent
	parent.Children = append(parent.Children, child)
}

func removeChild(parent, child *core.Loop) {
	for i, c := range parent.Children {
		if c == child {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

// fixLoopEntries is _fix_loop_entries: some loop entries are not
// discovered by the DFS itself (a block reached only through a path
// the traversal order skipped); any block in a loop's body that still
// has a predecessor outside the body is registered as an entry.
func fixLoopEntries(fn *core.Function) {
	for _, l := range fn.Loops {
		inLoop := make(map[*core.Block]bool, len(l.Blocks))
		for _, b := range l.Blocks {
			inLoop[b] = true
		}
		for _, b := range l.Blocks {
			for _, p := range b.PredBlocks() {
				if inLoop[p] {
					continue
				}
				addReentry(l, b)
			}
		}
	}
}

// attachOrphanCCs mirrors lcore_loop_find_orphan_CC
// (lcore_loop.c:386-450): a loop entry whose only real predecessors
// are themselves inside the same loop nest has no path in from
// outside the loop at all, so the connected-components pass (C5,
// which does not use loop information) can never have discovered it as
// an entry. A direct edge from fn.Entry is added to keep it reachable,
// the same fix-up the original performs from the function's entry
// block rather than a separate synthesized node. Unlike the original,
// which only runs this for a function whose own entry is itself a
// synthesized (virtual) block, this core has no distinct notion of
// "virtual function entry" to gate on, so the check runs for every
// function instead.
func attachOrphanCCs(fn *core.Function) {
	if fn.Entry == nil {
		return
	}
	for _, l := range fn.Loops {
		for _, b := range l.Entries {
			preds := b.PredBlocks()
			if len(preds) == 0 {
				continue
			}
			if attachOrphanEntry(fn, l, b, preds) {
				break // one attach per loop, matching the original
			}
		}
	}
}

// attachOrphanEntry adds fn.Entry -> b and reports true if every one
// of b's predecessors is accounted for as inside l's loop nest (a
// virtual predecessor means some earlier pass already attached b, and
// a self predecessor counts toward neither total), so b has no
// surviving path in from outside the loop.
func attachOrphanEntry(fn *core.Function, l *core.Loop, b *core.Block, preds []*core.Block) bool {
	count, linked := 0, 0
	alreadyAttached := false
	for _, p := range preds {
		count++
		switch {
		case p.Virtual:
			alreadyAttached = true
		case p == b:
			// self-loop predecessor: counted, but neither in nor out.
		case inSameNest(p.Loop, l):
			linked++
		}
	}
	if linked != count || alreadyAttached {
		return false
	}
	fn.AddCFGEdge(fn.Entry, b, nil)
	return true
}

// inSameNest reports whether l is nest itself or one of nest's
// hierarchy ancestors.
func inSameNest(l *core.Loop, nest *core.Loop) bool {
	for h := l; h != nil; h = h.Parent {
		if h == nest {
			return true
		}
	}
	return false
}
