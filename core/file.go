// Package core holds the entities shared by every analysis pass: the
// file-wide instruction sequence, functions, basic blocks, components
// and loops (§3). Ownership follows the §9 design note: a File owns
// its Functions, a Function owns its Blocks/Loops/Components/CFG, and
// cross-cutting caches (SSA, DDG, live registers) are attached to the
// entity they describe via an untyped cache slot with a typed
// accessor in the owning package, rather than a direct struct field,
// so those packages don't import each other in a cycle — the same
// shape as the teacher's Func.cachedSCCs/cachedIdom fields
// (fkuehnel-golang-cfg/go-code/func.go), generalized to an arbitrary
// cache key.
package core

import (
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/internal/graph"
)

// Stage is one bit of the orchestrator's per-file analyze_flag (§4.12).
type Stage uint32

const (
	StageDisasm Stage = 1 << iota
	StageFlow
	StageDom
	StageLoop
	StageCC
	StagePostDom
)

// File is the analysis root: one file's instruction sequence and the
// functions built from it.
type File struct {
	Seq       asm.Seq
	Functions []*Function
	ByLabel   map[string]*Function

	flags Stage

	caches map[cacheKey]any
}

func NewFile(seq asm.Seq) *File {
	return &File{Seq: seq, ByLabel: map[string]*Function{}}
}

// Done reports whether stage s has already run on this file.
func (f *File) Done(s Stage) bool { return f.flags&s != 0 }

// MarkDone sets stage s's completion bit. Re-entering an already-done
// stage must be a no-op (§5); callers check Done before doing work, so
// MarkDone itself is unconditional.
func (f *File) MarkDone(s Stage) { f.flags |= s }

// FuncByLabel returns the function anchored at the given label,
// creating it (in file order) if it doesn't exist yet.
func (f *File) FuncByLabel(name string) *Function {
	if fn, ok := f.ByLabel[name]; ok {
		return fn
	}
	fn := &Function{File: f, ID: len(f.Functions), Name: name, CGNode: graph.NoNode}
	f.Functions = append(f.Functions, fn)
	f.ByLabel[name] = fn
	return fn
}

type cacheKey struct {
	owner any
	kind  string
}

// Cache fetches a previously stored cache value for (owner, kind).
func Cache[T any](f *File, owner any, kind string) (T, bool) {
	var zero T
	if f.caches == nil {
		return zero, false
	}
	v, ok := f.caches[cacheKey{owner, kind}]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// SetCache stores a cache value for (owner, kind).
func SetCache[T any](f *File, owner any, kind string, val T) {
	if f.caches == nil {
		f.caches = map[cacheKey]any{}
	}
	f.caches[cacheKey{owner, kind}] = val
}

// InvalidateCache drops a cache value for (owner, kind), per §5's
// "destruction of that entity must release it" / "must be invalidated
// on structural edits".
func InvalidateCache(f *File, owner any, kind string) {
	delete(f.caches, cacheKey{owner, kind})
}
