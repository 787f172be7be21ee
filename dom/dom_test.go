package dom

import (
	"testing"

	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/core"
	"github.com/aclements/maqcore/flow"
	"github.com/aclements/maqcore/internal/fixture"
)

// buildDiamond builds one function shaped like a diamond: entry splits
// into two arms that rejoin at a single return block, so entry
// dominates everything and the return block post-dominates everything
// including both arms.
func buildDiamond(t *testing.T) *core.Function {
	t.Helper()
	b := fixture.NewBuilder()
	b.Label("f")
	i0 := b.Emit(asm.OpCmp, asm.STDCODE)
	i1 := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP|asm.CONDITIONAL)
	i2 := b.Emit(asm.OpMov, asm.STDCODE) // left arm
	i3 := b.Emit(asm.OpJump, asm.STDCODE|asm.JUMP)
	i4 := b.Emit(asm.OpMov, asm.STDCODE) // right arm
	i5 := b.Emit(asm.OpReturn, asm.STDCODE|asm.RTRN)
	b.BranchTo(i1, i4) // conditional jump to the right arm
	b.BranchTo(i3, i5) // left arm jumps past the right arm
	_, _ = i0, i2

	f, err := flow.Build(flow.Config{}, b.Build())
	if err != nil {
		t.Fatalf("flow.Build: %v", err)
	}
	if len(f.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(f.Functions))
	}
	return f.Functions[0]
}

func TestComputeDominance(t *testing.T) {
	fn := buildDiamond(t)
	info := Compute(fn)
	if info.Tree == nil {
		t.Fatalf("Compute returned a nil tree")
	}
	if _, ok := Get(fn); !ok {
		t.Errorf("dominance info not cached after Compute")
	}

	// Recomputing must hit the cache, not rebuild (same pointer back).
	again := Compute(fn)
	if again != info {
		t.Errorf("Compute did not return the cached Info on a second call")
	}
}

func TestComputePostDominance(t *testing.T) {
	fn := buildDiamond(t)
	info := ComputePost(fn)
	if info.Tree == nil {
		t.Fatalf("ComputePost returned a nil tree")
	}
	if _, ok := GetPost(fn); !ok {
		t.Errorf("post-dominance info not cached after ComputePost")
	}
	if fn.VirtualExit != nil {
		t.Errorf("VirtualExit should be nil again once ComputePost returns, got %v", fn.VirtualExit)
	}

	// The synthesized exit's CFG edges must not survive: every real
	// block in this function still has only the successors flow gave
	// it (no leftover virtual-exit edge).
	for _, b := range fn.Blocks {
		if b.Virtual {
			continue
		}
		for _, s := range b.SuccBlocks() {
			if s.Virtual {
				t.Errorf("block %d still has an edge to the virtual exit after ComputePost", b.ID)
			}
		}
	}
}
