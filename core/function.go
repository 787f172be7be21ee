package core

import (
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/internal/graph"
)

// CFGEdge is the payload of a CFG edge: the jump or fall-through
// instruction that produced it (§3: "a CFG edge carries its origin
// instruction").
type CFGEdge struct {
	Origin asm.Instruction
}

// Function is an ordered set of blocks forming one procedure (§3).
type Function struct {
	File *File
	ID   int
	Name string

	Blocks      []*Block
	Entry       *Block
	VirtualExit *Block // only populated while post-dominance is being computed

	CFG *graph.Graph[*Block, CFGEdge]

	CGNode graph.NodeID // this function's node in the program call graph

	Loops      []*Loop
	Components []*Component

	// PathsComputed distinguishes "enumerated, zero paths" from "never
	// asked" (§9); Paths is nil and PathsCapped is true when the cap
	// stopped enumeration before it stored anything.
	PathsComputed bool
	PathsCapped   bool
	Paths         [][]*Block
}

// NewBlock creates and registers a new block owned by f, with its own
// CFG node.
func (f *Function) NewBlock() *Block {
	if f.CFG == nil {
		f.CFG = graph.New[*Block, CFGEdge]()
	}
	b := &Block{Func: f, ID: len(f.Blocks)}
	f.Blocks = append(f.Blocks, b)
	b.node = f.CFG.AddNode(b)
	return b
}

// NewVirtualBlock creates a block with no instructions, used to
// synthesize a unique function exit for post-dominance, or a unique
// entry for a multi-entry function (§3).
func (f *Function) NewVirtualBlock() *Block {
	b := f.NewBlock()
	b.Virtual = true
	return b
}

func (f *Function) AddCFGEdge(from, to *Block, origin asm.Instruction) graph.EdgeID {
	return f.CFG.AddEdge(from.node, to.node, CFGEdge{Origin: origin}, 0)
}

// AdoptBlock moves blk from its current function into f, as the flow
// builder's patch-consolidation pass (§4.2) does when a block is
// stolen into the function of a CFG neighbor. A block's node is local
// to its own function's CFG, so adopting it means giving it a fresh
// node in f's graph rather than reusing the old one. If blk was its
// old function's declared entry, the old function's entry falls back
// to its earliest remaining block in instruction order
// (steal_block, lcore_flow.c:81-94). Existing CFG edges whose other
// endpoint already belongs to f are carried over unchanged; edges
// whose other endpoint belongs to some third function are removed and
// returned instead, for the caller to turn into call-graph edges
// (lcore_flow.c:99-121).
func (f *Function) AdoptBlock(blk *Block) (droppedOut, droppedIn []*Block) {
	old := blk.Func
	if old == f {
		return nil, nil
	}

	for i, x := range old.Blocks {
		if x == blk {
			old.Blocks = append(old.Blocks[:i], old.Blocks[i+1:]...)
			break
		}
	}
	if old.Entry == blk {
		old.Entry = earliestBlock(old.Blocks)
	}

	type savedEdge struct {
		other  *Block
		origin asm.Instruction
	}
	var outs, ins []savedEdge
	for _, eid := range append([]graph.EdgeID(nil), blk.Succs()...) {
		outs = append(outs, savedEdge{old.CFG.Node(old.CFG.To(eid)), old.CFG.Edge(eid).Origin})
		old.CFG.RemoveEdge(eid)
	}
	for _, eid := range append([]graph.EdgeID(nil), blk.Preds()...) {
		ins = append(ins, savedEdge{old.CFG.Node(old.CFG.From(eid)), old.CFG.Edge(eid).Origin})
		old.CFG.RemoveEdge(eid)
	}

	blk.Func = f
	f.Blocks = append(f.Blocks, blk)
	if f.CFG == nil {
		f.CFG = graph.New[*Block, CFGEdge]()
	}
	blk.node = f.CFG.AddNode(blk)

	for _, e := range outs {
		if e.other.Func == f {
			f.AddCFGEdge(blk, e.other, e.origin)
		} else {
			droppedOut = append(droppedOut, e.other)
		}
	}
	for _, e := range ins {
		if e.other.Func == f {
			f.AddCFGEdge(e.other, blk, e.origin)
		} else {
			droppedIn = append(droppedIn, e.other)
		}
	}
	return droppedOut, droppedIn
}

// earliestBlock returns the non-virtual block with the smallest Start
// among blocks, or nil if there is none.
func earliestBlock(blocks []*Block) *Block {
	var best *Block
	for _, b := range blocks {
		if b.Virtual {
			continue
		}
		if best == nil || b.Start < best.Start {
			best = b
		}
	}
	return best
}
