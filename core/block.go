package core

import "github.com/aclements/maqcore/internal/graph"

// Block is a contiguous run of instructions sharing one predecessor
// edge into the first instruction and at most one exit behavior from
// the last (§3).
type Block struct {
	ID   int
	Func *Function

	// Start and End give the range of instructions in this block as
	// indices into Func.File.Seq: the block is instructions
	// [Start, End). Virtual blocks have Start == End == 0.
	Start, End int

	Loop *Loop

	Virtual    bool // synthesized entry/exit, no instructions
	Padding    bool // run of no-ops
	IsLoopExit bool

	node graph.NodeID // this block's node in Func.CFG
}

func (b *Block) Node() graph.NodeID { return b.node }

// NumInsts returns the number of instructions in the block.
func (b *Block) NumInsts() int { return b.End - b.Start }

// Succs and Preds return this block's CFG out/in edges.
func (b *Block) Succs() []graph.EdgeID { return b.Func.CFG.Out(b.node) }
func (b *Block) Preds() []graph.EdgeID { return b.Func.CFG.In(b.node) }

func (b *Block) SuccBlocks() []*Block {
	edges := b.Succs()
	out := make([]*Block, len(edges))
	for i, e := range edges {
		out[i] = b.Func.CFG.Node(b.Func.CFG.To(e))
	}
	return out
}

func (b *Block) PredBlocks() []*Block {
	edges := b.Preds()
	out := make([]*Block, len(edges))
	for i, e := range edges {
		out[i] = b.Func.CFG.Node(b.Func.CFG.From(e))
	}
	return out
}
