// Package ddg builds the instruction-level data-dependency graph (C10)
// over a block, path, loop or function's instructions, grounded in
// detail on original_source/src/analyze/lcore_ddg.c: the same WR/RD/rank
// preparation maps, the same nearest-writer RAW/WAW rule and
// all-readers WAR rule, and the same "breaks dependency" self-SUB/XOR
// idiom.
//
// Nodes are asm.Instruction values; edges carry an Edge payload (kind,
// iteration distance, latency). The underlying internal/graph.Graph
// already tracks connected components and their entry nodes
// incrementally as edges are added, so the "a distance-0 edge removes
// its destination from its CC's entry set" rule (§4.10) falls out of
// graph.Graph.AddEdge for free — this package only has to get the
// edges right.
package ddg

import (
	"github.com/aclements/maqcore/arch"
	"github.com/aclements/maqcore/asm"
	"github.com/aclements/maqcore/internal/graph"
)

// Kind classifies a DDG edge.
type Kind uint8

const (
	RAW Kind = iota
	WAW
	WAR
)

func (k Kind) String() string {
	switch k {
	case RAW:
		return "RAW"
	case WAW:
		return "WAW"
	case WAR:
		return "WAR"
	default:
		return "?"
	}
}

// Latency is a {min, max} cycle-latency pair (§4.10).
type Latency struct {
	Min, Max int
}

// Edge is a DDG edge's payload: what kind of hazard it represents, how
// many loop iterations it spans (0 same iteration, 1 previous
// iteration), and its latency.
type Edge struct {
	Kind     Kind
	Distance int
	Latency  Latency
}

// Graph is a data-dependency multigraph: instructions as nodes, hazard
// edges as described above.
type Graph = graph.Graph[asm.Instruction, *Edge]

// Config controls DDG construction.
type Config struct {
	// OnlyRAW restricts construction to RAW edges, skipping the WAR/WAW
	// pass (lcore_ddg.c's only_RAW parameter, threaded throughout every
	// public entry point there as a TRUE/FALSE pair of wrapper
	// functions; folded here into a single flag).
	OnlyRAW bool

	// Microarch supplies edge latencies; nil defaults to
	// arch.ZeroLatency.
	Microarch arch.Microarch

	// BreaksDependency reports whether inst is a register-to-register
	// instruction whose result does not depend on its source value
	// (the SUB/SUBP/PSUB/XOR/PXOR/XORP/PCMPEQ self-operand idiom of
	// §4.10, e.g. "XOR r, r" to zero a register). When true, the
	// instruction's source read is dropped entirely: it contributes no
	// RAW/WAR dependency, only a write.
	//
	// Left nil by default. Identifying this family needs the
	// instruction's concrete opcode; the abstract asm.Family enum only
	// distinguishes MOV/CMP/CALL/JUMP/RETURN/FMA/FMS/NOP, with no
	// structural way to recognize "SUB" or "XOR" from it. A concrete
	// architecture that can classify opcodes supplies this hook.
	BreaksDependency func(inst asm.Instruction) bool
}

func (c Config) microarch() arch.Microarch {
	if c.Microarch != nil {
		return c.Microarch
	}
	return arch.ZeroLatency{}
}

func (c Config) breaks(inst asm.Instruction) bool {
	return c.BreaksDependency != nil && c.BreaksDependency(inst)
}

// rawEdge is one dependency before it's inserted into a Graph: the
// flat representation used both for a single sequence's edges and, per
// §4.10, for accumulating edges across multiple paths before a single
// unifying insertion pass.
type rawEdge struct {
	src, dst asm.Instruction
	kind     Kind
	distance int
}

// prep holds the per-sequence preparation maps of lcore_ddg.c's
// fill_DDG_data: rank order, and which instructions read/write each
// standardized register, in program order.
type prep struct {
	rank map[asm.Instruction]int
	rd   map[arch.StdReg][]asm.Instruction
	wr   map[arch.StdReg][]asm.Instruction
}

// buildPrep fills rank/rd/wr from insns in one pass, following
// fill_DDG_data/update_hashtables exactly: a register operand updates
// its own reg; a memory operand updates both its base and index
// registers, always as reads, regardless of the memory operand's own
// direction.
func buildPrep(insns []asm.Instruction, a arch.Arch, cfg Config) *prep {
	p := &prep{
		rank: make(map[asm.Instruction]int, len(insns)),
		rd:   map[arch.StdReg][]asm.Instruction{},
		wr:   map[arch.StdReg][]asm.Instruction{},
	}
	for i, inst := range insns {
		p.rank[inst] = i
		breaks := cfg.breaks(inst)
		for _, op := range inst.Operands() {
			switch op.Kind {
			case asm.OperandReg:
				if op.Reg.IsValid() {
					p.update(inst, a.Standardize(op.Reg), op, false, breaks)
				}
			case asm.OperandMem:
				if op.Mem.Base.IsValid() {
					p.update(inst, a.Standardize(op.Mem.Base), op, true, breaks)
				}
				if op.Mem.Index.IsValid() {
					p.update(inst, a.Standardize(op.Mem.Index), op, true, breaks)
				}
			}
		}
	}
	return p
}

// update is lcore_ddg.c's update_hashtables, specialized to the
// operand that named reg. isMem marks a memory base/index register,
// always a read regardless of the memory operand's own direction
// (computing an address never writes the address registers). breaks
// marks an instruction recognized by Config.BreaksDependency: its
// destination register is still recorded as a write, but no read is
// recorded at all, for either operand (the dependency on its own prior
// value is, by definition, broken).
func (p *prep) update(inst asm.Instruction, reg arch.StdReg, op asm.Operand, isMem, breaks bool) {
	if breaks {
		if !isMem && (op.Direction == asm.Dst || op.Direction == asm.Both) {
			p.wr[reg] = append(p.wr[reg], inst)
		}
		return
	}
	if isMem || op.Direction == asm.Src || op.Direction == asm.Both {
		p.rd[reg] = append(p.rd[reg], inst)
	}
	if !isMem && (op.Direction == asm.Dst || op.Direction == asm.Both) {
		p.wr[reg] = append(p.wr[reg], inst)
	}
}

// edges runs insert_RAW over every (register, reading instruction)
// pair and, unless onlyRAW, insert_WAR/insert_WAW over every (register,
// writing instruction) pair, returning the flat rawEdge list.
func (p *prep) edges(onlyRAW bool) []rawEdge {
	var out []rawEdge
	for reg, readers := range p.rd {
		for _, dst := range readers {
			if e, ok := p.nearestOrLastWriter(reg, dst, RAW); ok {
				out = append(out, e)
			}
		}
	}
	if onlyRAW {
		return out
	}
	for reg, writers := range p.wr {
		for _, dst := range writers {
			for _, e := range p.allReaders(reg, dst) {
				out = append(out, e)
			}
			if e, ok := p.nearestOrLastWriter(reg, dst, WAW); ok {
				out = append(out, e)
			}
		}
	}
	return out
}

// nearestOrLastWriter implements insert_RAW_or_WAW: scanning the
// register's writer list from last to first, the nearest writer that
// precedes dst in rank cuts the chain at distance 0 (same iteration);
// if every writer is at or after dst's rank, dst's value must come
// from the previous iteration, so the chain is cut by the last writer
// in program order, at distance 1.
func (p *prep) nearestOrLastWriter(reg arch.StdReg, dst asm.Instruction, kind Kind) (rawEdge, bool) {
	writers := p.wr[reg]
	if len(writers) == 0 {
		return rawEdge{}, false
	}
	dstRank := p.rank[dst]
	for i := len(writers) - 1; i >= 0; i-- {
		src := writers[i]
		if p.rank[src] >= dstRank {
			continue
		}
		return rawEdge{src: src, dst: dst, kind: kind, distance: 0}, true
	}
	src := writers[len(writers)-1]
	return rawEdge{src: src, dst: dst, kind: kind, distance: 1}, true
}

// allReaders implements insert_WAR: every instruction reading reg
// gets an edge into the writer dst, not just the nearest one. A reader
// at or after dst's rank belongs to the previous iteration relative to
// this write (distance 1); a reader before it is the ordinary
// same-iteration WAR hazard (distance 0).
func (p *prep) allReaders(reg arch.StdReg, dst asm.Instruction) []rawEdge {
	readers := p.rd[reg]
	if len(readers) == 0 {
		return nil
	}
	dstRank := p.rank[dst]
	out := make([]rawEdge, 0, len(readers))
	for _, src := range readers {
		distance := 0
		if p.rank[src] >= dstRank {
			distance = 1
		}
		out = append(out, rawEdge{src: src, dst: dst, kind: WAR, distance: distance})
	}
	return out
}

// Build constructs a DDG over one sequence of instructions (a block,
// or a single enumerated path already flattened to instructions).
func Build(insns []asm.Instruction, a arch.Arch, cfg Config) *Graph {
	if len(insns) == 0 {
		return graph.New[asm.Instruction, *Edge]()
	}
	p := buildPrep(insns, a, cfg)
	g := materialize(p.edges(cfg.OnlyRAW))
	SetLatency(g, cfg.microarch())
	return g
}

// Merge builds one DDG from multiple instruction sequences (multiple
// enumerated paths through the same function or loop): each sequence's
// edges are computed independently — so a dependency never crosses
// from one path into another — then every path's edges are inserted
// into a single graph in one unifying pass, sharing nodes by
// instruction identity (§4.10's obj_getddg multi-path case).
func Merge(paths [][]asm.Instruction, a arch.Arch, cfg Config) *Graph {
	var all []rawEdge
	for _, insns := range paths {
		if len(insns) == 0 {
			continue
		}
		p := buildPrep(insns, a, cfg)
		all = append(all, p.edges(cfg.OnlyRAW)...)
	}
	g := materialize(all)
	SetLatency(g, cfg.microarch())
	return g
}

// materialize inserts a flat edge list into a fresh graph, sharing one
// node per distinct instruction (insert_node/insert_in_DDG): a
// self-dependency (src == dst, e.g. an instruction that both reads and
// writes the same register, depending on itself one iteration back)
// shares a single node for both endpoints rather than creating two.
func materialize(edges []rawEdge) *Graph {
	g := graph.New[asm.Instruction, *Edge]()
	nodes := map[asm.Instruction]graph.NodeID{}
	nodeFor := func(inst asm.Instruction) graph.NodeID {
		if id, ok := nodes[inst]; ok {
			return id
		}
		id := g.AddNode(inst)
		nodes[inst] = id
		return id
	}
	for _, e := range edges {
		srcID := nodeFor(e.src)
		var dstID graph.NodeID
		if e.src == e.dst {
			dstID = srcID
		} else {
			dstID = nodeFor(e.dst)
		}
		g.AddEdge(srcID, dstID, &Edge{Kind: e.kind, Distance: e.distance}, e.distance)
	}
	return g
}

// SetLatency (re)computes every edge's latency from mu, iterating the
// full edge set (lcore_set_ddg_latency). Exported so a caller that
// built a DDG with one microarchitecture can re-price it with another
// without rebuilding the dependency structure.
func SetLatency(g *Graph, mu arch.Microarch) {
	if mu == nil {
		mu = arch.ZeroLatency{}
	}
	for i := 0; i < g.NumEdges(); i++ {
		id := graph.EdgeID(i)
		e := g.Edge(id)
		src, dst := g.Node(g.From(id)), g.Node(g.To(id))
		min, max := mu.Latency(src, dst)
		e.Latency = Latency{Min: min, Max: max}
	}
}
