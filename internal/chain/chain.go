// Package chain implements the basic-block chain builder (§4.2): the
// greedy split-and-merge algorithm that forms ordered chains of basic
// blocks within a section.
package chain

import (
	"sort"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/scorer"
)

// NodeChain is an ordered sequence of basic blocks that the builder
// currently treats as one atomic, contiguous unit. Internally a chain
// is a flat, ordered list of nodes; forcedAfter[i] records whether
// positions i and i+1 must never be split apart (because they were
// joined by a forced edge or a caller-supplied initial chain run),
// which is how bundles (§4.2.1) are represented without a separate
// nested type.
type NodeChain struct {
	id cfg.FullIntraCfgID

	nodes       []cfg.NodeRef
	forcedAfter []bool // len(nodes)-1

	// entryAt marks positions holding a function's entry block
	// (bb_index 0). candidateAssemblies reads it to drop any merge
	// that would put another block of the same function ahead of the
	// entry (§4.2.3).
	entryAt map[int]bool

	size      uint64
	frequency uint64
	score     float64
	debug     bool

	// outEdges maps a target chain to the CFG edges leading to it,
	// kept sorted by the sink's offset-in-chain at all times so
	// prefix-merging never needs to re-sort (§4.2.1).
	outEdges map[*NodeChain][]*cfg.CFGEdge
	inEdges  map[*NodeChain]bool
}

func newChain(id cfg.FullIntraCfgID) *NodeChain {
	return &NodeChain{
		id:       id,
		entryAt:  make(map[int]bool),
		outEdges: make(map[*NodeChain][]*cfg.CFGEdge),
		inEdges:  make(map[*NodeChain]bool),
	}
}

// ID returns the chain's identity: its delegate node's program-wide
// id, used for deterministic tie-breaks (§3.2).
func (c *NodeChain) ID() cfg.FullIntraCfgID { return c.id }

// Size returns the chain's total byte size.
func (c *NodeChain) Size() uint64 { return c.size }

// Frequency returns the chain's total execution frequency (sum of its
// nodes' frequencies).
func (c *NodeChain) Frequency() uint64 { return c.frequency }

// Score returns the ExtTSP score of edges internal to the chain.
func (c *NodeChain) Score() float64 { return c.score }

// Density is the chain's execution density, frequency/max(size,1),
// used by the clusterer.
func (c *NodeChain) Density() float64 {
	sz := c.size
	if sz == 0 {
		sz = 1
	}
	return float64(c.frequency) / float64(sz)
}

// Len returns the number of nodes in the chain.
func (c *NodeChain) Len() int { return len(c.nodes) }

// NodeAt returns the node reference at position i.
func (c *NodeChain) NodeAt(i int) cfg.NodeRef { return c.nodes[i] }

// Nodes returns the chain's nodes in order. The returned slice must
// not be mutated by the caller.
func (c *NodeChain) Nodes() []cfg.NodeRef { return c.nodes }

// FirstNode/LastNode are used by fallthrough-attachment to test
// adjacency of two chains' boundary blocks.
func (c *NodeChain) FirstNode() cfg.NodeRef { return c.nodes[0] }
func (c *NodeChain) LastNode() cfg.NodeRef  { return c.nodes[len(c.nodes)-1] }

// IsForcedAfter reports whether splitting between position i and i+1
// is forbidden because the two nodes are joined by a forced edge or a
// caller-seeded bundle run.
func (c *NodeChain) IsForcedAfter(i int) bool {
	if i < 0 || i >= len(c.forcedAfter) {
		return false
	}
	return c.forcedAfter[i]
}

// HasEntryAt reports whether position i holds a function's entry
// block.
func (c *NodeChain) HasEntryAt(i int) bool { return c.entryAt[i] }

// OutEdgesTo returns the edges (sorted by sink offset-in-chain) from
// this chain to other, or nil if there are none.
func (c *NodeChain) OutEdgesTo(other *NodeChain) []*cfg.CFGEdge { return c.outEdges[other] }

// Neighbors returns every chain with an edge to or from this chain.
func (c *NodeChain) Neighbors() map[*NodeChain]bool {
	out := make(map[*NodeChain]bool)
	for other := range c.outEdges {
		out[other] = true
	}
	for other := range c.inEdges {
		out[other] = true
	}
	delete(out, c)
	return out
}

// offsets returns the byte offset of the start of each node within
// the chain, plus the chain's total size.
func (c *NodeChain) offsets(g *cfg.ProgramCfg) ([]uint64, uint64) {
	offs := make([]uint64, len(c.nodes))
	var cum uint64
	for i, ref := range c.nodes {
		offs[i] = cum
		cum += g.CFG(ref.Func).Node(ref.Node).Size
	}
	return offs, cum
}

// recomputeSizeFrequency walks the chain's nodes and refreshes size
// and frequency. Called after construction or after a merge appends
// new nodes.
func (c *NodeChain) recomputeSizeFrequency(g *cfg.ProgramCfg) {
	var size, freq uint64
	for _, ref := range c.nodes {
		n := g.CFG(ref.Func).Node(ref.Node)
		size += n.Size
		freq += n.Frequency
	}
	c.size = size
	c.frequency = freq
}

// recomputeScore recomputes the ExtTSP score of every edge internal
// to the chain (both endpoints present in c.nodes), using s to score
// each edge against the nodes' offsets in this chain.
func (c *NodeChain) recomputeScore(g *cfg.ProgramCfg, s *scorer.ExtTSPScorer) {
	c.score = scoreNodeList(g, s, c.nodes)
}

// scoreNodeList computes the total ExtTSP score of every edge whose
// both endpoints are present in nodes, using nodes' positions as the
// layout order. It is the shared core behind NodeChain.recomputeScore
// and assembly score-gain evaluation (§4.2.3): an assembly's gain is
// scoreNodeList(merged) - scoreNodeList(S) - scoreNodeList(U), which
// is mathematically equivalent to the spec's slice-offset bookkeeping
// but implemented as a direct recomputation for clarity.
func scoreNodeList(g *cfg.ProgramCfg, s *scorer.ExtTSPScorer, nodes []cfg.NodeRef) float64 {
	offs := make([]uint64, len(nodes))
	var cum uint64
	for i, ref := range nodes {
		offs[i] = cum
		cum += g.CFG(ref.Func).Node(ref.Node).Size
	}
	pos := make(map[cfg.NodeRef]int, len(nodes))
	for i, ref := range nodes {
		pos[ref] = i
	}
	var total float64
	for _, ref := range nodes {
		node := g.CFG(ref.Func).Node(ref.Node)
		forEachOutEdgeRef(g, ref, func(e *cfg.CFGEdge) {
			sinkPos, ok := pos[e.Sink]
			if !ok {
				return
			}
			srcSize := node.Size
			sinkSize := g.CFG(e.Sink.Func).Node(e.Sink.Node).Size
			dist := int64(offs[sinkPos]) - int64(offs[pos[ref]]+srcSize)
			total += s.Score(e.Kind, e.Weight, dist, srcSize, sinkSize, e.AlwaysTaken, e.IsIndirect)
		})
	}
	return total
}

// forEachOutEdgeRef iterates every outgoing edge (intra and inter) of
// the node at ref.
func forEachOutEdgeRef(g *cfg.ProgramCfg, ref cfg.NodeRef, f func(*cfg.CFGEdge)) {
	owner := g.CFG(ref.Func)
	node := owner.Node(ref.Node)
	for _, ei := range node.IntraOut {
		f(owner.IntraEdge(ei))
	}
	for _, ir := range node.InterOut {
		f(g.CFG(ir.OwnerFunc).InterEdge(ir.Index))
	}
}

// forEachInEdgeRef iterates every incoming edge (intra and inter) of
// the node at ref.
func forEachInEdgeRef(g *cfg.ProgramCfg, ref cfg.NodeRef, f func(*cfg.CFGEdge)) {
	owner := g.CFG(ref.Func)
	node := owner.Node(ref.Node)
	for _, ei := range node.IntraIn {
		f(owner.IntraEdge(ei))
	}
	for _, ir := range node.InterIn {
		f(g.CFG(ir.OwnerFunc).InterEdge(ir.Index))
	}
}

// sortOutEdgesByOffset sorts an outEdges[other] slice by each sink's
// position (posOf) within other, the chain holding the sinks
// ("sink offset-in-chain", §4.2.1). rebuildChainEdges calls it after
// each full rescan of a chain's edges.
func sortOutEdgesByOffset(edges []*cfg.CFGEdge, posOf func(cfg.NodeRef) int) {
	sort.SliceStable(edges, func(i, j int) bool {
		return posOf(edges[i].Sink) < posOf(edges[j].Sink)
	})
}
