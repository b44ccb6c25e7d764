package cfg

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ProgramCfg owns every function's CFG, keyed by FuncIndex, and
// answers the cross-function queries the rest of the engine needs:
// sections to CFGs, hot-join nodes, and frequency-percentile
// thresholds.
type ProgramCfg struct {
	cfgs map[FuncIndex]*ControlFlowGraph

	// percentileCache memoizes FrequencyPercentile, so repeated calls
	// with the same generation and percentile skip the O(n log n) sort.
	percentileCache *lru.Cache[percentileCacheKey, uint64]
}

type percentileCacheKey struct {
	generation uint64
	percentile float64
}

// CFG returns the CFG for a function, or nil if unknown.
func (p *ProgramCfg) CFG(idx FuncIndex) *ControlFlowGraph { return p.cfgs[idx] }

// Functions returns all function indices, sorted ascending for
// deterministic iteration.
func (p *ProgramCfg) Functions() []FuncIndex {
	out := make([]FuncIndex, 0, len(p.cfgs))
	for idx := range p.cfgs {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SectionsToCFGs groups every CFG by its output-section name. The
// returned slices are sorted by FuncIndex for determinism.
func (p *ProgramCfg) SectionsToCFGs() map[string][]*ControlFlowGraph {
	out := make(map[string][]*ControlFlowGraph)
	for _, idx := range p.Functions() {
		g := p.cfgs[idx]
		out[g.SectionName] = append(out[g.SectionName], g)
	}
	return out
}

func (p *ProgramCfg) interEdge(ref InterEdgeRef) *CFGEdge {
	return p.cfgs[ref.OwnerFunc].InterEdge(ref.Index)
}

// HotJoinNodes returns every node, across the whole program, with at
// least two incoming intra-function edges of positive weight. These
// are "join points": basic blocks reached from more than one hot
// predecessor, useful to external consumers deciding where a
// path-cloning candidate might pay off (see SPEC_FULL.md §C.1).
func (p *ProgramCfg) HotJoinNodes() []NodeRef {
	var out []NodeRef
	for _, idx := range p.Functions() {
		g := p.cfgs[idx]
		for ni, n := range g.Nodes {
			hotPreds := 0
			for _, ei := range n.IntraIn {
				if g.IntraEdge(ei).Weight > 0 {
					hotPreds++
				}
			}
			if hotPreds >= 2 {
				out = append(out, NodeRef{Func: idx, Node: NodeIndex(ni)})
			}
		}
	}
	return out
}

// FrequencyPercentile returns the p-th percentile (0 <= p <= 1) of
// non-zero node frequencies across the whole program. No engine
// package calls it; it is exposed for callers wanting a relative
// rather than absolute hotness cutoff. generation lets callers invalidate the
// memoized result after mutating the program (e.g. after applying a
// cloning); passing the same generation and percentile repeatedly
// reuses the cached answer instead of re-sorting every node.
func (p *ProgramCfg) FrequencyPercentile(generation uint64, percentile float64) uint64 {
	if p.percentileCache == nil {
		c, _ := lru.New[percentileCacheKey, uint64](8)
		p.percentileCache = c
	}
	key := percentileCacheKey{generation: generation, percentile: percentile}
	if v, ok := p.percentileCache.Get(key); ok {
		return v
	}

	var freqs []uint64
	for _, idx := range p.Functions() {
		for _, n := range p.cfgs[idx].Nodes {
			if n.Frequency > 0 {
				freqs = append(freqs, n.Frequency)
			}
		}
	}
	if len(freqs) == 0 {
		p.percentileCache.Add(key, 0)
		return 0
	}
	sort.Slice(freqs, func(i, j int) bool { return freqs[i] < freqs[j] })
	if percentile <= 0 {
		result := freqs[0]
		p.percentileCache.Add(key, result)
		return result
	}
	if percentile >= 1 {
		result := freqs[len(freqs)-1]
		p.percentileCache.Add(key, result)
		return result
	}
	pos := int(percentile * float64(len(freqs)-1))
	result := freqs[pos]
	p.percentileCache.Add(key, result)
	return result
}
