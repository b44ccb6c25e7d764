// Package layout implements the top-level code-layout driver (§4.4):
// it composes the node-chain builder and chain-cluster builder per
// output section, assigns a global layout position to every hot and
// cold block, and reports per-function before/after ExtTSP scores.
package layout

import (
	"sort"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/chain"
	"github.com/google/propeller/internal/cluster"
	"github.com/google/propeller/internal/scorer"
)

// FunctionChainInfo is the per-function layout result (§3.1).
type FunctionChainInfo struct {
	FuncIndex cfg.FuncIndex

	// HotChains are this function's chains, in final layout order,
	// restricted from the section's hot order.
	HotChains []*chain.NodeChain

	// ColdChain is this function's implicit cold chain, or nil if the
	// function has no zero-frequency blocks.
	ColdChain *chain.NodeChain

	// ColdChainLayoutIndex is this chain's position within the
	// section's cold segment, or -1 if ColdChain is nil.
	ColdChainLayoutIndex int

	OriginalIntraScore, OriginalInterOutScore   float64
	OptimizedIntraScore, OptimizedInterOutScore float64
}

// SectionLayoutInfo is the layout result for one output section.
type SectionLayoutInfo struct {
	SectionName string
	Functions   []*FunctionChainInfo
	HotOrder    []*chain.NodeChain
	ColdOrder   []*chain.NodeChain
}

// Options configures one layout run.
type Options struct {
	ScorerParams            scorer.Params
	ClusterParams           cluster.Params
	InterFunctionReordering bool
	CallChainClustering     bool

	// ChainSplit/ChainSplitThreshold gate the split-and-merge search
	// cap of §4.2.3 (§6.1 chain_split/chain_split_threshold).
	ChainSplit          bool
	ChainSplitThreshold uint64

	// ReorderHotBlocks, when false, disables the merge/attach/coalesce
	// pipeline entirely: hot blocks keep their seeded, original order
	// (§6.1 reorder_hot_blocks).
	ReorderHotBlocks bool

	// SplitFunctions, when false, folds each function's cold blocks
	// into its hot chain sequence instead of placing them in a
	// separate trailing cold segment (§6.1 split_functions, §8).
	SplitFunctions bool
}

// DefaultOptions mirrors the scorer's and clusterer's own defaults.
func DefaultOptions() Options {
	return Options{
		ScorerParams:            scorer.DefaultParams(),
		ClusterParams:           cluster.DefaultParams(),
		InterFunctionReordering: false,
		CallChainClustering:     true,
		ChainSplit:              true,
		ChainSplitThreshold:     ^uint64(0),
		ReorderHotBlocks:        true,
		SplitFunctions:          true,
	}
}

// Driver runs GenerateLayout/GenerateLayoutBySection over a program.
type Driver struct {
	g       *cfg.ProgramCfg
	opts    Options
	scoring *scorer.ExtTSPScorer
}

// NewDriver creates a layout driver over g using opts.
func NewDriver(g *cfg.ProgramCfg, opts Options) *Driver {
	return &Driver{g: g, opts: opts, scoring: scorer.New(opts.ScorerParams)}
}

// GenerateLayoutBySection runs the layout algorithm for every section
// in the program and returns one SectionLayoutInfo per section,
// sorted by section name, with a single global layout-position counter
// shared across all of them (§4.4 step 3).
func (d *Driver) GenerateLayoutBySection() []*SectionLayoutInfo {
	sections := d.g.SectionsToCFGs()
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	var globalPos uint64
	out := make([]*SectionLayoutInfo, 0, len(names))
	for _, name := range names {
		out = append(out, d.GenerateLayout(name, sections[name], &globalPos))
	}
	return out
}

// GenerateLayout runs the layout algorithm for one section's CFGs,
// advancing *globalPos by the section's total byte size.
func (d *Driver) GenerateLayout(sectionName string, cfgs []*cfg.ControlFlowGraph, globalPos *uint64) *SectionLayoutInfo {
	funcSet := make(map[cfg.FuncIndex]bool, len(cfgs))
	for _, g := range cfgs {
		funcSet[g.FuncIndex] = true
	}

	b := chain.NewNodeChainBuilder(d.g, d.opts.ScorerParams)
	if d.opts.InterFunctionReordering {
		b.EnableInterFunctionReordering()
	}
	b.SetChainSplit(d.opts.ChainSplit, d.opts.ChainSplitThreshold)
	if !d.opts.ReorderHotBlocks {
		b.DisableHotBlockReordering()
	}
	allChains := b.BuildChains()

	var sectionChains []*chain.NodeChain
	for _, c := range allChains {
		if funcSet[c.ID().Func] {
			sectionChains = append(sectionChains, c)
		}
	}

	var hotOrder []*chain.NodeChain
	if d.opts.CallChainClustering {
		cb := cluster.NewBuilder(d.g, d.opts.ClusterParams)
		hotOrder = cb.Build(sectionChains)
	} else {
		hotOrder = cluster.NoOrdering(sectionChains)
	}

	hotOrder, coldOrder, coldIndexOf := d.buildColdOrder(hotOrder, funcSet)

	posOf := make(map[cfg.NodeRef]uint64)
	for _, c := range hotOrder {
		for _, ref := range c.Nodes() {
			posOf[ref] = *globalPos
			*globalPos += d.g.CFG(ref.Func).Node(ref.Node).Size
		}
	}
	for _, c := range coldOrder {
		for _, ref := range c.Nodes() {
			posOf[ref] = *globalPos
			*globalPos += d.g.CFG(ref.Func).Node(ref.Node).Size
		}
	}

	origPos := func(ref cfg.NodeRef) (uint64, bool) {
		return d.g.CFG(ref.Func).Node(ref.Node).Addr, true
	}
	optPos := func(ref cfg.NodeRef) (uint64, bool) {
		p, ok := posOf[ref]
		return p, ok
	}

	funcs := make([]*FunctionChainInfo, 0, len(funcSet))
	for fn := range funcSet {
		oi, oo := scoreFunction(d.g, d.scoring, fn, origPos)
		pi, po := scoreFunction(d.g, d.scoring, fn, optPos)
		fc := &FunctionChainInfo{
			FuncIndex:              fn,
			OriginalIntraScore:     oi,
			OriginalInterOutScore:  oo,
			OptimizedIntraScore:    pi,
			OptimizedInterOutScore: po,
			ColdChainLayoutIndex:   -1,
		}
		if idx, ok := coldIndexOf[fn]; ok {
			fc.ColdChainLayoutIndex = idx
			fc.ColdChain = coldOrder[idx]
		}
		for _, c := range hotOrder {
			if c.ID().Func == fn {
				fc.HotChains = append(fc.HotChains, c)
			}
		}
		funcs = append(funcs, fc)
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].FuncIndex < funcs[j].FuncIndex })

	return &SectionLayoutInfo{
		SectionName: sectionName,
		Functions:   funcs,
		HotOrder:    hotOrder,
		ColdOrder:   coldOrder,
	}
}

// buildColdOrder assigns each function in funcSet its implicit cold
// chain (§4.2.8). When SplitFunctions is set (the default), cold
// chains are returned as a separate segment ordered to mirror
// hotOrder's relative function order (§4.3), and hotOrder passes
// through unchanged. When SplitFunctions is false (§6.1), hot and
// cold chains are not separated: each function's cold chain is
// spliced directly into hotOrder right after that function's last hot
// chain, so it shows up as one of the function's HotChains and no
// separate cold segment exists (§8: "no cold blocks in hot chains"
// applies only when split_functions is set).
func (d *Driver) buildColdOrder(hotOrder []*chain.NodeChain, funcSet map[cfg.FuncIndex]bool) ([]*chain.NodeChain, []*chain.NodeChain, map[cfg.FuncIndex]int) {
	seen := make(map[cfg.FuncIndex]bool, len(funcSet))
	var funcOrder []cfg.FuncIndex
	for _, c := range hotOrder {
		fn := c.ID().Func
		if !seen[fn] {
			seen[fn] = true
			funcOrder = append(funcOrder, fn)
		}
	}
	for fn := range funcSet {
		if !seen[fn] {
			seen[fn] = true
			funcOrder = append(funcOrder, fn)
		}
	}

	coldByFunc := make(map[cfg.FuncIndex]*chain.NodeChain)
	for _, fn := range funcOrder {
		if cc := chain.ColdChain(d.g, fn); cc != nil {
			coldByFunc[fn] = cc
		}
	}

	if !d.opts.SplitFunctions {
		lastIdxOfFunc := make(map[cfg.FuncIndex]int)
		for i, c := range hotOrder {
			lastIdxOfFunc[c.ID().Func] = i
		}
		merged := make([]*chain.NodeChain, 0, len(hotOrder)+len(coldByFunc))
		for i, c := range hotOrder {
			merged = append(merged, c)
			if i == lastIdxOfFunc[c.ID().Func] {
				if cc, ok := coldByFunc[c.ID().Func]; ok {
					merged = append(merged, cc)
				}
			}
		}
		for _, fn := range funcOrder {
			if _, hadHot := lastIdxOfFunc[fn]; hadHot {
				continue
			}
			if cc, ok := coldByFunc[fn]; ok {
				merged = append(merged, cc)
			}
		}
		return merged, nil, nil
	}

	var coldOrder []*chain.NodeChain
	coldIndexOf := make(map[cfg.FuncIndex]int)
	for _, fn := range funcOrder {
		if cc, ok := coldByFunc[fn]; ok {
			coldIndexOf[fn] = len(coldOrder)
			coldOrder = append(coldOrder, cc)
		}
	}
	return hotOrder, coldOrder, coldIndexOf
}

// scoreFunction sums the ExtTSP contribution of every edge whose
// source block belongs to fn, split into edges landing inside fn
// (intra) and edges leaving it (inter-out), using posOf to place both
// endpoints. posOf returning ok == false for either endpoint (address
// unknown) skips that edge's contribution.
func scoreFunction(g *cfg.ProgramCfg, s *scorer.ExtTSPScorer, fn cfg.FuncIndex, posOf func(cfg.NodeRef) (uint64, bool)) (intra, interOut float64) {
	cg := g.CFG(fn)
	for ni, n := range cg.Nodes {
		ref := cfg.NodeRef{Func: fn, Node: cfg.NodeIndex(ni)}
		srcPos, ok := posOf(ref)
		if !ok {
			continue
		}
		for _, ei := range n.IntraOut {
			e := cg.IntraEdge(ei)
			sinkPos, ok := posOf(e.Sink)
			if !ok {
				continue
			}
			sinkSize := cg.Node(e.Sink.Node).Size
			dist := int64(sinkPos) - int64(srcPos+n.Size)
			intra += s.Score(e.Kind, e.Weight, dist, n.Size, sinkSize, e.AlwaysTaken, e.IsIndirect)
		}
		for _, ir := range n.InterOut {
			e := g.CFG(ir.OwnerFunc).InterEdge(ir.Index)
			sinkPos, ok := posOf(e.Sink)
			if !ok {
				continue
			}
			sinkSize := g.CFG(e.Sink.Func).Node(e.Sink.Node).Size
			dist := int64(sinkPos) - int64(srcPos+n.Size)
			interOut += s.Score(e.Kind, e.Weight, dist, n.Size, sinkSize, e.AlwaysTaken, e.IsIndirect)
		}
	}
	return intra, interOut
}
