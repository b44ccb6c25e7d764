// Package cfgtest builds the concrete seed-scenario program-CFGs
// named in §8 of the specification, grounded on the original
// implementation's propeller/cfg_testutil.h and
// propeller/mock_program_cfg_builder.h. Tests across the engine's
// packages (chain, cluster, layout, pathclone) import this package so
// the same fixtures exercise every phase.
package cfgtest

import "github.com/google/propeller/internal/cfg"

// NodeSpec describes one basic block to add to a fixture CFG.
type NodeSpec struct {
	BBIndex        int
	Size           uint64
	IsLandingPad   bool
	CanFallthrough bool
	HasReturn      bool
}

// EdgeSpec describes one intra-function edge to add to a fixture CFG.
type EdgeSpec struct {
	Src, Sink int
	Weight    uint64
	Kind      cfg.EdgeKind
}

// BuildSingleCFG constructs a one-function ProgramCfg from simple
// node and edge specs, all in section ".text". Every node is added
// with CloneNumber 0 and BBID equal to its BBIndex, and every edge is
// BranchOrFallthrough unless overridden in the spec.
func BuildSingleCFG(funcName string, nodes []NodeSpec, edges []EdgeSpec) *cfg.ProgramCfg {
	b := cfg.NewBuilder()
	const fn cfg.FuncIndex = 0
	b.AddFunction(fn, ".text", funcName, nil, "")
	for _, ns := range nodes {
		b.AddNode(fn, cfg.CFGNode{
			BBIndex:        ns.BBIndex,
			CloneNumber:    0,
			BBID:           uint64(ns.BBIndex),
			Size:           ns.Size,
			IsLandingPad:   ns.IsLandingPad,
			CanFallthrough: ns.CanFallthrough,
			HasReturn:      ns.HasReturn,
		})
	}
	for _, es := range edges {
		b.AddIntraEdge(fn,
			cfg.IntraCfgID{BBIndex: es.Src}, cfg.IntraCfgID{BBIndex: es.Sink},
			es.Weight, es.Kind, false, false)
	}
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// ThreeBranchCFG builds the §8 scenario 1 fixture: a single CFG with
// nodes 0..5 and the edge weights from the spec. With default layout
// parameters the expected optimized order is {0,1,4,5} and {2,3} as
// a separate (lower-density) chain.
func ThreeBranchCFG() *cfg.ProgramCfg {
	return BuildSingleCFG("three_branch",
		[]NodeSpec{
			{BBIndex: 0, Size: 0x10, CanFallthrough: true},
			{BBIndex: 1, Size: 7, CanFallthrough: true},
			{BBIndex: 2, Size: 40, CanFallthrough: true},
			{BBIndex: 3, Size: 8, CanFallthrough: true},
			{BBIndex: 4, Size: 32, CanFallthrough: true},
			{BBIndex: 5, Size: 6},
		},
		[]EdgeSpec{
			{Src: 0, Sink: 1, Weight: 181},
			{Src: 0, Sink: 2, Weight: 660},
			{Src: 1, Sink: 3, Weight: 186},
			{Src: 2, Sink: 3, Weight: 656},
			{Src: 2, Sink: 4, Weight: 10},
			{Src: 3, Sink: 4, Weight: 5},
			{Src: 3, Sink: 5, Weight: 677},
			{Src: 4, Sink: 5, Weight: 185},
		})
}

// LoopNoEntryNoExit builds the §8 scenario 2 fixture: nodes 0..3 with
// a 1<->2 loop and no other outbound flow, used to exercise forced
// edge discovery and cycle breaking.
func LoopNoEntryNoExit() *cfg.ProgramCfg {
	return BuildSingleCFG("loop_no_entry_no_exit",
		[]NodeSpec{
			{BBIndex: 0, Size: 4, CanFallthrough: true},
			{BBIndex: 1, Size: 4, CanFallthrough: true},
			{BBIndex: 2, Size: 4, CanFallthrough: true},
			{BBIndex: 3, Size: 4},
		},
		[]EdgeSpec{
			{Src: 1, Sink: 2, Weight: 100},
			{Src: 2, Sink: 1, Weight: 100},
		})
}

// HotLandingPad builds the §8 scenario 4 fixture: blocks 0..5 where
// block 3 is a zero-frequency EH pad (must stay excluded as cold) and
// block 2 is a hot EH pad (must be embedded in the chain).
func HotLandingPad() *cfg.ProgramCfg {
	b := cfg.NewBuilder()
	const fn cfg.FuncIndex = 0
	b.AddFunction(fn, ".text", "hot_landing_pad", nil, "")
	specs := []struct {
		bb  int
		sz  uint64
		pad bool
	}{
		{0, 16, false},
		{1, 8, false},
		{2, 12, true},
		{3, 12, true},
		{4, 8, false},
		{5, 4, false},
	}
	for _, s := range specs {
		b.AddNode(fn, cfg.CFGNode{
			BBIndex: s.bb, CloneNumber: 0, BBID: uint64(s.bb), Size: s.sz,
			IsLandingPad: s.pad, CanFallthrough: true,
		})
	}
	edges := []EdgeSpec{
		{Src: 0, Sink: 1, Weight: 500},
		{Src: 1, Sink: 2, Weight: 300}, // hot EH edge into landing pad 2
		{Src: 1, Sink: 4, Weight: 200},
		{Src: 2, Sink: 4, Weight: 300},
		{Src: 4, Sink: 5, Weight: 500},
		// block 3 (cold EH pad) has no incoming weight at all.
	}
	for _, es := range edges {
		b.AddIntraEdge(fn, cfg.IntraCfgID{BBIndex: es.Src}, cfg.IntraCfgID{BBIndex: es.Sink}, es.Weight, es.Kind, false, false)
	}
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// SimpleMultiFunction builds the §8 scenario 3 fixture: four
// functions foo, bar, baz, qux, where foo is called almost
// exclusively from bar and qux stands alone.
func SimpleMultiFunction() *cfg.ProgramCfg {
	b := cfg.NewBuilder()
	const (
		foo cfg.FuncIndex = 0
		bar cfg.FuncIndex = 1
		baz cfg.FuncIndex = 2
		qux cfg.FuncIndex = 3
	)
	mk := func(idx cfg.FuncIndex, name string, size uint64, freq uint64) {
		b.AddFunction(idx, ".text", name, nil, "")
		b.AddNode(idx, cfg.CFGNode{BBIndex: 0, CloneNumber: 0, BBID: 0, Size: size, CanFallthrough: false, HasReturn: true})
	}
	mk(foo, "foo", 64, 0)
	mk(bar, "bar", 96, 0)
	mk(baz, "baz", 48, 0)
	mk(qux, "qux", 32, 0)

	// bar calls foo frequently; baz calls foo rarely.
	b.AddInterEdge(bar, cfg.IntraCfgID{BBIndex: 0}, foo, cfg.IntraCfgID{BBIndex: 0}, 900, cfg.Call, false, false)
	b.AddInterEdge(baz, cfg.IntraCfgID{BBIndex: 0}, foo, cfg.IntraCfgID{BBIndex: 0}, 5, cfg.Call, false, false)
	b.AddInterEdge(foo, cfg.IntraCfgID{BBIndex: 0}, bar, cfg.IntraCfgID{BBIndex: 0}, 900, cfg.Return, false, false)
	b.AddInterEdge(foo, cfg.IntraCfgID{BBIndex: 0}, baz, cfg.IntraCfgID{BBIndex: 0}, 5, cfg.Return, false, false)

	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
