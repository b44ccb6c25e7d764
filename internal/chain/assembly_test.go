package chain

import (
	"testing"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/scorer"
)

func mkTestChain(id cfg.FullIntraCfgID, refs []cfg.NodeRef, forced []bool) *NodeChain {
	c := newChain(id)
	c.nodes = refs
	c.forcedAfter = forced
	return c
}

func TestConcatSegmentsInsertsUnforcedBoundary(t *testing.T) {
	a := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 0}, {Node: 1}}, []bool{true})
	b := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 2}}, nil)

	nodes, forcedAfter, _ := concatSegments(sliceChain(a, 0, 2), sliceChain(b, 0, 1))
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if len(forcedAfter) != 2 || !forcedAfter[0] || forcedAfter[1] {
		t.Errorf("forcedAfter = %v, want [true false]", forcedAfter)
	}
}

func TestAssemblyValiditySUOnlyAtFullSplit(t *testing.T) {
	s := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 0}, {Node: 1}}, []bool{false})
	u := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 2}}, nil)

	valid := &NodeChainAssembly{s: s, u: u, splitPos: 2, order: OrderSU}
	if !valid.valid() {
		t.Errorf("expected OrderSU at splitPos == len(s.nodes) to be valid")
	}

	invalid := &NodeChainAssembly{s: s, u: u, splitPos: 1, order: OrderSU}
	if invalid.valid() {
		t.Errorf("expected OrderSU at a partial split to be invalid")
	}
}

func TestAssemblyRejectsSplitInsideForcedRun(t *testing.T) {
	s := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 0}, {Node: 1}, {Node: 2}}, []bool{true, true})
	u := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 3}}, nil)

	asm := &NodeChainAssembly{s: s, u: u, splitPos: 1, order: OrderS2S1U}
	if asm.valid() {
		t.Errorf("split at position 1 sits inside a forced run, must be invalid")
	}
}

func TestAssemblyOrderS1US2InsertsBetweenHalves(t *testing.T) {
	s := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 0}, {Node: 1}}, []bool{false})
	u := mkTestChain(cfg.FullIntraCfgID{}, []cfg.NodeRef{{Node: 2}}, nil)

	asm := &NodeChainAssembly{s: s, u: u, splitPos: 1, order: OrderS1US2}
	if !asm.valid() {
		t.Fatalf("expected OrderS1US2 to be valid at an unforced mid-split")
	}
	nodes, _, _ := asm.assemble()
	want := []cfg.NodeRef{{Node: 0}, {Node: 2}, {Node: 1}}
	if len(nodes) != len(want) {
		t.Fatalf("assemble() = %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Errorf("assemble()[%d] = %v, want %v", i, nodes[i], want[i])
		}
	}
}

func TestEvaluateScoreGainAddsFallthroughAcrossChains(t *testing.T) {
	g := buildTwoChainFallthroughFixture(t)
	s := scorer.New(scorer.DefaultParams())

	a := mkTestChain(cfg.FullIntraCfgID{BBIndex: 0}, []cfg.NodeRef{{Func: 0, Node: 0}}, nil)
	b := mkTestChain(cfg.FullIntraCfgID{BBIndex: 1}, []cfg.NodeRef{{Func: 0, Node: 1}}, nil)
	a.recomputeSizeFrequency(g)
	a.recomputeScore(g, s)
	b.recomputeSizeFrequency(g)
	b.recomputeScore(g, s)

	asm := &NodeChainAssembly{s: a, u: b, splitPos: 1, order: OrderSU}
	asm.evaluate(g, s)
	if asm.ScoreGain() <= 0 {
		t.Errorf("expected positive score gain from fusing a hot fallthrough edge, got %v", asm.ScoreGain())
	}
}

// buildTwoChainFallthroughFixture builds a tiny two-block CFG with a
// single hot fallthrough edge from block 0 to block 1, used to check
// that merging the two singleton chains captures that edge's score.
func buildTwoChainFallthroughFixture(t *testing.T) *cfg.ProgramCfg {
	t.Helper()
	b := cfg.NewBuilder()
	const fn cfg.FuncIndex = 0
	b.AddFunction(fn, ".text", "f", nil, "")
	b.AddNode(fn, cfg.CFGNode{BBIndex: 0, CloneNumber: 0, BBID: 0, Size: 8, CanFallthrough: true})
	b.AddNode(fn, cfg.CFGNode{BBIndex: 1, CloneNumber: 0, BBID: 1, Size: 8})
	b.AddIntraEdge(fn, cfg.IntraCfgID{BBIndex: 0}, cfg.IntraCfgID{BBIndex: 1}, 100, cfg.BranchOrFallthrough, false, false)
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}
