package chain_test

import (
	"testing"

	"github.com/google/propeller/internal/cfg/cfgtest"
	"github.com/google/propeller/internal/chain"
	"github.com/google/propeller/internal/scorer"
)

func TestBuildChainsThreeBranchCoversEveryHotBlockExactlyOnce(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()
	b := chain.NewNodeChainBuilder(p, scorer.DefaultParams())
	chains := b.BuildChains()

	seen := make(map[int]int)
	for _, c := range chains {
		for i := 0; i < c.Len(); i++ {
			seen[int(c.NodeAt(i).Node)]++
		}
	}
	for bb := 0; bb < 6; bb++ {
		if seen[bb] != 1 {
			t.Errorf("block %d appears %d times across the returned chains, want exactly 1", bb, seen[bb])
		}
	}

	for _, c := range chains {
		if c.Len() == 0 {
			t.Errorf("builder returned an empty chain")
		}
	}
}

func TestDisableHotBlockReorderingKeepsSeededOrder(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()

	bDisabled := chain.NewNodeChainBuilder(p, scorer.DefaultParams())
	bDisabled.DisableHotBlockReordering()
	chainsDisabled := bDisabled.BuildChains()

	// ThreeBranchCFG has no forced edges (no edge is both its source's
	// only hot out edge and its sink's only hot in edge), so with
	// reordering disabled every hot block stays its own singleton chain.
	if len(chainsDisabled) != 6 {
		t.Errorf("expected 6 untouched singleton chains, got %d", len(chainsDisabled))
	}

	bEnabled := chain.NewNodeChainBuilder(p, scorer.DefaultParams())
	chainsEnabled := bEnabled.BuildChains()
	if len(chainsEnabled) >= len(chainsDisabled) {
		t.Errorf("expected the merge loop to reduce chain count below the seeded count: enabled=%d disabled=%d", len(chainsEnabled), len(chainsDisabled))
	}
}

func TestChainSplitThresholdCapsSplitSearch(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()

	// With splitting entirely disabled, the merge loop may still join
	// whole chains end-to-end (OrderSU); every block must still end up
	// in exactly one chain.
	b := chain.NewNodeChainBuilder(p, scorer.DefaultParams())
	b.SetChainSplit(false, 0)
	chains := b.BuildChains()

	seen := make(map[int]int)
	for _, c := range chains {
		for i := 0; i < c.Len(); i++ {
			seen[int(c.NodeAt(i).Node)]++
		}
	}
	for bb := 0; bb < 6; bb++ {
		if seen[bb] != 1 {
			t.Errorf("block %d appears %d times with splitting disabled, want exactly 1", bb, seen[bb])
		}
	}
}

func TestBuildChainsLoopFormsOneForcedChain(t *testing.T) {
	p := cfgtest.LoopNoEntryNoExit()
	b := chain.NewNodeChainBuilder(p, scorer.DefaultParams())
	chains := b.BuildChains()

	foundLoopPair := false
	for _, c := range chains {
		for i := 0; i+1 < c.Len(); i++ {
			a, bNode := c.NodeAt(i), c.NodeAt(i+1)
			if int(a.Node) == 1 && int(bNode.Node) == 2 {
				foundLoopPair = true
				if !c.IsForcedAfter(i) {
					t.Errorf("expected the 1->2 boundary to be forced")
				}
			}
		}
	}
	if !foundLoopPair {
		t.Errorf("expected a chain containing the forced 1->2 pair, got %d chains", len(chains))
	}
}
