package cluster_test

import (
	"testing"

	"github.com/google/propeller/internal/cfg/cfgtest"
	"github.com/google/propeller/internal/chain"
	"github.com/google/propeller/internal/cluster"
	"github.com/google/propeller/internal/scorer"
)

func TestClusterMergesCalleeIntoFrequentCaller(t *testing.T) {
	p := cfgtest.SimpleMultiFunction()
	b := chain.NewNodeChainBuilder(p, scorer.DefaultParams())
	chains := b.BuildChains()

	cb := cluster.NewBuilder(p, cluster.DefaultParams())
	ordered := cb.Build(chains)

	// foo is called overwhelmingly by bar (weight 900) and only
	// rarely by baz (weight 5): bar's cluster should absorb foo, while
	// baz's chain should remain in its own cluster as a separate run
	// in the output.
	idxFoo, idxBar, idxBaz := -1, -1, -1
	for i, c := range ordered {
		switch int(c.NodeAt(0).Func) {
		case 0:
			idxFoo = i
		case 1:
			idxBar = i
		case 2:
			idxBaz = i
		}
	}
	if idxFoo == -1 || idxBar == -1 || idxBaz == -1 {
		t.Fatalf("expected foo, bar, baz chains all present, got %d chains", len(ordered))
	}
	adjacentToBar := idxFoo == idxBar+1 || idxFoo == idxBar-1
	if !adjacentToBar {
		t.Errorf("expected foo adjacent to bar in clustered order, got order indices foo=%d bar=%d baz=%d", idxFoo, idxBar, idxBaz)
	}
}

func TestNoOrderingSortsByDelegateID(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()
	b := chain.NewNodeChainBuilder(p, scorer.DefaultParams())
	chains := b.BuildChains()

	ordered := cluster.NoOrdering(chains)
	for i := 1; i < len(ordered); i++ {
		if !ordered[i-1].ID().Less(ordered[i].ID()) {
			t.Errorf("NoOrdering must sort strictly by delegate id, position %d not less than %d", i-1, i)
		}
	}
}
