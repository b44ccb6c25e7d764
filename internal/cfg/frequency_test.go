package cfg_test

import (
	"testing"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/cfg/cfgtest"
)

// TestNodeFrequencyIdentity verifies the §8 testable property: every
// node's computed frequency equals
// max(max_call_out, max_return_in, sum_non_call_out, sum_non_return_in).
func TestNodeFrequencyIdentity(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()
	g := p.CFG(0)

	cases := []struct {
		bb   int
		want uint64
	}{
		{0, 841}, // sum_non_call_out: 181+660
		{1, 186}, // sum_non_call_out: 186 (in: 181 too, but out dominates)
		{2, 666}, // sum_non_call_out: 656+10
		{3, 842}, // sum_non_return_in: 186+656 dominates sum_non_call_out 5+677=682
		{4, 185}, // sum_non_call_out out: 185; in: 10+5=15
		{5, 862}, // sum_non_return_in: 677+185
	}
	for _, c := range cases {
		n, _, ok := g.NodeByID(cfg.IntraCfgID{BBIndex: c.bb})
		if !ok {
			t.Fatalf("bb %d not found", c.bb)
		}
		if n.Frequency != c.want {
			t.Errorf("bb %d: frequency = %d, want %d", c.bb, n.Frequency, c.want)
		}
	}
}

// TestComputeFrequencyCallReturnMax verifies that polymorphic call
// sites (multiple call edges from one site) contribute their max, not
// their sum. Only call edges are exercised here.
func TestComputeFrequencyCallReturnMax(t *testing.T) {
	b := cfg.NewBuilder()
	const (
		caller cfg.FuncIndex = 0
		calleeA cfg.FuncIndex = 1
		calleeB cfg.FuncIndex = 2
	)
	b.AddFunction(caller, ".text", "caller", nil, "")
	b.AddNode(caller, cfg.CFGNode{BBIndex: 0, Size: 8})
	b.AddFunction(calleeA, ".text", "a", nil, "")
	b.AddNode(calleeA, cfg.CFGNode{BBIndex: 0, Size: 8})
	b.AddFunction(calleeB, ".text", "b", nil, "")
	b.AddNode(calleeB, cfg.CFGNode{BBIndex: 0, Size: 8})

	// Polymorphic call site: 100 calls resolve to either A or B.
	b.AddInterEdge(caller, cfg.IntraCfgID{BBIndex: 0}, calleeA, cfg.IntraCfgID{BBIndex: 0}, 60, cfg.Call, false, true)
	b.AddInterEdge(caller, cfg.IntraCfgID{BBIndex: 0}, calleeB, cfg.IntraCfgID{BBIndex: 0}, 40, cfg.Call, false, true)

	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	n := p.CFG(caller).Node(0)
	if n.Frequency != 60 {
		t.Errorf("polymorphic call site frequency = %d, want max(60,40)=60", n.Frequency)
	}
}

func TestBuilderRejectsOutOfOrderNodes(t *testing.T) {
	b := cfg.NewBuilder()
	b.AddFunction(0, ".text", "f", nil, "")
	b.AddNode(0, cfg.CFGNode{BBIndex: 2})
	b.AddNode(0, cfg.CFGNode{BBIndex: 1})
	if _, err := b.Build(); err == nil {
		t.Fatal("expected an error for out-of-order node insertion")
	}
}

func TestClonesByBBIndexPositionInvariant(t *testing.T) {
	b := cfg.NewBuilder()
	b.AddFunction(0, ".text", "f", nil, "")
	b.AddNode(0, cfg.CFGNode{BBIndex: 0})
	b.AddNode(0, cfg.CFGNode{BBIndex: 1})
	b.AddNode(0, cfg.CFGNode{BBIndex: 1, CloneNumber: 1})
	b.AddNode(0, cfg.CFGNode{BBIndex: 1, CloneNumber: 2})
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	clones := p.CFG(0).ClonesByBBIndex[1]
	if len(clones) != 2 {
		t.Fatalf("expected 2 clones, got %d", len(clones))
	}
	for i, idx := range clones {
		n := p.CFG(0).Node(idx)
		if n.CloneNumber != i+1 {
			t.Errorf("clone at position %d has clone_number %d, want %d", i, n.CloneNumber, i+1)
		}
	}
}
