package layout_test

import (
	"testing"

	"github.com/google/propeller/internal/cfg/cfgtest"
	"github.com/google/propeller/internal/layout"
)

func TestGenerateLayoutBySectionCoversEveryFunction(t *testing.T) {
	p := cfgtest.SimpleMultiFunction()
	d := layout.NewDriver(p, layout.DefaultOptions())
	sections := d.GenerateLayoutBySection()

	if len(sections) != 1 {
		t.Fatalf("expected one section, got %d", len(sections))
	}
	s := sections[0]
	if len(s.Functions) != 4 {
		t.Fatalf("expected 4 functions (foo, bar, baz, qux), got %d", len(s.Functions))
	}
	for _, fc := range s.Functions {
		if fc.OptimizedIntraScore < 0 || fc.OptimizedInterOutScore < 0 {
			t.Errorf("function %d: negative score components: intra=%v interOut=%v", fc.FuncIndex, fc.OptimizedIntraScore, fc.OptimizedInterOutScore)
		}
	}
}

func TestGenerateLayoutAssignsDistinctPositions(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()
	d := layout.NewDriver(p, layout.DefaultOptions())
	sections := d.GenerateLayoutBySection()
	if len(sections) != 1 {
		t.Fatalf("expected one section, got %d", len(sections))
	}
	total := 0
	for _, c := range sections[0].HotOrder {
		total += c.Len()
	}
	for _, c := range sections[0].ColdOrder {
		total += c.Len()
	}
	if total != 6 {
		t.Errorf("expected 6 total blocks across hot+cold order, got %d", total)
	}
}

func TestSplitFunctionsSeparatesColdBlocksByDefault(t *testing.T) {
	p := cfgtest.HotLandingPad()
	d := layout.NewDriver(p, layout.DefaultOptions())
	sections := d.GenerateLayoutBySection()
	s := sections[0]

	if len(s.ColdOrder) == 0 {
		t.Fatalf("expected a non-empty cold segment with split_functions enabled")
	}
	for _, fc := range s.Functions {
		for _, hc := range fc.HotChains {
			for i := 0; i < hc.Len(); i++ {
				if int(hc.NodeAt(i).Node) == 3 {
					t.Errorf("cold block 3 found inside a hot chain while split_functions is set")
				}
			}
		}
	}
}

func TestDisablingSplitFunctionsFoldsColdIntoHotChains(t *testing.T) {
	p := cfgtest.HotLandingPad()
	opts := layout.DefaultOptions()
	opts.SplitFunctions = false
	d := layout.NewDriver(p, opts)
	sections := d.GenerateLayoutBySection()
	s := sections[0]

	if len(s.ColdOrder) != 0 {
		t.Errorf("expected no separate cold segment with split_functions disabled, got %d chains", len(s.ColdOrder))
	}

	foundColdInHot := false
	for _, fc := range s.Functions {
		if fc.ColdChain != nil {
			t.Errorf("expected FunctionChainInfo.ColdChain to be nil with split_functions disabled")
		}
		for _, hc := range fc.HotChains {
			for i := 0; i < hc.Len(); i++ {
				if int(hc.NodeAt(i).Node) == 3 {
					foundColdInHot = true
				}
			}
		}
	}
	if !foundColdInHot {
		t.Errorf("expected cold block 3 to be folded into a hot chain with split_functions disabled")
	}
}
