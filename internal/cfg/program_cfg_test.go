package cfg_test

import (
	"testing"

	"github.com/google/propeller/internal/cfg/cfgtest"
)

func TestSectionsToCFGs(t *testing.T) {
	p := cfgtest.SimpleMultiFunction()
	sections := p.SectionsToCFGs()
	if len(sections[".text"]) != 4 {
		t.Fatalf("expected 4 functions in .text, got %d", len(sections[".text"]))
	}
}

func TestFrequencyPercentile(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()
	// With nodes 841, 186, 666, 842, 185, 862, percentile 1.0 should
	// be the program maximum.
	max := p.FrequencyPercentile(0, 1.0)
	if max != 862 {
		t.Errorf("FrequencyPercentile(1.0) = %d, want 862", max)
	}
	min := p.FrequencyPercentile(0, 0.0)
	if min != 185 {
		t.Errorf("FrequencyPercentile(0.0) = %d, want 185", min)
	}
	// Same generation+percentile must hit the memoized value.
	again := p.FrequencyPercentile(0, 1.0)
	if again != max {
		t.Errorf("memoized FrequencyPercentile changed: got %d, want %d", again, max)
	}
}

func TestHotJoinNodes(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()
	joins := p.HotJoinNodes()
	// bb3 (in from 1,2), bb4 (in from 2,3), bb5 (in from 3,4) all have
	// 2 hot predecessors.
	if len(joins) != 3 {
		t.Errorf("expected 3 hot join nodes, got %d", len(joins))
	}
}
