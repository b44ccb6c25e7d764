package scorer_test

import (
	"testing"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/scorer"
)

func TestFallthroughScore(t *testing.T) {
	s := scorer.New(scorer.DefaultParams())
	got := s.Score(cfg.BranchOrFallthrough, 100, 0, 16, 16, false, false)
	want := 100 * scorer.DefaultParams().FallthroughWeight
	if got != want {
		t.Errorf("fallthrough score = %v, want %v", got, want)
	}
}

func TestForwardJumpDecaysWithDistance(t *testing.T) {
	s := scorer.New(scorer.DefaultParams())
	near := s.Score(cfg.BranchOrFallthrough, 100, 10, 16, 16, false, false)
	far := s.Score(cfg.BranchOrFallthrough, 100, 500, 16, 16, false, false)
	if !(near > far) {
		t.Errorf("expected nearer forward jump to score higher: near=%v far=%v", near, far)
	}
}

func TestForwardJumpBeyondLimitScoresZero(t *testing.T) {
	p := scorer.DefaultParams()
	p.ForwardJumpDistance = 100
	s := scorer.New(p)
	got := s.Score(cfg.BranchOrFallthrough, 100, 1000, 16, 16, false, false)
	if got != 0 {
		t.Errorf("expected 0 beyond forward jump limit, got %v", got)
	}
}

func TestBackwardJumpBeyondLimitScoresZero(t *testing.T) {
	p := scorer.DefaultParams()
	p.BackwardJumpDistance = 100
	s := scorer.New(p)
	got := s.Score(cfg.BranchOrFallthrough, 100, -1000, 16, 16, false, false)
	if got != 0 {
		t.Errorf("expected 0 beyond backward jump limit, got %v", got)
	}
}

func TestAlwaysFallthroughBonusRequiresNonIndirect(t *testing.T) {
	p := scorer.DefaultParams()
	p.AlwaysFallthroughBranchWeight = 2.0
	s := scorer.New(p)

	direct := s.Score(cfg.BranchOrFallthrough, 10, 0, 8, 8, true, false)
	indirect := s.Score(cfg.BranchOrFallthrough, 10, 0, 8, 8, true, true)
	base := s.Score(cfg.BranchOrFallthrough, 10, 0, 8, 8, false, false)

	if direct <= base {
		t.Errorf("expected always-taken direct fallthrough to score higher than base: %v vs %v", direct, base)
	}
	if indirect != base {
		t.Errorf("indirect always-taken edge must not get the bonus: got %v, want %v", indirect, base)
	}
}

func TestReturnEdgeNeverGetsFallthroughBonus(t *testing.T) {
	p := scorer.DefaultParams()
	p.AlwaysFallthroughBranchWeight = 5.0
	s := scorer.New(p)
	// dist == 0 but kind == Return: must not be scored as a
	// fallthrough even though the raw distance is zero.
	got := s.Score(cfg.Return, 10, 0, 8, 8, true, false)
	fallthroughScore := s.Score(cfg.BranchOrFallthrough, 10, 0, 8, 8, true, false)
	if got == fallthroughScore {
		t.Errorf("return edge scored as if it were a fallthrough")
	}
}

func TestCallEdgeUsesSourceMidpoint(t *testing.T) {
	s := scorer.New(scorer.DefaultParams())
	// Two call edges with the same raw dist but different src sizes:
	// the larger source block should be treated as a longer jump.
	small := s.Score(cfg.Call, 10, 100, 4, 4, false, false)
	large := s.Score(cfg.Call, 10, 100, 400, 4, false, false)
	if !(small > large) {
		t.Errorf("expected larger src size to reduce call-edge score: small=%v large=%v", small, large)
	}
}

func TestBackwardCallEdgeMidpointCanFlipToForwardJump(t *testing.T) {
	s := scorer.New(scorer.DefaultParams())
	// A call edge with srcSize=100 (offset 50) and a raw backward
	// distance of -10 should adjust to +40 (a forward jump), not a
	// larger backward jump, since the call sits mid-block.
	got := s.Score(cfg.Call, 10, -10, 100, 4, false, false)
	want := s.Score(cfg.BranchOrFallthrough, 10, 40, 4, 4, false, false)
	if got != want {
		t.Errorf("backward call edge score = %v, want forward-jump(40) score %v", got, want)
	}
}

func TestScoreIsZeroWeightSafe(t *testing.T) {
	s := scorer.New(scorer.DefaultParams())
	if got := s.Score(cfg.BranchOrFallthrough, 0, 0, 8, 8, true, false); got != 0 {
		t.Errorf("zero-weight edge must score 0, got %v", got)
	}
}
