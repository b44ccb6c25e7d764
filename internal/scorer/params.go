package scorer

// Params holds the tunable weights and distance limits for the
// Extended-TSP scoring function (§4.1). All fields are
// caller-supplied and independent; Params is passed by value/pointer,
// never stored as process-wide state (§9).
type Params struct {
	FallthroughWeight float64
	ForwardJumpWeight float64
	// ForwardJumpDistance is the forward cutoff, in bytes.
	ForwardJumpDistance float64
	BackwardJumpWeight  float64
	// BackwardJumpDistance is the backward cutoff, in bytes.
	BackwardJumpDistance float64

	// AlwaysFallthroughBranchWeight is the extra per-weight bonus
	// added when a BranchOrFallthrough edge that is both
	// "always taken" and not indirect achieves an actual fallthrough
	// (d == 0).
	AlwaysFallthroughBranchWeight float64

	// AlwaysTakenNonFallthroughBranchWeight is the extra per-weight
	// bonus added to any always-taken, non-indirect edge outside the
	// fallthrough case.
	AlwaysTakenNonFallthroughBranchWeight float64
}

// DefaultParams returns the weights used throughout the spec's §8
// seed scenarios: the same defaults as the original implementation's
// propeller/code_layout_scorer.cc.
func DefaultParams() Params {
	return Params{
		FallthroughWeight:                     1.0,
		ForwardJumpWeight:                     0.1,
		ForwardJumpDistance:                   1 << 20,
		BackwardJumpWeight:                    0.1,
		BackwardJumpDistance:                  640,
		AlwaysFallthroughBranchWeight:         0,
		AlwaysTakenNonFallthroughBranchWeight: 0,
	}
}
