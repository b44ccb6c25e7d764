// Package scorer implements the Extended-TSP (ExtTSP) layout-quality
// scoring function (§4.1): given an edge and the signed layout
// distance from the end of its source block to the start of its sink
// block, it returns a real-valued contribution rewarding short
// forward/backward jumps and fallthroughs.
package scorer

import "github.com/google/propeller/internal/cfg"

// ExtTSPScorer scores edges under a fixed set of Params. It is pure
// and total: every finite input produces a finite score, with no
// panics.
type ExtTSPScorer struct {
	params Params
}

// New creates a scorer bound to params. params is copied; later
// mutation of the caller's struct does not affect the scorer.
func New(params Params) *ExtTSPScorer {
	return &ExtTSPScorer{params: params}
}

// Params returns the scorer's configuration.
func (s *ExtTSPScorer) Params() Params { return s.params }

// Score returns the ExtTSP contribution of one edge given:
//   - kind, weight: the edge's kind and execution weight.
//   - dist: the signed layout distance from the end of src to the
//     start of sink (dist > 0 is a forward jump, dist == 0 is a
//     fallthrough, dist < 0 is backward).
//   - srcSize, sinkSize: byte sizes of the edge's endpoints, used to
//     adjust call/return distances to approximate the call/return
//     instruction's position at the middle of its block.
//   - alwaysTaken: true if profiling observed this edge taken on
//     every execution of its source's exit.
//   - isIndirect: true if the edge is realized through an indirect
//     branch; such edges never receive the "always taken" bonus.
func (s *ExtTSPScorer) Score(kind cfg.EdgeKind, weight uint64, dist int64, srcSize, sinkSize uint64, alwaysTaken, isIndirect bool) float64 {
	if weight == 0 {
		return 0
	}
	w := float64(weight)
	eligibleForAlwaysBonus := alwaysTaken && !isIndirect

	if kind == cfg.BranchOrFallthrough && dist == 0 {
		score := w * s.params.FallthroughWeight
		if eligibleForAlwaysBonus {
			score += w * s.params.AlwaysFallthroughBranchWeight
		}
		return score
	}

	adjusted := adjustDistance(kind, dist, srcSize, sinkSize)

	var score float64
	switch {
	case adjusted > 0 && float64(adjusted) < s.params.ForwardJumpDistance:
		score = w * s.params.ForwardJumpWeight * (1 - float64(adjusted)/s.params.ForwardJumpDistance)
	case adjusted < 0 && float64(-adjusted) < s.params.BackwardJumpDistance:
		score = w * s.params.BackwardJumpWeight * (1 - float64(-adjusted)/s.params.BackwardJumpDistance)
	default:
		score = 0
	}

	if eligibleForAlwaysBonus {
		score += w * s.params.AlwaysTakenNonFallthroughBranchWeight
	}
	return score
}

// adjustDistance applies the call/return midpoint correction: call
// edges grow by srcSize/2, return edges by sinkSize/2, added to dist
// unconditionally regardless of its sign, since a call/return
// instruction sits at the middle of its block rather than at the
// block's start or end.
func adjustDistance(kind cfg.EdgeKind, dist int64, srcSize, sinkSize uint64) int64 {
	var offset int64
	switch kind {
	case cfg.Call:
		offset = int64(srcSize / 2)
	case cfg.Return:
		offset = int64(sinkSize / 2)
	default:
		return dist
	}
	return dist + offset
}
