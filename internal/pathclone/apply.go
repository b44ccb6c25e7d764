package pathclone

import "github.com/google/propeller/internal/cfg"

// CloningStats summarizes one ApplyClonings run (§7: "the driver
// aggregates per-candidate failures into statistics (paths_cloned,
// bbs_cloned, bytes_cloned, score_gain)").
type CloningStats struct {
	Applied        int
	Rejected       int
	TotalScoreGain float64
	BBsCloned      int
	BytesCloned    uint64
}

// ApplyClonings generates path-cloning candidates for every function
// with a recorded profile and commits each function's best candidate
// into a single cumulative result, provided its score clears
// params.MinFinalCloningScore (§4.5.5).
//
// Candidates are generated and scored once, against g as it stood at
// the start of the run, rather than re-evaluated after every commit
// to account for weight changes a sibling function's cloning may have
// introduced; this implementation also commits at most one cloning
// per function rather than layering several with cross-commit
// conflict tracking (see DESIGN.md).
func ApplyClonings(g *cfg.ProgramCfg, profiles map[cfg.FuncIndex]*PathProfile, params EvalParams) (*cfg.ProgramCfg, CloningStats) {
	evaluator := NewPathTreeCloneEvaluator(g, profiles, params)
	result := g
	var stats CloningStats

	for _, fn := range g.Functions() {
		if profiles[fn] == nil {
			continue
		}
		candidates := evaluator.GenerateCandidates(fn)
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		if best.Score <= params.MinFinalCloningScore {
			stats.Rejected += len(candidates)
			continue
		}

		updated, err := rebuildProgram(result, fn, best, true)
		if err != nil {
			stats.Rejected += len(candidates)
			continue
		}
		result = updated
		stats.Applied++
		stats.TotalScoreGain += best.Score
		stats.BBsCloned += len(best.PathToClone)
		for _, bb := range best.PathToClone {
			if n := nodeByBB(g.CFG(fn), bb); n != nil {
				stats.BytesCloned += n.Size
			}
		}
		stats.Rejected += len(candidates) - 1
	}

	return result, stats
}
