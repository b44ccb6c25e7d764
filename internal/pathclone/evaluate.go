package pathclone

import (
	"sort"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/cluster"
	"github.com/google/propeller/internal/layout"
	"github.com/google/propeller/internal/scorer"
)

// EvalParams configures candidate generation and scoring (§4.5.3,
// §4.5.4).
type EvalParams struct {
	// MaxPathLength bounds how many blocks a single DFS descent down
	// the path-profile tree may clone in one candidate.
	MaxPathLength int

	// MinFlowRatio is the minimum fraction of a node's total flow a
	// child must carry to be worth descending into (§4.5.4).
	MinFlowRatio float64

	// CloneIndirectBranchBlocks allows cloning blocks ending in an
	// indirect branch; off by default since the clone's successor set
	// can't be statically narrowed.
	CloneIndirectBranchBlocks bool

	MinInitialCloningScore float64
	MinFinalCloningScore   float64

	// BasePenaltyFactor and ICachePenaltyFactor weight the per-block
	// code-growth and cache-pressure penalty terms (§4.5.3).
	BasePenaltyFactor   float64
	ICachePenaltyFactor float64

	// ScorerParams/ClusterParams are the engine's actual configured
	// ExtTSP and clusterer parameters (§6.1). optimizedScore (§4.5.3)
	// must score candidates with these same weights, or a caller who
	// configures non-default weights gets cloning accept/reject
	// decisions made against silently different scoring than the
	// layout that is actually emitted.
	ScorerParams  scorer.Params
	ClusterParams cluster.Params
}

// DefaultEvalParams returns conservative defaults: a short maximum
// path length and a break-even score threshold, so a cloning is only
// proposed when the DFS's own accounting already shows a net win.
func DefaultEvalParams() EvalParams {
	return EvalParams{
		MaxPathLength:             10,
		MinFlowRatio:              0.8,
		CloneIndirectBranchBlocks: false,
		MinInitialCloningScore:    0,
		MinFinalCloningScore:      0,
		BasePenaltyFactor:         0.0005,
		ICachePenaltyFactor:       0.001,
		ScorerParams:              scorer.DefaultParams(),
		ClusterParams:             cluster.DefaultParams(),
	}
}

// PathTreeCloneEvaluator generates and scores path-cloning candidates
// for every function with a recorded path profile (§4.5.4).
type PathTreeCloneEvaluator struct {
	g        *cfg.ProgramCfg
	profiles map[cfg.FuncIndex]*PathProfile
	params   EvalParams
}

// NewPathTreeCloneEvaluator creates an evaluator over g's profiles.
func NewPathTreeCloneEvaluator(g *cfg.ProgramCfg, profiles map[cfg.FuncIndex]*PathProfile, params EvalParams) *PathTreeCloneEvaluator {
	return &PathTreeCloneEvaluator{g: g, profiles: profiles, params: params}
}

// GenerateCandidates returns every candidate cloning found by
// DFS-walking fn's path-profile tree, sorted by score descending.
func (e *PathTreeCloneEvaluator) GenerateCandidates(fn cfg.FuncIndex) []*CfgChangeFromPathCloning {
	profile := e.profiles[fn]
	if profile == nil {
		return nil
	}
	var out []*CfgChangeFromPathCloning
	for _, rootBB := range sortedKeys(profile.Roots) {
		root := profile.Roots[rootBB]
		// Each distinct predecessor recorded on the root's entries is a
		// candidate path predecessor for paths starting at the root.
		seen := make(map[int]bool)
		for _, entry := range root.Entries {
			if seen[entry.PredBBIndex] {
				continue
			}
			seen[entry.PredBBIndex] = true
			e.walk(fn, entry.PredBBIndex, root, nil, &out)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (e *PathTreeCloneEvaluator) walk(fn cfg.FuncIndex, predBB int, node *PathNode, prefix []int, out *[]*CfgChangeFromPathCloning) {
	if len(prefix) >= e.params.MaxPathLength {
		return
	}
	if len(node.Entries) < 2 {
		return
	}
	for _, bb := range prefix {
		if bb == node.BBIndex {
			return
		}
	}
	g := e.g.CFG(fn)
	if n := nodeByBB(g, node.BBIndex); n != nil && n.HasIndirectBranch && !e.params.CloneIndirectBranchBlocks {
		return
	}

	path := append(append([]int(nil), prefix...), node.BBIndex)

	cb := NewCfgChangeBuilder(g, e.profiles[fn])
	if change, ok := cb.Build(predBB, path); ok {
		change.Score = e.evaluate(fn, change)
		if change.Score > e.params.MinInitialCloningScore {
			*out = append(*out, change)
		}
	}

	nodeFreq := totalFlow(node)
	for _, bb := range sortedKeys(node.Children) {
		child := node.Children[bb]
		childFreq := totalFlow(child)
		if nodeFreq == 0 || float64(childFreq) < e.params.MinFlowRatio*float64(nodeFreq) {
			continue
		}
		e.walk(fn, predBB, child, path, out)
	}
}

// evaluate scores change per §4.5.3: the optimized-layout ExtTSP gain
// of cloning minus dropping, net of the code-growth/cache-pressure
// penalty.
func (e *PathTreeCloneEvaluator) evaluate(fn cfg.FuncIndex, change *CfgChangeFromPathCloning) float64 {
	dropProg, err := rebuildProgram(e.g, fn, change, false)
	if err != nil {
		return -1
	}
	cloneProg, err := rebuildProgram(e.g, fn, change, true)
	if err != nil {
		return -1
	}
	gain := optimizedScore(cloneProg, e.params) - optimizedScore(dropProg, e.params)
	return gain - penalty(e.g.CFG(fn), change, e.params)
}

// optimizedScore runs the code-layout driver with clustering and
// inter-function reordering disabled, matching §4.5.3's "chain builder
// run on G with clustering and inter-function reordering off", scored
// with the caller's actual configured ExtTSP/cluster parameters so
// candidate evaluation matches the layout the engine will actually
// emit, and sums every function's resulting intra + inter-out ExtTSP
// score.
func optimizedScore(g *cfg.ProgramCfg, params EvalParams) float64 {
	opts := layout.Options{
		ScorerParams:            params.ScorerParams,
		ClusterParams:           params.ClusterParams,
		InterFunctionReordering: false,
		CallChainClustering:     false,
		ChainSplit:              true,
		ChainSplitThreshold:     ^uint64(0),
		ReorderHotBlocks:        true,
		SplitFunctions:          true,
	}
	d := layout.NewDriver(g, opts)
	var total float64
	for _, s := range d.GenerateLayoutBySection() {
		for _, fc := range s.Functions {
			total += fc.OptimizedIntraScore + fc.OptimizedInterOutScore
		}
	}
	return total
}

// penalty sums the per-block code-growth and cache-pressure cost of
// cloning change.PathToClone. Every block along a single candidate
// path shares the cache-pressure figure recorded on the path-pred
// entry that triggered the clone, since the profile does not record a
// per-block pressure distinct from its path-predecessor's.
func penalty(g *cfg.ControlFlowGraph, change *CfgChangeFromPathCloning, params EvalParams) float64 {
	pressure := triggeringCachePressure(change)
	var total float64
	for _, bb := range change.PathToClone {
		n := nodeByBB(g, bb)
		if n == nil {
			continue
		}
		total += params.BasePenaltyFactor*float64(n.Size) + params.ICachePenaltyFactor*pressure*float64(n.Size)
	}
	return total
}

func triggeringCachePressure(change *CfgChangeFromPathCloning) float64 {
	for _, dropped := range change.PathsToDrop {
		for _, e := range dropped.Entries {
			if e.PredBBIndex == change.PathPredBBIndex {
				return e.CachePressure
			}
		}
	}
	return 0
}

func totalFlow(n *PathNode) uint64 {
	total := n.MissingPredFreq
	for _, e := range n.Entries {
		total += e.Freq
	}
	return total
}

func sortedKeys(m map[int]*PathNode) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
