// Package pathclone implements the path-cloning evaluator and
// applicator (§4.5): given a ProgramCfg and a profile of observed hot
// paths, it proposes cloning specific call-chains of basic blocks so
// that each clone can be laid out next to the path that actually
// executes it, then scores and commits the clonings that pay for
// themselves net of cache-pressure and code-size penalties.
package pathclone

import "github.com/google/propeller/internal/cfg"

// PathPredInfoEntry records, for one path-tree node, the flow
// contributed by one specific path-predecessor block.
type PathPredInfoEntry struct {
	PredBBIndex int
	Freq        uint64

	// CachePressure approximates how much of this flow's working set
	// competes with other hot code for icache residency; higher
	// pressure raises §4.5.3's penalty term, lowering a cloning's score.
	CachePressure float64

	// CallFreqs maps an observed callee entry (by FuncIndex, bb_index)
	// to the call frequency seen along this predecessor's path.
	CallFreqs map[CalleeKey]uint64

	// ReturnToFreqs maps an observed return site (by FuncIndex,
	// bb_index of the block the call returns into) to frequency.
	ReturnToFreqs map[CalleeKey]uint64
}

// CalleeKey identifies a callee entry block or a return-to block by
// its full program-wide identity.
type CalleeKey struct {
	Func    cfg.FuncIndex
	BBIndex int
}

// PathNode is one node of a function's path-profile tree (§3.1): the
// block it represents, the per-predecessor flow entries reaching it,
// any flow whose predecessor could not be determined, and its
// children keyed by successor bb_index.
type PathNode struct {
	BBIndex int
	Entries []PathPredInfoEntry

	// MissingPredFreq is flow reaching this block whose predecessor
	// could not be attributed to any entry above.
	MissingPredFreq uint64

	Children map[int]*PathNode
}

// PathProfile is a function's path-profile tree: root nodes keyed by
// the bb_index they're rooted at.
type PathProfile struct {
	Roots map[int]*PathNode
}

// ProgramPathProfile holds one PathProfile per function.
type ProgramPathProfile struct {
	ByFunction map[cfg.FuncIndex]*PathProfile
}

// EdgeReroute describes one intra-function edge re-route: it moves
// weight onto or off of a clone instance of one of its endpoints
// (§4.5.1).
type EdgeReroute struct {
	SrcBB, SinkBB             int
	SrcIsCloned, SinkIsCloned bool
	Kind                      cfg.EdgeKind
	Weight                    uint64
}

// InterEdgeReroute is EdgeReroute's inter-function counterpart: both
// endpoints carry their own function index since they may differ.
type InterEdgeReroute struct {
	SrcFunc, SinkFunc         cfg.FuncIndex
	SrcBB, SinkBB             int
	SrcIsCloned, SinkIsCloned bool
	Kind                      cfg.EdgeKind
	Weight                    uint64
}

// edgeKey identifies an intra-function edge by its endpoints alone,
// used for conflict detection (§4.5.2): two clonings conflict if they
// both try to re-route the same original edge.
type edgeKey struct {
	SrcBB, SinkBB int
}

// CfgChangeFromPathCloning is one planned cloning (§4.5.1): which
// block precedes the cloned run, which blocks to clone, which
// path-tree nodes' unattributed flow must be dropped, and the intra-
// and inter-function edge re-routes needed to realize it.
type CfgChangeFromPathCloning struct {
	Func            cfg.FuncIndex
	PathPredBBIndex int
	PathToClone     []int
	PathsToDrop     []*PathNode
	IntraReroutes   []EdgeReroute
	InterReroutes   []InterEdgeReroute

	// Score is filled in by the evaluator (§4.5.3) and read back by
	// ApplyClonings (§4.5.5).
	Score float64

	conflictEdges map[edgeKey]bool
}

// ConflictEdges returns the set of original-edge endpoints this
// cloning touches, for conflict-checking a later cloning against this
// one once it has been committed (SPEC_FULL.md §C.4: exposed as a
// public accessor since downstream tooling inspects committed
// clonings' footprints when explaining why a later candidate was
// rejected).
func (c *CfgChangeFromPathCloning) ConflictEdges() map[edgeKey]bool {
	return c.conflictEdges
}

// conflictsWith reports whether re-routing the edge (srcBB, sinkBB)
// would collide with any edge already claimed by a previously
// committed cloning.
func conflictsWith(committed []*CfgChangeFromPathCloning, srcBB, sinkBB int) bool {
	key := edgeKey{SrcBB: srcBB, SinkBB: sinkBB}
	for _, c := range committed {
		if c.conflictEdges[key] {
			return true
		}
	}
	return false
}
