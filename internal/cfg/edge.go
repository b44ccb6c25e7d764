package cfg

// EdgeKind tags the semantic role of a CFGEdge.
type EdgeKind int

const (
	// BranchOrFallthrough is an ordinary control-flow edge: a taken
	// branch, or a fallthrough to the next address.
	BranchOrFallthrough EdgeKind = iota
	// Call is a call edge from a call site to the callee's entry
	// block.
	Call
	// Return is an edge from a callee's return point back to the
	// block following the call site.
	Return
)

func (k EdgeKind) String() string {
	switch k {
	case BranchOrFallthrough:
		return "BranchOrFallthrough"
	case Call:
		return "Call"
	case Return:
		return "Return"
	default:
		return "Unknown"
	}
}

// CFGEdge is a directed, weighted, kind-tagged edge between two
// nodes, possibly in different CFGs. Edges are owned by exactly one
// CFG's edge list (§3.2): intra edges by the single CFG both
// endpoints belong to, inter edges by the source node's CFG.
type CFGEdge struct {
	Src, Sink NodeRef
	Weight    uint64
	Kind      EdgeKind

	// InterSection is true iff Src and Sink belong to CFGs with
	// different SectionName. It is always false for intra-function
	// edges.
	InterSection bool

	// AlwaysTaken marks a branch that profiling observed is taken on
	// every execution of its source block's exit. Used by the ExtTSP
	// scorer's always_taken bonus terms. Never true for an edge whose
	// source has_indirect_branch.
	AlwaysTaken bool

	// IsIndirect marks an edge realized through an indirect branch;
	// such edges are never eligible for the always_taken bonus.
	IsIndirect bool
}

// Reweight sets the edge's weight. It is the only post-construction
// mutation permitted on an edge (§3.3): path cloning rewrites weights
// when re-routing flow between originals and clones.
func (e *CFGEdge) Reweight(w uint64) { e.Weight = w }
