package cfg

// FuncIndex uniquely identifies a function (and thus one
// ControlFlowGraph) within a ProgramCfg.
type FuncIndex int

// NodeIndex is a node's position in its owning CFG's Nodes slice.
// It is a non-owning handle: the CFG is the sole owner of CFGNode
// values.
type NodeIndex int

// IntraEdgeIndex indexes into a CFG's IntraEdges slice.
type IntraEdgeIndex int

// InterEdgeIndex indexes into a CFG's InterEdges slice.
type InterEdgeIndex int

// NodeRef addresses one node anywhere in the program: its owning
// function plus its index within that function's CFG.
type NodeRef struct {
	Func FuncIndex
	Node NodeIndex
}

// InterEdgeRef addresses an inter-function edge. Inter edges are
// owned by the source node's CFG (see ControlFlowGraph.InterEdges),
// so a sink node in a different function needs both the owning
// function and the index to find it.
type InterEdgeRef struct {
	OwnerFunc FuncIndex
	Index     InterEdgeIndex
}

// IntraCfgID identifies a node within one CFG: (bb_index,
// clone_number). It is the CFG-local half of FullIntraCfgID.
type IntraCfgID struct {
	BBIndex     int
	CloneNumber int
}

// Less gives IntraCfgID a total order: by bb_index, then by
// clone_number, so the original (clone_number 0) sorts before any of
// its clones.
func (a IntraCfgID) Less(b IntraCfgID) bool {
	if a.BBIndex != b.BBIndex {
		return a.BBIndex < b.BBIndex
	}
	return a.CloneNumber < b.CloneNumber
}

// FullIntraCfgID identifies a node across the whole program:
// (function_index, bb_index, clone_number). Chain, bundle, and
// cluster identities are derived from a delegate node's
// FullIntraCfgID so that ties in floating-point scores break on a
// stable, deterministic order (invariant, §3.2).
type FullIntraCfgID struct {
	Func        FuncIndex
	BBIndex     int
	CloneNumber int
}

// Less gives FullIntraCfgID a total order: by function, then by
// IntraCfgID.
func (a FullIntraCfgID) Less(b FullIntraCfgID) bool {
	if a.Func != b.Func {
		return a.Func < b.Func
	}
	return IntraCfgID{a.BBIndex, a.CloneNumber}.Less(IntraCfgID{b.BBIndex, b.CloneNumber})
}

// Intra projects out the CFG-local half of the identifier.
func (a FullIntraCfgID) Intra() IntraCfgID {
	return IntraCfgID{BBIndex: a.BBIndex, CloneNumber: a.CloneNumber}
}
