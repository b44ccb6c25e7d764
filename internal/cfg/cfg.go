package cfg

// ControlFlowGraph owns one function's basic blocks and the edges
// among them (plus the inter-function edges whose source block lives
// here). Nodes and edges are immutable w.r.t. identity after
// construction; only CFGEdge.Weight changes, during path-cloning
// re-routing (§3.3).
type ControlFlowGraph struct {
	FuncIndex   FuncIndex
	SectionName string
	Name        string
	Aliases     []string
	ModuleName  string // empty string means "no module name"

	// Nodes is ordered by increasing (BBIndex, CloneNumber); the
	// entry node is always first.
	Nodes []*CFGNode

	IntraEdges []*CFGEdge
	InterEdges []*CFGEdge

	// ClonesByBBIndex maps an original BBIndex to the node indices of
	// its clones, in encounter order: the clone at position i has
	// CloneNumber == i+1 (§3.2).
	ClonesByBBIndex map[int][]NodeIndex

	// ClonePaths records each cloned path as a list of node indices
	// into Nodes, starting with the original path-predecessor node.
	ClonePaths [][]NodeIndex

	byID map[IntraCfgID]NodeIndex
}

// NodeByID looks up a node by its CFG-local identity.
func (g *ControlFlowGraph) NodeByID(id IntraCfgID) (*CFGNode, NodeIndex, bool) {
	idx, ok := g.byID[id]
	if !ok {
		return nil, 0, false
	}
	return g.Nodes[idx], idx, ok
}

// Node dereferences a NodeIndex.
func (g *ControlFlowGraph) Node(idx NodeIndex) *CFGNode { return g.Nodes[idx] }

// Entry returns the function's entry block (bb_index 0).
func (g *ControlFlowGraph) Entry() *CFGNode {
	n, _, ok := g.NodeByID(IntraCfgID{BBIndex: 0, CloneNumber: 0})
	if !ok {
		return nil
	}
	return n
}

// IntraEdge dereferences an IntraEdgeIndex.
func (g *ControlFlowGraph) IntraEdge(idx IntraEdgeIndex) *CFGEdge { return g.IntraEdges[idx] }

// InterEdge dereferences an InterEdgeIndex into this CFG's owned
// inter-edge list.
func (g *ControlFlowGraph) InterEdge(idx InterEdgeIndex) *CFGEdge { return g.InterEdges[idx] }

// Size returns the function's total hot+cold byte size.
func (g *ControlFlowGraph) Size() uint64 {
	var total uint64
	for _, n := range g.Nodes {
		total += n.Size
	}
	return total
}

// rebuildIndex rebuilds the CFG-local id lookup table. Called once by
// the builder after all nodes are appended.
func (g *ControlFlowGraph) rebuildIndex() {
	g.byID = make(map[IntraCfgID]NodeIndex, len(g.Nodes))
	for i, n := range g.Nodes {
		g.byID[n.ID()] = NodeIndex(i)
	}
}
