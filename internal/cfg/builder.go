package cfg

import "github.com/google/propeller/internal/cfgerr"

// Builder assembles a ProgramCfg from scratch. It exists because
// CFGNode/CFGEdge cross-reference each other through indices that can
// only be resolved once every node of every function has been added;
// external collaborators (ELF/DWARF readers, branch aggregators) are
// expected to drive a Builder rather than construct CFGs by hand.
type Builder struct {
	cfgs map[FuncIndex]*ControlFlowGraph
	err  error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{cfgs: make(map[FuncIndex]*ControlFlowGraph)}
}

// AddFunction registers a new function's CFG shell. It is a fatal
// builder error to register the same FuncIndex twice.
func (b *Builder) AddFunction(idx FuncIndex, sectionName, name string, aliases []string, moduleName string) {
	if _, exists := b.cfgs[idx]; exists {
		b.fail(cfgerr.Invariantf("duplicate function index %d", idx))
		return
	}
	b.cfgs[idx] = &ControlFlowGraph{
		FuncIndex:       idx,
		SectionName:     sectionName,
		Name:            name,
		Aliases:         aliases,
		ModuleName:      moduleName,
		ClonesByBBIndex: make(map[int][]NodeIndex),
	}
}

// AddNode appends a basic block to an already-registered function.
// Nodes must be added in increasing (BBIndex, CloneNumber) order, the
// CFG's required insertion order (§3.1).
func (b *Builder) AddNode(funcIdx FuncIndex, n CFGNode) {
	g, ok := b.cfgs[funcIdx]
	if !ok {
		b.fail(cfgerr.Invariantf("AddNode: unknown function index %d", funcIdx))
		return
	}
	n.FuncIndex = funcIdx
	if len(g.Nodes) > 0 {
		last := g.Nodes[len(g.Nodes)-1]
		if !last.ID().Less(n.ID()) {
			b.fail(cfgerr.Invariantf("AddNode: nodes must be added in increasing (bb_index, clone_number) order, got %v after %v", n.ID(), last.ID()))
			return
		}
	}
	idx := NodeIndex(len(g.Nodes))
	nCopy := n
	g.Nodes = append(g.Nodes, &nCopy)
	if g.byID == nil {
		g.byID = make(map[IntraCfgID]NodeIndex)
	}
	g.byID[n.ID()] = idx
	if n.CloneNumber > 0 {
		clones := g.ClonesByBBIndex[n.BBIndex]
		if len(clones)+1 != n.CloneNumber {
			b.fail(cfgerr.Invariantf("AddNode: clone_number %d for bb %d must equal position+1 (got position %d)", n.CloneNumber, n.BBIndex, len(clones)))
			return
		}
		g.ClonesByBBIndex[n.BBIndex] = append(clones, idx)
	}
}

// AddIntraEdge adds an edge between two nodes of the same function.
func (b *Builder) AddIntraEdge(funcIdx FuncIndex, srcID, sinkID IntraCfgID, weight uint64, kind EdgeKind, alwaysTaken, indirect bool) {
	g, ok := b.cfgs[funcIdx]
	if !ok {
		b.fail(cfgerr.Invariantf("AddIntraEdge: unknown function index %d", funcIdx))
		return
	}
	_, srcIdx, srcOK := g.NodeByID(srcID)
	_, sinkIdx, sinkOK := g.NodeByID(sinkID)
	if !srcOK || !sinkOK {
		b.fail(cfgerr.Invariantf("AddIntraEdge: endpoint not found in function %d: src=%v(%v) sink=%v(%v)", funcIdx, srcID, srcOK, sinkID, sinkOK))
		return
	}
	e := &CFGEdge{
		Src:         NodeRef{Func: funcIdx, Node: srcIdx},
		Sink:        NodeRef{Func: funcIdx, Node: sinkIdx},
		Weight:      weight,
		Kind:        kind,
		AlwaysTaken: alwaysTaken,
		IsIndirect:  indirect,
	}
	eIdx := IntraEdgeIndex(len(g.IntraEdges))
	g.IntraEdges = append(g.IntraEdges, e)
	srcNode := g.Nodes[srcIdx]
	sinkNode := g.Nodes[sinkIdx]
	srcNode.IntraOut = append(srcNode.IntraOut, eIdx)
	sinkNode.IntraIn = append(sinkNode.IntraIn, eIdx)
}

// AddInterEdge adds an edge between nodes of different functions.
// The edge is owned by the source function's CFG (§3.2).
func (b *Builder) AddInterEdge(srcFunc FuncIndex, srcID IntraCfgID, sinkFunc FuncIndex, sinkID IntraCfgID, weight uint64, kind EdgeKind, alwaysTaken, indirect bool) {
	if srcFunc == sinkFunc {
		b.fail(cfgerr.Invariantf("AddInterEdge: src and sink must be different functions, got %d twice", srcFunc))
		return
	}
	srcG, ok := b.cfgs[srcFunc]
	if !ok {
		b.fail(cfgerr.Invariantf("AddInterEdge: unknown source function %d", srcFunc))
		return
	}
	sinkG, ok := b.cfgs[sinkFunc]
	if !ok {
		b.fail(cfgerr.Invariantf("AddInterEdge: unknown sink function %d", sinkFunc))
		return
	}
	_, srcIdx, srcOK := srcG.NodeByID(srcID)
	_, sinkIdx, sinkOK := sinkG.NodeByID(sinkID)
	if !srcOK || !sinkOK {
		b.fail(cfgerr.Invariantf("AddInterEdge: endpoint not found: src=%v(%v) sink=%v(%v)", srcID, srcOK, sinkID, sinkOK))
		return
	}
	e := &CFGEdge{
		Src:          NodeRef{Func: srcFunc, Node: srcIdx},
		Sink:         NodeRef{Func: sinkFunc, Node: sinkIdx},
		Weight:       weight,
		Kind:         kind,
		InterSection: srcG.SectionName != sinkG.SectionName,
		AlwaysTaken:  alwaysTaken,
		IsIndirect:   indirect,
	}
	eIdx := InterEdgeIndex(len(srcG.InterEdges))
	srcG.InterEdges = append(srcG.InterEdges, e)
	srcNode := srcG.Nodes[srcIdx]
	sinkNode := sinkG.Nodes[sinkIdx]
	ref := InterEdgeRef{OwnerFunc: srcFunc, Index: eIdx}
	srcNode.InterOut = append(srcNode.InterOut, ref)
	sinkNode.InterIn = append(sinkNode.InterIn, ref)
}

// AddClonePath records a cloned path for diagnostic/output purposes:
// nodeIndices starts with the original path-predecessor node,
// followed by the cloned nodes along the path.
func (b *Builder) AddClonePath(funcIdx FuncIndex, nodeIndices []NodeIndex) {
	g, ok := b.cfgs[funcIdx]
	if !ok {
		b.fail(cfgerr.Invariantf("AddClonePath: unknown function index %d", funcIdx))
		return
	}
	g.ClonePaths = append(g.ClonePaths, nodeIndices)
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build finalizes every registered CFG: it rebuilds id indices and
// computes every node's frequency per the node-frequency invariant
// (§3.2), then returns the assembled ProgramCfg.
func (b *Builder) Build() (*ProgramCfg, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := &ProgramCfg{cfgs: b.cfgs}
	for _, g := range p.cfgs {
		g.rebuildIndex()
	}
	for _, g := range p.cfgs {
		for _, n := range g.Nodes {
			n.Frequency = ComputeFrequency(p, g, n)
		}
	}
	return p, nil
}
