package pathclone

import "github.com/google/propeller/internal/cfg"

// interEdgeKey identifies an inter-function edge by its endpoints.
type interEdgeKey struct {
	SrcFunc, SinkFunc cfg.FuncIndex
	SrcBB, SinkBB     int
}

// rebuildProgram constructs a fresh ProgramCfg equal to g except for
// fn's own CFG: change's intra/inter re-routed weights are applied,
// and if withClone is true a clone instance of every block in
// change.PathToClone is added (CloneNumber 1; this implementation
// commits at most one cloning per function, so a single clone number
// per block suffices — see DESIGN.md). Dropping and cloning share this
// one routine so G_drop and G_clone (§4.5.3) are built identically
// apart from that flag.
func rebuildProgram(g *cfg.ProgramCfg, fn cfg.FuncIndex, change *CfgChangeFromPathCloning, withClone bool) (*cfg.ProgramCfg, error) {
	b := cfg.NewBuilder()

	cloneNumberOf := make(map[int]int)
	if withClone {
		for _, bb := range change.PathToClone {
			cloneNumberOf[bb] = 1
		}
	}

	predNodeIndex := cfg.NodeIndex(0)
	cloneNodeIndex := make(map[int]cfg.NodeIndex)
	for _, otherFn := range g.Functions() {
		cg := g.CFG(otherFn)
		b.AddFunction(otherFn, cg.SectionName, cg.Name, cg.Aliases, cg.ModuleName)
		var next cfg.NodeIndex
		for _, n := range cg.Nodes {
			b.AddNode(otherFn, stripEdges(*n))
			if otherFn == fn && n.BBIndex == change.PathPredBBIndex {
				predNodeIndex = next
			}
			next++
			// A clone of bb_index k must be inserted immediately after
			// k's original and before bb_index k+1's original, since
			// the Builder requires strictly increasing (BBIndex,
			// CloneNumber) insertion order.
			if otherFn == fn && withClone {
				if cn, shouldClone := cloneNumberOf[n.BBIndex]; shouldClone {
					clone := stripEdges(*n)
					clone.CloneNumber = cn
					b.AddNode(otherFn, clone)
					cloneNodeIndex[n.BBIndex] = next
					next++
				}
			}
		}
		if otherFn != fn || !withClone {
			for _, path := range cg.ClonePaths {
				b.AddClonePath(otherFn, path)
			}
		}
	}

	intraOverrides := make(map[edgeKey]*EdgeReroute)
	var intraExtra []EdgeReroute
	for i := range change.IntraReroutes {
		r := &change.IntraReroutes[i]
		if !r.SrcIsCloned && !r.SinkIsCloned {
			intraOverrides[edgeKey{SrcBB: r.SrcBB, SinkBB: r.SinkBB}] = r
		} else if withClone {
			intraExtra = append(intraExtra, *r)
		}
	}
	for _, otherFn := range g.Functions() {
		cg := g.CFG(otherFn)
		for _, e := range cg.IntraEdges {
			srcN, sinkN := cg.Node(e.Src.Node), cg.Node(e.Sink.Node)
			weight := e.Weight
			if otherFn == fn {
				if r, ok := intraOverrides[edgeKey{SrcBB: srcN.BBIndex, SinkBB: sinkN.BBIndex}]; ok {
					weight = r.Weight
				}
			}
			if weight == 0 {
				continue
			}
			b.AddIntraEdge(otherFn, srcN.ID(), sinkN.ID(), weight, e.Kind, e.AlwaysTaken, e.IsIndirect)
		}
		if otherFn == fn {
			for _, r := range intraExtra {
				srcID := cfg.IntraCfgID{BBIndex: r.SrcBB}
				if r.SrcIsCloned {
					srcID.CloneNumber = cloneNumberOf[r.SrcBB]
				}
				sinkID := cfg.IntraCfgID{BBIndex: r.SinkBB}
				if r.SinkIsCloned {
					sinkID.CloneNumber = cloneNumberOf[r.SinkBB]
				}
				if r.Weight == 0 {
					continue
				}
				b.AddIntraEdge(otherFn, srcID, sinkID, r.Weight, r.Kind, false, false)
			}
		}
	}

	interOverrides := make(map[interEdgeKey]*InterEdgeReroute)
	var interExtra []InterEdgeReroute
	for i := range change.InterReroutes {
		r := &change.InterReroutes[i]
		if !r.SrcIsCloned && !r.SinkIsCloned {
			interOverrides[interEdgeKey{SrcFunc: r.SrcFunc, SrcBB: r.SrcBB, SinkFunc: r.SinkFunc, SinkBB: r.SinkBB}] = r
		} else if withClone {
			interExtra = append(interExtra, *r)
		}
	}
	for _, otherFn := range g.Functions() {
		cg := g.CFG(otherFn)
		for _, e := range cg.InterEdges {
			srcN := cg.Node(e.Src.Node)
			sinkN := g.CFG(e.Sink.Func).Node(e.Sink.Node)
			weight := e.Weight
			if r, ok := interOverrides[interEdgeKey{SrcFunc: otherFn, SrcBB: srcN.BBIndex, SinkFunc: e.Sink.Func, SinkBB: sinkN.BBIndex}]; ok {
				weight = r.Weight
			}
			if weight == 0 {
				continue
			}
			b.AddInterEdge(otherFn, srcN.ID(), e.Sink.Func, sinkN.ID(), weight, e.Kind, e.AlwaysTaken, e.IsIndirect)
		}
	}
	if withClone {
		for _, r := range interExtra {
			if r.Weight == 0 {
				continue
			}
			srcID := cfg.IntraCfgID{BBIndex: r.SrcBB}
			if r.SrcIsCloned {
				srcID.CloneNumber = cloneNumberOf[r.SrcBB]
			}
			sinkID := cfg.IntraCfgID{BBIndex: r.SinkBB}
			if r.SinkIsCloned {
				sinkID.CloneNumber = cloneNumberOf[r.SinkBB]
			}
			b.AddInterEdge(r.SrcFunc, srcID, r.SinkFunc, sinkID, r.Weight, r.Kind, false, false)
		}
	}

	if withClone && len(change.PathToClone) > 0 {
		indices := make([]cfg.NodeIndex, 0, len(change.PathToClone)+1)
		indices = append(indices, predNodeIndex)
		for _, bb := range change.PathToClone {
			if idx, ok := cloneNodeIndex[bb]; ok {
				indices = append(indices, idx)
			}
		}
		b.AddClonePath(fn, indices)
	}

	return b.Build()
}

// stripEdges copies n with its edge-index slices cleared; the Builder
// rebuilds every node's edge-index slices itself as edges are added.
func stripEdges(n cfg.CFGNode) cfg.CFGNode {
	n.IntraOut, n.IntraIn, n.InterOut, n.InterIn = nil, nil, nil, nil
	return n
}
