package pathclone

import "github.com/google/propeller/internal/cfg"

// CfgChangeBuilder walks a path-profile tree alongside a candidate
// clone path and assembles the CfgChangeFromPathCloning describing it
// (§4.5.2). One builder is scoped to a single function's CFG and
// profile; call Committed after a change it produced is actually
// applied so later Build calls can detect edge conflicts against it.
type CfgChangeBuilder struct {
	g       *cfg.ControlFlowGraph
	profile *PathProfile

	committed []*CfgChangeFromPathCloning
}

// NewCfgChangeBuilder creates a builder over one function's CFG and
// path profile.
func NewCfgChangeBuilder(g *cfg.ControlFlowGraph, profile *PathProfile) *CfgChangeBuilder {
	return &CfgChangeBuilder{g: g, profile: profile}
}

// Committed records a change that has actually been applied, so a
// later Build call can reject a candidate that would re-route an edge
// already claimed.
func (b *CfgChangeBuilder) Committed(c *CfgChangeFromPathCloning) {
	b.committed = append(b.committed, c)
}

// Build constructs the change that clones path (a sequence of
// bb_indices, function-local) reached through path-predecessor block
// pathPredBB. At each step it splits the path-tree node's recorded
// flow into the one entry whose predecessor matches the path (which
// moves onto the clone) and every other entry plus any
// missing-predecessor flow (which must stay on the original block, or
// be dropped if it was the last use of that block's hot edge). Returns
// ok=false if path does not correspond to an actual path-tree
// descent, or if realizing it would re-route an edge a previously
// committed change already claimed.
func (b *CfgChangeBuilder) Build(pathPredBB int, path []int) (*CfgChangeFromPathCloning, bool) {
	if len(path) == 0 {
		return nil, false
	}
	change := &CfgChangeFromPathCloning{
		Func:            b.g.FuncIndex,
		PathPredBBIndex: pathPredBB,
		PathToClone:     append([]int(nil), path...),
		conflictEdges:   make(map[edgeKey]bool),
	}

	prevBB := pathPredBB
	children := b.profile.Roots
	for i, bb := range path {
		n, ok := children[bb]
		if !ok || n.BBIndex != bb {
			return nil, false
		}
		if conflictsWith(b.committed, prevBB, bb) {
			return nil, false
		}
		change.conflictEdges[edgeKey{SrcBB: prevBB, SinkBB: bb}] = true

		var onPathEntry *PathPredInfoEntry
		var dropEntries []PathPredInfoEntry
		for j := range n.Entries {
			e := n.Entries[j]
			if e.PredBBIndex == prevBB && onPathEntry == nil {
				onPathEntry = &n.Entries[j]
				continue
			}
			dropEntries = append(dropEntries, e)
		}

		var onPathFreq uint64
		if onPathEntry != nil {
			onPathFreq = onPathEntry.Freq
		}
		if onPathFreq > 0 {
			change.IntraReroutes = append(change.IntraReroutes, EdgeReroute{
				SrcBB: prevBB, SinkBB: bb,
				SrcIsCloned: i > 0, SinkIsCloned: true,
				Kind: cfg.BranchOrFallthrough, Weight: onPathFreq,
			})
		}

		var remainingOriginal uint64
		for _, e := range dropEntries {
			remainingOriginal += e.Freq
		}
		remainingOriginal += n.MissingPredFreq
		change.IntraReroutes = append(change.IntraReroutes, EdgeReroute{
			SrcBB: prevBB, SinkBB: bb,
			SrcIsCloned: false, SinkIsCloned: false,
			Kind: cfg.BranchOrFallthrough, Weight: remainingOriginal,
		})

		if len(dropEntries) > 0 || n.MissingPredFreq > 0 {
			change.PathsToDrop = append(change.PathsToDrop, &PathNode{
				BBIndex: bb, Entries: dropEntries, MissingPredFreq: n.MissingPredFreq,
			})
		}

		// Mirror bb's own outgoing edges onto the clone: the profile
		// doesn't record a joint incoming-predecessor/outgoing-successor
		// distribution, so each outgoing edge's weight is split between
		// clone and original in proportion to onPathFreq's share of
		// bb's total incoming flow. The one outgoing edge that
		// continues along path (if any) is re-targeted to the next
		// block's own clone instance; every other successor, cloned or
		// not, keeps pointing at its original block.
		var nextOnPath = -1
		if i+1 < len(path) {
			nextOnPath = path[i+1]
		}
		total := onPathFreq + remainingOriginal
		var ratio float64
		if total > 0 {
			ratio = float64(onPathFreq) / float64(total)
		}
		if origNode := nodeByBB(b.g, bb); origNode != nil {
			for _, ei := range origNode.IntraOut {
				e := b.g.IntraEdge(ei)
				sinkN := b.g.Node(e.Sink.Node)
				cloneShare := uint64(float64(e.Weight) * ratio)
				originalShare := e.Weight - cloneShare
				if cloneShare > 0 {
					change.IntraReroutes = append(change.IntraReroutes, EdgeReroute{
						SrcBB: bb, SinkBB: sinkN.BBIndex,
						SrcIsCloned: true, SinkIsCloned: sinkN.BBIndex == nextOnPath,
						Kind: e.Kind, Weight: cloneShare,
					})
				}
				change.IntraReroutes = append(change.IntraReroutes, EdgeReroute{
					SrcBB: bb, SinkBB: sinkN.BBIndex,
					SrcIsCloned: false, SinkIsCloned: false,
					Kind: e.Kind, Weight: originalShare,
				})
			}
		}

		if onPathEntry != nil {
			for ck, freq := range onPathEntry.CallFreqs {
				if freq == 0 {
					continue
				}
				change.InterReroutes = append(change.InterReroutes, InterEdgeReroute{
					SrcFunc: b.g.FuncIndex, SrcBB: bb, SrcIsCloned: true,
					SinkFunc: ck.Func, SinkBB: ck.BBIndex, SinkIsCloned: false,
					Kind: cfg.Call, Weight: freq,
				})
			}
			for ck, freq := range onPathEntry.ReturnToFreqs {
				if freq == 0 {
					continue
				}
				change.InterReroutes = append(change.InterReroutes, InterEdgeReroute{
					SrcFunc: ck.Func, SrcBB: ck.BBIndex, SrcIsCloned: false,
					SinkFunc: b.g.FuncIndex, SinkBB: bb, SinkIsCloned: true,
					Kind: cfg.Return, Weight: freq,
				})
			}
		}

		prevBB = bb
		children = n.Children
	}

	return change, true
}

// nodeByBB looks up a function-local node by its original (non-clone)
// bb_index.
func nodeByBB(g *cfg.ControlFlowGraph, bb int) *cfg.CFGNode {
	n, _, ok := g.NodeByID(cfg.IntraCfgID{BBIndex: bb})
	if !ok {
		return nil
	}
	return n
}
