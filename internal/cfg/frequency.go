package cfg

// ComputeFrequency computes a node's execution frequency per the
// invariant of §3.2:
//
//	frequency = max(max_call_out, max_return_in,
//	                 sum_non_call_out, sum_non_return_in)
//
// The maxima defend against double-counting polymorphic calls (many
// call edges from one call site, of which only one executes per
// call); the sums catch regular control flow, where every outgoing
// edge's weight can contribute. Empty sides contribute 0.
func ComputeFrequency(p *ProgramCfg, g *ControlFlowGraph, n *CFGNode) uint64 {
	var maxCallOut, maxReturnIn uint64
	var sumNonCallOut, sumNonReturnIn uint64

	forEachOutEdge(p, g, n, func(e *CFGEdge) {
		if e.Kind == Call {
			if e.Weight > maxCallOut {
				maxCallOut = e.Weight
			}
		} else {
			sumNonCallOut += e.Weight
		}
	})
	forEachInEdge(p, g, n, func(e *CFGEdge) {
		if e.Kind == Return {
			if e.Weight > maxReturnIn {
				maxReturnIn = e.Weight
			}
		} else {
			sumNonReturnIn += e.Weight
		}
	})

	freq := maxCallOut
	if maxReturnIn > freq {
		freq = maxReturnIn
	}
	if sumNonCallOut > freq {
		freq = sumNonCallOut
	}
	if sumNonReturnIn > freq {
		freq = sumNonReturnIn
	}
	return freq
}

func forEachOutEdge(p *ProgramCfg, g *ControlFlowGraph, n *CFGNode, f func(*CFGEdge)) {
	for _, ei := range n.IntraOut {
		f(g.IntraEdge(ei))
	}
	for _, ref := range n.InterOut {
		f(p.interEdge(ref))
	}
}

func forEachInEdge(p *ProgramCfg, g *ControlFlowGraph, n *CFGNode, f func(*CFGEdge)) {
	for _, ei := range n.IntraIn {
		f(g.IntraEdge(ei))
	}
	for _, ref := range n.InterIn {
		f(p.interEdge(ref))
	}
}
