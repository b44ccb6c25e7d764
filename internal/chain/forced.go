package chain

import "github.com/google/propeller/internal/cfg"

// discoverForcedEdges finds every forced edge in g (§4.2.2): an edge
// is forced if it is the sole non-cold, non-return outgoing
// BranchOrFallthrough edge of its source, and the sole non-cold,
// non-return incoming edge of its sink. The result maps a source node
// to its single forced successor.
func discoverForcedEdges(p *cfg.ProgramCfg, g *cfg.ControlFlowGraph) map[cfg.NodeRef]cfg.NodeRef {
	forced := make(map[cfg.NodeRef]cfg.NodeRef)
	for ni, n := range g.Nodes {
		if !n.IsHot() {
			continue
		}
		ref := cfg.NodeRef{Func: g.FuncIndex, Node: cfg.NodeIndex(ni)}

		var candidate *cfg.CFGEdge
		outCount := 0
		for _, ei := range n.IntraOut {
			e := g.IntraEdge(ei)
			if e.Kind != cfg.BranchOrFallthrough {
				continue
			}
			sink := g.Node(e.Sink.Node)
			if !sink.IsHot() {
				continue
			}
			outCount++
			candidate = e
		}
		if outCount != 1 {
			continue
		}

		sinkNode := g.Node(candidate.Sink.Node)
		inCount := 0
		for _, ei := range sinkNode.IntraIn {
			e := g.IntraEdge(ei)
			if e.Kind != cfg.BranchOrFallthrough {
				continue
			}
			src := g.Node(e.Src.Node)
			if !src.IsHot() {
				continue
			}
			inCount++
		}
		if inCount != 1 {
			continue
		}
		forced[ref] = candidate.Sink
	}
	return forced
}

// breakForcedCycles removes one edge from every cycle in the forced
// functional graph (a graph where every node has at most one forced
// successor can only cycle, never branch): the edge whose sink has
// the smallest bb_index on the cycle is removed, per §4.2.2.
func breakForcedCycles(forced map[cfg.NodeRef]cfg.NodeRef) {
	visited := make(map[cfg.NodeRef]int) // 0=unvisited,1=in progress,2=done
	for start := range forced {
		if visited[start] == 2 {
			continue
		}
		path := []cfg.NodeRef{}
		cur := start
		for {
			state := visited[cur]
			if state == 1 {
				// Found a cycle: it runs from cur back to cur within path.
				cycleStart := indexOf(path, cur)
				cycle := path[cycleStart:]
				removeSmallestSink(forced, cycle)
				break
			}
			if state == 2 {
				break
			}
			visited[cur] = 1
			path = append(path, cur)
			next, ok := forced[cur]
			if !ok {
				break
			}
			cur = next
		}
		for _, n := range path {
			if visited[n] == 1 {
				visited[n] = 2
			}
		}
	}
}

func indexOf(path []cfg.NodeRef, target cfg.NodeRef) int {
	for i, n := range path {
		if n == target {
			return i
		}
	}
	return -1
}

// removeSmallestSink deletes, from forced, the edge along cycle whose
// sink has the smallest bb_index.
func removeSmallestSink(forced map[cfg.NodeRef]cfg.NodeRef, cycle []cfg.NodeRef) {
	if len(cycle) == 0 {
		return
	}
	bestSrc := cycle[0]
	bestSink := forced[cycle[0]]
	for _, src := range cycle[1:] {
		sink := forced[src]
		if sink.Node < bestSink.Node {
			bestSrc, bestSink = src, sink
		}
	}
	delete(forced, bestSrc)
}

// forcedPaths concatenates the (now acyclic) forced-edge mapping into
// maximal paths. Each returned path is a contiguous run of node refs
// that must become one bundle.
func forcedPaths(forced map[cfg.NodeRef]cfg.NodeRef) [][]cfg.NodeRef {
	hasIncoming := make(map[cfg.NodeRef]bool, len(forced))
	for _, sink := range forced {
		hasIncoming[sink] = true
	}

	var starts []cfg.NodeRef
	for src := range forced {
		if !hasIncoming[src] {
			starts = append(starts, src)
		}
	}

	var paths [][]cfg.NodeRef
	visited := make(map[cfg.NodeRef]bool)
	for _, start := range starts {
		if visited[start] {
			continue
		}
		path := []cfg.NodeRef{start}
		visited[start] = true
		cur := start
		for {
			next, ok := forced[cur]
			if !ok || visited[next] {
				break
			}
			path = append(path, next)
			visited[next] = true
			cur = next
		}
		if len(path) > 1 {
			paths = append(paths, path)
		}
	}
	return paths
}
