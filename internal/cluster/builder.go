package cluster

import (
	"sort"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/chain"
)

// Builder runs the call-chain clustering algorithm (§4.3) over a set
// of chains already produced by chain.NodeChainBuilder.
type Builder struct {
	g      *cfg.ProgramCfg
	params Params
}

// NewBuilder creates a clusterer over g using params.
func NewBuilder(g *cfg.ProgramCfg, params Params) *Builder {
	return &Builder{g: g, params: params}
}

// Build runs call-chain clustering over chains and returns them
// flattened into the final hot order: clusters sorted by decreasing
// density (ties by delegate id), chains within a cluster kept in
// merge order.
func (b *Builder) Build(chains []*chain.NodeChain) []*chain.NodeChain {
	clusterOf := make(map[*chain.NodeChain]*Cluster, len(chains))
	active := make(map[*Cluster]bool, len(chains))
	for _, c := range chains {
		cl := newCluster(c)
		clusterOf[c] = cl
		active[cl] = true
	}

	chainOfNode := make(map[cfg.NodeRef]*chain.NodeChain)
	for _, c := range chains {
		for _, ref := range c.Nodes() {
			chainOfNode[ref] = c
		}
	}

	ordered := append([]*chain.NodeChain(nil), chains...)
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := ordered[i].Density(), ordered[j].Density()
		if di != dj {
			return di > dj
		}
		return ordered[i].ID().Less(ordered[j].ID())
	})

	for _, c := range ordered {
		if c.Density() <= b.params.DensityThreshold {
			break
		}
		cl := clusterOf[c]
		if cl.Size() > b.params.MergeSizeThreshold {
			continue
		}
		pred := b.findBestPredecessor(c, cl, clusterOf, chainOfNode)
		if pred == nil {
			continue
		}
		pred.absorb(cl)
		for _, absorbed := range cl.chains {
			clusterOf[absorbed] = pred
		}
		delete(active, cl)
	}

	var clusters []*Cluster
	for cl := range active {
		clusters = append(clusters, cl)
	}
	sort.Slice(clusters, func(i, j int) bool {
		di, dj := clusters[i].Density(), clusters[j].Density()
		if di != dj {
			return di > dj
		}
		return clusters[i].ID().Less(clusters[j].ID())
	})

	var out []*chain.NodeChain
	for _, cl := range clusters {
		out = append(out, cl.Chains()...)
	}
	return out
}

// NoOrdering sorts chains by delegate id only, used when call-chain
// clustering is disabled by configuration.
func NoOrdering(chains []*chain.NodeChain) []*chain.NodeChain {
	out := append([]*chain.NodeChain(nil), chains...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID().Less(out[j].ID()) })
	return out
}

// findBestPredecessor aggregates incoming call/branch weight into c
// (from c's entry nodes, or every node when InterFunctionReordering is
// set) per distinct caller cluster, rejects candidates per §4.3's
// three conditions, and returns the strongest remaining candidate, or
// nil if none survive.
func (b *Builder) findBestPredecessor(c *chain.NodeChain, cl *Cluster, clusterOf map[*chain.NodeChain]*Cluster, chainOfNode map[cfg.NodeRef]*chain.NodeChain) *Cluster {
	weightByCaller := make(map[*Cluster]uint64)
	for i := 0; i < c.Len(); i++ {
		if !b.params.InterFunctionReordering && !c.HasEntryAt(i) {
			continue
		}
		ref := c.NodeAt(i)
		forEachInEdge(b.g, ref, func(e *cfg.CFGEdge) {
			if e.Kind == cfg.Return {
				return
			}
			srcChain, ok := chainOfNode[e.Src]
			if !ok {
				return
			}
			srcCluster := clusterOf[srcChain]
			if srcCluster == nil || srcCluster == cl {
				return
			}
			weightByCaller[srcCluster] += e.Weight
		})
	}
	if len(weightByCaller) == 0 {
		return nil
	}

	sinkFreq := c.Frequency()
	var candidates []*Cluster
	for caller := range weightByCaller {
		candidates = append(candidates, caller)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID().Less(candidates[j].ID()) })

	var best *Cluster
	var bestWeight uint64
	for _, caller := range candidates {
		w := weightByCaller[caller]
		if float64(w) <= float64(sinkFreq)/10 {
			continue
		}
		if degradesCallerDensity(caller, c) {
			continue
		}
		if best == nil || w > bestWeight {
			best, bestWeight = caller, w
		}
	}
	return best
}

// degradesCallerDensity reports whether merging c into caller would
// worsen caller's density by more than 1/8, per
// 8*size_caller*freq_caller*freq_c < freq_caller*(size_c+size_caller).
func degradesCallerDensity(caller *Cluster, c *chain.NodeChain) bool {
	sizeCaller, freqCaller := float64(caller.Size()), float64(caller.Frequency())
	sizeC, freqC := float64(c.Size()), float64(c.Frequency())
	if freqCaller == 0 {
		return true
	}
	return 8*sizeCaller*freqCaller*freqC < freqCaller*(sizeC+sizeCaller)
}

// forEachInEdge iterates every incoming edge (intra and inter) of the
// node at ref.
func forEachInEdge(g *cfg.ProgramCfg, ref cfg.NodeRef, f func(*cfg.CFGEdge)) {
	owner := g.CFG(ref.Func)
	node := owner.Node(ref.Node)
	for _, ei := range node.IntraIn {
		f(owner.IntraEdge(ei))
	}
	for _, ir := range node.InterIn {
		f(g.CFG(ir.OwnerFunc).InterEdge(ir.Index))
	}
}
