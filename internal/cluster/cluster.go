package cluster

import (
	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/chain"
)

// Cluster is an ordered group of chains merged because a strong
// caller/callee relationship made keeping them adjacent worthwhile.
// Its identity and order-of-appearance come from the first chain it
// was created from (its delegate).
type Cluster struct {
	id        cfg.FullIntraCfgID
	chains    []*chain.NodeChain
	size      uint64
	frequency uint64
}

func newCluster(c *chain.NodeChain) *Cluster {
	return &Cluster{
		id:        c.ID(),
		chains:    []*chain.NodeChain{c},
		size:      c.Size(),
		frequency: c.Frequency(),
	}
}

// ID returns the cluster's identity: its delegate chain's id.
func (cl *Cluster) ID() cfg.FullIntraCfgID { return cl.id }

// Chains returns the cluster's chains in merge order. The returned
// slice must not be mutated by the caller.
func (cl *Cluster) Chains() []*chain.NodeChain { return cl.chains }

// Size returns the cluster's total byte size.
func (cl *Cluster) Size() uint64 { return cl.size }

// Frequency returns the cluster's total execution frequency.
func (cl *Cluster) Frequency() uint64 { return cl.frequency }

// Density is frequency/max(size,1), the same density metric chains
// use, aggregated over every chain the cluster has absorbed.
func (cl *Cluster) Density() float64 {
	sz := cl.size
	if sz == 0 {
		sz = 1
	}
	return float64(cl.frequency) / float64(sz)
}

// absorb appends other's chains to cl and folds in its size/frequency.
// other is left in place but is expected never to be referenced again
// by the caller once absorbed.
func (cl *Cluster) absorb(other *Cluster) {
	cl.chains = append(cl.chains, other.chains...)
	cl.size += other.size
	cl.frequency += other.frequency
}
