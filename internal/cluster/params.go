// Package cluster implements the chain-cluster builder (§4.3):
// call-chain clustering that orders functions against one another by
// treating each built chain as an atomic unit and merging chains into
// their most-likely-predecessor cluster.
package cluster

// Params holds the tunable thresholds for call-chain clustering.
type Params struct {
	// DensityThreshold is the execution-density floor below which
	// processing of hot chains stops entirely (default 0.005).
	DensityThreshold float64

	// MergeSizeThreshold caps how large (in bytes) a cluster may grow
	// before it stops accepting further merges (default 2 MiB).
	MergeSizeThreshold uint64

	// InterFunctionReordering widens predecessor search from a
	// chain's entry nodes to every node in the chain.
	InterFunctionReordering bool
}

// DefaultParams returns the thresholds used throughout the
// specification's seed scenarios, mirroring the original
// implementation's propeller/chain_cluster_builder.cc defaults.
func DefaultParams() Params {
	return Params{
		DensityThreshold:        0.005,
		MergeSizeThreshold:      2 << 20,
		InterFunctionReordering: false,
	}
}
