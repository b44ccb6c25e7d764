package chain

import "github.com/google/propeller/internal/cfg"

// nodeToChainMapper is the single owner of "which chain currently
// contains this node" (§9: "a single NodeToBundleMapper owns the
// mapping; nodes do not carry a chain pointer"). Chain merges update
// this table once per moved node instead of requiring every node to
// carry and maintain its own back-pointer.
type nodeToChainMapper struct {
	chainOf map[cfg.NodeRef]*NodeChain
	posOf   map[cfg.NodeRef]int
}

func newNodeToChainMapper() *nodeToChainMapper {
	return &nodeToChainMapper{
		chainOf: make(map[cfg.NodeRef]*NodeChain),
		posOf:   make(map[cfg.NodeRef]int),
	}
}

// ChainOf returns the chain currently containing ref.
func (m *nodeToChainMapper) ChainOf(ref cfg.NodeRef) *NodeChain {
	return m.chainOf[ref]
}

// assign records that ref now belongs to c. Called once per node
// when a chain is created, and once per moved node after a merge.
func (m *nodeToChainMapper) assign(ref cfg.NodeRef, c *NodeChain) {
	m.chainOf[ref] = c
}

// PositionOf returns the index of ref within its current chain's node
// list, or -1 if ref is unknown.
func (m *nodeToChainMapper) PositionOf(ref cfg.NodeRef) int {
	if c, ok := m.chainOf[ref]; !ok || c == nil {
		return -1
	}
	if p, ok := m.posOf[ref]; ok {
		return p
	}
	return -1
}

// reassignAll updates the mapper for every node currently in c. Called
// once after a chain's node list is rebuilt by a merge.
func (m *nodeToChainMapper) reassignAll(c *NodeChain) {
	for i, ref := range c.nodes {
		m.chainOf[ref] = c
		m.posOf[ref] = i
	}
}
