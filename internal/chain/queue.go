package chain

import (
	"container/heap"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/scorer"
)

// queueEntry pairs two chains with the best assembly found for
// merging them, in whichever orientation scored higher.
type queueEntry struct {
	a, b *NodeChain
	asm  *NodeChainAssembly

	// aLen/bLen are a's and b's node counts when asm was scored.
	aLen, bLen int
}

// entryHeap is a max-heap over queueEntry.asm.ScoreGain, with
// FullIntraCfgID as the deterministic tie-break (§3.2) so that two
// runs over the same input always pop entries in the same order.
type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	gi, gj := h[i].asm.ScoreGain(), h[j].asm.ScoreGain()
	if gi != gj {
		return gi > gj
	}
	idA, idB := h[i].a.ID(), h[j].a.ID()
	return idA.Less(idB)
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(*queueEntry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// NodeChainAssemblyQueue holds the best pending assembly for every
// currently-connected pair of chains and yields them in decreasing
// score-gain order (§4.2.4). It is an iterative, map-plus-heap
// implementation: every AddPair call recomputes the pair's best
// assembly and pushes a fresh entry rather than mutating one in
// place, and stale entries (referring to a chain already consumed by
// an earlier merge, or to a chain that has grown since the entry was
// scored) are discarded lazily at Pop time by checking q.live and the
// chains' node counts. This is simpler than a self-balancing tree keyed by live
// score and was chosen over one for that reason; see the design
// ledger for the tradeoff.
type NodeChainAssemblyQueue struct {
	g      *cfg.ProgramCfg
	scorer *scorer.ExtTSPScorer
	heap   entryHeap
	live   map[*NodeChain]bool

	// chainSplit/chainSplitThreshold gate the split-and-merge search
	// per §4.2.3; SetChainSplit narrows them from the unconstrained
	// default of "always consider every split position."
	chainSplit          bool
	chainSplitThreshold uint64
}

// NewAssemblyQueue creates an empty queue scoring candidate merges
// against g using scorer, with unrestricted splitting until
// SetChainSplit narrows it.
func NewAssemblyQueue(g *cfg.ProgramCfg, scorer *scorer.ExtTSPScorer) *NodeChainAssemblyQueue {
	return &NodeChainAssemblyQueue{
		g:                   g,
		scorer:              scorer,
		live:                make(map[*NodeChain]bool),
		chainSplit:          true,
		chainSplitThreshold: ^uint64(0),
	}
}

// SetChainSplit configures the chain_split/chain_split_threshold
// options (§6.1) for every AddPair call from this point on.
func (q *NodeChainAssemblyQueue) SetChainSplit(enabled bool, threshold uint64) {
	q.chainSplit = enabled
	q.chainSplitThreshold = threshold
}

// MarkLive registers c as an active chain; entries referencing a
// chain not marked live are skipped at Pop time.
func (q *NodeChainAssemblyQueue) MarkLive(c *NodeChain) { q.live[c] = true }

// MarkConsumed removes c from the live set, so any pending entry that
// names it is discarded the next time it would be popped.
func (q *NodeChainAssemblyQueue) MarkConsumed(c *NodeChain) { delete(q.live, c) }

// AddPair computes the best legal assembly for merging a and b (trying
// both (s=a,u=b) and (s=b,u=a), since OrderSU is directional) and
// pushes it if at least one orientation is legal. Callers call this
// once per newly-connected or newly-created chain pair.
func (q *NodeChainAssemblyQueue) AddPair(a, b *NodeChain) {
	if a == b {
		return
	}
	best1 := bestAssembly(q.g, q.scorer, a, b, q.chainSplit, q.chainSplitThreshold)
	best2 := bestAssembly(q.g, q.scorer, b, a, q.chainSplit, q.chainSplitThreshold)
	best := best1
	if best == nil || (best2 != nil && best2.ScoreGain() > best.ScoreGain()) {
		best = best2
	}
	if best == nil {
		return
	}
	heap.Push(&q.heap, &queueEntry{a: a, b: b, asm: best, aLen: a.Len(), bLen: b.Len()})
}

// Pop returns the highest-scoring still-live entry, discarding stale
// entries along the way, or nil if the queue is empty.
func (q *NodeChainAssemblyQueue) Pop() *queueEntry {
	for q.heap.Len() > 0 {
		e := heap.Pop(&q.heap).(*queueEntry)
		if !q.live[e.a] || !q.live[e.b] || e.a.Len() != e.aLen || e.b.Len() != e.bLen {
			continue
		}
		return e
	}
	return nil
}

// Empty reports whether every remaining entry is stale (so the next
// Pop would return nil).
func (q *NodeChainAssemblyQueue) Empty() bool {
	for _, e := range q.heap {
		if q.live[e.a] && q.live[e.b] && e.a.Len() == e.aLen && e.b.Len() == e.bLen {
			return false
		}
	}
	return true
}
