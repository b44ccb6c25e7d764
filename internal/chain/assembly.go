package chain

import (
	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/scorer"
)

// MergeOrder identifies one of the five ways two chains can be
// recombined when merging (§4.2.3). S and U name the "splitting" chain
// (the one contributing a slice boundary) and the "unsplit" chain; S1
// and S2 are S's prefix and suffix around the split point.
type MergeOrder int

const (
	// OrderSU appends U after S whole (no split); only valid when the
	// split position is the end of S (position 0 relative to S's
	// length, i.e. the trivial "S then U" concatenation).
	OrderSU MergeOrder = iota
	// OrderS2S1U reorders S's own two halves before U: S2, S1, U.
	OrderS2S1U
	// OrderS1US2 inserts U between S's two halves: S1, U, S2.
	OrderS1US2
	// OrderUS2S1 places U first, then S2, then S1.
	OrderUS2S1
	// OrderS2US1 places S2 first, then U, then S1.
	OrderS2US1
)

func (o MergeOrder) String() string {
	switch o {
	case OrderSU:
		return "SU"
	case OrderS2S1U:
		return "S2S1U"
	case OrderS1US2:
		return "S1US2"
	case OrderUS2S1:
		return "US2S1"
	case OrderS2US1:
		return "S2US1"
	default:
		return "unknown"
	}
}

// segment is a contiguous slice of a chain's node list, carried as a
// unit while an assembly is being recombined. forcedInternal[i] is the
// forced-after flag for the boundary between segment positions i and
// i+1 (copied verbatim from the source chain, since slicing never
// breaks a forced pair from the inside: split points are never chosen
// inside a forced run).
type segment struct {
	nodes          []cfg.NodeRef
	forcedInternal []bool
	src            *NodeChain
	lo, hi         int // [lo, hi) within src.nodes
}

func (s segment) empty() bool { return len(s.nodes) == 0 }

// sliceChain extracts the half-open range [lo, hi) of c as a segment.
func sliceChain(c *NodeChain, lo, hi int) segment {
	if lo >= hi {
		return segment{src: c, lo: lo, hi: hi}
	}
	nodes := append([]cfg.NodeRef(nil), c.nodes[lo:hi]...)
	var forced []bool
	if hi-lo > 1 {
		forced = append([]bool(nil), c.forcedAfter[lo:hi-1]...)
	}
	return segment{nodes: nodes, forcedInternal: forced, src: c, lo: lo, hi: hi}
}

// concatSegments joins segments in order, inserting a non-forced
// boundary (false) between each pair of adjacent non-empty segments,
// and recording which positions hold a function's entry block by
// consulting each segment's source chain.
func concatSegments(segs ...segment) (nodes []cfg.NodeRef, forcedAfter []bool, entryAt map[int]bool) {
	entryAt = make(map[int]bool)
	for _, seg := range segs {
		if seg.empty() {
			continue
		}
		if len(nodes) > 0 {
			forcedAfter = append(forcedAfter, false)
		}
		base := len(nodes)
		for i, ref := range seg.nodes {
			pos := base + i
			nodes = append(nodes, ref)
			if seg.src != nil && seg.src.entryAt[seg.lo+i] {
				entryAt[pos] = true
			}
			if i > 0 {
				forcedAfter = append(forcedAfter, seg.forcedInternal[i-1])
			}
		}
	}
	return nodes, forcedAfter, entryAt
}

// NodeChainAssembly is a candidate recombination of two chains,
// S (the chain being split, or not) and U (the chain merged in whole),
// evaluated at a given split position and merge order without
// mutating either chain (§4.2.3). The builder scores every legal
// assembly for a candidate edge and commits only the best.
type NodeChainAssembly struct {
	s, u       *NodeChain
	splitPos   int // split point within s.nodes; s[:splitPos] is S1, s[splitPos:] is S2
	order      MergeOrder
	scoreGain  float64
	mergedSize uint64
}

// Order returns the merge order this assembly represents.
func (a *NodeChainAssembly) Order() MergeOrder { return a.order }

// ScoreGain returns score(merged) - score(S) - score(U), the net
// ExtTSP improvement from committing this assembly.
func (a *NodeChainAssembly) ScoreGain() float64 { return a.scoreGain }

// MergedSize returns the total byte size of the merged chain.
func (a *NodeChainAssembly) MergedSize() uint64 { return a.mergedSize }

// splitIsForced reports whether splitPos falls strictly inside a
// forced run of s, which makes every order but OrderSU illegal (a
// forced pair may never be separated).
func (a *NodeChainAssembly) splitIsForced() bool {
	return a.s.IsForcedAfter(a.splitPos - 1)
}

// valid reports whether this assembly's order is legal for its split
// position, per the per-order constraints in §4.2.3:
//   - OrderSU requires splitPos == len(s.nodes) (S contributes whole).
//   - Any order that separates S1 from S2 is illegal if the split
//     point sits inside a forced run.
//   - OrderS1US2 is illegal when splitPos == 0, since S1 would be
//     empty and the order degenerates to US2 (equivalent to a
//     different, already-enumerated order).
//   - OrderUS2S1 is illegal when splitPos == 0 too, since S1 (the
//     final segment) would be the whole of s and S2 empty: that's
//     just OrderUS... not a genuine three-way split.
//   - OrderS2US1/OrderS2S1U require a non-trivial split (0 < splitPos
//     < len(s.nodes)).
func (a *NodeChainAssembly) valid() bool {
	n := len(a.s.nodes)
	switch a.order {
	case OrderSU:
		return a.splitPos == n
	case OrderS2S1U, OrderS1US2, OrderUS2S1, OrderS2US1:
		if a.splitPos <= 0 || a.splitPos >= n {
			return false
		}
		if a.splitIsForced() {
			return false
		}
		return true
	default:
		return false
	}
}

// assemble materializes the merged node list, forced-boundary flags,
// and entry-position set for this assembly's order, without mutating
// either source chain.
func (a *NodeChainAssembly) assemble() (nodes []cfg.NodeRef, forcedAfter []bool, entryAt map[int]bool) {
	s1 := sliceChain(a.s, 0, a.splitPos)
	s2 := sliceChain(a.s, a.splitPos, len(a.s.nodes))
	u := sliceChain(a.u, 0, len(a.u.nodes))

	switch a.order {
	case OrderSU:
		return concatSegments(s1, s2, u)
	case OrderS2S1U:
		return concatSegments(s2, s1, u)
	case OrderS1US2:
		return concatSegments(s1, u, s2)
	case OrderUS2S1:
		return concatSegments(u, s2, s1)
	case OrderS2US1:
		return concatSegments(s2, u, s1)
	default:
		return concatSegments(s1, s2, u)
	}
}

// evaluate computes this assembly's score gain and merged size against
// the program's edges, using s (the scorer) to score the merged node
// list in isolation. The gain is the merged chain's internal score
// minus the sum of the two input chains' current internal scores: any
// edge that was previously inter-chain (counted in neither c.score)
// and becomes intra-chain after merging is exactly the gain the
// builder is searching for.
func (a *NodeChainAssembly) evaluate(g *cfg.ProgramCfg, s *scorer.ExtTSPScorer) {
	nodes, _, _ := a.assemble()
	merged := scoreNodeList(g, s, nodes)
	a.scoreGain = merged - a.s.score - a.u.score
	a.mergedSize = a.s.size + a.u.size
}

// candidateAssemblies enumerates every legal (splitPos, order)
// combination for merging u into s, scored against g with s's edges
// via scorer. Only OrderSU is offered at splitPos == len(s.nodes)
// (appending u whole); every other split position offers the four
// reordering variants whose split is not inside a forced run. A
// candidate that would place a function's entry block after another
// block of the same function is dropped.
//
// Per §4.2.3's best-assembly-search cap: when chainSplit is false, or
// s's size exceeds chainSplitThreshold, only the whole-append OrderSU
// candidate is considered — splitting s is skipped entirely. This
// bounds per-pair work to O(1) for oversized chains instead of O(n).
func candidateAssemblies(g *cfg.ProgramCfg, scr *scorer.ExtTSPScorer, s, u *NodeChain, chainSplit bool, chainSplitThreshold uint64) []*NodeChainAssembly {
	var out []*NodeChainAssembly
	n := len(s.nodes)

	entryFirst := func(asm *NodeChainAssembly) bool {
		nodes, _, entryAt := asm.assemble()
		for pos := range entryAt {
			if pos > 0 && nodes[pos-1].Func == nodes[pos].Func {
				return false
			}
		}
		return true
	}

	whole := &NodeChainAssembly{s: s, u: u, splitPos: n, order: OrderSU}
	if entryFirst(whole) {
		whole.evaluate(g, scr)
		out = append(out, whole)
	}

	if !chainSplit || s.size > chainSplitThreshold {
		return out
	}

	for pos := 1; pos < n; pos++ {
		for _, ord := range []MergeOrder{OrderS2S1U, OrderS1US2, OrderUS2S1, OrderS2US1} {
			asm := &NodeChainAssembly{s: s, u: u, splitPos: pos, order: ord}
			if !asm.valid() || !entryFirst(asm) {
				continue
			}
			asm.evaluate(g, scr)
			out = append(out, asm)
		}
	}
	return out
}

// bestAssembly returns the highest-scoring legal assembly among the
// candidates for merging u into s, or nil if no candidate for this
// orientation is legal (callers try both (s,u) and (u,s) orientations
// since OrderSU is directional).
func bestAssembly(g *cfg.ProgramCfg, scr *scorer.ExtTSPScorer, s, u *NodeChain, chainSplit bool, chainSplitThreshold uint64) *NodeChainAssembly {
	var best *NodeChainAssembly
	for _, asm := range candidateAssemblies(g, scr, s, u, chainSplit, chainSplitThreshold) {
		if best == nil || asm.scoreGain > best.scoreGain {
			best = asm
		}
	}
	return best
}

// commit mutates a.s into the merged chain described by this assembly
// and marks a.u as consumed. It does not touch inter-chain edge
// bookkeeping (outEdges/inEdges maps referencing other chains) or the
// node-to-chain mapper; callers (the builder) own that, since
// redirecting every neighbor's outEdges/inEdges pointers at the
// surviving chain requires knowledge the assembly itself does not
// have.
func (a *NodeChainAssembly) commit(g *cfg.ProgramCfg, scr *scorer.ExtTSPScorer) {
	nodes, forcedAfter, entryAt := a.assemble()
	a.s.nodes = nodes
	a.s.forcedAfter = forcedAfter
	a.s.entryAt = entryAt
	a.s.recomputeSizeFrequency(g)
	a.s.recomputeScore(g, scr)
}
