// Package cfgio reads the JSON program-CFG and path-profile documents
// the propeller CLI accepts as input, and turns them into the
// internal/cfg and internal/pathclone types the engine operates on.
// Per §7 item 4, parsing/I/O failures here are the responsibility of
// this package alone: the core engine packages never see a malformed
// document, only a fully-built *cfg.ProgramCfg.
package cfgio

// Document is the top-level JSON shape of a program-CFG input file.
type Document struct {
	Functions []FunctionDoc `json:"functions"`
}

// FunctionDoc describes one function's CFG.
type FunctionDoc struct {
	FuncIndex   int        `json:"func_index"`
	SectionName string     `json:"section_name"`
	Name        string     `json:"name"`
	Aliases     []string   `json:"aliases,omitempty"`
	ModuleName  string     `json:"module_name,omitempty"`
	Nodes       []NodeDoc  `json:"nodes"`
	IntraEdges  []EdgeDoc  `json:"intra_edges,omitempty"`
	InterEdges  []EdgeDoc  `json:"inter_edges,omitempty"`
}

// NodeDoc describes one basic block. Nodes must appear in increasing
// bb_index order within a function (§3.1); clone nodes are never
// present in an input document, only produced internally by
// path-cloning.
type NodeDoc struct {
	BBIndex           int    `json:"bb_index"`
	BBID              uint64 `json:"bb_id"`
	Size              uint64 `json:"size"`
	Addr              uint64 `json:"addr"`
	IsLandingPad      bool   `json:"is_landing_pad,omitempty"`
	CanFallthrough    bool   `json:"can_fallthrough,omitempty"`
	HasReturn         bool   `json:"has_return,omitempty"`
	HasTailCall       bool   `json:"has_tail_call,omitempty"`
	HasIndirectBranch bool   `json:"has_indirect_branch,omitempty"`
}

// EdgeDoc describes one edge. SinkFunc is only meaningful for
// inter-function edges; it is ignored for intra edges.
type EdgeDoc struct {
	SrcBB       int    `json:"src_bb"`
	SinkFunc    int    `json:"sink_func,omitempty"`
	SinkBB      int    `json:"sink_bb"`
	Weight      uint64 `json:"weight"`
	Kind        string `json:"kind"` // "branch", "call", or "return"
	AlwaysTaken bool   `json:"always_taken,omitempty"`
	IsIndirect  bool   `json:"is_indirect,omitempty"`
}

// PathProfileDocument is the top-level JSON shape of a path-profile
// input file (§3.1, §4.5.1).
type PathProfileDocument struct {
	Functions []FunctionPathProfileDoc `json:"functions"`
}

// FunctionPathProfileDoc is one function's path-profile tree.
type FunctionPathProfileDoc struct {
	FuncIndex int            `json:"func_index"`
	Roots     []PathNodeDoc  `json:"roots"`
}

// PathNodeDoc is one path-tree node. Children are nested directly
// rather than re-keyed by parent, mirroring the tree shape described
// in §3.1.
type PathNodeDoc struct {
	BBIndex         int                  `json:"bb_index"`
	MissingPredFreq uint64               `json:"missing_pred_freq,omitempty"`
	Entries         []PathPredEntryDoc   `json:"entries"`
	Children        []PathNodeDoc        `json:"children,omitempty"`
}

// PathPredEntryDoc is one path-predecessor's contribution to a
// PathNodeDoc.
type PathPredEntryDoc struct {
	PredBBIndex   int             `json:"pred_bb_index"`
	Freq          uint64          `json:"freq"`
	CachePressure float64         `json:"cache_pressure,omitempty"`
	CallFreqs     []CalleeFreqDoc `json:"call_freqs,omitempty"`
	ReturnToFreqs []CalleeFreqDoc `json:"return_to_freqs,omitempty"`
}

// CalleeFreqDoc names an observed callee entry or return-to block by
// its full program-wide identity, with an observed frequency.
type CalleeFreqDoc struct {
	FuncIndex int    `json:"func_index"`
	BBIndex   int    `json:"bb_index"`
	Freq      uint64 `json:"freq"`
}
