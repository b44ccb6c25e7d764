package cfgio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/pathclone"
)

// ReadProgramCfg reads and parses a JSON program-CFG document from
// path and assembles it into a *cfg.ProgramCfg via cfg.Builder.
func ReadProgramCfg(path string) (*cfg.ProgramCfg, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cfgio: reading %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cfgio: parsing %s: %w", path, err)
	}
	return BuildProgramCfg(doc)
}

// BuildProgramCfg assembles doc into a *cfg.ProgramCfg. Functions and
// nodes are added first so every edge's endpoints already resolve,
// regardless of the order functions and edges appear in the document.
func BuildProgramCfg(doc Document) (*cfg.ProgramCfg, error) {
	b := cfg.NewBuilder()

	for _, fn := range doc.Functions {
		b.AddFunction(cfg.FuncIndex(fn.FuncIndex), fn.SectionName, fn.Name, fn.Aliases, fn.ModuleName)
		for _, n := range fn.Nodes {
			b.AddNode(cfg.FuncIndex(fn.FuncIndex), cfg.CFGNode{
				BBIndex:           n.BBIndex,
				BBID:              n.BBID,
				Size:              n.Size,
				Addr:              n.Addr,
				IsLandingPad:      n.IsLandingPad,
				CanFallthrough:    n.CanFallthrough,
				HasReturn:         n.HasReturn,
				HasTailCall:       n.HasTailCall,
				HasIndirectBranch: n.HasIndirectBranch,
			})
		}
	}

	for _, fn := range doc.Functions {
		funcIdx := cfg.FuncIndex(fn.FuncIndex)
		for _, e := range fn.IntraEdges {
			kind, err := parseEdgeKind(e.Kind)
			if err != nil {
				return nil, fmt.Errorf("cfgio: function %d: %w", fn.FuncIndex, err)
			}
			b.AddIntraEdge(funcIdx,
				cfg.IntraCfgID{BBIndex: e.SrcBB}, cfg.IntraCfgID{BBIndex: e.SinkBB},
				e.Weight, kind, e.AlwaysTaken, e.IsIndirect)
		}
		for _, e := range fn.InterEdges {
			kind, err := parseEdgeKind(e.Kind)
			if err != nil {
				return nil, fmt.Errorf("cfgio: function %d: %w", fn.FuncIndex, err)
			}
			b.AddInterEdge(funcIdx, cfg.IntraCfgID{BBIndex: e.SrcBB},
				cfg.FuncIndex(e.SinkFunc), cfg.IntraCfgID{BBIndex: e.SinkBB},
				e.Weight, kind, e.AlwaysTaken, e.IsIndirect)
		}
	}

	return b.Build()
}

func parseEdgeKind(s string) (cfg.EdgeKind, error) {
	switch s {
	case "", "branch":
		return cfg.BranchOrFallthrough, nil
	case "call":
		return cfg.Call, nil
	case "return":
		return cfg.Return, nil
	default:
		return 0, fmt.Errorf("unknown edge kind %q", s)
	}
}

// ReadPathProfiles reads and parses a JSON path-profile document from
// path into the per-function map internal/pathclone operates on.
func ReadPathProfiles(path string) (map[cfg.FuncIndex]*pathclone.PathProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cfgio: reading %s: %w", path, err)
	}
	var doc PathProfileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cfgio: parsing %s: %w", path, err)
	}
	return BuildPathProfiles(doc), nil
}

// BuildPathProfiles converts doc into the map internal/pathclone
// operates on.
func BuildPathProfiles(doc PathProfileDocument) map[cfg.FuncIndex]*pathclone.PathProfile {
	out := make(map[cfg.FuncIndex]*pathclone.PathProfile, len(doc.Functions))
	for _, fn := range doc.Functions {
		roots := make(map[int]*pathclone.PathNode, len(fn.Roots))
		for _, r := range fn.Roots {
			roots[r.BBIndex] = buildPathNode(r)
		}
		out[cfg.FuncIndex(fn.FuncIndex)] = &pathclone.PathProfile{Roots: roots}
	}
	return out
}

func buildPathNode(doc PathNodeDoc) *pathclone.PathNode {
	n := &pathclone.PathNode{
		BBIndex:         doc.BBIndex,
		MissingPredFreq: doc.MissingPredFreq,
	}
	for _, e := range doc.Entries {
		n.Entries = append(n.Entries, pathclone.PathPredInfoEntry{
			PredBBIndex:   e.PredBBIndex,
			Freq:          e.Freq,
			CachePressure: e.CachePressure,
			CallFreqs:     buildCalleeFreqs(e.CallFreqs),
			ReturnToFreqs: buildCalleeFreqs(e.ReturnToFreqs),
		})
	}
	if len(doc.Children) > 0 {
		n.Children = make(map[int]*pathclone.PathNode, len(doc.Children))
		for _, c := range doc.Children {
			n.Children[c.BBIndex] = buildPathNode(c)
		}
	}
	return n
}

func buildCalleeFreqs(docs []CalleeFreqDoc) map[pathclone.CalleeKey]uint64 {
	if len(docs) == 0 {
		return nil
	}
	out := make(map[pathclone.CalleeKey]uint64, len(docs))
	for _, d := range docs {
		out[pathclone.CalleeKey{Func: cfg.FuncIndex(d.FuncIndex), BBIndex: d.BBIndex}] = d.Freq
	}
	return out
}
