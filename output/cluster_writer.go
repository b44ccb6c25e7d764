package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/chain"
	"github.com/google/propeller/internal/layout"
)

// ClusterFileWriter serializes a layout run's SectionLayoutInfo
// results as a cluster file (§6.2), grounded in propeller's
// profile_writer.cc cluster-file format: one block per function
// naming it and its aliases, one line per chain listing its
// compiler-assigned bb_ids, and (version 1+) a line per cloned path.
//
// Version negotiation (SPEC_FULL.md §C.3): a plain version-0 file
// omits the leading version line and any clone-path lines; it is
// emitted when no function in the run has a non-empty ClonePaths
// list. Otherwise a "!version 1" line is emitted first and every
// function block may carry "@" clone-path lines.
type ClusterFileWriter struct {
	g *cfg.ProgramCfg
}

// NewClusterFileWriter creates a writer over the program the layout
// was computed against, needed to resolve bb_ids and clone paths.
func NewClusterFileWriter(g *cfg.ProgramCfg) *ClusterFileWriter {
	return &ClusterFileWriter{g: g}
}

// Write serializes every section's layout in section-name order
// (sections are already sorted by the driver).
func (w *ClusterFileWriter) Write(out io.Writer, sections []*layout.SectionLayoutInfo) error {
	bw := bufio.NewWriter(out)

	versioned := false
loop:
	for _, s := range sections {
		for _, fc := range s.Functions {
			if len(w.g.CFG(fc.FuncIndex).ClonePaths) > 0 {
				versioned = true
				break loop
			}
		}
	}
	if versioned {
		fmt.Fprintln(bw, "!version 1")
	}

	for _, s := range sections {
		var sectionSize uint64
		for _, fc := range s.Functions {
			sectionSize += w.g.CFG(fc.FuncIndex).Size()
		}
		fmt.Fprintf(bw, "!!%s (%s)\n", s.SectionName, humanize.Bytes(sectionSize))
		for _, fc := range s.Functions {
			cfgFn := w.g.CFG(fc.FuncIndex)
			w.writeFunction(bw, cfgFn, fc, versioned)
		}
	}

	return bw.Flush()
}

func (w *ClusterFileWriter) writeFunction(bw *bufio.Writer, cfgFn *cfg.ControlFlowGraph, fc *layout.FunctionChainInfo, versioned bool) {
	header := "!" + cfgFn.Name
	if len(cfgFn.Aliases) > 0 {
		header += " " + strings.Join(cfgFn.Aliases, " ")
	}
	fmt.Fprintln(bw, header)
	if cfgFn.ModuleName != "" {
		fmt.Fprintf(bw, "!!module %s\n", cfgFn.ModuleName)
	}

	if versioned {
		for _, path := range cfgFn.ClonePaths {
			w.writeClonePath(bw, cfgFn, path)
		}
	}

	for _, c := range fc.HotChains {
		w.writeChain(bw, c)
	}
	if fc.ColdChain != nil {
		w.writeChain(bw, fc.ColdChain)
	}
}

// writeChain lists one chain's bb_ids in its final layout order.
func (w *ClusterFileWriter) writeChain(bw *bufio.Writer, c *chain.NodeChain) {
	ids := make([]string, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		ref := c.NodeAt(i)
		ids = append(ids, bbIDString(w.g.CFG(ref.Func).Node(ref.Node)))
	}
	fmt.Fprintln(bw, strings.Join(ids, " "))
}

func (w *ClusterFileWriter) writeClonePath(bw *bufio.Writer, cfgFn *cfg.ControlFlowGraph, path []cfg.NodeIndex) {
	ids := make([]string, 0, len(path))
	for _, idx := range path {
		ids = append(ids, bbIDString(cfgFn.Node(idx)))
	}
	fmt.Fprintf(bw, "@%s\n", strings.Join(ids, " "))
}

func bbIDString(n *cfg.CFGNode) string {
	if n.CloneNumber > 0 {
		return fmt.Sprintf("%d.%d", n.BBID, n.CloneNumber)
	}
	return fmt.Sprintf("%d", n.BBID)
}
