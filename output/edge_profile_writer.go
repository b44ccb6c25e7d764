package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/propeller/internal/cfg"
)

// WriteEdgeProfile emits one "#cfg" line per function with at least
// one non-zero-frequency block, in the format
// "#cfg bb:freq,succ_bb:weight,succ_bb:weight,..." repeated for every
// hot node of the function (§6.2, SPEC_FULL.md §C.2), grounded in
// propeller/profile_writer.cc's edge-profile emission. Only intra
// edges are listed; a node with no outgoing intra edges still gets a
// bare "bb:freq" entry.
func WriteEdgeProfile(out io.Writer, g *cfg.ProgramCfg) error {
	bw := bufio.NewWriter(out)
	for _, fn := range g.Functions() {
		cfgFn := g.CFG(fn)
		var any bool
		for _, n := range cfgFn.Nodes {
			if n.Frequency > 0 {
				any = true
				break
			}
		}
		if !any {
			continue
		}

		var line strings.Builder
		line.WriteString("#cfg")
		for _, n := range cfgFn.Nodes {
			if n.Frequency == 0 {
				continue
			}
			fmt.Fprintf(&line, " %d:%d", n.BBID, n.Frequency)
			for _, ei := range n.IntraOut {
				e := cfgFn.IntraEdge(ei)
				if e.Weight == 0 {
					continue
				}
				sink := cfgFn.Node(e.Sink.Node)
				fmt.Fprintf(&line, ",%d:%d", sink.BBID, e.Weight)
			}
		}
		fmt.Fprintln(bw, line.String())
	}
	return bw.Flush()
}
