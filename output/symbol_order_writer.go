package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/layout"
)

// SymbolOrderWriter serializes a layout run as a symbol-order file
// (§6.2): one function-name-with-optional-chain-suffix per line, in
// final section order. The first hot chain of a function is named
// plainly; any further hot chain of the same function gets a
// ".<n>" suffix (n starting at 1) so a linker can place split
// functions' pieces independently. A ".cold" entry is appended only
// when the function has at least one block absent from every hot
// chain and its entry block is present in some chain (§6.2).
type SymbolOrderWriter struct {
	g *cfg.ProgramCfg
}

// NewSymbolOrderWriter creates a writer over the program the layout
// was computed against.
func NewSymbolOrderWriter(g *cfg.ProgramCfg) *SymbolOrderWriter {
	return &SymbolOrderWriter{g: g}
}

// Write serializes every section's function order.
func (w *SymbolOrderWriter) Write(out io.Writer, sections []*layout.SectionLayoutInfo) error {
	bw := bufio.NewWriter(out)
	for _, s := range sections {
		for _, fc := range s.Functions {
			cfgFn := w.g.CFG(fc.FuncIndex)
			name := cfgFn.Name

			for i, c := range fc.HotChains {
				if i == 0 {
					fmt.Fprintln(bw, name)
				} else {
					fmt.Fprintf(bw, "%s.%d\n", name, i)
				}
			}

			if fc.ColdChain != nil && w.hasColdEntry(cfgFn, fc) {
				fmt.Fprintf(bw, "%s.cold\n", name)
			}
		}
	}
	return bw.Flush()
}

// hasColdEntry reports whether the function's entry block is present
// in some hot or cold chain, and at least one of the function's
// blocks is absent from every hot chain (so a cold chain genuinely
// exists to name).
func (w *SymbolOrderWriter) hasColdEntry(cfgFn *cfg.ControlFlowGraph, fc *layout.FunctionChainInfo) bool {
	inHot := make(map[cfg.NodeRef]bool)
	for _, c := range fc.HotChains {
		for i := 0; i < c.Len(); i++ {
			inHot[c.NodeAt(i)] = true
		}
	}

	entryRef := cfg.NodeRef{Func: cfgFn.FuncIndex}
	entryInAnyChain := false
	hasColdBlock := false
	for ni, n := range cfgFn.Nodes {
		ref := cfg.NodeRef{Func: cfgFn.FuncIndex, Node: cfg.NodeIndex(ni)}
		if n.IsEntry() {
			entryRef = ref
		}
		if !inHot[ref] {
			hasColdBlock = true
		}
	}
	if inHot[entryRef] {
		entryInAnyChain = true
	} else {
		for i := 0; i < fc.ColdChain.Len(); i++ {
			if fc.ColdChain.NodeAt(i) == entryRef {
				entryInAnyChain = true
				break
			}
		}
	}

	return hasColdBlock && entryInAnyChain
}
