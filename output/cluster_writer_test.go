package output_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/propeller/internal/cfg/cfgtest"
	"github.com/google/propeller/internal/layout"
	"github.com/google/propeller/output"
)

func TestClusterFileWriterOmitsVersionLineWithoutClones(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()
	d := layout.NewDriver(p, layout.DefaultOptions())
	sections := d.GenerateLayoutBySection()

	var buf bytes.Buffer
	if err := output.NewClusterFileWriter(p).Write(&buf, sections); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if strings.HasPrefix(out, "!version") {
		t.Errorf("expected no version line for an unversioned run, got:\n%s", out)
	}
	if !strings.Contains(out, "!!.text") {
		t.Errorf("expected a section header, got:\n%s", out)
	}
}

func TestSymbolOrderWriterListsOneLinePerChain(t *testing.T) {
	p := cfgtest.SimpleMultiFunction()
	d := layout.NewDriver(p, layout.DefaultOptions())
	sections := d.GenerateLayoutBySection()

	var buf bytes.Buffer
	if err := output.NewSymbolOrderWriter(p).Write(&buf, sections); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) == 0 {
		t.Fatalf("expected at least one symbol-order line")
	}
	for _, l := range lines {
		if l == "" {
			t.Errorf("unexpected blank symbol-order line")
		}
	}
}

func TestWriteEdgeProfileEmitsCfgLinesForHotFunctions(t *testing.T) {
	p := cfgtest.ThreeBranchCFG()

	var buf bytes.Buffer
	if err := output.WriteEdgeProfile(&buf, p); err != nil {
		t.Fatalf("WriteEdgeProfile: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "#cfg") {
		t.Fatalf("expected output to start with #cfg, got:\n%s", out)
	}
}
