package output_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/propeller/output"
)

func TestSARIFDiagnosticsFormatterEmitsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	f := output.NewSARIFDiagnosticsFormatterWithWriter(&buf)

	diags := []output.Diagnostic{
		{RuleID: "propeller/cloning-rejected", Message: "score below threshold", FuncName: "foo", BBIndex: 3, Severity: output.DiagnosticWarning},
	}
	if err := f.Format(diags); err != nil {
		t.Fatalf("Format: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["version"] != "2.1.0" {
		t.Errorf("version = %v, want 2.1.0", decoded["version"])
	}
	if _, ok := decoded["runs"]; !ok {
		t.Errorf("expected a top-level \"runs\" array, got %v", decoded)
	}
}
