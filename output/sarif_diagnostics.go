package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"
)

// DiagnosticSeverity mirrors the SARIF result levels the engine's
// diagnostics can carry.
type DiagnosticSeverity string

const (
	DiagnosticError   DiagnosticSeverity = "error"
	DiagnosticWarning DiagnosticSeverity = "warning"
	DiagnosticNote    DiagnosticSeverity = "note"
)

// Diagnostic is one path-cloning rejection or data-shape warning
// (§7) worth surfacing to a CI caller alongside the cluster file.
type Diagnostic struct {
	RuleID   string
	Message  string
	FuncName string
	BBIndex  int
	Severity DiagnosticSeverity
}

// SARIFDiagnosticsFormatter writes a run's Diagnostics as SARIF
// 2.1.0, adapted from the teacher's detection-report SARIF formatter:
// the same rule-table-then-results shape, with a function name and
// bb_index standing in for a source file and line since this engine
// has no source locations of its own.
type SARIFDiagnosticsFormatter struct {
	writer io.Writer
}

// NewSARIFDiagnosticsFormatter creates a formatter writing to stdout.
func NewSARIFDiagnosticsFormatter() *SARIFDiagnosticsFormatter {
	return &SARIFDiagnosticsFormatter{writer: os.Stdout}
}

// NewSARIFDiagnosticsFormatterWithWriter creates a formatter with a
// custom writer, for testing.
func NewSARIFDiagnosticsFormatterWithWriter(w io.Writer) *SARIFDiagnosticsFormatter {
	return &SARIFDiagnosticsFormatter{writer: w}
}

// Format writes diags as one SARIF run.
func (f *SARIFDiagnosticsFormatter) Format(diags []Diagnostic) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}

	run := sarif.NewRunWithInformationURI("propeller", "https://github.com/google/propeller")
	f.buildRules(diags, run)
	for _, d := range diags {
		f.buildResult(d, run)
	}
	report.AddRun(run)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (f *SARIFDiagnosticsFormatter) buildRules(diags []Diagnostic, run *sarif.Run) {
	seen := make(map[string]bool)
	for _, d := range diags {
		if seen[d.RuleID] {
			continue
		}
		seen[d.RuleID] = true
		run.AddRule(d.RuleID).
			WithDescription(d.Message).
			WithName(d.RuleID).
			WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(string(d.Severity)))
	}
}

func (f *SARIFDiagnosticsFormatter) buildResult(d Diagnostic, run *sarif.Run) {
	message := d.Message
	if d.FuncName != "" {
		message = fmt.Sprintf("%s (function %s, bb %d)", message, d.FuncName, d.BBIndex)
	}

	result := run.CreateResultForRule(d.RuleID).
		WithLevel(string(d.Severity)).
		WithMessage(sarif.NewTextMessage(message))

	region := sarif.NewRegion().WithStartLine(d.BBIndex + 1)
	location := sarif.NewLocation().
		WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(d.FuncName)).
				WithRegion(region),
		)
	result.AddLocation(location)
}
