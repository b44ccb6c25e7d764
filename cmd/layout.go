package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/google/propeller/analytics"
	"github.com/google/propeller/internal/cfg"
	"github.com/google/propeller/internal/cfgio"
	"github.com/google/propeller/internal/config"
	"github.com/google/propeller/internal/layout"
	"github.com/google/propeller/internal/pathclone"
	"github.com/google/propeller/output"
)

var (
	pathProfileFlag    string
	clusterOutFlag     string
	symbolOrderOutFlag string
	edgeProfileOutFlag bool
	diagnosticsFlag    string
	debugFlag          bool
)

var layoutCmd = &cobra.Command{
	Use:   "layout <program-cfg.json>",
	Short: "Run path cloning and code layout over a program-CFG document",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	layoutCmd.Flags().StringVar(&pathProfileFlag, "path-profile", "", "Path to a JSON path-profile document (path cloning runs only when path_profile.enabled is set in the config, §4.5)")
	layoutCmd.Flags().StringVar(&clusterOutFlag, "cluster-out", "", "Cluster-file output path (default: stdout)")
	layoutCmd.Flags().StringVar(&symbolOrderOutFlag, "symbol-order-out", "", "Symbol-order-file output path")
	layoutCmd.Flags().BoolVar(&edgeProfileOutFlag, "edge-profile", false, "Also print #cfg edge-profile lines to stdout")
	layoutCmd.Flags().StringVar(&diagnosticsFlag, "diagnostics-format", "", `Diagnostics report format ("sarif" or empty to disable)`)
	layoutCmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable debug-level logging")
	rootCmd.AddCommand(layoutCmd)
}

func runLayout(cmd *cobra.Command, args []string) error {
	logger := output.NewLogger(verbosity(debugFlag))
	analytics.ReportEvent(analytics.LayoutStarted)

	cfgPath := args[0]

	cfgDoc, err := cfgio.ReadProgramCfg(cfgPath)
	if err != nil {
		analytics.ReportEvent(analytics.LayoutFailed)
		return fmt.Errorf("layout: %w", err)
	}

	conf := config.Default()
	if configPath != "" {
		conf, err = config.Load(configPath)
		if err != nil {
			analytics.ReportEvent(analytics.LayoutFailed)
			return fmt.Errorf("layout: %w", err)
		}
	}

	program := cfgDoc
	if conf.PathProfile.Enabled && pathProfileFlag != "" {
		analytics.ReportEvent(analytics.CloningStarted)
		program, err = applyPathCloning(logger, program, conf)
		if err != nil {
			analytics.ReportEvent(analytics.CloningFailed)
			return fmt.Errorf("layout: %w", err)
		}
	}

	stopTiming := logger.StartTiming("layout")
	driver := layout.NewDriver(program, conf.CodeLayout.ToLayoutOptions())
	sections := driver.GenerateLayoutBySection()
	stopTiming()
	logger.Statistic("layout: %d section(s) laid out in %s", len(sections), logger.GetTiming("layout").Round(time.Millisecond))

	if err := writeClusterFile(program, sections); err != nil {
		analytics.ReportEvent(analytics.LayoutFailed)
		return fmt.Errorf("layout: %w", err)
	}
	if symbolOrderOutFlag != "" {
		if err := writeSymbolOrderFile(program, sections); err != nil {
			analytics.ReportEvent(analytics.LayoutFailed)
			return fmt.Errorf("layout: %w", err)
		}
	}
	if edgeProfileOutFlag {
		if err := output.WriteEdgeProfile(os.Stdout, program); err != nil {
			analytics.ReportEvent(analytics.LayoutFailed)
			return fmt.Errorf("layout: %w", err)
		}
	}

	analytics.ReportEvent(analytics.LayoutCompleted)
	return nil
}

// applyPathCloning reads the path-profile document and runs
// pathclone.ApplyClonings. When any candidate is rejected it logs one
// warning and, when requested, emits one SARIF diagnostic carrying the
// rejection count.
func applyPathCloning(logger *output.Logger, program *cfg.ProgramCfg, conf config.Config) (*cfg.ProgramCfg, error) {
	profiles, err := cfgio.ReadPathProfiles(pathProfileFlag)
	if err != nil {
		return nil, err
	}

	stop := logger.StartTiming("path-cloning")
	result, stats := pathclone.ApplyClonings(program, profiles, conf.ToEvalParams())
	stop()

	logger.Statistic("path cloning: %d applied, %d rejected, %d block(s)/%s cloned, %.2f total score gain (%s)",
		stats.Applied, stats.Rejected, stats.BBsCloned, humanize.Bytes(stats.BytesCloned), stats.TotalScoreGain,
		logger.GetTiming("path-cloning").Round(time.Millisecond))

	if stats.Rejected > 0 {
		logger.Warning("path cloning: %d candidate(s) did not clear the configured score thresholds", stats.Rejected)
		if diagnosticsFlag == "sarif" {
			diag := output.Diagnostic{
				RuleID:   "propeller/cloning-rejected",
				Message:  fmt.Sprintf("%d path-cloning candidate(s) were rejected", stats.Rejected),
				Severity: output.DiagnosticWarning,
			}
			if err := output.NewSARIFDiagnosticsFormatter().Format([]output.Diagnostic{diag}); err != nil {
				logger.Warning("failed to emit diagnostics report: %v", err)
			}
		}
	}

	analytics.ReportEvent(analytics.CloningCompleted)
	return result, nil
}

func writeClusterFile(program *cfg.ProgramCfg, sections []*layout.SectionLayoutInfo) error {
	out := os.Stdout
	if clusterOutFlag != "" {
		f, err := os.Create(clusterOutFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return output.NewClusterFileWriter(program).Write(out, sections)
}

func writeSymbolOrderFile(program *cfg.ProgramCfg, sections []*layout.SectionLayoutInfo) error {
	f, err := os.Create(symbolOrderOutFlag)
	if err != nil {
		return err
	}
	defer f.Close()
	return output.NewSymbolOrderWriter(program).Write(f, sections)
}
