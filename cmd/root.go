package cmd

import (
	"fmt"
	"os"

	"github.com/google/propeller/analytics"
	"github.com/google/propeller/output"
	"github.com/spf13/cobra"
)

var (
	verboseFlag  bool
	configPath   string
	Version      = "0.1.0"
	GitCommit    = "HEAD"
)

var rootCmd = &cobra.Command{
	Use:   "propeller",
	Short: "Profile-guided basic-block code-layout engine",
	Long: `propeller - a profile-guided basic-block code-layout engine.

Reorders the basic blocks of a profiled binary for better instruction-cache
locality: builds chains of hot blocks via the ExtTSP objective, clusters
them per output section, and optionally clones hot call paths so each
clone can be laid out next to the path that actually executes it.

Learn more: https://github.com/google/propeller`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		disableMetrics, _ := cmd.Flags().GetBool("disable-metrics") //nolint:all
		verboseFlag, _ = cmd.Flags().GetBool("verbose")             //nolint:all

		analytics.LoadEnvFile()
		analytics.Init(disableMetrics)
		analytics.SetVersion(Version)

		// Show banner for help command
		if cmd.Name() == "help" || (len(os.Args) == 1 || (len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h"))) {
			noBanner, _ := cmd.Flags().GetBool("no-banner")
			logger := output.NewLogger(output.VerbosityDefault)
			if output.ShouldShowBanner(logger.IsTTY(), noBanner) {
				output.PrintBanner(logger.GetWriter(), Version, output.DefaultBannerOptions())
			} else if logger.IsTTY() && !noBanner {
				fmt.Fprintln(os.Stderr, output.GetCompactBanner(Version))
				fmt.Fprintln(os.Stderr)
			}
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("disable-metrics", false, "Disable metrics collection")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("no-banner", false, "Disable startup banner")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML parameter file (overrides the built-in defaults)")
}

// verbosity resolves the logger verbosity from the persistent flags.
func verbosity(debugFlag bool) output.VerbosityLevel {
	switch {
	case debugFlag:
		return output.VerbosityDebug
	case verboseFlag:
		return output.VerbosityVerbose
	default:
		return output.VerbosityDefault
	}
}
