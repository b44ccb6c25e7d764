package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Printf("propeller version %s (%s)\n", Version, GitCommit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
