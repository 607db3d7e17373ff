package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of formationd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (built %s)\n", ServiceName, CurrentVersion, BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
