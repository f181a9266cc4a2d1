package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of leadflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "leadflow version %s\n", strings.TrimSpace(leadflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
