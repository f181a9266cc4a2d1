package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow/pkg/catalog"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog-file]",
	Short: "Check a catalog for consistency",
	Long: `Compiles the catalog and reports every integrity problem: duplicate IDs,
out of range weights, dangling branch targets and verticals or next steps
without content. Without arguments the --catalog file (or the embedded
diagnostic) is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("catalog")
		if len(args) > 0 {
			path = args[0]
		}

		c, err := catalog.Load(path)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Catalog %q is valid: %d sections, %d questions, %d branches.\n",
			c.ID(), len(c.Sections()), c.Len(), len(c.Transitions()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
