package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow/internal/presentation/graph"
	"github.com/aretw0/leadflow/pkg/catalog"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the questionnaire graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the catalog: sections as subgraphs,
the default path as solid arrows and branches as dotted arrows.
With --session the path of a saved session is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		if sessionID == "" {
			path, _ := cmd.Flags().GetString("catalog")
			c, err := catalog.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(c, nil))
			return nil
		}

		app, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		snap, err := app.Engine.Sessions().Inspect(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("load session %q: %w", sessionID, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(app.Catalog, graph.SessionOverlay(app.Catalog, &snap.Session)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the path of a saved session")
}
