package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the questionnaire as MCP tools so AI assistants can qualify a lead
conversationally.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP (--sse <addr>). Ideal for remote agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sseAddr, _ := cmd.Flags().GetString("sse")
		baseURL, _ := cmd.Flags().GetString("base-url")

		app, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		srv := mcp.NewServer(app.Engine, mcp.WithLogger(app.Logger))
		if sseAddr == "" {
			// Logs go to stderr so they never corrupt the JSON-RPC stream on stdout.
			app.Logger.Info("starting leadflow MCP server (stdio)")
			return srv.ServeStdio()
		}

		if baseURL == "" {
			baseURL = "http://localhost" + sseAddr
		}
		if err := srv.ServeSSE(cmd.Context(), sseAddr, baseURL); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		app.Logger.Info("MCP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("sse", "", "Serve the SSE transport on this address instead of stdio (e.g. :8081)")
	mcpCmd.Flags().String("base-url", "", "Public base URL announced to SSE clients")
}
