package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow/internal/cli"
	"github.com/aretw0/leadflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "leadflow",
	Short: "Leadflow qualifies leads through a scored diagnostic questionnaire",
	Long: `Leadflow runs a sectioned questionnaire, scores the answers into a lead tier,
urgency and prioritized verticals, and submits the qualified lead.

Configuration comes from an optional YAML file (--config) overlaid by
LEADFLOW_* environment variables; flags override both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("catalog", "", "Path to a catalog file (default: embedded diagnostic)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadApp builds the engine from the configuration file, the environment and
// the persistent flags. override may adjust command specific settings.
func loadApp(cmd *cobra.Command, override func(*config.Config)) (*cli.App, error) {
	path, _ := cmd.Flags().GetString("config")
	catalogPath, _ := cmd.Flags().GetString("catalog")
	level, _ := cmd.Flags().GetString("log-level")

	return cli.LoadApp(cmd.Context(), path, func(cfg *config.Config) {
		if catalogPath != "" {
			cfg.Catalog = catalogPath
		}
		if level != "" {
			cfg.LogLevel = level
		}
		if override != nil {
			override(cfg)
		}
	})
}

// closeApp drains the engine with a bounded grace period.
func closeApp(app *cli.App) {
	ctx, cancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		app.Logger.Error("shutdown incomplete", "error", err)
	}
}
