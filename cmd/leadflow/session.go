package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved questionnaire sessions",
	Long:  `List, inspect, and remove the session snapshots held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		mgr := app.Engine.Sessions()
		ids, err := mgr.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No saved sessions found.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tPHASE\tANSWERS\tSAVED\tRESUMABLE")
		for _, id := range ids {
			snap, err := mgr.Inspect(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(tw, "%s\t?\t?\t?\t%v\n", id, err)
				continue
			}
			age := time.Since(snap.SavedAt)
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\n",
				id,
				snap.Session.Flow.Phase,
				len(snap.Session.Responses),
				snap.SavedAt.Local().Format(time.DateTime),
				session.Restorable(snap, age, mgr.Window()),
			)
		}
		return tw.Flush()
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the saved state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		snap, err := app.Engine.Sessions().Inspect(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load session %q: %w", args[0], err)
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		mgr := app.Engine.Sessions()
		if all, _ := cmd.Flags().GetBool("all"); all {
			if args, err = mgr.List(cmd.Context()); err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
		}

		var errs []error
		for _, id := range args {
			if err := mgr.Discard(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("remove %q: %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionRmCmd.Flags().Bool("all", false, "Remove every saved session")
}
