package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Read submitted leads",
}

var leadsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the most recent leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		app, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		if app.Leads == nil {
			return fmt.Errorf("leads.kind %q cannot be listed", app.Config.Leads.Kind)
		}
		leads, err := app.Leads.List(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list leads: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(leads)
		}
		if len(leads) == 0 {
			fmt.Fprintln(out, "No leads found.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tCOMPLETED\tSCORE\tTIER\tURGENCY\tEMAIL\tVERTICALS")
		for _, l := range leads {
			p := l.Profile
			verticals := make([]string, len(p.Verticals))
			for i, v := range p.Verticals {
				verticals[i] = string(v)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				p.SessionID,
				p.CompletedAt.Local().Format(time.DateTime),
				p.Score, p.Tier, p.Urgency,
				p.Contact.Email,
				strings.Join(verticals, ","),
			)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsLsCmd)

	leadsLsCmd.Flags().IntP("limit", "n", 20, "Maximum number of leads (0 for all)")
	leadsLsCmd.Flags().Bool("json", false, "Print the full lead records as JSON")
}
