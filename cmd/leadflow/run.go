package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/internal/cli"
	"github.com/aretw0/leadflow/internal/presentation/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer the diagnostic in the terminal",
	Long: `Runs the questionnaire interactively: contact details first, then every
question section by section. Type "back" to revisit the previous question and
"quit" to leave; progress is saved and resumed with --session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		headless, _ := cmd.Flags().GetBool("headless")
		fresh, _ := cmd.Flags().GetBool("fresh")

		app, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer closeApp(app)

		ctx := cmd.Context()
		if sessionID == "" {
			sessionID = uuid.NewString()
		} else if fresh {
			if err := app.Engine.Sessions().Discard(ctx, sessionID); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		interactive := !headless && tui.IsTerminal(os.Stdin)
		r := &leadflow.Runner{
			Input:    cli.NewInterruptibleReader(ctx, cmd.InOrStdin()),
			Output:   out,
			Headless: !interactive,
		}
		if interactive {
			tui.PrintBanner(out)
			r.Renderer = tui.NewRenderer(tui.Width(os.Stdout, 80))
		}

		res, err := r.Run(ctx, app.Engine, sessionID)
		if cli.IsInterrupted(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nProgress saved. Resume with: leadflow run --session %s\n", sessionID)
			return nil
		}
		if err != nil {
			return err
		}

		app.Logger.Info("questionnaire complete",
			"session_id", sessionID,
			"score", res.Profile.Score,
			"tier", res.Profile.Tier,
			"submission", res.Submission,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session ID to resume or create (default: a new one)")
	runCmd.Flags().Bool("headless", false, "Plain output without banner, hints or markdown rendering")
	runCmd.Flags().Bool("fresh", false, "Discard the saved progress of --session before starting")
}
