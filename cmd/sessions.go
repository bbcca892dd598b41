package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/store"
	"github.com/andresmejia3/facesignal/internal/utils"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		return runSessions(cmd.Context(), db, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(ctx context.Context, db *store.Store, out io.Writer) error {
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		utils.ShowError("Failed to list sessions", err, nil)
		return err
	}
	printSessions(out, sessions)
	return nil
}

func printSessions(out io.Writer, sessions []store.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tSOURCE\tFRAME\tEVENTS\tSTARTED")
	fmt.Fprintln(w, "--\t-----\t------\t-----\t------\t-------")

	for _, s := range sessions {
		label := s.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d\t%s\n",
			s.ID, label, s.Source, s.FrameWidth, s.FrameHeight, s.Events,
			s.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
