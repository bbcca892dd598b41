package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/display"
	"github.com/andresmejia3/facesignal/internal/store"
	"github.com/andresmejia3/facesignal/internal/types"
	"github.com/andresmejia3/facesignal/internal/utils"
)

var eventsPanel string

var eventsCmd = &cobra.Command{
	Use:   "events <session_id>",
	Short: "Show the state-change timeline of a recorded session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		return runEvents(cmd.Context(), db, cmd.OutOrStdout(), args[0], types.Panel(eventsPanel))
	},
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsPanel, "panel", "p", "", "Only show one panel (right_eye, left_eye, head_pose_x, head_pose_y)")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(ctx context.Context, db *store.Store, out io.Writer, id string, panel types.Panel) error {
	events, err := db.SessionEvents(ctx, id)
	if err != nil {
		utils.ShowError("Failed to load session events", err, nil)
		return err
	}
	printEvents(out, filterPanel(events, panel))
	return nil
}

func filterPanel(events []store.Event, panel types.Panel) []store.Event {
	if panel == "" {
		return events
	}
	var out []store.Event
	for _, e := range events {
		if e.Panel == panel {
			out = append(out, e)
		}
	}
	return out
}

func printEvents(out io.Writer, events []store.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FRAME\tPANEL\tSTATE\tRIGHT EYE\tLEFT EYE\tHEAD X\tHEAD Y")
	fmt.Fprintln(w, "-----\t-----\t-----\t---------\t--------\t------\t------")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\n",
			e.Seq, display.Title(e.Panel), e.Kind.Label(),
			e.Ratios.RightEye, e.Ratios.LeftEye, e.Ratios.HeadPoseX, e.Ratios.HeadPoseY)
	}
	w.Flush()
}
