package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/config"
	"github.com/andresmejia3/facesignal/internal/session"
	"github.com/andresmejia3/facesignal/internal/stream"
	"github.com/andresmejia3/facesignal/internal/types"
	"github.com/andresmejia3/facesignal/internal/utils"
)

var replayOpts Options

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Classify a recorded landmark stream (JSON Lines)",
	Long: `Reads one landmark frame per line, from a file or stdin ("-"), and prints
every eye and head-pose state change as it happens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runReplay(cmd.Context(), Cfg, cmd.InOrStdin(), cmd.OutOrStdout(), replayOpts)
	},
}

func init() {
	addSinkFlags(replayCmd, &replayOpts)
	replayCmd.Flags().StringVarP(&replayOpts.InputPath, "input", "i", "", `Landmark stream, or "-" for stdin`)
	replayCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(replayCmd)
}

// addSinkFlags registers the frame-size and sink flags shared by replay and watch.
func addSinkFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "Frame width in pixels (default from config)")
	cmd.Flags().Float64Var(&opts.Height, "height", 0, "Frame height in pixels (default from config)")
	cmd.Flags().StringVar(&opts.WSAddr, "ws-addr", "", "Serve state changes over websocket at this address (e.g. :8090)")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "Record state changes to PostgreSQL")
	cmd.Flags().StringVar(&opts.Label, "label", "", "Human label for the recorded session")
	cmd.Flags().StringVar(&opts.SessionID, "session-id", "", "Session id (default: generated)")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Do not print events to stdout")
}

func runReplay(ctx context.Context, cfg *config.Config, stdin io.Reader, out io.Writer, opts Options) error {
	if cfg == nil {
		cfg = config.Defaults()
	}

	var in io.Reader
	if opts.InputPath == "-" {
		in = stdin
	} else {
		f, err := os.Open(opts.InputPath)
		if err != nil {
			utils.ShowError("Unable to open landmark stream", err, nil)
			return err
		}
		defer f.Close()
		in = f
	}

	p, err := buildPipeline(ctx, cfg, out, opts, session.Options{})
	if err != nil {
		return err
	}

	frames := make(chan types.LandmarkFrame, 16)
	feedErr := make(chan error, 1)
	go func() {
		feedErr <- stream.Feed(ctx, stream.NewReader(in), frames)
	}()

	stats, runErr := p.session.Run(ctx, frames)
	p.finish(stats)

	if runErr != nil {
		return runErr
	}
	if err := <-feedErr; err != nil {
		return fmt.Errorf("landmark stream: %w", err)
	}
	return nil
}
