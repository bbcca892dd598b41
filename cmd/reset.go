package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/utils"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all recorded sessions and events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		reader := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if !resetYes && !confirm(reader, out, "⚠️  Are you sure you want to DROP all recorder tables?") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "🗑️  Clearing Database...")
		if err := db.Reset(cmd.Context()); err != nil {
			utils.ShowError("Failed to reset database", err, nil)
			return err
		}
		fmt.Fprintln(out, "✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
