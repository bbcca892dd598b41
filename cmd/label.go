package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/store"
	"github.com/andresmejia3/facesignal/internal/utils"
)

var labelCmd = &cobra.Command{
	Use:   "label <session_id> <name>",
	Short: "Assign a name to a recorded session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		name := strings.TrimSpace(args[1])
		if name == "" {
			return fmt.Errorf("name must not be empty")
		}
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		return runLabel(cmd.Context(), db, cmd.OutOrStdout(), args[0], name)
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

func runLabel(ctx context.Context, db *store.Store, out io.Writer, id, name string) error {
	if err := db.RenameSession(ctx, id, name); err != nil {
		utils.ShowError("Failed to label session", err, nil)
		return err
	}

	fmt.Fprintf(out, "✅ Session %s labeled as '%s'\n", id, name)
	return nil
}
