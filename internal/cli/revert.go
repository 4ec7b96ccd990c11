package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	revertTo  string
	revertYes bool
	revertCmd = &cobra.Command{
		Use:   "revert [target]",
		Short: "Revert changes from a database",
		Long: `Run revert scripts in reverse deployment order. --to keeps the
named change and everything before it; without it the whole database is
reverted. Prompts for confirmation unless -y is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) == 1 {
				targetName = args[0]
			}
			return runRevert(cmd.Context(), targetName)
		},
	}
)

func init() {
	revertCmd.Flags().StringVar(&revertTo, "to", "", "Revert down to, but not including, this change or tag")
	revertCmd.Flags().BoolVarP(&revertYes, "yes", "y", false, "Skip the confirmation prompt")
}

// RevertCmd returns the revert command.
func RevertCmd() *cobra.Command {
	return revertCmd
}

func runRevert(ctx context.Context, targetName string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	eng, _, err := proj.openEngine(targetName, true)
	if err != nil {
		return err
	}
	defer eng.Close()
	return eng.Revert(ctx, revertTo, !revertYes, true)
}
