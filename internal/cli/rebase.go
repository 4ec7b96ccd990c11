package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/engine"
	"github.com/example/strata/internal/errs"
)

var (
	rebaseOnto string
	rebaseTo   string
	rebaseMode string
	rebaseYes  bool
	rebaseCmd  = &cobra.Command{
		Use:   "rebase [target]",
		Short: "Revert and redeploy in one step",
		Long: `Revert down to --onto, then deploy back up to --to. Handy after
reworking recent changes: one command replays the affected slice of the
plan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) == 1 {
				targetName = args[0]
			}
			return runRebase(cmd.Context(), targetName)
		},
	}
)

func init() {
	rebaseCmd.Flags().StringVar(&rebaseOnto, "onto", "", "Revert down to, but not including, this change or tag")
	rebaseCmd.Flags().StringVar(&rebaseTo, "to", "", "Redeploy up to this change or tag")
	rebaseCmd.Flags().StringVar(&rebaseMode, "mode", "all", "Deploy mode: all, tag, or change")
	rebaseCmd.Flags().BoolVarP(&rebaseYes, "yes", "y", false, "Skip the confirmation prompt")
}

// RebaseCmd returns the rebase command.
func RebaseCmd() *cobra.Command {
	return rebaseCmd
}

func runRebase(ctx context.Context, targetName string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	eng, _, err := proj.openEngine(targetName, true)
	if err != nil {
		return err
	}
	defer eng.Close()

	err = eng.Revert(ctx, rebaseOnto, !rebaseYes, true)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrAborted):
		return err
	case errs.KindOf(err) == errs.KindUser:
		// Nothing deployed, or already at --onto; deploying is still
		// worthwhile.
	default:
		return err
	}
	return eng.Deploy(ctx, rebaseTo, engine.Mode(rebaseMode))
}
