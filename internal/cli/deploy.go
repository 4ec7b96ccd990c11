package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/engine"
)

var (
	deployTo   string
	deployMode string
	deployCmd  = &cobra.Command{
		Use:   "deploy [target]",
		Short: "Deploy changes to a database",
		Long: `Run the deploy scripts of every change not yet recorded in the
registry, in plan order. --to stops at a change name, tag, or symbolic
reference such as @HEAD.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) == 1 {
				targetName = args[0]
			}
			return runDeploy(cmd.Context(), targetName)
		},
	}
)

func init() {
	deployCmd.Flags().StringVar(&deployTo, "to", "", "Deploy up to this change or tag")
	deployCmd.Flags().StringVar(&deployMode, "mode", "all", "Deploy mode: all, tag, or change")
}

// DeployCmd returns the deploy command.
func DeployCmd() *cobra.Command {
	return deployCmd
}

func runDeploy(ctx context.Context, targetName string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	eng, _, err := proj.openEngine(targetName, true)
	if err != nil {
		return err
	}
	defer eng.Close()
	return eng.Deploy(ctx, deployTo, engine.Mode(deployMode))
}
