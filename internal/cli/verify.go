package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	verifyFrom string
	verifyTo   string
	verifyCmd  = &cobra.Command{
		Use:   "verify [target]",
		Short: "Verify deployed changes",
		Long: `Run the verify scripts of deployed changes against the database,
in deployment order. --from and --to narrow the range; changes without
a verify script are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) == 1 {
				targetName = args[0]
			}
			return runVerify(cmd.Context(), targetName)
		},
	}
)

func init() {
	verifyCmd.Flags().StringVar(&verifyFrom, "from", "", "Verify from this change or tag")
	verifyCmd.Flags().StringVar(&verifyTo, "to", "", "Verify up to this change or tag")
}

// VerifyCmd returns the verify command.
func VerifyCmd() *cobra.Command {
	return verifyCmd
}

func runVerify(ctx context.Context, targetName string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	eng, _, err := proj.openEngine(targetName, false)
	if err != nil {
		return err
	}
	defer eng.Close()
	return eng.Verify(ctx, verifyFrom, verifyTo)
}
