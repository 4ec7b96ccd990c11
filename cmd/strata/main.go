package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/cli"
	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "strata",
		Short:   "strata - sane database change management",
		Version: version.String(),
		Long: `Strata manages database schema changes through a plan file:
an ordered, content-addressed record of changes and tags that deploys
the same way on every database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ConfigCmd())
	rootCmd.AddCommand(cli.AddCmd())
	rootCmd.AddCommand(cli.TagCmd())
	rootCmd.AddCommand(cli.BundleCmd())
	rootCmd.AddCommand(cli.CheckoutCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.LogCmd())
	rootCmd.AddCommand(cli.DeployCmd())
	rootCmd.AddCommand(cli.RevertCmd())
	rootCmd.AddCommand(cli.VerifyCmd())
	rootCmd.AddCommand(cli.RebaseCmd())
	rootCmd.AddCommand(cli.ShowCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "strata:", err)
		os.Exit(errs.ExitCode(err))
	}
}
