package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/engine"
	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
)

var (
	checkoutMode string
	checkoutYes  bool
	checkoutCmd  = &cobra.Command{
		Use:   "checkout <branch>",
		Short: "Revert, check out a git branch, and redeploy",
		Long: `Read the plan from the named git branch, find the last change it
shares with the current plan, revert the database down to that change,
run git checkout, and deploy the branch's plan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckout(cmd.Context(), args[0])
		},
	}
)

func init() {
	checkoutCmd.Flags().StringVar(&checkoutMode, "mode", "all", "Deploy mode: all, tag, or change")
	checkoutCmd.Flags().BoolVarP(&checkoutYes, "yes", "y", false, "Skip the confirmation prompt")
}

// CheckoutCmd returns the checkout command.
func CheckoutCmd() *cobra.Command {
	return checkoutCmd
}

func runCheckout(ctx context.Context, branch string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}

	current, err := git(proj.Root, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err
	}
	if current == branch {
		return errs.Userf("already on branch %s", branch)
	}

	// The plan as it exists on the other branch.
	gitRoot, err := git(proj.Root, "rev-parse", "--show-toplevel")
	if err != nil {
		return err
	}
	relPlan, err := filepath.Rel(gitRoot, proj.Plan.File)
	if err != nil {
		return errs.IOf("plan file %s is outside the git work tree: %w", proj.Plan.File, err)
	}
	planText, err := git(proj.Root, "show", branch+":"+filepath.ToSlash(relPlan))
	if err != nil {
		return err
	}
	branchPlan, err := plan.ParseString(proj.Plan.File, planText)
	if err != nil {
		return err
	}

	lastCommon := plan.FindLastCommonChange(proj.Plan, branchPlan)
	if lastCommon == nil {
		return errs.Userf("branch %s shares no deployment history with the current plan", branch)
	}

	eng, _, err := proj.openEngine("", true)
	if err != nil {
		return err
	}
	err = eng.Revert(ctx, proj.Plan.ChangeID(lastCommon), !checkoutYes, true)
	eng.Close()
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrAborted):
		return err
	case errs.KindOf(err) == errs.KindUser:
		// Already at or before the common change; nothing to revert.
	default:
		return err
	}

	fmt.Printf("Checking out %s\n", branch)
	checkout := exec.Command("git", "checkout", branch)
	checkout.Dir = proj.Root
	checkout.Stdout = os.Stdout
	checkout.Stderr = os.Stderr
	if err := checkout.Run(); err != nil {
		return errs.Userf("git checkout %s failed: %w", branch, err)
	}

	// Reload: the plan on disk is now the branch's.
	proj, err = loadProject()
	if err != nil {
		return err
	}
	eng, _, err = proj.openEngine("", true)
	if err != nil {
		return err
	}
	defer eng.Close()
	return eng.Deploy(ctx, "", engine.Mode(checkoutMode))
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errs.Userf("git %s: %s", strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(string(out)), nil
}
