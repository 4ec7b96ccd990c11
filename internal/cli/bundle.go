package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/example/strata/internal/config"
	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
)

var (
	bundleDest string
	bundleFrom string
	bundleTo   string
	bundleCmd  = &cobra.Command{
		Use:   "bundle",
		Short: "Bundle the project for distribution",
		Long: `Copy the configuration, plan, and change scripts into a
self-contained directory. --from and --to take change names, tags, or
@ROOT/@HEAD and narrow the bundle to that slice of the plan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundle()
		},
	}
)

func init() {
	bundleCmd.Flags().StringVar(&bundleDest, "dest", "bundle", "Destination directory")
	bundleCmd.Flags().StringVar(&bundleFrom, "from", "", "First change to include")
	bundleCmd.Flags().StringVar(&bundleTo, "to", "", "Last change to include")
}

// BundleCmd returns the bundle command.
func BundleCmd() *cobra.Command {
	return bundleCmd
}

func runBundle() error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	p := proj.Plan

	from, to := 0, p.Count()-1
	if bundleFrom != "" {
		i, ok := plan.Resolve(p, bundleFrom)
		if !ok {
			return errs.Resolutionf("cannot find --from reference %q in %s", bundleFrom, p.File)
		}
		from = i
	}
	if bundleTo != "" {
		i, ok := plan.Resolve(p, bundleTo)
		if !ok {
			return errs.Resolutionf("cannot find --to reference %q in %s", bundleTo, p.File)
		}
		to = i
	}
	if from > to && to >= 0 {
		return errs.Validationf("--from %q comes after --to %q in the plan", bundleFrom, bundleTo)
	}

	dest := bundleDest
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(proj.Root, dest)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errs.IOf("cannot create bundle directory: %w", err)
	}
	fmt.Printf("Bundling into %s\n", bundleDest)

	if err := copyFile(filepath.Join(proj.Root, config.ConfFile), filepath.Join(dest, config.ConfFile)); err != nil {
		return err
	}
	fmt.Printf("Writing config\n")

	planOut := filepath.Join(dest, filepath.Base(p.File))
	if err := atomic.WriteFile(planOut, strings.NewReader(p.FormatRange(from, to))); err != nil {
		return errs.IOf("cannot write bundled plan: %w", err)
	}
	fmt.Printf("Writing plan\n")

	tgt := proj.scriptTarget()
	for i := from; i <= to && i < p.Count(); i++ {
		c := p.ChangeAt(i)
		for _, src := range []string{tgt.DeployFile(c), tgt.RevertFile(c), tgt.VerifyFile(c)} {
			rel, err := filepath.Rel(proj.Root, src)
			if err != nil {
				return errs.IOf("script %s is outside the project: %w", src, err)
			}
			if _, err := os.Stat(src); err != nil {
				// Only deploy scripts are mandatory to run; missing
				// revert or verify stubs are simply not bundled.
				fmt.Printf("  skipping %s: not found\n", rel)
				continue
			}
			if err := copyFile(src, filepath.Join(dest, rel)); err != nil {
				return err
			}
		}
		fmt.Printf("  + %s\n", c.Name)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.IOf("cannot read %s: %w", src, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errs.IOf("cannot create %s: %w", filepath.Dir(dst), err)
	}
	if err := atomic.WriteFile(dst, in); err != nil {
		return errs.IOf("cannot write %s: %w", dst, err)
	}
	return nil
}

