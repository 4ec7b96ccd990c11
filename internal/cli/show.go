package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
)

var (
	showExists bool
	showCmd    = &cobra.Command{
		Use:   "show <type> <object>",
		Short: "Show a plan object or script",
		Long: `Show information about a change or tag, or print a change's
deploy, revert, or verify script. Types: change, tag, deploy, revert,
verify.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(args[0], args[1])
		},
	}
)

func init() {
	showCmd.Flags().BoolVar(&showExists, "exists", false, "Exit without output: 0 if the object exists, 1 if not")
}

// ShowCmd returns the show command.
func ShowCmd() *cobra.Command {
	return showCmd
}

func runShow(kind, name string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	p := proj.Plan

	switch kind {
	case "tag":
		t := p.GetTag(name)
		if t == nil {
			if showExists {
				return errs.Userf("tag %q not found", name)
			}
			return errs.Resolutionf("unknown tag %q in %s", name, p.File)
		}
		if showExists {
			return nil
		}
		fmt.Printf("tag %s\n", p.TagID(t))
		fmt.Printf("name    @%s\n", t.Name)
		fmt.Printf("project %s\n", p.Project)
		fmt.Printf("change  %s [%s]\n", p.ChangeID(t.Change), t.Change.Name)
		fmt.Printf("planner %s\n", t.Planner())
		fmt.Printf("date    %s\n", plan.FormatTimestamp(t.Timestamp))
		if t.Note != "" {
			fmt.Printf("\n%s\n", t.Note)
		}
		return nil

	case "change":
		c := plan.ResolveChange(p, name)
		if c == nil {
			// A raw change ID also works.
			c = p.GetChangeByID(name)
		}
		if c == nil {
			if showExists {
				return errs.Userf("change %q not found", name)
			}
			return errs.Resolutionf("unknown change %q in %s", name, p.File)
		}
		if showExists {
			return nil
		}
		fmt.Printf("change %s\n", p.ChangeID(c))
		fmt.Printf("name    %s\n", c.Name)
		fmt.Printf("project %s\n", p.Project)
		if len(c.Dependencies) > 0 {
			var deps []string
			for _, d := range c.Dependencies {
				deps = append(deps, d.String())
			}
			fmt.Printf("needs   %s\n", strings.Join(deps, " "))
		}
		if len(c.Tags) > 0 {
			tags := make([]string, len(c.Tags))
			for i, tag := range c.Tags {
				tags[i] = "@" + tag
			}
			fmt.Printf("tags    %s\n", strings.Join(tags, " "))
		}
		fmt.Printf("planner %s\n", c.Planner())
		fmt.Printf("date    %s\n", plan.FormatTimestamp(c.Timestamp))
		if c.Note != "" {
			fmt.Printf("\n%s\n", c.Note)
		}
		return nil

	case "deploy", "revert", "verify":
		c := plan.ResolveChange(p, name)
		if c == nil {
			if showExists {
				return errs.Userf("change %q not found", name)
			}
			return errs.Resolutionf("unknown change %q in %s", name, p.File)
		}
		tgt := proj.scriptTarget()
		var path string
		switch kind {
		case "deploy":
			path = tgt.DeployFile(c)
		case "revert":
			path = tgt.RevertFile(c)
		case "verify":
			path = tgt.VerifyFile(c)
		}
		if showExists {
			if _, err := os.Stat(path); err != nil {
				return errs.Userf("%s script for %q not found", kind, name)
			}
			return nil
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return errs.IOf("cannot read %s script: %w", kind, err)
		}
		fmt.Print(string(body))
		return nil

	default:
		return errs.Userf("unknown object type %q; expected change, tag, deploy, revert, or verify", kind)
	}
}
