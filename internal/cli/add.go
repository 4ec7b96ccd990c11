package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
)

var (
	addNotes     []string
	addRequires  []string
	addConflicts []string
	addCmd       = &cobra.Command{
		Use:   "add <change>",
		Short: "Add a change to the plan",
		Long: `Append a change to the plan and create its deploy, revert, and
verify scripts from stub templates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(args[0])
		},
	}
)

func init() {
	addCmd.Flags().StringArrayVarP(&addNotes, "note", "n", nil, "Note describing the change (repeatable; joined as paragraphs)")
	addCmd.Flags().StringArrayVarP(&addRequires, "requires", "r", nil, "Change this one requires (repeatable)")
	addCmd.Flags().StringArrayVarP(&addConflicts, "conflicts", "x", nil, "Change this one conflicts with (repeatable)")
}

// AddCmd returns the add command.
func AddCmd() *cobra.Command {
	return addCmd
}

func runAdd(name string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	plannerName, plannerEmail, err := proj.Cfg.RequireUser()
	if err != nil {
		return err
	}

	c := &plan.Change{
		Name:         name,
		Note:         strings.Join(addNotes, "\n\n"),
		Timestamp:    time.Now(),
		PlannerName:  plannerName,
		PlannerEmail: plannerEmail,
	}
	for _, r := range addRequires {
		c.Dependencies = append(c.Dependencies, plan.Dependency{Type: plan.Require, Change: r})
	}
	for _, x := range addConflicts {
		c.Dependencies = append(c.Dependencies, plan.Dependency{Type: plan.Conflict, Change: x})
	}
	if err := proj.Plan.AddChange(c); err != nil {
		return err
	}

	tgt := proj.scriptTarget()
	scripts := []struct {
		kind string
		path string
	}{
		{"deploy", tgt.DeployFile(c)},
		{"revert", tgt.RevertFile(c)},
		{"verify", tgt.VerifyFile(c)},
	}
	for _, s := range scripts {
		if err := writeScriptStub(s.path, s.kind, proj.Plan.Project, c); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(proj.Root, s.path)
		if relErr != nil {
			rel = s.path
		}
		fmt.Printf("Created %s\n", rel)
	}

	if err := proj.Plan.WriteFile(); err != nil {
		return err
	}
	fmt.Printf("Added %q to %s\n", name, filepath.Base(proj.Plan.File))
	return nil
}

// writeScriptStub creates a change script from the stub template. An
// existing script is left alone so a rework keeps its predecessor's
// contents available for editing.
func writeScriptStub(path, kind, project string, c *plan.Change) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.IOf("cannot create script directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- %s %s:%s to %s\n", capitalize(kind), project, c.Name, "sqlite")
	for _, d := range c.Dependencies {
		if d.Type == plan.Require {
			fmt.Fprintf(&b, "-- requires: %s\n", d.Change)
		}
	}
	b.WriteString("\nBEGIN;\n\n")
	fmt.Fprintf(&b, "-- XXX Add %s statements here.\n", kind)
	b.WriteString("\nCOMMIT;\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errs.IOf("cannot write %s: %w", path, err)
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
