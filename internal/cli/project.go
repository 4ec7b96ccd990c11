// Package cli implements the strata commands. Each command lives in
// its own file and exposes an XCmd() constructor that main wires into
// the root command.
package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/example/strata/internal/config"
	"github.com/example/strata/internal/engine"
	_ "github.com/example/strata/internal/engine/sqlite"
	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
	"github.com/example/strata/internal/target"
)

// project is the loaded state every command starts from: the project
// root, its configuration, and its parsed plan.
type project struct {
	Root string
	Cfg  *config.Config
	Plan *plan.Plan
}

// findRoot walks up from dir looking for the project config file.
func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errs.IOf("resolving working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, config.ConfFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errs.Userf("not a strata project (no %s found); run strata init first", config.ConfFile)
		}
		dir = parent
	}
}

// loadProject locates the project containing the working directory and
// parses its plan.
func loadProject() (*project, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errs.IOf("resolving working directory: %w", err)
	}
	return loadProjectAt(cwd)
}

func loadProjectAt(dir string) (*project, error) {
	root, err := findRoot(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	p, err := plan.ParseFile(filepath.Join(root, cfg.PlanFile))
	if err != nil {
		return nil, err
	}
	return &project{Root: root, Cfg: cfg, Plan: p}, nil
}

// openEngine resolves a target and opens its engine. requireUser
// demands a configured identity, which mutating commands need for
// registry rows.
func (proj *project) openEngine(targetName string, requireUser bool) (engine.Engine, *target.Target, error) {
	tgt, err := target.Resolve(proj.Root, proj.Cfg, targetName)
	if err != nil {
		return nil, nil, err
	}
	opts := engine.Options{
		CommitterName:  proj.Cfg.UserName,
		CommitterEmail: proj.Cfg.UserEmail,
		Confirm:        confirm,
		Out:            os.Stdout,
	}
	if requireUser {
		opts.CommitterName, opts.CommitterEmail, err = proj.Cfg.RequireUser()
		if err != nil {
			return nil, nil, err
		}
	}
	eng, err := engine.Open(tgt, proj.Plan, opts)
	if err != nil {
		return nil, nil, err
	}
	return eng, tgt, nil
}

// scriptTarget builds a target that can locate change scripts without a
// configured database. Commands that never touch an engine use this.
func (proj *project) scriptTarget() *target.Target {
	topDir := proj.Cfg.TopDir
	if !filepath.IsAbs(topDir) {
		topDir = filepath.Join(proj.Root, topDir)
	}
	return &target.Target{
		Engine:    proj.Cfg.Engine,
		TopDir:    topDir,
		PlanFile:  filepath.Join(proj.Root, proj.Cfg.PlanFile),
		DeployDir: "deploy",
		RevertDir: "revert",
		VerifyDir: "verify",
		Extension: proj.Cfg.Extension,
	}
}

// promptNote asks for an optional one-line note. Ctrl-C and EOF read
// as "no note".
func promptNote(what string) string {
	lin := liner.NewLiner()
	defer lin.Close()
	lin.SetCtrlCAborts(true)
	note, err := lin.Prompt("Note for " + what + " (optional): ")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(note)
}

// confirm asks a yes/no question on the terminal. Ctrl-C and EOF read
// as "no".
func confirm(msg string, def bool) bool {
	lin := liner.NewLiner()
	defer lin.Close()
	lin.SetCtrlCAborts(true)

	suffix := " [y/N] "
	if def {
		suffix = " [Y/n] "
	}
	answer, err := lin.Prompt(msg + suffix)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}
