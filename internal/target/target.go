// Package target resolves the deployment target of a command: which
// engine to use, where its database lives, and where the plan file and
// change scripts sit on disk.
package target

import (
	"path/filepath"

	"github.com/example/strata/internal/config"
	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
)

// Target is a fully resolved deployment destination.
type Target struct {
	Name   string
	Engine string
	// URI is the engine-specific database address. For sqlite it is
	// the database file path.
	URI string
	// Registry is the path of the registry database for engines that
	// keep it in a separate store (sqlite does).
	Registry string

	TopDir    string
	PlanFile  string
	DeployDir string
	RevertDir string
	VerifyDir string
	Extension string
}

// Resolve builds a target for the project rooted at root. name selects
// an entry from the [target] config section; an empty name uses the
// default target from core.uri. A name not present in config is taken
// to be a database URI itself, so one-off destinations need no config
// edit.
func Resolve(root string, cfg *config.Config, name string) (*Target, error) {
	uri := cfg.URI
	targetName := "default"
	if name != "" {
		targetName = name
		if mapped, ok := cfg.Targets[name]; ok {
			uri = mapped
		} else {
			uri = name
		}
	}
	if uri == "" {
		return nil, errs.Configf("no target database configured; set core.uri in %s or name a target", config.ConfFile)
	}

	topDir := cfg.TopDir
	if !filepath.IsAbs(topDir) {
		topDir = filepath.Join(root, topDir)
	}
	if !filepath.IsAbs(uri) {
		uri = filepath.Join(root, uri)
	}
	registry := cfg.Registry
	if !filepath.IsAbs(registry) {
		// The registry lives next to the target database.
		registry = filepath.Join(filepath.Dir(uri), registry)
	}

	return &Target{
		Name:      targetName,
		Engine:    cfg.Engine,
		URI:       uri,
		Registry:  registry,
		TopDir:    topDir,
		PlanFile:  filepath.Join(root, cfg.PlanFile),
		DeployDir: "deploy",
		RevertDir: "revert",
		VerifyDir: "verify",
		Extension: cfg.Extension,
	}, nil
}

// DeployFile returns the deploy script path for a change.
func (t *Target) DeployFile(c *plan.Change) string {
	return t.scriptFile(t.DeployDir, c)
}

// RevertFile returns the revert script path for a change.
func (t *Target) RevertFile(c *plan.Change) string {
	return t.scriptFile(t.RevertDir, c)
}

// VerifyFile returns the verify script path for a change.
func (t *Target) VerifyFile(c *plan.Change) string {
	return t.scriptFile(t.VerifyDir, c)
}

func (t *Target) scriptFile(dir string, c *plan.Change) string {
	name := c.Name
	if t.Extension != "" {
		name += "." + t.Extension
	}
	return filepath.Join(t.TopDir, dir, name)
}
