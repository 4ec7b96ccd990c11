package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/strata/internal/config"
	"github.com/example/strata/internal/plan"
)

// initProject runs init in a temp directory and points the process at
// it, with a user identity supplied through the environment.
func initProject(t *testing.T, project string) string {
	t.Helper()
	dir := t.TempDir()
	initURI, initEngine, initTarget, initTopDir = "", "sqlite", "widgets.db", "."
	if err := runInit(dir, project); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatalf("Chdir back failed: %v", err)
		}
	})
	t.Setenv("STRATA_USER_NAME", "Ann Droid")
	t.Setenv("STRATA_USER_EMAIL", "ann@example.com")
	return dir
}

func addChange(t *testing.T, name, note string, requires ...string) {
	t.Helper()
	addNotes, addRequires, addConflicts = nil, requires, nil
	if note != "" {
		addNotes = []string{note}
	}
	if err := runAdd(name); err != nil {
		t.Fatalf("runAdd(%s) failed: %v", name, err)
	}
}

func TestConfig(t *testing.T) {
	dir := initProject(t, "widgets")

	configUser = false
	if err := runConfigSet("core.uri", "other.db"); err != nil {
		t.Fatalf("runConfigSet failed: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.URI != "other.db" {
		t.Errorf("core.uri = %q, want other.db", cfg.URI)
	}
	// The init-written settings survive the edit.
	if cfg.Engine != "sqlite" {
		t.Errorf("core.engine = %q, want sqlite", cfg.Engine)
	}

	if err := runConfigGet("core.uri"); err != nil {
		t.Errorf("runConfigGet failed: %v", err)
	}
	if err := runConfigGet("user.shoe_size"); err == nil {
		t.Error("runConfigGet succeeded for an unset key")
	}
}

func TestFindRoot(t *testing.T) {
	dir := initProject(t, "widgets")
	nested := filepath.Join(dir, "deploy")

	root, err := findRoot(nested)
	if err != nil {
		t.Fatalf("findRoot failed: %v", err)
	}
	if resolved, _ := filepath.EvalSymlinks(root); resolved != mustEval(t, dir) {
		t.Errorf("findRoot = %q, want %q", root, dir)
	}

	if _, err := findRoot(t.TempDir()); err == nil {
		t.Error("findRoot succeeded outside a project")
	}
}

func mustEval(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s): %v", path, err)
	}
	return resolved
}

func TestInit(t *testing.T) {
	dir := initProject(t, "widgets")

	for _, name := range []string{config.ConfFile, config.DefaultPlanFile, "deploy", "revert", "verify"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("init did not create %s: %v", name, err)
		}
	}

	p, err := plan.ParseFile(filepath.Join(dir, config.DefaultPlanFile))
	if err != nil {
		t.Fatalf("parsing created plan: %v", err)
	}
	if p.Project != "widgets" || p.Count() != 0 {
		t.Errorf("plan = project %q with %d changes", p.Project, p.Count())
	}

	// Re-running init in the same directory must refuse.
	if err := runInit(dir, "widgets"); err == nil {
		t.Error("second init succeeded")
	}

	if err := runInit(t.TempDir(), "9bad"); err == nil {
		t.Error("init accepted an invalid project name")
	}
}

func TestAdd(t *testing.T) {
	dir := initProject(t, "widgets")
	addChange(t, "initial", "Start of it all")
	addChange(t, "users", "Users table", "initial")

	p, err := plan.ParseFile(filepath.Join(dir, config.DefaultPlanFile))
	if err != nil {
		t.Fatalf("parsing plan: %v", err)
	}
	if p.Count() != 2 {
		t.Fatalf("plan has %d changes, want 2", p.Count())
	}
	users := p.GetChange("users")
	if users == nil || len(users.Dependencies) != 1 || users.Dependencies[0].Change != "initial" {
		t.Errorf("users = %+v, want one dependency on initial", users)
	}
	if users.PlannerName != "Ann Droid" {
		t.Errorf("planner = %q, want from environment", users.PlannerName)
	}

	deploy, err := os.ReadFile(filepath.Join(dir, "deploy", "users.sql"))
	if err != nil {
		t.Fatalf("deploy script missing: %v", err)
	}
	if !strings.Contains(string(deploy), "-- Deploy widgets:users to sqlite") {
		t.Errorf("deploy stub = %q", deploy)
	}
	if !strings.Contains(string(deploy), "-- requires: initial") {
		t.Errorf("deploy stub missing requires comment: %q", deploy)
	}
	for _, kind := range []string{"revert", "verify"} {
		if _, err := os.Stat(filepath.Join(dir, kind, "users.sql")); err != nil {
			t.Errorf("%s script missing: %v", kind, err)
		}
	}

	// Duplicate names are a rework construct, not something add does.
	addNotes, addRequires, addConflicts = nil, nil, nil
	if err := runAdd("users"); err == nil {
		t.Error("add accepted a duplicate change name")
	}
}

func TestTag(t *testing.T) {
	dir := initProject(t, "widgets")
	addChange(t, "initial", "")
	addChange(t, "users", "")

	tagNote = "First release"
	if err := runTag("v1.0", "initial"); err != nil {
		t.Fatalf("runTag failed: %v", err)
	}
	tagNote = ""
	if err := runTag("@v1.1", ""); err != nil {
		t.Fatalf("runTag with @ prefix failed: %v", err)
	}

	p, err := plan.ParseFile(filepath.Join(dir, config.DefaultPlanFile))
	if err != nil {
		t.Fatalf("parsing plan: %v", err)
	}
	if tag := p.GetTag("v1.0"); tag == nil || tag.Change.Name != "initial" || tag.Note != "First release" {
		t.Errorf("@v1.0 = %+v", tag)
	}
	if tag := p.GetTag("v1.1"); tag == nil || tag.Change.Name != "users" {
		t.Errorf("@v1.1 = %+v, want on last change", tag)
	}

	if err := runTag("v1.0", ""); err == nil {
		t.Error("duplicate tag accepted")
	}
	if err := runTag("v2.0", "nonexistent"); err == nil {
		t.Error("tag on unknown change accepted")
	}
}

func TestBundle(t *testing.T) {
	dir := initProject(t, "widgets")
	addChange(t, "initial", "")
	addChange(t, "users", "")
	addChange(t, "widgets", "")
	tagNote = ""
	if err := runTag("v1.0", "users"); err != nil {
		t.Fatalf("runTag failed: %v", err)
	}

	bundleDest, bundleFrom, bundleTo = "bundle", "", "@v1.0"
	if err := runBundle(); err != nil {
		t.Fatalf("runBundle failed: %v", err)
	}

	dest := filepath.Join(dir, "bundle")
	if _, err := os.Stat(filepath.Join(dest, config.ConfFile)); err != nil {
		t.Errorf("bundled config missing: %v", err)
	}
	bundled, err := plan.ParseFile(filepath.Join(dest, config.DefaultPlanFile))
	if err != nil {
		t.Fatalf("parsing bundled plan: %v", err)
	}
	if bundled.Count() != 2 {
		t.Errorf("bundled plan has %d changes, want 2", bundled.Count())
	}
	if bundled.GetChange("widgets") != nil {
		t.Error("bundled plan includes change past --to")
	}
	if bundled.GetTag("v1.0") == nil {
		t.Error("bundled plan dropped the tag")
	}
	if _, err := os.Stat(filepath.Join(dest, "deploy", "users.sql")); err != nil {
		t.Errorf("bundled script missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "deploy", "widgets.sql")); err == nil {
		t.Error("bundle copied a script past --to")
	}

	// A reversed range is a hard error, not an empty bundle.
	bundleDest, bundleFrom, bundleTo = "bundle2", "@v1.0", "initial"
	if err := runBundle(); err == nil {
		t.Error("runBundle accepted --from after --to")
	}

	bundleDest, bundleFrom, bundleTo = "bundle3", "", "nonexistent"
	if err := runBundle(); err == nil {
		t.Error("runBundle accepted an unknown --to reference")
	}
}

func TestShowErrors(t *testing.T) {
	initProject(t, "widgets")
	addChange(t, "initial", "")

	showExists = false
	if err := runShow("change", "initial"); err != nil {
		t.Errorf("show change failed: %v", err)
	}
	if err := runShow("widget", "initial"); err == nil {
		t.Error("show accepted an unknown object type")
	}
	if err := runShow("tag", "v9"); err == nil {
		t.Error("show found a tag that does not exist")
	}

	showExists = true
	defer func() { showExists = false }()
	if err := runShow("deploy", "initial"); err != nil {
		t.Errorf("show --exists deploy failed: %v", err)
	}
	if err := runShow("verify", "nonexistent"); err == nil {
		t.Error("show --exists succeeded for an unknown change")
	}
}
