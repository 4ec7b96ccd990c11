package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConf(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ConfFile), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", ConfFile, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine != "sqlite" {
		t.Errorf("Engine = %q, want sqlite", cfg.Engine)
	}
	if cfg.PlanFile != "strata.plan" {
		t.Errorf("PlanFile = %q, want strata.plan", cfg.PlanFile)
	}
	if cfg.Extension != "sql" {
		t.Errorf("Extension = %q, want sql", cfg.Extension)
	}
	if cfg.Registry != "registry.db" {
		t.Errorf("Registry = %q, want registry.db", cfg.Registry)
	}
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, `[core]
engine = sqlite
uri = widgets.db
extension = ddl

[user]
name = Ann
email = ann@example.com

[target]
prod = /var/db/widgets.db
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.URI != "widgets.db" {
		t.Errorf("URI = %q, want widgets.db", cfg.URI)
	}
	if cfg.Extension != "ddl" {
		t.Errorf("Extension = %q, want ddl", cfg.Extension)
	}
	if cfg.UserName != "Ann" || cfg.UserEmail != "ann@example.com" {
		t.Errorf("user = %q <%q>", cfg.UserName, cfg.UserEmail)
	}
	if cfg.Targets["prod"] != "/var/db/widgets.db" {
		t.Errorf("Targets = %v", cfg.Targets)
	}

	name, email, err := cfg.RequireUser()
	if err != nil || name != "Ann" || email != "ann@example.com" {
		t.Errorf("RequireUser = (%q, %q, %v)", name, email, err)
	}
}

func TestSetAndGet(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, ConfFile)

	if err := Set(path, "user.name", "Ann"); err != nil {
		t.Fatalf("Set user.name failed: %v", err)
	}
	if err := Set(path, "engine.sqlite.registry", "meta.db"); err != nil {
		t.Fatalf("Set nested key failed: %v", err)
	}

	if got, err := Get(dir, "user.name"); err != nil || got != "Ann" {
		t.Errorf("Get(user.name) = (%q, %v), want Ann", got, err)
	}
	if got, err := Get(dir, "engine.sqlite.registry"); err != nil || got != "meta.db" {
		t.Errorf("Get(engine.sqlite.registry) = (%q, %v), want meta.db", got, err)
	}
	// Defaults read through Get like any other layer.
	if got, err := Get(dir, "core.engine"); err != nil || got != "sqlite" {
		t.Errorf("Get(core.engine) = (%q, %v), want sqlite", got, err)
	}

	// Overwriting keeps a single key, and Load sees the result.
	if err := Set(path, "user.name", "Bob"); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UserName != "Bob" || cfg.Registry != "meta.db" {
		t.Errorf("Load after Set: user %q registry %q", cfg.UserName, cfg.Registry)
	}
}

func TestSetInvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfFile)
	for _, key := range []string{"nodot", ".name", "name."} {
		if err := Set(path, key, "x"); err == nil {
			t.Errorf("Set(%q) succeeded, want error", key)
		}
	}
}

func TestGetUnsetKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if _, err := Get(t.TempDir(), "user.shoe_size"); err == nil {
		t.Error("Get succeeded for an unset key")
	}
}

func TestRequireUserUnset(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, _, err := cfg.RequireUser(); err == nil {
		t.Error("RequireUser succeeded with no identity configured")
	}
}
