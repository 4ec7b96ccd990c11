// Package config loads strata.conf, the per-project INI configuration.
// A user-level file under the OS config directory supplies defaults
// (typically user.name and user.email); the project file merges over
// it, and STRATA_* environment variables override both.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/example/strata/internal/errs"
)

// ConfFile is the configuration file name in both the project root and
// the user config directory.
const ConfFile = "strata.conf"

// DefaultPlanFile is the plan file name init creates and core.plan_file
// defaults to.
const DefaultPlanFile = "strata.plan"

// Config is the flat view of everything strata reads from
// configuration.
type Config struct {
	Engine    string // core.engine
	PlanFile  string // core.plan_file
	TopDir    string // core.top_dir
	Extension string // core.extension
	URI       string // core.uri (default target)

	UserName  string // user.name
	UserEmail string // user.email

	Registry string // engine.sqlite.registry

	// Targets maps a target name to its URI ([target] section).
	Targets map[string]string
}

// Load reads configuration for the project rooted at dir. A missing
// project file is not an error; the defaults and the user-level file
// still apply, so commands like init can run before the file exists.
func Load(dir string) (*Config, error) {
	v, err := merged(dir)
	if err != nil {
		return nil, err
	}
	return &Config{
		Engine:    v.GetString("core.engine"),
		PlanFile:  v.GetString("core.plan_file"),
		TopDir:    v.GetString("core.top_dir"),
		Extension: v.GetString("core.extension"),
		URI:       v.GetString("core.uri"),
		UserName:  v.GetString("user.name"),
		UserEmail: v.GetString("user.email"),
		Registry:  v.GetString("engine.sqlite.registry"),
		Targets:   v.GetStringMapString("target"),
	}, nil
}

// merged builds the layered view: defaults, then the user-level file,
// then the project file, with STRATA_* environment on top.
func merged(dir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("ini")
	v.SetDefault("core.engine", "sqlite")
	v.SetDefault("core.plan_file", DefaultPlanFile)
	v.SetDefault("core.top_dir", ".")
	v.SetDefault("core.extension", "sql")
	v.SetDefault("engine.sqlite.registry", "registry.db")

	if ucd, err := os.UserConfigDir(); err == nil {
		userFile := filepath.Join(ucd, "strata", ConfFile)
		if _, err := os.Stat(userFile); err == nil {
			v.SetConfigFile(userFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, errs.Configf("cannot read %s: %w", userFile, err)
			}
		}
	}

	projectFile := filepath.Join(dir, ConfFile)
	if _, err := os.Stat(projectFile); err == nil {
		v.SetConfigFile(projectFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, errs.Configf("cannot read %s: %w", projectFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Configf("cannot stat %s: %w", projectFile, err)
	}

	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Get returns the effective value of a dotted key for the project
// rooted at dir, after all layers are merged.
func Get(dir, key string) (string, error) {
	v, err := merged(dir)
	if err != nil {
		return "", err
	}
	if !v.IsSet(key) {
		return "", errs.Userf("%s is not set", key)
	}
	return v.GetString(key), nil
}

// Set writes key = value into the INI file at path, creating the file
// and its section as needed. The key's last dot separates section from
// name, so engine.sqlite.registry lives in [engine.sqlite].
func Set(path, key, value string) error {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return errs.Configf("invalid key %q; expected section.name", key)
	}
	section, name := key[:i], key[i+1:]

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.IOf("cannot create %s: %w", dir, err)
		}
	}
	f, err := ini.LooseLoad(path)
	if err != nil {
		return errs.Configf("cannot read %s: %w", path, err)
	}
	f.Section(section).Key(name).SetValue(value)
	if err := f.SaveTo(path); err != nil {
		return errs.IOf("cannot write %s: %w", path, err)
	}
	return nil
}

// UserFile returns the path of the user-level configuration file.
func UserFile() (string, error) {
	ucd, err := os.UserConfigDir()
	if err != nil {
		return "", errs.Configf("no user config directory: %w", err)
	}
	return filepath.Join(ucd, "strata", ConfFile), nil
}

// RequireUser returns the configured user identity or fails. Tagging
// and deployment record who acted; there is no anonymous fallback.
func (c *Config) RequireUser() (name, email string, err error) {
	if c.UserName == "" {
		return "", "", errs.Configf("user.name not set; add a [user] block to %s", ConfFile)
	}
	if c.UserEmail == "" {
		return "", "", errs.Configf("user.email not set; add a [user] block to %s", ConfFile)
	}
	return c.UserName, c.UserEmail, nil
}
