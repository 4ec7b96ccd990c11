package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/config"
	"github.com/example/strata/internal/errs"
)

var (
	configUser bool
	configCmd  = &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get or set a configuration value",
		Long: `Read or write a dotted configuration key such as user.name or
core.engine. With a value the key is written to the project's
strata.conf, or to the user-level file with --user; without one the
merged effective value is printed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return runConfigSet(args[0], args[1])
			}
			return runConfigGet(args[0])
		},
	}
)

func init() {
	configCmd.Flags().BoolVar(&configUser, "user", false, "Write to the user-level file instead of the project's")
}

// ConfigCmd returns the config command.
func ConfigCmd() *cobra.Command {
	return configCmd
}

func runConfigGet(key string) error {
	dir, err := os.Getwd()
	if err != nil {
		return errs.IOf("resolving working directory: %w", err)
	}
	// Outside a project only the user-level file and environment apply.
	if root, err := findRoot(dir); err == nil {
		dir = root
	}
	value, err := config.Get(dir, key)
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(key, value string) error {
	var path string
	if configUser {
		userFile, err := config.UserFile()
		if err != nil {
			return err
		}
		path = userFile
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return errs.IOf("resolving working directory: %w", err)
		}
		root, err := findRoot(cwd)
		if err != nil {
			return err
		}
		path = filepath.Join(root, config.ConfFile)
	}
	return config.Set(path, key, value)
}
