package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/strata/internal/config"
	"github.com/example/strata/internal/errs"
	"github.com/example/strata/internal/plan"
)

var (
	initURI    string
	initEngine string
	initTarget string
	initTopDir string
	initCmd    = &cobra.Command{
		Use:   "init <project>",
		Short: "Initialize a project",
		Long: `Create the plan file, configuration file, and script directories
for a new project in the current directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return errs.IOf("resolving working directory: %w", err)
			}
			return runInit(cwd, args[0])
		},
	}
)

func init() {
	initCmd.Flags().StringVar(&initURI, "uri", "", "Project URI, recorded in the plan")
	initCmd.Flags().StringVar(&initEngine, "engine", "sqlite", "Database engine")
	initCmd.Flags().StringVar(&initTarget, "target", "", "Default database target (core.uri)")
	initCmd.Flags().StringVar(&initTopDir, "top-dir", ".", "Directory holding the script directories")
}

// InitCmd returns the init command.
func InitCmd() *cobra.Command {
	return initCmd
}

func runInit(dir, project string) error {
	if err := plan.ValidateName(project); err != nil {
		return err
	}

	confPath := filepath.Join(dir, config.ConfFile)
	if _, err := os.Stat(confPath); err == nil {
		return errs.Userf("%s already exists; this is already a strata project", config.ConfFile)
	}
	planPath := filepath.Join(dir, config.DefaultPlanFile)
	if _, err := os.Stat(planPath); err == nil {
		return errs.Userf("%s already exists; this is already a strata project", config.DefaultPlanFile)
	}

	p, err := plan.New(planPath, project)
	if err != nil {
		return err
	}
	p.URI = initURI
	if err := p.WriteFile(); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", config.DefaultPlanFile)

	conf := fmt.Sprintf("[core]\nengine = %s\n", initEngine)
	if initTopDir != "." {
		conf += fmt.Sprintf("top_dir = %s\n", initTopDir)
	}
	if initTarget != "" {
		conf += fmt.Sprintf("uri = %s\n", initTarget)
	}
	if err := os.WriteFile(confPath, []byte(conf), 0o644); err != nil {
		return errs.IOf("cannot write %s: %w", config.ConfFile, err)
	}
	fmt.Printf("Created %s\n", config.ConfFile)

	top := filepath.Join(dir, initTopDir)
	for _, sub := range []string{"deploy", "revert", "verify"} {
		scriptDir := filepath.Join(top, sub)
		if err := os.MkdirAll(scriptDir, 0o755); err != nil {
			return errs.IOf("cannot create %s: %w", scriptDir, err)
		}
		fmt.Printf("Created %s%c\n", filepath.Join(initTopDir, sub), os.PathSeparator)
	}
	return nil
}
