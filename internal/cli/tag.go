package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	tagNote string
	tagCmd  = &cobra.Command{
		Use:   "tag [name] [change]",
		Short: "Tag a change, or list tags",
		Long: `Apply a tag to the named change, or to the latest change when no
change is given. With no arguments, list the tags in the plan.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTagList()
			}
			if !cmd.Flags().Changed("note") {
				tagNote = promptNote("tag " + args[0])
			}
			changeName := ""
			if len(args) == 2 {
				changeName = args[1]
			}
			return runTag(args[0], changeName)
		},
	}
)

func init() {
	tagCmd.Flags().StringVarP(&tagNote, "note", "n", "", "Note describing the tag")
}

// TagCmd returns the tag command.
func TagCmd() *cobra.Command {
	return tagCmd
}

func runTag(name, changeName string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	plannerName, plannerEmail, err := proj.Cfg.RequireUser()
	if err != nil {
		return err
	}
	t, err := proj.Plan.CreateTag(name, changeName, tagNote, plannerName, plannerEmail)
	if err != nil {
		return err
	}
	if err := proj.Plan.WriteFile(); err != nil {
		return err
	}
	fmt.Printf("Tagged %q with @%s in %s\n", t.Change.Name, t.Name, filepath.Base(proj.Plan.File))
	return nil
}

func runTagList() error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	for _, t := range proj.Plan.Tags {
		fmt.Printf("@%s\n", t.Name)
	}
	return nil
}
