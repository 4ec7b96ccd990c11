package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statusShowChanges bool
	statusShowTags    bool
	statusCmd         = &cobra.Command{
		Use:   "status [target]",
		Short: "Show the deployment status of a database",
		Long: `Compare the registry against the plan: report the most recently
deployed change and list any plan changes not yet deployed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) == 1 {
				targetName = args[0]
			}
			return runStatus(cmd.Context(), targetName)
		},
	}
)

func init() {
	statusCmd.Flags().BoolVar(&statusShowChanges, "show-changes", false, "List all deployed changes")
	statusCmd.Flags().BoolVar(&statusShowTags, "show-tags", false, "List tags of deployed changes")
}

// StatusCmd returns the status command.
func StatusCmd() *cobra.Command {
	return statusCmd
}

func runStatus(ctx context.Context, targetName string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	eng, tgt, err := proj.openEngine(targetName, false)
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Printf("# On database %s\n", tgt.URI)
	fmt.Printf("# Project:  %s\n", proj.Plan.Project)

	state, err := eng.CurrentState(ctx, "")
	if err != nil {
		return err
	}
	if state == nil {
		color.Yellow("No changes deployed")
		return nil
	}

	fmt.Printf("# Change:   %s\n", state.ChangeID)
	fmt.Printf("# Name:     %s\n", state.Change)
	if len(state.Tags) > 0 {
		label := "Tag"
		if len(state.Tags) > 1 {
			label = "Tags"
		}
		fmt.Printf("# %-8s %s\n", label+":", strings.Join(state.Tags, ", "))
	}
	fmt.Printf("# Deployed: %s\n", state.CommittedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("# By:       %s <%s>\n", state.CommitterName, state.CommitterEmail)
	fmt.Println("#")

	if statusShowChanges || statusShowTags {
		deployed, err := eng.DeployedChanges(ctx)
		if err != nil {
			return err
		}
		if statusShowChanges {
			fmt.Printf("# Changes (%d):\n", len(deployed))
			for _, id := range deployed {
				if c := proj.Plan.GetChangeByID(id); c != nil {
					fmt.Printf("#   %s\n", c.NameWithTags())
				} else {
					fmt.Printf("#   %s\n", id)
				}
			}
			fmt.Println("#")
		}
		if statusShowTags {
			var tags []string
			for _, id := range deployed {
				if c := proj.Plan.GetChangeByID(id); c != nil {
					for _, tag := range c.Tags {
						tags = append(tags, "@"+tag)
					}
				}
			}
			fmt.Printf("# Tags (%d):\n", len(tags))
			for _, tag := range tags {
				fmt.Printf("#   %s\n", tag)
			}
			fmt.Println("#")
		}
	}

	deployedChange := proj.Plan.GetChangeByID(state.ChangeID)
	if deployedChange == nil {
		color.Red("Cannot find this change in %s", proj.Plan.File)
		fmt.Println("Make sure you are connected to the right database, or check out a branch that carries this change.")
		return nil
	}

	undeployed, err := proj.Plan.ChangesSince(state.ChangeID)
	if err != nil {
		return err
	}
	if len(undeployed) == 0 {
		color.Green("Nothing to deploy (up-to-date)")
		return nil
	}
	color.Yellow("Undeployed changes:")
	for _, c := range undeployed {
		fmt.Printf("  * %s\n", c.NameWithTags())
	}
	return nil
}
