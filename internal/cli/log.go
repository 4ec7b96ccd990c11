package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/strata/internal/engine"
)

var (
	logEvents    []string
	logChange    string
	logProject   string
	logCommitter string
	logPlanner   string
	logLimit     int
	logSkip      int
	logReverse   bool
	logCmd       = &cobra.Command{
		Use:   "log [target]",
		Short: "Show the deployment history of a database",
		Long: `Print deploy, revert, and fail events from the registry, newest
first. String filters are substring matches.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) == 1 {
				targetName = args[0]
			}
			return runLog(cmd.Context(), targetName)
		},
	}
)

func init() {
	logCmd.Flags().StringArrayVar(&logEvents, "event", nil, "Only this event type: deploy, revert, or fail (repeatable)")
	logCmd.Flags().StringVar(&logChange, "change", "", "Only events for matching change names")
	logCmd.Flags().StringVar(&logProject, "project", "", "Only events for matching projects")
	logCmd.Flags().StringVar(&logCommitter, "committer", "", "Only events by matching committers")
	logCmd.Flags().StringVar(&logPlanner, "planner", "", "Only events planned by matching planners")
	logCmd.Flags().IntVarP(&logLimit, "max-count", "m", 0, "Maximum number of events (0 for all)")
	logCmd.Flags().IntVar(&logSkip, "skip", 0, "Skip this many events")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "Oldest events first")
}

// LogCmd returns the log command.
func LogCmd() *cobra.Command {
	return logCmd
}

func runLog(ctx context.Context, targetName string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	eng, tgt, err := proj.openEngine(targetName, false)
	if err != nil {
		return err
	}
	defer eng.Close()

	events, err := eng.SearchEvents(ctx, engine.EventFilter{
		Event:      logEvents,
		Change:     logChange,
		Project:    logProject,
		Committer:  logCommitter,
		Planner:    logPlanner,
		Limit:      logLimit,
		Offset:     logSkip,
		Descending: !logReverse,
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No events found for %s\n", tgt.URI)
		return nil
	}

	fmt.Printf("On database %s\n", tgt.URI)
	for _, ev := range events {
		printEvent(ev)
	}
	return nil
}

func printEvent(ev engine.Event) {
	header := color.New(color.FgYellow)
	switch ev.Event {
	case "revert":
		header = color.New(color.FgBlue)
	case "fail":
		header = color.New(color.FgRed)
	}
	header.Printf("%s %s", capitalize(ev.Event), ev.ChangeID)
	if len(ev.Tags) > 0 {
		header.Printf(" (%s)", strings.Join(ev.Tags, ", "))
	}
	fmt.Println()
	fmt.Printf("Name:      %s\n", ev.Change)
	if len(ev.Requires) > 0 {
		fmt.Printf("Requires:  %s\n", strings.Join(ev.Requires, ", "))
	}
	if len(ev.Conflicts) > 0 {
		fmt.Printf("Conflicts: %s\n", strings.Join(ev.Conflicts, ", "))
	}
	fmt.Printf("Committer: %s <%s>\n", ev.CommitterName, ev.CommitterEmail)
	fmt.Printf("Date:      %s\n", ev.CommittedAt.Format("2006-01-02 15:04:05 MST"))
	if ev.Note != "" {
		fmt.Println()
		for _, line := range strings.Split(ev.Note, "\n") {
			fmt.Printf("    %s\n", line)
		}
	}
	fmt.Println()
}
