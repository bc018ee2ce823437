package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"steward/internal/appversion"
)

// newRootCmd creates the root steward command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "steward",
		Short:         "steward task orchestration core",
		Long:          "steward coordinates AI worker tasks: session lifecycle, slot-based\nscheduling, model-tier escalation, scope enforcement, plan locking and\nbaseline recovery points.",
		Version:       fmt.Sprintf("steward %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newSessionCmd(),
		newPlanCmd(),
		newTaskCmd(),
		newScheduleCmd(),
		newLockCmd(),
		newBaselineCmd(),
		newStatusCmd(),
		newClassifyCmd(),
		newEventsCmd(),
	)

	return cmd
}
