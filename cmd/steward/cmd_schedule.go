package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"steward/pkg/policy"
	"steward/pkg/scheduler"
	"steward/pkg/worktree"
)

// scheduleConfig holds configuration for the schedule command.
type scheduleConfig struct {
	plan       string
	watch      bool
	worker     string
	workerArgs []string
	slots      int
}

// newScheduleCmd creates the "steward schedule" subcommand.
func newScheduleCmd() *cobra.Command {
	var cfg scheduleConfig

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run admission rounds over a plan's task queue",
		Long: "Evaluates the plan's pending tasks in priority order and dispatches\n" +
			"every task whose dependencies are complete, whose file claims do not\n" +
			"conflict with an active task, and for which a slot is free. With\n" +
			"--watch it then blocks on the results directory, admitting further\n" +
			"tasks as workers finish.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			planID, err := resolvePlanID(cmd, e, cfg.plan)
			if err != nil {
				return err
			}
			sessionID, err := resolveSessionID(cmd, e, nil)
			if err != nil {
				return err
			}

			slots := cfg.slots
			if slots == 0 {
				slots = e.cfg.MaxSlots
			}

			// Sweep workspace debris from a previous crash before admitting.
			worktree.NewManager(e.paths.RepoRoot, &worktree.ExecGitRunner{}, e.store).Prune(ctx)

			runner := &scheduler.ExecWorkerRunner{
				Command:    cfg.worker,
				Args:       cfg.workerArgs,
				ResultsDir: e.paths.ResultsDir,
				LogDir:     e.paths.LogDir,
			}
			sched := scheduler.New(e.store, policy.NewLadder(e.cfg), e.classifier, runner, slots)

			admitted, err := sched.Admit(ctx, planID, sessionID)
			if err != nil {
				return err
			}
			if len(admitted) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tasks admitted")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admitted: %s\n", strings.Join(admitted, ", "))
			}

			if !cfg.watch {
				return nil
			}

			defer runner.Shutdown()
			return sched.Watch(ctx, e.paths.ResultsDir, planID, sessionID)
		},
	}

	cmd.Flags().StringVar(&cfg.plan, "plan", "", "plan id or name (default: current plan)")
	cmd.Flags().BoolVar(&cfg.watch, "watch", false, "block and process worker completions")
	cmd.Flags().StringVar(&cfg.worker, "worker", "steward-worker", "worker executable")
	cmd.Flags().StringSliceVar(&cfg.workerArgs, "worker-arg", nil, "extra arguments for the worker")
	cmd.Flags().IntVar(&cfg.slots, "slots", 0, "override the configured slot count")

	return cmd
}
