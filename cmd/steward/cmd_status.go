package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"steward/pkg/store"
)

// newStatusCmd creates the "steward status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session, plan and lock state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			sessionID, err := e.store.Current(ctx, store.SlotSession)
			if err != nil {
				return err
			}
			if sessionID == "" {
				fmt.Fprintln(w, "session: none")
			} else if sess, err := e.store.GetSession(ctx, sessionID); err == nil {
				fmt.Fprintf(w, "session: %s  %s/%s  tier %s  failures %d\n",
					sess.ID, sess.Status, sess.Phase, sess.ModelTier, sess.ConsecutiveFailures)
				if task, err := e.store.CurrentTask(ctx, sessionID); err == nil && task != nil {
					fmt.Fprintf(w, "task:    %s  %s  (%s)\n", task.ID, task.Status, task.Title)
				}
			}

			planID, err := e.store.Current(ctx, store.SlotPlan)
			if err != nil {
				return err
			}
			if planID == "" {
				fmt.Fprintln(w, "plan:    none")
				return nil
			}

			plan, err := e.store.GetPlan(ctx, planID)
			if err != nil {
				return err
			}
			pc, err := e.store.Completion(ctx, planID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "plan:    %s  %s  %d/%d tasks complete\n",
				plan.ID, plan.Status, pc.Completed, pc.Total)

			if lock, err := e.store.GetPlanLock(ctx, planID); err == nil && lock != nil {
				fmt.Fprintf(w, "lock:    held by %s, expires %s\n", lock.Holder, lock.ExpiresAt)
			}

			held, err := e.store.HeldFileLocks(ctx)
			if err != nil {
				return err
			}
			for path, taskID := range held {
				fmt.Fprintf(w, "claim:   %s -> %s\n", path, taskID)
			}
			return nil
		},
	}
}
