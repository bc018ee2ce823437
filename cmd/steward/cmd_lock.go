package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"steward/pkg/planlock"
	"steward/pkg/worktree"
)

// newLockCmd creates the "steward lock" command group.
func newLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Plan locks and isolated worktrees",
		Long: "A plan lock grants exclusive execution rights over a plan. When the\n" +
			"lock is held elsewhere, `lock isolate` provisions a git worktree so\n" +
			"the second plan can proceed without touching the primary checkout;\n" +
			"`lock merge` lands the isolated branch back on main.",
	}
	cmd.AddCommand(newLockAcquireCmd(), newLockReleaseCmd(), newLockStatusCmd(),
		newLockHeartbeatCmd(), newLockIsolateCmd(), newLockMergeCmd())
	return cmd
}

// lockManager builds the planlock Manager from the loaded config.
func lockManager(e *env) *planlock.Manager {
	return planlock.New(e.store, e.cfg.LockExpiry.Std(), e.cfg.StaleHeartbeat.Std())
}

func newLockAcquireCmd() *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:   "acquire <plan>",
		Short: "Acquire exclusive execution rights over a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			planID, err := resolvePlanID(cmd, e, args[0])
			if err != nil {
				return err
			}
			if holder == "" {
				holder = defaultHolder(cmd, e)
			}

			lock, err := lockManager(e).Acquire(cmd.Context(), planID, holder)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s locked by %s until %s\n",
				lock.PlanID, lock.Holder, lock.ExpiresAt)
			return nil
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "lock holder (default: current session or host:pid)")

	return cmd
}

func newLockReleaseCmd() *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:   "release <plan>",
		Short: "Release a held plan lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			planID, err := resolvePlanID(cmd, e, args[0])
			if err != nil {
				return err
			}
			if holder == "" {
				holder = defaultHolder(cmd, e)
			}

			if err := lockManager(e).Release(cmd.Context(), planID, holder); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s unlocked\n", planID)
			return nil
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "lock holder (default: current session or host:pid)")

	return cmd
}

func newLockStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <plan>",
		Short: "Show who holds a plan's lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			planID, err := resolvePlanID(cmd, e, args[0])
			if err != nil {
				return err
			}

			lock, err := e.store.GetPlanLock(cmd.Context(), planID)
			if err != nil {
				return err
			}
			if lock == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "plan %s is unlocked\n", planID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s locked by %s (pid %d on %s), expires %s\n",
				lock.PlanID, lock.Holder, lock.PID, lock.Host, lock.ExpiresAt)
			return nil
		},
	}
}

func newLockHeartbeatCmd() *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:   "heartbeat <plan>",
		Short: "Refresh a held lock's heartbeat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			planID, err := resolvePlanID(cmd, e, args[0])
			if err != nil {
				return err
			}
			if holder == "" {
				holder = defaultHolder(cmd, e)
			}
			return lockManager(e).Heartbeat(cmd.Context(), planID, holder)
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "lock holder (default: current session or host:pid)")

	return cmd
}

func newLockIsolateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "isolate <plan>",
		Short: "Provision an isolated worktree for a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			planID, err := resolvePlanID(cmd, e, args[0])
			if err != nil {
				return err
			}
			plan, err := e.store.GetPlan(ctx, planID)
			if err != nil {
				return err
			}

			mgr := worktree.NewManager(e.paths.RepoRoot, &worktree.ExecGitRunner{}, e.store)
			wt, err := mgr.Provision(ctx, planID, plan.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "worktree %s on branch %s\n", wt.Path, wt.Branch)
			return nil
		},
	}
}

// lockMergeConfig holds configuration for lock merge.
type lockMergeConfig struct {
	resolution string
}

func newLockMergeCmd() *cobra.Command {
	var cfg lockMergeConfig

	cmd := &cobra.Command{
		Use:   "merge <plan>",
		Short: "Land an isolated worktree's branch back on main",
		Long: "Rebases the plan's worktree branch onto main and fast-forwards main\n" +
			"to it, preserving commit SHAs. A conflict aborts the rebase, keeps\n" +
			"the worktree untouched and enumerates every conflicting file.\n" +
			"--resolution handoff pushes the branch for external review instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			planID, err := resolvePlanID(cmd, e, args[0])
			if err != nil {
				return err
			}
			wt, err := e.store.ActiveWorktree(ctx, planID)
			if err != nil {
				return err
			}
			if wt == nil {
				return fmt.Errorf("plan %s has no active worktree", planID)
			}

			git := &worktree.ExecGitRunner{}
			merger := worktree.NewMerger(git, e.store)

			switch worktree.Resolution(cfg.resolution) {
			case worktree.ResolveMerge:
				res, err := merger.Merge(ctx, e.paths.RepoRoot, planID, *wt)
				if err != nil {
					return err
				}
				if err := e.store.CompleteWorktree(ctx, wt.ID, true); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "merged %s at %s\n", wt.Branch, res.CommitSHA)
				return nil
			case worktree.ResolveHandoff:
				if err := merger.Handoff(ctx, planID, *wt); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pushed %s for review\n", wt.Branch)
				return nil
			case worktree.ResolveDefer:
				fmt.Fprintf(cmd.OutOrStdout(), "worktree %s left in place\n", wt.Path)
				return nil
			default:
				return fmt.Errorf("unknown resolution %q (merge, handoff, defer)", cfg.resolution)
			}
		},
	}

	cmd.Flags().StringVar(&cfg.resolution, "resolution", string(worktree.ResolveMerge),
		"conflict posture: merge, handoff or defer")

	return cmd
}
