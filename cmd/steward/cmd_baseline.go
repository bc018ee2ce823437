package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"steward/pkg/baseline"
	"steward/pkg/worktree"
)

// newBaselineCmd creates the "steward baseline" command group.
func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Tagged recovery points and rollback",
	}
	cmd.AddCommand(newBaselineCreateCmd(), newBaselineListCmd(),
		newBaselineRollbackCmd(), newBaselineDiffCmd(), newBaselinePruneCmd())
	return cmd
}

// baselineManager builds the baseline Manager over the real git binary.
func baselineManager(e *env) *baseline.Manager {
	return baseline.NewManager(e.paths.RepoRoot, &worktree.ExecGitRunner{}, e.store)
}

func newBaselineCreateCmd() *cobra.Command {
	var meta string

	cmd := &cobra.Command{
		Use:   "create <label>",
		Short: "Tag the current HEAD as a recovery point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			b, err := baselineManager(e).Create(cmd.Context(), args[0], meta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", b.ID, b.CommitSHA, b.Label)
			return nil
		},
	}

	cmd.Flags().StringVar(&meta, "meta", "", "freeform metadata stored with the baseline")

	return cmd
}

func newBaselineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List baselines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			baselines, err := e.store.ListBaselines(cmd.Context())
			if err != nil {
				return err
			}
			if len(baselines) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no baselines")
				return nil
			}
			for _, b := range baselines {
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-12.12s %-20s %s\n", b.ID, b.CommitSHA, b.CreatedAt, b.Label)
			}
			return nil
		},
	}
}

func newBaselineRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <baseline-id>",
		Short: "Restore the working tree to a baseline",
		Long: "Resets the repository to the baseline's commit. The pre-rollback\n" +
			"state is captured as a safety baseline first, so the rollback can\n" +
			"itself be rolled back.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			restored, safety, err := baselineManager(e).Rollback(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s (%s)\nsafety point %s\n",
				restored.ID, restored.CommitSHA, safety.ID)
			return nil
		},
	}
}

func newBaselineDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <baseline-id>",
		Short: "Show what changed since a baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			diff, err := baselineManager(e).Diff(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

func newBaselinePruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old baselines beyond the retention count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			n := keep
			if n == 0 {
				n = e.cfg.BaselineKeep
			}
			removed, err := baselineManager(e).Prune(cmd.Context(), n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d baseline(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "baselines to retain (default: config baseline_keep)")

	return cmd
}
