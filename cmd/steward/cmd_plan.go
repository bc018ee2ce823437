package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"steward/pkg/store"
)

// newPlanCmd creates the "steward plan" command group.
func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage plans",
	}
	cmd.AddCommand(newPlanCreateCmd(), newPlanShowCmd(), newPlanUseCmd())
	return cmd
}

// planCreateConfig holds configuration for plan create.
type planCreateConfig struct {
	planType string
	parent   string
	use      bool
}

func newPlanCreateCmd() *cobra.Command {
	var cfg planCreateConfig

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			plan, err := e.store.CreatePlan(ctx, args[0], cfg.planType, cfg.parent)
			if err != nil {
				return err
			}
			if cfg.use {
				if err := e.store.SetCurrent(ctx, store.SlotPlan, plan.ID); err != nil {
					return err
				}
			}
			if err := e.store.LogEvent(ctx, "", "plan_created", "plan",
				fmt.Sprintf("plan %s (%s) created", plan.ID, plan.Name), ""); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), plan.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.planType, "type", "feature", "plan type")
	cmd.Flags().StringVar(&cfg.parent, "parent", "", "parent plan id")
	cmd.Flags().BoolVar(&cfg.use, "use", true, "make this the current plan")

	return cmd
}

func newPlanShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [plan]",
		Short: "Show a plan and its completion rate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			planID, err := resolvePlanID(cmd, e, ref)
			if err != nil {
				return err
			}

			plan, err := e.store.GetPlan(ctx, planID)
			if err != nil {
				return err
			}
			pc, err := e.store.Completion(ctx, planID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "plan:       %s\n", plan.ID)
			fmt.Fprintf(w, "name:       %s\n", plan.Name)
			fmt.Fprintf(w, "status:     %s\n", plan.Status)
			fmt.Fprintf(w, "tasks:      %d total, %d completed, %d failed\n", pc.Total, pc.Completed, pc.Failed)
			fmt.Fprintf(w, "completion: %.0f%%\n", pc.Rate*100)
			return nil
		},
	}
}

func newPlanUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <plan>",
		Short: "Set the current plan pointer",
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
			if err := e.store.SetCurrent(cmd.Context(), store.SlotPlan, planID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current plan: %s\n", planID)
			return nil
		},
	}
}
