package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"steward/pkg/policy"
	"steward/pkg/protocol"
	"steward/pkg/store"
	"steward/pkg/validate"
)

// newTaskCmd creates the "steward task" command group.
func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and inspect tasks",
	}
	cmd.AddCommand(newTaskCreateCmd(), newTaskShowCmd(), newTaskListCmd())
	return cmd
}

// taskCreateConfig holds configuration for task create.
type taskCreateConfig struct {
	plan     string
	sprint   int
	taskType string
	priority int
	deps     []string
	parallel bool
	group    string

	// scope boundary
	allow        []string
	globs        []string
	forbidFiles  []string
	forbidDirs   []string
	maxFiles     int
	unrestricted bool

	// complexity attributes for tier assignment
	files   int
	lines   int
	newDeps int
	risks   []string
}

func newTaskCreateCmd() *cobra.Command {
	var cfg taskCreateConfig

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task, scoring its complexity into a model tier",
		Long: "Creates a pending task under a plan. The --files/--lines/--new-deps\n" +
			"and --risk attributes feed the complexity score that assigns the\n" +
			"task's model tier; documentation and rename tasks pin to the simple\n" +
			"tier, security audits and architecture decisions pin to complex.",
		Args: cobra.ExactArgs(1),
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

			taskType, err := validate.TaskType(cfg.taskType)
			if err != nil {
				return err
			}

			attrs := policy.Attributes{
				Files:   cfg.files,
				Lines:   cfg.lines,
				NewDeps: cfg.newDeps,
				Type:    taskType,
				Risks:   riskFlags(cfg.risks),
			}
			tier := policy.InitialTier(attrs)

			task, err := e.store.CreateTask(ctx, store.TaskParams{
				PlanID:    planID,
				Sprint:    cfg.sprint,
				Title:     args[0],
				Type:      taskType,
				Tier:      tier,
				Priority:  cfg.priority,
				DependsOn: cfg.deps,
				Parallel:  cfg.parallel,
				GroupID:   cfg.group,
				Scope: protocol.Scope{
					AllowedFiles:   cfg.allow,
					AllowedGlobs:   cfg.globs,
					ForbiddenFiles: cfg.forbidFiles,
					ForbiddenDirs:  cfg.forbidDirs,
					MaxFiles:       cfg.maxFiles,
					Unrestricted:   cfg.unrestricted,
				},
			})
			if err != nil {
				return err
			}

			if err := e.store.LogEvent(ctx, "", "task_created", "task",
				fmt.Sprintf("task %s (%s) scored %d, tier %s", task.ID, task.Type, policy.Score(attrs), tier), ""); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.plan, "plan", "", "owning plan id or name (default: current plan)")
	cmd.Flags().IntVar(&cfg.sprint, "sprint", 0, "sprint number")
	cmd.Flags().StringVar(&cfg.taskType, "type", string(protocol.TypeFeature), "task type")
	cmd.Flags().IntVar(&cfg.priority, "priority", 0, "admission priority (higher first)")
	cmd.Flags().StringSliceVar(&cfg.deps, "depends-on", nil, "task ids that must complete first")
	cmd.Flags().BoolVar(&cfg.parallel, "parallel", true, "eligible to share slots with other tasks")
	cmd.Flags().StringVar(&cfg.group, "group", "", "parallel group id")

	cmd.Flags().StringSliceVar(&cfg.allow, "allow", nil, "files the task may modify")
	cmd.Flags().StringSliceVar(&cfg.globs, "glob", nil, "glob patterns the task may modify")
	cmd.Flags().StringSliceVar(&cfg.forbidFiles, "forbid-file", nil, "files the task must not touch")
	cmd.Flags().StringSliceVar(&cfg.forbidDirs, "forbid-dir", nil, "directories the task must not touch")
	cmd.Flags().IntVar(&cfg.maxFiles, "max-files", 0, "maximum files the task may modify (0 = unlimited)")
	cmd.Flags().BoolVar(&cfg.unrestricted, "unrestricted", false, "explicitly disable the scope boundary")

	cmd.Flags().IntVar(&cfg.files, "files", 1, "estimated files touched")
	cmd.Flags().IntVar(&cfg.lines, "lines", 0, "estimated lines changed")
	cmd.Flags().IntVar(&cfg.newDeps, "new-deps", 0, "new dependencies introduced")
	cmd.Flags().StringSliceVar(&cfg.risks, "risk", nil, "risk flags (security_sensitive, external_integration, breaking_change)")

	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task's state, scope and attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			task, err := e.store.GetTask(ctx, args[0])
			if err != nil {
				return err
			}
			attempts, err := e.store.ListAttempts(ctx, task.ID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "task:      %s\n", task.ID)
			fmt.Fprintf(w, "title:     %s\n", task.Title)
			fmt.Fprintf(w, "plan:      %s\n", task.PlanID)
			fmt.Fprintf(w, "type:      %s\n", task.Type)
			fmt.Fprintf(w, "status:    %s\n", task.Status)
			fmt.Fprintf(w, "tier:      %s\n", task.Tier)
			fmt.Fprintf(w, "priority:  %d\n", task.Priority)
			fmt.Fprintf(w, "parallel:  %v\n", task.Parallel)
			if len(task.DependsOn) > 0 {
				fmt.Fprintf(w, "deps:      %s\n", strings.Join(task.DependsOn, ", "))
			}
			if len(task.Scope.AllowedFiles) > 0 || len(task.Scope.AllowedGlobs) > 0 {
				fmt.Fprintf(w, "scope:     %s\n", strings.Join(append(task.Scope.AllowedFiles, task.Scope.AllowedGlobs...), ", "))
			}
			for _, a := range attempts {
				fmt.Fprintf(w, "attempt %d: %s (%s) %s\n", a.Attempt, a.Model, a.ModelTier, a.Outcome)
			}
			return nil
		},
	}
}

// taskListConfig holds configuration for task list.
type taskListConfig struct {
	plan string
}

func newTaskListCmd() *cobra.Command {
	var cfg taskListConfig

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a plan's tasks in admission order",
		Args:  cobra.NoArgs,
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

			tasks, err := e.store.ListTasks(ctx, planID)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
				return nil
			}

			w := cmd.OutOrStdout()
			for _, t := range tasks {
				fmt.Fprintf(w, "%-32s %-12s %-10s p%d  %s\n", t.ID, t.Status, t.Tier, t.Priority, t.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.plan, "plan", "", "plan id or name (default: current plan)")

	return cmd
}

// resolvePlanID accepts a plan id, a plan name, or empty (current plan).
func resolvePlanID(cmd *cobra.Command, e *env, ref string) (string, error) {
	ctx := cmd.Context()

	if ref == "" {
		id, err := e.store.Current(ctx, store.SlotPlan)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", fmt.Errorf("no current plan; pass --plan")
		}
		return id, nil
	}

	if err := protocol.ValidateID(ref, "plan"); err == nil {
		return ref, nil
	}
	plan, err := e.store.GetPlanByName(ctx, ref)
	if err != nil {
		return "", err
	}
	return plan.ID, nil
}

// riskFlags converts raw --risk values into typed flags.
func riskFlags(raw []string) []policy.RiskFlag {
	flags := make([]policy.RiskFlag, 0, len(raw))
	for _, r := range raw {
		flags = append(flags, policy.RiskFlag(strings.TrimSpace(r)))
	}
	return flags
}
