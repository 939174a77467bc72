package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Open330/open-agent-contribution-sub003/internal/agent"
	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/estimate"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
	"github.com/Open330/open-agent-contribution-sub003/internal/plan"
	"github.com/Open330/open-agent-contribution-sub003/internal/sandbox"
	"github.com/Open330/open-agent-contribution-sub003/internal/task"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Estimate task costs and build an execution plan",
	Long: `Plan reads a task file, estimates each task's token cost against the
repository, and selects what fits within the configured budget. Nothing
is executed; the plan is printed for review.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringP("tasks", "t", "tasks.yaml", "task file produced by discovery")
	planCmd.Flags().Float64P("budget", "b", 0, "total token budget (overrides config)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if budget, _ := cmd.Flags().GetFloat64("budget"); budget > 0 {
		cfg.Budget.TotalTokens = budget
	}

	taskFile, _ := cmd.Flags().GetString("tasks")
	p, _, err := buildPlan(cfg, taskFile)
	if err != nil {
		return err
	}

	fmt.Print(renderPlan(p))
	return nil
}

// buildPlan runs estimation and planning for the tasks in taskFile
// against the repository containing the working directory.
func buildPlan(cfg *config.Config, taskFile string) (*plan.ExecutionPlan, []task.Task, error) {
	tasks, err := task.LoadFile(taskFile)
	if err != nil {
		return nil, nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	repoRoot, err := sandbox.FindGitRoot(cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("not inside a git repository: %w", err)
	}

	registry, err := agent.NewRegistry(cfg.Backends, cfg.Execution, logging.NopLogger())
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.Backends.Enabled) == 0 {
		return nil, nil, fmt.Errorf("no backends enabled")
	}
	backend := cfg.Backends.Enabled[0]

	estimator := estimate.New(cfg.Estimator, registry.Profiles(), logging.NopLogger())
	estimates := estimator.EstimateAll(context.Background(), repoRoot, tasks, backend)

	planner := plan.NewPlanner(cfg.Budget, logging.NopLogger())
	p := planner.Plan(tasks, estimates, cfg.Budget.TotalTokens)
	return p, tasks, nil
}
