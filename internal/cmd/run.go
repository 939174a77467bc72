package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Open330/open-agent-contribution-sub003/internal/agent"
	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/engine"
	"github.com/Open330/open-agent-contribution-sub003/internal/event"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
	"github.com/Open330/open-agent-contribution-sub003/internal/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan and execute tasks within the token budget",
	Long: `Run builds an execution plan from the task file, then executes every
selected task through the configured backends in isolated worktrees.
Completed branches are pushed so pull requests can be opened downstream.
Interrupting with Ctrl-C aborts the run: queued jobs never start and
running backends are terminated gracefully.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("tasks", "t", "tasks.yaml", "task file produced by discovery")
	runCmd.Flags().Float64P("budget", "b", 0, "total token budget (overrides config)")
	runCmd.Flags().IntP("concurrency", "n", 0, "worker pool width (overrides config)")
	runCmd.Flags().Bool("no-push", false, "skip pushing completed branches")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if budget, _ := cmd.Flags().GetFloat64("budget"); budget > 0 {
		cfg.Budget.TotalTokens = budget
	}
	if concurrency, _ := cmd.Flags().GetInt("concurrency"); concurrency > 0 {
		cfg.Execution.Concurrency = concurrency
	}
	noPush, _ := cmd.Flags().GetBool("no-push")

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return err
		}
	}
	defer logger.Close()

	taskFile, _ := cmd.Flags().GetString("tasks")
	p, _, err := buildPlan(cfg, taskFile)
	if err != nil {
		return err
	}
	fmt.Print(renderPlan(p))
	if len(p.SelectedTasks) == 0 {
		fmt.Println(mutedStyle.Render("Nothing to execute."))
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	manager, err := sandbox.New(cwd, cfg.Sandbox, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	registry, err := agent.NewRegistry(cfg.Backends, cfg.Execution, logger)
	if err != nil {
		return err
	}

	bus := event.NewBus()
	bus.SubscribeAll(func(ev event.Event) {
		logger.Debug("event", "type", ev.EventType())
	})
	bus.Subscribe("job.completed", func(ev event.Event) {
		if completed, ok := ev.(event.JobCompletedEvent); ok {
			fmt.Println(successStyle.Render("✓ ") + completed.TaskID + mutedStyle.Render(" → "+completed.Branch))
		}
	})
	bus.Subscribe("job.failed", func(ev event.Event) {
		if failed, ok := ev.(event.JobFailedEvent); ok && failed.Final {
			fmt.Println(errorStyle.Render("✗ ") + failed.TaskID + mutedStyle.Render(" "+failed.Err))
		}
	})

	bus.Publish(event.NewPlanBuiltEvent(p.TotalBudget, p.ReserveTokens, len(p.SelectedTasks), len(p.DeferredTasks)))

	var completer engine.Completer
	if !noPush {
		completer = &pushCompleter{manager: manager, logger: logger}
	}

	eng := engine.New(cfg, registry, manager, bus, completer, logger)

	// Ctrl-C aborts: queued jobs are drained, running backends get
	// SIGTERM and a grace period before SIGKILL.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Println(warnStyle.Render("\nAborting run..."))
			eng.Abort()
		}
	}()

	summary, err := eng.Run(context.Background(), p)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(renderSummary(summary))
	return nil
}

// pushCompleter commits any uncommitted backend changes and pushes the
// job's branch before the sandbox is destroyed.
type pushCompleter struct {
	manager *sandbox.Manager
	logger  *logging.Logger
}

func (c *pushCompleter) OnJobComplete(ctx context.Context, result engine.ExecutionResult, sb *sandbox.Context) error {
	dirty, err := c.manager.HasUncommittedChanges(sb.Path())
	if err != nil {
		return err
	}
	if dirty {
		if err := c.manager.CommitAll(sb.Path(), result.TaskID+": automated contribution"); err != nil {
			return err
		}
	}
	if err := c.manager.Push(sb.Path(), sb.Branch()); err != nil {
		return err
	}
	c.logger.Info("branch pushed", "task_id", result.TaskID, "branch", sb.Branch())
	return nil
}
