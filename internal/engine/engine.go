// Package engine runs planned tasks through a bounded worker pool. Each
// job walks the state machine queued → running → {completed | failed |
// aborted}; transient failures retry on a fresh sandbox up to the
// configured ceiling, every transition is published to the event bus.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Open330/open-agent-contribution-sub003/internal/agent"
	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/errors"
	"github.com/Open330/open-agent-contribution-sub003/internal/event"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
	"github.com/Open330/open-agent-contribution-sub003/internal/plan"
	"github.com/Open330/open-agent-contribution-sub003/internal/sandbox"
)

// Completer receives each successful job's result together with its
// still-live sandbox, so the branch can be pushed and a pull request
// opened before the worktree is destroyed.
type Completer interface {
	OnJobComplete(ctx context.Context, result ExecutionResult, sb *sandbox.Context) error
}

// runningAttempt tracks what Abort needs to reach a live attempt.
type runningAttempt struct {
	provider    agent.Provider
	executionID string
}

// Engine executes a plan's selected tasks.
type Engine struct {
	cfg       *config.Config
	registry  *agent.Registry
	sandboxes *sandbox.Manager
	bus       *event.Bus
	completer Completer
	logger    *logging.Logger

	mu        sync.Mutex
	jobs      []*Job
	next      int
	aborted   bool
	rrIndex   int
	running   map[string]runningAttempt
	runCancel context.CancelFunc
}

// New creates an Engine. The completer may be nil when no downstream
// consumer wants pre-cleanup access to sandboxes.
func New(cfg *config.Config, registry *agent.Registry, sandboxes *sandbox.Manager, bus *event.Bus, completer Completer, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		cfg:       cfg,
		registry:  registry,
		sandboxes: sandboxes,
		bus:       bus,
		completer: completer,
		logger:    logger,
		running:   make(map[string]runningAttempt),
	}
}

// Run executes every selected task in the plan, in plan order, through
// a worker pool of the configured width. It blocks until all jobs reach
// a terminal state and returns the run summary.
func (e *Engine) Run(ctx context.Context, p *plan.ExecutionPlan) (*Summary, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.jobs != nil {
		e.mu.Unlock()
		return nil, errors.New("engine already ran; create a new engine per run")
	}
	e.runCancel = cancel
	e.jobs = make([]*Job, 0, len(p.SelectedTasks))
	for _, selected := range p.SelectedTasks {
		job := &Job{
			ID:    uuid.NewString()[:8],
			Task:  selected.Task,
			state: StateQueued,
		}
		e.jobs = append(e.jobs, job)
	}
	jobs := e.jobs
	e.mu.Unlock()

	for _, job := range jobs {
		e.bus.Publish(event.NewJobQueuedEvent(job.ID, job.Task.ID, 1))
	}

	workers := e.cfg.Execution.Concurrency
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job := e.nextJob()
				if job == nil {
					return
				}
				e.runJob(ctx, job)
			}
		}()
	}
	wg.Wait()

	summary := e.summarize(time.Since(start))
	e.bus.Publish(event.NewRunFinishedEvent(summary.Completed, summary.Failed, summary.Aborted))
	e.logger.Info("run finished",
		"total", summary.Total,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"aborted", summary.Aborted,
		"tokens_used", summary.TokensUsed)
	return summary, nil
}

// Abort cancels the run: every still-queued job goes straight to
// aborted without starting, and every running attempt is forwarded a
// cooperative termination request.
func (e *Engine) Abort() {
	e.mu.Lock()
	e.aborted = true
	cancel := e.runCancel

	var drained []*Job
	for _, job := range e.jobs {
		if job.state == StateQueued {
			job.state = StateAborted
			job.result = &ExecutionResult{
				JobID:    job.ID,
				TaskID:   job.Task.ID,
				State:    StateAborted,
				Attempts: job.attempts,
				Err: errors.NewExecutionError("run aborted before job started", errors.ErrExecutionAborted).
					WithJobID(job.ID).
					WithTaskID(job.Task.ID),
			}
			drained = append(drained, job)
		}
	}
	running := make(map[string]runningAttempt, len(e.running))
	for id, attempt := range e.running {
		running[id] = attempt
	}
	e.mu.Unlock()

	for _, job := range drained {
		e.bus.Publish(event.NewJobAbortedEvent(job.ID, job.Task.ID, job.Attempts()))
	}
	for jobID, attempt := range running {
		if err := attempt.provider.Abort(attempt.executionID); err != nil {
			e.logger.Warn("abort forwarding failed", "job_id", jobID, "error", err)
		}
	}
	// Cancel the run context last so attempts between provisioning and
	// registration still observe the abort.
	if cancel != nil {
		cancel()
	}
}

// Jobs returns the run's jobs in plan order.
func (e *Engine) Jobs() []*Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Job, len(e.jobs))
	copy(out, e.jobs)
	return out
}

// nextJob claims the next queued job in plan order, or nil when the
// queue is drained or the run is aborted.
func (e *Engine) nextJob() *Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.next < len(e.jobs) && !e.aborted {
		job := e.jobs[e.next]
		e.next++
		if job.state == StateQueued {
			// Claiming the job moves it out of queued so a concurrent
			// Abort no longer drains it; the worker owns it from here.
			job.state = StateRunning
			return job
		}
	}
	return nil
}

// runJob drives one job through up to 1 + MaxRetries attempts. Each
// attempt gets a fresh sandbox on its own branch.
func (e *Engine) runJob(ctx context.Context, job *Job) {
	maxAttempts := 1 + e.cfg.Execution.MaxRetries
	logger := e.logger.WithJob(job.ID).WithTask(job.Task.ID)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if e.isAborted() || ctx.Err() != nil {
			e.finishAborted(job)
			return
		}

		e.mu.Lock()
		job.attempts = attempt
		e.mu.Unlock()

		err := e.runAttempt(ctx, job, attempt, logger)
		if err == nil {
			return
		}
		if errors.Is(err, errors.ErrExecutionAborted) || e.isAborted() {
			e.finishAborted(job)
			return
		}
		if errors.IsTransient(err) && attempt < maxAttempts {
			logger.Warn("attempt failed, retrying", "attempt", attempt, "error", err)
			e.bus.Publish(event.NewJobFailedEvent(job.ID, job.Task.ID, attempt, err.Error(), false))
			continue
		}

		e.finishFailed(job, attempt, err)
		return
	}
}

// runAttempt provisions a sandbox, runs the backend in it, and tears the
// sandbox down. A nil return means the job completed.
func (e *Engine) runAttempt(ctx context.Context, job *Job, attempt int, logger *logging.Logger) error {
	provider, err := e.pickProvider(ctx)
	if err != nil {
		return err
	}

	branch := sandbox.BranchName(e.cfg.Sandbox.BranchPrefix, job.ID, job.Task.Title, attempt)
	sb, err := e.sandboxes.Create(ctx, branch)
	if err != nil {
		return errors.NewExecutionError("sandbox provisioning failed", err).
			WithJobID(job.ID).
			WithTaskID(job.Task.ID).
			WithAttempt(attempt).
			WithTransient(errors.IsTransient(err))
	}
	cleanup := func() {
		// Cleanup failures never change the job's recorded outcome.
		if cerr := sb.Cleanup(context.Background()); cerr != nil {
			logger.Warn("sandbox cleanup failed", "branch", branch, "error", cerr)
		}
	}

	e.mu.Lock()
	job.state = StateRunning
	job.branch = branch
	job.provider = string(provider.ID())
	e.mu.Unlock()

	e.bus.Publish(event.NewJobStartedEvent(job.ID, job.Task.ID, attempt, string(provider.ID()), sb.Path(), branch))
	logger.Info("attempt started", "attempt", attempt, "provider", provider.ID(), "branch", branch)

	executionID := fmt.Sprintf("%s-a%d", job.ID, attempt)
	execution, err := provider.Execute(ctx, agent.ExecuteParams{
		ExecutionID:  executionID,
		Task:         job.Task,
		WorktreePath: sb.Path(),
		Branch:       branch,
		Timeout:      e.cfg.Execution.JobTimeout(),
	})
	if err != nil {
		cleanup()
		return err
	}

	e.mu.Lock()
	e.running[job.ID] = runningAttempt{provider: provider, executionID: executionID}
	e.mu.Unlock()

	// Single-consumer drain. The channel closes when the execution
	// resolves, so Wait below returns immediately afterwards.
	for ev := range execution.Events() {
		progress := event.NewJobProgressEvent(job.ID, job.Task.ID, string(ev.Kind), ev.Message)
		progress.TokenDelta = int64(ev.TokenDelta)
		progress.File = ev.File
		e.bus.Publish(progress)
	}
	result, execErr := execution.Wait(context.Background())

	e.mu.Lock()
	delete(e.running, job.ID)
	e.mu.Unlock()

	if execErr != nil {
		cleanup()
		return errors.NewExecutionError("backend execution failed", execErr).
			WithJobID(job.ID).
			WithTaskID(job.Task.ID).
			WithProvider(string(provider.ID())).
			WithAttempt(attempt).
			WithTransient(errors.IsTransient(execErr))
	}

	changed := result.ChangedFiles
	if len(changed) == 0 {
		if files, ferr := e.sandboxes.ChangedFiles(sb.Path()); ferr == nil {
			changed = files
		}
	}

	final := ExecutionResult{
		JobID:        job.ID,
		TaskID:       job.Task.ID,
		State:        StateCompleted,
		Attempts:     attempt,
		Success:      true,
		ExitCode:     result.ExitCode,
		TokensUsed:   result.TokensUsed,
		ChangedFiles: changed,
		Branch:       branch,
		Provider:     string(provider.ID()),
		Duration:     result.Duration,
	}

	// The completer sees the sandbox before cleanup so it can push the
	// branch and open a pull request.
	if e.completer != nil {
		if cerr := e.completer.OnJobComplete(ctx, final, sb); cerr != nil {
			logger.Warn("completion hook failed", "error", cerr)
		}
	}
	cleanup()

	e.mu.Lock()
	job.state = StateCompleted
	job.result = &final
	e.mu.Unlock()

	e.bus.Publish(event.NewJobCompletedEvent(job.ID, job.Task.ID, attempt, int64(result.TokensUsed), result.Duration, branch))
	logger.Info("job completed", "attempt", attempt, "tokens_used", result.TokensUsed)
	return nil
}

// pickProvider round-robins across providers that currently report
// themselves available.
func (e *Engine) pickProvider(ctx context.Context) (agent.Provider, error) {
	providers := e.registry.All()
	if len(providers) == 0 {
		return nil, errors.NewExecutionError("no providers registered", errors.ErrProviderUnavailable)
	}

	e.mu.Lock()
	start := e.rrIndex
	e.mu.Unlock()

	for i := 0; i < len(providers); i++ {
		candidate := providers[(start+i)%len(providers)]
		if err := candidate.CheckAvailability(ctx); err != nil {
			continue
		}
		e.mu.Lock()
		e.rrIndex = (start + i + 1) % len(providers)
		e.mu.Unlock()
		return candidate, nil
	}
	return nil, errors.NewExecutionError("no healthy provider available", errors.ErrProviderUnavailable)
}

func (e *Engine) isAborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborted
}

func (e *Engine) finishAborted(job *Job) {
	e.mu.Lock()
	if job.state.terminal() {
		e.mu.Unlock()
		return
	}
	job.state = StateAborted
	job.result = &ExecutionResult{
		JobID:    job.ID,
		TaskID:   job.Task.ID,
		State:    StateAborted,
		Attempts: job.attempts,
		Branch:   job.branch,
		Provider: job.provider,
		Err: errors.NewExecutionError("job aborted", errors.ErrExecutionAborted).
			WithJobID(job.ID).
			WithTaskID(job.Task.ID),
	}
	attempts := job.attempts
	e.mu.Unlock()

	e.bus.Publish(event.NewJobAbortedEvent(job.ID, job.Task.ID, attempts))
}

func (e *Engine) finishFailed(job *Job, attempt int, err error) {
	e.mu.Lock()
	job.state = StateFailed
	job.result = &ExecutionResult{
		JobID:    job.ID,
		TaskID:   job.Task.ID,
		State:    StateFailed,
		Attempts: attempt,
		Branch:   job.branch,
		Provider: job.provider,
		Err:      err,
	}
	e.mu.Unlock()

	e.bus.Publish(event.NewJobFailedEvent(job.ID, job.Task.ID, attempt, err.Error(), true))
	e.logger.Error("job failed", "job_id", job.ID, "task_id", job.Task.ID, "attempt", attempt, "error", err)
}

// summarize aggregates terminal job results.
func (e *Engine) summarize(duration time.Duration) *Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	summary := &Summary{Total: len(e.jobs), Duration: duration}
	for _, job := range e.jobs {
		switch job.state {
		case StateCompleted:
			summary.Completed++
		case StateFailed:
			summary.Failed++
		case StateAborted:
			summary.Aborted++
		}
		if job.result != nil {
			summary.TokensUsed += job.result.TokensUsed
			summary.Results = append(summary.Results, *job.result)
		}
	}
	return summary
}
