package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/errors"
	"github.com/Open330/open-agent-contribution-sub003/internal/estimate"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
	"github.com/Open330/open-agent-contribution-sub003/internal/task"
)

// argsBuilder produces the CLI invocation for one backend variant.
type argsBuilder func(command, prompt string) (string, []string)

func claudeArgs(command, prompt string) (string, []string) {
	return command, []string{"--print", "--dangerously-skip-permissions", prompt}
}

func codexArgs(command, prompt string) (string, []string) {
	return command, []string{"exec", "--full-auto", prompt}
}

// CLIProvider runs a backend's command-line tool as a subprocess inside
// the job's worktree. One CLIProvider serves many concurrent executions.
type CLIProvider struct {
	id            ProviderID
	command       string
	buildArgs     argsBuilder
	charsPerToken int
	maxContext    float64
	abortGrace    time.Duration
	logger        *logging.Logger

	mu      sync.Mutex
	running map[string]*runningExecution
}

type runningExecution struct {
	cmd       *exec.Cmd
	aborted   bool
	killTimer *time.Timer
}

// NewProvider constructs the provider for a known backend id. Unknown
// ids are rejected: the set of backends is closed.
func NewProvider(id string, cfg config.BackendConfig, abortGrace time.Duration, logger *logging.Logger) (Provider, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	var (
		pid       ProviderID
		command   string
		buildArgs argsBuilder
	)
	switch ProviderID(strings.ToLower(id)) {
	case ProviderClaude:
		pid, command, buildArgs = ProviderClaude, "claude", claudeArgs
	case ProviderCodex:
		pid, command, buildArgs = ProviderCodex, "codex", codexArgs
	default:
		return nil, errors.NewExecutionError(
			fmt.Sprintf("unknown provider %q", id), errors.ErrInvalidInput,
		).WithProvider(id)
	}
	if cfg.Command != "" {
		command = cfg.Command
	}

	return &CLIProvider{
		id:            pid,
		command:       command,
		buildArgs:     buildArgs,
		charsPerToken: cfg.CharsPerToken,
		maxContext:    cfg.MaxContextTokens,
		abortGrace:    abortGrace,
		logger:        logger.With("provider", string(pid)),
		running:       make(map[string]*runningExecution),
	}, nil
}

func (p *CLIProvider) ID() ProviderID {
	return p.id
}

// CheckAvailability verifies the backend binary is on PATH.
func (p *CLIProvider) CheckAvailability(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(p.command); err != nil {
		return errors.NewExecutionError(
			fmt.Sprintf("backend command %q not found", p.command), errors.ErrProviderUnavailable,
		).WithProvider(string(p.id))
	}
	return nil
}

// EstimateTokens approximates token count using the backend's
// characters-per-token ratio.
func (p *CLIProvider) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	cpt := p.charsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	tokens := len(text) / cpt
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// Profile exposes the backend's tokenizer characteristics.
func (p *CLIProvider) Profile() estimate.BackendProfile {
	return estimate.BackendProfile{
		ID:               string(p.id),
		CharsPerToken:    p.charsPerToken,
		MaxContextTokens: p.maxContext,
	}
}

// Execute launches the backend subprocess in the sandbox worktree and
// returns the execution handle. The subprocess runs in its own process
// group so aborts reach its descendants too.
func (p *CLIProvider) Execute(ctx context.Context, params ExecuteParams) (*Execution, error) {
	name, args := p.buildArgs(p.command, buildPrompt(params.Task))
	cmd := exec.Command(name, args...)
	cmd.Dir = params.WorktreePath
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.NewExecutionError("failed to open stdout pipe", err).
			WithProvider(string(p.id)).
			WithTaskID(params.Task.ID)
	}
	// Stderr shares stdout's pipe so the stream interleaves in order.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, errors.NewExecutionError("failed to start backend", err).
			WithProvider(string(p.id)).
			WithTaskID(params.Task.ID)
	}

	run := &runningExecution{cmd: cmd}
	p.mu.Lock()
	p.running[params.ExecutionID] = run
	p.mu.Unlock()

	execution := newExecution(params.ExecutionID)
	p.logger.Debug("backend started",
		"execution_id", params.ExecutionID,
		"task_id", params.Task.ID,
		"pid", cmd.Process.Pid)

	go p.supervise(ctx, execution, run, stdout, params)
	return execution, nil
}

// supervise owns the subprocess lifecycle: it streams output into the
// handle, enforces the timeout, and resolves the handle exactly once
// after the process has fully exited.
func (p *CLIProvider) supervise(ctx context.Context, execution *Execution, run *runningExecution, stdout io.Reader, params ExecuteParams) {
	start := time.Now()

	timeoutCtx := ctx
	var cancel context.CancelFunc
	if params.Timeout > 0 {
		timeoutCtx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	// Forward cancellation and timeout to the process while it runs.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-timeoutCtx.Done():
			_ = p.Abort(params.ExecutionID)
		case <-watchDone:
		}
	}()

	output := p.drainOutput(execution, stdout)

	waitErr := run.cmd.Wait()
	close(watchDone)
	duration := time.Since(start)

	p.mu.Lock()
	if run.killTimer != nil {
		run.killTimer.Stop()
	}
	aborted := run.aborted
	delete(p.running, params.ExecutionID)
	p.mu.Unlock()

	result := Result{
		ExitCode:   exitCode(run.cmd, waitErr),
		TokensUsed: p.EstimateTokens(output),
		Output:     output,
		Duration:   duration,
	}

	timedOut := timeoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil

	switch {
	case timedOut:
		execution.resolve(result, errors.NewExecutionError("execution timed out", errors.ErrTimeout).
			WithProvider(string(p.id)).
			WithTaskID(params.Task.ID))
	case aborted || ctx.Err() != nil:
		execution.resolve(result, errors.NewExecutionError("execution aborted", errors.ErrExecutionAborted).
			WithProvider(string(p.id)).
			WithTaskID(params.Task.ID))
	case waitErr != nil:
		execution.resolve(result, errors.NewExecutionError("backend exited with failure", waitErr).
			WithProvider(string(p.id)).
			WithTaskID(params.Task.ID))
	default:
		result.Success = true
		execution.resolve(result, nil)
	}
}

// drainOutput reads the process stdout to EOF, emitting an output event per
// line. A line longer than the read buffer arrives as multiple chunk events
// instead of stalling the child on a full pipe. Returns the full captured
// output.
func (p *CLIProvider) drainOutput(execution *Execution, stdout io.Reader) string {
	var output strings.Builder
	reader := bufio.NewReaderSize(stdout, 64*1024)
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 {
			output.Write(chunk)
			line := strings.TrimRight(string(chunk), "\n")
			execution.emit(Event{
				Kind:       EventOutput,
				Message:    line,
				TokenDelta: p.EstimateTokens(line),
				Time:       time.Now(),
			})
		}
		if err == nil || err == bufio.ErrBufferFull {
			continue
		}
		return output.String()
	}
}

// Abort sends SIGTERM to the execution's process group and arms a
// SIGKILL for the whole group once the grace period passes.
func (p *CLIProvider) Abort(executionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	run, ok := p.running[executionID]
	if !ok {
		return errors.NewNotFoundError("execution", executionID)
	}
	if run.aborted {
		return nil
	}
	run.aborted = true

	pgid := run.cmd.Process.Pid
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	p.logger.Debug("abort requested", "execution_id", executionID, "pid", pgid)

	run.killTimer = time.AfterFunc(p.abortGrace, func() {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	})
	return nil
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// buildPrompt renders the task into the instruction text handed to the
// backend.
func buildPrompt(t task.Task) string {
	var b strings.Builder
	b.WriteString("Complete the following task in this repository.\n\n")
	b.WriteString("Title: " + t.Title + "\n")
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}
	if len(t.Files) > 0 {
		b.WriteString("\nRelevant files:\n")
		for _, f := range t.Files {
			b.WriteString("- " + f + "\n")
		}
	}
	b.WriteString("\nCommit your changes with a clear message when done.\n")
	return b.String()
}
