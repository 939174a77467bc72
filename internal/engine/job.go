package engine

import (
	"time"

	"github.com/Open330/open-agent-contribution-sub003/internal/task"
)

// JobState is a job's position in its lifecycle state machine.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateAborted   JobState = "aborted"
)

// terminal reports whether the state admits no further transitions.
func (s JobState) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}

// Job is one plan entry tracked through execution. State and attempt
// fields are guarded by the engine's mutex.
type Job struct {
	ID   string
	Task task.Task

	state    JobState
	attempts int
	branch   string
	provider string
	result   *ExecutionResult
}

// State returns the job's current lifecycle state.
func (j *Job) State() JobState { return j.state }

// Attempts returns how many attempts have started, including retries.
func (j *Job) Attempts() int { return j.attempts }

// ExecutionResult is the terminal record of one job, handed to the
// completion collaborator and collected into the run summary.
type ExecutionResult struct {
	JobID        string
	TaskID       string
	State        JobState
	Attempts     int
	Success      bool
	ExitCode     int
	TokensUsed   int
	ChangedFiles []string
	Branch       string
	Provider     string
	Duration     time.Duration
	Err          error
}

// Summary aggregates one engine run for the contribution log.
type Summary struct {
	Total      int
	Completed  int
	Failed     int
	Aborted    int
	TokensUsed int
	Duration   time.Duration
	Results    []ExecutionResult
}
