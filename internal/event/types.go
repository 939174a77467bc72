package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "job.started", "plan.built")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Job Lifecycle Events
// -----------------------------------------------------------------------------

// JobQueuedEvent is emitted when a job enters the queue.
type JobQueuedEvent struct {
	baseEvent
	JobID   string // Unique identifier for the job
	TaskID  string // Task this job executes
	Attempt int    // 1 for the initial attempt
}

// NewJobQueuedEvent creates a JobQueuedEvent.
func NewJobQueuedEvent(jobID, taskID string, attempt int) JobQueuedEvent {
	return JobQueuedEvent{
		baseEvent: newBaseEvent("job.queued"),
		JobID:     jobID,
		TaskID:    taskID,
		Attempt:   attempt,
	}
}

// JobStartedEvent is emitted when a job transitions to running.
type JobStartedEvent struct {
	baseEvent
	JobID        string
	TaskID       string
	Attempt      int
	Provider     string // Backend provider assigned to this attempt
	WorktreePath string // Sandbox working-tree path
	Branch       string // Sandbox branch name
}

// NewJobStartedEvent creates a JobStartedEvent.
func NewJobStartedEvent(jobID, taskID string, attempt int, provider, worktreePath, branch string) JobStartedEvent {
	return JobStartedEvent{
		baseEvent:    newBaseEvent("job.started"),
		JobID:        jobID,
		TaskID:       taskID,
		Attempt:      attempt,
		Provider:     provider,
		WorktreePath: worktreePath,
		Branch:       branch,
	}
}

// JobProgressEvent relays a backend progress notice for a running job.
type JobProgressEvent struct {
	baseEvent
	JobID      string
	TaskID     string
	Kind       string // "output", "tokens", "file_edit", "tool_use", "error"
	Message    string // Free-form progress text
	TokenDelta int64  // Tokens consumed since the last progress event
	File       string // Changed file, when Kind is "file_edit"
}

// NewJobProgressEvent creates a JobProgressEvent.
func NewJobProgressEvent(jobID, taskID, kind, message string) JobProgressEvent {
	return JobProgressEvent{
		baseEvent: newBaseEvent("job.progress"),
		JobID:     jobID,
		TaskID:    taskID,
		Kind:      kind,
		Message:   message,
	}
}

// JobCompletedEvent is emitted when a job finishes successfully.
type JobCompletedEvent struct {
	baseEvent
	JobID      string
	TaskID     string
	Attempt    int
	TokensUsed int64
	Duration   time.Duration
	Branch     string
}

// NewJobCompletedEvent creates a JobCompletedEvent.
func NewJobCompletedEvent(jobID, taskID string, attempt int, tokensUsed int64, duration time.Duration, branch string) JobCompletedEvent {
	return JobCompletedEvent{
		baseEvent:  newBaseEvent("job.completed"),
		JobID:      jobID,
		TaskID:     taskID,
		Attempt:    attempt,
		TokensUsed: tokensUsed,
		Duration:   duration,
		Branch:     branch,
	}
}

// JobFailedEvent is emitted when a job fails terminally (non-transient
// error, or retry ceiling exhausted).
type JobFailedEvent struct {
	baseEvent
	JobID   string
	TaskID  string
	Attempt int
	Err     string // Error message; the error itself stays with the result
	Final   bool   // False when the job will be retried
}

// NewJobFailedEvent creates a JobFailedEvent.
func NewJobFailedEvent(jobID, taskID string, attempt int, errMsg string, final bool) JobFailedEvent {
	return JobFailedEvent{
		baseEvent: newBaseEvent("job.failed"),
		JobID:     jobID,
		TaskID:    taskID,
		Attempt:   attempt,
		Err:       errMsg,
		Final:     final,
	}
}

// JobAbortedEvent is emitted when a job is cancelled, whether it was
// queued or already running.
type JobAbortedEvent struct {
	baseEvent
	JobID   string
	TaskID  string
	Attempt int // Attempt counter at abort time; never incremented by the abort itself
}

// NewJobAbortedEvent creates a JobAbortedEvent.
func NewJobAbortedEvent(jobID, taskID string, attempt int) JobAbortedEvent {
	return JobAbortedEvent{
		baseEvent: newBaseEvent("job.aborted"),
		JobID:     jobID,
		TaskID:    taskID,
		Attempt:   attempt,
	}
}

// -----------------------------------------------------------------------------
// Plan Events
// -----------------------------------------------------------------------------

// PlanBuiltEvent is emitted once per planning pass when the execution
// plan snapshot is ready.
type PlanBuiltEvent struct {
	baseEvent
	TotalBudget   float64
	ReserveTokens float64
	Selected      int
	Deferred      int
}

// NewPlanBuiltEvent creates a PlanBuiltEvent.
func NewPlanBuiltEvent(totalBudget, reserveTokens float64, selected, deferred int) PlanBuiltEvent {
	return PlanBuiltEvent{
		baseEvent:     newBaseEvent("plan.built"),
		TotalBudget:   totalBudget,
		ReserveTokens: reserveTokens,
		Selected:      selected,
		Deferred:      deferred,
	}
}

// RunFinishedEvent is emitted when the engine drains its last job.
type RunFinishedEvent struct {
	baseEvent
	Completed int
	Failed    int
	Aborted   int
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(completed, failed, aborted int) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent: newBaseEvent("run.finished"),
		Completed: completed,
		Failed:    failed,
		Aborted:   aborted,
	}
}
