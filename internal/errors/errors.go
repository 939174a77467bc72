// Package errors provides centralized error definitions and error handling
// utilities for the execution core. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and the
// transient-error classification used by the engine's retry logic.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - EstimateError: errors during token estimation
//   - PlanError: errors building an execution plan
//   - SandboxError: errors managing worktree sandboxes
//   - ExecutionError: errors driving a job through a backend
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Classification
//
// The engine retries only transient failures. An error is transient when it
// wraps one of the transient sentinels (ErrTimeout, ErrResourceExhausted,
// ErrNetwork, ErrLockContention) or carries an explicit retryable mark:
//
//	if errors.IsTransient(err) {
//	    requeue(job)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Transient failure classes. Errors wrapping one of these are retried by the
// engine up to the configured ceiling.
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrResourceExhausted indicates memory or descriptor exhaustion.
	ErrResourceExhausted = New("resource exhausted")
	// ErrNetwork indicates a network failure reaching a backend or remote.
	ErrNetwork = New("network failure")
	// ErrLockContention indicates a lock or registry was held by another job.
	ErrLockContention = New("lock contention")
)

// Sandbox-related sentinel errors
var (
	// ErrNotGitRepository indicates the target directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrSandboxExists indicates a sandbox already occupies the branch.
	ErrSandboxExists = New("sandbox already exists")
	// ErrBranchInUse indicates the branch is held by another running job.
	ErrBranchInUse = New("branch already in use")
)

// Execution-related sentinel errors
var (
	// ErrProviderUnavailable indicates no backend provider can take the job.
	ErrProviderUnavailable = New("provider unavailable")
	// ErrExecutionAborted indicates the job was cancelled before finishing.
	ErrExecutionAborted = New("execution aborted")
	// ErrAttemptsExhausted indicates the retry ceiling was reached.
	ErrAttemptsExhausted = New("retry attempts exhausted")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// CoreError is the base interface for all errors produced by this module.
// It extends the standard error interface with classification methods.
type CoreError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// IsTransient returns true if the error is a transient condition
	// and the operation may succeed on retry.
	IsTransient() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	transient bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsTransient returns whether the error is a transient condition.
func (e *baseError) IsTransient() bool {
	return e.transient
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// EstimateError represents errors during token estimation.
//
// Example:
//
//	err := errors.NewEstimateError("failed to read target file", cause).
//	    WithTaskID("task-3").WithFile("internal/foo.go")
type EstimateError struct {
	baseError
	TaskID  string
	Backend string
	File    string
}

// NewEstimateError creates a new EstimateError.
func NewEstimateError(message string, cause error) *EstimateError {
	return &EstimateError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *EstimateError) WithTaskID(id string) *EstimateError {
	e.TaskID = id
	return e
}

// WithBackend adds a backend ID to the error context.
func (e *EstimateError) WithBackend(backend string) *EstimateError {
	e.Backend = backend
	return e
}

// WithFile adds a file path to the error context.
func (e *EstimateError) WithFile(file string) *EstimateError {
	e.File = file
	return e
}

// Error returns the formatted error message.
func (e *EstimateError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}
	return formatPrefixed("estimate error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *EstimateError) Is(target error) bool {
	if _, ok := target.(*EstimateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PlanError represents errors building an execution plan.
type PlanError struct {
	baseError
	TaskID string
}

// NewPlanError creates a new PlanError.
func NewPlanError(message string, cause error) *PlanError {
	return &PlanError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *PlanError) WithTaskID(id string) *PlanError {
	e.TaskID = id
	return e
}

// Error returns the formatted error message.
func (e *PlanError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	return formatPrefixed("plan error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *PlanError) Is(target error) bool {
	if _, ok := target.(*PlanError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SandboxError represents errors managing worktree sandboxes.
//
// Example:
//
//	err := errors.NewSandboxError("failed to create worktree", cause).
//	    WithBranch("contrib/task-1").WithRepository(repoPath).
//	    WithGitOutput(string(out))
type SandboxError struct {
	baseError
	Branch     string
	Worktree   string
	Repository string
	GitOutput  string // Captured git command output
}

// NewSandboxError creates a new SandboxError.
func NewSandboxError(message string, cause error) *SandboxError {
	return &SandboxError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithBranch adds a branch name to the error context.
func (e *SandboxError) WithBranch(branch string) *SandboxError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *SandboxError) WithWorktree(path string) *SandboxError {
	e.Worktree = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *SandboxError) WithRepository(path string) *SandboxError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *SandboxError) WithGitOutput(output string) *SandboxError {
	e.GitOutput = output
	return e
}

// WithTransient marks the error as a transient condition.
func (e *SandboxError) WithTransient(t bool) *SandboxError {
	e.transient = t
	return e
}

// Error returns the formatted error message.
func (e *SandboxError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Worktree != "" {
		parts = append(parts, fmt.Sprintf("worktree=%s", e.Worktree))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}
	return formatPrefixed("sandbox error", parts, msg, nil)
}

// Is checks if this error matches the target.
func (e *SandboxError) Is(target error) bool {
	if _, ok := target.(*SandboxError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ExecutionError represents errors driving a job through a backend.
//
// Every error crossing the engine boundary is wrapped in an ExecutionError
// carrying the job and task identifiers, so nothing escapes unclassified.
type ExecutionError struct {
	baseError
	JobID    string
	TaskID   string
	Provider string
	Attempt  int
}

// NewExecutionError creates a new ExecutionError.
func NewExecutionError(message string, cause error) *ExecutionError {
	return &ExecutionError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithJobID adds a job ID to the error context.
func (e *ExecutionError) WithJobID(id string) *ExecutionError {
	e.JobID = id
	return e
}

// WithTaskID adds a task ID to the error context.
func (e *ExecutionError) WithTaskID(id string) *ExecutionError {
	e.TaskID = id
	return e
}

// WithProvider adds a provider ID to the error context.
func (e *ExecutionError) WithProvider(id string) *ExecutionError {
	e.Provider = id
	return e
}

// WithAttempt adds the attempt number to the error context.
func (e *ExecutionError) WithAttempt(n int) *ExecutionError {
	e.Attempt = n
	return e
}

// WithTransient marks the error as a transient condition.
func (e *ExecutionError) WithTransient(t bool) *ExecutionError {
	e.transient = t
	return e
}

// Error returns the formatted error message.
func (e *ExecutionError) Error() string {
	var parts []string
	if e.JobID != "" {
		parts = append(parts, fmt.Sprintf("job=%s", e.JobID))
	}
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	return formatPrefixed("execution error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ExecutionError) Is(target error) bool {
	if _, ok := target.(*ExecutionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("provider", "codex")
//	fmt.Println(err) // "provider 'codex' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{message: message},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatPrefixed("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for backend exit", 300*time.Second)
//	fmt.Println(err) // "timeout error: waiting for backend exit (timeout: 5m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			transient: true, // Timeouts are retryable by default
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsTransient returns true if the error represents a transient condition
// that may succeed on retry. Only the four transient failure classes
// qualify: timeout, resource exhaustion, network failure, and lock
// contention. Everything else — including validation failures and
// unavailable providers — is terminal.
//
// Example:
//
//	if errors.IsTransient(err) && job.Attempt < ceiling {
//	    requeue(job)
//	}
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements CoreError with an explicit mark
	var coreErr CoreError
	if As(err, &coreErr) && coreErr.IsTransient() {
		return true
	}

	// Check for the transient sentinel classes
	return Is(err, ErrTimeout) ||
		Is(err, ErrResourceExhausted) ||
		Is(err, ErrNetwork) ||
		Is(err, ErrLockContention)
}

// IsDomainError returns true if the error is a domain-specific error
// (EstimateError, PlanError, SandboxError, or ExecutionError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var estimateErr *EstimateError
	var planErr *PlanError
	var sandboxErr *SandboxError
	var executionErr *ExecutionError

	return As(err, &estimateErr) || As(err, &planErr) ||
		As(err, &sandboxErr) || As(err, &executionErr)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to enqueue job")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to clean sandbox for job %s", jobID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// formatPrefixed renders "<prefix> [k=v, ...]: message: cause".
func formatPrefixed(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}
