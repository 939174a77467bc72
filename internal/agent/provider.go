// Package agent abstracts the pluggable AI backends that perform code
// changes inside a sandbox. Each backend is a Provider; the set of
// providers is closed and constructed through NewProvider.
package agent

import (
	"context"
	"time"

	"github.com/Open330/open-agent-contribution-sub003/internal/estimate"
	"github.com/Open330/open-agent-contribution-sub003/internal/task"
)

// ProviderID identifies a supported backend.
type ProviderID string

const (
	ProviderClaude ProviderID = "claude"
	ProviderCodex  ProviderID = "codex"
)

// ExecuteParams carries everything a provider needs to run one job
// attempt inside its sandbox.
type ExecuteParams struct {
	ExecutionID  string
	Task         task.Task
	WorktreePath string
	Branch       string
	Timeout      time.Duration
}

// Result is the terminal outcome of one execution.
type Result struct {
	Success      bool
	ExitCode     int
	TokensUsed   int
	ChangedFiles []string
	Output       string
	Duration     time.Duration
}

// Provider is the capability interface every backend implements.
type Provider interface {
	// ID returns the provider's stable identifier.
	ID() ProviderID

	// CheckAvailability reports whether the backend can currently accept
	// work, for example whether its CLI binary is installed.
	CheckAvailability(ctx context.Context) error

	// Execute starts a job attempt and returns immediately with a handle.
	// The caller must drain the handle's event channel and await its
	// result, even on error, or the underlying process leaks.
	Execute(ctx context.Context, params ExecuteParams) (*Execution, error)

	// EstimateTokens approximates the token cost of a piece of text
	// using the backend's own tokenizer characteristics.
	EstimateTokens(text string) int

	// Abort requests cooperative termination of a running execution.
	// The provider escalates to forceful termination after its grace
	// period elapses.
	Abort(executionID string) error

	// Profile exposes the backend's tokenizer characteristics for the
	// estimator.
	Profile() estimate.BackendProfile
}
