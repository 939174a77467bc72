// Package estimate computes per-task token cost estimates for the budget
// planner. Estimation reads each task's target files with bounded
// concurrency, counts tokens with a backend-specific strategy, scales by
// task complexity, and pads the result so that plans err on the side of
// over-reserving.
//
// Estimation degrades gracefully: an unreadable target file contributes
// zero tokens to that file's share and lowers the estimate's confidence,
// but never fails the estimate.
package estimate

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/errors"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
	"github.com/Open330/open-agent-contribution-sub003/internal/task"
)

// Confidence bounds. Fully readable inputs score confidenceBase; each
// unreadable file pulls the score proportionally toward confidenceFloor.
const (
	confidenceBase  = 0.9
	confidenceFloor = 0.3
	// confidenceNoFiles is used when a task names no target files at all,
	// so the context share of the estimate is pure guesswork.
	confidenceNoFiles = 0.5
)

// Estimator computes TokenEstimates for tasks against backend profiles.
// It is safe for concurrent use.
type Estimator struct {
	cfg      config.EstimatorConfig
	profiles map[string]BackendProfile
	sem      *readSemaphore
	logger   *logging.Logger
}

// New creates an Estimator from configuration and backend profiles.
func New(cfg config.EstimatorConfig, profiles []BackendProfile, logger *logging.Logger) *Estimator {
	if logger == nil {
		logger = logging.NopLogger()
	}

	byID := make(map[string]BackendProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	return &Estimator{
		cfg:      cfg,
		profiles: byID,
		sem:      newReadSemaphore(cfg.ReadConcurrency),
		logger:   logger,
	}
}

// Estimate computes the token estimate for one task under one backend.
// repoRoot anchors the task's relative file paths. The only error case is
// an unknown backend id; everything else degrades into the estimate.
func (e *Estimator) Estimate(ctx context.Context, repoRoot string, t task.Task, backendID string) (TokenEstimate, error) {
	profile, ok := e.profiles[backendID]
	if !ok {
		return TokenEstimate{}, errors.NewEstimateError("unknown backend", errors.NewNotFoundError("backend", backendID)).
			WithTaskID(t.ID).
			WithBackend(backendID)
	}

	contextTokens, readable := e.countFileTokens(ctx, repoRoot, t, profile)
	promptTokens := countText(t.Title+t.Description, profile.CharsPerToken)
	for _, v := range t.Metadata {
		promptTokens += countText(v, profile.CharsPerToken)
	}

	raw := contextTokens + promptTokens + float64(e.cfg.OverheadTokens)
	total := raw * t.Complexity.Factor() * e.cfg.SafetyPadding

	// The generation share is whatever the scaled total adds on top of the
	// inputs. Trivial tasks can scale below their inputs; clamp at zero.
	expectedOutput := total - raw
	if expectedOutput < 0 {
		expectedOutput = 0
	}

	est := TokenEstimate{
		TaskID:               t.ID,
		Backend:              backendID,
		ContextTokens:        contextTokens,
		PromptTokens:         promptTokens,
		ExpectedOutputTokens: expectedOutput,
		TotalEstimatedTokens: total,
		Confidence:           confidence(len(t.Files), readable),
		Feasible:             total <= profile.MaxContextTokens,
	}

	e.logger.Debug("estimated task",
		"task_id", t.ID,
		"backend", backendID,
		"total_tokens", est.TotalEstimatedTokens,
		"confidence", est.Confidence,
		"feasible", est.Feasible,
	)

	return est, nil
}

// EstimateAll computes one estimate per task, preserving input order.
// Per-task estimation failures are replaced by the fallback estimate so a
// single bad task never sinks the planning pass.
func (e *Estimator) EstimateAll(ctx context.Context, repoRoot string, tasks []task.Task, backendID string) []TokenEstimate {
	estimates := make([]TokenEstimate, len(tasks))
	for i, t := range tasks {
		est, err := e.Estimate(ctx, repoRoot, t, backendID)
		if err != nil {
			e.logger.Warn("estimate failed, substituting fallback",
				"task_id", t.ID, "error", err)
			est = Fallback(t.ID, backendID)
		}
		estimates[i] = est
	}
	return estimates
}

// countFileTokens reads the task's target files with bounded concurrency
// and returns their combined token count plus how many were readable.
func (e *Estimator) countFileTokens(ctx context.Context, repoRoot string, t task.Task, profile BackendProfile) (tokens float64, readable int) {
	if len(t.Files) == 0 {
		return 0, 0
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, file := range t.Files {
		if e.sem.Acquire(ctx) != nil {
			// Context cancelled: remaining files count zero, like any
			// other unreadable input.
			break
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer e.sem.Release()

			data, err := os.ReadFile(filepath.Join(repoRoot, path))
			if err != nil {
				e.logger.Debug("unreadable target file counts zero tokens",
					"task_id", t.ID, "file", path, "error", err)
				return
			}

			count := countText(string(data), profile.CharsPerToken)

			mu.Lock()
			tokens += count
			readable++
			mu.Unlock()
		}(file)
	}

	wg.Wait()
	return tokens, readable
}

// countText converts text length to a token count using the backend's
// chars-per-token ratio. Non-empty text counts at least one token.
func countText(text string, charsPerToken int) float64 {
	if charsPerToken < 1 {
		charsPerToken = 4
	}
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / charsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return float64(tokens)
}

// confidence scores an estimate by the share of target files that were
// actually readable.
func confidence(total, readable int) float64 {
	if total == 0 {
		return confidenceNoFiles
	}
	if readable == total {
		return confidenceBase
	}
	frac := float64(readable) / float64(total)
	return confidenceFloor + (confidenceBase-confidenceFloor)*frac
}
