package estimate

// BackendProfile describes the token-counting characteristics of one
// backend. Profiles are supplied by the agent layer at construction so the
// estimator never needs to know about concrete providers.
type BackendProfile struct {
	// ID is the provider id this profile belongs to.
	ID string

	// CharsPerToken is the character-based counting ratio for this backend.
	CharsPerToken int

	// MaxContextTokens is the backend's maximum context window. Estimates
	// exceeding it are marked infeasible.
	MaxContextTokens float64
}

// TokenEstimate is the estimated token cost of executing one task on one
// backend. Exactly one estimate exists per task per planning pass; the
// planner substitutes an infeasible zero-confidence fallback when a task
// has none.
type TokenEstimate struct {
	// TaskID is the task this estimate belongs to.
	TaskID string `json:"task_id"`

	// Backend is the provider id the estimate was computed for.
	Backend string `json:"backend"`

	// ContextTokens is the token count of the task's target file contents.
	ContextTokens float64 `json:"context_tokens"`

	// PromptTokens is the token count of the task's instructions.
	PromptTokens float64 `json:"prompt_tokens"`

	// ExpectedOutputTokens is the generation share of the total estimate.
	ExpectedOutputTokens float64 `json:"expected_output_tokens"`

	// TotalEstimatedTokens is the padded, complexity-scaled total.
	TotalEstimatedTokens float64 `json:"total_estimated_tokens"`

	// Confidence is the estimator's confidence in [0, 1]. Estimates built
	// from unreadable target files carry proportionally lower confidence.
	Confidence float64 `json:"confidence"`

	// Feasible is false when the total exceeds the backend's context window.
	Feasible bool `json:"feasible"`
}

// Fallback returns the synthetic estimate substituted for a task that has
// no real estimate in the current planning pass: infeasible, zero
// confidence, zero cost.
func Fallback(taskID, backend string) TokenEstimate {
	return TokenEstimate{
		TaskID:   taskID,
		Backend:  backend,
		Feasible: false,
	}
}
