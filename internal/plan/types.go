package plan

import (
	"github.com/Open330/open-agent-contribution-sub003/internal/estimate"
	"github.com/Open330/open-agent-contribution-sub003/internal/task"
)

// DeferralReason explains why a task was excluded from the current plan.
// Deferrals are first-class plan data, not errors.
type DeferralReason string

const (
	// ReasonBudgetExceeded covers infeasible estimates, degenerate budgets,
	// and tasks past the greedy cutoff.
	ReasonBudgetExceeded DeferralReason = "budget_exceeded"

	// ReasonLowConfidence defers tasks whose estimate confidence is below
	// the configured floor.
	ReasonLowConfidence DeferralReason = "low_confidence"

	// ReasonTooComplex defers complex tasks whose cost dominates the
	// effective budget.
	ReasonTooComplex DeferralReason = "too_complex"
)

// SelectedTask is a task admitted to the plan, with its estimate and the
// running budget total at the point it was accepted.
type SelectedTask struct {
	Task     task.Task              `json:"task"`
	Estimate estimate.TokenEstimate `json:"estimate"`

	// CumulativeBudgetUsed is the sum of selected token costs up to and
	// including this task, in selection order.
	CumulativeBudgetUsed float64 `json:"cumulative_budget_used"`
}

// DeferredTask is a task excluded from the plan, tagged with the reason.
type DeferredTask struct {
	Task     task.Task              `json:"task"`
	Estimate estimate.TokenEstimate `json:"estimate"`
	Reason   DeferralReason         `json:"reason"`
}

// ExecutionPlan is the immutable snapshot produced by one planning pass.
//
// Invariant: the sum of selected token costs never exceeds
// TotalBudget − ReserveTokens.
type ExecutionPlan struct {
	// TotalBudget is the normalized total token budget for the run.
	TotalBudget float64 `json:"total_budget"`

	// ReserveTokens is the floor(TotalBudget × reserve%) withheld from
	// selection to cover retries.
	ReserveTokens float64 `json:"reserve_tokens"`

	// RemainingTokens is the effective budget left after selection.
	RemainingTokens float64 `json:"remaining_tokens"`

	// SelectedTasks are the admitted tasks in selection order.
	SelectedTasks []SelectedTask `json:"selected_tasks"`

	// DeferredTasks are the excluded tasks with reasons.
	DeferredTasks []DeferredTask `json:"deferred_tasks"`
}

// EffectiveBudget returns the budget available to selection.
func (p *ExecutionPlan) EffectiveBudget() float64 {
	return p.TotalBudget - p.ReserveTokens
}

// SelectedTokens returns the total token cost of the selected set.
func (p *ExecutionPlan) SelectedTokens() float64 {
	if len(p.SelectedTasks) == 0 {
		return 0
	}
	return p.SelectedTasks[len(p.SelectedTasks)-1].CumulativeBudgetUsed
}

// DeferredByReason returns the deferred tasks carrying the given reason.
func (p *ExecutionPlan) DeferredByReason(reason DeferralReason) []DeferredTask {
	var out []DeferredTask
	for _, d := range p.DeferredTasks {
		if d.Reason == reason {
			out = append(out, d)
		}
	}
	return out
}
