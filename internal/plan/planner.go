// Package plan partitions candidate tasks into a selected set and a
// deferred set against a total token budget.
//
// Selection is a single-pass greedy walk over tasks sorted by priority per
// token. It is an approximation, not an exact knapsack: once a task would
// overflow the effective budget, it and everything after it in sort order
// is deferred, even if a smaller task later in the order would still fit.
// Leaving budget unused near capacity is accepted behavior; do not add
// backtracking here without revisiting the selection contract.
package plan

import (
	"math"
	"sort"

	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/estimate"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
	"github.com/Open330/open-agent-contribution-sub003/internal/task"
)

// Planner builds execution plans from tasks and their estimates.
type Planner struct {
	cfg    config.BudgetConfig
	logger *logging.Logger
}

// NewPlanner creates a Planner from budget configuration.
func NewPlanner(cfg config.BudgetConfig, logger *logging.Logger) *Planner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Planner{cfg: cfg, logger: logger}
}

// Plan builds an immutable ExecutionPlan for the given tasks against
// totalBudget. Estimates are matched to tasks by task ID; a task with no
// estimate gets the infeasible zero-confidence fallback and is deferred.
func (p *Planner) Plan(tasks []task.Task, estimates []estimate.TokenEstimate, totalBudget float64) *ExecutionPlan {
	byTask := make(map[string]estimate.TokenEstimate, len(estimates))
	for _, est := range estimates {
		byTask[est.TaskID] = est
	}

	// Degenerate budgets normalize to zero: nothing is selectable and no
	// reserve is held.
	if math.IsNaN(totalBudget) || math.IsInf(totalBudget, 0) || totalBudget <= 0 {
		totalBudget = 0
	}

	reserve := math.Floor(totalBudget * p.cfg.ReservePercent)
	effective := totalBudget - reserve

	result := &ExecutionPlan{
		TotalBudget:     totalBudget,
		ReserveTokens:   reserve,
		RemainingTokens: effective,
		SelectedTasks:   []SelectedTask{},
		DeferredTasks:   []DeferredTask{},
	}

	// Pre-selection classification, independent of ordering.
	var candidates []candidate
	for _, t := range tasks {
		est, ok := byTask[t.ID]
		if !ok {
			est = estimate.Fallback(t.ID, "")
		}

		if reason, deferred := p.classify(t, est, effective); deferred {
			result.DeferredTasks = append(result.DeferredTasks, DeferredTask{
				Task: t, Estimate: est, Reason: reason,
			})
			continue
		}
		candidates = append(candidates, candidate{task: t, estimate: est})
	}

	sortCandidates(candidates)

	// Greedy walk: accept while the cumulative total fits; the first task
	// that would overflow closes selection for everything after it too.
	cumulative := 0.0
	overflowed := false
	for _, c := range candidates {
		if overflowed || cumulative+c.estimate.TotalEstimatedTokens > effective {
			overflowed = true
			result.DeferredTasks = append(result.DeferredTasks, DeferredTask{
				Task: c.task, Estimate: c.estimate, Reason: ReasonBudgetExceeded,
			})
			continue
		}

		cumulative += c.estimate.TotalEstimatedTokens
		result.SelectedTasks = append(result.SelectedTasks, SelectedTask{
			Task:                 c.task,
			Estimate:             c.estimate,
			CumulativeBudgetUsed: cumulative,
		})
	}

	result.RemainingTokens = effective - cumulative

	p.logger.Info("execution plan built",
		"total_budget", totalBudget,
		"reserve_tokens", reserve,
		"selected", len(result.SelectedTasks),
		"deferred", len(result.DeferredTasks),
		"remaining_tokens", result.RemainingTokens,
	)

	return result
}

// classify applies the order-independent deferral rules.
func (p *Planner) classify(t task.Task, est estimate.TokenEstimate, effective float64) (DeferralReason, bool) {
	// A zero effective budget defers everything as budget_exceeded,
	// including tasks that would otherwise be low-confidence.
	if effective <= 0 {
		return ReasonBudgetExceeded, true
	}
	if !est.Feasible {
		return ReasonBudgetExceeded, true
	}
	if est.Confidence < p.cfg.MinConfidence {
		return ReasonLowConfidence, true
	}
	if t.Complexity == task.ComplexityComplex &&
		est.TotalEstimatedTokens > p.cfg.ComplexCostCeiling*effective {
		return ReasonTooComplex, true
	}
	return "", false
}

type candidate struct {
	task     task.Task
	estimate estimate.TokenEstimate
}

// sortCandidates orders by priority-per-token descending, then higher
// absolute priority, then lower token cost. A zero-cost estimate sorts as
// infinite value.
func sortCandidates(candidates []candidate) {
	ratio := func(c candidate) float64 {
		if c.estimate.TotalEstimatedTokens <= 0 {
			return math.Inf(1)
		}
		return float64(c.task.Priority) / c.estimate.TotalEstimatedTokens
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := ratio(candidates[i]), ratio(candidates[j])
		if ri != rj {
			return ri > rj
		}
		if candidates[i].task.Priority != candidates[j].task.Priority {
			return candidates[i].task.Priority > candidates[j].task.Priority
		}
		return candidates[i].estimate.TotalEstimatedTokens < candidates[j].estimate.TotalEstimatedTokens
	})
}
