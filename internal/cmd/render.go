package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Open330/open-agent-contribution-sub003/internal/engine"
	"github.com/Open330/open-agent-contribution-sub003/internal/plan"
)

const time100ms = 100 * time.Millisecond

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderPlan formats an execution plan for terminal output.
func renderPlan(p *plan.ExecutionPlan) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Execution Plan") + "\n\n")
	b.WriteString(fmt.Sprintf("Budget:    %.0f tokens (reserve %.0f, effective %.0f)\n",
		p.TotalBudget, p.ReserveTokens, p.EffectiveBudget()))
	b.WriteString(fmt.Sprintf("Selected:  %d tasks, %.0f tokens\n", len(p.SelectedTasks), p.SelectedTokens()))
	b.WriteString(fmt.Sprintf("Remaining: %.0f tokens\n\n", p.RemainingTokens))

	if len(p.SelectedTasks) > 0 {
		b.WriteString(successStyle.Render("Selected") + "\n")
		for i, selected := range p.SelectedTasks {
			b.WriteString(fmt.Sprintf("  %d. [%3d] %-40s %8.0f tokens  (cumulative %.0f)\n",
				i+1,
				selected.Task.Priority,
				truncate(selected.Task.Title, 40),
				selected.Estimate.TotalEstimatedTokens,
				selected.CumulativeBudgetUsed))
		}
		b.WriteString("\n")
	}

	if len(p.DeferredTasks) > 0 {
		b.WriteString(warnStyle.Render("Deferred") + "\n")
		for _, deferred := range p.DeferredTasks {
			b.WriteString(fmt.Sprintf("  - [%3d] %-40s %s\n",
				deferred.Task.Priority,
				truncate(deferred.Task.Title, 40),
				mutedStyle.Render(string(deferred.Reason))))
		}
	}

	return b.String()
}

// renderSummary formats a run summary for terminal output.
func renderSummary(s *engine.Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Run Summary") + "\n\n")
	b.WriteString(fmt.Sprintf("Jobs:     %d total, %s, %s, %s\n",
		s.Total,
		successStyle.Render(fmt.Sprintf("%d completed", s.Completed)),
		errorStyle.Render(fmt.Sprintf("%d failed", s.Failed)),
		mutedStyle.Render(fmt.Sprintf("%d aborted", s.Aborted))))
	b.WriteString(fmt.Sprintf("Tokens:   %d used\n", s.TokensUsed))
	b.WriteString(fmt.Sprintf("Duration: %s\n", s.Duration.Round(time100ms)))

	if len(s.Results) > 0 {
		b.WriteString("\n")
		for _, r := range s.Results {
			marker := successStyle.Render("✓")
			detail := r.Branch
			switch r.State {
			case engine.StateFailed:
				marker = errorStyle.Render("✗")
				if r.Err != nil {
					detail = r.Err.Error()
				}
			case engine.StateAborted:
				marker = mutedStyle.Render("∅")
				detail = "aborted"
			}
			b.WriteString(fmt.Sprintf("  %s %-12s %s\n", marker, r.TaskID, mutedStyle.Render(truncate(detail, 60))))
		}
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
