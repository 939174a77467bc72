// Package task defines the unit of proposed work consumed by the planner
// and execution engine. Tasks are produced by the discovery layer and are
// treated as immutable input everywhere in this module.
package task

import "time"

// Complexity classifies how much work a task is expected to involve.
// It scales token estimates and gates selection of expensive tasks.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// String returns the string representation of the complexity.
func (c Complexity) String() string {
	return string(c)
}

// Valid reports whether the complexity is one of the known levels.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityTrivial, ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}

// Factor returns the token-estimate multiplier for this complexity level.
// Unknown levels fall back to the simple (×1.0) factor.
func (c Complexity) Factor() float64 {
	switch c {
	case ComplexityTrivial:
		return 0.5
	case ComplexitySimple:
		return 1.0
	case ComplexityModerate:
		return 2.0
	case ComplexityComplex:
		return 3.5
	default:
		return 1.0
	}
}

// ExecutionMode selects how a backend should run a task.
type ExecutionMode string

const (
	// ModeAutonomous runs the task end to end without interaction.
	ModeAutonomous ExecutionMode = "autonomous"
	// ModeSupervised pauses for confirmation at checkpoints.
	ModeSupervised ExecutionMode = "supervised"
)

// Task is a discrete unit of proposed work discovered upstream.
//
// Tasks are immutable once created: the planner and engine read them but
// never mutate them. Execution state lives on engine Jobs, not here.
type Task struct {
	// ID uniquely identifies this task within a run.
	ID string `json:"id" yaml:"id"`

	// Source tags where the task came from (e.g. "todo-scan", "issue").
	Source string `json:"source" yaml:"source"`

	// Title is a short human-readable name, used in branch names.
	Title string `json:"title" yaml:"title"`

	// Description contains the full instructions handed to the backend.
	Description string `json:"description" yaml:"description"`

	// Files lists the repository-relative paths this task targets.
	// Estimation reads these to size the context window.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`

	// Priority orders tasks for selection; higher values are selected first.
	Priority int `json:"priority" yaml:"priority"`

	// Complexity is the discovery layer's difficulty classification.
	Complexity Complexity `json:"complexity" yaml:"complexity"`

	// Mode selects autonomous or supervised execution.
	Mode ExecutionMode `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Metadata carries free-form discovery annotations.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// DiscoveredAt is when the discovery layer produced this task.
	DiscoveredAt time.Time `json:"discovered_at,omitempty" yaml:"discovered_at,omitempty"`
}
