package config

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "execution.concurrency")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex validates branch prefix characters.
// Prefixes start with alphanumeric and may contain alphanumeric, hyphen, underscore, slash.
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_/-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackends returns the list of known backend provider IDs
func ValidBackends() []string {
	return []string{"claude", "codex"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBudget()...)
	errors = append(errors, c.validateExecution()...)
	errors = append(errors, c.validateEstimator()...)
	errors = append(errors, c.validateSandbox()...)
	errors = append(errors, c.validateBackends()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateBudget() []ValidationError {
	var errors []ValidationError

	if math.IsNaN(c.Budget.TotalTokens) || math.IsInf(c.Budget.TotalTokens, 0) {
		errors = append(errors, ValidationError{
			Field:   "budget.total_tokens",
			Value:   c.Budget.TotalTokens,
			Message: "must be a finite number",
		})
	}
	if c.Budget.ReservePercent < 0 || c.Budget.ReservePercent >= 1 {
		errors = append(errors, ValidationError{
			Field:   "budget.reserve_percent",
			Value:   c.Budget.ReservePercent,
			Message: "must be in [0, 1)",
		})
	}
	if c.Budget.MinConfidence < 0 || c.Budget.MinConfidence > 1 {
		errors = append(errors, ValidationError{
			Field:   "budget.min_confidence",
			Value:   c.Budget.MinConfidence,
			Message: "must be in [0, 1]",
		})
	}
	if c.Budget.ComplexCostCeiling <= 0 || c.Budget.ComplexCostCeiling > 1 {
		errors = append(errors, ValidationError{
			Field:   "budget.complex_cost_ceiling",
			Value:   c.Budget.ComplexCostCeiling,
			Message: "must be in (0, 1]",
		})
	}

	return errors
}

func (c *Config) validateExecution() []ValidationError {
	var errors []ValidationError

	if c.Execution.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.concurrency",
			Value:   c.Execution.Concurrency,
			Message: "must be at least 1",
		})
	}
	if c.Execution.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.max_retries",
			Value:   c.Execution.MaxRetries,
			Message: "must not be negative",
		})
	}
	if c.Execution.JobTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.job_timeout_seconds",
			Value:   c.Execution.JobTimeoutSeconds,
			Message: "must be at least 1 second",
		})
	}
	if c.Execution.AbortGraceSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.abort_grace_seconds",
			Value:   c.Execution.AbortGraceSeconds,
			Message: "must not be negative",
		})
	}

	return errors
}

func (c *Config) validateEstimator() []ValidationError {
	var errors []ValidationError

	if c.Estimator.ReadConcurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "estimator.read_concurrency",
			Value:   c.Estimator.ReadConcurrency,
			Message: "must be at least 1",
		})
	}
	if c.Estimator.OverheadTokens < 0 {
		errors = append(errors, ValidationError{
			Field:   "estimator.overhead_tokens",
			Value:   c.Estimator.OverheadTokens,
			Message: "must not be negative",
		})
	}
	if c.Estimator.SafetyPadding < 1.0 {
		errors = append(errors, ValidationError{
			Field:   "estimator.safety_padding",
			Value:   c.Estimator.SafetyPadding,
			Message: "must be at least 1.0 (padding never shrinks estimates)",
		})
	}

	return errors
}

func (c *Config) validateSandbox() []ValidationError {
	var errors []ValidationError

	if c.Sandbox.BranchPrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "sandbox.branch_prefix",
			Value:   c.Sandbox.BranchPrefix,
			Message: "must not be empty",
		})
	} else if !branchPrefixRegex.MatchString(c.Sandbox.BranchPrefix) {
		errors = append(errors, ValidationError{
			Field:   "sandbox.branch_prefix",
			Value:   c.Sandbox.BranchPrefix,
			Message: "must start with a letter and contain only letters, digits, '-', '_', '/'",
		})
	}
	if c.Sandbox.BaseBranch == "" {
		errors = append(errors, ValidationError{
			Field:   "sandbox.base_branch",
			Value:   c.Sandbox.BaseBranch,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateBackends() []ValidationError {
	var errors []ValidationError

	if len(c.Backends.Enabled) == 0 {
		errors = append(errors, ValidationError{
			Field:   "backends.enabled",
			Value:   c.Backends.Enabled,
			Message: "at least one backend must be enabled",
		})
	}
	for _, id := range c.Backends.Enabled {
		if !slices.Contains(ValidBackends(), id) {
			errors = append(errors, ValidationError{
				Field:   "backends.enabled",
				Value:   id,
				Message: fmt.Sprintf("unknown backend, valid values: %s", strings.Join(ValidBackends(), ", ")),
			})
		}
	}

	for _, b := range []struct {
		name string
		cfg  BackendConfig
	}{
		{"backends.claude", c.Backends.Claude},
		{"backends.codex", c.Backends.Codex},
	} {
		if b.cfg.MaxContextTokens <= 0 {
			errors = append(errors, ValidationError{
				Field:   b.name + ".max_context_tokens",
				Value:   b.cfg.MaxContextTokens,
				Message: "must be positive",
			})
		}
		if b.cfg.CharsPerToken < 1 {
			errors = append(errors, ValidationError{
				Field:   b.name + ".chars_per_token",
				Value:   b.cfg.CharsPerToken,
				Message: "must be at least 1",
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
