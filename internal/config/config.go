// Package config defines the configuration consumed by the execution core.
// Configuration is owned by the embedding application and supplied at
// construction; this package provides the viper wiring, defaults, and
// validation for it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete execution-core configuration
type Config struct {
	Budget    BudgetConfig    `mapstructure:"budget"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Backends  BackendsConfig  `mapstructure:"backends"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BudgetConfig controls token budget planning
type BudgetConfig struct {
	// TotalTokens is the total token budget for one run
	TotalTokens float64 `mapstructure:"total_tokens"`
	// ReservePercent is the fraction of budget withheld for retries (default: 0.10)
	ReservePercent float64 `mapstructure:"reserve_percent"`
	// MinConfidence is the confidence floor below which tasks are deferred (default: 0.5)
	MinConfidence float64 `mapstructure:"min_confidence"`
	// ComplexCostCeiling defers complex tasks whose cost exceeds this fraction
	// of the effective budget (default: 0.6)
	ComplexCostCeiling float64 `mapstructure:"complex_cost_ceiling"`
}

// ExecutionConfig controls the job execution engine
type ExecutionConfig struct {
	// Concurrency is the worker pool width (default: 2)
	Concurrency int `mapstructure:"concurrency"`
	// MaxRetries is the number of additional attempts after the first (default: 2)
	MaxRetries int `mapstructure:"max_retries"`
	// JobTimeoutSeconds is the per-job timeout in seconds (default: 300)
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds"`
	// AbortGraceSeconds is how long to wait after a graceful termination
	// signal before escalating to a forceful kill (default: 10)
	AbortGraceSeconds int `mapstructure:"abort_grace_seconds"`
}

// EstimatorConfig controls token estimation
type EstimatorConfig struct {
	// ReadConcurrency bounds parallel target-file reads during estimation.
	// Unbounded fan-out exhausts file descriptors on large repositories. (default: 50)
	ReadConcurrency int `mapstructure:"read_concurrency"`
	// OverheadTokens is the fixed per-invocation token overhead (default: 1500)
	OverheadTokens int `mapstructure:"overhead_tokens"`
	// SafetyPadding inflates estimates to absorb drift (default: 1.2)
	SafetyPadding float64 `mapstructure:"safety_padding"`
}

// SandboxConfig controls worktree sandbox creation
type SandboxConfig struct {
	// BranchPrefix is the branch name prefix (default: "contrib")
	BranchPrefix string `mapstructure:"branch_prefix"`
	// BaseBranch is the branch sandboxes are rooted at (default: "main")
	BaseBranch string `mapstructure:"base_branch"`
	// WorktreeDir is the directory where worktrees are created.
	// If empty, defaults to ".contrib/worktrees" relative to the repository root.
	// Supports ~ for home directory expansion.
	WorktreeDir string `mapstructure:"worktree_dir"`
}

// BackendsConfig holds per-backend settings
type BackendsConfig struct {
	// Enabled lists the provider IDs to register, in round-robin order
	Enabled []string `mapstructure:"enabled"`
	// Claude configures the Claude CLI provider
	Claude BackendConfig `mapstructure:"claude"`
	// Codex configures the Codex CLI provider
	Codex BackendConfig `mapstructure:"codex"`
}

// Backend returns the configuration block for the given provider id.
func (c BackendsConfig) Backend(id string) (BackendConfig, error) {
	switch id {
	case "claude":
		return c.Claude, nil
	case "codex":
		return c.Codex, nil
	default:
		return BackendConfig{}, fmt.Errorf("unknown backend %q", id)
	}
}

// BackendConfig configures a single CLI backend
type BackendConfig struct {
	// Command is the executable to invoke (default: provider id)
	Command string `mapstructure:"command"`
	// MaxContextTokens is the backend's maximum context window (default: 200000)
	MaxContextTokens float64 `mapstructure:"max_context_tokens"`
	// CharsPerToken is the chars-per-token counting ratio (default: 4)
	CharsPerToken int `mapstructure:"chars_per_token"`
}

// LoggingConfig controls run logging behavior
type LoggingConfig struct {
	// Enabled controls whether run logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for run logs. If empty, logs go to stderr.
	Dir string `mapstructure:"dir"`
}

// JobTimeout returns the per-job timeout as a time.Duration
func (c *ExecutionConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// AbortGrace returns the abort grace period as a time.Duration
func (c *ExecutionConfig) AbortGrace() time.Duration {
	return time.Duration(c.AbortGraceSeconds) * time.Second
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		Budget: BudgetConfig{
			TotalTokens:        1_000_000,
			ReservePercent:     0.10,
			MinConfidence:      0.5,
			ComplexCostCeiling: 0.6,
		},
		Execution: ExecutionConfig{
			Concurrency:       2,
			MaxRetries:        2,
			JobTimeoutSeconds: 300,
			AbortGraceSeconds: 10,
		},
		Estimator: EstimatorConfig{
			ReadConcurrency: 50,
			OverheadTokens:  1500,
			SafetyPadding:   1.2,
		},
		Sandbox: SandboxConfig{
			BranchPrefix: "contrib",
			BaseBranch:   "main",
			WorktreeDir:  "", // Empty means use default: .contrib/worktrees
		},
		Backends: BackendsConfig{
			Enabled: []string{"claude"},
			Claude: BackendConfig{
				Command:          "claude",
				MaxContextTokens: 200_000,
				CharsPerToken:    4,
			},
			Codex: BackendConfig{
				Command:          "codex",
				MaxContextTokens: 200_000,
				CharsPerToken:    4,
			},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Budget defaults
	viper.SetDefault("budget.total_tokens", defaults.Budget.TotalTokens)
	viper.SetDefault("budget.reserve_percent", defaults.Budget.ReservePercent)
	viper.SetDefault("budget.min_confidence", defaults.Budget.MinConfidence)
	viper.SetDefault("budget.complex_cost_ceiling", defaults.Budget.ComplexCostCeiling)

	// Execution defaults
	viper.SetDefault("execution.concurrency", defaults.Execution.Concurrency)
	viper.SetDefault("execution.max_retries", defaults.Execution.MaxRetries)
	viper.SetDefault("execution.job_timeout_seconds", defaults.Execution.JobTimeoutSeconds)
	viper.SetDefault("execution.abort_grace_seconds", defaults.Execution.AbortGraceSeconds)

	// Estimator defaults
	viper.SetDefault("estimator.read_concurrency", defaults.Estimator.ReadConcurrency)
	viper.SetDefault("estimator.overhead_tokens", defaults.Estimator.OverheadTokens)
	viper.SetDefault("estimator.safety_padding", defaults.Estimator.SafetyPadding)

	// Sandbox defaults
	viper.SetDefault("sandbox.branch_prefix", defaults.Sandbox.BranchPrefix)
	viper.SetDefault("sandbox.base_branch", defaults.Sandbox.BaseBranch)
	viper.SetDefault("sandbox.worktree_dir", defaults.Sandbox.WorktreeDir)

	// Backend defaults
	viper.SetDefault("backends.enabled", defaults.Backends.Enabled)
	viper.SetDefault("backends.claude.command", defaults.Backends.Claude.Command)
	viper.SetDefault("backends.claude.max_context_tokens", defaults.Backends.Claude.MaxContextTokens)
	viper.SetDefault("backends.claude.chars_per_token", defaults.Backends.Claude.CharsPerToken)
	viper.SetDefault("backends.codex.command", defaults.Backends.Codex.Command)
	viper.SetDefault("backends.codex.max_context_tokens", defaults.Backends.Codex.MaxContextTokens)
	viper.SetDefault("backends.codex.chars_per_token", defaults.Backends.Codex.CharsPerToken)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ResolveWorktreeDir returns the resolved worktree directory path.
// If WorktreeDir is empty, it returns the default path relative to baseDir.
// If WorktreeDir starts with ~, it expands to the user's home directory.
// If WorktreeDir is a relative path, it's resolved relative to baseDir.
func (s *SandboxConfig) ResolveWorktreeDir(baseDir string) string {
	if s.WorktreeDir == "" {
		return filepath.Join(baseDir, ".contrib", "worktrees")
	}

	path := s.WorktreeDir

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "contrib")
	}
	// Fall back to ~/.config/contrib
	home, err := os.UserHomeDir()
	if err != nil {
		return ".contrib"
	}
	return filepath.Join(home, ".config", "contrib")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
