package config

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Execution.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", cfg.Execution.Concurrency)
	}
	if cfg.Execution.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Execution.MaxRetries)
	}
	if cfg.Execution.JobTimeoutSeconds != 300 {
		t.Errorf("JobTimeoutSeconds = %d, want 300", cfg.Execution.JobTimeoutSeconds)
	}
	if cfg.Budget.ReservePercent != 0.10 {
		t.Errorf("ReservePercent = %v, want 0.10", cfg.Budget.ReservePercent)
	}
	if cfg.Estimator.ReadConcurrency != 50 {
		t.Errorf("ReadConcurrency = %d, want 50", cfg.Estimator.ReadConcurrency)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("default config should validate cleanly, got: %v", ValidationErrors(errs))
	}
}

func TestValidate_Budget(t *testing.T) {
	cfg := Default()
	cfg.Budget.TotalTokens = math.NaN()
	cfg.Budget.ReservePercent = 1.5
	cfg.Budget.MinConfidence = -0.1
	cfg.Budget.ComplexCostCeiling = 0

	errs := cfg.Validate()
	if len(errs) != 4 {
		t.Fatalf("expected 4 validation errors, got %d: %v", len(errs), ValidationErrors(errs))
	}
}

func TestValidate_Execution(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero concurrency", func(c *Config) { c.Execution.Concurrency = 0 }, "execution.concurrency"},
		{"negative retries", func(c *Config) { c.Execution.MaxRetries = -1 }, "execution.max_retries"},
		{"zero timeout", func(c *Config) { c.Execution.JobTimeoutSeconds = 0 }, "execution.job_timeout_seconds"},
		{"negative grace", func(c *Config) { c.Execution.AbortGraceSeconds = -1 }, "execution.abort_grace_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected 1 validation error, got %d: %v", len(errs), ValidationErrors(errs))
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestValidate_BranchPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		valid  bool
	}{
		{"contrib", true},
		{"contrib/bot", true},
		{"my-prefix_2", true},
		{"", false},
		{"1starts-with-digit", false},
		{"has space", false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			cfg := Default()
			cfg.Sandbox.BranchPrefix = tt.prefix

			errs := cfg.Validate()
			if tt.valid && len(errs) != 0 {
				t.Errorf("prefix %q should be valid, got: %v", tt.prefix, ValidationErrors(errs))
			}
			if !tt.valid && len(errs) == 0 {
				t.Errorf("prefix %q should be rejected", tt.prefix)
			}
		})
	}
}

func TestValidate_Backends(t *testing.T) {
	cfg := Default()
	cfg.Backends.Enabled = []string{"claude", "gemini"}

	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %d: %v", len(errs), ValidationErrors(errs))
	}
	if !strings.Contains(errs[0].Message, "unknown backend") {
		t.Errorf("Message = %q, want unknown backend error", errs[0].Message)
	}

	cfg = Default()
	cfg.Backends.Enabled = nil
	if errs := cfg.Validate(); len(errs) != 1 {
		t.Errorf("empty enabled list should produce 1 error, got %d", len(errs))
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want count header", msg)
	}
	if !strings.Contains(msg, "a: bad (got: 1)") {
		t.Errorf("Error() = %q, want first error", msg)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if single.Error() != "a: bad (got: 1)" {
		t.Errorf("single Error() = %q", single.Error())
	}
}

func TestResolveWorktreeDir(t *testing.T) {
	s := SandboxConfig{}
	got := s.ResolveWorktreeDir("/repo")
	want := filepath.Join("/repo", ".contrib", "worktrees")
	if got != want {
		t.Errorf("ResolveWorktreeDir = %q, want %q", got, want)
	}

	s = SandboxConfig{WorktreeDir: "/abs/path"}
	if got := s.ResolveWorktreeDir("/repo"); got != "/abs/path" {
		t.Errorf("absolute WorktreeDir = %q, want /abs/path", got)
	}

	s = SandboxConfig{WorktreeDir: "relative/dir"}
	if got := s.ResolveWorktreeDir("/repo"); got != filepath.Join("/repo", "relative", "dir") {
		t.Errorf("relative WorktreeDir = %q", got)
	}
}

func TestJobTimeout(t *testing.T) {
	c := ExecutionConfig{JobTimeoutSeconds: 300}
	if c.JobTimeout().Seconds() != 300 {
		t.Errorf("JobTimeout() = %v, want 5m", c.JobTimeout())
	}
}
