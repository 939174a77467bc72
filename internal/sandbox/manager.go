// Package sandbox provisions isolated git worktrees for agent jobs.
//
// A Manager is scoped to one repository. All operations that mutate the
// repository's shared worktree metadata (worktree add, remove, prune) are
// funneled through a per-repository FIFO queue so concurrent jobs never
// race on git's worktree bookkeeping. Operations confined to a single
// worktree's own directory run without serialization.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/errors"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
)

// FindGitRoot finds the root of the git repository by traversing up from
// startDir. It returns the directory containing .git (a directory for a
// normal repo, a file for a worktree).
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.ErrNotGitRepository
		}
		dir = parent
	}
}

// Manager provisions and tears down sandboxes for a single repository.
type Manager struct {
	repoRoot    string
	worktreeDir string
	cfg         config.SandboxConfig
	executor    CommandExecutor
	queue       *serialQueue
	logger      *logging.Logger

	mu       sync.Mutex
	branches map[string]struct{}
}

// New creates a Manager rooted at the git repository containing repoDir.
func New(repoDir string, cfg config.SandboxConfig, logger *logging.Logger) (*Manager, error) {
	root, err := FindGitRoot(repoDir)
	if err != nil {
		return nil, errors.NewSandboxError("not inside a git repository", err).
			WithRepository(repoDir)
	}
	return NewWithExecutor(root, cfg, NewCLICommandExecutor(), logger), nil
}

// NewWithExecutor creates a Manager with a custom command executor. The
// repoRoot is trusted to be a repository root. This is primarily useful
// for testing.
func NewWithExecutor(repoRoot string, cfg config.SandboxConfig, executor CommandExecutor, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		repoRoot:    repoRoot,
		worktreeDir: cfg.ResolveWorktreeDir(repoRoot),
		cfg:         cfg,
		executor:    executor,
		queue:       newSerialQueue(),
		logger:      logger,
		branches:    make(map[string]struct{}),
	}
}

// RepoRoot returns the repository root the manager is scoped to.
func (m *Manager) RepoRoot() string {
	return m.repoRoot
}

// Create provisions a fresh worktree on a new branch cut from the
// configured base branch. The branch name must be unused; a second
// sandbox on the same branch is rejected with ErrBranchInUse.
func (m *Manager) Create(ctx context.Context, branch string) (*Context, error) {
	if branch == "" {
		return nil, errors.NewSandboxError("branch name is empty", errors.ErrInvalidInput).
			WithRepository(m.repoRoot)
	}

	if err := m.claimBranch(branch); err != nil {
		return nil, err
	}

	path := filepath.Join(m.worktreeDir, branch)
	err := m.queue.Do(ctx, func() error {
		return m.addWorktree(path, branch)
	})
	if err != nil {
		m.releaseBranch(branch)
		return nil, err
	}

	m.logger.Debug("sandbox created", "branch", branch, "path", path)
	return newContext(m, path, branch), nil
}

// addWorktree runs on the serial queue. It refreshes the base branch from
// the remote when one exists, then creates the worktree and branch in a
// single git invocation.
func (m *Manager) addWorktree(path, branch string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewSandboxError("failed to prepare worktree directory", err).
			WithRepository(m.repoRoot).
			WithBranch(branch)
	}

	base := m.cfg.BaseBranch
	startPoint := base
	// A fetch failure is tolerated so offline repositories still work;
	// the worktree then starts from the local base branch.
	if err := m.executor.RunQuiet(m.repoRoot, "git", "fetch", "origin", base); err == nil {
		startPoint = "origin/" + base
	}

	output, err := m.executor.Run(m.repoRoot, "git", "worktree", "add", "-b", branch, path, startPoint)
	if err != nil {
		if strings.Contains(string(output), "already exists") {
			return errors.NewSandboxError("branch already exists", errors.ErrBranchInUse).
				WithRepository(m.repoRoot).
				WithBranch(branch).
				WithGitOutput(string(output))
		}
		return errors.NewSandboxError("failed to create worktree", err).
			WithRepository(m.repoRoot).
			WithBranch(branch).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return nil
}

// remove runs the worktree removal on the serial queue followed by a
// best-effort prune. Called from Context.Cleanup exactly once.
func (m *Manager) remove(ctx context.Context, path, branch string) error {
	defer m.releaseBranch(branch)

	err := m.queue.Do(ctx, func() error {
		output, rmErr := m.executor.Run(m.repoRoot, "git", "worktree", "remove", "--force", path)
		if rmErr != nil {
			// Fall back to removing the directory so a broken worktree
			// does not leak disk, then let prune fix the metadata.
			_ = os.RemoveAll(path)
		}

		_ = m.executor.RunQuiet(m.repoRoot, "git", "worktree", "prune")

		if rmErr != nil {
			return errors.NewSandboxError("failed to remove worktree cleanly", rmErr).
				WithRepository(m.repoRoot).
				WithBranch(branch).
				WithWorktree(path).
				WithGitOutput(string(output))
		}
		return nil
	})
	if err != nil {
		m.logger.Warn("sandbox cleanup failed", "branch", branch, "path", path, "error", err)
		return err
	}

	m.logger.Debug("sandbox removed", "branch", branch, "path", path)
	return nil
}

// List returns the paths of all worktrees registered in the repository.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := m.queue.Do(ctx, func() error {
		output, err := m.executor.Run(m.repoRoot, "git", "worktree", "list", "--porcelain")
		if err != nil {
			return errors.NewSandboxError("failed to list worktrees", err).
				WithRepository(m.repoRoot).
				WithGitOutput(string(output))
		}
		for _, line := range strings.Split(string(output), "\n") {
			if strings.HasPrefix(line, "worktree ") {
				paths = append(paths, strings.TrimPrefix(line, "worktree "))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Close stops the manager's queue. Outstanding sandboxes keep working for
// operations inside their own directories, but no further worktree
// metadata mutations are admitted.
func (m *Manager) Close() {
	m.queue.Close()
}

func (m *Manager) claimBranch(branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.branches[branch]; taken {
		return errors.NewSandboxError(
			fmt.Sprintf("branch %q already has an active sandbox", branch),
			errors.ErrBranchInUse,
		).WithRepository(m.repoRoot).WithBranch(branch)
	}
	m.branches[branch] = struct{}{}
	return nil
}

func (m *Manager) releaseBranch(branch string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.branches, branch)
}

// -----------------------------------------------------------------------------
// Per-worktree git operations
// -----------------------------------------------------------------------------

// HasUncommittedChanges reports whether the worktree at path has any
// staged or unstaged changes.
func (m *Manager) HasUncommittedChanges(path string) (bool, error) {
	output, err := m.executor.Run(path, "git", "status", "--porcelain")
	if err != nil {
		return false, errors.NewSandboxError("failed to check git status", err).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// CommitAll stages and commits all changes in the worktree at path.
// Returns nil if there is nothing to commit.
func (m *Manager) CommitAll(path, message string) error {
	output, err := m.executor.Run(path, "git", "add", "-A")
	if err != nil {
		return errors.NewSandboxError("failed to stage changes", err).
			WithWorktree(path).
			WithGitOutput(string(output))
	}

	output, err = m.executor.Run(path, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return errors.NewSandboxError("failed to commit changes", err).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return nil
}

// ChangedFiles returns the files that differ between the worktree's
// branch and the base branch.
func (m *Manager) ChangedFiles(path string) ([]string, error) {
	output, err := m.executor.Run(path, "git", "diff", "--name-only", m.cfg.BaseBranch+"...HEAD")
	if err != nil {
		return nil, errors.NewSandboxError("failed to list changed files", err).
			WithWorktree(path).
			WithGitOutput(string(output))
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// Push pushes the worktree's branch to origin.
func (m *Manager) Push(path, branch string) error {
	output, err := m.executor.Run(path, "git", "push", "-u", "origin", branch)
	if err != nil {
		return errors.NewSandboxError("failed to push branch", err).
			WithWorktree(path).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}
