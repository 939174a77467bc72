package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/errors"
)

// fakeExecutor records every command and serves canned responses keyed by
// the first matching substring of the joined command line.
type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]string // substring -> output returned with an error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{failures: make(map[string]string)}
}

func (f *fakeExecutor) failOn(substring, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[substring] = output
}

func (f *fakeExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, line)
	failures := make(map[string]string, len(f.failures))
	for k, v := range f.failures {
		failures[k] = v
	}
	f.mu.Unlock()

	for substring, output := range failures {
		if strings.Contains(line, substring) {
			return []byte(output), fmt.Errorf("exit status 128")
		}
	}
	return nil, nil
}

func (f *fakeExecutor) RunQuiet(dir string, name string, args ...string) error {
	_, err := f.Run(dir, name, args...)
	return err
}

func (f *fakeExecutor) countCalls(substring string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if strings.Contains(call, substring) {
			n++
		}
	}
	return n
}

func testManager(t *testing.T, exec CommandExecutor) *Manager {
	t.Helper()
	cfg := config.SandboxConfig{
		BranchPrefix: "contrib",
		BaseBranch:   "main",
		WorktreeDir:  t.TempDir(),
	}
	m := NewWithExecutor("/repo", cfg, exec, nil)
	t.Cleanup(m.Close)
	return m
}

func TestManager_CreateReturnsContext(t *testing.T) {
	exec := newFakeExecutor()
	m := testManager(t, exec)

	sb, err := m.Create(context.Background(), "contrib/job1-fix")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sb.Branch() != "contrib/job1-fix" {
		t.Errorf("Branch = %q, want %q", sb.Branch(), "contrib/job1-fix")
	}
	if got, want := sb.Path(), filepath.Join(m.worktreeDir, "contrib/job1-fix"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if exec.countCalls("worktree add -b contrib/job1-fix") != 1 {
		t.Errorf("expected exactly one worktree add, calls: %v", exec.calls)
	}
}

func TestManager_CreateUsesOriginBaseAfterFetch(t *testing.T) {
	exec := newFakeExecutor()
	m := testManager(t, exec)

	if _, err := m.Create(context.Background(), "contrib/job1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if exec.countCalls("fetch origin main") != 1 {
		t.Error("expected a fetch of the base branch before worktree add")
	}
	found := false
	for _, call := range exec.calls {
		if strings.Contains(call, "worktree add") && strings.HasSuffix(call, "origin/main") {
			found = true
		}
	}
	if !found {
		t.Errorf("worktree add should start from origin/main, calls: %v", exec.calls)
	}
}

func TestManager_CreateFallsBackToLocalBaseWhenFetchFails(t *testing.T) {
	exec := newFakeExecutor()
	exec.failOn("fetch origin", "could not resolve host")
	m := testManager(t, exec)

	if _, err := m.Create(context.Background(), "contrib/job1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, call := range exec.calls {
		if strings.Contains(call, "worktree add") && !strings.HasSuffix(call, " main") {
			t.Errorf("worktree add should start from local main when fetch fails, got %q", call)
		}
	}
}

func TestManager_CreateRejectsEmptyBranch(t *testing.T) {
	m := testManager(t, newFakeExecutor())

	_, err := m.Create(context.Background(), "")
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestManager_CreateRejectsBranchInUse(t *testing.T) {
	m := testManager(t, newFakeExecutor())

	if _, err := m.Create(context.Background(), "contrib/job1"); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := m.Create(context.Background(), "contrib/job1")
	if !errors.Is(err, errors.ErrBranchInUse) {
		t.Errorf("expected ErrBranchInUse, got %v", err)
	}
}

func TestManager_CreateDetectsExistingBranchFromGit(t *testing.T) {
	exec := newFakeExecutor()
	exec.failOn("worktree add", "fatal: a branch named 'contrib/job1' already exists")
	m := testManager(t, exec)

	_, err := m.Create(context.Background(), "contrib/job1")
	if !errors.Is(err, errors.ErrBranchInUse) {
		t.Errorf("expected ErrBranchInUse, got %v", err)
	}
}

func TestManager_FailedCreateReleasesBranch(t *testing.T) {
	exec := newFakeExecutor()
	exec.failOn("worktree add", "disk full")
	m := testManager(t, exec)

	if _, err := m.Create(context.Background(), "contrib/job1"); err == nil {
		t.Fatal("expected Create to fail")
	}

	// The branch must be claimable again once the failed create unwinds.
	exec.failures = map[string]string{}
	if _, err := m.Create(context.Background(), "contrib/job1"); err != nil {
		t.Errorf("branch should be free after failed create, got %v", err)
	}
}

func TestContext_CleanupIsIdempotent(t *testing.T) {
	exec := newFakeExecutor()
	m := testManager(t, exec)

	sb, err := m.Create(context.Background(), "contrib/job1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := sb.Cleanup(context.Background()); err != nil {
		t.Fatalf("first Cleanup failed: %v", err)
	}
	if err := sb.Cleanup(context.Background()); err != nil {
		t.Fatalf("second Cleanup failed: %v", err)
	}
	if got := exec.countCalls("worktree remove"); got != 1 {
		t.Errorf("worktree remove ran %d times, want 1", got)
	}
}

func TestContext_CleanupFreesBranchForReuse(t *testing.T) {
	exec := newFakeExecutor()
	m := testManager(t, exec)

	sb, err := m.Create(context.Background(), "contrib/job1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := sb.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := m.Create(context.Background(), "contrib/job1"); err != nil {
		t.Errorf("branch should be reusable after cleanup, got %v", err)
	}
}

func TestContext_CleanupPrunesEvenWhenRemoveFails(t *testing.T) {
	exec := newFakeExecutor()
	exec.failOn("worktree remove", "worktree is locked")
	m := testManager(t, exec)

	sb, err := m.Create(context.Background(), "contrib/job1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := sb.Cleanup(context.Background()); err == nil {
		t.Error("expected Cleanup to report the removal failure")
	}
	if exec.countCalls("worktree prune") != 1 {
		t.Error("expected a prune after the failed remove")
	}
	// The error is sticky across calls but never re-runs the removal.
	if err := sb.Cleanup(context.Background()); err == nil {
		t.Error("second Cleanup should return the recorded failure")
	}
	if got := exec.countCalls("worktree remove"); got != 1 {
		t.Errorf("worktree remove ran %d times, want 1", got)
	}
}

func TestManager_FailedOpDoesNotBlockQueue(t *testing.T) {
	exec := newFakeExecutor()
	exec.failOn("worktree add -b contrib/bad", "disk full")
	m := testManager(t, exec)

	if _, err := m.Create(context.Background(), "contrib/bad"); err == nil {
		t.Fatal("expected first Create to fail")
	}
	if _, err := m.Create(context.Background(), "contrib/good"); err != nil {
		t.Errorf("queue should admit the next op after a failure, got %v", err)
	}
}

func TestManager_ChangedFiles(t *testing.T) {
	exec := newFakeExecutor()
	m := testManager(t, exec)

	// fakeExecutor returns empty output, so no files.
	files, err := m.ChangedFiles("/wt")
	if err != nil {
		t.Fatalf("ChangedFiles failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files, got %v", files)
	}
	if exec.countCalls("diff --name-only main...HEAD") != 1 {
		t.Errorf("expected a diff against the base branch, calls: %v", exec.calls)
	}
}

func TestManager_CommitAllNothingToCommit(t *testing.T) {
	exec := newFakeExecutor()
	exec.failOn("commit -m", "nothing to commit, working tree clean")
	m := testManager(t, exec)

	if err := m.CommitAll("/wt", "update"); err != nil {
		t.Errorf("nothing-to-commit should not be an error, got %v", err)
	}
}

func TestFindGitRoot_NotARepository(t *testing.T) {
	_, err := FindGitRoot(t.TempDir())
	if !errors.Is(err, errors.ErrNotGitRepository) {
		t.Errorf("expected ErrNotGitRepository, got %v", err)
	}
}
