package sandbox

import (
	"context"
	"sync"
)

// Context is a live sandbox: an isolated worktree on its own branch. It
// is handed to the agent for the duration of one job attempt and cleaned
// up afterwards. Cleanup is idempotent; only the first call performs the
// removal.
type Context struct {
	manager *Manager
	path    string
	branch  string

	cleanupOnce sync.Once
	cleanupErr  error
}

func newContext(m *Manager, path, branch string) *Context {
	return &Context{manager: m, path: path, branch: branch}
}

// Path returns the worktree directory the agent works in.
func (c *Context) Path() string {
	return c.path
}

// Branch returns the branch the sandbox was cut on.
func (c *Context) Branch() string {
	return c.branch
}

// Cleanup removes the worktree and releases the branch. Subsequent calls
// return the first call's result without touching the repository again.
func (c *Context) Cleanup(ctx context.Context) error {
	c.cleanupOnce.Do(func() {
		c.cleanupErr = c.manager.remove(ctx, c.path, c.branch)
	})
	return c.cleanupErr
}
