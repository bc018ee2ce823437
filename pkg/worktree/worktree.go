// Package worktree provisions isolated git workspaces for plans that must
// execute while another plan holds the repository lock, and merges them
// back. Merge conflicts are enumerated and surfaced; silent overwrite is
// never permitted.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"steward/pkg/protocol"
	"steward/pkg/store"
	"steward/pkg/validate"
)

// GitRunner abstracts git command execution for testability.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (stdout string, stderr string, err error)
}

// Manager creates, removes and merges plan worktrees, recording each one in
// the store.
type Manager struct {
	repoRoot string
	git      GitRunner
	store    *store.Store
}

// NewManager returns a Manager rooted at the primary repository.
func NewManager(repoRoot string, git GitRunner, st *store.Store) *Manager {
	return &Manager{repoRoot: repoRoot, git: git, store: st}
}

// Provision creates an isolated workspace for a plan on a fresh branch:
// `git worktree add .worktrees/<name> -b steward/<name> main`. The plan name
// is validated before any filepath use to prevent traversal.
func (m *Manager) Provision(ctx context.Context, planID, planName string) (*protocol.Worktree, error) {
	if err := validate.Name(planName); err != nil {
		return nil, err
	}

	path := filepath.Join(m.repoRoot, protocol.WorktreesDir, planName)
	branch := protocol.BranchPrefix + planName

	_, stderr, err := m.git.Run(ctx, m.repoRoot, "worktree", "add", path, "-b", branch, "main")
	if err != nil {
		return nil, fmt.Errorf("worktree add %s: %w: %s", planName, err, stderr)
	}

	if _, err := m.store.InsertWorktree(ctx, planID, path, branch); err != nil {
		return nil, err
	}
	if err := m.store.LogEvent(ctx, "", "worktree_created", "worktree",
		fmt.Sprintf("plan %s isolated on branch %s", planID, branch), ""); err != nil {
		return nil, err
	}

	return m.store.ActiveWorktree(ctx, planID)
}

// Remove runs `git worktree remove <path> --force`.
func (m *Manager) Remove(ctx context.Context, path string) error {
	_, stderr, err := m.git.Run(ctx, m.repoRoot, "worktree", "remove", path, "--force")
	if err != nil {
		return fmt.Errorf("worktree remove %s: %w: %s", path, err, stderr)
	}
	return nil
}

// Prune cleans up worktree state left behind by a previous crash: git's own
// orphaned bookkeeping, plus any directory under .worktrees with no active
// worktree row backing it. Directories of active worktrees are never touched.
// Errors are swallowed; this always succeeds so startup is never blocked.
func (m *Manager) Prune(ctx context.Context) {
	_, _, _ = m.git.Run(ctx, m.repoRoot, "worktree", "prune")

	active, err := m.store.ActiveWorktreePaths(ctx)
	if err != nil {
		return
	}

	worktreesDir := filepath.Join(m.repoRoot, protocol.WorktreesDir)
	entries, err := os.ReadDir(worktreesDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(worktreesDir, entry.Name())
		if active[path] {
			continue
		}
		_ = os.RemoveAll(path)
	}
}
