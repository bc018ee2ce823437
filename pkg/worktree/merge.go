package worktree

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"steward/pkg/protocol"
)

// Resolution selects what happens to a completed worktree.
type Resolution string

// Resolution constants.
const (
	// ResolveMerge rebases the branch onto main and fast-forward merges
	// it — the conflict-free fast path.
	ResolveMerge Resolution = "merge"

	// ResolveHandoff pushes the branch for external review and leaves the
	// workspace in place.
	ResolveHandoff Resolution = "handoff"

	// ResolveDefer keeps the workspace untouched for a later decision.
	ResolveDefer Resolution = "defer"
)

// MergeResult holds the outcome of a successful merge.
type MergeResult struct {
	CommitSHA string
}

// Merger serializes rebase-merge operations behind a mutex so only one
// merge runs at a time, preventing main from moving mid-rebase.
type Merger struct {
	mu    sync.Mutex
	git   GitRunner
	store storeLogger
}

// storeLogger is the slice of the store the Merger needs.
type storeLogger interface {
	LogEvent(ctx context.Context, sessionID, evType, category, message, payload string) error
}

// NewMerger creates a Merger with the given GitRunner.
func NewMerger(git GitRunner, st storeLogger) *Merger {
	return &Merger{git: git, store: st}
}

// Merge performs a sequential rebase then fast-forward merge:
//  1. git rebase main <branch> (in the worktree)
//  2. if clean: git worktree remove, then git merge --ff-only in the
//     primary repo, which lands identical commit SHAs on main
//  3. if conflict: git rebase --abort, return *protocol.ConflictError
//     with every conflicting file enumerated — the workspace is preserved
func (m *Merger) Merge(ctx context.Context, repoRoot, planID string, wt protocol.Worktree) (*MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, stderr, err := m.git.Run(ctx, wt.Path, "rebase", "main", wt.Branch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("merge cancelled: %w", ctx.Err())
		}
		// Abort is best-effort; the conflict error is returned regardless.
		_, _, _ = m.git.Run(ctx, wt.Path, "rebase", "--abort")
		conflict := &protocol.ConflictError{PlanID: planID, Files: parseConflictFiles(stderr)}
		_ = m.store.LogEvent(ctx, "", "merge_conflict", "worktree", conflict.Error(), "")
		return nil, conflict
	}

	if _, stderr, err = m.git.Run(ctx, repoRoot, "worktree", "remove", wt.Path); err != nil {
		return nil, fmt.Errorf("worktree remove failed (branch %s intact): %w: %s", wt.Branch, err, stderr)
	}

	if _, stderr, err = m.git.Run(ctx, repoRoot, "merge", "--ff-only", wt.Branch); err != nil {
		return nil, fmt.Errorf("ff-only merge of %s failed (main may have moved; retry rebase): %w: %s", wt.Branch, err, stderr)
	}

	stdout, _, err := m.git.Run(ctx, repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("rev-parse HEAD: %w", err)
	}

	_ = m.store.LogEvent(ctx, "", "worktree_merged", "worktree",
		fmt.Sprintf("branch %s merged for plan %s", wt.Branch, planID), "")
	return &MergeResult{CommitSHA: strings.TrimSpace(stdout)}, nil
}

// Handoff pushes the worktree branch for external review, leaving the
// workspace in place.
func (m *Merger) Handoff(ctx context.Context, planID string, wt protocol.Worktree) error {
	if _, stderr, err := m.git.Run(ctx, wt.Path, "push", "-u", "origin", wt.Branch); err != nil {
		return fmt.Errorf("push %s: %w: %s", wt.Branch, err, stderr)
	}
	return m.store.LogEvent(ctx, "", "worktree_handoff", "worktree",
		fmt.Sprintf("branch %s pushed for review, plan %s", wt.Branch, planID), "")
}

// conflictPattern matches git's CONFLICT output lines, e.g.
// "CONFLICT (content): Merge conflict in src/main.go".
var conflictPattern = regexp.MustCompile(`CONFLICT \([^)]+\): Merge conflict in (.+)`)

// parseConflictFiles extracts file paths from git rebase stderr output.
func parseConflictFiles(stderr string) []string {
	matches := conflictPattern.FindAllStringSubmatch(stderr, -1)
	if len(matches) == 0 {
		return nil
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, strings.TrimSpace(m[1]))
	}
	return files
}
