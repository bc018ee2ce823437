// Package baseline creates tagged recovery points and reverts to them.
// Rollback first captures a safety baseline of the current state, so a
// rollback is itself reversible.
package baseline

import (
	"context"
	"fmt"
	"strings"

	"steward/pkg/protocol"
	"steward/pkg/store"
)

// GitRunner abstracts git command execution for testability.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (stdout string, stderr string, err error)
}

// Manager creates, inspects, restores and prunes baselines.
type Manager struct {
	repoRoot string
	git      GitRunner
	store    *store.Store
}

// NewManager returns a baseline Manager rooted at the repository.
func NewManager(repoRoot string, git GitRunner, st *store.Store) *Manager {
	return &Manager{repoRoot: repoRoot, git: git, store: st}
}

// Create tags the current HEAD as a named recovery point.
func (m *Manager) Create(ctx context.Context, label, metadata string) (*protocol.Baseline, error) {
	sha, stderr, err := m.git.Run(ctx, m.repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("rev-parse HEAD: %w: %s", err, stderr)
	}
	sha = strings.TrimSpace(sha)

	id := protocol.NewID("base")
	tag := protocol.BaselineTagPrefix + id

	if _, stderr, err = m.git.Run(ctx, m.repoRoot, "tag", tag, sha); err != nil {
		return nil, fmt.Errorf("tag %s: %w: %s", tag, err, stderr)
	}

	b := protocol.Baseline{ID: id, Label: label, Tag: tag, CommitSHA: sha, Metadata: metadata}
	if err := m.store.InsertBaseline(ctx, b); err != nil {
		// Roll the tag back so git and the store stay consistent.
		_, _, _ = m.git.Run(ctx, m.repoRoot, "tag", "-d", tag)
		return nil, err
	}

	if err := m.store.LogEvent(ctx, "", "baseline_created", "baseline",
		fmt.Sprintf("baseline %s (%s) at %s", id, label, sha), ""); err != nil {
		return nil, err
	}
	return m.store.GetBaseline(ctx, id)
}

// Rollback restores the working tree to a baseline. The current state is
// captured as a safety baseline first and returned alongside, so the
// rollback can be undone by rolling back to the safety point.
func (m *Manager) Rollback(ctx context.Context, id string) (restored, safety *protocol.Baseline, err error) {
	target, err := m.store.GetBaseline(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	safety, err = m.Create(ctx, "pre-rollback-"+id, "")
	if err != nil {
		return nil, nil, fmt.Errorf("create safety baseline: %w", err)
	}

	if _, stderr, err := m.git.Run(ctx, m.repoRoot, "reset", "--hard", target.CommitSHA); err != nil {
		return nil, nil, fmt.Errorf("reset to %s: %w: %s", target.CommitSHA, err, stderr)
	}

	if err := m.store.LogEvent(ctx, "", "rollback", "baseline",
		fmt.Sprintf("rolled back to baseline %s; safety point %s", id, safety.ID), ""); err != nil {
		return nil, nil, err
	}
	return target, safety, nil
}

// Diff summarizes what changed between a baseline and the current HEAD as
// git name-status lines.
func (m *Manager) Diff(ctx context.Context, id string) (string, error) {
	b, err := m.store.GetBaseline(ctx, id)
	if err != nil {
		return "", err
	}
	stdout, stderr, err := m.git.Run(ctx, m.repoRoot, "diff", "--name-status", b.CommitSHA, "HEAD")
	if err != nil {
		return "", fmt.Errorf("diff %s: %w: %s", id, err, stderr)
	}
	return strings.TrimSpace(stdout), nil
}

// Prune retains the keep most recent baselines by creation time and removes
// the rest, deleting their git tags alongside the rows. The most recent
// baseline survives even when keep is zero.
func (m *Manager) Prune(ctx context.Context, keep int) (removed int, err error) {
	baselines, err := m.store.ListBaselines(ctx)
	if err != nil {
		return 0, err
	}

	if keep < 1 {
		keep = 1
	}
	if len(baselines) <= keep {
		return 0, nil
	}

	for _, b := range baselines[keep:] {
		if _, stderr, err := m.git.Run(ctx, m.repoRoot, "tag", "-d", b.Tag); err != nil {
			return removed, fmt.Errorf("delete tag %s: %w: %s", b.Tag, err, stderr)
		}
		if err := m.store.DeleteBaseline(ctx, b.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if err := m.store.LogEvent(ctx, "", "baseline_pruned", "baseline",
		fmt.Sprintf("pruned %d baseline(s), kept %d", removed, keep), ""); err != nil {
		return removed, err
	}
	return removed, nil
}
