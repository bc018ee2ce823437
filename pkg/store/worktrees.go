package store

import (
	"context"
	"database/sql"
	"fmt"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// InsertWorktree records a newly provisioned workspace for a plan.
func (s *Store) InsertWorktree(ctx context.Context, planID, path, branch string) (int64, error) {
	if err := validate.ID(planID, "plan"); err != nil {
		return 0, err
	}
	if err := s.requirePlan(ctx, planID); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO worktrees (plan_id, path, branch, status, created_at)
		 VALUES (?, ?, ?, 'active', ?)`,
		planID, path, branch, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert worktree for %s: %w", planID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("worktree last insert id: %w", err)
	}
	return id, nil
}

// ActiveWorktree returns the active worktree for a plan, or nil.
func (s *Store) ActiveWorktree(ctx context.Context, planID string) (*protocol.Worktree, error) {
	if err := validate.ID(planID, "plan"); err != nil {
		return nil, err
	}

	var w protocol.Worktree
	var merged int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, plan_id, path, branch, status, merged, created_at
		 FROM worktrees WHERE plan_id = ? AND status = 'active'
		 ORDER BY id DESC LIMIT 1`, planID,
	).Scan(&w.ID, &w.PlanID, &w.Path, &w.Branch, &w.Status, &merged, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get worktree for %s: %w", planID, err)
	}
	w.Merged = merged != 0
	return &w, nil
}

// ActiveWorktreePaths returns the filesystem paths of every active worktree,
// keyed for membership checks. Cleanup must not touch these.
func (s *Store) ActiveWorktreePaths(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM worktrees WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("list active worktrees: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan worktree path: %w", err)
		}
		paths[p] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate worktree paths: %w", err)
	}
	return paths, nil
}

// CompleteWorktree marks a worktree completed, recording whether its branch
// was merged back.
func (s *Store) CompleteWorktree(ctx context.Context, id int64, merged bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE worktrees SET status = 'completed', merged = ? WHERE id = ?`,
		boolToInt(merged), id)
	if err != nil {
		return fmt.Errorf("complete worktree %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &protocol.NotFoundError{Kind: "worktree", ID: fmt.Sprintf("%d", id)}
	}
	return nil
}
