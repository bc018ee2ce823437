package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// --- File locks (scheduler-round scoped) ---

// AcquireFileLocks claims every path for the task in one transaction.
// If any path is already locked by another task, nothing is claimed and the
// holder of the first contested path is returned.
func (s *Store) AcquireFileLocks(ctx context.Context, taskID string, paths []string) (conflictPath, holder string, err error) {
	if err := validate.ID(taskID, "task"); err != nil {
		return "", "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("begin lock tx: %w", err)
	}
	defer tx.Rollback()

	for _, path := range paths {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT task_id FROM file_locks WHERE path = ?`, path).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			// free
		case err != nil:
			return "", "", fmt.Errorf("check file lock %s: %w", path, err)
		case existing != taskID:
			return path, existing, nil
		default:
			continue // already ours
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_locks (path, task_id, locked_at) VALUES (?, ?, ?)`,
			path, taskID, s.timestamp()); err != nil {
			return "", "", fmt.Errorf("insert file lock %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("commit lock tx: %w", err)
	}
	return "", "", nil
}

// ReleaseFileLocks drops every file lock held by the task.
func (s *Store) ReleaseFileLocks(ctx context.Context, taskID string) error {
	if err := validate.ID(taskID, "task"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM file_locks WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("release file locks for %s: %w", taskID, err)
	}
	return nil
}

// HeldFileLocks returns the current file-lock table as path -> task id.
func (s *Store) HeldFileLocks(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, task_id FROM file_locks`)
	if err != nil {
		return nil, fmt.Errorf("list file locks: %w", err)
	}
	defer rows.Close()

	held := make(map[string]string)
	for rows.Next() {
		var path, taskID string
		if err := rows.Scan(&path, &taskID); err != nil {
			return nil, fmt.Errorf("scan file lock: %w", err)
		}
		held[path] = taskID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file locks: %w", err)
	}
	return held, nil
}

// --- Plan locks ---

// InsertPlanLock attempts the atomic create-if-absent that grants exclusive
// execution rights over a plan. Returns false when a lock row already exists
// (contended); the caller decides whether the existing lock is reclaimable.
func (s *Store) InsertPlanLock(ctx context.Context, lock protocol.PlanLock) (bool, error) {
	if err := validate.ID(lock.PlanID, "plan"); err != nil {
		return false, err
	}
	if err := validate.Name(lock.Holder); err != nil {
		return false, err
	}
	if err := s.requirePlan(ctx, lock.PlanID); err != nil {
		return false, err
	}

	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO plan_locks (plan_id, holder, pid, host, acquired_at, heartbeat_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (plan_id) DO NOTHING`,
		lock.PlanID, lock.Holder, lock.PID, lock.Host, now, now, lock.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert plan lock %s: %w", lock.PlanID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("plan lock rows affected: %w", err)
	}
	return n == 1, nil
}

// GetPlanLock fetches the lock row for a plan, or nil if unlocked.
func (s *Store) GetPlanLock(ctx context.Context, planID string) (*protocol.PlanLock, error) {
	if err := validate.ID(planID, "plan"); err != nil {
		return nil, err
	}

	var l protocol.PlanLock
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_id, holder, pid, host, acquired_at, heartbeat_at, expires_at
		 FROM plan_locks WHERE plan_id = ?`, planID,
	).Scan(&l.PlanID, &l.Holder, &l.PID, &l.Host, &l.AcquiredAt, &l.HeartbeatAt, &l.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan lock %s: %w", planID, err)
	}
	return &l, nil
}

// DeletePlanLock removes a lock row. When holder is non-empty only that
// holder's row is removed, so a release cannot clobber a reclaimed lock.
func (s *Store) DeletePlanLock(ctx context.Context, planID, holder string) (bool, error) {
	if err := validate.ID(planID, "plan"); err != nil {
		return false, err
	}

	var res sql.Result
	var err error
	if holder == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM plan_locks WHERE plan_id = ?`, planID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM plan_locks WHERE plan_id = ? AND holder = ?`, planID, holder)
	}
	if err != nil {
		return false, fmt.Errorf("delete plan lock %s: %w", planID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TouchPlanLock refreshes the heartbeat on a held lock.
func (s *Store) TouchPlanLock(ctx context.Context, planID, holder string) error {
	if err := validate.ID(planID, "plan"); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE plan_locks SET heartbeat_at = ? WHERE plan_id = ? AND holder = ?`,
		s.timestamp(), planID, holder)
	if err != nil {
		return fmt.Errorf("touch plan lock %s: %w", planID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &protocol.NotFoundError{Kind: "plan lock", ID: planID}
	}
	return nil
}

// FormatExpiry renders an absolute expiry timestamp d from now, in the
// stored layout.
func (s *Store) FormatExpiry(d time.Duration) string {
	return s.now().UTC().Add(d).Format(protocol.TimeLayout)
}
