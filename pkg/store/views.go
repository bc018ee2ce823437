package store

import (
	"context"
	"database/sql"
	"fmt"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// Pointer slots for the persisted "current" pointers.
const (
	SlotSession = "session"
	SlotPlan    = "plan"
)

// SetCurrent records the current session or plan pointer. This replaces
// process-global "active plan/session" variables with a transactional row.
func (s *Store) SetCurrent(ctx context.Context, slot, value string) error {
	if slot != SlotSession && slot != SlotPlan {
		return fmt.Errorf("set current: unknown slot %q", slot)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO current_pointer (slot, value) VALUES (?, ?)
		 ON CONFLICT (slot) DO UPDATE SET value = excluded.value`,
		slot, value)
	if err != nil {
		return fmt.Errorf("set current %s: %w", slot, err)
	}
	return nil
}

// Current reads the current pointer for a slot; empty string if unset.
func (s *Store) Current(ctx context.Context, slot string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM current_pointer WHERE slot = ?`, slot).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get current %s: %w", slot, err)
	}
	return value, nil
}

// ClearCurrent removes the pointer for a slot.
func (s *Store) ClearCurrent(ctx context.Context, slot string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM current_pointer WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("clear current %s: %w", slot, err)
	}
	return nil
}

// CurrentTask returns the in-progress task for a session, or nil. Computed
// by query so it can never drift from the task rows.
func (s *Store) CurrentTask(ctx context.Context, sessionID string) (*protocol.Task, error) {
	if err := validate.ID(sessionID, "sess"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		taskSelect+` WHERE session_id = ? AND status = ? ORDER BY updated_at DESC LIMIT 1`,
		sessionID, string(protocol.TaskInProgress))
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current task for %s: %w", sessionID, err)
	}
	return t, nil
}

// PlanCompletion holds the derived completion view of a plan.
type PlanCompletion struct {
	Total     int
	Completed int
	Failed    int
	Rate      float64 // completed / total, 0 when the plan has no tasks
}

// Completion computes a plan's completion rate from its task rows.
func (s *Store) Completion(ctx context.Context, planID string) (*PlanCompletion, error) {
	if err := validate.ID(planID, "plan"); err != nil {
		return nil, err
	}
	if err := s.requirePlan(ctx, planID); err != nil {
		return nil, err
	}

	var pc PlanCompletion
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		 FROM tasks WHERE plan_id = ?`, planID,
	).Scan(&pc.Total, &pc.Completed, &pc.Failed)
	if err != nil {
		return nil, fmt.Errorf("completion for %s: %w", planID, err)
	}
	if pc.Total > 0 {
		pc.Rate = float64(pc.Completed) / float64(pc.Total)
	}
	return &pc, nil
}
