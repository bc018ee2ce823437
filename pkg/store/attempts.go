package store

import (
	"context"
	"fmt"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// AttemptParams holds parameters for recording a task attempt.
type AttemptParams struct {
	TaskID    string
	ModelTier protocol.Tier
	Model     string
	Outcome   string
	TokensIn  int64
	TokensOut int64
	Cost      float64
	Error     string
}

// AddAttempt appends one execution try for a task. The attempt number is
// monotonic per task and assigned inside the insert itself so concurrent
// recorders cannot collide.
func (s *Store) AddAttempt(ctx context.Context, p AttemptParams) (int, error) {
	if err := validate.ID(p.TaskID, "task"); err != nil {
		return 0, err
	}
	if _, err := validate.Tier(string(p.ModelTier)); err != nil {
		return 0, err
	}
	if _, err := validate.Model(p.Model); err != nil {
		return 0, err
	}
	if err := s.requireTask(ctx, p.TaskID); err != nil {
		return 0, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_attempts (task_id, attempt, model_tier, model, outcome,
		                            tokens_in, tokens_out, cost, error, created_at)
		 VALUES (?,
		         (SELECT COALESCE(MAX(attempt), 0) + 1 FROM task_attempts WHERE task_id = ?),
		         ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TaskID, p.TaskID, string(p.ModelTier), p.Model, p.Outcome,
		p.TokensIn, p.TokensOut, p.Cost, p.Error, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("add attempt for %s: %w", p.TaskID, err)
	}

	var attempt int
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(attempt) FROM task_attempts WHERE task_id = ?`, p.TaskID).Scan(&attempt)
	if err != nil {
		return 0, fmt.Errorf("read attempt number for %s: %w", p.TaskID, err)
	}
	return attempt, nil
}

// ListAttempts returns all attempts for a task in order.
func (s *Store) ListAttempts(ctx context.Context, taskID string) ([]protocol.TaskAttempt, error) {
	if err := validate.ID(taskID, "task"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, attempt, model_tier, model, outcome,
		        tokens_in, tokens_out, cost, error, created_at
		 FROM task_attempts WHERE task_id = ? ORDER BY attempt ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attempts for %s: %w", taskID, err)
	}
	defer rows.Close()

	var attempts []protocol.TaskAttempt
	for rows.Next() {
		var a protocol.TaskAttempt
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Attempt, &a.ModelTier, &a.Model,
			&a.Outcome, &a.TokensIn, &a.TokensOut, &a.Cost, &a.Error, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// AttemptCount returns how many attempts a task has consumed.
func (s *Store) AttemptCount(ctx context.Context, taskID string) (int, error) {
	if err := validate.ID(taskID, "task"); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_attempts WHERE task_id = ?`, taskID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts for %s: %w", taskID, err)
	}
	return count, nil
}
