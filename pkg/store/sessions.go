package store

import (
	"context"
	"database/sql"
	"fmt"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// CreateSession inserts a new running session and returns it.
func (s *Store) CreateSession(ctx context.Context, command, sessionType string) (*protocol.Session, error) {
	id := protocol.NewID("sess")

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, command, type, status, phase, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, command, sessionType, string(protocol.SessionRunning), string(protocol.PhaseInit), s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return s.GetSession(ctx, id)
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*protocol.Session, error) {
	if err := validate.ID(id, "sess"); err != nil {
		return nil, err
	}

	var sess protocol.Session
	var endedAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, command, type, status, phase, model_tier,
		        consecutive_failures, iterations, started_at, ended_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Command, &sess.Type, &sess.Status, &sess.Phase,
		&sess.ModelTier, &sess.ConsecutiveFailures, &sess.Iterations,
		&sess.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, &protocol.NotFoundError{Kind: "session", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.EndedAt = endedAt.String
	return &sess, nil
}

// EndSession terminates a session exactly once. Ending an already-terminated
// session is a no-op returning the stored row unchanged (idempotent end).
func (s *Store) EndSession(ctx context.Context, id string, status protocol.SessionStatus) (*protocol.Session, error) {
	if err := validate.ID(id, "sess"); err != nil {
		return nil, err
	}
	if _, err := validate.TerminalSessionStatus(string(status)); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, phase = ?, ended_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), string(protocol.PhaseDone), s.timestamp(), id, string(protocol.SessionRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either already ended (idempotent) or missing; GetSession tells which.
		return s.GetSession(ctx, id)
	}
	return s.GetSession(ctx, id)
}

// SetSessionPhase transitions a session to the given phase.
func (s *Store) SetSessionPhase(ctx context.Context, id string, phase protocol.Phase) error {
	if err := validate.ID(id, "sess"); err != nil {
		return err
	}
	if _, err := validate.Phase(string(phase)); err != nil {
		return err
	}
	return s.setField(ctx, validate.FieldSessionPhase, id, string(phase))
}

// SetSessionTier records the session's current model tier.
func (s *Store) SetSessionTier(ctx context.Context, id string, tier protocol.Tier) error {
	if err := validate.ID(id, "sess"); err != nil {
		return err
	}
	if _, err := validate.Tier(string(tier)); err != nil {
		return err
	}
	return s.setField(ctx, validate.FieldSessionTier, id, string(tier))
}

// RecordFailure increments the session's consecutive-failure counter and
// returns the new count.
func (s *Store) RecordFailure(ctx context.Context, id string) (int, error) {
	if err := validate.ID(id, "sess"); err != nil {
		return 0, err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET consecutive_failures = consecutive_failures + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("record failure on %s: %w", id, err)
	}
	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT consecutive_failures FROM sessions WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("read failure count on %s: %w", id, err)
	}
	return count, nil
}

// ResetFailures zeroes the consecutive-failure counter after a success.
func (s *Store) ResetFailures(ctx context.Context, id string) error {
	if err := validate.ID(id, "sess"); err != nil {
		return err
	}
	return s.setField(ctx, validate.FieldSessionFailures, id, 0)
}

// BumpIterations increments the session iteration counter.
func (s *Store) BumpIterations(ctx context.Context, id string) error {
	if err := validate.ID(id, "sess"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET iterations = iterations + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("bump iterations on %s: %w", id, err)
	}
	return nil
}

// setField performs a generic single-column update restricted to the
// settable-field allow-list. The column name comes from the closed enum in
// pkg/validate, never from caller input.
func (s *Store) setField(ctx context.Context, field validate.Field, id string, value any) error {
	table, column, err := validate.Column(field)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, column)
	res, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("set %s on %s: %w", field, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &protocol.NotFoundError{Kind: table, ID: id}
	}
	return nil
}
