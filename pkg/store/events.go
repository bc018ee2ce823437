package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"steward/pkg/protocol"
)

// LogEvent appends an audit record. sessionID may be empty for events that
// precede any session (e.g. lock reclamation by a fresh controller); when
// set, the session must exist.
func (s *Store) LogEvent(ctx context.Context, sessionID, evType, category, message, payload string) error {
	var sid any
	if sessionID != "" {
		if err := s.requireSession(ctx, sessionID); err != nil {
			return err
		}
		sid = sessionID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (session_id, type, category, message, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sid, evType, category, message, payload, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("log event %s: %w", evType, err)
	}
	return nil
}

// EventQuery specifies filter criteria for querying events.
type EventQuery struct {
	SessionID string
	Type      string
	Category  string
	Limit     int
}

// QueryEvents retrieves events matching the filter, newest first.
func (s *Store) QueryEvents(ctx context.Context, q EventQuery) ([]protocol.Event, error) {
	query, args := buildEventQuery(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []protocol.Event
	for rows.Next() {
		var e protocol.Event
		var sid sql.NullString
		if err := rows.Scan(&e.ID, &sid, &e.Type, &e.Category, &e.Message,
			&e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.SessionID = sid.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// buildEventQuery constructs the SQL query and arguments from EventQuery.
func buildEventQuery(q EventQuery) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, session_id, type, category, message, payload, created_at FROM events WHERE 1=1"

	if q.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, q.Type)
	}
	if q.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, q.Category)
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	return query, args
}

// AddEscalation appends a model-tier transition record.
func (s *Store) AddEscalation(ctx context.Context, sessionID string, from, to protocol.Tier, reason string) error {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escalations (session_id, from_tier, to_tier, reason, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(from), string(to), reason, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("add escalation: %w", err)
	}
	return nil
}

// ListEscalations returns all tier transitions for a session in order.
func (s *Store) ListEscalations(ctx context.Context, sessionID string) ([]protocol.Escalation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, from_tier, to_tier, reason, created_at
		 FROM escalations WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var out []protocol.Escalation
	for rows.Next() {
		var e protocol.Escalation
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FromTier, &e.ToTier,
			&e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return out, nil
}
