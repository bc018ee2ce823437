// Package store provides durable CRUD over the steward data model in SQLite.
// Every write validates its inputs through pkg/validate before touching
// storage, and referential integrity (task->plan, attempt->task,
// event->session) is enforced at write time with typed errors. Aggregate
// views are computed by derived queries, never maintained counters, so they
// are always consistent with the underlying rows.
//
// If the database is unavailable every method returns the error unchanged;
// callers are expected to fail closed rather than guess at state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"steward/pkg/protocol"
)

// Store manages the steward orchestration tables in SQLite.
type Store struct {
	db *sql.DB

	// now is swappable for tests that need deterministic timestamps.
	now func() time.Time
}

// New creates a Store backed by the given SQLite database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying handle for components that share the
// connection (scheduler file locks run in the same transactions).
func (s *Store) DB() *sql.DB {
	return s.db
}

// timestamp returns the current UTC time in the stored layout.
func (s *Store) timestamp() string {
	return s.now().UTC().Format(protocol.TimeLayout)
}

// exists reports whether a row with the given id exists in table.
// The table name is always a compile-time constant at call sites.
func (s *Store) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", table, id, err)
	}
	return true, nil
}

// requireSession returns a NotFoundError unless the session exists.
func (s *Store) requireSession(ctx context.Context, id string) error {
	ok, err := s.exists(ctx, "sessions", id)
	if err != nil {
		return err
	}
	if !ok {
		return &protocol.NotFoundError{Kind: "session", ID: id}
	}
	return nil
}

// requirePlan returns a NotFoundError unless the plan exists.
func (s *Store) requirePlan(ctx context.Context, id string) error {
	ok, err := s.exists(ctx, "plans", id)
	if err != nil {
		return err
	}
	if !ok {
		return &protocol.NotFoundError{Kind: "plan", ID: id}
	}
	return nil
}

// requireTask returns a NotFoundError unless the task exists.
func (s *Store) requireTask(ctx context.Context, id string) error {
	ok, err := s.exists(ctx, "tasks", id)
	if err != nil {
		return err
	}
	if !ok {
		return &protocol.NotFoundError{Kind: "task", ID: id}
	}
	return nil
}
