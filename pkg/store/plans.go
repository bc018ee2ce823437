package store

import (
	"context"
	"database/sql"
	"fmt"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// CreatePlan inserts a new plan. Feature and enhancement plans reference a
// parent project plan, which must exist.
func (s *Store) CreatePlan(ctx context.Context, name, planType, parentID string) (*protocol.Plan, error) {
	if err := validate.Name(name); err != nil {
		return nil, err
	}
	if parentID != "" {
		if err := validate.ID(parentID, "plan"); err != nil {
			return nil, err
		}
		if err := s.requirePlan(ctx, parentID); err != nil {
			return nil, err
		}
	}

	id := protocol.NewID("plan")
	var parent any
	if parentID != "" {
		parent = parentID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (id, name, type, parent_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, name, planType, parent, s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("create plan %s: %w", name, err)
	}

	return s.GetPlan(ctx, id)
}

// GetPlan fetches a plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*protocol.Plan, error) {
	if err := validate.ID(id, "plan"); err != nil {
		return nil, err
	}
	return s.scanPlan(s.db.QueryRowContext(ctx, planSelect+" WHERE id = ?", id), id)
}

// GetPlanByName fetches a plan by its unique name.
func (s *Store) GetPlanByName(ctx context.Context, name string) (*protocol.Plan, error) {
	if err := validate.Name(name); err != nil {
		return nil, err
	}
	return s.scanPlan(s.db.QueryRowContext(ctx, planSelect+" WHERE name = ?", name), name)
}

// SetPlanStatus updates a plan's status.
func (s *Store) SetPlanStatus(ctx context.Context, id, status string) error {
	if err := validate.ID(id, "plan"); err != nil {
		return err
	}
	return s.setField(ctx, validate.FieldPlanStatus, id, status)
}

const planSelect = `SELECT id, name, type, parent_id, status, sprints_total, sprints_done, created_at FROM plans`

func (s *Store) scanPlan(row *sql.Row, key string) (*protocol.Plan, error) {
	var p protocol.Plan
	var parent sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Type, &parent, &p.Status,
		&p.SprintsTotal, &p.SprintsDone, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &protocol.NotFoundError{Kind: "plan", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", key, err)
	}
	p.ParentID = parent.String
	return &p, nil
}
