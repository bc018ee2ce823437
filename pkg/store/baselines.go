package store

import (
	"context"
	"database/sql"
	"fmt"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// InsertBaseline records a new recovery point. Baselines are immutable:
// there is no update path, only insert, query and delete-under-retention.
func (s *Store) InsertBaseline(ctx context.Context, b protocol.Baseline) error {
	if err := validate.ID(b.ID, "base"); err != nil {
		return err
	}
	metadata := b.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO baselines (id, label, tag, commit_sha, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Label, b.Tag, b.CommitSHA, metadata, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert baseline %s: %w", b.ID, err)
	}
	return nil
}

// GetBaseline fetches a baseline by id.
func (s *Store) GetBaseline(ctx context.Context, id string) (*protocol.Baseline, error) {
	if err := validate.ID(id, "base"); err != nil {
		return nil, err
	}

	var b protocol.Baseline
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, tag, commit_sha, metadata, created_at
		 FROM baselines WHERE id = ?`, id,
	).Scan(&b.ID, &b.Label, &b.Tag, &b.CommitSHA, &b.Metadata, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &protocol.NotFoundError{Kind: "baseline", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get baseline %s: %w", id, err)
	}
	return &b, nil
}

// ListBaselines returns all baselines, newest first.
func (s *Store) ListBaselines(ctx context.Context) ([]protocol.Baseline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, tag, commit_sha, metadata, created_at
		 FROM baselines ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	var out []protocol.Baseline
	for rows.Next() {
		var b protocol.Baseline
		if err := rows.Scan(&b.ID, &b.Label, &b.Tag, &b.CommitSHA,
			&b.Metadata, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baselines: %w", err)
	}
	return out, nil
}

// DeleteBaseline removes a baseline row under retention policy.
func (s *Store) DeleteBaseline(ctx context.Context, id string) error {
	if err := validate.ID(id, "base"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM baselines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete baseline %s: %w", id, err)
	}
	return nil
}
