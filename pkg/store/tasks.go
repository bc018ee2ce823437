package store

import (
	"context"
	"database/sql"
	"fmt"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// TaskParams holds parameters for creating a task.
type TaskParams struct {
	PlanID    string
	Sprint    int
	Title     string
	Type      protocol.TaskType
	Tier      protocol.Tier
	Priority  int
	DependsOn []string
	Parallel  bool
	GroupID   string
	Scope     protocol.Scope
}

// CreateTask inserts a new pending task. The owning plan and every declared
// dependency must already exist.
func (s *Store) CreateTask(ctx context.Context, p TaskParams) (*protocol.Task, error) {
	if err := validate.ID(p.PlanID, "plan"); err != nil {
		return nil, err
	}
	if p.Title == "" {
		return nil, fmt.Errorf("create task: title must not be empty")
	}
	if _, err := validate.TaskType(string(p.Type)); err != nil {
		return nil, err
	}
	if err := s.requirePlan(ctx, p.PlanID); err != nil {
		return nil, err
	}
	for _, dep := range p.DependsOn {
		if err := validate.ID(dep, "task"); err != nil {
			return nil, err
		}
		if err := s.requireTask(ctx, dep); err != nil {
			return nil, err
		}
	}

	id := protocol.NewID("task")
	tier := p.Tier
	if tier == "" {
		tier = protocol.TierSimple
	}
	if _, err := validate.Tier(string(tier)); err != nil {
		return nil, err
	}
	sprint := p.Sprint
	if sprint == 0 {
		sprint = 1
	}
	now := s.timestamp()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, plan_id, sprint, title, type, status, tier, priority,
		                    depends_on, parallel, group_id, scope, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.PlanID, sprint, p.Title, string(p.Type), string(protocol.TaskPending),
		string(tier), p.Priority, protocol.MarshalDeps(p.DependsOn), boolToInt(p.Parallel),
		p.GroupID, protocol.MarshalScope(p.Scope), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return s.GetTask(ctx, id)
}

// GetTask fetches a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*protocol.Task, error) {
	if err := validate.ID(id, "task"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, taskSelect+" WHERE id = ?", id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &protocol.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns all non-archived tasks for a plan, ordered by priority
// descending then creation time (best-effort FIFO among equally ready tasks).
func (s *Store) ListTasks(ctx context.Context, planID string) ([]protocol.Task, error) {
	if err := validate.ID(planID, "plan"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		taskSelect+` WHERE plan_id = ? AND archived = 0
		 ORDER BY priority DESC, created_at ASC, id ASC`, planID)
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", planID, err)
	}
	defer rows.Close()

	var tasks []protocol.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// SetTaskStatus transitions a task. The dependency invariant is enforced
// here: a task cannot enter in_progress while any dependency is not
// completed. Terminal transitions archive the task (never delete) and
// release its file locks atomically in the same transaction.
func (s *Store) SetTaskStatus(ctx context.Context, id string, status protocol.TaskStatus) error {
	if err := validate.ID(id, "task"); err != nil {
		return err
	}
	if _, err := validate.TaskStatus(string(status)); err != nil {
		return err
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if status == protocol.TaskInProgress {
		for _, dep := range task.DependsOn {
			depTask, err := s.GetTask(ctx, dep)
			if err != nil {
				return err
			}
			if depTask.Status != protocol.TaskCompleted {
				return fmt.Errorf("task %s cannot start: dependency %s is %s", id, dep, depTask.Status)
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback()

	archived := 0
	if status.Terminal() {
		archived = 1
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, archived = ?, updated_at = ? WHERE id = ?`,
		string(status), archived, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("set status on %s: %w", id, err)
	}

	if status.Terminal() {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM file_locks WHERE task_id = ?`, id); err != nil {
			return fmt.Errorf("release file locks for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status tx: %w", err)
	}
	return nil
}

// AssignTaskSession binds a task to the session executing it.
func (s *Store) AssignTaskSession(ctx context.Context, taskID, sessionID string) error {
	if err := validate.ID(taskID, "task"); err != nil {
		return err
	}
	if err := validate.ID(sessionID, "sess"); err != nil {
		return err
	}
	if err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}
	return s.setField(ctx, validate.FieldTaskSession, taskID, sessionID)
}

const taskSelect = `SELECT id, plan_id, sprint, session_id, title, type, status, tier, priority,
       depends_on, parallel, group_id, scope, archived, created_at, updated_at FROM tasks`

// scanTask decodes one task row via the given scan function, so it serves
// both QueryRow and Rows iteration.
func scanTask(scan func(...any) error) (*protocol.Task, error) {
	var t protocol.Task
	var sessionID sql.NullString
	var deps, scope string
	var parallel, archived int

	err := scan(&t.ID, &t.PlanID, &t.Sprint, &sessionID, &t.Title, &t.Type,
		&t.Status, &t.Tier, &t.Priority, &deps, &parallel, &t.GroupID, &scope,
		&archived, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.SessionID = sessionID.String
	t.DependsOn = protocol.UnmarshalDeps(deps)
	t.Parallel = parallel != 0
	t.Scope = protocol.UnmarshalScope(scope)
	t.Archived = archived != 0
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
