package store

import (
	"context"
	"testing"

	"steward/pkg/protocol"
)

// makePlan creates a plan for task tests.
func makePlan(t *testing.T, s *Store, name string) *protocol.Plan {
	t.Helper()
	plan, err := s.CreatePlan(context.Background(), name, "feature", "")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return plan
}

// makeTask creates a pending task with sensible defaults.
func makeTask(t *testing.T, s *Store, planID, title string, p TaskParams) *protocol.Task {
	t.Helper()
	p.PlanID = planID
	p.Title = title
	if p.Type == "" {
		p.Type = protocol.TypeFeature
	}
	task, err := s.CreateTask(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateTask(%s): %v", title, err)
	}
	return task
}

func TestCreateTask_Defaults(t *testing.T) {
	s := testStore(t)
	plan := makePlan(t, s, "p1")

	task := makeTask(t, s, plan.ID, "add parser", TaskParams{})
	if task.Status != protocol.TaskPending {
		t.Errorf("status = %s, want pending", task.Status)
	}
	if task.Tier != protocol.TierSimple {
		t.Errorf("tier = %s, want simple default", task.Tier)
	}
	if task.Sprint != 1 {
		t.Errorf("sprint = %d, want 1", task.Sprint)
	}
	if task.Archived {
		t.Error("new task must not be archived")
	}
}

func TestCreateTask_Validation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")

	if _, err := s.CreateTask(ctx, TaskParams{PlanID: plan.ID, Title: "", Type: protocol.TypeBugfix}); err == nil {
		t.Error("empty title must be rejected")
	}
	if _, err := s.CreateTask(ctx, TaskParams{PlanID: plan.ID, Title: "x", Type: "yolo"}); err == nil {
		t.Error("unknown type must be rejected")
	}
	if _, err := s.CreateTask(ctx, TaskParams{
		PlanID: plan.ID, Title: "x", Type: protocol.TypeBugfix,
		DependsOn: []string{"task-20260830-120000-abcdef"},
	}); err == nil {
		t.Error("nonexistent dependency must be rejected")
	}
}

func TestListTasks_Order(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")

	low := makeTask(t, s, plan.ID, "low", TaskParams{Priority: 1})
	high := makeTask(t, s, plan.ID, "high", TaskParams{Priority: 9})
	mid := makeTask(t, s, plan.ID, "mid", TaskParams{Priority: 5})

	tasks, err := s.ListTasks(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	wantOrder := []string{high.ID, mid.ID, low.ID}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	for i, want := range wantOrder {
		if tasks[i].ID != want {
			t.Errorf("position %d = %s (%s), want %s", i, tasks[i].ID, tasks[i].Title, want)
		}
	}
}

func TestSetTaskStatus_DependencyInvariant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")

	dep := makeTask(t, s, plan.ID, "schema", TaskParams{})
	task := makeTask(t, s, plan.ID, "api", TaskParams{DependsOn: []string{dep.ID}})

	if err := s.SetTaskStatus(ctx, task.ID, protocol.TaskInProgress); err == nil {
		t.Error("task must not start while its dependency is pending")
	}

	if err := s.SetTaskStatus(ctx, dep.ID, protocol.TaskInProgress); err != nil {
		t.Fatalf("dep start: %v", err)
	}
	if err := s.SetTaskStatus(ctx, task.ID, protocol.TaskInProgress); err == nil {
		t.Error("in_progress dependency does not satisfy the invariant")
	}

	if err := s.SetTaskStatus(ctx, dep.ID, protocol.TaskCompleted); err != nil {
		t.Fatalf("dep complete: %v", err)
	}
	if err := s.SetTaskStatus(ctx, task.ID, protocol.TaskInProgress); err != nil {
		t.Errorf("completed dependency should unblock the task: %v", err)
	}
}

func TestSetTaskStatus_TerminalArchivesAndReleasesLocks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")

	task := makeTask(t, s, plan.ID, "writer", TaskParams{
		Scope: protocol.Scope{AllowedFiles: []string{"src/a.go", "src/b.go"}},
	})

	if conflict, _, err := s.AcquireFileLocks(ctx, task.ID, task.Scope.AllowedFiles); err != nil || conflict != "" {
		t.Fatalf("AcquireFileLocks: conflict=%q err=%v", conflict, err)
	}

	if err := s.SetTaskStatus(ctx, task.ID, protocol.TaskCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// The row is archived, never deleted.
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("terminal task must remain readable: %v", err)
	}
	if !got.Archived {
		t.Error("terminal task must be archived")
	}

	// And its locks are gone in the same transaction.
	held, err := s.HeldFileLocks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(held) != 0 {
		t.Errorf("locks survived terminal transition: %v", held)
	}

	// Archived tasks drop out of the admission queue.
	tasks, err := s.ListTasks(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("archived task still listed: %v", tasks)
	}
}

func TestAssignTaskSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")
	task := makeTask(t, s, plan.ID, "x", TaskParams{})

	if err := s.AssignTaskSession(ctx, task.ID, "sess-20260830-120000-abcdef"); err == nil {
		t.Error("assignment to a nonexistent session must fail")
	}

	sess, err := s.CreateSession(ctx, "orchestrate", "worker")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AssignTaskSession(ctx, task.ID, sess.ID); err != nil {
		t.Fatalf("AssignTaskSession: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SessionID != sess.ID {
		t.Errorf("SessionID = %q, want %s", got.SessionID, sess.ID)
	}
}

func TestAddAttempt_Monotonic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")
	task := makeTask(t, s, plan.ID, "x", TaskParams{})

	for want := 1; want <= 3; want++ {
		n, err := s.AddAttempt(ctx, AttemptParams{
			TaskID:    task.ID,
			ModelTier: protocol.TierSimple,
			Model:     protocol.ModelHaiku,
			Outcome:   "failure",
		})
		if err != nil {
			t.Fatalf("AddAttempt: %v", err)
		}
		if n != want {
			t.Errorf("attempt number = %d, want %d", n, want)
		}
	}

	attempts, err := s.ListAttempts(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 3 {
		t.Fatalf("got %d attempts", len(attempts))
	}
	for i, a := range attempts {
		if a.Attempt != i+1 {
			t.Errorf("attempts out of order: %v", attempts)
		}
	}

	count, err := s.AttemptCount(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("AttemptCount = %d, want 3", count)
	}
}
