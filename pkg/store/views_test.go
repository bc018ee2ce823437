package store

import (
	"context"
	"testing"

	"steward/pkg/protocol"
)

func TestCurrentPointer(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.Current(ctx, SlotSession)
	if err != nil || got != "" {
		t.Fatalf("unset pointer = %q, %v", got, err)
	}

	if err := s.SetCurrent(ctx, SlotSession, "sess-20260830-120000-abcdef"); err != nil {
		t.Fatal(err)
	}
	// Upsert replaces, it does not duplicate.
	if err := s.SetCurrent(ctx, SlotSession, "sess-20260830-130000-abcdef"); err != nil {
		t.Fatal(err)
	}

	got, err = s.Current(ctx, SlotSession)
	if err != nil {
		t.Fatal(err)
	}
	if got != "sess-20260830-130000-abcdef" {
		t.Errorf("pointer = %q", got)
	}

	// Slots are independent.
	if err := s.SetCurrent(ctx, SlotPlan, "plan-20260830-120000-abcdef"); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearCurrent(ctx, SlotSession); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Current(ctx, SlotSession); got != "" {
		t.Errorf("cleared pointer = %q", got)
	}
	if got, _ := s.Current(ctx, SlotPlan); got == "" {
		t.Error("clearing one slot must not touch the other")
	}

	if err := s.SetCurrent(ctx, "galaxy", "x"); err == nil {
		t.Error("unknown slot must be rejected")
	}
}

func TestCurrentTask(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")
	sess, err := s.CreateSession(ctx, "orchestrate", "worker")
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.CurrentTask(ctx, sess.ID)
	if err != nil || got != nil {
		t.Fatalf("no current task expected, got %v, %v", got, err)
	}

	task := makeTask(t, s, plan.ID, "x", TaskParams{})
	if err := s.AssignTaskSession(ctx, task.ID, sess.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTaskStatus(ctx, task.ID, protocol.TaskInProgress); err != nil {
		t.Fatal(err)
	}

	got, err = s.CurrentTask(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != task.ID {
		t.Errorf("CurrentTask = %v, want %s", got, task.ID)
	}
}

func TestCompletion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")

	pc, err := s.Completion(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pc.Total != 0 || pc.Rate != 0 {
		t.Errorf("empty plan completion = %+v", pc)
	}

	a := makeTask(t, s, plan.ID, "a", TaskParams{})
	b := makeTask(t, s, plan.ID, "b", TaskParams{})
	makeTask(t, s, plan.ID, "c", TaskParams{})
	makeTask(t, s, plan.ID, "d", TaskParams{})

	if err := s.SetTaskStatus(ctx, a.ID, protocol.TaskCompleted); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTaskStatus(ctx, b.ID, protocol.TaskFailed); err != nil {
		t.Fatal(err)
	}

	pc, err = s.Completion(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pc.Total != 4 || pc.Completed != 1 || pc.Failed != 1 {
		t.Errorf("completion = %+v", pc)
	}
	if pc.Rate != 0.25 {
		t.Errorf("rate = %f, want 0.25", pc.Rate)
	}
}

func TestBaselineCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := protocol.NewID("base")
	b := protocol.Baseline{
		ID:        id,
		Label:     "pre-refactor",
		Tag:       protocol.BaselineTagPrefix + id,
		CommitSHA: "abc123def456",
	}
	if err := s.InsertBaseline(ctx, b); err != nil {
		t.Fatalf("InsertBaseline: %v", err)
	}

	got, err := s.GetBaseline(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "pre-refactor" || got.CommitSHA != "abc123def456" {
		t.Errorf("got %+v", got)
	}
	if got.Metadata != "{}" {
		t.Errorf("empty metadata should default to {}, got %q", got.Metadata)
	}

	all, err := s.ListBaselines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d baselines", len(all))
	}

	if err := s.DeleteBaseline(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetBaseline(ctx, id); err == nil {
		t.Error("deleted baseline must not be found")
	}
}

func TestWorktreeLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	plan := makePlan(t, s, "p1")

	got, err := s.ActiveWorktree(ctx, plan.ID)
	if err != nil || got != nil {
		t.Fatalf("no worktree expected, got %v, %v", got, err)
	}

	id, err := s.InsertWorktree(ctx, plan.ID, "/repo/.worktrees/p1", "steward/p1")
	if err != nil {
		t.Fatalf("InsertWorktree: %v", err)
	}

	got, err = s.ActiveWorktree(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Branch != "steward/p1" || got.Status != "active" {
		t.Errorf("active worktree = %+v", got)
	}

	paths, err := s.ActiveWorktreePaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !paths["/repo/.worktrees/p1"] {
		t.Errorf("active paths = %v", paths)
	}

	if err := s.CompleteWorktree(ctx, id, true); err != nil {
		t.Fatal(err)
	}
	got, err = s.ActiveWorktree(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("completed worktree still active: %+v", got)
	}

	paths, err = s.ActiveWorktreePaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Errorf("completed worktree still listed as active: %v", paths)
	}

	if err := s.CompleteWorktree(ctx, 999, false); err == nil {
		t.Error("completing a nonexistent worktree must fail")
	}
}
