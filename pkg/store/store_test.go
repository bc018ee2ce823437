package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

// testStore opens a fresh on-disk SQLite database with the schema applied.
func testStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return New(db)
}

func TestCreateAndGetSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "orchestrate", "worker")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != protocol.SessionRunning {
		t.Errorf("new session status = %s, want running", sess.Status)
	}
	if sess.Phase != protocol.PhaseInit {
		t.Errorf("new session phase = %s, want init", sess.Phase)
	}
	if sess.ConsecutiveFailures != 0 {
		t.Errorf("new session failures = %d, want 0", sess.ConsecutiveFailures)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ID != sess.ID || got.Command != "orchestrate" {
		t.Errorf("got %+v", got)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetSession(context.Background(), "sess-20260830-120000-abcdef")
	var nf *protocol.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Kind != "session" {
		t.Errorf("Kind = %q, want session", nf.Kind)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "orchestrate", "worker")
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.EndSession(ctx, sess.ID, protocol.SessionCompleted)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if first.Status != protocol.SessionCompleted {
		t.Errorf("status = %s, want completed", first.Status)
	}
	if first.EndedAt == "" {
		t.Error("ended_at must be set")
	}

	// A second end with a different status must not overwrite the first.
	second, err := s.EndSession(ctx, sess.ID, protocol.SessionFailed)
	if err != nil {
		t.Fatalf("second EndSession: %v", err)
	}
	if second.Status != protocol.SessionCompleted {
		t.Errorf("second end changed status to %s; end must be idempotent", second.Status)
	}
	if second.EndedAt != first.EndedAt {
		t.Errorf("second end changed ended_at from %s to %s", first.EndedAt, second.EndedAt)
	}
}

func TestEndSession_RejectsNonTerminal(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "orchestrate", "worker")
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.EndSession(ctx, sess.ID, protocol.SessionRunning)
	if err == nil {
		t.Fatal("ending with a non-terminal status must fail")
	}
	var verr *validate.Error
	if !errors.As(err, &verr) {
		t.Errorf("non-terminal rejection should be a validation error, got %T", err)
	}

	_, err = s.EndSession(ctx, sess.ID, protocol.SessionStatus("bogus"))
	if !errors.As(err, &verr) {
		t.Errorf("unknown status rejection should be a validation error, got %T", err)
	}
}

func TestSessionCounters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "orchestrate", "worker")
	if err != nil {
		t.Fatal(err)
	}

	for want := 1; want <= 3; want++ {
		got, err := s.RecordFailure(ctx, sess.ID)
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if got != want {
			t.Errorf("failure count = %d, want %d", got, want)
		}
	}

	if err := s.ResetFailures(ctx, sess.ID); err != nil {
		t.Fatalf("ResetFailures: %v", err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ConsecutiveFailures != 0 {
		t.Errorf("failures after reset = %d, want 0", got.ConsecutiveFailures)
	}
}

func TestSetSessionPhaseAndTier(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "orchestrate", "worker")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetSessionPhase(ctx, sess.ID, protocol.PhaseExecution); err != nil {
		t.Fatalf("SetSessionPhase: %v", err)
	}
	if err := s.SetSessionTier(ctx, sess.ID, protocol.TierComplex); err != nil {
		t.Fatalf("SetSessionTier: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != protocol.PhaseExecution || got.ModelTier != protocol.TierComplex {
		t.Errorf("phase/tier = %s/%s", got.Phase, got.ModelTier)
	}

	if err := s.SetSessionPhase(ctx, sess.ID, protocol.Phase("sideways")); err == nil {
		t.Error("unknown phase must be rejected")
	}
}

func TestCreatePlan(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	plan, err := s.CreatePlan(ctx, "auth-refactor", "feature", "")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.Name != "auth-refactor" {
		t.Errorf("Name = %q", plan.Name)
	}

	byName, err := s.GetPlanByName(ctx, "auth-refactor")
	if err != nil {
		t.Fatalf("GetPlanByName: %v", err)
	}
	if byName.ID != plan.ID {
		t.Errorf("lookup by name returned %s, want %s", byName.ID, plan.ID)
	}

	// A child plan must name an existing parent.
	if _, err := s.CreatePlan(ctx, "child", "feature", "plan-20260830-120000-abcdef"); err == nil {
		t.Error("nonexistent parent must be rejected")
	}
	child, err := s.CreatePlan(ctx, "child", "feature", plan.ID)
	if err != nil {
		t.Fatalf("child plan: %v", err)
	}
	if child.ParentID != plan.ID {
		t.Errorf("ParentID = %q, want %s", child.ParentID, plan.ID)
	}
}

func TestCreatePlan_RejectsBadName(t *testing.T) {
	s := testStore(t)

	if _, err := s.CreatePlan(context.Background(), "../evil", "feature", ""); err == nil {
		t.Error("plan names with path separators must be rejected")
	}
}
