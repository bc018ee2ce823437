package baseline

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"steward/pkg/protocol"
	"steward/pkg/store"
)

// gitCall records one git invocation.
type gitCall struct {
	dir  string
	args []string
}

// mockGit scripts responses per git subcommand and records calls.
type mockGit struct {
	calls  []gitCall
	stdout map[string]string
	fail   map[string]error
}

func (m *mockGit) Run(ctx context.Context, dir string, args ...string) (string, string, error) {
	m.calls = append(m.calls, gitCall{dir: dir, args: args})
	if err, ok := m.fail[args[0]]; ok {
		return "", "scripted failure", err
	}
	if out, ok := m.stdout[args[0]]; ok {
		return out, "", nil
	}
	return "", "", nil
}

func (m *mockGit) count(sub string) int {
	n := 0
	for _, c := range m.calls {
		if c.args[0] == sub {
			n++
		}
	}
	return n
}

func newManager(t *testing.T) (*Manager, *mockGit, *store.Store) {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	st := store.New(db)
	git := &mockGit{stdout: map[string]string{"rev-parse": "abc123def456\n"}}
	return NewManager("/repo", git, st), git, st
}

func TestCreate(t *testing.T) {
	m, git, st := newManager(t)
	ctx := context.Background()

	b, err := m.Create(ctx, "pre-refactor", `{"plan":"p1"}`)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.CommitSHA != "abc123def456" {
		t.Errorf("CommitSHA = %q", b.CommitSHA)
	}
	if !strings.HasPrefix(b.Tag, protocol.BaselineTagPrefix) {
		t.Errorf("Tag = %q, want %s prefix", b.Tag, protocol.BaselineTagPrefix)
	}
	if b.Metadata != `{"plan":"p1"}` {
		t.Errorf("Metadata = %q", b.Metadata)
	}

	if git.count("tag") != 1 {
		t.Errorf("expected one git tag call, got %d", git.count("tag"))
	}

	events, err := st.QueryEvents(ctx, store.EventQuery{Type: "baseline_created"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("expected a baseline_created event, got %d", len(events))
	}
}

func TestRollback_CapturesSafetyPointFirst(t *testing.T) {
	m, git, st := newManager(t)
	ctx := context.Background()

	target, err := m.Create(ctx, "known-good", "")
	if err != nil {
		t.Fatal(err)
	}

	restored, safety, err := m.Rollback(ctx, target.ID)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if restored.ID != target.ID {
		t.Errorf("restored %s, want %s", restored.ID, target.ID)
	}
	if safety == nil || safety.ID == target.ID {
		t.Fatalf("safety point missing or aliased: %+v", safety)
	}
	if !strings.HasPrefix(safety.Label, "pre-rollback-") {
		t.Errorf("safety label = %q", safety.Label)
	}

	// The safety tag exists before the reset runs, so the rollback is
	// itself reversible.
	var resetIdx, safetyTagIdx int
	for i, c := range git.calls {
		switch c.args[0] {
		case "reset":
			resetIdx = i
		case "tag":
			safetyTagIdx = i // last tag call is the safety point
		}
	}
	if safetyTagIdx > resetIdx {
		t.Error("safety baseline must be tagged before the reset")
	}

	// Both baselines remain queryable for a further rollback.
	all, err := st.ListBaselines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("baselines after rollback = %d, want 2", len(all))
	}

	events, err := st.QueryEvents(ctx, store.EventQuery{Type: "rollback"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("rollback must be audited, got %d events", len(events))
	}
}

func TestRollback_UnknownBaseline(t *testing.T) {
	m, git, _ := newManager(t)

	if _, _, err := m.Rollback(context.Background(), "base-20260830-120000-abcdef"); err == nil {
		t.Fatal("rollback to an unknown baseline must fail")
	}
	if git.count("reset") != 0 {
		t.Error("no reset may run for an unknown baseline")
	}
}

func TestDiff(t *testing.T) {
	m, git, _ := newManager(t)
	ctx := context.Background()

	b, err := m.Create(ctx, "x", "")
	if err != nil {
		t.Fatal(err)
	}

	git.stdout["diff"] = "M\tsrc/auth.py\nA\tsrc/new.py\n"
	out, err := m.Diff(ctx, b.ID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(out, "src/auth.py") {
		t.Errorf("diff output = %q", out)
	}
}

func TestPrune(t *testing.T) {
	m, git, st := newManager(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := m.Create(ctx, "b", ""); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := m.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	all, err := st.ListBaselines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("remaining = %d, want 2", len(all))
	}
	// Each pruned baseline loses its git tag too.
	if got := git.count("tag"); got != 5+3 {
		t.Errorf("tag calls = %d, want 5 creates + 3 deletes", got)
	}
}

func TestPrune_KeepsAtLeastOne(t *testing.T) {
	m, _, st := newManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Create(ctx, "b", ""); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := m.Prune(ctx, 0); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	all, err := st.ListBaselines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("keep=0 must clamp to one surviving baseline, got %d", len(all))
	}
}

func TestPrune_NoopUnderRetention(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "only", ""); err != nil {
		t.Fatal(err)
	}
	removed, err := m.Prune(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
