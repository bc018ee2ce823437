package validate

import (
	"errors"
	"strings"
	"testing"

	"steward/pkg/protocol"
)

func TestID(t *testing.T) {
	good := protocol.NewID("sess")
	if err := ID(good, "sess"); err != nil {
		t.Errorf("generated id should validate, got %v", err)
	}
	if err := ID(good, "task"); err == nil {
		t.Error("wrong prefix must be rejected")
	}

	bad := []string{
		"",
		"sess-123",
		"sess-20260830-120000-ZZZZZZ",
		"sess-20260830-120000-abc",
		"../../../etc/passwd",
		"sess-20260830-120000-abcdef; DROP TABLE",
		"SESS-20260830-120000-abcdef",
		"sess-20260830-120000-abcdefabcdefabcdef",
	}
	for _, id := range bad {
		if err := ID(id, ""); err == nil {
			t.Errorf("ID(%q) should be rejected", id)
		}
	}
}

func TestName(t *testing.T) {
	for _, name := range []string{"auth-refactor", "sprint_2.1", "Plan9"} {
		if err := Name(name); err != nil {
			t.Errorf("Name(%q) should pass, got %v", name, err)
		}
	}

	bad := []string{"", "a b", "plan/../../etc", strings.Repeat("x", 121), "plan;rm"}
	for _, name := range bad {
		if err := Name(name); err == nil {
			t.Errorf("Name(%q) should be rejected", name)
		}
	}
}

func TestEnums(t *testing.T) {
	if _, err := Phase("execution"); err != nil {
		t.Errorf("execution is a known phase: %v", err)
	}
	if _, err := Phase("sideways"); err == nil {
		t.Error("unknown phase must be rejected")
	}

	if _, err := TaskStatus("in_progress"); err != nil {
		t.Errorf("in_progress is a known task status: %v", err)
	}
	if _, err := TaskStatus("done"); err == nil {
		t.Error("unknown task status must be rejected")
	}

	if _, err := Tier("moderate"); err != nil {
		t.Errorf("moderate is a known tier: %v", err)
	}
	if _, err := Tier("extreme"); err == nil {
		t.Error("unknown tier must be rejected")
	}

	if _, err := TerminalSessionStatus("failed"); err != nil {
		t.Errorf("failed is a terminal status: %v", err)
	}
	if _, err := TerminalSessionStatus("running"); err == nil {
		t.Error("a non-terminal status must be rejected as a final status")
	}
	if _, err := TerminalSessionStatus("bogus"); err == nil {
		t.Error("unknown session status must be rejected")
	}

	if _, err := Model(protocol.ModelOpus); err != nil {
		t.Errorf("%s is a known model: %v", protocol.ModelOpus, err)
	}
	if _, err := Model("gpt-9"); err == nil {
		t.Error("unknown model must be rejected")
	}
}

func TestNumerics(t *testing.T) {
	if n, err := Int("42"); err != nil || n != 42 {
		t.Errorf("Int(42) = %d, %v", n, err)
	}
	if _, err := Int("42.5"); err == nil {
		t.Error("Int must reject decimals")
	}
	if f, err := Decimal("0.125"); err != nil || f != 0.125 {
		t.Errorf("Decimal(0.125) = %f, %v", f, err)
	}
	if _, err := Decimal("1e3x"); err == nil {
		t.Error("Decimal must reject trailing garbage")
	}
}

func TestRejectionsAreTyped(t *testing.T) {
	err := Name("")
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validate.Error, got %T", err)
	}
	if verr.Class != "name" {
		t.Errorf("Class = %q, want name", verr.Class)
	}
}

func TestColumn_AllowList(t *testing.T) {
	table, col, err := Column(FieldSessionPhase)
	if err != nil || table != "sessions" || col != "phase" {
		t.Errorf("Column(FieldSessionPhase) = %s.%s, %v", table, col, err)
	}

	if _, _, err := Column(Field("sessions.id")); err == nil {
		t.Error("fields outside the allow-list must be rejected")
	}
	if _, _, err := Column(Field("tasks.status; DROP TABLE tasks")); err == nil {
		t.Error("injection-shaped fields must be rejected")
	}
}
