package hooks

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"steward/pkg/protocol"
)

func TestClassify_DefaultVocabulary(t *testing.T) {
	c := NewClassifier(DefaultRules())

	tests := []struct {
		name string
		text string
		want Outcome
	}{
		{"completion marker", "all done. " + protocol.CompletionMarker, OutcomeSuccess},
		{"marker lowercase", "steward_task_complete", OutcomeSuccess},
		{"passive handback", "I've made the changes. Let me know if you need anything else!", OutcomePassiveAbandon},
		{"permission seeking", "The plan looks good. Should I proceed with the refactor?", OutcomePermissionSeeking},
		{"failure vocabulary", "The build failed with 3 errors.", OutcomeFailure},
		{"no signal", "working on the parser now", OutcomeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassify_PriorityOverridesLaterRules(t *testing.T) {
	c := NewClassifier(DefaultRules())

	// Permission-seeking vocabulary outranks generic success words: a worker
	// that reports passing tests but stalls on a question has not finished.
	text := "Tests pass. Should I proceed with merging?"
	if got := c.Classify(text); got != OutcomePermissionSeeking {
		t.Errorf("stall vocabulary must outrank success words, got %s", got)
	}

	// But the explicit completion marker outranks everything.
	text = "Should I proceed? Actually no - " + protocol.CompletionMarker
	if got := c.Classify(text); got != OutcomeSuccess {
		t.Errorf("completion marker must outrank stall vocabulary, got %s", got)
	}
}

func TestClassify_RuleOrderIndependent(t *testing.T) {
	// The same rules in reverse declaration order classify identically;
	// priority decides, not file order.
	rs := DefaultRules()
	reversed := RuleSet{Rules: make([]Rule, len(rs.Rules))}
	for i, r := range rs.Rules {
		reversed.Rules[len(rs.Rules)-1-i] = r
	}

	a := NewClassifier(rs)
	b := NewClassifier(reversed)

	for _, text := range []string{
		protocol.CompletionMarker,
		"should i proceed?",
		"let me know if that works",
		"the tests failed",
	} {
		if a.Classify(text) != b.Classify(text) {
			t.Errorf("classification of %q depends on rule declaration order", text)
		}
	}
}

func TestCheckExit(t *testing.T) {
	c := NewClassifier(DefaultRules())

	if err := c.CheckExit("sess-20260830-120000-abcdef", "done: "+protocol.CompletionMarker); err != nil {
		t.Errorf("valid completion must pass the gate, got %v", err)
	}

	err := c.CheckExit("sess-20260830-120000-abcdef", "Let me know if you'd like me to continue.")
	var blocked *protocol.ExitBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected ExitBlockedError, got %v", err)
	}
	if blocked.Class != string(OutcomePassiveAbandon) {
		t.Errorf("Class = %q, want %s", blocked.Class, OutcomePassiveAbandon)
	}
	if blocked.Guidance == "" {
		t.Error("a blocked exit must carry corrective guidance")
	}
	if !protocol.Blocked(err) {
		t.Error("a blocked exit must classify as a policy block")
	}
}

func TestLoadRules_MissingFileUsesDefaults(t *testing.T) {
	c, err := LoadRules(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing rules file should fall back to defaults, got %v", err)
	}
	if got := c.Classify(protocol.CompletionMarker); got != OutcomeSuccess {
		t.Errorf("default classifier should recognize the marker, got %s", got)
	}
}

func TestWriteRules_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")

	custom := RuleSet{Rules: []Rule{
		{Outcome: string(OutcomeFailure), Priority: 5, Patterns: []string{"kaboom"}},
	}}
	if err := WriteRules(path, custom); err != nil {
		t.Fatalf("WriteRules: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("rules file not written: %v", err)
	}

	c, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if got := c.Classify("well, kaboom happened"); got != OutcomeFailure {
		t.Errorf("custom rule should classify as failure, got %s", got)
	}
	// Defaults are replaced, not merged.
	if got := c.Classify("should i proceed?"); got != OutcomeUnknown {
		t.Errorf("replaced vocabulary should not match, got %s", got)
	}
}
