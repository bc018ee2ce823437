package main

import (
	"errors"
	"fmt"
	"testing"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"scope violation", &protocol.ScopeViolationError{TaskID: "t", Paths: []string{"x"}}, protocol.ExitBlocked},
		{"lock held", &protocol.LockHeldError{PlanID: "p", Holder: "h"}, protocol.ExitBlocked},
		{"exit blocked", &protocol.ExitBlockedError{SessionID: "s", Class: "unknown"}, protocol.ExitBlocked},
		{"validation rejection", &validate.Error{Class: "name", Value: "../x", Why: "bad"}, protocol.ExitBlocked},
		{"wrapped policy error", fmt.Errorf("admit: %w", &protocol.LockHeldError{PlanID: "p"}), protocol.ExitBlocked},
		{"not found", &protocol.NotFoundError{Kind: "task", ID: "t"}, protocol.ExitError},
		{"merge conflict", &protocol.ConflictError{PlanID: "p", Files: []string{"a.py"}}, protocol.ExitError},
		{"plain error", errors.New("boom"), protocol.ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
