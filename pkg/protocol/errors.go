package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for the steward CLI. Code 2 distinguishes "the request was
// correctly refused" from "something is wrong" (code 1).
const (
	ExitOK      = 0
	ExitError   = 1
	ExitBlocked = 2
)

// ScopeViolationError is returned when one or more paths fall outside a
// task's scope boundary. Paths carries every violating path found, not just
// the first, so a worker can fix all violations in one pass.
type ScopeViolationError struct {
	TaskID string
	Paths  []string
}

func (e *ScopeViolationError) Error() string {
	return fmt.Sprintf("scope violation for task %s: %d path(s) out of scope: %s",
		e.TaskID, len(e.Paths), strings.Join(e.Paths, ", "))
}

// LockHeldError is returned when a plan lock is held by a live, unexpired
// holder. It enables typed error discrimination via errors.As.
type LockHeldError struct {
	PlanID    string
	Holder    string
	ExpiresAt string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("plan %s locked by %s until %s", e.PlanID, e.Holder, e.ExpiresAt)
}

// ExitBlockedError is returned when a session-exit attempt carries an
// invalid completion signal (passive abandonment or permission seeking).
type ExitBlockedError struct {
	SessionID string
	Class     string // passive_abandonment, permission_seeking, unknown
	Guidance  string // corrective instruction emitted back to the worker
}

func (e *ExitBlockedError) Error() string {
	return fmt.Sprintf("exit blocked for session %s: %s: %s", e.SessionID, e.Class, e.Guidance)
}

// NotFoundError is returned when a referenced entity does not exist.
// Referential integrity checks produce this instead of bare driver errors.
type NotFoundError struct {
	Kind string // session, plan, task, baseline
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConflictError is returned when a merge encounters conflicting files.
// Conflicts are enumerated; silent overwrite is never permitted.
type ConflictError struct {
	PlanID string
	Files  []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge conflict on plan %s: conflicting files: %s",
		e.PlanID, strings.Join(e.Files, ", "))
}

// Blocked reports whether err represents a policy refusal rather than an
// internal failure. Used by the CLI to map errors to exit code 2.
func Blocked(err error) bool {
	var scope *ScopeViolationError
	var lock *LockHeldError
	var exit *ExitBlockedError
	return errors.As(err, &scope) || errors.As(err, &lock) || errors.As(err, &exit)
}
