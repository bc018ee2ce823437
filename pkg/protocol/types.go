package protocol

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

// Session status constants.
const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionAborted   SessionStatus = "aborted"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionRunning, SessionCompleted, SessionFailed, SessionAborted:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a final session state.
func (s SessionStatus) Terminal() bool {
	return s != SessionRunning
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Task status constants.
const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskBlocked    TaskStatus = "blocked"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed, TaskBlocked:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a final task state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Phase represents the orchestrator's current phase within a session.
type Phase string

// Session phase constants.
const (
	PhaseInit        Phase = "init"
	PhasePlanning    Phase = "planning"
	PhaseExecution   Phase = "execution"
	PhaseReview      Phase = "review"
	PhaseMerge       Phase = "merge"
	PhaseHumanReview Phase = "human_review"
	PhaseDone        Phase = "done"
)

// Phases lists all known phases in their natural order.
var Phases = []Phase{
	PhaseInit, PhasePlanning, PhaseExecution, PhaseReview,
	PhaseMerge, PhaseHumanReview, PhaseDone,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Tier is a discrete capability/cost level for model selection.
type Tier string

// Tier constants, lowest capability first.
const (
	TierSimple   Tier = "simple"
	TierModerate Tier = "moderate"
	TierComplex  Tier = "complex"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierSimple, TierModerate, TierComplex:
		return true
	default:
		return false
	}
}

// Model constants for worker routing.
const (
	ModelOpus   = "claude-opus-4-6"
	ModelSonnet = "claude-sonnet-4-5"
	ModelHaiku  = "claude-haiku-4-5"
)

// KnownModels lists every model the orchestrator may request.
var KnownModels = []string{ModelOpus, ModelSonnet, ModelHaiku}

// ValidModel reports whether name is a model the orchestrator may request.
func ValidModel(name string) bool {
	for _, m := range KnownModels {
		if name == m {
			return true
		}
	}
	return false
}

// TaskType categorizes a task for complexity scoring and tier pinning.
type TaskType string

// Task type constants.
const (
	TypeDocumentation TaskType = "documentation"
	TypeRename        TaskType = "rename"
	TypeBugfix        TaskType = "bugfix"
	TypeFeature       TaskType = "feature"
	TypeRefactor      TaskType = "refactor"
	TypeArchitecture  TaskType = "architecture_decision"
	TypeSecurityAudit TaskType = "security_audit"
)

// TaskTypes lists all known task types.
var TaskTypes = []TaskType{
	TypeDocumentation, TypeRename, TypeBugfix, TypeFeature,
	TypeRefactor, TypeArchitecture, TypeSecurityAudit,
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// idPattern is the canonical identifier shape:
// <prefix>-<8 digit date>-<6 digit time>-<hex suffix>.
// Identifiers are validated before they reach any query or filepath
// operation, closing traversal and injection vectors.
var idPattern = regexp.MustCompile(`^[a-z]+-\d{8}-\d{6}-[0-9a-f]{6,12}$`)

// NewID generates an identifier with the given prefix, e.g.
// "sess-20260830-142233-9f41ab". The hex suffix comes from a random UUID.
func NewID(prefix string) string {
	now := time.Now().UTC()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s-%s-%s", prefix, now.Format("20060102"), now.Format("150405"), suffix)
}

// ValidateID checks that id matches the canonical identifier shape and,
// when prefix is non-empty, that it carries the expected prefix.
func ValidateID(id, prefix string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("malformed id %q", id)
	}
	if prefix != "" && !strings.HasPrefix(id, prefix+"-") {
		return fmt.Errorf("id %q: expected prefix %q", id, prefix)
	}
	return nil
}

// TimeLayout is the timestamp format stored in SQLite text columns,
// matching what datetime('now') produces.
const TimeLayout = "2006-01-02 15:04:05"

// Directory and naming constants used throughout steward.
const (
	// StewardDir is the per-repository state directory.
	StewardDir = ".steward"

	// WorktreesDir is the directory where git worktrees are created.
	WorktreesDir = ".worktrees"

	// ResultsDir is the directory watched for worker completion files.
	ResultsDir = "results"

	// BranchPrefix is the git branch prefix for plan worktrees.
	BranchPrefix = "steward/"

	// BaselineTagPrefix is the git tag prefix for recovery points.
	BaselineTagPrefix = "steward-base-"

	// CompletionMarker is the explicit marker a worker must emit for a
	// session exit to be considered a valid completion signal.
	CompletionMarker = "STEWARD_TASK_COMPLETE"
)
