package protocol

import "encoding/json"

// Session represents a row in the sessions table.
type Session struct {
	ID                  string        `json:"id"`
	Command             string        `json:"command"`
	Type                string        `json:"type"`
	Status              SessionStatus `json:"status"`
	Phase               Phase         `json:"phase"`
	ModelTier           Tier          `json:"model_tier"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Iterations          int           `json:"iterations"`
	StartedAt           string        `json:"started_at"`
	EndedAt             string        `json:"ended_at"`
}

// Plan represents a row in the plans table.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	ParentID     string `json:"parent_id"`
	Status       string `json:"status"`
	SprintsTotal int    `json:"sprints_total"`
	SprintsDone  int    `json:"sprints_done"`
	CreatedAt    string `json:"created_at"`
}

// PlanLock represents a row in the plan_locks table.
type PlanLock struct {
	PlanID      string `json:"plan_id"`
	Holder      string `json:"holder"`
	PID         int    `json:"pid"`
	Host        string `json:"host"`
	AcquiredAt  string `json:"acquired_at"`
	HeartbeatAt string `json:"heartbeat_at"`
	ExpiresAt   string `json:"expires_at"`
}

// Scope is the allow/forbid file boundary a task must respect.
// Stored as JSON in the tasks.scope column.
type Scope struct {
	AllowedFiles   []string `json:"allowed_files,omitempty"`
	AllowedGlobs   []string `json:"allowed_globs,omitempty"`
	ForbiddenFiles []string `json:"forbidden_files,omitempty"`
	ForbiddenDirs  []string `json:"forbidden_dirs,omitempty"`
	MaxFiles       int      `json:"max_files,omitempty"`

	// Unrestricted must be set explicitly for an empty allow-set to mean
	// "no restriction". The default for an empty scope is reject-everything.
	Unrestricted bool `json:"unrestricted,omitempty"`
}

// Task represents a row in the tasks table.
type Task struct {
	ID        string     `json:"id"`
	PlanID    string     `json:"plan_id"`
	Sprint    int        `json:"sprint"`
	SessionID string     `json:"session_id"`
	Title     string     `json:"title"`
	Type      TaskType   `json:"type"`
	Status    TaskStatus `json:"status"`
	Tier      Tier       `json:"tier"`
	Priority  int        `json:"priority"`
	DependsOn []string   `json:"depends_on"`
	Parallel  bool       `json:"parallel"`
	GroupID   string     `json:"group_id"`
	Scope     Scope      `json:"scope"`
	Archived  bool       `json:"archived"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

// TaskAttempt represents a row in the task_attempts table.
type TaskAttempt struct {
	ID        int64   `json:"id"`
	TaskID    string  `json:"task_id"`
	Attempt   int     `json:"attempt"`
	ModelTier Tier    `json:"model_tier"`
	Model     string  `json:"model"`
	Outcome   string  `json:"outcome"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	Cost      float64 `json:"cost"`
	Error     string  `json:"error"`
	CreatedAt string  `json:"created_at"`
}

// Event represents a row in the events table.
type Event struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"created_at"`
}

// FileLock represents a row in the file_locks table.
type FileLock struct {
	Path     string `json:"path"`
	TaskID   string `json:"task_id"`
	LockedAt string `json:"locked_at"`
}

// Escalation represents a row in the escalations table.
type Escalation struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	FromTier  Tier   `json:"from_tier"`
	ToTier    Tier   `json:"to_tier"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// Baseline represents a row in the baselines table.
type Baseline struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Tag       string `json:"tag"`
	CommitSHA string `json:"commit_sha"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"created_at"`
}

// Worktree represents a row in the worktrees table.
type Worktree struct {
	ID        int64  `json:"id"`
	PlanID    string `json:"plan_id"`
	Path      string `json:"path"`
	Branch    string `json:"branch"`
	Status    string `json:"status"`
	Merged    bool   `json:"merged"`
	CreatedAt string `json:"created_at"`
}

// CompletionReport is the sentinel file a worker writes into the results
// directory when its task finishes. Existence is the completion signal;
// the body carries outcome detail for classification and accounting.
type CompletionReport struct {
	TaskID        string   `json:"task_id"`
	Status        string   `json:"status"` // complete, blocked, failed
	Summary       string   `json:"summary"`
	Output        string   `json:"output,omitempty"`
	FilesModified []string `json:"files_modified,omitempty"`
	TokensIn      int64    `json:"tokens_in,omitempty"`
	TokensOut     int64    `json:"tokens_out,omitempty"`
	Cost          float64  `json:"cost,omitempty"`
}

// MarshalScope encodes a Scope for the tasks.scope column.
func MarshalScope(s Scope) string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// UnmarshalScope decodes a tasks.scope column value.
func UnmarshalScope(raw string) Scope {
	var s Scope
	if raw == "" {
		return s
	}
	_ = json.Unmarshal([]byte(raw), &s)
	return s
}

// MarshalDeps encodes a dependency list for the tasks.depends_on column.
func MarshalDeps(deps []string) string {
	if len(deps) == 0 {
		return "[]"
	}
	b, err := json.Marshal(deps)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// UnmarshalDeps decodes a tasks.depends_on column value.
func UnmarshalDeps(raw string) []string {
	if raw == "" {
		return nil
	}
	var deps []string
	if err := json.Unmarshal([]byte(raw), &deps); err != nil {
		return nil
	}
	return deps
}
