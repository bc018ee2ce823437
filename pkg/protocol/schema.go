package protocol

// SchemaDDL defines the SQLite schema for the steward orchestration database.
// Tables: sessions, plans, plan_locks, tasks, task_attempts, events,
// file_locks, escalations, baselines, worktrees, current_pointer.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- One controlling run of the orchestrator
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    command TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT 'standard',
    status TEXT NOT NULL DEFAULT 'running',
    phase TEXT NOT NULL DEFAULT 'init',
    model_tier TEXT NOT NULL DEFAULT 'simple',
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    iterations INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL DEFAULT (datetime('now')),
    ended_at TEXT
);

-- Named units of work (project, feature, enhancement) owning tasks
CREATE TABLE IF NOT EXISTS plans (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'project',
    parent_id TEXT REFERENCES plans(id),
    status TEXT NOT NULL DEFAULT 'active',
    sprints_total INTEGER NOT NULL DEFAULT 0,
    sprints_done INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Exclusive execution rights over a plan; one row per held lock.
-- Acquisition is INSERT-if-absent, the compare-and-swap that replaces
-- sentinel-file locking.
CREATE TABLE IF NOT EXISTS plan_locks (
    plan_id TEXT PRIMARY KEY REFERENCES plans(id),
    holder TEXT NOT NULL,
    pid INTEGER NOT NULL DEFAULT 0,
    host TEXT NOT NULL DEFAULT '',
    acquired_at TEXT NOT NULL DEFAULT (datetime('now')),
    heartbeat_at TEXT NOT NULL DEFAULT (datetime('now')),
    expires_at TEXT NOT NULL
);

-- Atomic schedulable units with a scope boundary
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL REFERENCES plans(id),
    sprint INTEGER NOT NULL DEFAULT 1,
    session_id TEXT REFERENCES sessions(id),
    title TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'feature',
    status TEXT NOT NULL DEFAULT 'pending',
    tier TEXT NOT NULL DEFAULT 'simple',
    priority INTEGER NOT NULL DEFAULT 0,
    depends_on TEXT NOT NULL DEFAULT '[]',
    parallel INTEGER NOT NULL DEFAULT 1,
    group_id TEXT NOT NULL DEFAULT '',
    scope TEXT NOT NULL DEFAULT '{}',
    archived INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- One execution try of a task; append-only, never mutated after creation
CREATE TABLE IF NOT EXISTS task_attempts (
    id INTEGER PRIMARY KEY,
    task_id TEXT NOT NULL REFERENCES tasks(id),
    attempt INTEGER NOT NULL,
    model_tier TEXT NOT NULL,
    model TEXT NOT NULL,
    outcome TEXT NOT NULL DEFAULT '',
    tokens_in INTEGER NOT NULL DEFAULT 0,
    tokens_out INTEGER NOT NULL DEFAULT 0,
    cost REAL NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE (task_id, attempt)
);

-- Append-only audit log; also the stream the escalation policy reads
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    session_id TEXT,
    type TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- File-level locks held by tasks occupying scheduler slots
CREATE TABLE IF NOT EXISTS file_locks (
    path TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    locked_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Model-tier transitions, append-only, for cost/quality auditing
CREATE TABLE IF NOT EXISTS escalations (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL,
    from_tier TEXT NOT NULL,
    to_tier TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Immutable tagged recovery points
CREATE TABLE IF NOT EXISTS baselines (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    tag TEXT NOT NULL,
    commit_sha TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Isolated workspaces bound to concurrently executing plans
CREATE TABLE IF NOT EXISTS worktrees (
    id INTEGER PRIMARY KEY,
    plan_id TEXT NOT NULL REFERENCES plans(id),
    path TEXT NOT NULL,
    branch TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    merged INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Persisted "current" pointers replacing process-global state
CREATE TABLE IF NOT EXISTS current_pointer (
    slot TEXT PRIMARY KEY CHECK (slot IN ('session', 'plan')),
    value TEXT NOT NULL
);
`
