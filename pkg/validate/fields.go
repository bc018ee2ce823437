package validate

// Field is the closed set of columns that generic "set a named field"
// operations may touch. A free-form column name never reaches a query;
// anything outside this enum is rejected.
type Field string

// Settable field constants, keyed by table.
const (
	// sessions
	FieldSessionPhase    Field = "sessions.phase"
	FieldSessionTier     Field = "sessions.model_tier"
	FieldSessionFailures Field = "sessions.consecutive_failures"
	FieldSessionIters    Field = "sessions.iterations"

	// tasks
	FieldTaskStatus   Field = "tasks.status"
	FieldTaskPriority Field = "tasks.priority"
	FieldTaskSession  Field = "tasks.session_id"

	// plans
	FieldPlanStatus      Field = "plans.status"
	FieldPlanSprintsDone Field = "plans.sprints_done"
)

// columns maps each settable field to its table and column. Being the only
// source of column names for dynamic updates, it doubles as the allow-list.
var columns = map[Field]struct{ Table, Column string }{
	FieldSessionPhase:    {"sessions", "phase"},
	FieldSessionTier:     {"sessions", "model_tier"},
	FieldSessionFailures: {"sessions", "consecutive_failures"},
	FieldSessionIters:    {"sessions", "iterations"},
	FieldTaskStatus:      {"tasks", "status"},
	FieldTaskPriority:    {"tasks", "priority"},
	FieldTaskSession:     {"tasks", "session_id"},
	FieldPlanStatus:      {"plans", "status"},
	FieldPlanSprintsDone: {"plans", "sprints_done"},
}

// Column resolves a Field to its table and column names. The returned names
// are compile-time constants from the allow-list, safe to interpolate into
// SQL; the value itself still travels as a bind parameter.
func Column(f Field) (table, column string, err error) {
	c, ok := columns[f]
	if !ok {
		return "", "", reject("field", string(f), "not on the settable-field allow-list")
	}
	return c.Table, c.Column, nil
}
