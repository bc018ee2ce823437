// Package validate whitelists legal values for every user- or worker-supplied
// field before any value reaches a query. It is the primary defense against
// malformed or adversarial input corrupting persisted state: identifiers must
// match a fixed shape, enums must be known values, and dynamic field names
// are restricted to a closed allow-list.
package validate

import (
	"fmt"
	"regexp"
	"strconv"

	"steward/pkg/protocol"
)

// Error is a validation rejection. It carries the field class and the
// offending value so callers can surface precise remediation.
type Error struct {
	Class string
	Value string
	Why   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Class, e.Value, e.Why)
}

func reject(class, value, why string) error {
	return &Error{Class: class, Value: value, Why: why}
}

// namePattern restricts plan names and holder identities to characters safe
// for branch names and filepaths.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ID validates an identifier of the canonical shape with the given prefix
// ("sess", "task", "plan", "base"). Prefix may be empty to accept any.
func ID(id, prefix string) error {
	if err := protocol.ValidateID(id, prefix); err != nil {
		return reject("id", id, err.Error())
	}
	return nil
}

// Name validates a plan name or holder identity.
func Name(name string) error {
	if name == "" {
		return reject("name", name, "must not be empty")
	}
	if len(name) > 120 {
		return reject("name", name, "exceeds 120 characters")
	}
	if !namePattern.MatchString(name) {
		return reject("name", name, "contains illegal characters")
	}
	return nil
}

// Phase validates a session phase.
func Phase(raw string) (protocol.Phase, error) {
	p := protocol.Phase(raw)
	if !p.Valid() {
		return "", reject("phase", raw, "unknown phase")
	}
	return p, nil
}

// SessionStatus validates a session status.
func SessionStatus(raw string) (protocol.SessionStatus, error) {
	s := protocol.SessionStatus(raw)
	if !s.Valid() {
		return "", reject("session status", raw, "unknown status")
	}
	return s, nil
}

// TerminalSessionStatus validates a session's final status: it must be a
// known status and a terminal one.
func TerminalSessionStatus(raw string) (protocol.SessionStatus, error) {
	s, err := SessionStatus(raw)
	if err != nil {
		return "", err
	}
	if !s.Terminal() {
		return "", reject("session status", raw, "not a terminal status")
	}
	return s, nil
}

// TaskStatus validates a task status.
func TaskStatus(raw string) (protocol.TaskStatus, error) {
	s := protocol.TaskStatus(raw)
	if !s.Valid() {
		return "", reject("task status", raw, "unknown status")
	}
	return s, nil
}

// TaskType validates a task type.
func TaskType(raw string) (protocol.TaskType, error) {
	t := protocol.TaskType(raw)
	if !t.Valid() {
		return "", reject("task type", raw, "unknown type")
	}
	return t, nil
}

// Tier validates a model tier.
func Tier(raw string) (protocol.Tier, error) {
	t := protocol.Tier(raw)
	if !t.Valid() {
		return "", reject("tier", raw, "unknown tier")
	}
	return t, nil
}

// Model validates a model name.
func Model(raw string) (string, error) {
	if !protocol.ValidModel(raw) {
		return "", reject("model", raw, "unknown model")
	}
	return raw, nil
}

// Int validates an integer-only numeric field.
func Int(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, reject("integer", raw, "not an integer")
	}
	return n, nil
}

// Decimal validates a decimal numeric field.
func Decimal(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, reject("decimal", raw, "not a number")
	}
	return f, nil
}
