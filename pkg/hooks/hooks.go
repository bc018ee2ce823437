// Package hooks classifies worker-produced text. Two passes run over every
// result: outcome classification (success/failure vocabulary feeding the
// escalation policy) and abandonment classification (distinguishing a valid
// completion signal from passive language or permission-seeking stalls).
// The vocabulary lives in external rule data, not in code, so it can be
// swapped without rebuilding.
package hooks

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"steward/pkg/protocol"
)

// Outcome is the closed set of classification results.
type Outcome string

// Outcome constants.
const (
	OutcomeSuccess           Outcome = "success"
	OutcomeFailure           Outcome = "failure"
	OutcomePassiveAbandon    Outcome = "passive_abandonment"
	OutcomePermissionSeeking Outcome = "permission_seeking"
	OutcomeUnknown           Outcome = "unknown"
)

// Rule maps a set of case-insensitive substring patterns to an outcome.
// Lower priority values are evaluated first.
type Rule struct {
	Outcome  string   `toml:"outcome"`
	Priority int      `toml:"priority"`
	Patterns []string `toml:"patterns"`
}

// RuleSet is the on-disk shape of rules.toml.
type RuleSet struct {
	Rules []Rule `toml:"rules"`
}

// Classifier evaluates a prioritized rule list over worker output.
type Classifier struct {
	rules []Rule
}

// DefaultRules returns the built-in rule data written by `steward init`.
// The completion marker outranks everything; stall vocabulary outranks the
// generic success/failure words so "should I proceed? tests pass" is still
// a stall.
func DefaultRules() RuleSet {
	return RuleSet{Rules: []Rule{
		{Outcome: string(OutcomeSuccess), Priority: 0, Patterns: []string{
			protocol.CompletionMarker,
			"task complete and verified",
		}},
		{Outcome: string(OutcomePermissionSeeking), Priority: 10, Patterns: []string{
			"should i proceed",
			"should i continue",
			"do you want me to",
			"would you like me to",
			"shall i",
			"may i go ahead",
		}},
		{Outcome: string(OutcomePassiveAbandon), Priority: 20, Patterns: []string{
			"let me know if",
			"you could try",
			"you might want to",
			"feel free to",
			"if you need anything else",
			"hope this helps",
		}},
		{Outcome: string(OutcomeFailure), Priority: 30, Patterns: []string{
			"tests failed",
			"build failed",
			"compilation error",
			"could not complete",
			"unable to complete",
			"giving up",
			"fatal error",
		}},
		{Outcome: string(OutcomeSuccess), Priority: 40, Patterns: []string{
			"all tests pass",
			"implementation complete",
			"successfully completed",
		}},
	}}
}

// LoadRules reads rules.toml at path. A missing file yields the defaults.
func LoadRules(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewClassifier(DefaultRules()), nil
		}
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}

	var rs RuleSet
	if err := toml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if len(rs.Rules) == 0 {
		return NewClassifier(DefaultRules()), nil
	}
	return NewClassifier(rs), nil
}

// WriteRules serializes a rule set to path.
func WriteRules(path string, rs RuleSet) error {
	data, err := toml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rules %s: %w", path, err)
	}
	return nil
}

// NewClassifier builds a Classifier from a rule set, ordered by priority.
func NewClassifier(rs RuleSet) *Classifier {
	rules := make([]Rule, len(rs.Rules))
	copy(rules, rs.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
	return &Classifier{rules: rules}
}

// Classify returns the outcome of the first rule whose pattern appears in
// text, or OutcomeUnknown when nothing matches.
func (c *Classifier) Classify(text string) Outcome {
	lower := strings.ToLower(text)
	for _, rule := range c.rules {
		for _, pat := range rule.Patterns {
			if pat == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(pat)) {
				return Outcome(rule.Outcome)
			}
		}
	}
	return OutcomeUnknown
}

// guidance maps a blocked outcome to the corrective instruction emitted
// back to the worker.
var guidance = map[Outcome]string{
	OutcomePassiveAbandon:    "session remains open: finish the task and emit " + protocol.CompletionMarker + " instead of handing work back",
	OutcomePermissionSeeking: "session remains open: proceed without asking for permission and emit " + protocol.CompletionMarker + " when done",
	OutcomeFailure:           "session remains open: the task is not complete",
	OutcomeUnknown:           "session remains open: no valid completion signal found; emit " + protocol.CompletionMarker,
}

// CheckExit gates a session-exit attempt. Only a valid completion signal
// passes; every other classification blocks the exit with a corrective
// instruction the caller must relay to the worker.
func (c *Classifier) CheckExit(sessionID, text string) error {
	outcome := c.Classify(text)
	if outcome == OutcomeSuccess {
		return nil
	}
	return &protocol.ExitBlockedError{
		SessionID: sessionID,
		Class:     string(outcome),
		Guidance:  guidance[outcome],
	}
}
