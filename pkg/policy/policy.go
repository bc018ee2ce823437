// Package policy implements the complexity scorer and the deterministic
// model-tier escalation ladder. Scoring is a pure function of task
// attributes; model selection is a pure function of tier and attempt
// number. The ladder constants are configurable policy, not invariants.
package policy

import (
	"steward/pkg/config"
	"steward/pkg/protocol"
)

// RiskFlag marks a task attribute that adds one complexity point.
type RiskFlag string

// Risk flag constants.
const (
	RiskSecuritySensitive   RiskFlag = "security_sensitive"
	RiskExternalIntegration RiskFlag = "external_integration"
	RiskBreakingChange      RiskFlag = "breaking_change"
)

// Attributes are the task properties the scorer consumes.
type Attributes struct {
	Files   int
	Lines   int
	NewDeps int
	Type    protocol.TaskType
	Risks   []RiskFlag
}

// Score bands.
const (
	MaxScore        = 14
	simpleCeiling   = 4
	moderateCeiling = 8
)

// Score computes the integer complexity score in [0, MaxScore] as the sum
// of five bounded sub-scores: files 0-3, lines 0-3, dependencies 0-2,
// type 0-3, and one point per risk flag capped at 3.
func Score(a Attributes) int {
	score := fileScore(a.Files) + lineScore(a.Lines) + depScore(a.NewDeps) + typeScore(a.Type)

	risks := len(a.Risks)
	if risks > 3 {
		risks = 3
	}
	score += risks

	if score > MaxScore {
		score = MaxScore
	}
	return score
}

func fileScore(files int) int {
	switch {
	case files <= 1:
		return 0
	case files <= 3:
		return 1
	case files <= 10:
		return 2
	default:
		return 3
	}
}

func lineScore(lines int) int {
	switch {
	case lines <= 30:
		return 0
	case lines <= 100:
		return 1
	case lines <= 400:
		return 2
	default:
		return 3
	}
}

func depScore(deps int) int {
	switch {
	case deps <= 0:
		return 0
	case deps <= 2:
		return 1
	default:
		return 2
	}
}

func typeScore(t protocol.TaskType) int {
	switch t {
	case protocol.TypeDocumentation, protocol.TypeRename:
		return 0
	case protocol.TypeBugfix:
		return 1
	case protocol.TypeFeature, protocol.TypeRefactor:
		return 2
	case protocol.TypeArchitecture, protocol.TypeSecurityAudit:
		return 3
	default:
		return 2
	}
}

// TierFor maps a score to its band: 0-4 simple, 5-8 moderate, 9-14 complex.
func TierFor(score int) protocol.Tier {
	switch {
	case score <= simpleCeiling:
		return protocol.TierSimple
	case score <= moderateCeiling:
		return protocol.TierModerate
	default:
		return protocol.TierComplex
	}
}

// InitialTier resolves the starting tier for a task. Certain task types
// bypass scoring entirely: security audits and architecture decisions pin
// to the highest tier, purely mechanical types pin to the lowest.
func InitialTier(a Attributes) protocol.Tier {
	switch a.Type {
	case protocol.TypeSecurityAudit, protocol.TypeArchitecture:
		return protocol.TierComplex
	case protocol.TypeDocumentation, protocol.TypeRename:
		return protocol.TierSimple
	}
	return TierFor(Score(a))
}

// Ladder holds the escalation ladders and answers model selection queries.
type Ladder struct {
	ladders map[protocol.Tier][]string
}

// NewLadder builds a Ladder from configuration.
func NewLadder(cfg config.Config) *Ladder {
	return &Ladder{ladders: cfg.Ladders}
}

// ModelFor returns the model for the given attempt (1-based):
// ladder[min(attempt-1, len-1)]. Running the same model twice before
// escalating is intentional retry-then-escalate behavior.
func (l *Ladder) ModelFor(tier protocol.Tier, attempt int) string {
	ladder := l.ladders[tier]
	if len(ladder) == 0 {
		return protocol.ModelSonnet
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	return ladder[idx]
}

// Exhausted reports whether the ladder has no further escalation for the
// given attempt count: the task's next failure goes to a human, not a
// bigger model.
func (l *Ladder) Exhausted(tier protocol.Tier, attempts int) bool {
	return attempts >= len(l.ladders[tier])
}

// TierOfModel reports the capability tier a model represents, used for
// escalation audit rows. A model that opens a ladder defines that tier;
// otherwise the first ladder mentioning it wins. Unknown models fall back
// to simple.
func (l *Ladder) TierOfModel(model string) protocol.Tier {
	order := []protocol.Tier{protocol.TierSimple, protocol.TierModerate, protocol.TierComplex}
	for _, tier := range order {
		if ladder := l.ladders[tier]; len(ladder) > 0 && ladder[0] == model {
			return tier
		}
	}
	for _, tier := range order {
		for _, m := range l.ladders[tier] {
			if m == model {
				return tier
			}
		}
	}
	return protocol.TierSimple
}
