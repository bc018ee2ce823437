package policy

import (
	"testing"

	"steward/pkg/config"
	"steward/pkg/protocol"
)

func TestScore_Bounds(t *testing.T) {
	if got := Score(Attributes{Files: 1, Type: protocol.TypeDocumentation}); got != 0 {
		t.Errorf("minimal attributes should score 0, got %d", got)
	}

	max := Attributes{
		Files:   50,
		Lines:   5000,
		NewDeps: 10,
		Type:    protocol.TypeSecurityAudit,
		Risks:   []RiskFlag{RiskSecuritySensitive, RiskExternalIntegration, RiskBreakingChange, "extra"},
	}
	if got := Score(max); got != MaxScore {
		t.Errorf("maximal attributes should score %d, got %d", MaxScore, got)
	}
}

func TestScore_SubScores(t *testing.T) {
	tests := []struct {
		name string
		a    Attributes
		want int
	}{
		{"one file one risk", Attributes{Files: 1, Type: protocol.TypeBugfix, Risks: []RiskFlag{RiskBreakingChange}}, 2},
		{"three files", Attributes{Files: 3, Type: protocol.TypeDocumentation}, 1},
		{"ten files", Attributes{Files: 10, Type: protocol.TypeDocumentation}, 2},
		{"eleven files", Attributes{Files: 11, Type: protocol.TypeDocumentation}, 3},
		{"hundred lines", Attributes{Files: 1, Lines: 100, Type: protocol.TypeDocumentation}, 1},
		{"four hundred one lines", Attributes{Files: 1, Lines: 401, Type: protocol.TypeDocumentation}, 3},
		{"two deps", Attributes{Files: 1, NewDeps: 2, Type: protocol.TypeDocumentation}, 1},
		{"three deps", Attributes{Files: 1, NewDeps: 3, Type: protocol.TypeDocumentation}, 2},
		{"risks capped", Attributes{Files: 1, Type: protocol.TypeDocumentation, Risks: []RiskFlag{"a", "b", "c", "d", "e"}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.a); got != tt.want {
				t.Errorf("Score(%+v) = %d, want %d", tt.a, got, tt.want)
			}
		})
	}
}

func TestTierFor_BandEdges(t *testing.T) {
	tests := []struct {
		score int
		want  protocol.Tier
	}{
		{0, protocol.TierSimple},
		{4, protocol.TierSimple},
		{5, protocol.TierModerate},
		{8, protocol.TierModerate},
		{9, protocol.TierComplex},
		{14, protocol.TierComplex},
	}
	for _, tt := range tests {
		if got := TierFor(tt.score); got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestInitialTier_PinnedTypes(t *testing.T) {
	// A security audit touching one file would score simple, but the type
	// pins it to complex.
	audit := Attributes{Files: 1, Type: protocol.TypeSecurityAudit}
	if got := InitialTier(audit); got != protocol.TierComplex {
		t.Errorf("security audit should pin to complex, got %s", got)
	}

	arch := Attributes{Files: 1, Type: protocol.TypeArchitecture}
	if got := InitialTier(arch); got != protocol.TierComplex {
		t.Errorf("architecture decision should pin to complex, got %s", got)
	}

	// A sprawling documentation pass stays simple no matter the score.
	docs := Attributes{Files: 40, Lines: 3000, Type: protocol.TypeDocumentation}
	if got := InitialTier(docs); got != protocol.TierSimple {
		t.Errorf("documentation should pin to simple, got %s", got)
	}

	rename := Attributes{Files: 40, Lines: 3000, Type: protocol.TypeRename}
	if got := InitialTier(rename); got != protocol.TierSimple {
		t.Errorf("rename should pin to simple, got %s", got)
	}
}

func TestLadder_ModelProgression(t *testing.T) {
	l := NewLadder(config.Default())

	tests := []struct {
		tier    protocol.Tier
		attempt int
		want    string
	}{
		{protocol.TierSimple, 1, protocol.ModelHaiku},
		{protocol.TierSimple, 2, protocol.ModelHaiku},
		{protocol.TierSimple, 3, protocol.ModelSonnet},
		{protocol.TierSimple, 5, protocol.ModelOpus},
		{protocol.TierSimple, 99, protocol.ModelOpus}, // clamps to the last rung
		{protocol.TierModerate, 1, protocol.ModelSonnet},
		{protocol.TierModerate, 3, protocol.ModelOpus},
		{protocol.TierComplex, 1, protocol.ModelOpus},
		{protocol.TierComplex, 3, protocol.ModelOpus},
	}
	for _, tt := range tests {
		if got := l.ModelFor(tt.tier, tt.attempt); got != tt.want {
			t.Errorf("ModelFor(%s, %d) = %s, want %s", tt.tier, tt.attempt, got, tt.want)
		}
	}
}

func TestLadder_Exhausted(t *testing.T) {
	l := NewLadder(config.Default())

	if l.Exhausted(protocol.TierSimple, 4) {
		t.Error("simple ladder has 5 rungs; 4 attempts should not exhaust it")
	}
	if !l.Exhausted(protocol.TierSimple, 5) {
		t.Error("simple ladder should exhaust at 5 attempts")
	}
	if !l.Exhausted(protocol.TierComplex, 3) {
		t.Error("complex ladder should exhaust at 3 attempts")
	}
}

func TestLadder_DeterministicSelection(t *testing.T) {
	l := NewLadder(config.Default())

	for i := 0; i < 10; i++ {
		if got := l.ModelFor(protocol.TierModerate, 2); got != protocol.ModelSonnet {
			t.Fatalf("selection must be deterministic; iteration %d got %s", i, got)
		}
	}
}

func TestLadder_TierOfModel(t *testing.T) {
	l := NewLadder(config.Default())

	// The first rung of each ladder identifies the tier.
	if got := l.TierOfModel(protocol.ModelHaiku); got != protocol.TierSimple {
		t.Errorf("TierOfModel(haiku) = %s, want simple", got)
	}
	if got := l.TierOfModel(protocol.ModelSonnet); got != protocol.TierModerate {
		t.Errorf("TierOfModel(sonnet) = %s, want moderate", got)
	}
	if got := l.TierOfModel(protocol.ModelOpus); got != protocol.TierComplex {
		t.Errorf("TierOfModel(opus) = %s, want complex", got)
	}
}
