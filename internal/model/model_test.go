package model

import (
	"encoding/json"
	"testing"
)

func TestReviewModeString(t *testing.T) {
	tests := []struct {
		mode ReviewMode
		want string
	}{
		{AutoProceed, "auto_proceed"},
		{QuickOptional, "quick_optional"},
		{FullRequired, "full_required"},
		{ReviewMode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("ReviewMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestModeForBoundaries(t *testing.T) {
	tests := []struct {
		total int
		want  ReviewMode
	}{
		{1, AutoProceed},
		{3, AutoProceed},
		{4, QuickOptional},
		{6, QuickOptional},
		{7, FullRequired},
		{10, FullRequired},
	}
	for _, tt := range tests {
		if got := ModeFor(tt.total, nil); got != tt.want {
			t.Errorf("ModeFor(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestModeForTriggersAlwaysEscalate(t *testing.T) {
	for total := MinTotalScore; total <= MaxTotalScore; total++ {
		if got := ModeFor(total, []ForceTrigger{TriggerHotfix}); got != FullRequired {
			t.Errorf("ModeFor(%d, hotfix) = %s, want full_required", total, got)
		}
	}
}

func TestForceTriggerTextRoundTrip(t *testing.T) {
	in := []ForceTrigger{TriggerUserFlag, TriggerBreakingChanges}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["user_flag","breaking_changes"]` {
		t.Errorf("unexpected encoding %s", data)
	}

	var out []ForceTrigger
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 || out[1] != TriggerBreakingChanges {
		t.Errorf("round trip = %v", out)
	}

	var bad ForceTrigger
	if err := bad.UnmarshalText([]byte("nope")); err == nil {
		t.Error("expected error for unknown trigger")
	}
}

func TestParseRiskLevelDefaultsToMedium(t *testing.T) {
	lvl, err := ParseRiskLevel("")
	if err != nil || lvl != RiskMedium {
		t.Errorf("ParseRiskLevel(\"\") = %v, %v", lvl, err)
	}
	if _, err := ParseRiskLevel("extreme"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestPlanKeywordChecks(t *testing.T) {
	p := &ImplementationPlan{RawPlan: "Add JWT validation middleware"}
	if !p.HasSecurityKeywords() {
		t.Error("expected security keywords")
	}
	if p.HasSchemaChanges() {
		t.Error("did not expect schema changes")
	}

	p = &ImplementationPlan{RawPlan: "ALTER TABLE users add column"}
	if !p.HasSchemaChanges() {
		t.Error("expected schema change")
	}

	p = &ImplementationPlan{RawPlan: "rename button", Risks: []Risk{{Description: "token leak"}}}
	if p.HasSecurityKeywords() {
		t.Error("only the raw plan is scanned")
	}
}

func TestPlanCloneIsDeep(t *testing.T) {
	p := &ImplementationPlan{
		FilesToCreate: []string{"a.go"},
		Risks:         []Risk{{Description: "x"}},
		Complexity:    &ComplexityScore{TotalScore: 4, Triggers: []ForceTrigger{TriggerHotfix}},
	}
	c := p.Clone()
	c.FilesToCreate[0] = "b.go"
	c.Risks[0].Description = "y"
	c.Complexity.Triggers[0] = TriggerUserFlag

	if p.FilesToCreate[0] != "a.go" || p.Risks[0].Description != "x" {
		t.Error("clone shares slices with original")
	}
	if p.Complexity.Triggers[0] != TriggerHotfix {
		t.Error("clone shares complexity triggers with original")
	}
}

func TestFactorNormalized(t *testing.T) {
	f := FactorScore{Score: 2, MaxScore: 4}
	if f.Normalized() != 0.5 {
		t.Errorf("Normalized = %v", f.Normalized())
	}
	if (FactorScore{Score: 1}).Normalized() != 0 {
		t.Error("zero max should normalize to 0")
	}
}
