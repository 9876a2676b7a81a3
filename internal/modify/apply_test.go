package modify

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sprite-ai/reviewgate/internal/model"
)

func basePlan() *model.ImplementationPlan {
	return &model.ImplementationPlan{
		TaskID:               "TASK-1",
		FilesToCreate:        []string{"a.go", "b.go"},
		FilesToModify:        []string{"main.go"},
		ExternalDependencies: []string{"zap"},
		Phases:               []string{"design", "build", "test"},
		Risks:                []model.Risk{{Description: "slow", Level: model.RiskLow}},
		EstimatedLOC:         100,
		EstimatedDuration:    "4 hours",
	}
}

func TestInverseTableCoversEveryType(t *testing.T) {
	for _, ct := range ChangeTypes {
		if _, ok := forward[ct]; !ok {
			t.Errorf("%s has no forward op", ct)
		}
		if _, ok := inverses[ct]; !ok {
			t.Errorf("%s has no inverse", ct)
		}
	}
}

func TestApplyThenInvertRestoresPlan(t *testing.T) {
	risk := model.Risk{Description: "auth bypass", Level: model.RiskHigh, Mitigation: "tests"}
	changes := []Change{
		NewFileAdded(ListCreate, "c.go", "handler"),
		NewFileAdded(ListModify, "util.go", ""),
		NewFileRemoved(ListCreate, "a.go", ""),
		NewFileModified(ListCreate, "b.go", "bb.go"),
		NewDependencyAdded("yaml", ""),
		NewDependencyRemoved("zap", ""),
		NewPhaseAdded("review", 1),
		NewPhaseRemoved("build", 1),
		NewPhaseReordered("design", 0, 2),
		NewRiskAdded(risk, 0),
		NewRiskModified(model.Risk{Description: "slow", Level: model.RiskLow}, model.Risk{Description: "slow", Level: model.RiskHigh}, 0),
		NewRiskRemoved(model.Risk{Description: "slow", Level: model.RiskLow}, 0),
		NewMetadataUpdated(FieldEstimatedLOC, "100", "250"),
		NewMetadataUpdated(FieldEstimatedDuration, "4 hours", "2 days"),
	}
	for _, c := range changes {
		t.Run(c.Type.String(), func(t *testing.T) {
			p := basePlan()
			c := Locate(p, c)
			if err := Apply(p, c); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if cmp.Equal(basePlan(), p) {
				t.Fatalf("Apply had no effect")
			}
			if err := Invert(p, c); err != nil {
				t.Fatalf("Invert: %v", err)
			}
			if diff := cmp.Diff(basePlan(), p); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInverseOfInverse(t *testing.T) {
	c := NewPhaseReordered("x", 1, 3)
	inv, _ := Inverse(c)
	back, _ := Inverse(inv)
	if back.Type != c.Type || back.Position != c.Position || back.To != c.To {
		t.Errorf("inverse of inverse = %+v, want %+v", back, c)
	}
}

func TestApplyIsIdempotentForAddRemove(t *testing.T) {
	p := basePlan()
	for i := 0; i < 2; i++ {
		Apply(p, NewFileAdded(ListCreate, "a.go", ""))
		Apply(p, NewDependencyAdded("zap", ""))
		Apply(p, NewFileRemoved(ListCreate, "missing.go", ""))
	}
	if diff := cmp.Diff(basePlan(), p); diff != "" {
		t.Errorf("plan changed (-want +got):\n%s", diff)
	}
}

func TestApplyAllLeavesOriginal(t *testing.T) {
	orig := basePlan()
	got, err := Applier{}.ApplyAll(orig, []Change{
		NewFileAdded(ListCreate, "c.go", ""),
		NewPhaseAdded("deploy", 99),
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(basePlan(), orig); diff != "" {
		t.Errorf("original mutated:\n%s", diff)
	}
	if want := []string{"a.go", "b.go", "c.go"}; !cmp.Equal(want, got.FilesToCreate) {
		t.Errorf("files = %v", got.FilesToCreate)
	}
	if got.Phases[len(got.Phases)-1] != "deploy" {
		t.Errorf("phase not appended: %v", got.Phases)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		changes []Change
		want    []string
	}{
		{"clean", []Change{NewFileAdded(ListCreate, "c.go", "")}, nil},
		{
			"conflict",
			[]Change{NewFileAdded(ListCreate, "c.go", ""), NewFileRemoved(ListCreate, "c.go", "")},
			[]string{"Conflicting operations on file: c.go (both added and removed)"},
		},
		{"missing file", []Change{NewFileRemoved(ListCreate, "nope.go", "")}, []string{"Cannot remove file not in plan: nope.go"}},
		{"missing dep", []Change{NewDependencyRemoved("left-pad", "")}, []string{"Cannot remove dependency not in plan: left-pad"}},
		{"risk index", []Change{NewRiskRemoved(model.Risk{}, 5)}, []string{"Invalid risk index: 6"}},
		{"phase move", []Change{NewPhaseReordered("x", 0, 7)}, []string{"Invalid phase position: 1 -> 8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(basePlan(), tt.changes)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Validate (-want +got):\n%s", diff)
			}
		})
	}
}
