package complexity

import (
	"testing"

	"github.com/sprite-ai/reviewgate/internal/model"
)

func TestFileComplexityBrackets(t *testing.T) {
	tests := []struct {
		files int
		want  float64
	}{
		{0, 0}, {2, 0}, {3, 1}, {5, 1}, {6, 2}, {8, 2}, {9, 3}, {20, 3},
	}
	for _, tt := range tests {
		fs, err := FileComplexity{}.Evaluate(EvaluationContext{Plan: planWithFiles(tt.files)})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if fs.Score != tt.want {
			t.Errorf("%d files: score %v, want %v", tt.files, fs.Score, tt.want)
		}
	}
}

func TestFileComplexityDetailsCapped(t *testing.T) {
	fs, _ := FileComplexity{}.Evaluate(EvaluationContext{Plan: planWithFiles(8)})
	files, _ := fs.Details["files"].([]string)
	if len(files) != 5 {
		t.Errorf("expected 5 listed files, got %d", len(files))
	}
}

func TestPatternFamiliarity(t *testing.T) {
	tests := []struct {
		patterns []string
		want     float64
		category string
	}{
		{nil, 0, "none"},
		{[]string{"Repository", "Factory"}, 0, "simple"},
		{[]string{"Strategy"}, 1, "moderate"},
		{[]string{"Chain of Responsibility", "Event Sourcing"}, 2, "advanced"},
	}
	for _, tt := range tests {
		plan := &model.ImplementationPlan{PatternsUsed: tt.patterns}
		fs, err := PatternFamiliarity{}.Evaluate(EvaluationContext{Plan: plan})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if fs.Score != tt.want || fs.Details["pattern_category"] != tt.category {
			t.Errorf("%v: got %v/%v, want %v/%s", tt.patterns, fs.Score, fs.Details["pattern_category"], tt.want, tt.category)
		}
	}
}

func TestRiskLevelCategories(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"rename a label", 0},
		{"add oauth", 1},
		{"add oauth with a webhook", 1},
		{"oauth webhook caching", 2},
		{"oauth webhook caching migration", 2},
	}
	for _, tt := range tests {
		plan := &model.ImplementationPlan{RawPlan: tt.raw}
		fs, err := RiskLevel{}.Evaluate(EvaluationContext{Plan: plan})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if fs.Score != tt.want {
			t.Errorf("%q: score %v, want %v (%s)", tt.raw, fs.Score, tt.want, fs.Justification)
		}
	}
}

func TestFactorsRejectNilPlan(t *testing.T) {
	for _, f := range DefaultFactors() {
		if _, err := f.Evaluate(EvaluationContext{}); err == nil {
			t.Errorf("%s: expected error for nil plan", f.Name())
		}
	}
}

func TestEvaluationContextFlags(t *testing.T) {
	ec := EvaluationContext{Metadata: TaskMetadata{Priority: "Critical", Tags: []string{"ui"}}}
	if !ec.IsCriticalPriority() {
		t.Error("expected critical priority")
	}
	if ec.IsHotfix() {
		t.Error("did not expect hotfix")
	}
	ec.Metadata.IsHotfix = true
	if !ec.IsHotfix() {
		t.Error("expected hotfix from metadata flag")
	}
}
