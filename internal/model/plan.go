package model

import "strings"

// Risk is a single risk entry in a plan.
type Risk struct {
	Description string    `json:"description" yaml:"description"`
	Level       RiskLevel `json:"level" yaml:"level"`
	Mitigation  string    `json:"mitigation,omitempty" yaml:"mitigation,omitempty"`
}

// ImplementationPlan is the design produced for a task. Persisted copies are
// versioned and never edited in place.
type ImplementationPlan struct {
	TaskID                     string           `json:"task_id"`
	FilesToCreate              []string         `json:"files_to_create"`
	FilesToModify              []string         `json:"files_to_modify,omitempty"`
	PatternsUsed               []string         `json:"patterns_used,omitempty"`
	ExternalDependencies       []string         `json:"external_dependencies"`
	EstimatedLOC               int              `json:"estimated_loc,omitempty"`
	EstimatedDuration          string           `json:"estimated_duration,omitempty"`
	EstimatedComplexity        int              `json:"estimated_complexity,omitempty"`
	RiskIndicators             []string         `json:"risk_indicators,omitempty"`
	Risks                      []Risk           `json:"risks,omitempty"`
	Phases                     []string         `json:"phases,omitempty"`
	RawPlan                    string           `json:"raw_plan,omitempty"`
	TestSummary                string           `json:"test_summary,omitempty"`
	ImplementationInstructions string           `json:"implementation_instructions,omitempty"`
	Complexity                 *ComplexityScore `json:"complexity_score,omitempty"`
}

var (
	securityKeywords = []string{
		"authentication", "authorization", "auth", "security", "password",
		"token", "jwt", "oauth", "encryption", "crypto",
	}
	schemaKeywords = []string{
		"migration", "schema", "alter table", "create table", "drop table",
		"database", "db migration",
	}
)

// AllFiles returns the files to create followed by the files to modify.
func (p *ImplementationPlan) AllFiles() []string {
	out := make([]string, 0, len(p.FilesToCreate)+len(p.FilesToModify))
	out = append(out, p.FilesToCreate...)
	return append(out, p.FilesToModify...)
}

// FileCount returns the number of files the plan creates.
func (p *ImplementationPlan) FileCount() int {
	return len(p.FilesToCreate)
}

// DependencyCount returns the number of external dependencies.
func (p *ImplementationPlan) DependencyCount() int {
	return len(p.ExternalDependencies)
}

// HasSecurityKeywords reports whether the raw plan mentions security surface.
func (p *ImplementationPlan) HasSecurityKeywords() bool {
	return containsAny(strings.ToLower(p.RawPlan), securityKeywords)
}

// HasSchemaChanges reports whether the raw plan mentions database schema work.
func (p *ImplementationPlan) HasSchemaChanges() bool {
	return containsAny(strings.ToLower(p.RawPlan), schemaKeywords)
}

// Clone returns a deep copy of the plan.
func (p *ImplementationPlan) Clone() *ImplementationPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.FilesToCreate = cloneStrings(p.FilesToCreate)
	c.FilesToModify = cloneStrings(p.FilesToModify)
	c.PatternsUsed = cloneStrings(p.PatternsUsed)
	c.ExternalDependencies = cloneStrings(p.ExternalDependencies)
	c.RiskIndicators = cloneStrings(p.RiskIndicators)
	c.Phases = cloneStrings(p.Phases)
	if p.Risks != nil {
		c.Risks = append([]Risk(nil), p.Risks...)
	}
	if p.Complexity != nil {
		score := *p.Complexity
		score.Factors = append([]FactorScore(nil), p.Complexity.Factors...)
		score.Triggers = append([]ForceTrigger(nil), p.Complexity.Triggers...)
		c.Complexity = &score
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
