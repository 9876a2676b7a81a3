package model

import "time"

// FactorScore is the result of evaluating one complexity dimension.
type FactorScore struct {
	Name          string         `json:"factor_name"`
	Score         float64        `json:"score"`
	MaxScore      float64        `json:"max_score"`
	Justification string         `json:"justification"`
	Details       map[string]any `json:"details,omitempty"`
}

// Normalized returns score/max, or 0 when max is zero.
func (f FactorScore) Normalized() float64 {
	if f.MaxScore <= 0 {
		return 0
	}
	return f.Score / f.MaxScore
}

// ComplexityScore is the aggregated outcome of a complexity evaluation.
// Scores are recomputed rather than patched.
type ComplexityScore struct {
	TotalScore   int            `json:"total_score"`
	Factors      []FactorScore  `json:"factor_scores"`
	Triggers     []ForceTrigger `json:"forced_review_triggers"`
	Mode         ReviewMode     `json:"review_mode"`
	CalculatedAt time.Time      `json:"calculation_timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// HasTriggers reports whether any force trigger fired.
func (s ComplexityScore) HasTriggers() bool {
	return len(s.Triggers) > 0
}

// RequiresHumanReview reports whether the mode is anything but auto-proceed.
func (s ComplexityScore) RequiresHumanReview() bool {
	return s.Mode != AutoProceed
}

// IsFailSafe reports whether the score was produced by the fail-safe path.
func (s ComplexityScore) IsFailSafe() bool {
	v, _ := s.Metadata["failsafe"].(bool)
	return v
}

// Factor returns the named factor score.
func (s ComplexityScore) Factor(name string) (FactorScore, bool) {
	for _, f := range s.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return FactorScore{}, false
}

// HasTrigger reports whether t is among the fired triggers.
func (s ComplexityScore) HasTrigger(t ForceTrigger) bool {
	for _, got := range s.Triggers {
		if got == t {
			return true
		}
	}
	return false
}

// ReviewDecision is the router's translation of a score into an action.
type ReviewDecision struct {
	Action         ReviewAction    `json:"action"`
	AutoApproved   bool            `json:"auto_approved"`
	Summary        string          `json:"summary_message"`
	Recommendation string          `json:"routing_recommendation"`
	Timestamp      time.Time       `json:"timestamp"`
	Score          ComplexityScore `json:"complexity_score"`
}
