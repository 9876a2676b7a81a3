// Package model defines the core data types shared across reviewgate.
package model

import "fmt"

// ReviewMode is the level of human oversight a task receives.
type ReviewMode int

const (
	AutoProceed ReviewMode = iota
	QuickOptional
	FullRequired
)

func (m ReviewMode) String() string {
	switch m {
	case AutoProceed:
		return "auto_proceed"
	case QuickOptional:
		return "quick_optional"
	case FullRequired:
		return "full_required"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ReviewMode) MarshalText() ([]byte, error) {
	if m < AutoProceed || m > FullRequired {
		return nil, fmt.Errorf("invalid review mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ReviewMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "auto_proceed":
		*m = AutoProceed
	case "quick_optional":
		*m = QuickOptional
	case "full_required":
		*m = FullRequired
	default:
		return fmt.Errorf("unknown review mode %q", string(b))
	}
	return nil
}

// Score thresholds for mode selection.
const (
	MinTotalScore = 1
	MaxTotalScore = 10

	autoProceedMax   = 3
	quickOptionalMax = 6
)

// ModeFor derives the review mode from a total score and the set of force
// triggers. Triggers can only escalate.
func ModeFor(total int, triggers []ForceTrigger) ReviewMode {
	if len(triggers) > 0 {
		return FullRequired
	}
	switch {
	case total <= autoProceedMax:
		return AutoProceed
	case total <= quickOptionalMax:
		return QuickOptional
	default:
		return FullRequired
	}
}

// ForceTrigger is a condition that mandates full review regardless of score.
type ForceTrigger int

const (
	TriggerUserFlag ForceTrigger = iota
	TriggerSecurityKeywords
	TriggerSchemaChanges
	TriggerHotfix
	TriggerBreakingChanges
)

func (t ForceTrigger) String() string {
	switch t {
	case TriggerUserFlag:
		return "user_flag"
	case TriggerSecurityKeywords:
		return "security_keywords"
	case TriggerSchemaChanges:
		return "schema_changes"
	case TriggerHotfix:
		return "hotfix"
	case TriggerBreakingChanges:
		return "breaking_changes"
	default:
		return "unknown"
	}
}

// Title renders the trigger for display, e.g. "Security Keywords".
func (t ForceTrigger) Title() string {
	switch t {
	case TriggerUserFlag:
		return "User Flag"
	case TriggerSecurityKeywords:
		return "Security Keywords"
	case TriggerSchemaChanges:
		return "Schema Changes"
	case TriggerHotfix:
		return "Hotfix"
	case TriggerBreakingChanges:
		return "Breaking Changes"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ForceTrigger) MarshalText() ([]byte, error) {
	if t < TriggerUserFlag || t > TriggerBreakingChanges {
		return nil, fmt.Errorf("invalid force trigger %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ForceTrigger) UnmarshalText(b []byte) error {
	for c := TriggerUserFlag; c <= TriggerBreakingChanges; c++ {
		if c.String() == string(b) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown force trigger %q", string(b))
}

// ReviewAction is the router's verdict.
type ReviewAction int

const (
	ActionProceed ReviewAction = iota
	ActionReviewRequired
)

func (a ReviewAction) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionReviewRequired:
		return "review_required"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a ReviewAction) MarshalText() ([]byte, error) {
	if a != ActionProceed && a != ActionReviewRequired {
		return nil, fmt.Errorf("invalid review action %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ReviewAction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "proceed":
		*a = ActionProceed
	case "review_required":
		*a = ActionReviewRequired
	default:
		return fmt.Errorf("unknown review action %q", string(b))
	}
	return nil
}

// RiskLevel categorizes a plan risk.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseRiskLevel maps user input to a level. Empty input yields medium.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "low":
		return RiskLow, nil
	case "", "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	default:
		return RiskMedium, fmt.Errorf("unknown risk level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	if r < RiskLow || r > RiskHigh {
		return nil, fmt.Errorf("invalid risk level %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	lvl, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}
